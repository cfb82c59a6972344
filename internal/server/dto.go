package server

import (
	"encoding/json"
	"strconv"

	"docketline/internal/domain"
	"docketline/internal/engine"
)

// Request payloads

type CreateItemRequest struct {
	ID                *string         `json:"id,omitempty"`
	Subject           string          `json:"subject"`
	Submitter         string          `json:"submitter,omitempty"`
	ItemType          string          `json:"item_type" minLength:"1"`
	ExtractedFields   map[string]any  `json:"extracted_fields,omitempty"`
	Completeness      map[string]bool `json:"completeness,omitempty"`
	Attachments       []string        `json:"attachments,omitempty"`
	Summary           string          `json:"summary,omitempty"`
	Status            string          `json:"status,omitempty" enum:"new,reviewed,accepted,needs_info,rejected,on_agenda"`
	TargetMeetingDate string          `json:"target_meeting_date,omitempty" format:"date"`
}

// UpdateItemRequest patches an item. A JSON null or "" clears a field.
type UpdateItemRequest struct {
	Status            *string `json:"status,omitempty" enum:"new,reviewed,accepted,needs_info,rejected,on_agenda"`
	TargetMeetingDate *string `json:"target_meeting_date,omitempty"`
	SummaryOverride   *string `json:"summary_override,omitempty"`
	Force             bool    `json:"force,omitempty"`
}

// UpdateMeetingRequest patches a meeting. A JSON null or "" clears a field.
type UpdateMeetingRequest struct {
	Status          *string `json:"status,omitempty" enum:"upcoming,in_progress,completed"`
	VideoURL        *string `json:"video_url,omitempty"`
	MinutesText     *string `json:"minutes_text,omitempty"`
	MinutesOverride *string `json:"minutes_override,omitempty"`
}

// EditOrdinanceRequest sets and clears tracking fields. Set values may be
// strings or booleans; null in set clears the field.
type EditOrdinanceRequest struct {
	Set   map[string]any `json:"set,omitempty"`
	Clear []string       `json:"clear,omitempty"`
}

// Responses

type HealthResponse struct {
	Status        string `json:"status"`
	Municipality  string `json:"municipality,omitempty"`
	Today         string `json:"today,omitempty" format:"date"`
	SchemaVersion int    `json:"schema_version,omitempty"`
}

type MeetingListResponse struct {
	Items []domain.Meeting `json:"items"`
}

type AgendaResponse struct {
	Meeting *domain.Meeting     `json:"meeting,omitempty"`
	Date    string              `json:"date" format:"date"`
	Items   []domain.DocketItem `json:"items"`
}

type ItemListResponse struct {
	Items []domain.DocketItem `json:"items"`
}

type OrdinanceListResponse struct {
	Items []engine.OrdinanceView `json:"items"`
}

type HistoryListResponse struct {
	Items []domain.HistoryEntry `json:"items"`
}

type CalendarEnsureResponse struct {
	Created  int `json:"created"`
	Meetings int `json:"meetings"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// Conversion helpers

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil
	}
	return obj
}

// editValue renders a JSON set value as tracking field text.
func editValue(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", true
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	default:
		return "", false
	}
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
