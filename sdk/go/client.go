package docketsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Docketline HTTP API client.
type Client struct {
	BaseURL     string
	ActorID     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Item represents the API docket item model (partial).
type Item struct {
	ID                string  `json:"id"`
	Subject           string  `json:"subject"`
	ItemType          string  `json:"item_type"`
	Status            string  `json:"status"`
	Summary           string  `json:"summary,omitempty"`
	SummaryOverride   *string `json:"summary_override,omitempty"`
	TargetMeetingDate *string `json:"target_meeting_date,omitempty"`
}

// NewItem is the payload for CreateItem.
type NewItem struct {
	Subject           string         `json:"subject"`
	ItemType          string         `json:"item_type"`
	Submitter         string         `json:"submitter,omitempty"`
	Summary           string         `json:"summary,omitempty"`
	Attachments       []string       `json:"attachments,omitempty"`
	ExtractedFields   map[string]any `json:"extracted_fields,omitempty"`
	Status            string         `json:"status,omitempty"`
	TargetMeetingDate string         `json:"target_meeting_date,omitempty"`
}

// ItemPatch updates an item. Nil fields are left alone; "" clears.
type ItemPatch struct {
	Status            *string `json:"status,omitempty"`
	TargetMeetingDate *string `json:"target_meeting_date,omitempty"`
	SummaryOverride   *string `json:"summary_override,omitempty"`
	Force             bool    `json:"force,omitempty"`
}

// Meeting represents a calendar meeting.
type Meeting struct {
	ID        int64  `json:"id"`
	Type      string `json:"meeting_type"`
	Date      string `json:"meeting_date"`
	Time      string `json:"meeting_time"`
	CycleDate string `json:"cycle_date"`
	Status    string `json:"status"`
	Label     string `json:"label,omitempty"`
	Role      string `json:"role,omitempty"`
}

// Agenda lists the items placed on a meeting date.
type Agenda struct {
	Meeting *Meeting `json:"meeting,omitempty"`
	Date    string   `json:"date"`
	Items   []Item   `json:"items"`
}

// Ordinance is a tracking record with its derived stage.
type Ordinance struct {
	Tracking       map[string]any `json:"tracking"`
	Subject        string         `json:"subject"`
	ItemStatus     string         `json:"item_status"`
	Stage          string         `json:"stage"`
	StageIndex     int            `json:"stage_index"`
	HearingTooSoon bool           `json:"hearing_too_soon"`
}

// Field returns a tracking field rendered as text, "" when unset.
func (o Ordinance) Field(name string) string {
	v, ok := o.Tracking[name]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// HistoryEntry is one recorded field change.
type HistoryEntry struct {
	ID        int64   `json:"id"`
	OwnerKind string  `json:"owner_kind"`
	OwnerID   string  `json:"owner_id"`
	Field     string  `json:"field"`
	OldValue  *string `json:"old_value,omitempty"`
	NewValue  *string `json:"new_value,omitempty"`
	ActorID   string  `json:"actor_id"`
	TS        string  `json:"ts"`
}

// RevertResult describes a completed revert.
type RevertResult struct {
	OwnerKind string       `json:"owner_kind"`
	OwnerID   string       `json:"owner_id"`
	Field     string       `json:"field"`
	Reverted  HistoryEntry `json:"reverted"`
	Value     *string      `json:"value,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d code=%s body=%s", e.StatusCode, e.Code, e.Body)
}

// CreateItem files a docket item.
func (c *Client) CreateItem(ctx context.Context, item NewItem) (Item, error) {
	var resp Item
	err := c.do(ctx, http.MethodPost, "items", item, &resp)
	return resp, err
}

// UpdateItem patches an item's status, target meeting or summary override.
func (c *Client) UpdateItem(ctx context.Context, id string, patch ItemPatch) (Item, error) {
	var resp Item
	err := c.do(ctx, http.MethodPatch, "items/"+url.PathEscape(id), patch, &resp)
	return resp, err
}

// Item fetches an item by id.
func (c *Client) Item(ctx context.Context, id string) (Item, error) {
	var resp Item
	err := c.do(ctx, http.MethodGet, "items/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Agenda returns the items on the agenda of date (YYYY-MM-DD).
func (c *Client) Agenda(ctx context.Context, date string) (Agenda, error) {
	var resp Agenda
	err := c.do(ctx, http.MethodGet, "agenda?"+url.Values{"date": {date}}.Encode(), nil, &resp)
	return resp, err
}

// Meetings lists meetings of meetingType between from and to. Empty
// arguments are not filtered on.
func (c *Client) Meetings(ctx context.Context, meetingType, from, to string) ([]Meeting, error) {
	q := url.Values{}
	for k, v := range map[string]string{"type": meetingType, "from": from, "to": to} {
		if v != "" {
			q.Set(k, v)
		}
	}
	endpoint := "meetings"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp struct {
		Items []Meeting `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// Ordinance fetches the tracking of an ordinance docket item.
func (c *Client) Ordinance(ctx context.Context, docketID string) (Ordinance, error) {
	var resp Ordinance
	err := c.do(ctx, http.MethodGet, "ordinances/"+url.PathEscape(docketID), nil, &resp)
	return resp, err
}

// EditOrdinance sets and clears tracking fields.
func (c *Client) EditOrdinance(ctx context.Context, docketID string, set map[string]any, clear []string) (Ordinance, error) {
	body := map[string]any{}
	if len(set) > 0 {
		body["set"] = set
	}
	if len(clear) > 0 {
		body["clear"] = clear
	}
	var resp Ordinance
	err := c.do(ctx, http.MethodPatch, "ordinances/"+url.PathEscape(docketID), body, &resp)
	return resp, err
}

// History lists field changes of an owner, newest first. kind is the
// collection name: meetings, items or ordinances.
func (c *Client) History(ctx context.Context, kind, id, field string) ([]HistoryEntry, error) {
	endpoint := fmt.Sprintf("%s/%s/history", kind, url.PathEscape(id))
	if field != "" {
		endpoint += "?" + url.Values{"field": {field}}.Encode()
	}
	var resp struct {
		Items []HistoryEntry `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// Revert undoes the latest change of one field.
func (c *Client) Revert(ctx context.Context, kind, id, field string) (RevertResult, error) {
	var resp RevertResult
	endpoint := fmt.Sprintf("%s/%s/history/%s/revert", kind, url.PathEscape(id), url.PathEscape(field))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/v0/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.ActorID != "":
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
