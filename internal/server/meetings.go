package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"docketline/internal/calendar"
	"docketline/internal/domain"
	"docketline/internal/engine"
)

type meetingBody struct {
	Body domain.Meeting `json:"body"`
}

type agendaBody struct {
	Body AgendaResponse `json:"body"`
}

func registerMeetings(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-meetings",
		Method:      http.MethodGet,
		Path:        "/meetings",
		Summary:     "List meetings",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Type   string `query:"type"`
		From   string `query:"from"`
		To     string `query:"to"`
		Status string `query:"status" doc:"Comma separated statuses"`
		Limit  int    `query:"limit"`
	}) (*struct {
		Body MeetingListResponse `json:"body"`
	}, error) {
		items, err := e.ListMeetings(ctx, calendar.Filter{
			Type:   input.Type,
			From:   input.From,
			To:     input.To,
			Status: splitList(input.Status),
			Limit:  input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MeetingListResponse `json:"body"`
		}{Body: MeetingListResponse{Items: nonNilSlice(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "next-meeting",
		Method:      http.MethodGet,
		Path:        "/meetings/next",
		Summary:     "Next meeting that has not completed",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Type string `query:"type"`
	}) (*meetingBody, error) {
		m, ok, err := e.NextMeeting(ctx, input.Type)
		if err != nil {
			return nil, handleError(err)
		}
		if !ok {
			return nil, newAPIError(http.StatusNotFound, "not_found", "no upcoming meeting", map[string]any{"type": input.Type})
		}
		return &meetingBody{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-meeting",
		Method:      http.MethodGet,
		Path:        "/meetings/{id}",
		Summary:     "Get meeting",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*meetingBody, error) {
		m, err := e.GetMeeting(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &meetingBody{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-meeting",
		Method:      http.MethodPatch,
		Path:        "/meetings/{id}",
		Summary:     "Update meeting status, video link or minutes",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   int64                `path:"id"`
		Body UpdateMeetingRequest `json:"body"`
	}) (*meetingBody, error) {
		raw := rawBodyMap(ctx)
		patch := engine.MeetingPatch{
			VideoURL:        patchValue(raw, "video_url", input.Body.VideoURL),
			MinutesText:     patchValue(raw, "minutes_text", input.Body.MinutesText),
			MinutesOverride: patchValue(raw, "minutes_override", input.Body.MinutesOverride),
		}
		if input.Body.Status != nil {
			patch.Status = *input.Body.Status
		}
		m, err := e.UpdateMeeting(ctx, input.ID, patch, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &meetingBody{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "meeting-agenda",
		Method:      http.MethodGet,
		Path:        "/meetings/{id}/agenda",
		Summary:     "Items on a meeting's agenda",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*agendaBody, error) {
		m, items, err := e.MeetingAgenda(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &agendaBody{Body: AgendaResponse{Meeting: &m, Date: m.Date, Items: nonNilSlice(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "agenda",
		Method:      http.MethodGet,
		Path:        "/agenda",
		Summary:     "Items on the agenda of a meeting date",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Date string `query:"date" required:"true"`
	}) (*agendaBody, error) {
		items, err := e.Agenda(ctx, input.Date)
		if err != nil {
			return nil, handleError(err)
		}
		return &agendaBody{Body: AgendaResponse{Date: input.Date, Items: nonNilSlice(items)}}, nil
	})
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
