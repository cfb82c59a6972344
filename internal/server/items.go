package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"docketline/internal/domain"
	"docketline/internal/engine"
)

type itemBody struct {
	Body domain.DocketItem `json:"body"`
}

func registerItems(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-item",
		Method:        http.MethodPost,
		Path:          "/items",
		Summary:       "Create docket item",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateItemRequest `json:"body"`
	}) (*itemBody, error) {
		id := ""
		if input.Body.ID != nil {
			id = *input.Body.ID
		}
		d, err := e.CreateItem(ctx, engine.ItemCreateOptions{
			ID:                id,
			Subject:           input.Body.Subject,
			Submitter:         input.Body.Submitter,
			ItemType:          input.Body.ItemType,
			ExtractedFields:   input.Body.ExtractedFields,
			Completeness:      input.Body.Completeness,
			Attachments:       input.Body.Attachments,
			Summary:           input.Body.Summary,
			Status:            input.Body.Status,
			TargetMeetingDate: input.Body.TargetMeetingDate,
			ActorID:           actorFromContext(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &itemBody{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-items",
		Method:      http.MethodGet,
		Path:        "/items",
		Summary:     "List docket items",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" doc:"Comma separated statuses"`
		Date   string `query:"date" doc:"Target meeting date"`
		Limit  int    `query:"limit"`
	}) (*struct {
		Body ItemListResponse `json:"body"`
	}, error) {
		items, err := e.ListItems(ctx, engine.ItemFilter{
			Status:     splitList(input.Status),
			TargetDate: input.Date,
			Limit:      input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ItemListResponse `json:"body"`
		}{Body: ItemListResponse{Items: nonNilSlice(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-item",
		Method:      http.MethodGet,
		Path:        "/items/{id}",
		Summary:     "Get docket item",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*itemBody, error) {
		d, err := e.GetItem(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &itemBody{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-item",
		Method:      http.MethodPatch,
		Path:        "/items/{id}",
		Summary:     "Update item status, target meeting or summary override",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body UpdateItemRequest `json:"body"`
	}) (*itemBody, error) {
		raw := rawBodyMap(ctx)
		opts := engine.ItemUpdateOptions{
			ID:                input.ID,
			TargetMeetingDate: patchValue(raw, "target_meeting_date", input.Body.TargetMeetingDate),
			SummaryOverride:   patchValue(raw, "summary_override", input.Body.SummaryOverride),
			ActorID:           actorFromContext(ctx),
			Force:             input.Body.Force,
		}
		if input.Body.Status != nil {
			opts.Status = *input.Body.Status
		}
		d, err := e.UpdateItem(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &itemBody{Body: d}, nil
	})
}
