package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"docketline/internal/engine"
	"docketline/internal/lifecycle"
)

type ordinanceBody struct {
	Body engine.OrdinanceView `json:"body"`
}

func registerOrdinances(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-ordinances",
		Method:      http.MethodGet,
		Path:        "/ordinances",
		Summary:     "List tracked ordinances with their derived stage",
	}, func(ctx context.Context, input *struct {
		Stage string `query:"stage"`
	}) (*struct {
		Body OrdinanceListResponse `json:"body"`
	}, error) {
		views, err := e.ListOrdinances(ctx, input.Stage)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OrdinanceListResponse `json:"body"`
		}{Body: OrdinanceListResponse{Items: nonNilSlice(views)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-ordinance",
		Method:      http.MethodGet,
		Path:        "/ordinances/{docket_id}",
		Summary:     "Get ordinance tracking",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		DocketID string `path:"docket_id"`
	}) (*ordinanceBody, error) {
		v, err := e.GetOrdinance(ctx, input.DocketID)
		if err != nil {
			return nil, handleError(err)
		}
		return &ordinanceBody{Body: v}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "edit-ordinance",
		Method:      http.MethodPatch,
		Path:        "/ordinances/{docket_id}",
		Summary:     "Set or clear ordinance tracking fields",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		DocketID string               `path:"docket_id"`
		Body     EditOrdinanceRequest `json:"body"`
	}) (*ordinanceBody, error) {
		edit := lifecycle.Edit{Set: map[string]string{}, Clear: input.Body.Clear}
		for name, v := range input.Body.Set {
			text, ok := editValue(v)
			if !ok {
				return nil, newAPIError(http.StatusBadRequest, "invalid_value", "unsupported value for "+name, map[string]any{"field": name})
			}
			if v == nil {
				edit.Clear = append(edit.Clear, name)
				continue
			}
			edit.Set[name] = text
		}
		v, err := e.EditOrdinance(ctx, input.DocketID, edit, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &ordinanceBody{Body: v}, nil
	})
}
