package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"docketline/internal/domain"
	"docketline/internal/engine"
)

// historyRoutes maps a collection path to its history owner kind.
var historyRoutes = []struct {
	collection string
	kind       string
}{
	{"meetings", domain.OwnerMeeting},
	{"items", domain.OwnerItem},
	{"ordinances", domain.OwnerOrdinance},
}

func registerHistory(api huma.API, e engine.Engine) {
	for _, route := range historyRoutes {
		kind := route.kind
		huma.Register(api, huma.Operation{
			OperationID: "list-" + kind + "-history",
			Method:      http.MethodGet,
			Path:        "/" + route.collection + "/{id}/history",
			Summary:     "List " + kind + " field history",
			Tags:        []string{"history"},
		}, func(ctx context.Context, input *struct {
			ID    string `path:"id"`
			Field string `query:"field"`
			Limit int    `query:"limit"`
		}) (*struct {
			Body HistoryListResponse `json:"body"`
		}, error) {
			items, err := e.History(ctx, kind, input.ID, input.Field, normalizeLimit(input.Limit))
			if err != nil {
				return nil, handleError(err)
			}
			return &struct {
				Body HistoryListResponse `json:"body"`
			}{Body: HistoryListResponse{Items: nonNilSlice(items)}}, nil
		})

		huma.Register(api, huma.Operation{
			OperationID: "revert-" + kind + "-field",
			Method:      http.MethodPost,
			Path:        "/" + route.collection + "/{id}/history/{field}/revert",
			Summary:     "Revert the latest change of a " + kind + " field",
			Tags:        []string{"history"},
			Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
		}, func(ctx context.Context, input *struct {
			ID    string `path:"id"`
			Field string `path:"field"`
		}) (*struct {
			Body engine.RevertResult `json:"body"`
		}, error) {
			res, err := e.Revert(ctx, kind, input.ID, input.Field, actorFromContext(ctx))
			if err != nil {
				return nil, handleError(err)
			}
			return &struct {
				Body engine.RevertResult `json:"body"`
			}{Body: res}, nil
		})
	}
}
