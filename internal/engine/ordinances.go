package engine

import (
	"context"
	"database/sql"
	"strings"

	"docketline/internal/domain"
	"docketline/internal/events"
	"docketline/internal/lifecycle"
	"docketline/internal/repo"
)

// OrdinanceView is a tracking record with its docket context and derived stage.
type OrdinanceView struct {
	Tracking       domain.OrdinanceTracking `json:"tracking"`
	Subject        string                   `json:"subject"`
	ItemStatus     string                   `json:"item_status"`
	Stage          string                   `json:"stage"`
	StageIndex     int                      `json:"stage_index"`
	HearingTooSoon bool                     `json:"hearing_too_soon"`
}

func (e Engine) view(t domain.OrdinanceTracking, d domain.DocketItem) OrdinanceView {
	stage := lifecycle.DeriveStage(t, e.today())
	return OrdinanceView{
		Tracking:       t,
		Subject:        d.Subject,
		ItemStatus:     d.Status,
		Stage:          stage.Label,
		StageIndex:     stage.Index,
		HearingTooSoon: lifecycle.HearingTooSoon(t.IntroductionDate, t.HearingDate),
	}
}

func (e Engine) GetOrdinance(ctx context.Context, docketID string) (OrdinanceView, error) {
	return e.getOrdinance(ctx, nil, docketID)
}

func (e Engine) getOrdinance(ctx context.Context, tx *sql.Tx, docketID string) (OrdinanceView, error) {
	t, err := e.Repo.GetTracking(ctx, tx, docketID)
	if err != nil {
		return OrdinanceView{}, err
	}
	d, err := e.Repo.GetItem(ctx, tx, docketID)
	if err != nil {
		return OrdinanceView{}, err
	}
	return e.view(t, d), nil
}

// ListOrdinances returns every tracked ordinance, optionally only those at stage.
func (e Engine) ListOrdinances(ctx context.Context, stage string) ([]OrdinanceView, error) {
	if err := e.requireConfig(); err != nil {
		return nil, err
	}
	records, err := e.Repo.ListTracking(ctx, nil)
	if err != nil {
		return nil, err
	}
	items, err := e.Repo.ListItems(ctx, nil, repo.ItemFilters{ItemTypes: e.Config.Ordinance.ItemTypes})
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.DocketItem, len(items))
	for _, d := range items {
		byID[d.ID] = d
	}
	views := make([]OrdinanceView, 0, len(records))
	for _, t := range records {
		d, ok := byID[t.DocketID]
		if !ok {
			if d, err = e.Repo.GetItem(ctx, nil, t.DocketID); err != nil {
				return nil, err
			}
		}
		v := e.view(t, d)
		if stage != "" && !strings.EqualFold(v.Stage, stage) {
			continue
		}
		views = append(views, v)
	}
	return views, nil
}

// EditOrdinance applies a clerk edit to a tracking record in one transaction.
func (e Engine) EditOrdinance(ctx context.Context, docketID string, edit lifecycle.Edit, actorID string) (OrdinanceView, error) {
	tx, err := e.begin(ctx)
	if err != nil {
		return OrdinanceView{}, err
	}
	defer tx.Rollback()

	if _, err := e.editOrdinance(ctx, tx, docketID, edit, actorID); err != nil {
		return OrdinanceView{}, err
	}
	v, err := e.getOrdinance(ctx, tx, docketID)
	if err != nil {
		return v, err
	}
	if err := commit(tx); err != nil {
		return v, err
	}
	return v, nil
}

func (e Engine) editOrdinance(ctx context.Context, tx *sql.Tx, docketID string, edit lifecycle.Edit, actorID string) ([]domain.FieldChange, error) {
	t, err := e.Repo.GetTracking(ctx, tx, docketID)
	if err != nil {
		return nil, err
	}
	next, err := lifecycle.ApplyEdit(t, edit)
	if err != nil {
		return nil, err
	}
	changes := lifecycle.Diff(t, next)
	if len(changes) == 0 {
		return nil, nil
	}
	next.UpdatedAt = e.stamp()
	if err := e.Repo.UpdateTracking(ctx, tx, next); err != nil {
		return nil, err
	}
	if _, err := e.recorder().RecordAll(ctx, tx, domain.OwnerOrdinance, docketID, changes, actorID); err != nil {
		return nil, err
	}
	if err := e.eventWriter().Append(ctx, tx, "ordinance.updated", domain.OwnerOrdinance, docketID, actorID, events.EventPayload{
		"changes": changes,
	}); err != nil {
		return nil, err
	}
	return changes, nil
}
