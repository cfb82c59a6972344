package engine

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/rotisserie/eris"

	"docketline/internal/domain"
	"docketline/internal/events"
	"docketline/internal/history"
	"docketline/internal/lifecycle"
	"docketline/internal/repo"
)

// RevertResult describes a completed revert.
type RevertResult struct {
	OwnerKind string              `json:"owner_kind"`
	OwnerID   string              `json:"owner_id"`
	Field     string              `json:"field"`
	Reverted  domain.HistoryEntry `json:"reverted"`
	Value     *string             `json:"value,omitempty"`
}

// History lists an owner's audit trail newest first.
func (e Engine) History(ctx context.Context, ownerKind, ownerID, field string, limit int) ([]domain.HistoryEntry, error) {
	if err := validOwnerKind(ownerKind); err != nil {
		return nil, err
	}
	return e.recorder().List(ctx, ownerKind, ownerID, field, limit)
}

// Revert undoes the most recent change of one field by writing its previous
// value through the regular update path. Override fields are cleared instead,
// so readers fall back to the generated text.
func (e Engine) Revert(ctx context.Context, ownerKind, ownerID, field, actorID string) (RevertResult, error) {
	res := RevertResult{OwnerKind: ownerKind, OwnerID: ownerID, Field: field}
	if err := e.requireConfig(); err != nil {
		return res, err
	}
	if err := validOwnerKind(ownerKind); err != nil {
		return res, err
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return res, err
	}
	defer tx.Rollback()

	last, ok, err := e.recorder().Latest(ctx, tx, ownerKind, ownerID, field)
	if err != nil {
		return res, err
	}
	if !ok {
		return res, eris.Wrapf(repo.ErrNotFound, "no history for %s %s %s", ownerKind, ownerID, field)
	}
	res.Reverted = last
	target := last.OldValue
	if history.IsOverride(ownerKind, field) {
		target = nil
	}
	res.Value = target

	switch ownerKind {
	case domain.OwnerOrdinance:
		err = e.revertOrdinance(ctx, tx, ownerID, last, target, actorID)
	case domain.OwnerItem:
		err = e.revertItem(ctx, tx, ownerID, field, target, actorID)
	case domain.OwnerMeeting:
		err = e.revertMeeting(ctx, tx, ownerID, field, target, actorID)
	}
	if err != nil {
		return res, err
	}
	if err := e.eventWriter().Append(ctx, tx, "history.reverted", ownerKind, ownerID, actorID, events.EventPayload{
		"field":      field,
		"history_id": last.ID,
		"value":      target,
	}); err != nil {
		return res, err
	}
	if err := commit(tx); err != nil {
		return res, err
	}
	return res, nil
}

// revertOrdinance writes target back through the edit path. Undoing an
// adoption_date clear also restores the effective_date that the clear took
// with it, rather than the computed default.
func (e Engine) revertOrdinance(ctx context.Context, tx *sql.Tx, docketID string, last domain.HistoryEntry, target *string, actorID string) error {
	field := last.Field
	edit := lifecycle.Edit{Clear: []string{field}}
	if target != nil && *target != "" {
		edit = lifecycle.Edit{Set: map[string]string{field: *target}}
		if field == "adoption_date" && last.NewValue == nil {
			eff, ok, err := e.recorder().Latest(ctx, tx, domain.OwnerOrdinance, docketID, "effective_date")
			if err != nil {
				return err
			}
			if ok && eff.ID > last.ID && eff.NewValue == nil && eff.OldValue != nil {
				edit.Set["effective_date"] = *eff.OldValue
			}
		}
	}
	_, err := e.editOrdinance(ctx, tx, docketID, edit, actorID)
	return err
}

func (e Engine) revertItem(ctx context.Context, tx *sql.Tx, id, field string, target *string, actorID string) error {
	opts := ItemUpdateOptions{ID: id, ActorID: actorID}
	clearOrSet := textPtr("")
	if target != nil {
		clearOrSet = textPtr(*target)
	}
	switch field {
	case "status":
		if target == nil {
			return eris.Wrap(lifecycle.ErrInvalidValue, "status history entry has no previous value")
		}
		opts.Status = *target
		opts.Force = true
	case "target_meeting_date":
		opts.TargetMeetingDate = clearOrSet
	case "summary_override":
		opts.SummaryOverride = clearOrSet
	default:
		return eris.Wrapf(lifecycle.ErrUnknownField, "item field %q", field)
	}
	_, err := e.updateItem(ctx, tx, opts)
	return err
}

func (e Engine) revertMeeting(ctx context.Context, tx *sql.Tx, ownerID, field string, target *string, actorID string) error {
	id, err := strconv.ParseInt(ownerID, 10, 64)
	if err != nil {
		return eris.Wrapf(repo.ErrNotFound, "meeting %q", ownerID)
	}
	clearOrSet := textPtr("")
	if target != nil {
		clearOrSet = textPtr(*target)
	}
	var patch MeetingPatch
	switch field {
	case "status":
		if target == nil {
			return eris.Wrap(lifecycle.ErrInvalidValue, "status history entry has no previous value")
		}
		patch.Status = *target
	case "video_url":
		patch.VideoURL = clearOrSet
	case "minutes_text":
		patch.MinutesText = clearOrSet
	case "minutes_override":
		patch.MinutesOverride = clearOrSet
	default:
		return eris.Wrapf(lifecycle.ErrUnknownField, "meeting field %q", field)
	}
	_, err = e.updateMeeting(ctx, tx, id, patch, actorID)
	return err
}

func validOwnerKind(kind string) error {
	switch kind {
	case domain.OwnerMeeting, domain.OwnerItem, domain.OwnerOrdinance:
		return nil
	}
	return eris.Wrapf(lifecycle.ErrInvalidValue, "owner kind %q", kind)
}
