package engine

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"docketline/internal/domain"
	"docketline/internal/events"
	"docketline/internal/lifecycle"
	"docketline/internal/repo"
)

// ItemCreateOptions are parameters for filing a docket item.
type ItemCreateOptions struct {
	ID                string
	Subject           string
	Submitter         string
	ItemType          string
	ExtractedFields   map[string]any
	Completeness      map[string]bool
	Attachments       []string
	Summary           string
	Status            string
	TargetMeetingDate string
	ActorID           string
}

func (e Engine) CreateItem(ctx context.Context, opts ItemCreateOptions) (domain.DocketItem, error) {
	if err := e.requireConfig(); err != nil {
		return domain.DocketItem{}, err
	}
	opts.ItemType = strings.TrimSpace(opts.ItemType)
	if opts.ItemType == "" {
		return domain.DocketItem{}, eris.Wrap(lifecycle.ErrInvalidValue, "item_type is required")
	}
	if opts.Status == "" {
		opts.Status = domain.ItemNew
	}
	if err := ensureItemTransition(domain.ItemNew, opts.Status, true); err != nil {
		return domain.DocketItem{}, err
	}
	target := emptyToNil(&opts.TargetMeetingDate)
	if err := validDate("target_meeting_date", target); err != nil {
		return domain.DocketItem{}, err
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := e.stamp()
	d := domain.DocketItem{
		ID:                id,
		Subject:           strings.TrimSpace(opts.Subject),
		Submitter:         opts.Submitter,
		ItemType:          opts.ItemType,
		ExtractedFields:   opts.ExtractedFields,
		Completeness:      opts.Completeness,
		Attachments:       opts.Attachments,
		Summary:           opts.Summary,
		Status:            opts.Status,
		TargetMeetingDate: target,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	tx, err := e.begin(ctx)
	if err != nil {
		return d, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertItem(ctx, tx, d); err != nil {
		return d, err
	}
	if err := e.eventWriter().Append(ctx, tx, "item.created", domain.OwnerItem, d.ID, opts.ActorID, events.EventPayload{
		"item_type": d.ItemType,
		"status":    d.Status,
		"subject":   d.Subject,
	}); err != nil {
		return d, err
	}
	if e.Config.IsOrdinanceType(d.ItemType) {
		if err := e.ensureTracking(ctx, tx, d, opts.ActorID); err != nil {
			return d, err
		}
		if domain.OnAgenda(d.Status) && d.TargetMeetingDate != nil {
			if err := e.infer(ctx, tx, d, opts.ActorID); err != nil {
				return d, err
			}
		}
	}
	if err := commit(tx); err != nil {
		return d, err
	}
	return d, nil
}

// ItemUpdateOptions patch a docket item. For pointer fields nil leaves the
// value alone and "" clears it.
type ItemUpdateOptions struct {
	ID                string
	Status            string
	TargetMeetingDate *string
	SummaryOverride   *string
	ActorID           string
	Force             bool
}

func (e Engine) UpdateItem(ctx context.Context, opts ItemUpdateOptions) (domain.DocketItem, error) {
	if err := e.requireConfig(); err != nil {
		return domain.DocketItem{}, err
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.DocketItem{}, err
	}
	defer tx.Rollback()

	d, err := e.updateItem(ctx, tx, opts)
	if err != nil {
		return d, err
	}
	if err := commit(tx); err != nil {
		return d, err
	}
	return d, nil
}

func (e Engine) updateItem(ctx context.Context, tx *sql.Tx, opts ItemUpdateOptions) (domain.DocketItem, error) {
	d, err := e.Repo.GetItem(ctx, tx, opts.ID)
	if err != nil {
		return d, err
	}
	before := d

	if opts.Status != "" {
		if err := ensureItemTransition(d.Status, opts.Status, opts.Force); err != nil {
			return before, err
		}
		d.Status = opts.Status
	}
	if opts.TargetMeetingDate != nil {
		target := emptyToNil(opts.TargetMeetingDate)
		if err := validDate("target_meeting_date", target); err != nil {
			return before, err
		}
		d.TargetMeetingDate = target
	}
	if opts.SummaryOverride != nil {
		d.SummaryOverride = emptyToNil(opts.SummaryOverride)
	}

	changes := effective([]domain.FieldChange{
		change("status", textPtr(before.Status), textPtr(d.Status)),
		change("target_meeting_date", before.TargetMeetingDate, d.TargetMeetingDate),
		change("summary_override", before.SummaryOverride, d.SummaryOverride),
	})
	if len(changes) == 0 {
		return before, nil
	}
	d.UpdatedAt = e.stamp()
	if err := e.Repo.UpdateItem(ctx, tx, d); err != nil {
		return before, err
	}
	if _, err := e.recorder().RecordAll(ctx, tx, domain.OwnerItem, d.ID, changes, opts.ActorID); err != nil {
		return before, err
	}
	if err := e.eventWriter().Append(ctx, tx, "item.updated", domain.OwnerItem, d.ID, opts.ActorID, events.EventPayload{
		"changes": changes,
		"force":   opts.Force,
	}); err != nil {
		return before, err
	}

	if e.shouldInfer(before, d) {
		if err := e.infer(ctx, tx, d, opts.ActorID); err != nil {
			return before, err
		}
	}
	return d, nil
}

// shouldInfer reports whether an update placed an ordinance item on a
// meeting agenda, either by entering the agenda set or by changing date while in it.
func (e Engine) shouldInfer(before, after domain.DocketItem) bool {
	if !e.Config.IsOrdinanceType(after.ItemType) {
		return false
	}
	if !domain.OnAgenda(after.Status) || after.TargetMeetingDate == nil {
		return false
	}
	if !domain.OnAgenda(before.Status) {
		return true
	}
	return before.TargetMeetingDate == nil || *before.TargetMeetingDate != *after.TargetMeetingDate
}

func (e Engine) GetItem(ctx context.Context, id string) (domain.DocketItem, error) {
	return e.Repo.GetItem(ctx, nil, id)
}

type ItemFilter struct {
	Status     []string
	TargetDate string
	Limit      int
}

func (e Engine) ListItems(ctx context.Context, f ItemFilter) ([]domain.DocketItem, error) {
	if err := validDate("date", &f.TargetDate); err != nil {
		return nil, err
	}
	return e.Repo.ListItems(ctx, nil, repo.ItemFilters{Status: f.Status, TargetDate: f.TargetDate, Limit: f.Limit})
}

// Agenda lists the items placed on the meetings held on date.
func (e Engine) Agenda(ctx context.Context, date string) ([]domain.DocketItem, error) {
	if _, err := lifecycle.ParseDate(date); err != nil {
		return nil, err
	}
	return e.Repo.AgendaItems(ctx, nil, date)
}

// MeetingAgenda returns a meeting together with its agenda.
func (e Engine) MeetingAgenda(ctx context.Context, id int64) (domain.Meeting, []domain.DocketItem, error) {
	m, err := e.Calendar.ByID(ctx, nil, id)
	if err != nil {
		return m, nil, err
	}
	items, err := e.Repo.AgendaItems(ctx, nil, m.Date)
	return m, items, err
}

func (e Engine) ensureTracking(ctx context.Context, tx *sql.Tx, d domain.DocketItem, actorID string) error {
	number := lifecycle.OrdinanceNumber(d.ExtractedFields, d.Attachments)
	created, err := e.Repo.EnsureTracking(ctx, tx, d.ID, number, e.stamp())
	if err != nil || !created {
		return err
	}
	payload := events.EventPayload{}
	if number != nil {
		payload["ordinance_number"] = *number
	}
	return e.eventWriter().Append(ctx, tx, "ordinance.tracking.created", domain.OwnerOrdinance, d.ID, actorID, payload)
}

// infer applies lifecycle inference for d's assignment to its target meeting date.
func (e Engine) infer(ctx context.Context, tx *sql.Tx, d domain.DocketItem, actorID string) error {
	if err := e.ensureTracking(ctx, tx, d, actorID); err != nil {
		return err
	}
	t, err := e.Repo.GetTracking(ctx, tx, d.ID)
	if err != nil {
		return err
	}
	date := *d.TargetMeetingDate
	meetings, err := e.Calendar.MeetingsOn(ctx, tx, date)
	if err != nil {
		return err
	}
	next, rule, err := lifecycle.Infer(t, lifecycle.Assignment{
		Date:     date,
		Meetings: meetings,
		Roles:    e.Config.Roles(),
		Label:    e.Config.Label,
		Suggest:  e.Calendar.Suggester(ctx, tx),
	})
	if err != nil {
		return err
	}
	changes := lifecycle.Diff(t, next)
	zap.L().Debug("ordinance inference",
		zap.String("docket_id", d.ID),
		zap.String("date", date),
		zap.Int("meetings", len(meetings)),
		zap.String("rule", string(rule)),
		zap.Int("changes", len(changes)),
	)
	if len(changes) == 0 {
		return nil
	}
	next.UpdatedAt = e.stamp()
	if err := e.Repo.UpdateTracking(ctx, tx, next); err != nil {
		return err
	}
	if _, err := e.recorder().RecordAll(ctx, tx, domain.OwnerOrdinance, d.ID, changes, actorID); err != nil {
		return err
	}
	return e.eventWriter().Append(ctx, tx, "ordinance.inferred", domain.OwnerOrdinance, d.ID, actorID, events.EventPayload{
		"rule":         string(rule),
		"meeting_date": date,
		"changes":      changes,
	})
}
