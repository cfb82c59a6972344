package engine

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"docketline/internal/calendar"
	"docketline/internal/config"
	"docketline/internal/domain"
	"docketline/internal/events"
	"docketline/internal/lifecycle"
	"docketline/internal/repo"
)

// MeetingPatch edits a meeting. For pointer fields nil leaves the value alone
// and "" clears it.
type MeetingPatch struct {
	Status          string
	VideoURL        *string
	MinutesText     *string
	MinutesOverride *string
}

func (e Engine) GetMeeting(ctx context.Context, id int64) (domain.Meeting, error) {
	return e.Calendar.ByID(ctx, nil, id)
}

func (e Engine) ListMeetings(ctx context.Context, f calendar.Filter) ([]domain.Meeting, error) {
	return e.Calendar.List(ctx, nil, f)
}

// NextMeeting returns the next meeting that has not completed, of any kind
// when meetingType is empty.
func (e Engine) NextMeeting(ctx context.Context, meetingType string) (domain.Meeting, bool, error) {
	return e.Calendar.Next(ctx, nil, meetingType, e.Today())
}

func (e Engine) UpdateMeeting(ctx context.Context, id int64, patch MeetingPatch, actorID string) (domain.Meeting, error) {
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.Meeting{}, err
	}
	defer tx.Rollback()

	m, err := e.updateMeeting(ctx, tx, id, patch, actorID)
	if err != nil {
		return m, err
	}
	if err := commit(tx); err != nil {
		return m, err
	}
	return m, nil
}

func (e Engine) updateMeeting(ctx context.Context, tx *sql.Tx, id int64, patch MeetingPatch, actorID string) (domain.Meeting, error) {
	m, err := e.Calendar.ByID(ctx, tx, id)
	if err != nil {
		return m, err
	}
	before := m
	if patch.Status != "" {
		if err := ensureMeetingTransition(m.Status, patch.Status); err != nil {
			return before, err
		}
		m.Status = patch.Status
	}
	if patch.VideoURL != nil {
		m.VideoURL = emptyToNil(patch.VideoURL)
	}
	if patch.MinutesText != nil {
		m.MinutesText = emptyToNil(patch.MinutesText)
	}
	if patch.MinutesOverride != nil {
		m.MinutesOverride = emptyToNil(patch.MinutesOverride)
	}

	changes := effective([]domain.FieldChange{
		change("status", textPtr(before.Status), textPtr(m.Status)),
		change("video_url", before.VideoURL, m.VideoURL),
		change("minutes_text", before.MinutesText, m.MinutesText),
		change("minutes_override", before.MinutesOverride, m.MinutesOverride),
	})
	if len(changes) == 0 {
		return before, nil
	}
	m.UpdatedAt = e.stamp()
	if err := e.Repo.UpdateMeeting(ctx, tx, m); err != nil {
		return before, err
	}
	ownerID := strconv.FormatInt(m.ID, 10)
	if _, err := e.recorder().RecordAll(ctx, tx, domain.OwnerMeeting, ownerID, changes, actorID); err != nil {
		return before, err
	}
	if err := e.eventWriter().Append(ctx, tx, "meeting.updated", domain.OwnerMeeting, ownerID, actorID, events.EventPayload{
		"meeting_type": m.Type,
		"meeting_date": m.Date,
		"changes":      changes,
	}); err != nil {
		return before, err
	}
	return m, nil
}

// EnsureCalendar materializes the configured schedule.
func (e Engine) EnsureCalendar(ctx context.Context, actorID string) (int, error) {
	if err := e.requireConfig(); err != nil {
		return 0, err
	}
	gen := calendar.Generator{
		DB:      e.DB,
		Repo:    e.Repo,
		Events:  e.eventWriter(),
		Now:     e.now,
		ActorID: actorID,
	}
	return gen.Ensure(ctx, e.Config.Schedule)
}

// ImportSchedule materializes meetings from an external schedule, such as a
// clerk's spreadsheet. Entries must use configured meeting kinds.
func (e Engine) ImportSchedule(ctx context.Context, entries []config.ScheduleEntry, actorID string) (int, error) {
	if err := e.requireConfig(); err != nil {
		return 0, err
	}
	check := *e.Config
	check.Schedule = entries
	if err := check.Validate(); err != nil {
		return 0, eris.Wrap(lifecycle.ErrInvalidValue, err.Error())
	}
	gen := calendar.Generator{
		DB:      e.DB,
		Repo:    e.Repo,
		Events:  e.eventWriter(),
		Now:     e.now,
		ActorID: actorID,
	}
	return gen.Ensure(ctx, entries)
}

// AdvanceMeetingStatuses moves past meetings to completed and today's
// meetings to in_progress. It never moves a meeting backward.
func (e Engine) AdvanceMeetingStatuses(ctx context.Context, actorID string) (int, error) {
	today := e.Today()
	tx, err := e.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	open, err := e.Repo.ListMeetings(ctx, tx, repo.MeetingFilters{
		To:     today,
		Status: []string{domain.MeetingUpcoming, domain.MeetingInProgress},
	})
	if err != nil {
		return 0, err
	}
	moved := 0
	for _, m := range open {
		status := domain.MeetingCompleted
		if m.Date == today {
			if m.Status != domain.MeetingUpcoming {
				continue
			}
			status = domain.MeetingInProgress
		}
		if _, err := e.updateMeeting(ctx, tx, m.ID, MeetingPatch{Status: status}, actorID); err != nil {
			return 0, eris.Wrapf(err, "advance meeting %d", m.ID)
		}
		moved++
	}
	if err := commit(tx); err != nil {
		return 0, err
	}
	if moved > 0 {
		zap.L().Info("meeting statuses advanced", zap.String("today", today), zap.Int("moved", moved))
	}
	return moved, nil
}
