// Package calendar materializes the configured meeting schedule and answers
// date and role lookups against it.
package calendar

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"docketline/internal/config"
	"docketline/internal/domain"
	"docketline/internal/events"
	"docketline/internal/repo"
)

// Generator inserts meetings from the configured schedule.
type Generator struct {
	DB      *sql.DB
	Repo    repo.Repo
	Events  events.Writer
	Now     func() time.Time
	ActorID string
}

func NewGenerator(db *sql.DB) Generator {
	return Generator{
		DB:      db,
		Repo:    repo.Repo{DB: db},
		Events:  events.Writer{Now: time.Now},
		Now:     time.Now,
		ActorID: "system",
	}
}

// Ensure inserts every scheduled meeting missing from the calendar and
// returns how many were created. Meetings already present are left as they are.
func (g Generator) Ensure(ctx context.Context, schedule []config.ScheduleEntry) (int, error) {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	actor := g.ActorID
	if actor == "" {
		actor = "system"
	}

	tx, err := g.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "calendar: begin")
	}
	defer tx.Rollback()

	created := 0
	for _, s := range schedule {
		cycle, err := cycleDate(s)
		if err != nil {
			return 0, err
		}
		ok, err := g.Repo.InsertMeetingIfAbsent(ctx, tx, domain.Meeting{
			Type:      s.Type,
			Date:      s.Date,
			Time:      s.Time,
			CycleDate: cycle,
			Status:    domain.MeetingUpcoming,
			CreatedAt: ts,
			UpdatedAt: ts,
		})
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		created++
		m, err := g.Repo.GetMeetingByTypeDate(ctx, tx, s.Type, s.Date)
		if err != nil {
			return 0, err
		}
		if err := g.Events.Append(ctx, tx, "meeting.created", domain.OwnerMeeting, meetingID(m.ID), actor, events.EventPayload{
			"meeting_type": m.Type,
			"meeting_date": m.Date,
		}); err != nil {
			return 0, err
		}
	}
	if created > 0 {
		if err := g.Events.Append(ctx, tx, "calendar.ensured", "calendar", "", actor, events.EventPayload{
			"created":   created,
			"scheduled": len(schedule),
		}); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "calendar: commit")
	}
	zap.L().Info("calendar ensured", zap.Int("scheduled", len(schedule)), zap.Int("created", created))
	return created, nil
}

// cycleDate returns the entry's cycle, defaulting to the Monday of its week.
func cycleDate(s config.ScheduleEntry) (string, error) {
	if s.Cycle != "" {
		return s.Cycle, nil
	}
	d, err := time.Parse(domain.DateLayout, s.Date)
	if err != nil {
		return "", eris.Wrapf(err, "calendar: schedule date %q", s.Date)
	}
	back := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -back).Format(domain.DateLayout), nil
}
