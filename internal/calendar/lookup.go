package calendar

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"docketline/internal/config"
	"docketline/internal/domain"
	"docketline/internal/lifecycle"
	"docketline/internal/repo"
)

// Lookup reads the calendar. A nil tx reads outside any transaction.
type Lookup struct {
	Repo   repo.Repo
	Config *config.Config
}

func (l Lookup) decorate(m domain.Meeting) domain.Meeting {
	if l.Config == nil {
		m.Label = m.Type
		return m
	}
	m.Label = l.Config.Label(m.Type)
	m.Role = l.Config.MeetingKinds[m.Type].Role
	return m
}

func (l Lookup) decorateAll(ms []domain.Meeting) []domain.Meeting {
	for i := range ms {
		ms[i] = l.decorate(ms[i])
	}
	return ms
}

func (l Lookup) Get(ctx context.Context, tx *sql.Tx, meetingType, date string) (domain.Meeting, bool, error) {
	m, err := l.Repo.GetMeetingByTypeDate(ctx, tx, meetingType, date)
	if eris.Is(err, repo.ErrNotFound) {
		return domain.Meeting{}, false, nil
	}
	if err != nil {
		return domain.Meeting{}, false, err
	}
	return l.decorate(m), true, nil
}

func (l Lookup) ByID(ctx context.Context, tx *sql.Tx, id int64) (domain.Meeting, error) {
	m, err := l.Repo.GetMeeting(ctx, tx, id)
	if err != nil {
		return m, err
	}
	return l.decorate(m), nil
}

// MeetingsOn returns every meeting held on date, whatever its type.
func (l Lookup) MeetingsOn(ctx context.Context, tx *sql.Tx, date string) ([]domain.Meeting, error) {
	ms, err := l.Repo.ListMeetings(ctx, tx, repo.MeetingFilters{Date: date})
	if err != nil {
		return nil, err
	}
	return l.decorateAll(ms), nil
}

// NextOfTypeAfter returns the earliest meeting of meetingType dated at least
// minDays after from.
func (l Lookup) NextOfTypeAfter(ctx context.Context, tx *sql.Tx, meetingType, from string, minDays int) (domain.Meeting, bool, error) {
	minDate, err := lifecycle.AddDays(from, minDays)
	if err != nil {
		return domain.Meeting{}, false, err
	}
	m, err := l.Repo.NextMeetingOfType(ctx, tx, meetingType, minDate)
	if eris.Is(err, repo.ErrNotFound) {
		return domain.Meeting{}, false, nil
	}
	if err != nil {
		return domain.Meeting{}, false, err
	}
	return l.decorate(m), true, nil
}

// NextWithRole is NextOfTypeAfter across every kind carrying role.
func (l Lookup) NextWithRole(ctx context.Context, tx *sql.Tx, role domain.Role, from string, minDays int) (domain.Meeting, bool, error) {
	if l.Config == nil {
		return domain.Meeting{}, false, eris.New("calendar: config not loaded")
	}
	var (
		best  domain.Meeting
		found bool
	)
	for _, kind := range l.Config.KindsWithRole(role) {
		m, ok, err := l.NextOfTypeAfter(ctx, tx, kind, from, minDays)
		if err != nil {
			return domain.Meeting{}, false, err
		}
		if ok && (!found || m.Date < best.Date) {
			best, found = m, true
		}
	}
	return best, found, nil
}

// Suggester binds NextWithRole(hearing) to tx for lifecycle inference.
func (l Lookup) Suggester(ctx context.Context, tx *sql.Tx) lifecycle.Suggester {
	return func(from string, minDays int) (domain.Meeting, bool, error) {
		return l.NextWithRole(ctx, tx, domain.RoleHearing, from, minDays)
	}
}

type Filter struct {
	Type   string
	From   string
	To     string
	Status []string
	Limit  int
}

func (l Lookup) List(ctx context.Context, tx *sql.Tx, f Filter) ([]domain.Meeting, error) {
	for _, d := range []string{f.From, f.To} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(domain.DateLayout, d); err != nil {
			return nil, eris.Wrapf(lifecycle.ErrInvalidValue, "date %q", d)
		}
	}
	ms, err := l.Repo.ListMeetings(ctx, tx, repo.MeetingFilters{
		Type:   f.Type,
		From:   f.From,
		To:     f.To,
		Status: f.Status,
		Limit:  f.Limit,
	})
	if err != nil {
		return nil, err
	}
	return l.decorateAll(ms), nil
}

// Next returns the first meeting on or after today that has not completed.
// An empty meetingType matches any kind.
func (l Lookup) Next(ctx context.Context, tx *sql.Tx, meetingType, today string) (domain.Meeting, bool, error) {
	ms, err := l.Repo.ListMeetings(ctx, tx, repo.MeetingFilters{
		Type:   meetingType,
		From:   today,
		Status: []string{domain.MeetingUpcoming, domain.MeetingInProgress},
		Limit:  1,
	})
	if err != nil {
		return domain.Meeting{}, false, err
	}
	if len(ms) == 0 {
		return domain.Meeting{}, false, nil
	}
	return l.decorate(ms[0]), true, nil
}

func meetingID(id int64) string {
	return strconv.FormatInt(id, 10)
}
