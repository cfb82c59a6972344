package engine

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"

	"docketline/internal/calendar"
	"docketline/internal/config"
	"docketline/internal/domain"
	"docketline/internal/events"
	"docketline/internal/history"
	"docketline/internal/lifecycle"
	"docketline/internal/repo"
)

// ErrInvalidTransition is returned for a status change the state machine forbids.
var ErrInvalidTransition = eris.New("invalid transition")

// Engine runs every tracked mutation inside one transaction with its history and event rows.
type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	History  history.Recorder
	Calendar calendar.Lookup
	Config   *config.Config
	Now      func() time.Time
}

// New wires an Engine over db.
func New(db *sql.DB, cfg *config.Config) Engine {
	r := repo.Repo{DB: db}
	return Engine{
		DB:       db,
		Repo:     r,
		Events:   events.Writer{},
		History:  history.Recorder{Repo: r},
		Calendar: calendar.Lookup{Repo: r, Config: cfg},
		Config:   cfg,
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

// today is the current instant in the municipal timezone.
func (e Engine) today() time.Time {
	if e.Config == nil {
		return e.now()
	}
	return e.now().In(e.Config.Location())
}

// Today returns the municipal calendar date.
func (e Engine) Today() string {
	return e.today().Format(domain.DateLayout)
}

// eventWriter and recorder share the engine clock.
func (e Engine) eventWriter() events.Writer {
	w := e.Events
	w.Now = e.now
	return w
}

func (e Engine) recorder() history.Recorder {
	h := e.History
	if h.Repo.DB == nil {
		h.Repo = e.Repo
	}
	h.Now = e.now
	return h
}

func (e Engine) requireConfig() error {
	if e.Config == nil {
		return eris.New("config not loaded")
	}
	return nil
}

func (e Engine) begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "begin transaction")
	}
	return tx, nil
}

func commit(tx *sql.Tx) error {
	return eris.Wrap(tx.Commit(), "commit transaction")
}

var itemStatuses = map[string]bool{
	domain.ItemNew:       true,
	domain.ItemReviewed:  true,
	domain.ItemAccepted:  true,
	domain.ItemNeedsInfo: true,
	domain.ItemRejected:  true,
	domain.ItemOnAgenda:  true,
}

func ensureItemTransition(oldStatus, newStatus string, force bool) error {
	if !itemStatuses[newStatus] {
		return eris.Wrapf(lifecycle.ErrInvalidValue, "item status %q", newStatus)
	}
	if force || oldStatus == newStatus || newStatus == domain.ItemNew {
		return nil
	}
	switch oldStatus {
	case domain.ItemNew:
		if newStatus == domain.ItemReviewed || newStatus == domain.ItemRejected {
			return nil
		}
	case domain.ItemReviewed:
		if newStatus == domain.ItemAccepted || newStatus == domain.ItemNeedsInfo || newStatus == domain.ItemRejected {
			return nil
		}
	case domain.ItemNeedsInfo:
		if newStatus == domain.ItemAccepted || newStatus == domain.ItemRejected || newStatus == domain.ItemReviewed {
			return nil
		}
	case domain.ItemAccepted:
		if newStatus == domain.ItemOnAgenda {
			return nil
		}
	case domain.ItemOnAgenda:
		if newStatus == domain.ItemAccepted {
			return nil
		}
	}
	return eris.Wrapf(ErrInvalidTransition, "item status %s -> %s", oldStatus, newStatus)
}

var meetingOrder = map[string]int{
	domain.MeetingUpcoming:   0,
	domain.MeetingInProgress: 1,
	domain.MeetingCompleted:  2,
}

// ensureMeetingTransition only lets a meeting move forward.
func ensureMeetingTransition(oldStatus, newStatus string) error {
	to, ok := meetingOrder[newStatus]
	if !ok {
		return eris.Wrapf(lifecycle.ErrInvalidValue, "meeting status %q", newStatus)
	}
	if to < meetingOrder[oldStatus] {
		return eris.Wrapf(ErrInvalidTransition, "meeting status %s -> %s", oldStatus, newStatus)
	}
	return nil
}

func validDate(field string, v *string) error {
	if v == nil || *v == "" {
		return nil
	}
	if _, err := lifecycle.ParseDate(*v); err != nil {
		return eris.Wrap(err, field)
	}
	return nil
}

// emptyToNil turns a "clear" request into a nil pointer.
func emptyToNil(v *string) *string {
	if v == nil || *v == "" {
		return nil
	}
	s := *v
	return &s
}

func change(field string, oldV, newV *string) domain.FieldChange {
	return domain.FieldChange{Field: field, Old: oldV, New: newV}
}

func textPtr(s string) *string {
	return &s
}

func effective(changes []domain.FieldChange) []domain.FieldChange {
	var out []domain.FieldChange
	for _, c := range changes {
		if !history.Equal(c.Old, c.New) {
			out = append(out, c)
		}
	}
	return out
}
