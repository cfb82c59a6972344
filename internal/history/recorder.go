// Package history keeps the field-level audit trail that reverts replay.
package history

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"

	"docketline/internal/domain"
	"docketline/internal/repo"
)

// Recorder writes and reads history rows.
type Recorder struct {
	Repo repo.Repo
	Now  func() time.Time
}

// overrideFields revert to "no override" rather than to their previous value.
var overrideFields = map[string]map[string]bool{
	domain.OwnerItem:    {"summary_override": true},
	domain.OwnerMeeting: {"minutes_override": true},
}

// IsOverride reports whether field is a free-text override of an owner kind.
func IsOverride(ownerKind, field string) bool {
	return overrideFields[ownerKind][field]
}

// Equal treats nil and the empty string as the same value.
func Equal(a, b *string) bool {
	av, bv := "", ""
	if a != nil {
		av = *a
	}
	if b != nil {
		bv = *b
	}
	return av == bv
}

// Record appends an entry unless oldV and newV are equal. It reports whether a row was written.
func (r Recorder) Record(ctx context.Context, tx *sql.Tx, ownerKind, ownerID, field string, oldV, newV *string, actorID string) (bool, error) {
	if Equal(oldV, newV) {
		return false, nil
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	_, err := r.Repo.InsertHistory(ctx, tx, domain.HistoryEntry{
		OwnerKind: ownerKind,
		OwnerID:   ownerID,
		Field:     field,
		OldValue:  oldV,
		NewValue:  newV,
		ActorID:   actorID,
		TS:        now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// RecordAll records every change and returns the number of rows written.
func (r Recorder) RecordAll(ctx context.Context, tx *sql.Tx, ownerKind, ownerID string, changes []domain.FieldChange, actorID string) (int, error) {
	n := 0
	for _, c := range changes {
		ok, err := r.Record(ctx, tx, ownerKind, ownerID, c.Field, c.Old, c.New, actorID)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// Latest returns the newest entry for a field, or false when it has none.
func (r Recorder) Latest(ctx context.Context, tx *sql.Tx, ownerKind, ownerID, field string) (domain.HistoryEntry, bool, error) {
	h, err := r.Repo.LatestHistory(ctx, tx, ownerKind, ownerID, field)
	if eris.Is(err, repo.ErrNotFound) {
		return h, false, nil
	}
	if err != nil {
		return h, false, err
	}
	return h, true, nil
}

// List returns an owner's history newest first. field and limit are optional.
func (r Recorder) List(ctx context.Context, ownerKind, ownerID, field string, limit int) ([]domain.HistoryEntry, error) {
	return r.Repo.ListHistory(ctx, nil, repo.HistoryFilters{
		OwnerKind: ownerKind,
		OwnerID:   ownerID,
		Field:     field,
		Limit:     limit,
	})
}
