package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docketline/internal/db"
	"docketline/internal/domain"
	"docketline/internal/migrate"
	"docketline/internal/repo"
)

func newRecorder(t *testing.T) Recorder {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	return Recorder{
		Repo: repo.Repo{DB: conn},
		Now:  func() time.Time { return time.Date(2026, 2, 11, 20, 0, 0, 0, time.UTC) },
	}
}

func sp(s string) *string { return &s }

func TestRecordSkipsNoOps(t *testing.T) {
	r := newRecorder(t)
	ctx := context.Background()

	n, err := r.RecordAll(ctx, nil, domain.OwnerOrdinance, "ord-1", []domain.FieldChange{
		{Field: "hearing_date", Old: nil, New: sp("2026-01-28")},
		{Field: "clerk_notes", Old: nil, New: sp("")},
		{Field: "adoption_vote", Old: sp("5-0"), New: sp("5-0")},
	}, "clerk")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	entries, err := r.List(ctx, domain.OwnerOrdinance, "ord-1", "", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "hearing_date", entries[0].Field)
	assert.Equal(t, "clerk", entries[0].ActorID)
	assert.Equal(t, "2026-02-11T20:00:00Z", entries[0].TS)
}

func TestLatestPerField(t *testing.T) {
	r := newRecorder(t)
	ctx := context.Background()

	_, ok, err := r.Latest(ctx, nil, domain.OwnerItem, "item-1", "status")
	require.NoError(t, err)
	assert.False(t, ok)

	for _, step := range [][2]string{{"new", "reviewed"}, {"reviewed", "accepted"}} {
		_, err := r.Record(ctx, nil, domain.OwnerItem, "item-1", "status", sp(step[0]), sp(step[1]), "clerk")
		require.NoError(t, err)
	}
	_, err = r.Record(ctx, nil, domain.OwnerItem, "item-1", "summary_override", nil, sp("Short text"), "clerk")
	require.NoError(t, err)

	last, ok, err := r.Latest(ctx, nil, domain.OwnerItem, "item-1", "status")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "reviewed", *last.OldValue)
	assert.Equal(t, "accepted", *last.NewValue)

	entries, err := r.List(ctx, domain.OwnerItem, "item-1", "status", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, last.ID, entries[0].ID)
}

func TestOverrideFieldsAndEquality(t *testing.T) {
	assert.True(t, IsOverride(domain.OwnerItem, "summary_override"))
	assert.True(t, IsOverride(domain.OwnerMeeting, "minutes_override"))
	assert.False(t, IsOverride(domain.OwnerMeeting, "minutes_text"))
	assert.False(t, IsOverride(domain.OwnerOrdinance, "clerk_notes"))

	assert.True(t, Equal(nil, sp("")))
	assert.False(t, Equal(nil, sp("x")))
}
