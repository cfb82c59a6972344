package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docketline/internal/config"
	"docketline/internal/db"
	"docketline/internal/domain"
	"docketline/internal/engine"
	"docketline/internal/migrate"
	"docketline/internal/notify"
)

func TestRunOnce(t *testing.T) {
	var calls atomic.Int32
	s := New(
		Job{Name: "count", Spec: "@hourly", Run: func(context.Context) error { calls.Add(1); return nil }},
		Job{Name: "broken", Spec: "@hourly", Run: func(context.Context) error { return errors.New("boom") }},
	)
	require.NoError(t, s.RunOnce(context.Background(), "count"))
	assert.EqualValues(t, 1, calls.Load())

	assert.EqualError(t, s.RunOnce(context.Background(), "broken"), "boom")

	err := s.RunOnce(context.Background(), "missing")
	assert.True(t, eris.Is(err, ErrUnknownJob))
	assert.Equal(t, []string{"broken", "count"}, s.Names())
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := New(Job{Name: "bad", Spec: "every tuesday", Run: func(context.Context) error { return nil }})
	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
}

func TestStartRunsAndStops(t *testing.T) {
	ran := make(chan struct{}, 1)
	s := New(Job{Name: "tick", Spec: "@every 1s", Run: func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	require.Error(t, s.Start(ctx))

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("job never ran")
	}
	cancel()
	s.Stop()
}

func TestStandardJobs(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))

	cfg := config.Default("Springfield")
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2026, 1, 13, 15, 0, 0, 0, time.UTC) }

	s := New(Jobs(eng, cfg.Scheduler, nil)...)
	assert.Equal(t, []string{JobCalendar, JobStatus}, s.Names())

	ctx := context.Background()
	require.NoError(t, s.RunOnce(ctx, JobCalendar))
	require.NoError(t, s.RunOnce(ctx, JobStatus))

	m, ok, err := eng.Calendar.Get(ctx, nil, "work_session", "2026-01-12")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.MeetingCompleted, m.Status)

	entries, err := eng.History(ctx, domain.OwnerMeeting, "", "status", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ActorID, entries[0].ActorID)

	withNotify := Jobs(eng, config.SchedulerConfig{NotifySpec: "@every 5m"}, notify.New(eng.Repo, nil))
	require.Len(t, withNotify, 3)
	assert.Equal(t, "@every 5m", withNotify[2].Spec)
	assert.Equal(t, DefaultStatusSpec, withNotify[1].Spec)
}
