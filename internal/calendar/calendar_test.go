package calendar_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docketline/internal/calendar"
	"docketline/internal/config"
	"docketline/internal/db"
	"docketline/internal/domain"
	"docketline/internal/migrate"
	"docketline/internal/repo"
)

type testEnv struct {
	DB     *sql.DB
	Gen    calendar.Generator
	Lookup calendar.Lookup
	Config *config.Config
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	cfg := config.Default("Springfield")
	gen := calendar.NewGenerator(conn)
	gen.Now = func() time.Time { return time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC) }
	return testEnv{
		DB:     conn,
		Gen:    gen,
		Lookup: calendar.Lookup{Repo: repo.Repo{DB: conn}, Config: cfg},
		Config: cfg,
		Ctx:    context.Background(),
	}
}

func TestEnsureIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	created, err := env.Gen.Ensure(env.Ctx, env.Config.Schedule)
	require.NoError(t, err)
	assert.Equal(t, len(env.Config.Schedule), created)

	created, err = env.Gen.Ensure(env.Ctx, env.Config.Schedule)
	require.NoError(t, err)
	assert.Zero(t, created)

	n, err := env.Lookup.Repo.CountMeetings(env.Ctx)
	require.NoError(t, err)
	assert.Equal(t, len(env.Config.Schedule), n)
}

func TestEnsureLeavesExistingMeetingsAlone(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Gen.Ensure(env.Ctx, env.Config.Schedule)
	require.NoError(t, err)

	m, ok, err := env.Lookup.Get(env.Ctx, nil, "regular", "2026-01-14")
	require.NoError(t, err)
	require.True(t, ok)
	video := "https://video.example.org/2026-01-14"
	m.Status = domain.MeetingCompleted
	m.VideoURL = &video
	require.NoError(t, env.Lookup.Repo.UpdateMeeting(env.Ctx, nil, m))

	moved := []config.ScheduleEntry{{Date: "2026-01-14", Time: "18:00", Type: "regular"}}
	created, err := env.Gen.Ensure(env.Ctx, moved)
	require.NoError(t, err)
	assert.Zero(t, created)

	got, _, err := env.Lookup.Get(env.Ctx, nil, "regular", "2026-01-14")
	require.NoError(t, err)
	assert.Equal(t, domain.MeetingCompleted, got.Status)
	assert.Equal(t, "19:30", got.Time)
	require.NotNil(t, got.VideoURL)
	assert.Equal(t, video, *got.VideoURL)
}

func TestEnsureDefaultsCycleToMonday(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Gen.Ensure(env.Ctx, []config.ScheduleEntry{
		{Date: "2026-03-19", Time: "19:00", Type: "regular"},
		{Date: "2026-03-22", Time: "10:00", Type: "work_session"},
	})
	require.NoError(t, err)

	thu, _, err := env.Lookup.Get(env.Ctx, nil, "regular", "2026-03-19")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-16", thu.CycleDate)
	sun, _, err := env.Lookup.Get(env.Ctx, nil, "work_session", "2026-03-22")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-16", sun.CycleDate)
}

func TestLookups(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Gen.Ensure(env.Ctx, env.Config.Schedule)
	require.NoError(t, err)

	_, ok, err := env.Lookup.Get(env.Ctx, nil, "regular", "2026-01-13")
	require.NoError(t, err)
	assert.False(t, ok)

	on, err := env.Lookup.MeetingsOn(env.Ctx, nil, "2026-01-12")
	require.NoError(t, err)
	require.Len(t, on, 1)
	assert.Equal(t, "Work Session", on[0].Label)
	assert.Equal(t, domain.RoleIntroduction, on[0].Role)

	ws, ok, err := env.Lookup.NextOfTypeAfter(env.Ctx, nil, "work_session", "2026-01-28", 10)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2026-02-09", ws.Date)

	// The 02-09 work session is not hearing-capable.
	h, ok, err := env.Lookup.NextWithRole(env.Ctx, nil, domain.RoleHearing, "2026-01-28", 10)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2026-02-11", h.Date)
	assert.Equal(t, "regular", h.Type)

	_, ok, err = env.Lookup.NextOfTypeAfter(env.Ctx, nil, "regular", "2026-12-30", 10)
	require.NoError(t, err)
	assert.False(t, ok)

	list, err := env.Lookup.List(env.Ctx, nil, calendar.Filter{Type: "regular", From: "2026-02-01", To: "2026-02-28"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "2026-02-11", list[0].Date)
	assert.Equal(t, "2026-02-25", list[1].Date)

	_, err = env.Lookup.List(env.Ctx, nil, calendar.Filter{From: "Feb 1"})
	require.Error(t, err)

	next, ok, err := env.Lookup.Next(env.Ctx, nil, "", "2026-01-13")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2026-01-14", next.Date)
}
