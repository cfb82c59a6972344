package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"docketline/internal/domain"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default("Springfield")
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "Springfield", cfg.Municipality.Name)
	assert.Equal(t, domain.RoleIntroduction, cfg.MeetingKinds["work_session"].Role)
	assert.Equal(t, domain.RoleHearing, cfg.MeetingKinds["regular"].Role)
	assert.Equal(t, domain.RoleNone, cfg.MeetingKinds["reorganization"].Role)
	assert.Len(t, cfg.Schedule, 53)
	assert.Equal(t, ScheduleEntry{Date: "2026-01-05", Time: "19:00", Type: "reorganization", Cycle: "2026-01-05"}, cfg.Schedule[0])
	assert.True(t, cfg.IsOrdinanceType("ordinance_new"))
	assert.True(t, cfg.IsOrdinanceType("ordinance_amendment"))
	assert.False(t, cfg.IsOrdinanceType("resolution"))
	assert.Equal(t, "America/New_York", cfg.Location().String())
}

func TestKindsAndLabels(t *testing.T) {
	cfg := Default("")
	assert.Equal(t, []string{"regular"}, cfg.KindsWithRole(domain.RoleHearing))
	assert.Equal(t, []string{"work_session"}, cfg.KindsWithRole(domain.RoleIntroduction))
	assert.Equal(t, "Work Session", cfg.Label("work_session"))
	assert.Equal(t, "Reorganization Meeting", cfg.Label("reorganization"))
	assert.Equal(t, "Special Budget", cfg.Label("special_budget"))

	roles := cfg.Roles()
	assert.Equal(t, domain.RoleHearing, roles["regular"])
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		msg  string
	}{
		{
			name: "missing hearing role",
			yaml: `
meeting_kinds:
  council: {role: introduction}
ordinance: {item_types: [ordinance_new]}
`,
			msg: "introduction kind and a hearing kind",
		},
		{
			name: "unknown schedule type",
			yaml: `
meeting_kinds:
  council: {role: introduction}
  regular: {role: hearing}
ordinance: {item_types: [ordinance_new]}
schedule:
  - {date: "2026-01-05", time: "19:00", type: caucus}
`,
			msg: "unknown meeting type caucus",
		},
		{
			name: "bad date",
			yaml: `
meeting_kinds:
  council: {role: introduction}
  regular: {role: hearing}
ordinance: {item_types: [ordinance_new]}
schedule:
  - {date: "01/05/2026", time: "19:00", type: council}
`,
			msg: "invalid date",
		},
		{
			name: "bad role",
			yaml: `
meeting_kinds:
  council: {role: adoption}
  regular: {role: hearing}
ordinance: {item_types: [ordinance_new]}
`,
			msg: "invalid role",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromYAML([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestLoadFromWorkspace(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir)
	require.Error(t, err)

	cfg, err := LoadOptional(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Schedule)

	yaml := `
municipality: {name: Shelbyville, timezone: UTC}
meeting_kinds:
  council: {label: Council, role: introduction}
  reorganization: {role: hearing}
ordinance: {item_types: [ordinance_new]}
schedule:
  - {date: "2026-01-06", time: "18:00", type: council}
log: {level: debug, format: json}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docketline.yml"), []byte(yaml), 0o644))
	cfg, err = Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "Shelbyville", cfg.Municipality.Name)
	assert.Len(t, cfg.Schedule, 1)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	err := InitLogger(LogConfig{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}
