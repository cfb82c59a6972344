package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"docketline/internal/domain"
)

// Config models docketline.yml.
type Config struct {
	Municipality struct {
		Name     string `yaml:"name"`
		Timezone string `yaml:"timezone"`
	} `yaml:"municipality"`
	MeetingKinds map[string]MeetingKind `yaml:"meeting_kinds"`
	Ordinance    struct {
		ItemTypes []string `yaml:"item_types"`
	} `yaml:"ordinance"`
	Schedule  []ScheduleEntry `yaml:"schedule"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Webhooks  []WebhookConfig `yaml:"webhooks"`
	Server    struct {
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`
	Log LogConfig `yaml:"log"`
}

// MeetingKind maps a legislative meeting type to its ordinance role.
type MeetingKind struct {
	Label string      `yaml:"label"`
	Role  domain.Role `yaml:"role"`
}

// ScheduleEntry is one meeting of the legislative year.
type ScheduleEntry struct {
	Date  string `yaml:"date"`
	Time  string `yaml:"time"`
	Type  string `yaml:"type"`
	Cycle string `yaml:"cycle,omitempty"`
}

type SchedulerConfig struct {
	Enabled      bool   `yaml:"enabled"`
	CalendarSpec string `yaml:"calendar_spec"`
	StatusSpec   string `yaml:"status_spec"`
	NotifySpec   string `yaml:"notify_spec"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret"`
	Events         []string `yaml:"events"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, eris.Errorf("config %s not found; create one with dl config init", path)
		}
		return nil, eris.Wrap(err, "config: read file")
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if len(c.MeetingKinds) == 0 {
		return eris.New("config.meeting_kinds is required")
	}
	var intro, hearing bool
	for kind, mk := range c.MeetingKinds {
		if strings.TrimSpace(kind) == "" {
			return eris.New("config.meeting_kinds contains empty kind")
		}
		switch mk.Role {
		case domain.RoleIntroduction:
			intro = true
		case domain.RoleHearing:
			hearing = true
		case domain.RoleNone:
		default:
			return eris.Errorf("meeting kind %s has invalid role %q", kind, mk.Role)
		}
	}
	if !intro || !hearing {
		return eris.New("config.meeting_kinds needs an introduction kind and a hearing kind")
	}
	if len(c.Ordinance.ItemTypes) == 0 {
		return eris.New("config.ordinance.item_types is required")
	}
	for i, s := range c.Schedule {
		if _, ok := c.MeetingKinds[s.Type]; !ok {
			return eris.Errorf("schedule[%d] has unknown meeting type %s", i, s.Type)
		}
		if _, err := time.Parse(domain.DateLayout, s.Date); err != nil {
			return eris.Errorf("schedule[%d] has invalid date %q", i, s.Date)
		}
		if _, err := time.Parse("15:04", s.Time); err != nil {
			return eris.Errorf("schedule[%d] has invalid time %q", i, s.Time)
		}
		if s.Cycle != "" {
			if _, err := time.Parse(domain.DateLayout, s.Cycle); err != nil {
				return eris.Errorf("schedule[%d] has invalid cycle %q", i, s.Cycle)
			}
		}
	}
	if c.Municipality.Timezone != "" {
		if _, err := time.LoadLocation(c.Municipality.Timezone); err != nil {
			return eris.Wrapf(err, "config.municipality.timezone %s", c.Municipality.Timezone)
		}
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return eris.Errorf("webhooks[%d] is missing url", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "docketline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(municipality string) string {
	return fmt.Sprintf(defaultTemplate, municipality)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(""), nil
		}
		return nil, eris.Wrap(err, "config: read file")
	}
	return FromYAML(data)
}

// Default returns the default Config for a municipality.
func Default(municipality string) *Config {
	if municipality == "" {
		municipality = "Township Clerk"
	}
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(GenerateDefault(municipality))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, eris.Wrap(err, "invalid config yaml")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read %s", path)
	}
	return FromYAML(data)
}

// Roles returns the meeting kind to role table.
func (c *Config) Roles() map[string]domain.Role {
	out := make(map[string]domain.Role, len(c.MeetingKinds))
	for kind, mk := range c.MeetingKinds {
		out[kind] = mk.Role
	}
	return out
}

// KindsWithRole lists meeting kinds playing role, sorted.
func (c *Config) KindsWithRole(role domain.Role) []string {
	var kinds []string
	for kind, mk := range c.MeetingKinds {
		if mk.Role == role {
			kinds = append(kinds, kind)
		}
	}
	sort.Strings(kinds)
	return kinds
}

// Label is the human-readable name of a meeting kind.
func (c *Config) Label(kind string) string {
	if mk, ok := c.MeetingKinds[kind]; ok && mk.Label != "" {
		return mk.Label
	}
	return cases.Title(language.English).String(strings.ReplaceAll(kind, "_", " "))
}

// IsOrdinanceType reports whether itemType belongs to the ordinance family.
func (c *Config) IsOrdinanceType(itemType string) bool {
	for _, t := range c.Ordinance.ItemTypes {
		if t == itemType {
			return true
		}
	}
	return false
}

// Location is the municipal timezone used to decide what "today" is.
func (c *Config) Location() *time.Location {
	if c.Municipality.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Municipality.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

const defaultTemplate = `municipality:
  name: %s
  timezone: America/New_York

meeting_kinds:
  work_session:
    label: Work Session
    role: introduction
  regular:
    label: Regular Meeting
    role: hearing
  reorganization:
    label: Reorganization Meeting

ordinance:
  item_types: [ordinance_new, ordinance_amendment]

scheduler:
  enabled: true
  calendar_spec: "@daily"
  status_spec: "*/15 * * * *"
  notify_spec: "@every 30s"

server:
  cors_origins: ["http://localhost:5173"]

log:
  level: info
  format: console

schedule:
  - {date: "2026-01-05", time: "19:00", type: reorganization, cycle: "2026-01-05"}
  - {date: "2026-01-12", time: "19:00", type: work_session, cycle: "2026-01-12"}
  - {date: "2026-01-14", time: "19:30", type: regular, cycle: "2026-01-12"}
  - {date: "2026-01-26", time: "19:00", type: work_session, cycle: "2026-01-26"}
  - {date: "2026-01-28", time: "19:30", type: regular, cycle: "2026-01-26"}
  - {date: "2026-02-09", time: "19:00", type: work_session, cycle: "2026-02-09"}
  - {date: "2026-02-11", time: "19:30", type: regular, cycle: "2026-02-09"}
  - {date: "2026-02-23", time: "19:00", type: work_session, cycle: "2026-02-23"}
  - {date: "2026-02-25", time: "19:30", type: regular, cycle: "2026-02-23"}
  - {date: "2026-03-09", time: "19:00", type: work_session, cycle: "2026-03-09"}
  - {date: "2026-03-11", time: "19:30", type: regular, cycle: "2026-03-09"}
  - {date: "2026-03-23", time: "19:00", type: work_session, cycle: "2026-03-23"}
  - {date: "2026-03-25", time: "19:30", type: regular, cycle: "2026-03-23"}
  - {date: "2026-04-06", time: "19:00", type: work_session, cycle: "2026-04-06"}
  - {date: "2026-04-08", time: "19:30", type: regular, cycle: "2026-04-06"}
  - {date: "2026-04-20", time: "19:00", type: work_session, cycle: "2026-04-20"}
  - {date: "2026-04-22", time: "19:30", type: regular, cycle: "2026-04-20"}
  - {date: "2026-05-04", time: "19:00", type: work_session, cycle: "2026-05-04"}
  - {date: "2026-05-06", time: "19:30", type: regular, cycle: "2026-05-04"}
  - {date: "2026-05-18", time: "19:00", type: work_session, cycle: "2026-05-18"}
  - {date: "2026-05-20", time: "19:30", type: regular, cycle: "2026-05-18"}
  - {date: "2026-06-01", time: "19:00", type: work_session, cycle: "2026-06-01"}
  - {date: "2026-06-03", time: "19:30", type: regular, cycle: "2026-06-01"}
  - {date: "2026-06-15", time: "19:00", type: work_session, cycle: "2026-06-15"}
  - {date: "2026-06-17", time: "19:30", type: regular, cycle: "2026-06-15"}
  - {date: "2026-06-29", time: "19:00", type: work_session, cycle: "2026-06-29"}
  - {date: "2026-07-01", time: "19:30", type: regular, cycle: "2026-06-29"}
  - {date: "2026-07-13", time: "19:00", type: work_session, cycle: "2026-07-13"}
  - {date: "2026-07-15", time: "19:30", type: regular, cycle: "2026-07-13"}
  - {date: "2026-07-27", time: "19:00", type: work_session, cycle: "2026-07-27"}
  - {date: "2026-07-29", time: "19:30", type: regular, cycle: "2026-07-27"}
  - {date: "2026-08-10", time: "19:00", type: work_session, cycle: "2026-08-10"}
  - {date: "2026-08-12", time: "19:30", type: regular, cycle: "2026-08-10"}
  - {date: "2026-08-24", time: "19:00", type: work_session, cycle: "2026-08-24"}
  - {date: "2026-08-26", time: "19:30", type: regular, cycle: "2026-08-24"}
  - {date: "2026-09-07", time: "19:00", type: work_session, cycle: "2026-09-07"}
  - {date: "2026-09-09", time: "19:30", type: regular, cycle: "2026-09-07"}
  - {date: "2026-09-21", time: "19:00", type: work_session, cycle: "2026-09-21"}
  - {date: "2026-09-23", time: "19:30", type: regular, cycle: "2026-09-21"}
  - {date: "2026-10-05", time: "19:00", type: work_session, cycle: "2026-10-05"}
  - {date: "2026-10-07", time: "19:30", type: regular, cycle: "2026-10-05"}
  - {date: "2026-10-19", time: "19:00", type: work_session, cycle: "2026-10-19"}
  - {date: "2026-10-21", time: "19:30", type: regular, cycle: "2026-10-19"}
  - {date: "2026-11-02", time: "19:00", type: work_session, cycle: "2026-11-02"}
  - {date: "2026-11-04", time: "19:30", type: regular, cycle: "2026-11-02"}
  - {date: "2026-11-16", time: "19:00", type: work_session, cycle: "2026-11-16"}
  - {date: "2026-11-18", time: "19:30", type: regular, cycle: "2026-11-16"}
  - {date: "2026-11-30", time: "19:00", type: work_session, cycle: "2026-11-30"}
  - {date: "2026-12-02", time: "19:30", type: regular, cycle: "2026-11-30"}
  - {date: "2026-12-14", time: "19:00", type: work_session, cycle: "2026-12-14"}
  - {date: "2026-12-16", time: "19:30", type: regular, cycle: "2026-12-14"}
  - {date: "2026-12-28", time: "19:00", type: work_session, cycle: "2026-12-28"}
  - {date: "2026-12-30", time: "19:30", type: regular, cycle: "2026-12-28"}
`
