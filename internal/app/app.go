// Package app wires a workspace into a ready engine: config, logger,
// database, migrations and the meeting calendar.
package app

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"docketline/internal/config"
	"docketline/internal/db"
	"docketline/internal/engine"
	"docketline/internal/migrate"
)

// SystemActor is recorded on changes made while bootstrapping.
const SystemActor = "system"

type Options struct {
	// ConfigPath overrides <workspace>/docketline.yml.
	ConfigPath string
	// SkipCalendar leaves the meetings table untouched.
	SkipCalendar bool
	Now          func() time.Time
}

type Env struct {
	Workspace string
	DB        *sql.DB
	Config    *config.Config
	Engine    engine.Engine
}

// Open loads the workspace config, falling back to the built-in default,
// opens and migrates the database and ensures the configured calendar exists.
func Open(ctx context.Context, workspace string, opts Options) (*Env, error) {
	cfg, err := loadConfig(workspace, opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	e := engine.New(conn, cfg)
	if opts.Now != nil {
		e.Now = opts.Now
	}
	if !opts.SkipCalendar {
		created, err := e.EnsureCalendar(ctx, SystemActor)
		if err != nil {
			conn.Close()
			return nil, eris.Wrap(err, "app: ensure calendar")
		}
		if created > 0 {
			zap.L().Info("calendar materialized", zap.Int("created", created), zap.String("workspace", workspace))
		}
	}
	return &Env{Workspace: workspace, DB: conn, Config: cfg, Engine: e}, nil
}

func loadConfig(workspace, override string) (*config.Config, error) {
	if override != "" {
		return config.FromFile(override)
	}
	return config.LoadOptional(workspace)
}

func (e *Env) Close() error {
	_ = zap.L().Sync()
	return e.DB.Close()
}
