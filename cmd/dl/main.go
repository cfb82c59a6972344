package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"docketline/internal/app"
	"docketline/internal/calendar"
	"docketline/internal/config"
	"docketline/internal/db"
	"docketline/internal/domain"
	"docketline/internal/engine"
	"docketline/internal/lifecycle"
	"docketline/internal/notify"
	"docketline/internal/scheduler"
	"docketline/internal/server"
	"docketline/internal/workbook"
)

var rootCmd = &cobra.Command{
	Use:   "dl",
	Short: "Docketline CLI",
	Long: `Docketline keeps a municipal clerk's docket: the meeting calendar, docket items
and the statutory lifecycle of every ordinance.
- Calendar: meetings materialized from the configured schedule; work sessions
  introduce ordinances, regular meetings hear and adopt them.
- Items: docket submissions that move new -> reviewed -> accepted/on_agenda.
  Placing an ordinance on an agenda fills its introduction and suggests a hearing.
- Ordinances: a checklist of dates whose stage is derived, never stored.
- History: every field change is recorded and can be reverted.
- Event log: coarse activity feed, view with 'dl log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := db.EnsureWorkspace(viper.GetString("workspace"))
		return err
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("DOCKETLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", server.DefaultActor, "actor identifier")
	rootCmd.PersistentFlags().String("config", "", "config file (defaults to <workspace>/docketline.yml)")
	for _, name := range []string{"workspace", "json", "actor-id", "config"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(calendarCmd())
	rootCmd.AddCommand(itemCmd())
	rootCmd.AddCommand(agendaCmd())
	rootCmd.AddCommand(ordinanceCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(jobCmd())
	rootCmd.AddCommand(serveCmd())
}

// --- config ---

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage docketline.yml",
		Long:  "Config is the municipality's rulebook: meeting kinds and their ordinance roles, the ordinance item types, the annual schedule, jobs and webhooks.",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var municipality string
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(municipality)), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&municipality, "municipality", "Township Clerk", "municipality name")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := viper.GetString("config")
			var err error
			if path != "" {
				_, err = config.FromFile(path)
			} else {
				_, err = config.Load(viper.GetString("workspace"))
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

func loadConfig() (*config.Config, error) {
	if path := viper.GetString("config"); path != "" {
		return config.FromFile(path)
	}
	return config.LoadOptional(viper.GetString("workspace"))
}

// --- calendar ---

func calendarCmd() *cobra.Command {
	cal := &cobra.Command{Use: "calendar", Short: "Meeting calendar"}
	cal.AddCommand(calendarEnsureCmd())
	cal.AddCommand(calendarImportCmd())
	cal.AddCommand(calendarListCmd())
	cal.AddCommand(calendarNextCmd())
	return cal
}

func calendarEnsureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ensure",
		Short: "Create any configured meetings that are missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				created, err := e.EnsureCalendar(ctx, actorID())
				if err != nil {
					return err
				}
				total, err := e.Repo.CountMeetings(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]int{"created": created, "meetings": total})
				}
				fmt.Printf("created %d meetings (%d total)\n", created, total)
				return nil
			})
		},
	}
}

func calendarImportCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Create meetings from a schedule spreadsheet (date, time, type, cycle)",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := workbook.ReadSchedule(file)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				created, err := e.ImportSchedule(ctx, entries, actorID())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]int{"rows": len(entries), "created": created})
				}
				fmt.Printf("read %d rows, created %d meetings\n", len(entries), created)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "xlsx schedule")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func calendarListCmd() *cobra.Command {
	var f calendar.Filter
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List meetings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				f.Status = splitList(status)
				meetings, err := e.ListMeetings(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(meetings)
				}
				tw := newTable(table.Row{"ID", "Date", "Time", "Meeting", "Role", "Status"})
				for _, m := range meetings {
					tw.AppendRow(table.Row{m.ID, m.Date, m.Time, m.Label, m.Role, m.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Type, "type", "", "meeting type")
	cmd.Flags().StringVar(&f.From, "from", "", "first date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.To, "to", "", "last date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&status, "status", "", "comma separated statuses")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max meetings")
	return cmd
}

func calendarNextCmd() *cobra.Command {
	var meetingType string
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Show the next meeting that has not completed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, ok, err := e.NextMeeting(ctx, meetingType)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no upcoming meeting")
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&meetingType, "type", "", "meeting type")
	return cmd
}

// --- items ---

func itemCmd() *cobra.Command {
	item := &cobra.Command{Use: "item", Short: "Docket items"}
	item.AddCommand(itemCreateCmd())
	item.AddCommand(itemListCmd())
	item.AddCommand(itemShowCmd())
	item.AddCommand(itemUpdateCmd())
	return item
}

func itemCreateCmd() *cobra.Command {
	var opts engine.ItemCreateOptions
	var fields map[string]string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "File a docket item",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if len(fields) > 0 {
					opts.ExtractedFields = make(map[string]any, len(fields))
					for k, v := range fields {
						opts.ExtractedFields[k] = v
					}
				}
				opts.ActorID = actorID()
				d, err := e.CreateItem(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "item id (generated when empty)")
	cmd.Flags().StringVar(&opts.Subject, "subject", "", "subject")
	cmd.Flags().StringVar(&opts.ItemType, "type", "", "item type, e.g. ordinance_new or resolution")
	cmd.Flags().StringVar(&opts.Submitter, "submitter", "", "submitter")
	cmd.Flags().StringVar(&opts.Summary, "summary", "", "summary")
	cmd.Flags().StringSliceVar(&opts.Attachments, "attach", nil, "attachment filename (repeatable)")
	cmd.Flags().StringVar(&opts.Status, "status", "", "initial status")
	cmd.Flags().StringVar(&opts.TargetMeetingDate, "date", "", "target meeting date")
	cmd.Flags().StringToStringVar(&fields, "field", nil, "extracted field key=value (repeatable)")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func itemListCmd() *cobra.Command {
	var status, date string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List docket items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListItems(ctx, engine.ItemFilter{Status: splitList(status), TargetDate: date, Limit: limit})
				if err != nil {
					return err
				}
				return printItems(items)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "comma separated statuses")
	cmd.Flags().StringVar(&date, "date", "", "target meeting date")
	cmd.Flags().IntVar(&limit, "limit", 0, "max items")
	return cmd
}

func itemShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a docket item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.GetItem(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
}

func itemUpdateCmd() *cobra.Command {
	var status, date, summary string
	var force bool
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change status, target meeting date or summary override",
		Long:  "An empty --date or --summary-override clears the field. --force skips the status transition table.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.ItemUpdateOptions{ID: args[0], Status: status, Force: force, ActorID: actorID()}
			if cmd.Flags().Changed("date") {
				opts.TargetMeetingDate = &date
			}
			if cmd.Flags().Changed("summary-override") {
				opts.SummaryOverride = &summary
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.UpdateItem(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().StringVar(&date, "date", "", "target meeting date")
	cmd.Flags().StringVar(&summary, "summary-override", "", "clerk summary")
	cmd.Flags().BoolVar(&force, "force", false, "allow any status change")
	return cmd
}

func agendaCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "agenda",
		Short: "Items on the agenda of a meeting date",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if date == "" {
					date = e.Today()
				}
				items, err := e.Agenda(ctx, date)
				if err != nil {
					return err
				}
				return printItems(items)
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "meeting date (defaults to today)")
	return cmd
}

func printItems(items []domain.DocketItem) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable(table.Row{"ID", "Type", "Subject", "Status", "Meeting"})
	for _, d := range items {
		tw.AppendRow(table.Row{d.ID, d.ItemType, d.Subject, d.Status, deref(d.TargetMeetingDate)})
	}
	tw.Render()
	return nil
}

// --- ordinances ---

func ordinanceCmd() *cobra.Command {
	ord := &cobra.Command{
		Use:   "ordinance",
		Short: "Ordinance lifecycle tracking",
		Long:  "Fields: " + strings.Join(fieldNames(), ", "),
	}
	ord.AddCommand(ordinanceListCmd())
	ord.AddCommand(ordinanceShowCmd())
	ord.AddCommand(ordinanceSetCmd())
	ord.AddCommand(ordinanceClearCmd())
	ord.AddCommand(ordinanceExportCmd())
	return ord
}

func fieldNames() []string {
	var names []string
	for _, f := range lifecycle.Fields() {
		names = append(names, f.Name)
	}
	return names
}

func ordinanceListCmd() *cobra.Command {
	var stage string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ordinances with their derived stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				views, err := e.ListOrdinances(ctx, stage)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(views)
				}
				tw := newTable(table.Row{"Docket", "Number", "Subject", "Stage", "Introduced", "Hearing", "Adopted", "Effective", ""})
				for _, v := range views {
					flag := ""
					if v.HearingTooSoon {
						flag = "hearing < 10 days"
					}
					t := v.Tracking
					tw.AppendRow(table.Row{t.DocketID, deref(t.OrdinanceNumber), v.Subject, v.Stage,
						deref(t.IntroductionDate), deref(t.HearingDate), deref(t.AdoptionDate), deref(t.EffectiveDate), flag})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&stage, "stage", "", "stage label filter, e.g. \"Public Hearing\"")
	return cmd
}

func ordinanceShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <docket-id>",
		Short: "Show an ordinance tracking record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				v, err := e.GetOrdinance(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(v)
			})
		},
	}
}

func ordinanceSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <docket-id> field=value...",
		Short: "Set tracking fields",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			edit := lifecycle.Edit{Set: map[string]string{}}
			for _, arg := range args[1:] {
				name, value, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("expected field=value, got %q", arg)
				}
				edit.Set[strings.TrimSpace(name)] = value
			}
			return editOrdinance(cmd.Context(), args[0], edit)
		},
	}
}

func ordinanceClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <docket-id> field...",
		Short: "Clear tracking fields",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editOrdinance(cmd.Context(), args[0], lifecycle.Edit{Clear: args[1:]})
		},
	}
}

func editOrdinance(ctx context.Context, docketID string, edit lifecycle.Edit) error {
	return withEngine(ctx, func(ctx context.Context, e engine.Engine) error {
		v, err := e.EditOrdinance(ctx, docketID, edit, actorID())
		if err != nil {
			return err
		}
		return printJSONOrTable(v)
	})
}

func ordinanceExportCmd() *cobra.Command {
	var out, stage string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the ordinance register to an xlsx file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				views, err := e.ListOrdinances(ctx, stage)
				if err != nil {
					return err
				}
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				if err := workbook.WriteRegister(f, views); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Printf("wrote %d ordinances to %s\n", len(views), out)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "ordinances.xlsx", "output file")
	cmd.Flags().StringVar(&stage, "stage", "", "stage label filter")
	return cmd
}

// --- history ---

func historyCmd() *cobra.Command {
	h := &cobra.Command{
		Use:   "history",
		Short: "Field change history",
		Long:  "Kinds: meeting, item, ordinance. Meetings are addressed by numeric id, ordinances by docket item id.",
	}
	h.AddCommand(historyListCmd())
	h.AddCommand(historyRevertCmd())
	return h
}

func historyListCmd() *cobra.Command {
	var field string
	var limit int
	cmd := &cobra.Command{
		Use:   "list <kind> <id>",
		Short: "List recorded changes, newest first",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entries, err := e.History(ctx, ownerKind(args[0]), args[1], field, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := newTable(table.Row{"ID", "When", "Field", "Old", "New", "Actor"})
				for _, h := range entries {
					tw.AppendRow(table.Row{h.ID, h.TS, h.Field, deref(h.OldValue), deref(h.NewValue), h.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&field, "field", "", "only this field")
	cmd.Flags().IntVar(&limit, "limit", 50, "max entries")
	return cmd
}

func historyRevertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revert <kind> <id> <field>",
		Short: "Undo the latest change of a field",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.Revert(ctx, ownerKind(args[0]), args[1], args[2], actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
}

// ownerKind accepts the API collection names as well.
func ownerKind(arg string) string {
	switch arg {
	case "meetings":
		return domain.OwnerMeeting
	case "items":
		return domain.OwnerItem
	case "ordinances":
		return domain.OwnerOrdinance
	}
	return arg
}

// --- log ---

func logCmd() *cobra.Command {
	l := &cobra.Command{Use: "log", Short: "Event log"}
	l.AddCommand(logTailCmd())
	return l
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, n, 0, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := newTable(table.Row{"ID", "When", "Type", "Entity", "Actor"})
				for _, evt := range events {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, strings.TrimSuffix(evt.EntityKind+":"+evt.EntityID, ":"), evt.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

// --- jobs and serve ---

func jobCmd() *cobra.Command {
	j := &cobra.Command{Use: "job", Short: "Background jobs"}
	j.AddCommand(&cobra.Command{
		Use:   "run <name>",
		Short: "Run a job once (calendar, status or notify)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()
			sched, err := newScheduler(cmd.Context(), env)
			if err != nil {
				return err
			}
			if err := sched.RunOnce(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("ran", args[0])
			return nil
		},
	})
	return j
}

func newScheduler(ctx context.Context, env *app.Env) (*scheduler.Scheduler, error) {
	var dispatcher *notify.Dispatcher
	if len(env.Config.Webhooks) > 0 {
		dispatcher = notify.New(env.Engine.Repo, env.Config.Webhooks)
		if err := dispatcher.Prime(ctx); err != nil {
			return nil, err
		}
	}
	return scheduler.New(scheduler.Jobs(env.Engine, env.Config.Scheduler, dispatcher)...), nil
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var noJobs bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			env, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer env.Close()
			handler, err := server.New(server.Config{
				Engine:      env.Engine,
				BasePath:    basePath,
				Auth:        server.AuthConfig{JWTSecret: viper.GetString("jwt-secret")},
				CORSOrigins: env.Config.Server.CORSOrigins,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				zap.L().Info("serving API", zap.String("addr", addr), zap.String("base_path", basePath))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			if env.Config.Scheduler.Enabled && !noJobs {
				sched, err := newScheduler(ctx, env)
				if err != nil {
					return err
				}
				g.Go(func() error {
					if err := sched.Start(gctx); err != nil {
						return err
					}
					<-gctx.Done()
					sched.Stop()
					return nil
				})
			}
			fmt.Printf("Serving Docketline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&noJobs, "no-jobs", false, "do not run the scheduler")
	return cmd
}

// --- helpers ---

func openEnv(ctx context.Context) (*app.Env, error) {
	return app.Open(ctx, viper.GetString("workspace"), app.Options{ConfigPath: viper.GetString("config")})
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	env, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(ctx, env.Engine)
}

func actorID() string {
	if a := strings.TrimSpace(viper.GetString("actor-id")); a != "" {
		return a
	}
	return server.DefaultActor
}

func newTable(header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(header)
	return tw
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
