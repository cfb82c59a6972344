// Package scheduler runs the periodic calendar, status and notification jobs.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"docketline/internal/config"
	"docketline/internal/engine"
	"docketline/internal/notify"
)

const (
	JobCalendar = "calendar"
	JobStatus   = "status"
	JobNotify   = "notify"

	DefaultCalendarSpec = "@daily"
	DefaultStatusSpec   = "*/15 * * * *"
	DefaultNotifySpec   = "@every 30s"

	// ActorID attributes scheduler writes in history and events.
	ActorID = "scheduler"

	stopTimeout = 10 * time.Second
)

var ErrUnknownJob = eris.New("unknown job")

// Job is a named task run on a cron spec.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Scheduler owns the cron runner and its registered jobs.
type Scheduler struct {
	mu      sync.Mutex
	jobs    map[string]Job
	cron    *rcron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

func New(jobs ...Job) *Scheduler {
	s := &Scheduler{jobs: make(map[string]Job, len(jobs))}
	for _, j := range jobs {
		s.jobs[j.Name] = j
	}
	return s
}

// Jobs builds the standard job set. dispatcher may be nil when no webhooks are configured.
func Jobs(eng engine.Engine, cfg config.SchedulerConfig, dispatcher *notify.Dispatcher) []Job {
	jobs := []Job{
		{
			Name: JobCalendar,
			Spec: orDefault(cfg.CalendarSpec, DefaultCalendarSpec),
			Run: func(ctx context.Context) error {
				_, err := eng.EnsureCalendar(ctx, ActorID)
				return err
			},
		},
		{
			Name: JobStatus,
			Spec: orDefault(cfg.StatusSpec, DefaultStatusSpec),
			Run: func(ctx context.Context) error {
				_, err := eng.AdvanceMeetingStatuses(ctx, ActorID)
				return err
			},
		},
	}
	if dispatcher != nil {
		jobs = append(jobs, Job{
			Name: JobNotify,
			Spec: orDefault(cfg.NotifySpec, DefaultNotifySpec),
			Run: func(ctx context.Context) error {
				_, err := dispatcher.Dispatch(ctx)
				return err
			},
		})
	}
	return jobs
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Names lists the registered jobs in name order.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedNames(s.jobs)
}

// Start registers every job and starts the cron loop. It stops when ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return eris.New("scheduler already running")
	}
	logger := cronLogger{zap.S().Named("cron")}
	c := rcron.New(
		rcron.WithLogger(logger),
		rcron.WithChain(rcron.Recover(logger), rcron.SkipIfStillRunning(logger)),
	)
	runCtx, cancel := context.WithCancel(ctx)
	for _, name := range sortedNames(s.jobs) {
		job := s.jobs[name]
		if _, err := c.AddFunc(job.Spec, func() { s.execute(runCtx, job) }); err != nil {
			cancel()
			return eris.Wrapf(err, "scheduler: job %s spec %q", job.Name, job.Spec)
		}
	}
	s.cron, s.ctx, s.cancel, s.running = c, runCtx, cancel, true
	c.Start()
	zap.L().Info("scheduler started", zap.Strings("jobs", sortedNames(s.jobs)))

	go func() {
		<-runCtx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts the cron loop and waits for running jobs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	c, cancel := s.cron, s.cancel
	s.running = false
	s.mu.Unlock()

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(stopTimeout):
		zap.L().Warn("scheduler stop timed out waiting for jobs")
	}
	cancel()
	zap.L().Info("scheduler stopped")
}

// RunOnce runs a job synchronously, outside the cron loop.
func (s *Scheduler) RunOnce(ctx context.Context, name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return eris.Wrapf(ErrUnknownJob, "job %q", name)
	}
	return s.execute(ctx, job)
}

func (s *Scheduler) execute(ctx context.Context, job Job) error {
	start := time.Now()
	err := job.Run(ctx)
	fields := []zap.Field{zap.String("job", job.Name), zap.Duration("took", time.Since(start))}
	if err != nil {
		zap.L().Error("job failed", append(fields, zap.Error(err))...)
		return err
	}
	zap.L().Debug("job finished", fields...)
	return nil
}

func sortedNames(jobs map[string]Job) []string {
	names := make([]string, 0, len(jobs))
	for name := range jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// cronLogger adapts zap to the cron.Logger interface.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
