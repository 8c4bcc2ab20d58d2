package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cryptodaily/internal/refresh"

	"github.com/robfig/cron/v3"
)

const (
	DefaultRefreshSpec = "5 0 * * *"
	refreshTimeout     = 30 * time.Minute
)

type Refresher interface {
	Run(ctx context.Context) (refresh.Report, error)
}

type Scheduler struct {
	ctx       context.Context
	cron      *cron.Cron
	spec      string
	refresher Refresher
	log       *slog.Logger
}

// New schedules refresher on spec, evaluated in UTC. An empty spec means
// DefaultRefreshSpec.
func New(ctx context.Context, spec string, refresher Refresher, log *slog.Logger) *Scheduler {
	if spec == "" {
		spec = DefaultRefreshSpec
	}

	c := cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.Recover(cronLogger{log: log})))

	return &Scheduler{
		ctx:       ctx,
		cron:      c,
		spec:      spec,
		refresher: refresher,
		log:       log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.refreshDaily); err != nil {
		return fmt.Errorf("add refresh job (spec = %s): %w", s.spec, err)
	}

	s.cron.Start()

	return nil
}

// Stop stops scheduling and waits for a running refresh to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunAtStartup refreshes once in the background. Errors and panics are
// logged and never reach the caller.
func (s *Scheduler) RunAtStartup() {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.ErrorContext(s.ctx, "Startup refresh panicked",
					"panic", r)
			}
		}()

		s.run("startup")
	}()
}

func (s *Scheduler) refreshDaily() {
	s.run("schedule")
}

func (s *Scheduler) run(trigger string) {
	ctx, cancel := context.WithTimeout(s.ctx, refreshTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	report, err := s.refresher.Run(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to refresh daily content",
			"error", err,
			"trigger", trigger,
			"day", report.Day,
			"assetCount", report.Assets)
		return
	}

	s.log.InfoContext(ctx, "Daily content refresh finished",
		"trigger", trigger,
		"day", report.Day,
		"skipped", report.Skipped,
		"duration", report.Duration)
}

// cronLogger routes cron's own messages to slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
