// Package scheduler triggers the daily pipeline on a cron schedule, wrapped
// in the idempotency guard so a double-fired or restarted trigger for the
// same business date is a no-op.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"tidemark/internal/config"
	"tidemark/internal/domain"
	"tidemark/internal/guard"
)

// Pipeline is the whole-pipeline invocation the scheduler drives.
type Pipeline interface {
	RunPipeline(ctx context.Context) error
}

type Scheduler struct {
	cron     *cron.Cron
	pipeline Pipeline
	guard    *guard.Guard
	cfg      config.GuardConfig
	spec     string
	logger   *slog.Logger
}

func New(pipeline Pipeline, g *guard.Guard, guardCfg config.GuardConfig, cronSpec string, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		pipeline: pipeline,
		guard:    g,
		cfg:      guardCfg,
		spec:     cronSpec,
		logger:   logger.With("component", "scheduler"),
	}
}

// Start registers the cron entry and starts the scheduler.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, s.trigger)
	if err != nil {
		return domain.ErrConfiguration("invalid cron schedule %q: %v", s.spec, err)
	}
	s.cron.Start()
	s.logger.Info("scheduler started", "schedule", s.spec)
	return nil
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("scheduler stopped")
}

// trigger runs one guarded pipeline invocation keyed by the business date.
func (s *Scheduler) trigger() {
	ctx := context.Background()
	key := domain.UnitFromTime(time.Now()).String()

	err := s.guard.Execute(ctx, "daily_pipeline", key, guard.Func(s.pipeline.RunPipeline), guard.Options{
		Retries:    s.cfg.Retries,
		RetryDelay: s.cfg.RetryDelay,
		Timeout:    s.cfg.Timeout,
	})
	if err != nil {
		s.logger.Error("scheduled pipeline failed", "key", key, "error", err)
	}
}
