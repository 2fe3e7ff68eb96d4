// Package app wires repositories, services, and runners from external
// dependencies (config, database handles, logger) provided by main.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	calseq "tidemark/internal/calendar"
	"tidemark/internal/config"
	"tidemark/internal/db/repository"
	"tidemark/internal/domain"
	"tidemark/internal/guard"
	"tidemark/internal/health"
	"tidemark/internal/layers"
	"tidemark/internal/metrics"
	"tidemark/internal/ratelimit"
	"tidemark/internal/runner"
	"tidemark/internal/source"
)

// Deps holds what main() must provide: config, database handles, logger.
type Deps struct {
	Cfg       *config.Config
	Control   *sql.DB
	Warehouse *sql.DB
	Logger    *slog.Logger
}

// App is the fully-wired engine.
type App struct {
	Cfg       *config.Config
	Logger    *slog.Logger
	Warehouse *sql.DB

	Watermarks domain.WatermarkRepository
	Runs       domain.RunLogRepository
	Guards     domain.GuardRepository
	Calendar   domain.CalendarRepository

	Sequencer *calseq.Sequencer
	Metrics   *metrics.Recorder
	Guard     *guard.Guard
	Reaper    *guard.Reaper
}

// New wires all components from the provided deps.
func New(deps Deps) *App {
	watermarks := repository.NewWatermarkRepo(deps.Control)
	runs := repository.NewRunLogRepo(deps.Control)
	guards := repository.NewGuardRepo(deps.Control)
	cal := repository.NewCalendarRepo(deps.Control)

	return &App{
		Cfg:        deps.Cfg,
		Logger:     deps.Logger,
		Warehouse:  deps.Warehouse,
		Watermarks: watermarks,
		Runs:       runs,
		Guards:     guards,
		Calendar:   cal,
		Sequencer:  calseq.NewSequencer(cal),
		Metrics:    metrics.New(),
		Guard:      guard.New(guards, deps.Logger),
		Reaper:     guard.NewReaper(runs, guards, deps.Logger),
	}
}

// Streams lists the pipeline streams in dependency order, bottom layer
// first.
func (a *App) Streams() []string {
	return []string{layers.StreamODS, layers.StreamDWD, layers.StreamDWS, layers.StreamFeature}
}

// SourceClient builds the upstream client; fails when credentials are not
// configured.
func (a *App) SourceClient() (*source.Client, error) {
	if err := a.Cfg.Source.Validate(); err != nil {
		return nil, domain.ErrConfiguration("%v", err)
	}
	pacer := ratelimit.New(a.Cfg.Source.RateLimit)
	return source.NewClient(a.Cfg.Source, pacer, a.Logger), nil
}

// transformFor maps a stream name to its layer transform.
func (a *App) transformFor(stream string) (runner.Transform, error) {
	switch stream {
	case layers.StreamODS:
		client, err := a.SourceClient()
		if err != nil {
			return nil, err
		}
		return layers.NewODSIngest(client, a.Sequencer, a.Metrics, a.Logger), nil
	case layers.StreamDWD:
		return layers.NewDWDStandardize(), nil
	case layers.StreamDWS:
		return layers.NewDWSMetrics(), nil
	case layers.StreamFeature:
		return layers.NewFeatureScore(), nil
	default:
		return nil, domain.ErrConfiguration("unknown stream %s", stream)
	}
}

// RunnerFor builds the layer runner for a stream.
func (a *App) RunnerFor(stream string, disableWatermark bool) (*runner.Runner, error) {
	transform, err := a.transformFor(stream)
	if err != nil {
		return nil, err
	}
	return runner.New(runner.Config{
		Stream:           stream,
		Transform:        transform,
		Warehouse:        a.Warehouse,
		Watermark:        a.Watermarks,
		RunLog:           a.Runs,
		Sequencer:        a.Sequencer,
		Logger:           a.Logger,
		Metrics:          a.Metrics,
		BatchThreshold:   a.Cfg.BatchThreshold,
		DisableWatermark: disableWatermark,
	}), nil
}

// DispatcherFor builds the chunked backfill dispatcher for a stream.
func (a *App) DispatcherFor(stream string) *runner.Dispatcher {
	return runner.NewDispatcher(runner.BackfillConfig{
		Stream:    stream,
		ChunkSize: a.Cfg.ChunkSize,
		Workers:   a.Cfg.ChunkWorkers,
		Watermark: a.Watermarks,
		Sequencer: a.Sequencer,
		Logger:    a.Logger,
	})
}

// Auditor loads the layer registry and builds the health auditor.
func (a *App) Auditor() (*health.Auditor, error) {
	reg, err := health.LoadRegistry(a.Cfg.LayersFile)
	if err != nil {
		return nil, err
	}
	return health.NewAuditor(a.Warehouse, a.Watermarks, reg, a.Logger), nil
}

// RunPipeline runs every stream incrementally in dependency order. The
// scheduler wraps this in the idempotency guard; a failed layer stops the
// layers above it (their inputs would be incomplete).
func (a *App) RunPipeline(ctx context.Context) error {
	if err := layers.EnsureSchema(ctx, a.Warehouse); err != nil {
		return err
	}
	for _, stream := range a.Streams() {
		r, err := a.RunnerFor(stream, false)
		if err != nil {
			return err
		}
		if err := r.RunIncremental(ctx, runner.Options{}); err != nil {
			return fmt.Errorf("pipeline stopped at %s: %w", stream, err)
		}
	}
	return nil
}
