// Package runner implements the shared layer control loop: resolve the
// start boundary from the watermark or an explicit override, list the units
// to process, apply the layer transform transactionally per unit (or once
// per range in batch mode), and advance the watermark on success. A failed
// unit rolls back, rewrites the watermark at the last good boundary with
// status FAILED, and abandons the rest of the invocation.
package runner

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tidemark/internal/calendar"
	"tidemark/internal/domain"
	"tidemark/internal/metrics"
)

// Config wires one layer runner instance.
type Config struct {
	Stream    string
	Transform Transform
	Warehouse *sql.DB
	Watermark domain.WatermarkRepository
	RunLog    domain.RunLogRepository
	Sequencer *calendar.Sequencer
	Logger    *slog.Logger
	Metrics   *metrics.Recorder

	// BatchThreshold is the unit count above which the whole range is
	// processed as a single transaction. Zero keeps per-unit mode always.
	BatchThreshold int

	// DisableWatermark suppresses all watermark writes. Chunk workers run
	// with this set so only the orchestrating parent advances the shared
	// watermark, after all chunks join.
	DisableWatermark bool
}

// Options bound one invocation. Zero values mean "not set".
type Options struct {
	Lower domain.Unit
	Upper domain.Unit
}

type Runner struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config) *Runner {
	return &Runner{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "runner", "stream", cfg.Stream),
	}
}

// RunIncremental resolves the start boundary as lower-1 when an explicit
// lower bound is given, else the stored watermark. A stream that has never
// been initialized is a hard error: the operator must init it once.
func (r *Runner) RunIncremental(ctx context.Context, opts Options) error {
	var boundary domain.Unit
	if opts.Lower != 0 {
		boundary = opts.Lower - 1
	} else {
		wm, err := r.cfg.Watermark.Get(ctx, r.cfg.Stream)
		if err != nil {
			return err
		}
		if wm == nil {
			return domain.ErrConfiguration(
				"stream %s has no watermark; initialize it or pass an explicit lower bound", r.cfg.Stream)
		}
		boundary = wm.WaterMark
	}

	units, err := r.cfg.Sequencer.ListUnits(ctx, boundary+1, opts.Upper)
	if err != nil {
		return err
	}
	return r.run(ctx, domain.RunTypeIncremental, boundary, units)
}

// RunFull processes every unit in [lower, upper] regardless of the watermark
// state. Intended for first load or deliberate recompute; the watermark
// still only moves forward (the store's advance is monotonic), so a
// historical recompute never claims units it did not touch.
func (r *Runner) RunFull(ctx context.Context, opts Options) error {
	if opts.Lower == 0 {
		return domain.ErrConfiguration("full run for %s requires an explicit lower bound", r.cfg.Stream)
	}
	units, err := r.cfg.Sequencer.ListUnits(ctx, opts.Lower, opts.Upper)
	if err != nil {
		return err
	}
	return r.run(ctx, domain.RunTypeFull, opts.Lower-1, units)
}

// run drives one invocation: exactly one ledger entry, per-unit or batch
// processing, fail-fast on the first error.
func (r *Runner) run(ctx context.Context, runType domain.RunType, boundary domain.Unit, units []domain.Unit) error {
	runID := uuid.NewString()
	logger := r.logger.With("run_id", runID, "run_type", runType)
	started := time.Now()

	logID, err := r.cfg.RunLog.Start(ctx, runID, r.cfg.Stream, runType)
	if err != nil {
		return fmt.Errorf("open run ledger: %w", err)
	}

	finish := func(status domain.RunStatus, runErr error) error {
		var msg *string
		if runErr != nil {
			s := runErr.Error()
			msg = &s
		}
		requests, failures := r.requestCounts()
		if err := r.cfg.RunLog.Finish(ctx, logID, status, msg, requests, failures); err != nil {
			logger.Error("failed to close run ledger", "error", err)
		}
		if r.cfg.Metrics != nil {
			r.cfg.Metrics.RunFinished(r.cfg.Stream, string(runType), string(status), time.Since(started))
		}
		return runErr
	}

	if len(units) == 0 {
		logger.Info("no units to process", "boundary", boundary)
		return finish(domain.RunStatusSuccess, nil)
	}

	logger.Info("run started",
		"first", units[0], "last", units[len(units)-1], "units", len(units))

	var runErr error
	if r.cfg.BatchThreshold > 0 && len(units) > r.cfg.BatchThreshold {
		runErr = r.runBatch(ctx, boundary, units, logger)
	} else {
		runErr = r.runPerUnit(ctx, boundary, units, logger)
	}

	if runErr != nil {
		return finish(domain.RunStatusFailed, runErr)
	}
	logger.Info("run finished", "units", len(units), "elapsed", time.Since(started))
	return finish(domain.RunStatusSuccess, nil)
}

// runPerUnit commits one transaction per unit and advances the watermark
// after each commit. The first failure abandons the remaining units.
func (r *Runner) runPerUnit(ctx context.Context, boundary domain.Unit, units []domain.Unit, logger *slog.Logger) error {
	last := boundary
	for _, u := range units {
		if err := r.applyTx(ctx, u, u); err != nil {
			terr := &domain.TransformationError{Stream: r.cfg.Stream, Lower: u, Upper: u, Err: err}
			logger.Error("unit failed", "unit", u, "error", err)
			r.markFailed(ctx, last, terr, logger)
			if r.cfg.Metrics != nil {
				r.cfg.Metrics.UnitProcessed(r.cfg.Stream, "failed")
			}
			return terr
		}
		if err := r.advance(ctx, u, logger); err != nil {
			return err
		}
		last = u
		if r.cfg.Metrics != nil {
			r.cfg.Metrics.UnitProcessed(r.cfg.Stream, "success")
		}
		logger.Debug("unit committed", "unit", u)
	}
	return nil
}

// runBatch processes the whole range in one transaction. A failure anywhere
// rolls back the entire batch and leaves the watermark unadvanced.
func (r *Runner) runBatch(ctx context.Context, boundary domain.Unit, units []domain.Unit, logger *slog.Logger) error {
	first, lastUnit := units[0], units[len(units)-1]
	logger.Info("batch mode", "first", first, "last", lastUnit)

	if err := r.applyTx(ctx, first, lastUnit); err != nil {
		terr := &domain.TransformationError{Stream: r.cfg.Stream, Lower: first, Upper: lastUnit, Err: err}
		logger.Error("batch failed", "error", err)
		r.markFailed(ctx, boundary, terr, logger)
		return terr
	}
	return r.advance(ctx, lastUnit, logger)
}

// applyTx runs the transform for [lower, upper] inside one warehouse
// transaction. A panic inside the transform rolls back like an error.
func (r *Runner) applyTx(ctx context.Context, lower, upper domain.Unit) (err error) {
	tx, err := r.cfg.Warehouse.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			err = fmt.Errorf("transform panicked: %v", p)
		}
	}()

	if err := r.cfg.Transform.Apply(ctx, tx, lower, upper); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *Runner) advance(ctx context.Context, unit domain.Unit, logger *slog.Logger) error {
	if r.cfg.DisableWatermark {
		return nil
	}
	if err := r.cfg.Watermark.Advance(ctx, r.cfg.Stream, unit); err != nil {
		logger.Error("failed to advance watermark", "unit", unit, "error", err)
		return err
	}
	if r.cfg.Metrics != nil {
		r.cfg.Metrics.SetWatermark(r.cfg.Stream, int(unit))
	}
	return nil
}

func (r *Runner) markFailed(ctx context.Context, boundary domain.Unit, cause error, logger *slog.Logger) {
	if r.cfg.DisableWatermark {
		return
	}
	if err := r.cfg.Watermark.MarkFailed(ctx, r.cfg.Stream, boundary, cause.Error()); err != nil {
		logger.Error("failed to record failed watermark", "boundary", boundary, "error", err)
	}
}

func (r *Runner) requestCounts() (int, int) {
	if rep, ok := r.cfg.Transform.(RequestReporter); ok {
		return rep.RequestCounts()
	}
	return 0, 0
}
