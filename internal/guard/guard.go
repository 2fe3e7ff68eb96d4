// Package guard deduplicates and retries whole-job executions across
// schedule triggers. State per (task, idempotency key) is persisted, so a
// rerun of an already-succeeded task is a no-op and a failed task is retried
// up to a configured count inside a hard per-attempt timeout.
package guard

import (
	"context"
	"log/slog"
	"time"

	"tidemark/internal/domain"
)

// Options tune one Execute call.
type Options struct {
	Retries    int           // attempts after the first (total = Retries+1)
	RetryDelay time.Duration // sleep between attempts
	Timeout    time.Duration // hard per-attempt timeout; zero disables
}

type Guard struct {
	repo   domain.GuardRepository
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func New(repo domain.GuardRepository, logger *slog.Logger) *Guard {
	return &Guard{
		repo:   repo,
		logger: logger.With("component", "guard"),
		sleep:  sleepCtx,
	}
}

// Execute runs cmd under the (task, key) guard.
//
// A stored SUCCESS short-circuits without invoking cmd. Otherwise each
// attempt upserts RUNNING with its attempt number, runs cmd under the
// timeout, and upserts the terminal state. The guard takes no lock: two
// concurrent processes can both observe "no SUCCESS yet" and both enter
// RUNNING for the same key. Single-scheduler operation is assumed.
func (g *Guard) Execute(ctx context.Context, task, key string, cmd Command, opts Options) error {
	logger := g.logger.With("task", task, "key", key)

	rec, err := g.repo.Get(ctx, task, key)
	if err != nil {
		return err
	}
	if rec != nil && rec.Status == domain.GuardStatusSuccess {
		logger.Info("already succeeded, skipping")
		return nil
	}

	var lastErr error
	for attempt := 0; attempt <= opts.Retries; attempt++ {
		if attempt > 0 {
			logger.Info("retrying", "attempt", attempt+1, "delay", opts.RetryDelay)
			if err := g.sleep(ctx, opts.RetryDelay); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		running := &domain.GuardRecord{
			TaskName:       task,
			IdempotencyKey: key,
			Status:         domain.GuardStatusRunning,
			Attempt:        attempt,
			StartedAt:      now,
			TimeoutSec:     int(opts.Timeout.Seconds()),
		}
		if err := g.repo.Upsert(ctx, running); err != nil {
			return err
		}

		lastErr = g.runAttempt(ctx, cmd, opts.Timeout)
		finished := time.Now().UTC()

		if lastErr == nil {
			running.Status = domain.GuardStatusSuccess
			running.FinishedAt = &finished
			running.ErrMsg = nil
			if err := g.repo.Upsert(ctx, running); err != nil {
				return err
			}
			logger.Info("succeeded", "attempt", attempt+1)
			return nil
		}

		msg := lastErr.Error()
		running.Status = domain.GuardStatusFailed
		running.FinishedAt = &finished
		running.ErrMsg = &msg
		if err := g.repo.Upsert(ctx, running); err != nil {
			return err
		}
		logger.Warn("attempt failed", "attempt", attempt+1, "error", lastErr)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return lastErr
}

// runAttempt applies the hard timeout and maps deadline expiry to the
// domain's timeout error.
func (g *Guard) runAttempt(ctx context.Context, cmd Command, timeout time.Duration) error {
	attemptCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	err := cmd.Run(attemptCtx)
	if err != nil && attemptCtx.Err() == context.DeadlineExceeded {
		return domain.ErrTimeout("attempt timed out after %s: %v", timeout, err)
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
