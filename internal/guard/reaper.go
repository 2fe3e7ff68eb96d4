package guard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tidemark/internal/domain"
)

// Reaper recovers from crashed workers: a dead process leaves its ledger and
// guard rows RUNNING forever, which misleads audits and keeps the guard's
// fast path from ever being reached for that key.
type Reaper struct {
	runs   domain.RunLogRepository
	guards domain.GuardRepository
	logger *slog.Logger
}

func NewReaper(runs domain.RunLogRepository, guards domain.GuardRepository, logger *slog.Logger) *Reaper {
	return &Reaper{runs: runs, guards: guards, logger: logger.With("component", "reaper")}
}

// SweepResult reports the rows a sweep touched (or would touch in dry-run).
type SweepResult struct {
	RunLogIDs []int64
	GuardKeys []domain.GuardKey
	DryRun    bool
}

// Sweep transitions RUNNING rows older than age to FAILED with an
// explanatory message appended to any prior error text. Rows newer than the
// threshold, or not RUNNING, are untouched. In dry-run mode nothing mutates.
func (r *Reaper) Sweep(ctx context.Context, age time.Duration, dryRun bool) (*SweepResult, error) {
	cutoff := time.Now().Add(-age)
	reason := fmt.Sprintf("reaped: still RUNNING after %s, worker presumed dead", age)

	runIDs, err := r.runs.MarkStaleFailed(ctx, cutoff, reason, dryRun)
	if err != nil {
		return nil, fmt.Errorf("sweep run ledger: %w", err)
	}
	guardKeys, err := r.guards.MarkStaleFailed(ctx, cutoff, reason, dryRun)
	if err != nil {
		return nil, fmt.Errorf("sweep guard records: %w", err)
	}

	res := &SweepResult{RunLogIDs: runIDs, GuardKeys: guardKeys, DryRun: dryRun}
	r.logger.Info("sweep complete",
		"dry_run", dryRun, "stale_runs", len(runIDs), "stale_guards", len(guardKeys), "cutoff", cutoff)
	return res, nil
}
