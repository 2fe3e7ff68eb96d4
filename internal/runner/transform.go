package runner

import (
	"context"
	"database/sql"

	"tidemark/internal/domain"
)

// Transform is the per-layer collaborator the runner drives. Apply writes
// the layer's output for [lower, upper] inside tx; in per-unit mode
// lower == upper. Implementations must be idempotent for the same range —
// the runner may replay a range after a crash.
type Transform interface {
	Apply(ctx context.Context, tx *sql.Tx, lower, upper domain.Unit) error
}

// RequestReporter is optionally implemented by transforms that call the
// upstream source; the runner copies the counters into the run ledger.
type RequestReporter interface {
	RequestCounts() (requests, failures int)
}

// TransformFunc adapts a function to the Transform interface.
type TransformFunc func(ctx context.Context, tx *sql.Tx, lower, upper domain.Unit) error

func (f TransformFunc) Apply(ctx context.Context, tx *sql.Tx, lower, upper domain.Unit) error {
	return f(ctx, tx, lower, upper)
}
