package health

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"tidemark/internal/domain"
)

// Auditor classifies warehouse table freshness against an expected
// processing unit. Read-only: it never mutates state.
type Auditor struct {
	warehouse  *sql.DB
	watermarks domain.WatermarkRepository
	registry   *Registry
	logger     *slog.Logger
}

func NewAuditor(warehouse *sql.DB, watermarks domain.WatermarkRepository, registry *Registry, logger *slog.Logger) *Auditor {
	return &Auditor{
		warehouse:  warehouse,
		watermarks: watermarks,
		registry:   registry,
		logger:     logger.With("component", "health"),
	}
}

// CheckLayer audits one layer. expected == nil marks tables UNKNOWN: without
// a target unit there is nothing to compare recency against.
func (a *Auditor) CheckLayer(ctx context.Context, layer *LayerSpec, expected *domain.Unit) (domain.LayerStatus, error) {
	status := domain.LayerStatus{
		Layer:        layer.Name,
		Stream:       layer.Stream,
		ExpectedUnit: expected,
		IsHealthy:    true,
	}

	for _, t := range layer.Tables {
		ts := a.checkTable(ctx, t, expected)
		status.Tables = append(status.Tables, ts)
		if t.Core && ts.State != domain.TableStateOK {
			status.IsHealthy = false
		}
	}

	wm, err := a.watermarks.Get(ctx, layer.Stream)
	if err != nil {
		return status, err
	}
	if wm != nil {
		mark := wm.WaterMark
		status.WaterMark = &mark
		if expected != nil && mark >= *expected {
			status.ReadyForNext = true
		}
	}
	return status, nil
}

// checkTable computes (max unit, row count) and classifies. A query failure
// is reported as ERROR rather than aborting the audit.
func (a *Auditor) checkTable(ctx context.Context, t TableSpec, expected *domain.Unit) domain.TableStatus {
	ts := domain.TableStatus{Table: t.Name, Core: t.Core}

	// Table and column names come from the operator-owned registry file,
	// not user input.
	query := fmt.Sprintf("SELECT MAX(%s), COUNT(*) FROM %s", t.UnitColumn, t.Name) //nolint:gosec
	var maxUnit sql.NullInt64
	if err := a.warehouse.QueryRowContext(ctx, query).Scan(&maxUnit, &ts.RowCount); err != nil {
		ts.State = domain.TableStateError
		ts.Detail = err.Error()
		return ts
	}

	switch {
	case ts.RowCount == 0 || !maxUnit.Valid:
		ts.State = domain.TableStateEmpty
	case expected == nil:
		u := domain.Unit(maxUnit.Int64)
		ts.MaxUnit = &u
		ts.State = domain.TableStateUnknown
	default:
		u := domain.Unit(maxUnit.Int64)
		ts.MaxUnit = &u
		if u < *expected {
			ts.State = domain.TableStateStale
			ts.Detail = fmt.Sprintf("max unit %s behind expected %s", u, *expected)
		} else {
			ts.State = domain.TableStateOK
		}
	}
	return ts
}

// CheckPipeline audits every registered layer and aggregates. The summary
// distinguishes healthy, healthy-but-behind, and unhealthy with the
// offending layers named.
func (a *Auditor) CheckPipeline(ctx context.Context, expected *domain.Unit) (*domain.PipelineStatus, error) {
	out := &domain.PipelineStatus{IsHealthy: true, IsReady: true}

	var unhealthy, behind []string
	for i := range a.registry.Layers {
		layer := &a.registry.Layers[i]
		ls, err := a.CheckLayer(ctx, layer, expected)
		if err != nil {
			return nil, fmt.Errorf("check layer %s: %w", layer.Name, err)
		}
		out.Layers = append(out.Layers, ls)
		if !ls.IsHealthy {
			out.IsHealthy = false
			unhealthy = append(unhealthy, layer.Name)
		}
		if !ls.ReadyForNext {
			out.IsReady = false
			if ls.IsHealthy {
				behind = append(behind, layer.Name)
			}
		}
	}

	switch {
	case !out.IsHealthy:
		out.Summary = "unhealthy: " + strings.Join(unhealthy, ", ")
	case !out.IsReady:
		out.Summary = "healthy but watermark not yet advanced: " + strings.Join(behind, ", ")
	default:
		out.Summary = "healthy"
	}
	return out, nil
}
