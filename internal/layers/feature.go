package layers

import (
	"context"
	"database/sql"
	"fmt"

	"tidemark/internal/db/sqlbuild"
	"tidemark/internal/domain"
)

// FeatureScore computes the scoring inputs from the derived metrics. The
// composite score weights momentum, liquidity and inverse volatility; the
// weights mirror the production scoring sheet.
type FeatureScore struct{}

func NewFeatureScore() *FeatureScore { return &FeatureScore{} }

const featureCore = `
	INSERT INTO feature_stock_score
		(symbol, trade_date, momentum, liquidity, volatility, score)
	SELECT
		symbol,
		trade_date,
		ret_20d,
		vol_ma5,
		volatility_20d,
		COALESCE(ret_20d, 0) * 0.5
			+ CASE WHEN vol_ma5 > 0 THEN LOG(vol_ma5) ELSE 0 END * 0.3
			- COALESCE(volatility_20d, 0) * 0.2
	FROM dws_stock_metrics
	{{where}}
	ON CONFLICT (symbol, trade_date) DO UPDATE SET
		momentum = excluded.momentum, liquidity = excluded.liquidity,
		volatility = excluded.volatility, score = excluded.score`

func (t *FeatureScore) Apply(ctx context.Context, tx *sql.Tx, lower, upper domain.Unit) error {
	stmt := sqlbuild.New(featureCore).UnitRange("trade_date", int(lower), int(upper))
	if _, err := tx.ExecContext(ctx, stmt.SQL(), stmt.Args()...); err != nil {
		return fmt.Errorf("compute feature scores: %w", err)
	}
	return nil
}
