package layers

import (
	"context"
	"database/sql"
	"fmt"

	"tidemark/internal/db/sqlbuild"
	"tidemark/internal/domain"
)

// DWSMetrics derives rolling per-symbol metrics from the standardized bars.
// The window functions read history before the range (the lookback), but
// only rows inside [lower, upper] are written.
type DWSMetrics struct{}

func NewDWSMetrics() *DWSMetrics { return &DWSMetrics{} }

const dwsCore = `
	INSERT INTO dws_stock_metrics
		(symbol, trade_date, ma5, ma20, vol_ma5, ret_20d, volatility_20d)
	SELECT symbol, trade_date, ma5, ma20, vol_ma5, ret_20d, volatility_20d
	FROM (
		SELECT
			symbol,
			trade_date,
			AVG(close)  OVER w5  AS ma5,
			AVG(close)  OVER w20 AS ma20,
			AVG(volume) OVER w5  AS vol_ma5,
			CASE WHEN FIRST_VALUE(close) OVER w20 > 0
				THEN (close / FIRST_VALUE(close) OVER w20 - 1) * 100 END AS ret_20d,
			STDDEV_SAMP(pct_chg) OVER w20 AS volatility_20d
		FROM dwd_stock_daily
		WINDOW
			w5  AS (PARTITION BY symbol ORDER BY trade_date ROWS 4 PRECEDING),
			w20 AS (PARTITION BY symbol ORDER BY trade_date ROWS 19 PRECEDING)
	)
	{{where}}
	ON CONFLICT (symbol, trade_date) DO UPDATE SET
		ma5 = excluded.ma5, ma20 = excluded.ma20, vol_ma5 = excluded.vol_ma5,
		ret_20d = excluded.ret_20d, volatility_20d = excluded.volatility_20d`

func (t *DWSMetrics) Apply(ctx context.Context, tx *sql.Tx, lower, upper domain.Unit) error {
	stmt := sqlbuild.New(dwsCore).UnitRange("trade_date", int(lower), int(upper))
	if _, err := tx.ExecContext(ctx, stmt.SQL(), stmt.Args()...); err != nil {
		return fmt.Errorf("derive rolling metrics: %w", err)
	}
	return nil
}
