package layers

import (
	"context"
	"database/sql"
	"fmt"

	"tidemark/internal/db/sqlbuild"
	"tidemark/internal/domain"
)

// DWDStandardize rebuilds the standardized daily bar from raw quotes:
// prices are adjusted by adj_factor and the day-over-day percent change is
// derived from pre_close. Pure SQL against the warehouse.
type DWDStandardize struct{}

func NewDWDStandardize() *DWDStandardize { return &DWDStandardize{} }

const dwdCore = `
	INSERT INTO dwd_stock_daily
		(symbol, trade_date, open, high, low, close, volume, amount, pct_chg)
	SELECT
		symbol,
		trade_date,
		open * adj_factor,
		high * adj_factor,
		low * adj_factor,
		close * adj_factor,
		volume,
		amount,
		CASE WHEN pre_close > 0 THEN (close - pre_close) / pre_close * 100 END
	FROM ods_stock_quote
	{{where}}
	ON CONFLICT (symbol, trade_date) DO UPDATE SET
		open = excluded.open, high = excluded.high, low = excluded.low,
		close = excluded.close, volume = excluded.volume,
		amount = excluded.amount, pct_chg = excluded.pct_chg`

func (t *DWDStandardize) Apply(ctx context.Context, tx *sql.Tx, lower, upper domain.Unit) error {
	stmt := sqlbuild.New(dwdCore).UnitRange("trade_date", int(lower), int(upper))
	if _, err := tx.ExecContext(ctx, stmt.SQL(), stmt.Args()...); err != nil {
		return fmt.Errorf("standardize daily bars: %w", err)
	}
	return nil
}
