// Package layers holds the warehouse layer transforms driven by the layer
// runners: ods (raw quotes) → dwd (standardized) → dws (derived metrics) →
// feature (scoring inputs). Every write is an upsert so replaying a range is
// idempotent at the row level.
package layers

import (
	"context"
	"database/sql"
	"fmt"
)

// Stream names, one watermark stream per layer.
const (
	StreamODS     = "ods_quotes"
	StreamDWD     = "dwd_daily"
	StreamDWS     = "dws_metrics"
	StreamFeature = "feature_score"
)

var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS ods_stock_quote (
		symbol     VARCHAR NOT NULL,
		trade_date INTEGER NOT NULL,
		open       DOUBLE,
		high       DOUBLE,
		low        DOUBLE,
		close      DOUBLE,
		pre_close  DOUBLE,
		volume     DOUBLE,
		amount     DOUBLE,
		adj_factor DOUBLE,
		PRIMARY KEY (symbol, trade_date)
	)`,
	`CREATE TABLE IF NOT EXISTS dwd_stock_daily (
		symbol     VARCHAR NOT NULL,
		trade_date INTEGER NOT NULL,
		open       DOUBLE,
		high       DOUBLE,
		low        DOUBLE,
		close      DOUBLE,
		volume     DOUBLE,
		amount     DOUBLE,
		pct_chg    DOUBLE,
		PRIMARY KEY (symbol, trade_date)
	)`,
	`CREATE TABLE IF NOT EXISTS dws_stock_metrics (
		symbol         VARCHAR NOT NULL,
		trade_date     INTEGER NOT NULL,
		ma5            DOUBLE,
		ma20           DOUBLE,
		vol_ma5        DOUBLE,
		ret_20d        DOUBLE,
		volatility_20d DOUBLE,
		PRIMARY KEY (symbol, trade_date)
	)`,
	`CREATE TABLE IF NOT EXISTS feature_stock_score (
		symbol     VARCHAR NOT NULL,
		trade_date INTEGER NOT NULL,
		momentum   DOUBLE,
		liquidity  DOUBLE,
		volatility DOUBLE,
		score      DOUBLE,
		PRIMARY KEY (symbol, trade_date)
	)`,
}

// EnsureSchema creates the warehouse layer tables when missing.
func EnsureSchema(ctx context.Context, warehouse *sql.DB) error {
	for _, ddl := range schemaDDL {
		if _, err := warehouse.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("ensure warehouse schema: %w", err)
		}
	}
	return nil
}
