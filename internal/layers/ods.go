package layers

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"tidemark/internal/calendar"
	"tidemark/internal/domain"
	"tidemark/internal/metrics"
	"tidemark/internal/source"
)

// QuoteFetcher is the slice of the source client the ODS layer needs.
type QuoteFetcher interface {
	DailyQuotes(ctx context.Context, unit domain.Unit) ([]source.Quote, error)
}

// ODSIngest pulls raw daily quotes from the upstream source and upserts them
// into ods_stock_quote. In batch mode it fetches each open date of the range
// in order; the whole range still commits as one transaction.
type ODSIngest struct {
	fetcher   QuoteFetcher
	sequencer *calendar.Sequencer
	logger    *slog.Logger
	recorder  *metrics.Recorder

	requests int
	failures int
}

func NewODSIngest(fetcher QuoteFetcher, sequencer *calendar.Sequencer, recorder *metrics.Recorder, logger *slog.Logger) *ODSIngest {
	return &ODSIngest{
		fetcher:   fetcher,
		sequencer: sequencer,
		recorder:  recorder,
		logger:    logger.With("layer", "ods"),
	}
}

const upsertQuote = `
	INSERT INTO ods_stock_quote
		(symbol, trade_date, open, high, low, close, pre_close, volume, amount, adj_factor)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (symbol, trade_date) DO UPDATE SET
		open = excluded.open, high = excluded.high, low = excluded.low,
		close = excluded.close, pre_close = excluded.pre_close,
		volume = excluded.volume, amount = excluded.amount,
		adj_factor = excluded.adj_factor`

func (t *ODSIngest) Apply(ctx context.Context, tx *sql.Tx, lower, upper domain.Unit) error {
	units, err := t.sequencer.ListUnits(ctx, lower, upper)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, upsertQuote)
	if err != nil {
		return fmt.Errorf("prepare quote upsert: %w", err)
	}
	defer stmt.Close()

	for _, u := range units {
		t.requests++
		quotes, err := t.fetcher.DailyQuotes(ctx, u)
		if err != nil {
			t.failures++
			if t.recorder != nil {
				t.recorder.SourceRequest("error")
			}
			return fmt.Errorf("fetch quotes for %s: %w", u, err)
		}
		if t.recorder != nil {
			t.recorder.SourceRequest("ok")
		}

		for _, q := range quotes {
			_, err := stmt.ExecContext(ctx,
				q.Symbol, q.TradeDate, q.Open, q.High, q.Low, q.Close,
				q.PreClose, q.Volume, q.Amount, q.AdjFactor)
			if err != nil {
				return fmt.Errorf("upsert quote %s/%d: %w", q.Symbol, q.TradeDate, err)
			}
		}
		t.logger.Debug("quotes ingested", "unit", u, "rows", len(quotes))
	}
	return nil
}

// RequestCounts reports source request counters for the run ledger.
func (t *ODSIngest) RequestCounts() (int, int) {
	return t.requests, t.failures
}
