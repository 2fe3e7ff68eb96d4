package source_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidemark/internal/config"
	"tidemark/internal/domain"
	"tidemark/internal/ratelimit"
	"tidemark/internal/source"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newClient(t *testing.T, baseURL string, maxRetries int) *source.Client {
	t.Helper()
	cfg := config.SourceConfig{
		BaseURL:     baseURL,
		Token:       "test-token",
		MaxRetries:  maxRetries,
		HTTPTimeout: 5 * time.Second,
	}
	return source.NewClient(cfg, ratelimit.New(0), discardLogger())
}

func TestDailyQuotes(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/quotes/daily", r.URL.Path)
		assert.Equal(t, "20240105", r.URL.Query().Get("date"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": [
			{"symbol": "600000.SH", "trade_date": 20240105, "open": 7.1, "high": 7.3,
			 "low": 7.0, "close": 7.2, "pre_close": 7.05, "volume": 1200000,
			 "amount": 8640000, "adj_factor": 1.23},
			{"symbol": "000001.SZ", "trade_date": 20240105, "open": 9.5, "high": 9.6,
			 "low": 9.4, "close": 9.55, "pre_close": 9.5, "volume": 800000,
			 "amount": 7640000, "adj_factor": 1.0}
		]}`))
	}))
	defer srv.Close()

	quotes, err := newClient(t, srv.URL, 0).DailyQuotes(context.Background(), 20240105)
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.Equal(t, "600000.SH", quotes[0].Symbol)
	assert.Equal(t, 20240105, quotes[0].TradeDate)
	assert.InDelta(t, 7.2, quotes[0].Close, 1e-9)
	assert.InDelta(t, 1.23, quotes[0].AdjFactor, 1e-9)
}

func TestTradeCalendar(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/calendar", r.URL.Path)
		assert.Equal(t, "20240101", r.URL.Query().Get("from"))
		assert.Equal(t, "20240107", r.URL.Query().Get("to"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": [
			{"date": 20240101, "is_open": false},
			{"date": 20240102, "is_open": true},
			{"date": 20240103, "is_open": true}
		]}`))
	}))
	defer srv.Close()

	days, err := newClient(t, srv.URL, 0).TradeCalendar(context.Background(), 20240101, 20240107)
	require.NoError(t, err)
	require.Len(t, days, 3)
	assert.Equal(t, domain.CalendarDay{Date: 20240101, IsOpen: false}, days[0])
	assert.Equal(t, domain.CalendarDay{Date: 20240102, IsOpen: true}, days[1])
}

func TestGetRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": []}`))
	}))
	defer srv.Close()

	quotes, err := newClient(t, srv.URL, 2).DailyQuotes(context.Background(), 20240105)
	require.NoError(t, err)
	assert.Empty(t, quotes)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetRetriesRateLimited(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": []}`))
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL, 2).DailyQuotes(context.Background(), 20240105)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetClientErrorIsPermanent(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL, 3).DailyQuotes(context.Background(), 20240105)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "4xx must not be retried")

	var transient *domain.TransientSourceError
	assert.False(t, errors.As(err, &transient), "4xx is not transient")
}

func TestGetExhaustsRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL, 1).DailyQuotes(context.Background(), 20240105)
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())

	var transient *domain.TransientSourceError
	require.ErrorAs(t, err, &transient)
	assert.Contains(t, transient.Error(), "retries exhausted")
}

func TestGetHonorsContextDuringBackoff(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// The 1s backoff before the second attempt outlives the deadline.
	_, err := newClient(t, srv.URL, 3).DailyQuotes(ctx, 20240105)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
