// Package source is the client for the upstream market-data API. Calls are
// paced by the shared rate limiter and transient failures are retried with
// bounded exponential backoff; permanent failures propagate immediately.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"tidemark/internal/config"
	"tidemark/internal/domain"
	"tidemark/internal/ratelimit"
)

// Quote is one raw end-of-day quote as delivered by the source.
type Quote struct {
	Symbol    string  `json:"symbol"`
	TradeDate int     `json:"trade_date"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	PreClose  float64 `json:"pre_close"`
	Volume    float64 `json:"volume"`
	Amount    float64 `json:"amount"`
	AdjFactor float64 `json:"adj_factor"`
}

type quotesResponse struct {
	Data []Quote `json:"data"`
}

type calendarDay struct {
	Date   int  `json:"date"`
	IsOpen bool `json:"is_open"`
}

type calendarResponse struct {
	Data []calendarDay `json:"data"`
}

// Client talks to the upstream source. One client per process, sharing one
// pacer across all endpoints.
type Client struct {
	http       *resty.Client
	pacer      *ratelimit.Pacer
	maxRetries int
	logger     *slog.Logger
}

func NewClient(cfg config.SourceConfig, pacer *ratelimit.Pacer, logger *slog.Logger) *Client {
	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.Token).
		SetTimeout(cfg.HTTPTimeout).
		SetHeader("Accept", "application/json")

	return &Client{
		http:       http,
		pacer:      pacer,
		maxRetries: cfg.MaxRetries,
		logger:     logger,
	}
}

// DailyQuotes fetches all end-of-day quotes for one trading date.
func (c *Client) DailyQuotes(ctx context.Context, unit domain.Unit) ([]Quote, error) {
	var out quotesResponse
	err := c.get(ctx, "/v1/quotes/daily", map[string]string{"date": unit.String()}, &out)
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}

// TradeCalendar fetches the trading calendar for [lower, upper].
func (c *Client) TradeCalendar(ctx context.Context, lower, upper domain.Unit) ([]domain.CalendarDay, error) {
	var out calendarResponse
	err := c.get(ctx, "/v1/calendar", map[string]string{
		"from": lower.String(),
		"to":   upper.String(),
	}, &out)
	if err != nil {
		return nil, err
	}
	days := make([]domain.CalendarDay, 0, len(out.Data))
	for _, d := range out.Data {
		days = append(days, domain.CalendarDay{Date: domain.Unit(d.Date), IsOpen: d.IsOpen})
	}
	return days, nil
}

// get performs one limiter-paced GET with bounded retry. Only transient
// failures (network, 429, 5xx) are retried; a 4xx is a permanent error.
func (c *Client) get(ctx context.Context, path string, params map[string]string, result interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			c.logger.Warn("retrying source fetch", "path", path, "attempt", attempt+1, "backoff", backoff, "error", lastErr)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := c.pacer.Wait(ctx); err != nil {
			return err
		}

		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(params).
			SetResult(result).
			Get(path)

		switch {
		case err != nil:
			if !isNetworkError(err) {
				return fmt.Errorf("fetch %s: %w", path, err)
			}
			lastErr = err
		case resp.StatusCode() == 429 || resp.StatusCode() >= 500:
			lastErr = fmt.Errorf("source returned %s", resp.Status())
		case resp.IsError():
			return fmt.Errorf("fetch %s: source returned %s", path, resp.Status())
		default:
			return nil
		}
	}
	return domain.ErrTransient(lastErr, "fetch %s: retries exhausted after %d attempts", path, c.maxRetries+1)
}

// isNetworkError reports whether err is a transport-level failure worth
// retrying. Context cancellation and deadline expiry are not.
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// resty wraps dial/read failures in url.Error.
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
