package domain

import (
	"context"
	"time"
)

// WatermarkStatus records the outcome of the last run attempt on a stream.
type WatermarkStatus string

const (
	WatermarkStatusSuccess WatermarkStatus = "SUCCESS"
	WatermarkStatusFailed  WatermarkStatus = "FAILED"
)

// Watermark is the durable progress record of one named stream. WaterMark is
// the last unit whose transformation committed; on a failed unit the row is
// rewritten with the previous good boundary and status FAILED, so the stream
// never silently skips an unprocessed unit.
type Watermark struct {
	StreamName string          `json:"stream_name"`
	WaterMark  Unit            `json:"water_mark"`
	Status     WatermarkStatus `json:"status"`
	LastRunAt  time.Time       `json:"last_run_at"`
	LastErr    *string         `json:"last_err,omitempty"`
}

// WatermarkRepository persists per-stream watermarks. Advance must be
// monotonic: a SUCCESS write never moves the boundary backwards.
type WatermarkRepository interface {
	// Get returns the watermark for the stream, or nil when the stream has
	// never been initialized.
	Get(ctx context.Context, stream string) (*Watermark, error)

	// Advance upserts the watermark to (unit, SUCCESS), keeping the larger
	// of unit and the stored boundary.
	Advance(ctx context.Context, stream string, unit Unit) error

	// MarkFailed rewrites the watermark with the last good boundary and
	// status FAILED, recording errMsg.
	MarkFailed(ctx context.Context, stream string, boundary Unit, errMsg string) error

	// Init creates the watermark at an explicit boundary (typically
	// start-1) for a stream that has never run. Fails if the stream exists.
	Init(ctx context.Context, stream string, boundary Unit) error

	// List returns all watermarks, ordered by stream name.
	List(ctx context.Context) ([]Watermark, error)
}
