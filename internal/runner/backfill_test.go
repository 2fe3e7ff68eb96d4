package runner

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidemark/internal/calendar"
	"tidemark/internal/domain"
	"tidemark/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestSplitChunks(t *testing.T) {
	t.Parallel()

	units := []domain.Unit{20240102, 20240103, 20240104, 20240105, 20240108}

	tests := []struct {
		name string
		size int
		want []chunk
	}{
		{
			name: "even split with remainder",
			size: 2,
			want: []chunk{
				{first: 20240102, last: 20240103, units: 2},
				{first: 20240104, last: 20240105, units: 2},
				{first: 20240108, last: 20240108, units: 1},
			},
		},
		{
			name: "size larger than input",
			size: 100,
			want: []chunk{{first: 20240102, last: 20240108, units: 5}},
		},
		{
			name: "size clamped to one",
			size: 0,
			want: []chunk{
				{first: 20240102, last: 20240102, units: 1},
				{first: 20240103, last: 20240103, units: 1},
				{first: 20240104, last: 20240104, units: 1},
				{first: 20240105, last: 20240105, units: 1},
				{first: 20240108, last: 20240108, units: 1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, splitChunks(units, tt.size))
		})
	}
}

func TestSplitChunksEmpty(t *testing.T) {
	t.Parallel()
	assert.Empty(t, splitChunks(nil, 10))
}

func TestTail(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", tail("  short \n", 100))
	assert.Equal(t, "...bbbbbccccc", tail("aaaaabbbbbccccc", 10))
}

func backfillFixture(t *testing.T, binary string) (*Dispatcher, *testutil.MockWatermarkRepo) {
	t.Helper()
	watermarks := testutil.NewMockWatermarkRepo()
	cal := &testutil.MockCalendarRepo{OpenDates: []domain.Unit{
		20230103, 20230104, 20230105, 20230106, 20230109,
	}}
	clock := func() time.Time { return time.Date(2024, time.January, 10, 12, 0, 0, 0, time.UTC) }

	d := NewDispatcher(BackfillConfig{
		Stream:    "ods_quotes",
		ChunkSize: 2,
		Workers:   2,
		Binary:    binary,
		Watermark: watermarks,
		Sequencer: calendar.NewSequencer(cal).WithClock(clock),
		Logger:    discardLogger(),
	})
	return d, watermarks
}

func TestBackfillRequiresExplicitBounds(t *testing.T) {
	t.Parallel()

	d, _ := backfillFixture(t, "true")
	err := d.Run(context.Background(), 0, 20230109)
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestBackfillJoinThenAdvance(t *testing.T) {
	t.Parallel()

	// "true" stands in for the chunk worker binary: every chunk succeeds.
	d, watermarks := backfillFixture(t, "true")
	require.NoError(t, d.Run(context.Background(), 20230101, 20230131))

	// Exactly one advance, after all chunks joined, to the range end.
	assert.Equal(t, []domain.Unit{20230109}, watermarks.Advances)
}

func TestBackfillChunkFailureHoldsWatermark(t *testing.T) {
	t.Parallel()

	d, watermarks := backfillFixture(t, "false")
	err := d.Run(context.Background(), 20230101, 20230131)
	require.Error(t, err)

	// Join-then-advance: any chunk failure means no claim on the range.
	assert.Empty(t, watermarks.Advances)
}

func TestBackfillEmptyRangeIsNoOp(t *testing.T) {
	t.Parallel()

	d, watermarks := backfillFixture(t, "true")
	require.NoError(t, d.Run(context.Background(), 20230110, 20230131))
	assert.Empty(t, watermarks.Advances)
}
