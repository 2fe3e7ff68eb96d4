package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidemark/internal/domain"
)

func TestParseUnit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    domain.Unit
		wantErr bool
	}{
		{name: "valid date", input: "20240105", want: 20240105},
		{name: "leap day", input: "20240229", want: 20240229},
		{name: "non-leap feb 29", input: "20230229", wantErr: true},
		{name: "month 13", input: "20241301", wantErr: true},
		{name: "day zero", input: "20240100", wantErr: true},
		{name: "too short", input: "2024015", wantErr: true},
		{name: "too long", input: "202401051", wantErr: true},
		{name: "not a number", input: "2024janx", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := domain.ParseUnit(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				var cfgErr *domain.ConfigurationError
				assert.ErrorAs(t, err, &cfgErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnitRoundTrip(t *testing.T) {
	t.Parallel()

	u := domain.Unit(20240105)
	ts, err := u.Time()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC), ts)
	assert.Equal(t, u, domain.UnitFromTime(ts))
}

func TestUnitString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "20240105", domain.Unit(20240105).String())
	// Zero-padded so lexical and numeric order agree.
	assert.Equal(t, "00000000", domain.Unit(0).String())
}

func TestUnitOrdering(t *testing.T) {
	t.Parallel()

	// Units compare as integers; a later date is strictly greater even
	// across month and year boundaries.
	assert.True(t, domain.Unit(20240131) < domain.Unit(20240201))
	assert.True(t, domain.Unit(20231231) < domain.Unit(20240101))
}

func TestTransformationErrorMessage(t *testing.T) {
	t.Parallel()

	inner := assert.AnError
	single := &domain.TransformationError{Stream: "dwd_daily", Lower: 20240105, Upper: 20240105, Err: inner}
	assert.Contains(t, single.Error(), "unit 20240105")
	assert.ErrorIs(t, single, inner)

	ranged := &domain.TransformationError{Stream: "dwd_daily", Lower: 20240101, Upper: 20240131, Err: inner}
	assert.Contains(t, ranged.Error(), "range [20240101, 20240131]")
}
