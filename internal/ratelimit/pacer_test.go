package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidemark/internal/ratelimit"
)

func TestPacerSpacesCalls(t *testing.T) {
	t.Parallel()

	// 1200 calls/minute = one call per 50ms. Three calls need at least
	// two intervals of waiting after the initial burst token.
	p := ratelimit.New(1200)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Wait(ctx))
	}
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 90*time.Millisecond)
}

func TestPacerDisabled(t *testing.T) {
	t.Parallel()

	p := ratelimit.New(0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, p.Wait(ctx))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestPacerHonorsContext(t *testing.T) {
	t.Parallel()

	// One call per minute: the second Wait cannot proceed before the
	// context deadline fires.
	p := ratelimit.New(1)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Wait(ctx))
	err := p.Wait(ctx)
	require.Error(t, err)
}
