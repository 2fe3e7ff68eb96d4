package guard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidemark/internal/domain"
	"tidemark/internal/testutil"
)

func reaperFixture(t *testing.T) (*Reaper, *testutil.MockGuardRepo) {
	t.Helper()
	guards := testutil.NewMockGuardRepo()
	ctx := context.Background()

	require.NoError(t, guards.Upsert(ctx, &domain.GuardRecord{
		TaskName: "daily_pipeline", IdempotencyKey: "20240101",
		Status: domain.GuardStatusRunning, StartedAt: time.Now().Add(-24 * time.Hour),
	}))
	require.NoError(t, guards.Upsert(ctx, &domain.GuardRecord{
		TaskName: "daily_pipeline", IdempotencyKey: "20240105",
		Status: domain.GuardStatusRunning, StartedAt: time.Now(),
	}))
	require.NoError(t, guards.Upsert(ctx, &domain.GuardRecord{
		TaskName: "daily_pipeline", IdempotencyKey: "20231229",
		Status: domain.GuardStatusSuccess, StartedAt: time.Now().Add(-48 * time.Hour),
	}))

	return NewReaper(&testutil.MockRunLogRepo{}, guards, discardLogger()), guards
}

func TestSweepReapsOnlyStaleRunning(t *testing.T) {
	t.Parallel()

	reaper, guards := reaperFixture(t)

	res, err := reaper.Sweep(context.Background(), 6*time.Hour, false)
	require.NoError(t, err)
	require.Len(t, res.GuardKeys, 1)
	assert.Equal(t, "20240101", res.GuardKeys[0].IdempotencyKey)
	assert.False(t, res.DryRun)

	// The stale record flipped; the fresh RUNNING and old SUCCESS did not.
	stale, err := guards.Get(context.Background(), "daily_pipeline", "20240101")
	require.NoError(t, err)
	assert.Equal(t, domain.GuardStatusFailed, stale.Status)

	fresh, err := guards.Get(context.Background(), "daily_pipeline", "20240105")
	require.NoError(t, err)
	assert.Equal(t, domain.GuardStatusRunning, fresh.Status)

	done, err := guards.Get(context.Background(), "daily_pipeline", "20231229")
	require.NoError(t, err)
	assert.Equal(t, domain.GuardStatusSuccess, done.Status)
}

func TestSweepDryRunReportsWithoutMutating(t *testing.T) {
	t.Parallel()

	reaper, guards := reaperFixture(t)

	res, err := reaper.Sweep(context.Background(), 6*time.Hour, true)
	require.NoError(t, err)
	require.Len(t, res.GuardKeys, 1)
	assert.True(t, res.DryRun)

	stale, err := guards.Get(context.Background(), "daily_pipeline", "20240101")
	require.NoError(t, err)
	assert.Equal(t, domain.GuardStatusRunning, stale.Status)
}
