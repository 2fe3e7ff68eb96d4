package health_test

import (
	"context"
	"database/sql"
	"log/slog"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidemark/internal/domain"
	"tidemark/internal/health"
	"tidemark/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func openWarehouse(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func seedTable(t *testing.T, conn *sql.DB, table string, units ...int) {
	t.Helper()
	_, err := conn.Exec(`CREATE TABLE ` + table + ` (symbol TEXT, trade_date INTEGER)`)
	require.NoError(t, err)
	for _, u := range units {
		_, err := conn.Exec(`INSERT INTO `+table+` (symbol, trade_date) VALUES ('600000.SH', ?)`, u)
		require.NoError(t, err)
	}
}

func unitPtr(u domain.Unit) *domain.Unit { return &u }

func TestCheckLayerClassification(t *testing.T) {
	t.Parallel()

	conn := openWarehouse(t)
	seedTable(t, conn, "fresh_table", 20240104, 20240105)
	seedTable(t, conn, "stale_table", 20240102, 20240103)
	seedTable(t, conn, "empty_table")

	layer := &health.LayerSpec{
		Name:   "dwd",
		Stream: "dwd_daily",
		Tables: []health.TableSpec{
			{Name: "fresh_table", UnitColumn: "trade_date", Core: true},
			{Name: "stale_table", UnitColumn: "trade_date", Core: false},
			{Name: "empty_table", UnitColumn: "trade_date", Core: false},
			{Name: "missing_table", UnitColumn: "trade_date", Core: false},
		},
	}

	watermarks := testutil.NewMockWatermarkRepo()
	require.NoError(t, watermarks.Advance(context.Background(), "dwd_daily", 20240105))

	auditor := health.NewAuditor(conn, watermarks, &health.Registry{}, discardLogger())
	status, err := auditor.CheckLayer(context.Background(), layer, unitPtr(20240105))
	require.NoError(t, err)

	byTable := map[string]domain.TableStatus{}
	for _, ts := range status.Tables {
		byTable[ts.Table] = ts
	}

	assert.Equal(t, domain.TableStateOK, byTable["fresh_table"].State)
	assert.Equal(t, domain.Unit(20240105), *byTable["fresh_table"].MaxUnit)
	assert.Equal(t, int64(2), byTable["fresh_table"].RowCount)

	assert.Equal(t, domain.TableStateStale, byTable["stale_table"].State)
	assert.Contains(t, byTable["stale_table"].Detail, "behind expected")

	assert.Equal(t, domain.TableStateEmpty, byTable["empty_table"].State)
	assert.Nil(t, byTable["empty_table"].MaxUnit)

	assert.Equal(t, domain.TableStateError, byTable["missing_table"].State)

	// Only the core table is OK, so the layer is healthy despite the
	// degraded optional tables.
	assert.True(t, status.IsHealthy)
	assert.True(t, status.ReadyForNext)
	assert.Equal(t, domain.Unit(20240105), *status.WaterMark)
}

func TestCheckLayerCoreStaleIsUnhealthy(t *testing.T) {
	t.Parallel()

	conn := openWarehouse(t)
	seedTable(t, conn, "core_table", 20240102)

	layer := &health.LayerSpec{
		Name:   "ods",
		Stream: "ods_quotes",
		Tables: []health.TableSpec{
			{Name: "core_table", UnitColumn: "trade_date", Core: true},
		},
	}

	watermarks := testutil.NewMockWatermarkRepo()
	require.NoError(t, watermarks.Advance(context.Background(), "ods_quotes", 20240102))

	auditor := health.NewAuditor(conn, watermarks, &health.Registry{}, discardLogger())
	status, err := auditor.CheckLayer(context.Background(), layer, unitPtr(20240105))
	require.NoError(t, err)

	assert.False(t, status.IsHealthy)
	assert.False(t, status.ReadyForNext, "watermark 20240102 is behind expected 20240105")
}

func TestCheckLayerNilExpectedIsUnknown(t *testing.T) {
	t.Parallel()

	conn := openWarehouse(t)
	seedTable(t, conn, "core_table", 20240105)

	layer := &health.LayerSpec{
		Name:   "ods",
		Stream: "ods_quotes",
		Tables: []health.TableSpec{
			{Name: "core_table", UnitColumn: "trade_date", Core: true},
		},
	}

	auditor := health.NewAuditor(conn, testutil.NewMockWatermarkRepo(), &health.Registry{}, discardLogger())
	status, err := auditor.CheckLayer(context.Background(), layer, nil)
	require.NoError(t, err)

	// Without a target there is no freshness verdict, and UNKNOWN on a
	// core table reads as unhealthy rather than silently passing.
	assert.Equal(t, domain.TableStateUnknown, status.Tables[0].State)
	assert.False(t, status.IsHealthy)
	assert.False(t, status.ReadyForNext)
	assert.Nil(t, status.WaterMark)
}

func TestCheckPipelineSummaries(t *testing.T) {
	t.Parallel()

	conn := openWarehouse(t)
	seedTable(t, conn, "ods_table", 20240105)
	seedTable(t, conn, "dwd_table", 20240105)

	registry := &health.Registry{Layers: []health.LayerSpec{
		{Name: "ods", Stream: "ods_quotes", Tables: []health.TableSpec{
			{Name: "ods_table", UnitColumn: "trade_date", Core: true},
		}},
		{Name: "dwd", Stream: "dwd_daily", Tables: []health.TableSpec{
			{Name: "dwd_table", UnitColumn: "trade_date", Core: true},
		}},
	}}

	watermarks := testutil.NewMockWatermarkRepo()
	ctx := context.Background()
	require.NoError(t, watermarks.Advance(ctx, "ods_quotes", 20240105))
	require.NoError(t, watermarks.Advance(ctx, "dwd_daily", 20240105))

	auditor := health.NewAuditor(conn, watermarks, registry, discardLogger())

	status, err := auditor.CheckPipeline(ctx, unitPtr(20240105))
	require.NoError(t, err)
	assert.True(t, status.IsHealthy)
	assert.True(t, status.IsReady)
	assert.Equal(t, "healthy", status.Summary)
	require.Len(t, status.Layers, 2)

	// Tables are fresh but one watermark lags: healthy, not ready.
	require.NoError(t, watermarks.MarkFailed(ctx, "dwd_daily", 20240104, "late"))
	watermarks.Records["dwd_daily"].WaterMark = 20240104

	status, err = auditor.CheckPipeline(ctx, unitPtr(20240105))
	require.NoError(t, err)
	assert.True(t, status.IsHealthy)
	assert.False(t, status.IsReady)
	assert.Contains(t, status.Summary, "watermark not yet advanced")
	assert.Contains(t, status.Summary, "dwd")

	// A stale core table flips the pipeline unhealthy.
	status, err = auditor.CheckPipeline(ctx, unitPtr(20240201))
	require.NoError(t, err)
	assert.False(t, status.IsHealthy)
	assert.Contains(t, status.Summary, "unhealthy:")
}
