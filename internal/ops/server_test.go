package ops_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidemark/internal/domain"
	"tidemark/internal/health"
	"tidemark/internal/metrics"
	"tidemark/internal/ops"
	"tidemark/internal/testutil"
)

func newTestServer(t *testing.T) (*httptest.Server, *testutil.MockWatermarkRepo, *testutil.MockRunLogRepo) {
	t.Helper()

	warehouse, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	warehouse.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = warehouse.Close() })
	_, err = warehouse.Exec(`CREATE TABLE ods_stock_quote (symbol TEXT, trade_date INTEGER)`)
	require.NoError(t, err)
	_, err = warehouse.Exec(`INSERT INTO ods_stock_quote VALUES ('600000.SH', 20240105)`)
	require.NoError(t, err)

	watermarks := testutil.NewMockWatermarkRepo()
	runs := &testutil.MockRunLogRepo{}
	registry := &health.Registry{Layers: []health.LayerSpec{
		{Name: "ods", Stream: "ods_quotes", Tables: []health.TableSpec{
			{Name: "ods_stock_quote", UnitColumn: "trade_date", Core: true},
		}},
	}}

	logger := slog.New(slog.DiscardHandler)
	auditor := health.NewAuditor(warehouse, watermarks, registry, logger)
	server := ops.NewServer(":0", auditor, watermarks, runs, metrics.New(), logger)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts, watermarks, runs
}

func getJSON(t *testing.T, url string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(url) //nolint:gosec // test server URL
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	ts, _, _ := newTestServer(t)
	var body map[string]string
	code := getJSON(t, ts.URL+"/healthz", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestStatusEndpoint(t *testing.T) {
	t.Parallel()

	ts, watermarks, _ := newTestServer(t)
	require.NoError(t, watermarks.Advance(context.Background(), "ods_quotes", 20240105))

	var status domain.PipelineStatus
	code := getJSON(t, ts.URL+"/api/v1/status?expected=20240105", &status)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, status.IsHealthy)
	assert.True(t, status.IsReady)
	require.Len(t, status.Layers, 1)
	assert.Equal(t, "ods", status.Layers[0].Layer)
}

func TestStatusEndpointRejectsBadExpected(t *testing.T) {
	t.Parallel()

	ts, _, _ := newTestServer(t)
	code := getJSON(t, ts.URL+"/api/v1/status?expected=notadate", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestWatermarksEndpoint(t *testing.T) {
	t.Parallel()

	ts, watermarks, _ := newTestServer(t)
	require.NoError(t, watermarks.Advance(context.Background(), "ods_quotes", 20240105))

	var wms []domain.Watermark
	code := getJSON(t, ts.URL+"/api/v1/watermarks", &wms)
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, wms, 1)
	assert.Equal(t, "ods_quotes", wms[0].StreamName)
	assert.Equal(t, domain.Unit(20240105), wms[0].WaterMark)
}

func TestRunsEndpoint(t *testing.T) {
	t.Parallel()

	ts, _, runs := newTestServer(t)
	_, err := runs.Start(context.Background(), "run-1", "ods_quotes", domain.RunTypeIncremental)
	require.NoError(t, err)
	require.NoError(t, runs.Finish(context.Background(), 1, domain.RunStatusSuccess, nil, 4, 0))

	var recs []domain.RunRecord
	code := getJSON(t, ts.URL+"/api/v1/runs?limit=10", &recs)
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.RunStatusSuccess, recs[0].Status)
	assert.Equal(t, 4, recs[0].RequestCount)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	ts, _, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/metrics") //nolint:gosec
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
