package handler

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/screenops/alertcore/internal/metrics"
	"github.com/screenops/alertcore/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPingAndRoot(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/ping", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", decode[model.PingResponse](t, w).Message)

	w = ts.do(t, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[model.RootResponse](t, w).Status)
}

func TestOpenAPIDoc(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/openapi.json", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, json.Valid(w.Body.Bytes()))
	assert.Contains(t, w.Body.String(), "/api/v1/alerts/raise")
}

func TestDiagnosticsMetrics(t *testing.T) {
	ts := newTestServer(t)
	ts.recorder.Inc(metrics.CounterAlertsCreated)
	ts.recorder.Observe(metrics.OpRaiseAlert, 20*time.Millisecond)

	w := ts.do(t, http.MethodGet, "/api/v1/diagnostics/metrics", "viewer", nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[DiagnosticsResponse](t, w)
	assert.EqualValues(t, 1, resp.Data.Metrics.Counters[metrics.CounterAlertsCreated])
	assert.EqualValues(t, 1, resp.Data.Metrics.Operations[metrics.OpRaiseAlert].Count)
	assert.True(t, resp.Data.RateLimit.Enabled)
	assert.Equal(t, 5, resp.Data.RateLimit.MaxPerWindow)
	assert.EqualValues(t, 60000, resp.Data.RateLimit.WindowMs)
	assert.Contains(t, resp.Data.EscalationRules, model.AlertTypeDeviceOffline)
}

func TestDiagnosticsUpdateConfig(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPut, "/api/v1/diagnostics/config", "operator", map[string]any{"enabled": false})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.True(t, ts.limiter.Config().Enabled)

	w = ts.do(t, http.MethodPut, "/api/v1/diagnostics/config", "owner", map[string]any{
		"enabled":           false,
		"max_per_window":    10,
		"window_ms":         30000,
		"slow_operation_ms": 250,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	cfg := ts.limiter.Config()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 10, cfg.MaxPerWindow)
	assert.Equal(t, 30*time.Second, cfg.Window)
	assert.EqualValues(t, 250, ts.recorder.Snapshot().SlowThresholdMs)

	resp := decode[DiagnosticsResponse](t, w)
	assert.False(t, resp.Data.RateLimit.Enabled)
}

func TestDiagnosticsUpdateConfigPartial(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPut, "/api/v1/diagnostics/config", "owner", map[string]any{"max_per_window": 2})
	require.Equal(t, http.StatusOK, w.Code)

	cfg := ts.limiter.Config()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 2, cfg.MaxPerWindow)
	assert.Equal(t, 60*time.Second, cfg.Window)
}

func TestDiagnosticsUpdateConfigRejectsNonPositive(t *testing.T) {
	for _, body := range []map[string]any{
		{"max_per_window": 0},
		{"window_ms": -1},
		{"slow_operation_ms": 0},
	} {
		ts := newTestServer(t)
		w := ts.do(t, http.MethodPut, "/api/v1/diagnostics/config", "owner", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestDiagnosticsReset(t *testing.T) {
	ts := newTestServer(t)
	ts.recorder.Inc(metrics.CounterAlertsCreated)

	w := ts.do(t, http.MethodPost, "/api/v1/diagnostics/reset", "owner", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, ts.recorder.Counter(metrics.CounterAlertsCreated))
}
