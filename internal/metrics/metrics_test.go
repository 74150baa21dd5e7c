package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIdempotentAndCountersWork(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	// idempotent: calling again should be no-op
	require.NoError(t, Register(reg))

	IncStart()
	IncStopRequest()
	ObserveExit(OutcomeFailed, 2*time.Second)
	IncSpawnFailure()

	assert.Equal(t, 1.0, testutil.ToFloat64(backendStarts))
	assert.Equal(t, 1.0, testutil.ToFloat64(backendStopRequests))
	assert.Equal(t, 1.0, testutil.ToFloat64(backendExits.WithLabelValues(OutcomeFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(backendSpawnFailures))
	assert.Equal(t, 0.0, testutil.ToFloat64(backendRunning))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	for _, n := range []string{
		"uroflow_backend_starts_total",
		"uroflow_backend_exits_total",
		"uroflow_backend_uptime_seconds",
		"uroflow_backend_running",
	} {
		assert.True(t, names[n], "missing metric %s", n)
	}
}

func TestHandlerServes(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	b, _ := io.ReadAll(rec.Body)
	assert.NotEmpty(t, b)
}
