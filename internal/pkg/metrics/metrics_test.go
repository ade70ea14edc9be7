package metrics_test

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/medboard/internal/pkg/metrics"
)

func TestMetrics_Observers(t *testing.T) {
	m := metrics.New("medboard")

	m.ObserveRequest("GET", "/api/v1/inventory", "200", 10*time.Millisecond, false)
	m.ObserveRequest("GET", "/api/v1/inventory", "502", 10*time.Millisecond, true)
	m.ObserveBackend("/api/query", metrics.OutcomeTimeout, time.Second)
	m.ObserveQuery("disease", metrics.OutcomeSuccess, 2*time.Second)
	m.ObserveQuery("disease", metrics.OutcomeStale, time.Second)
	m.ObserveDocument("completed", 12, 3*time.Second)
	m.ObserveCleanup(4, 2)
	m.SetActiveSessions(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestTotal.WithLabelValues("GET", "/api/v1/inventory", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorTotal.WithLabelValues("GET", "/api/v1/inventory", "502")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ErrorTotal.WithLabelValues("GET", "/api/v1/inventory", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackendCalls.WithLabelValues("/api/query", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Queries.WithLabelValues("disease", "stale")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.QueryLatency))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocumentsProcessed.WithLabelValues("completed")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.ExpiredKeysPurged))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TempFilesRemoved))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ActiveSessions))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("GET", "/", "200", 0, false)
		m.ObserveBackend("/", metrics.OutcomeError, 0)
		m.ObserveQuery("general", metrics.OutcomeError, 0)
		m.ObserveDocument("failed", 0, 0)
		m.ObserveCleanup(0, 0)
		m.SetActiveSessions(0)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := metrics.New("medboard")
	m.ObserveCleanup(1, 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), "medboard_cleanup_expired_keys_purged_total 1")
	assert.Contains(t, string(body), "go_goroutines")
}
