package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honeycombio/spanbeat/config"
	"github.com/honeycombio/spanbeat/logger"
)

func newTestPromMetrics(t *testing.T) *PromMetrics {
	t.Helper()
	p := &PromMetrics{
		Logger: &logger.NullLogger{},
		// an empty listen address keeps the test from binding a port
		Config: &config.MockConfig{GetPrometheusMetricsConfigVal: config.PrometheusMetricsConfig{Enabled: true}},
	}
	require.NoError(t, p.Start())
	t.Cleanup(func() { p.Stop() })
	return p
}

func TestPromMetricsRegisterTwice(t *testing.T) {
	p := newTestPromMetrics(t)

	p.Register(Metadata{Name: "partial_span_started", Type: Counter})
	assert.NotPanics(t, func() {
		p.Register(Metadata{Name: "partial_span_started", Type: Counter})
	})
}

func TestPromMetricsValues(t *testing.T) {
	p := newTestPromMetrics(t)

	p.Register(Metadata{Name: "partial_span_heartbeats", Type: Counter, Description: "heartbeats written"})
	p.Register(Metadata{Name: "partial_span_ready", Type: Gauge})
	p.Register(Metadata{Name: "partial_span_active", Type: UpDown})
	p.Register(Metadata{Name: "partial_span_heartbeat_loop_ms", Type: Histogram, Unit: Milliseconds})

	p.Increment("partial_span_heartbeats")
	p.Count("partial_span_heartbeats", 4)
	p.Gauge("partial_span_ready", 7)
	p.Up("partial_span_active")
	p.Up("partial_span_active")
	p.Down("partial_span_active")
	p.Histogram("partial_span_heartbeat_loop_ms", 3)

	// unknown names are ignored
	p.Increment("nope")

	assert.Equal(t, float64(5), testutil.ToFloat64(p.metrics["partial_span_heartbeats"].(prometheus.Collector)))
	assert.Equal(t, float64(7), testutil.ToFloat64(p.metrics["partial_span_ready"].(prometheus.Collector)))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.metrics["partial_span_active"].(prometheus.Collector)))

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, "# HELP partial_span_heartbeats heartbeats written")
	assert.True(t, strings.Contains(body, "partial_span_heartbeat_loop_ms_count 1"))
}
