package metrics

import (
	"context"
	"fmt"
	"sync"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honeycombio/spanbeat/config"
	"github.com/honeycombio/spanbeat/logger"
)

func newTestOTelMetrics(t testing.TB) (*OTelMetrics, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	o := &OTelMetrics{
		Logger: &logger.MockLogger{},
		Config: &config.MockConfig{GetOTelMetricsConfigVal: config.OTelMetricsConfig{
			APIHost: "http://localhost:4318",
		}},
		testReader: reader,
	}
	require.NoError(t, o.Start())
	t.Cleanup(func() { o.Stop() })
	return o, reader
}

func collectedNames(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	found := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = m
		}
	}
	return found
}

func Test_OTelMetrics_MultipleRegistrations(t *testing.T) {
	o, _ := newTestOTelMetrics(t)

	o.Register(Metadata{
		Name: "test",
		Type: Counter,
	})

	o.Register(Metadata{
		Name: "test",
		Type: Counter,
	})
}

func Test_OTelMetrics_Export(t *testing.T) {
	o, reader := newTestOTelMetrics(t)

	o.Register(Metadata{Name: "partial_span_stops", Type: Counter, Unit: Dimensionless})
	o.Register(Metadata{Name: "partial_span_ready", Type: Gauge})
	o.Register(Metadata{Name: "partial_span_active", Type: UpDown})
	o.Register(Metadata{Name: "partial_span_heartbeat_loop_ms", Type: Histogram, Unit: Milliseconds})

	o.Increment("partial_span_stops")
	o.Count("partial_span_stops", 2)
	o.Gauge("partial_span_ready", 4)
	o.Up("partial_span_active")
	o.Histogram("partial_span_heartbeat_loop_ms", 1.5)

	found := collectedNames(t, reader)
	for _, name := range []string{
		"partial_span_stops", "partial_span_ready", "partial_span_active",
		"partial_span_heartbeat_loop_ms", "num_goroutines", "memory_inuse",
	} {
		assert.Contains(t, found, name)
	}

	sum, ok := found["partial_span_stops"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(3), sum.DataPoints[0].Value)
}

func Test_OTelMetrics_Raciness(t *testing.T) {
	o, _ := newTestOTelMetrics(t)

	o.Register(Metadata{
		Name: "race",
		Type: Counter,
	})

	var wg sync.WaitGroup
	loopLength := 50

	// this loop modifying the metric registry and reading it to increment
	// a counter should not trigger a race condition
	for i := 0; i < loopLength; i++ {
		wg.Add(1)
		go func(j int) {
			defer wg.Done()
			o.Register(Metadata{
				Name: fmt.Sprintf("metric%d", j),
				Type: Counter,
			})
		}(i)

		wg.Add(1)
		go func() {
			defer wg.Done()
			o.Increment("race")
		}()
	}

	wg.Wait()
	count := 0
	o.counters.Range(func(_, _ any) bool {
		count++
		return true
	})
	assert.Equal(t, loopLength+1, count)
}
