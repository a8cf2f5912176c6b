package metrics

import (
	"fmt"
)

// Metrics is what the rest of spanbeat records into. Values are accepted as
// any numeric type and converted on the way to a backend.
//
// Get and Store give access to the current value of counters and gauges, and
// to "constants" that are stored but never reported.
type Metrics interface {
	Register(metadata Metadata)
	Increment(name string)                  // for counters
	Gauge(name string, val interface{})     // for gauges
	Count(name string, n interface{})       // for counters
	Histogram(name string, obs interface{}) // for histogram
	Up(name string)                         // for updown
	Down(name string)                       // for updown
	Get(name string) (float64, bool)        // for reading back a counter or a gauge
	Store(name string, val float64)         // for storing a rarely-changing value not sent as a metric
}

// MetricsBackend is implemented by the exporters that MultiMetrics fans out
// to. Values have already been converted.
type MetricsBackend interface {
	Register(metadata Metadata)
	Increment(name string)
	Gauge(name string, val float64)
	Count(name string, n int64)
	Histogram(name string, obs float64)
	Up(name string)
	Down(name string)
}

type MetricType int

const (
	Counter MetricType = iota
	Gauge
	Histogram
	UpDown
)

func (m MetricType) String() string {
	switch m {
	case Counter:
		return "counter"
	case Gauge:
		return "gauge"
	case Histogram:
		return "histogram"
	case UpDown:
		return "updown"
	default:
		return "unknown"
	}
}

// Unit is an OTel-compatible unit string.
type Unit string

const (
	Dimensionless Unit = "1"
	Bytes         Unit = "By"
	Milliseconds  Unit = "ms"
	Microseconds  Unit = "us"
	Seconds       Unit = "s"
	Percent       Unit = "%"
)

type Metadata struct {
	Name string
	Type MetricType
	Unit Unit
	// Description is a human-readable description of the metric
	Description string
}

func ConvertNumeric(val interface{}) float64 {
	switch n := val.(type) {
	case int:
		return float64(n)
	case uint:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	case int32:
		return float64(n)
	case uint32:
		return float64(n)
	case int16:
		return float64(n)
	case uint16:
		return float64(n)
	case int8:
		return float64(n)
	case uint8:
		return float64(n)
	case float64:
		return n
	case float32:
		return float64(n)
	case bool:
		if n {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func PrefixMetricName(prefix string, name string) string {
	if prefix != "" {
		return fmt.Sprintf(`%s_%s`, prefix, name)
	}
	return name
}
