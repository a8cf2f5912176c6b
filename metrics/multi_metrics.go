package metrics

import (
	"sync"

	"github.com/facebookgo/startstop"

	"github.com/honeycombio/spanbeat/config"
	"github.com/honeycombio/spanbeat/logger"
)

var _ Metrics = (*MultiMetrics)(nil)

// MultiMetrics is a metrics provider that sends metrics to zero or more
// MetricsBackends.
//
// It implements and intercepts the Store method since the children don't need
// to know about it, and also records the values that Get returns. Even if there
// are no backends configured, this allows us to use the metrics package to
// store values that can be retrieved later.
type MultiMetrics struct {
	Config  config.Config `inject:""`
	Logger  logger.Logger `inject:""`
	Version string        `inject:"version"`

	children []MetricsBackend
	// registered is replayed to backends that are attached after metrics
	// were registered
	registered []Metadata
	// values keeps a map of all the non-histogram metrics and their current
	// value so that we can retrieve them with Get()
	values map[string]float64
	lock   sync.RWMutex
}

func NewMultiMetrics() *MultiMetrics {
	return &MultiMetrics{
		values: make(map[string]float64),
	}
}

// Start builds and starts the backends enabled in the config.
func (m *MultiMetrics) Start() error {
	if m.values == nil {
		m.values = make(map[string]float64)
	}

	if m.Config.GetPrometheusMetricsConfig().Enabled {
		prom := &PromMetrics{Config: m.Config, Logger: m.Logger}
		if err := prom.Start(); err != nil {
			return err
		}
		m.AddChild(prom)
	}
	if m.Config.GetOTelMetricsConfig().Enabled {
		otel := &OTelMetrics{Config: m.Config, Logger: m.Logger, Version: m.Version}
		if err := otel.Start(); err != nil {
			return err
		}
		m.AddChild(otel)
	}
	return nil
}

func (m *MultiMetrics) Stop() error {
	var err error
	for _, ch := range m.children {
		if s, ok := ch.(startstop.Stopper); ok {
			if e := s.Stop(); e != nil && err == nil {
				err = e
			}
		}
	}
	return err
}

// AddChild attaches another backend and registers with it every metric
// registered so far.
func (m *MultiMetrics) AddChild(child MetricsBackend) {
	m.lock.RLock()
	registered := append([]Metadata(nil), m.registered...)
	m.lock.RUnlock()
	for _, md := range registered {
		child.Register(md)
	}
	m.children = append(m.children, child)
}

func (m *MultiMetrics) Register(metadata Metadata) {
	for _, ch := range m.children {
		ch.Register(metadata)
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.values == nil {
		m.values = make(map[string]float64)
	}
	m.values[metadata.Name] = 0
	m.registered = append(m.registered, metadata)
}

func (m *MultiMetrics) Increment(name string) { // for counters
	for _, ch := range m.children {
		ch.Increment(name)
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	m.values[name]++
}

func (m *MultiMetrics) Gauge(name string, val interface{}) { // for gauges
	f := ConvertNumeric(val)
	for _, ch := range m.children {
		ch.Gauge(name, f)
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	m.values[name] = f
}

func (m *MultiMetrics) Count(name string, n interface{}) { // for counters
	f := ConvertNumeric(n)
	for _, ch := range m.children {
		ch.Count(name, int64(f))
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	m.values[name] += f
}

func (m *MultiMetrics) Histogram(name string, obs interface{}) { // for histogram
	f := ConvertNumeric(obs)
	for _, ch := range m.children {
		ch.Histogram(name, f)
	}
}

func (m *MultiMetrics) Up(name string) { // for updown
	for _, ch := range m.children {
		ch.Up(name)
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	m.values[name]++
}

func (m *MultiMetrics) Down(name string) { // for updown
	for _, ch := range m.children {
		ch.Down(name)
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	m.values[name]--
}

func (m *MultiMetrics) Get(name string) (float64, bool) { // for reading back a counter or a gauge
	m.lock.RLock()
	defer m.lock.RUnlock()
	v, ok := m.values[name]
	return v, ok
}

func (m *MultiMetrics) Store(name string, val float64) { // for storing a rarely-changing value not sent as a metric
	m.lock.Lock()
	defer m.lock.Unlock()
	m.values[name] = val
}
