package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/honeycombio/spanbeat/config"
	"github.com/honeycombio/spanbeat/logger"
)

var _ MetricsBackend = (*PromMetrics)(nil)

type PromMetrics struct {
	Config config.Config `inject:""`
	Logger logger.Logger `inject:""`
	// metrics keeps a record of all the registered metrics so we can increment
	// them by name
	metrics  map[string]interface{}
	lock     sync.RWMutex
	registry *prometheus.Registry
	server   *http.Server
}

func (p *PromMetrics) Start() error {
	p.Logger.Debug().Logf("Starting PromMetrics")
	defer func() { p.Logger.Debug().Logf("Finished starting PromMetrics") }()
	pc := p.Config.GetPrometheusMetricsConfig()

	p.metrics = make(map[string]interface{})
	p.registry = prometheus.NewRegistry()

	muxxer := mux.NewRouter()
	muxxer.Handle("/metrics", p.Handler())

	if pc.ListenAddr == "" {
		return nil
	}
	p.server = &http.Server{
		Addr:              pc.ListenAddr,
		Handler:           muxxer,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := p.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.Logger.Error().WithString("addr", pc.ListenAddr).Logf("prometheus listener failed: %s", err)
		}
	}()
	return nil
}

func (p *PromMetrics) Stop() error {
	if p.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.server.Shutdown(ctx)
}

// Handler serves this instance's registry in the Prometheus text format.
func (p *PromMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Register takes a name and a metric type. The type should be one of "counter",
// "gauge", "histogram", or "updown"
func (p *PromMetrics) Register(metadata Metadata) {
	p.lock.Lock()
	defer p.lock.Unlock()

	newmet, exists := p.metrics[metadata.Name]

	// don't attempt to add the metric again as this will cause a panic
	if exists {
		return
	}

	help := metadata.Description
	if help == "" {
		help = metadata.Name
	}

	factory := promauto.With(p.registry)
	switch metadata.Type {
	case Counter:
		newmet = factory.NewCounter(prometheus.CounterOpts{
			Name: metadata.Name,
			Help: help,
		})
	case Gauge, UpDown:
		newmet = factory.NewGauge(prometheus.GaugeOpts{
			Name: metadata.Name,
			Help: help,
		})
	case Histogram:
		newmet = factory.NewHistogram(prometheus.HistogramOpts{
			Name: metadata.Name,
			Help: help,
			// This is an attempt at a usable set of buckets for a wide range of metrics
			// 16 buckets, first upper bound of 1, each following upper bound is 4x the previous
			Buckets: prometheus.ExponentialBuckets(1, 4, 16),
		})
	default:
		return
	}

	p.metrics[metadata.Name] = newmet
}

func (p *PromMetrics) Increment(name string) {
	p.lock.RLock()
	defer p.lock.RUnlock()

	if counterIface, ok := p.metrics[name]; ok {
		if counter, ok := counterIface.(prometheus.Counter); ok {
			counter.Inc()
		}
	}
}

func (p *PromMetrics) Count(name string, n int64) {
	p.lock.RLock()
	defer p.lock.RUnlock()

	if counterIface, ok := p.metrics[name]; ok {
		if counter, ok := counterIface.(prometheus.Counter); ok {
			counter.Add(float64(n))
		}
	}
}

func (p *PromMetrics) Gauge(name string, val float64) {
	p.lock.RLock()
	defer p.lock.RUnlock()

	if gaugeIface, ok := p.metrics[name]; ok {
		if gauge, ok := gaugeIface.(prometheus.Gauge); ok {
			gauge.Set(val)
		}
	}
}

func (p *PromMetrics) Histogram(name string, obs float64) {
	p.lock.RLock()
	defer p.lock.RUnlock()

	if histIface, ok := p.metrics[name]; ok {
		if hist, ok := histIface.(prometheus.Histogram); ok {
			hist.Observe(obs)
		}
	}
}

func (p *PromMetrics) Up(name string) {
	p.lock.RLock()
	defer p.lock.RUnlock()

	if gaugeIface, ok := p.metrics[name]; ok {
		if gauge, ok := gaugeIface.(prometheus.Gauge); ok {
			gauge.Inc()
		}
	}
}

func (p *PromMetrics) Down(name string) {
	p.lock.RLock()
	defer p.lock.RUnlock()

	if gaugeIface, ok := p.metrics[name]; ok {
		if gauge, ok := gaugeIface.(prometheus.Gauge); ok {
			gauge.Dec()
		}
	}
}
