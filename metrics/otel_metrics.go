package metrics

import (
	"context"
	"net/url"
	"runtime"
	rtmetrics "runtime/metrics"
	"sync"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/honeycombio/spanbeat/config"
	"github.com/honeycombio/spanbeat/logger"
)

const rtMetricNameMemory = "/memory/classes/heap/objects:bytes"

var _ MetricsBackend = (*OTelMetrics)(nil)

// OTelMetrics pushes metrics over OTLP/HTTP. Counters and histograms are sent
// as deltas; gauges and updowns stay cumulative so a missed export loses
// nothing.
//
// Instruments are created on first use and cached in sync.Maps, since the
// heartbeat and promotion loops and every producer goroutine write
// concurrently.
type OTelMetrics struct {
	Config  config.Config `inject:""`
	Logger  logger.Logger `inject:""`
	Version string        `inject:"version"`

	meter        metric.Meter
	shutdownFunc func(ctx context.Context) error
	testReader   sdkmetric.Reader

	counters   sync.Map // map[string]metric.Int64Counter
	gauges     sync.Map // map[string]metric.Float64Gauge
	histograms sync.Map // map[string]metric.Float64Histogram
	updowns    sync.Map // map[string]metric.Int64UpDownCounter
}

// temporality resets counters and histograms on every export.
func temporality(ik sdkmetric.InstrumentKind) metricdata.Temporality {
	switch ik {
	case sdkmetric.InstrumentKindCounter, sdkmetric.InstrumentKindHistogram:
		return metricdata.DeltaTemporality
	default:
		return metricdata.CumulativeTemporality
	}
}

func (o *OTelMetrics) Start() error {
	cfg := o.Config.GetOTelMetricsConfig()
	ctx := context.Background()

	reader := o.testReader
	if reader == nil {
		exporter, err := newMetricExporter(ctx, cfg)
		if err != nil {
			o.Logger.Error().WithString("apihost", cfg.APIHost).Logf("failed to create metrics exporter: %s", err)
			return err
		}
		reader = sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(time.Duration(cfg.ReportingInterval)),
		)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName("spanbeat"),
			semconv.ServiceVersion(o.Version),
		),
		resource.WithHost(),
	)
	if err != nil {
		return err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	o.meter = provider.Meter("github.com/honeycombio/spanbeat/metrics")
	o.shutdownFunc = provider.Shutdown

	return o.observeRuntime()
}

func newMetricExporter(ctx context.Context, cfg config.OTelMetricsConfig) (sdkmetric.Exporter, error) {
	// the exporter wants host:port, not a URL
	host, err := url.Parse(cfg.APIHost)
	if err != nil {
		return nil, err
	}

	compression := otlpmetrichttp.GzipCompression
	if cfg.Compression == "none" {
		compression = otlpmetrichttp.NoCompression
	}
	options := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(host.Host),
		otlpmetrichttp.WithCompression(compression),
		otlpmetrichttp.WithTemporalitySelector(temporality),
	}
	hdrs := make(map[string]string)
	if cfg.APIKey != "" {
		hdrs["x-honeycomb-team"] = cfg.APIKey
	}
	if cfg.Dataset != "" {
		hdrs["x-honeycomb-dataset"] = cfg.Dataset
	}
	if len(hdrs) > 0 {
		options = append(options, otlpmetrichttp.WithHeaders(hdrs))
	}
	if host.Scheme == "http" {
		options = append(options, otlpmetrichttp.WithInsecure())
	}
	return otlpmetrichttp.New(ctx, options...)
}

// observeRuntime registers process gauges that are read at export time.
func (o *OTelMetrics) observeRuntime() error {
	startTime := time.Now()
	observed := map[string]func() float64{
		"num_goroutines": func() float64 { return float64(runtime.NumGoroutine()) },
		"memory_inuse": func() float64 {
			sample := []rtmetrics.Sample{{Name: rtMetricNameMemory}}
			rtmetrics.Read(sample)
			return float64(sample[0].Value.Uint64())
		},
		"process_uptime_seconds": func() float64 { return time.Since(startTime).Seconds() },
	}
	for name, read := range observed {
		_, err := o.meter.Float64ObservableGauge(name, metric.WithFloat64Callback(
			func(_ context.Context, result metric.Float64Observer) error {
				result.Observe(read())
				return nil
			}))
		if err != nil {
			return err
		}
	}
	return nil
}

func (o *OTelMetrics) Stop() error {
	if o.shutdownFunc != nil {
		return o.shutdownFunc(context.Background())
	}
	return nil
}

// Register creates the instrument for metadata so it is exported with a zero
// value before its first use.
func (o *OTelMetrics) Register(metadata Metadata) {
	var err error
	switch metadata.Type {
	case Counter:
		_, err = o.counter(metadata)
	case Gauge:
		_, err = o.gauge(metadata)
	case Histogram:
		_, err = o.histogram(metadata)
	case UpDown:
		_, err = o.updown(metadata)
	default:
		o.Logger.Error().WithString("type", metadata.Type.String()).Logf("unknown metric type")
		return
	}
	if err != nil {
		o.Logger.Error().WithFields(map[string]any{
			"name": metadata.Name,
			"type": metadata.Type.String(),
		}).Logf("failed to create instrument: %s", err)
	}
}

func (o *OTelMetrics) Increment(name string) {
	o.Count(name, 1)
}

func (o *OTelMetrics) Count(name string, val int64) {
	if ctr, err := o.counter(Metadata{Name: name}); err == nil {
		ctr.Add(context.Background(), val)
	}
}

func (o *OTelMetrics) Gauge(name string, val float64) {
	if g, err := o.gauge(Metadata{Name: name}); err == nil {
		g.Record(context.Background(), val)
	}
}

func (o *OTelMetrics) Histogram(name string, val float64) {
	if h, err := o.histogram(Metadata{Name: name}); err == nil {
		h.Record(context.Background(), val)
	}
}

func (o *OTelMetrics) Up(name string) {
	if ud, err := o.updown(Metadata{Name: name}); err == nil {
		ud.Add(context.Background(), 1)
	}
}

func (o *OTelMetrics) Down(name string) {
	if ud, err := o.updown(Metadata{Name: name}); err == nil {
		ud.Add(context.Background(), -1)
	}
}

// loadOrCreate returns the instrument cached under name, creating it on the
// first call. LoadOrStore keeps one instrument per name when two goroutines
// race to create it.
func loadOrCreate[T any](cache *sync.Map, name string, create func() (T, error)) (T, error) {
	if v, ok := cache.Load(name); ok {
		return v.(T), nil
	}
	inst, err := create()
	if err != nil {
		return inst, err
	}
	actual, _ := cache.LoadOrStore(name, inst)
	return actual.(T), nil
}

func (o *OTelMetrics) counter(md Metadata) (metric.Int64Counter, error) {
	return loadOrCreate(&o.counters, md.Name, func() (metric.Int64Counter, error) {
		ctr, err := o.meter.Int64Counter(md.Name, metric.WithUnit(string(md.Unit)), metric.WithDescription(md.Description))
		if err == nil {
			ctr.Add(context.Background(), 0)
		}
		return ctr, err
	})
}

func (o *OTelMetrics) gauge(md Metadata) (metric.Float64Gauge, error) {
	return loadOrCreate(&o.gauges, md.Name, func() (metric.Float64Gauge, error) {
		return o.meter.Float64Gauge(md.Name, metric.WithUnit(string(md.Unit)), metric.WithDescription(md.Description))
	})
}

func (o *OTelMetrics) histogram(md Metadata) (metric.Float64Histogram, error) {
	return loadOrCreate(&o.histograms, md.Name, func() (metric.Float64Histogram, error) {
		return o.meter.Float64Histogram(md.Name, metric.WithUnit(string(md.Unit)), metric.WithDescription(md.Description))
	})
}

func (o *OTelMetrics) updown(md Metadata) (metric.Int64UpDownCounter, error) {
	return loadOrCreate(&o.updowns, md.Name, func() (metric.Int64UpDownCounter, error) {
		ud, err := o.meter.Int64UpDownCounter(md.Name, metric.WithUnit(string(md.Unit)), metric.WithDescription(md.Description))
		if err == nil {
			ud.Add(context.Background(), 0)
		}
		return ud, err
	})
}
