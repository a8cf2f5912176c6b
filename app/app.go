package app

import (
	"context"
	"errors"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/honeycombio/spanbeat/config"
	"github.com/honeycombio/spanbeat/generator"
	"github.com/honeycombio/spanbeat/internal/health"
	"github.com/honeycombio/spanbeat/logger"
	"github.com/honeycombio/spanbeat/metrics"
	"github.com/honeycombio/spanbeat/processor"
	"github.com/honeycombio/spanbeat/sink"
)

// shutdownTimeout bounds how long Stop waits for in-flight snapshots.
var shutdownTimeout = 10 * time.Second

// App owns the pieces that are built outside the injection graph: the
// processor, the tracer provider it is registered with, and the sink it
// writes to. The injected dependencies order App after the logger, health and
// metrics on Start, and before the generator on Stop.
type App struct {
	Config    config.Config        `inject:""`
	Logger    logger.Logger        `inject:""`
	Metrics   metrics.Metrics      `inject:"metrics"`
	Health    health.Recorder      `inject:""`
	Generator *generator.Generator `inject:""`

	Processor      *processor.PartialSpanProcessor
	TracerProvider *sdktrace.TracerProvider
	Sink           sink.LogSink

	// Version is the build ID for spanbeat so that the running process may answer
	// requests for the version
	Version string
}

func (a *App) Start() error {
	a.Logger.Debug().Logf("Starting up App...")

	hc := a.Config.GetHeartbeatConfig()
	a.Metrics.Store("HEARTBEAT_INTERVAL_MS", float64(time.Duration(hc.HeartbeatInterval).Milliseconds()))
	a.Metrics.Store("INITIAL_HEARTBEAT_DELAY_MS", float64(time.Duration(hc.InitialHeartbeatDelay).Milliseconds()))

	if err := a.Processor.Start(); err != nil {
		return err
	}
	a.Logger.Info().WithFields(map[string]any{
		"version":                 a.Version,
		"heartbeat_interval":      hc.HeartbeatInterval,
		"initial_heartbeat_delay": hc.InitialHeartbeatDelay,
		"sink":                    a.Config.GetSinkConfig().Type,
	}).Logf("spanbeat running")
	return nil
}

// Stop shuts down in the order data flows: the generator stops opening spans
// and ends the ones it holds, the tracer provider flushes and shuts down the
// processor, and only then is the sink closed.
func (a *App) Stop() error {
	a.Logger.Debug().Logf("Shutting down App...")

	var errs []error
	if a.Generator != nil {
		errs = append(errs, a.Generator.Stop())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if a.TracerProvider != nil {
		errs = append(errs, a.TracerProvider.Shutdown(ctx))
	}
	// the provider has already shut the processor down unless it was never
	// registered with one
	errs = append(errs, a.Processor.Shutdown(ctx))
	errs = append(errs, sink.Close(a.Sink))

	err := errors.Join(errs...)
	if err != nil {
		a.Logger.Error().WithField("error", err).Logf("error shutting down")
	}
	return err
}
