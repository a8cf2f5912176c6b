// Package generator produces a synthetic workload of spans with a wide spread
// of durations. Some end well inside the heartbeat grace period and some run
// for many heartbeat intervals, changing their attributes as they go.
package generator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/dgryski/go-wyhash"
	"github.com/jonboulle/clockwork"
	"github.com/sourcegraph/conc"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/honeycombio/spanbeat/config"
	"github.com/honeycombio/spanbeat/internal/health"
	"github.com/honeycombio/spanbeat/internal/otelutil"
	"github.com/honeycombio/spanbeat/logger"
	"github.com/honeycombio/spanbeat/metrics"
)

const (
	healthKey = "generator"
	seedSalt  = 2467825690
	// each span reports progress this often, within the bounds below
	progressEvery = 500 * time.Millisecond
	minSteps      = 1
	maxSteps      = 20
)

var generatorMetrics = []metrics.Metadata{
	{Name: "spans_started", Type: metrics.Counter, Unit: metrics.Dimensionless, Description: "synthetic spans started"},
	{Name: "spans_ended", Type: metrics.Counter, Unit: metrics.Dimensionless, Description: "synthetic spans ended"},
	{Name: "spans_failed", Type: metrics.Counter, Unit: metrics.Dimensionless, Description: "synthetic spans ended with an error status"},
	{Name: "spans_in_flight", Type: metrics.UpDown, Unit: metrics.Dimensionless, Description: "synthetic spans currently open"},
}

var errSynthetic = errors.New("synthetic failure")

// Generator starts spans at a steady rate until it is stopped. Spans still
// open at Stop are ended immediately.
type Generator struct {
	Config  config.Config   `inject:""`
	Logger  logger.Logger   `inject:""`
	Metrics metrics.Metrics `inject:"generatorMetrics"`
	Clock   clockwork.Clock `inject:""`
	Health  health.Recorder `inject:""`
	Tracer  trace.Tracer    `inject:"tracer"`

	cfg      config.GeneratorConfig
	rng      *rand.Rand
	done     chan struct{}
	stopOnce sync.Once
	loop     conc.WaitGroup
	spans    conc.WaitGroup
}

// plan describes one span before it is started.
type plan struct {
	name     string
	service  string
	duration time.Duration
	steps    int
	fail     bool
}

func (g *Generator) Start() error {
	g.cfg = g.Config.GetGeneratorConfig()
	if !g.cfg.Enabled {
		g.Logger.Info().Logf("span generator disabled")
		return nil
	}
	if g.Clock == nil {
		g.Clock = clockwork.NewRealClock()
	}
	for _, m := range generatorMetrics {
		g.Metrics.Register(m)
	}
	g.rng = newRand(g.cfg.Seed)
	g.done = make(chan struct{})

	interval := time.Second / time.Duration(g.cfg.SpansPerSec)
	g.Logger.Info().WithFields(map[string]any{
		"spans_per_sec": g.cfg.SpansPerSec,
		"min_duration":  g.cfg.MinDuration,
		"max_duration":  g.cfg.MaxDuration,
	}).Logf("starting span generator")

	g.Health.Register(healthKey, max(2*interval, g.Config.GetHealthCheckTimeout()))
	g.loop.Go(func() { g.run(interval) })
	return nil
}

// Stop ends the workload. It returns once every generated span has ended.
// Later calls do nothing.
func (g *Generator) Stop() error {
	if g.done == nil {
		return nil
	}
	g.stopOnce.Do(func() {
		close(g.done)
		g.loop.Wait()
		g.spans.Wait()
		g.Health.Unregister(healthKey)
	})
	return nil
}

func (g *Generator) run(interval time.Duration) {
	ticker := g.Clock.NewTicker(interval)
	defer ticker.Stop()

	g.Health.Ready(healthKey, true)
	for {
		select {
		case <-g.done:
			return
		case <-ticker.Chan():
			p := g.plan()
			g.spans.Go(func() { g.runSpan(p) })
			g.Health.Ready(healthKey, true)
		}
	}
}

// plan draws the next span. Durations are spread evenly on a log scale so
// short and long spans are both common.
func (g *Generator) plan() plan {
	p := plan{
		name:     verbs[g.rng.Intn(len(verbs))] + "-" + nouns[g.rng.Intn(len(nouns))],
		service:  services[g.rng.Intn(len(services))],
		duration: logUniform(g.rng.Float64(), time.Duration(g.cfg.MinDuration), time.Duration(g.cfg.MaxDuration)),
		fail:     g.rng.Float64() < g.cfg.ErrorRatio,
	}
	p.steps = min(max(int(p.duration/progressEvery), minSteps), maxSteps)
	return p
}

func (g *Generator) runSpan(p plan) {
	_, span := otelutil.StartSpanMulti(context.Background(), g.Tracer, p.name, map[string]any{
		"service.component":      p.service,
		"generator.planned_ms":   p.duration.Milliseconds(),
		"generator.steps":        p.steps,
		"generator.progress_pct": 0,
	})
	g.Metrics.Increment("spans_started")
	g.Metrics.Up("spans_in_flight")
	defer func() {
		span.End()
		g.Metrics.Down("spans_in_flight")
		g.Metrics.Increment("spans_ended")
	}()

	step := p.duration / time.Duration(p.steps)
	for i := 1; i <= p.steps; i++ {
		select {
		case <-g.done:
			span.SetAttributes(attribute.Bool("generator.interrupted", true))
			return
		case <-g.Clock.After(step):
		}
		span.SetAttributes(attribute.Int("generator.progress_pct", i*100/p.steps))
		span.AddEvent("progress", trace.WithAttributes(attribute.Int("step", i)))
	}

	if p.fail {
		g.Metrics.Increment("spans_failed")
		otelutil.AddException(span, fmt.Errorf("%s: %w", p.name, errSynthetic))
		return
	}
	span.SetStatus(codes.Ok, "")
}

func newRand(seed string) *rand.Rand {
	if seed == "" {
		return rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return rand.New(rand.NewSource(int64(wyhash.Hash([]byte(seed), seedSalt))))
}

// logUniform maps u in [0,1) to a duration between lo and hi whose logarithm
// is uniformly distributed.
func logUniform(u float64, lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	if lo <= 0 {
		lo = time.Millisecond
		if hi <= lo {
			return hi
		}
	}
	ratio := float64(hi) / float64(lo)
	return time.Duration(float64(lo) * math.Pow(ratio, u))
}
