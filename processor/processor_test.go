package processor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/honeycombio/spanbeat/config"
	"github.com/honeycombio/spanbeat/internal/health"
	"github.com/honeycombio/spanbeat/logger"
	"github.com/honeycombio/spanbeat/metrics"
	"github.com/honeycombio/spanbeat/sink"
	"github.com/honeycombio/spanbeat/snapshot"
)

type harness struct {
	t       *testing.T
	p       *PartialSpanProcessor
	sink    *sink.MockSink
	clock   *clockwork.FakeClock
	metrics *metrics.MockMetrics
	logger  *logger.MockLogger
	health  *health.MockHealthRecorder
	tp      *sdktrace.TracerProvider
	tracer  trace.Tracer
	elapsed time.Duration
}

func newHarness(t *testing.T, opts Options, tpOpts ...sdktrace.TracerProviderOption) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		sink:    &sink.MockSink{},
		clock:   clockwork.NewFakeClock(),
		metrics: &metrics.MockMetrics{},
		logger:  &logger.MockLogger{},
		health:  &health.MockHealthRecorder{},
	}
	h.metrics.Start()
	opts.Clock = h.clock
	opts.Metrics = h.metrics
	opts.Logger = h.logger
	opts.Health = h.health

	p, err := New(h.sink, opts)
	require.NoError(t, err)
	require.NoError(t, p.Start())
	h.p = p

	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()
	tickers := 0
	if opts.PromotionTick > 0 {
		tickers++
	}
	if opts.HeartbeatInterval > 0 {
		tickers++
	}
	require.NoError(t, h.clock.BlockUntilContext(ctx, tickers))

	h.tp = sdktrace.NewTracerProvider(append(tpOpts, sdktrace.WithSpanProcessor(p))...)
	h.tracer = h.tp.Tracer("processor-test")
	t.Cleanup(func() {
		h.tp.Shutdown(context.Background())
	})
	return h
}

// advance moves the fake clock forward by one promotion tick and waits for
// every loop that ticks at the new time to finish its pass.
func (h *harness) advance() {
	h.t.Helper()
	tick := h.p.promotionTick
	h.elapsed += tick

	loops := []string{"promotion"}
	if h.p.heartbeatInterval > 0 && h.elapsed%h.p.heartbeatInterval == 0 {
		loops = append(loops, "heartbeat")
	}
	before := make(map[string]int, len(loops))
	for _, l := range loops {
		before[l] = h.metrics.HistogramCount("partial_span_" + l + "_loop_ms")
	}
	h.clock.Advance(tick)
	for _, l := range loops {
		name := "partial_span_" + l + "_loop_ms"
		require.Eventually(h.t, func() bool {
			return h.metrics.HistogramCount(name) > before[l]
		}, 2*time.Second, time.Millisecond, "%s loop did not run at %s", l, h.elapsed)
	}
}

// advanceTo steps the clock until elapsed reaches target.
func (h *harness) advanceTo(target time.Duration) {
	h.t.Helper()
	for h.elapsed < target {
		h.advance()
	}
}

func (h *harness) start(name string) trace.Span {
	_, span := h.tracer.Start(context.Background(), name)
	return span
}

func (h *harness) writesFor(span trace.Span, sig snapshot.Signal) []sink.MockSinkWrite {
	var out []sink.MockSinkWrite
	for _, w := range h.sink.WritesFor(span.SpanContext().SpanID().String()) {
		if w.Signal == sig {
			out = append(out, w)
		}
	}
	return out
}

func scenarioOptions() Options {
	return Options{
		HeartbeatInterval:     100 * time.Millisecond,
		InitialHeartbeatDelay: 50 * time.Millisecond,
		PromotionTick:         10 * time.Millisecond,
	}
}

func TestNewValidatesOptions(t *testing.T) {
	s := &sink.MockSink{}
	tests := []struct {
		name string
		sink sink.LogSink
		opts Options
		want error
	}{
		{"nil sink", nil, Options{}, ErrNilLogSink},
		{"negative interval", s, Options{HeartbeatInterval: -time.Second}, ErrNegativeHeartbeatInterval},
		{"negative delay", s, Options{InitialHeartbeatDelay: -time.Second}, ErrNegativeInitialHeartbeatDelay},
		{"negative tick", s, Options{PromotionTick: -time.Nanosecond}, ErrNegativePromotionTick},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.sink, tt.opts)
			assert.Nil(t, p)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	p, err := New(s, Options{})
	require.NoError(t, err)
	assert.Equal(t, Counts{}, p.Counts())
	assert.NoError(t, p.Shutdown(t.Context()))
}

func TestOptionsFromConfig(t *testing.T) {
	c := &config.MockConfig{
		GetHeartbeatConfigVal: config.HeartbeatConfig{
			HeartbeatInterval:     config.Duration(2 * time.Second),
			InitialHeartbeatDelay: config.Duration(3 * time.Second),
			PromotionTick:         config.Duration(250 * time.Millisecond),
		},
		GetHealthCheckTimeoutVal: 20 * time.Second,
	}
	opts := OptionsFromConfig(c)
	assert.Equal(t, 2*time.Second, opts.HeartbeatInterval)
	assert.Equal(t, 3*time.Second, opts.InitialHeartbeatDelay)
	assert.Equal(t, 250*time.Millisecond, opts.PromotionTick)
	assert.Equal(t, 20*time.Second, opts.HealthCheckTimeout)
}

func TestRegistersMetrics(t *testing.T) {
	h := newHarness(t, scenarioOptions())
	for _, m := range processorMetrics {
		assert.Contains(t, h.metrics.Registrations, m.Name)
	}
}

func TestScenarioLongSpan(t *testing.T) {
	h := newHarness(t, scenarioOptions())
	span := h.start("long-running")
	id := span.SpanContext().SpanID()

	assert.True(t, h.p.IsActive(id))
	assert.True(t, h.p.IsDelayed(id))
	assert.Empty(t, h.sink.Writes(), "starting a span writes nothing")

	h.advanceTo(10 * time.Millisecond)
	assert.False(t, h.p.IsReady(id))

	h.advanceTo(60 * time.Millisecond)
	assert.True(t, h.p.IsReady(id))
	assert.False(t, h.p.IsDelayed(id))
	assert.Empty(t, h.sink.Writes(), "promotion writes nothing")

	h.advanceTo(160 * time.Millisecond)
	assert.GreaterOrEqual(t, len(h.writesFor(span, snapshot.Heartbeat)), 1)

	h.advanceTo(170 * time.Millisecond)
	heartbeatsAtEnd := len(h.writesFor(span, snapshot.Heartbeat))
	span.End()
	assert.False(t, h.p.IsActive(id))
	assert.False(t, h.p.IsReady(id))

	h.advanceTo(400 * time.Millisecond)
	assert.Len(t, h.writesFor(span, snapshot.Stop), 1)
	assert.Len(t, h.writesFor(span, snapshot.Heartbeat), heartbeatsAtEnd)

	writes := h.sink.WritesFor(id.String())
	assert.Equal(t, snapshot.Stop, writes[len(writes)-1].Signal)
	assert.Equal(t, 1, h.metrics.CounterValue("partial_span_stops"))
	assert.Equal(t, 1, h.metrics.CounterValue("partial_span_promoted"))
}

func TestScenarioShortSpanIsSilent(t *testing.T) {
	h := newHarness(t, Options{
		HeartbeatInterval:     100 * time.Millisecond,
		InitialHeartbeatDelay: time.Second,
		PromotionTick:         10 * time.Millisecond,
	})
	span := h.start("quick")
	id := span.SpanContext().SpanID()

	h.advanceTo(10 * time.Millisecond)
	span.End()
	assert.False(t, h.p.IsActive(id))
	assert.False(t, h.p.IsDelayed(id))

	h.advanceTo(2 * time.Second)
	assert.Empty(t, h.sink.Writes())
	for _, line := range h.sink.Lines() {
		assert.NotContains(t, line, id.String())
	}
	assert.False(t, h.p.IsReady(id))
	assert.Equal(t, 1, h.metrics.CounterValue("partial_span_fast_path"))
	assert.Equal(t, 1, h.metrics.CounterValue("partial_span_stale_dropped"))
	assert.Equal(t, 0, h.p.Counts().DelayQueueLen)
}

func TestPromotionWithinBound(t *testing.T) {
	h := newHarness(t, Options{
		HeartbeatInterval:     time.Second,
		InitialHeartbeatDelay: 45 * time.Millisecond,
		PromotionTick:         10 * time.Millisecond,
	})
	span := h.start("promote-me")
	id := span.SpanContext().SpanID()

	h.advanceTo(40 * time.Millisecond)
	assert.True(t, h.p.IsDelayed(id))
	assert.False(t, h.p.IsReady(id))

	// due at 45ms, so the 50ms tick must promote it; well inside delay+tick
	h.advanceTo(50 * time.Millisecond)
	assert.False(t, h.p.IsDelayed(id))
	assert.True(t, h.p.IsReady(id))
	assert.Equal(t, Counts{Active: 1, Delayed: 0, Ready: 1, DelayQueueLen: 0}, h.p.Counts())
	span.End()
}

func TestHeartbeatCadence(t *testing.T) {
	h := newHarness(t, scenarioOptions())
	span := h.start("steady")
	id := span.SpanContext().SpanID()

	h.advanceTo(50 * time.Millisecond)
	require.True(t, h.p.IsReady(id))

	var schedule []time.Time
	for _, at := range []time.Duration{100, 200, 300} {
		h.advanceTo(at * time.Millisecond)
		h.p.mut.Lock()
		e, ok := h.p.ready.get(id)
		require.True(t, ok)
		schedule = append(schedule, e.nextHeartbeat)
		h.p.mut.Unlock()
	}

	beats := h.writesFor(span, snapshot.Heartbeat)
	require.GreaterOrEqual(t, len(beats), 3)
	for i := 1; i < len(schedule); i++ {
		assert.True(t, schedule[i].After(schedule[i-1]), "heartbeat schedule must strictly increase")
	}
	first := beats[0].Doc.Span()
	for _, b := range beats {
		assert.Equal(t, first.TraceID, b.Doc.Span().TraceID)
		assert.Equal(t, first.SpanID, b.Doc.Span().SpanID)
		assert.Nil(t, b.Doc.Span().EndTimeUnixNano)
	}
	span.End()
}

func TestHeartbeatReadsLiveSpan(t *testing.T) {
	h := newHarness(t, scenarioOptions())
	span := h.start("changing")
	span.SetAttributes(attribute.Int("progress", 1))

	h.advanceTo(100 * time.Millisecond)
	span.SetAttributes(attribute.Int("progress", 2))
	span.SetStatus(codes.Error, "slow disk")
	h.advanceTo(200 * time.Millisecond)
	span.End()

	beats := h.writesFor(span, snapshot.Heartbeat)
	require.Len(t, beats, 2)
	assert.Contains(t, beats[0].Line, `{"key":"progress","value":1}`)
	assert.Contains(t, beats[1].Line, `{"key":"progress","value":2}`)
	assert.Equal(t, "error", beats[1].Doc.Span().Status.Code)

	stops := h.writesFor(span, snapshot.Stop)
	require.Len(t, stops, 1)
	assert.NotNil(t, stops[0].Doc.Span().EndTimeUnixNano)
	assert.Contains(t, stops[0].Line, `"end_time_unix_nano"`)
}

func TestExactlyOneStop(t *testing.T) {
	h := newHarness(t, scenarioOptions())
	spans := []trace.Span{h.start("a"), h.start("b"), h.start("c")}

	h.advanceTo(200 * time.Millisecond)
	for _, s := range spans {
		s.End()
	}
	h.p.OnEnd(spans[0].(sdktrace.ReadOnlySpan))
	assert.Equal(t, 1, h.metrics.CounterValue("partial_span_unknown_end"))
	h.advanceTo(500 * time.Millisecond)

	for _, s := range spans {
		writes := h.sink.WritesFor(s.SpanContext().SpanID().String())
		require.NotEmpty(t, writes)
		assert.Len(t, h.writesFor(s, snapshot.Stop), 1)
		assert.Equal(t, snapshot.Stop, writes[len(writes)-1].Signal)
	}
	assert.Equal(t, Counts{}, h.p.Counts())
}

func TestDoubleEndDuringGrace(t *testing.T) {
	h := newHarness(t, scenarioOptions())
	span := h.start("twice")
	id := span.SpanContext().SpanID()

	assert.NotPanics(t, func() {
		h.p.OnEnd(span.(sdktrace.ReadOnlySpan))
		h.p.OnEnd(span.(sdktrace.ReadOnlySpan))
	})
	h.advanceTo(300 * time.Millisecond)

	assert.Empty(t, h.sink.WritesFor(id.String()))
	assert.Equal(t, 1, h.metrics.CounterValue("partial_span_fast_path"))
	assert.Equal(t, 1, h.metrics.CounterValue("partial_span_unknown_end"))
	span.End()
}

type fixedIDs struct {
	traceID trace.TraceID
	spanID  trace.SpanID
}

func (f fixedIDs) NewIDs(context.Context) (trace.TraceID, trace.SpanID) {
	return f.traceID, f.spanID
}

func (f fixedIDs) NewSpanID(context.Context, trace.TraceID) trace.SpanID {
	return f.spanID
}

var reusedIDs = fixedIDs{
	traceID: trace.TraceID{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
	spanID:  trace.SpanID{2, 2, 2, 2, 2, 2, 2, 2},
}

func TestDuplicateStartIgnored(t *testing.T) {
	h := newHarness(t, scenarioOptions(), sdktrace.WithIDGenerator(reusedIDs))
	first := h.start("first")
	second := h.start("second")

	assert.Equal(t, 1, h.metrics.CounterValue("partial_span_duplicate_start"))
	assert.Equal(t, 1, h.p.Counts().Active)
	assert.Equal(t, 1, h.p.Counts().DelayQueueLen)

	first.End()
	second.End()
	assert.Equal(t, 1, h.metrics.CounterValue("partial_span_fast_path"))
	assert.Equal(t, 1, h.metrics.CounterValue("partial_span_unknown_end"))
	assert.NotEmpty(t, h.logger.EventsAt(config.DebugLevel))
	assert.Equal(t, Counts{DelayQueueLen: 1}, h.p.Counts())
}

func TestReusedSpanIDWaitsFullDelay(t *testing.T) {
	h := newHarness(t, scenarioOptions(), sdktrace.WithIDGenerator(reusedIDs))
	id := reusedIDs.spanID

	first := h.start("first")
	h.advanceTo(10 * time.Millisecond)
	first.End()

	h.advanceTo(20 * time.Millisecond)
	second := h.start("second")
	require.True(t, h.p.IsDelayed(id))

	// the first span's entry comes due at 50ms and must not promote the second
	h.advanceTo(50 * time.Millisecond)
	assert.True(t, h.p.IsDelayed(id))
	assert.False(t, h.p.IsReady(id))
	assert.Equal(t, 1, h.metrics.CounterValue("partial_span_stale_dropped"))

	h.advanceTo(70 * time.Millisecond)
	assert.True(t, h.p.IsReady(id))
	second.End()
	assert.Len(t, h.writesFor(second, snapshot.Stop), 1)
}

func TestNilSpansIgnored(t *testing.T) {
	h := newHarness(t, scenarioOptions())
	assert.NotPanics(t, func() {
		h.p.OnStart(context.Background(), nil)
		h.p.OnEnd(nil)
	})
	assert.Equal(t, Counts{}, h.p.Counts())
}

func TestSinkErrorsAreContained(t *testing.T) {
	h := newHarness(t, scenarioOptions())
	h.sink.SetErr(errors.New("disk full"))
	span := h.start("unlucky")

	h.advanceTo(300 * time.Millisecond)
	assert.GreaterOrEqual(t, h.metrics.CounterValue("partial_span_sink_errors"), 2)
	assert.Equal(t, 0, h.metrics.CounterValue("partial_span_heartbeats"))

	assert.NotPanics(t, func() { span.End() })
	assert.Len(t, h.writesFor(span, snapshot.Stop), 1)

	errs := h.logger.EventsAt(config.ErrorLevel)
	require.NotEmpty(t, errs)
	assert.Equal(t, span.SpanContext().SpanID().String(), errs[0].Fields["span_id"])
	assert.Equal(t, "heartbeat", errs[0].Fields["signal"])
	assert.Contains(t, errs[0].Fields["error"], "disk full")
	assert.Equal(t, "stop", errs[len(errs)-1].Fields["signal"])

	// the loops keep going once the sink recovers
	h.sink.SetErr(nil)
	other := h.start("lucky")
	h.advanceTo(400 * time.Millisecond)
	assert.NotEmpty(t, h.writesFor(other, snapshot.Heartbeat))
	other.End()
}

func TestSinkPanicIsRecovered(t *testing.T) {
	h := newHarness(t, scenarioOptions())
	h.sink.SetPanic(true)
	span := h.start("explosive")

	h.advanceTo(200 * time.Millisecond)
	assert.NotPanics(t, func() { span.End() })
	assert.GreaterOrEqual(t, h.metrics.CounterValue("partial_span_sink_errors"), 2)

	h.sink.SetPanic(false)
	other := h.start("calm")
	h.advanceTo(300 * time.Millisecond)
	assert.NotEmpty(t, h.writesFor(other, snapshot.Heartbeat))
	other.End()
}

func TestShutdownStopsEmission(t *testing.T) {
	h := newHarness(t, scenarioOptions())
	span := h.start("outlives-shutdown")
	id := span.SpanContext().SpanID()

	h.advanceTo(100 * time.Millisecond)
	require.True(t, h.p.IsReady(id))
	writes := len(h.sink.Writes())

	require.NoError(t, h.p.Shutdown(t.Context()))
	require.NoError(t, h.p.Shutdown(t.Context()), "shutdown is idempotent")
	assert.NoError(t, h.p.Start(), "start after shutdown is a no-op")

	h.clock.Advance(time.Second)
	span.End()
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, h.sink.Writes(), writes)

	_, ok := h.health.Registered(loopHealthPrefix + "heartbeat")
	assert.False(t, ok)
}

func TestShutdownHonorsContext(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, scenarioOptions())
	h.sink.OnWrite = func(sink.MockSinkWrite) { <-release }
	span := h.start("slow-sink")
	h.advanceTo(60 * time.Millisecond)

	// the heartbeat loop blocks inside the sink
	h.clock.Advance(40 * time.Millisecond)
	require.Eventually(t, func() bool { return len(h.sink.Writes()) == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.p.Shutdown(ctx), context.DeadlineExceeded)

	close(release)
	assert.NoError(t, h.p.Shutdown(t.Context()))
	span.End()
}

func TestHealthRegistration(t *testing.T) {
	h := newHarness(t, Options{
		HeartbeatInterval:     20 * time.Second,
		InitialHeartbeatDelay: time.Second,
		PromotionTick:         time.Second,
	})
	d, ok := h.health.Registered(loopHealthPrefix + "heartbeat")
	require.True(t, ok)
	assert.Equal(t, 40*time.Second, d)
	d, ok = h.health.Registered(loopHealthPrefix + "promotion")
	require.True(t, ok)
	assert.Equal(t, defaultHealthCheckTimeout, d)

	before := h.health.Reports(loopHealthPrefix + "promotion")
	h.advance()
	assert.Eventually(t, func() bool {
		return h.health.Reports(loopHealthPrefix+"promotion") > before
	}, time.Second, time.Millisecond)
}

func TestGaugesReported(t *testing.T) {
	h := newHarness(t, scenarioOptions())
	a := h.start("a")
	b := h.start("b")
	h.advanceTo(60 * time.Millisecond)
	c := h.start("c")
	h.advanceTo(70 * time.Millisecond)

	assert.Eventually(t, func() bool {
		active, _ := h.metrics.GaugeValue("partial_span_active")
		delayed, _ := h.metrics.GaugeValue("partial_span_delayed")
		ready, _ := h.metrics.GaugeValue("partial_span_ready")
		return active == 3 && delayed == 1 && ready == 2
	}, time.Second, time.Millisecond)
	for _, s := range []trace.Span{a, b, c} {
		s.End()
	}
}

func TestTracerProviderShutdownStopsProcessor(t *testing.T) {
	h := newHarness(t, scenarioOptions())
	require.NoError(t, h.tp.Shutdown(t.Context()))
	select {
	case <-h.p.loopsDone:
	case <-time.After(time.Second):
		t.Fatal("loops still running after tracer provider shutdown")
	}
}

func TestScenarioRealClock(t *testing.T) {
	s := &sink.MockSink{}
	p, err := NewStarted(s, scenarioOptions())
	require.NoError(t, err)
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(p))
	defer tp.Shutdown(context.Background())

	_, span := tp.Tracer("real-clock").Start(context.Background(), "wall-clock")
	id := span.SpanContext().SpanID()

	time.Sleep(10 * time.Millisecond)
	assert.False(t, p.IsReady(id))

	assert.Eventually(t, func() bool { return p.IsReady(id) }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return len(s.WritesFor(id.String())) >= 1 }, time.Second, 5*time.Millisecond)

	span.End()
	ended := len(s.WritesFor(id.String()))
	time.Sleep(250 * time.Millisecond)

	writes := s.WritesFor(id.String())
	assert.Len(t, writes, ended)
	var stops int
	for _, w := range writes {
		if w.Signal == snapshot.Stop {
			stops++
		}
	}
	assert.Equal(t, 1, stops)
	assert.Equal(t, snapshot.Stop, writes[len(writes)-1].Signal)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, p.Shutdown(ctx))
}

func TestZeroIntervalsBusyLoop(t *testing.T) {
	s := &sink.MockSink{}
	p, err := NewStarted(s, Options{})
	require.NoError(t, err)
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(p))
	defer tp.Shutdown(context.Background())

	_, span := tp.Tracer("zero").Start(context.Background(), "busy")
	id := span.SpanContext().SpanID().String()
	assert.Eventually(t, func() bool { return len(s.WritesFor(id)) >= 3 }, time.Second, time.Millisecond)
	span.End()

	require.NoError(t, p.Shutdown(t.Context()))
	writes := s.WritesFor(id)
	assert.Equal(t, snapshot.Stop, writes[len(writes)-1].Signal)
	for _, w := range writes[:len(writes)-1] {
		assert.Equal(t, snapshot.Heartbeat, w.Signal)
	}
}

func TestConcurrentProducers(t *testing.T) {
	s := &sink.MockSink{}
	p, err := NewStarted(s, Options{
		HeartbeatInterval:     2 * time.Millisecond,
		InitialHeartbeatDelay: 3 * time.Millisecond,
		PromotionTick:         0,
	})
	require.NoError(t, err)
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(p))
	tracer := tp.Tracer("concurrent")

	var (
		wg  sync.WaitGroup
		mut sync.Mutex
		ids []string
	)
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 25 {
				_, span := tracer.Start(context.Background(), "work")
				mut.Lock()
				ids = append(ids, span.SpanContext().SpanID().String())
				mut.Unlock()
				time.Sleep(time.Duration((i*j)%7) * time.Millisecond)
				span.End()
			}
		}()
	}
	wg.Wait()
	require.NoError(t, tp.Shutdown(t.Context()))

	c := p.Counts()
	assert.Zero(t, c.Active)
	assert.Zero(t, c.Delayed)
	assert.Zero(t, c.Ready)
	for _, id := range ids {
		writes := s.WritesFor(id)
		if len(writes) == 0 {
			continue
		}
		var stops int
		for _, w := range writes {
			if w.Signal == snapshot.Stop {
				stops++
			}
		}
		assert.Equal(t, 1, stops, "span %s", id)
		assert.Equal(t, snapshot.Stop, writes[len(writes)-1].Signal, "span %s", id)
	}
	for _, line := range s.Lines() {
		assert.False(t, strings.Contains(line, "\n"))
	}
}
