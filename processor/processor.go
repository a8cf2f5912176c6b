// Package processor emits partial span snapshots. Spans that outlive a grace
// period get a heartbeat snapshot of their live state every interval, and a
// final stop snapshot when they end. Spans that end inside the grace period
// produce nothing.
package processor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sourcegraph/conc"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/honeycombio/spanbeat/config"
	"github.com/honeycombio/spanbeat/generics"
	"github.com/honeycombio/spanbeat/internal/health"
	"github.com/honeycombio/spanbeat/logger"
	"github.com/honeycombio/spanbeat/metrics"
	"github.com/honeycombio/spanbeat/sink"
	"github.com/honeycombio/spanbeat/snapshot"
)

const defaultHealthCheckTimeout = 15 * time.Second

// Options configures a PartialSpanProcessor. The durations are fixed for the
// life of the processor. The collaborators are optional.
type Options struct {
	// HeartbeatInterval is the time between heartbeats for one span, and how
	// often the heartbeat loop wakes up.
	HeartbeatInterval time.Duration
	// InitialHeartbeatDelay is the grace period. Spans that end before it
	// elapses are never written.
	InitialHeartbeatDelay time.Duration
	// PromotionTick is how often spans past their grace period are moved onto
	// the heartbeat schedule.
	PromotionTick time.Duration

	Clock   clockwork.Clock
	Logger  logger.Logger
	Metrics metrics.Metrics
	Health  health.Recorder
	// HealthCheckTimeout is the longest either loop may go without reporting
	// to Health. It is raised to twice the loop's own interval if that is
	// longer.
	HealthCheckTimeout time.Duration
}

// OptionsFromConfig fills the timing fields from the heartbeat config.
func OptionsFromConfig(c config.Config) Options {
	hc := c.GetHeartbeatConfig()
	return Options{
		HeartbeatInterval:     time.Duration(hc.HeartbeatInterval),
		InitialHeartbeatDelay: time.Duration(hc.InitialHeartbeatDelay),
		PromotionTick:         time.Duration(hc.PromotionTick),
		HealthCheckTimeout:    c.GetHealthCheckTimeout(),
	}
}

// Counts is a point-in-time view of the processor's bookkeeping.
type Counts struct {
	Active  int `json:"active"`
	Delayed int `json:"delayed"`
	Ready   int `json:"ready"`
	// DelayQueueLen includes entries for spans that already ended and have
	// not yet been discarded.
	DelayQueueLen int `json:"delay_queue_len"`
}

var processorMetrics = []metrics.Metadata{
	{Name: "partial_span_started", Type: metrics.Counter, Unit: metrics.Dimensionless, Description: "spans seen starting"},
	{Name: "partial_span_fast_path", Type: metrics.Counter, Unit: metrics.Dimensionless, Description: "spans that ended inside the grace period"},
	{Name: "partial_span_promoted", Type: metrics.Counter, Unit: metrics.Dimensionless, Description: "spans moved onto the heartbeat schedule"},
	{Name: "partial_span_stale_dropped", Type: metrics.Counter, Unit: metrics.Dimensionless, Description: "delay entries discarded because their span had ended"},
	{Name: "partial_span_heartbeats", Type: metrics.Counter, Unit: metrics.Dimensionless, Description: "heartbeat snapshots written"},
	{Name: "partial_span_stops", Type: metrics.Counter, Unit: metrics.Dimensionless, Description: "stop snapshots written"},
	{Name: "partial_span_sink_errors", Type: metrics.Counter, Unit: metrics.Dimensionless, Description: "snapshot writes the sink rejected"},
	{Name: "partial_span_serialize_errors", Type: metrics.Counter, Unit: metrics.Dimensionless, Description: "snapshots that could not be encoded"},
	{Name: "partial_span_duplicate_start", Type: metrics.Counter, Unit: metrics.Dimensionless, Description: "starts for a span id that was already active"},
	{Name: "partial_span_unknown_end", Type: metrics.Counter, Unit: metrics.Dimensionless, Description: "ends for a span id that was not being tracked"},
	{Name: "partial_span_active", Type: metrics.Gauge, Unit: metrics.Dimensionless, Description: "spans started and not yet ended"},
	{Name: "partial_span_delayed", Type: metrics.Gauge, Unit: metrics.Dimensionless, Description: "spans inside their grace period"},
	{Name: "partial_span_ready", Type: metrics.Gauge, Unit: metrics.Dimensionless, Description: "spans receiving heartbeats"},
	{Name: "partial_span_heartbeat_loop_ms", Type: metrics.Histogram, Unit: metrics.Milliseconds, Description: "time spent in one pass of the heartbeat loop"},
	{Name: "partial_span_promotion_loop_ms", Type: metrics.Histogram, Unit: metrics.Milliseconds, Description: "time spent in one pass of the promotion loop"},
}

// PartialSpanProcessor is an sdktrace.SpanProcessor that writes heartbeat and
// stop snapshots for long-running spans to a LogSink.
type PartialSpanProcessor struct {
	sink              sink.LogSink
	heartbeatInterval time.Duration
	initialDelay      time.Duration
	promotionTick     time.Duration
	healthTimeout     time.Duration

	clock   clockwork.Clock
	logger  logger.Logger
	metrics metrics.Metrics
	health  health.Recorder

	// mut guards active, delayLookup, ready, started and stopped.
	mut    sync.Mutex
	active generics.Set[trace.SpanID]
	// delayLookup maps each span in its grace period to the order of its
	// delay entry, so an entry left behind by an earlier span with the same
	// id is never promoted
	delayLookup map[trace.SpanID]uint64
	ready       *readyQueue
	started     bool
	stopped     bool
	// inflight counts stop snapshots being written outside the lock
	inflight sync.WaitGroup

	delayed delayQueue

	done      chan struct{}
	loops     conc.WaitGroup
	stopOnce  sync.Once
	loopsDone chan struct{}
	loopPanic atomic.Pointer[error]
}

var _ sdktrace.SpanProcessor = (*PartialSpanProcessor)(nil)

// New validates the options and builds a processor. The loops do not run until
// Start is called.
func New(s sink.LogSink, opts Options) (*PartialSpanProcessor, error) {
	if s == nil {
		return nil, ErrNilLogSink
	}
	if opts.HeartbeatInterval < 0 {
		return nil, ErrNegativeHeartbeatInterval
	}
	if opts.InitialHeartbeatDelay < 0 {
		return nil, ErrNegativeInitialHeartbeatDelay
	}
	if opts.PromotionTick < 0 {
		return nil, ErrNegativePromotionTick
	}

	p := &PartialSpanProcessor{
		sink:              s,
		heartbeatInterval: opts.HeartbeatInterval,
		initialDelay:      opts.InitialHeartbeatDelay,
		promotionTick:     opts.PromotionTick,
		healthTimeout:     opts.HealthCheckTimeout,
		clock:             opts.Clock,
		logger:            opts.Logger,
		metrics:           opts.Metrics,
		health:            opts.Health,
		active:            generics.NewSet[trace.SpanID](),
		delayLookup:       make(map[trace.SpanID]uint64),
		ready:             newReadyQueue(),
		done:              make(chan struct{}),
		loopsDone:         make(chan struct{}),
	}
	if p.clock == nil {
		p.clock = clockwork.NewRealClock()
	}
	if p.logger == nil {
		p.logger = &logger.NullLogger{}
	}
	if p.metrics == nil {
		p.metrics = &metrics.NullMetrics{}
	}
	if p.health == nil {
		p.health = nullRecorder{}
	}
	if p.healthTimeout <= 0 {
		p.healthTimeout = defaultHealthCheckTimeout
	}
	for _, m := range processorMetrics {
		p.metrics.Register(m)
	}
	return p, nil
}

// NewStarted is New followed by Start.
func NewStarted(s sink.LogSink, opts Options) (*PartialSpanProcessor, error) {
	p, err := New(s, opts)
	if err != nil {
		return nil, err
	}
	if err := p.Start(); err != nil {
		return nil, err
	}
	return p, nil
}

// Start launches the promotion and heartbeat loops. Calling it again, or
// after Shutdown, has no effect.
func (p *PartialSpanProcessor) Start() error {
	p.mut.Lock()
	if p.started || p.stopped {
		p.mut.Unlock()
		return nil
	}
	p.started = true
	p.mut.Unlock()

	p.logger.Debug().WithFields(map[string]any{
		"heartbeat_interval":      p.heartbeatInterval,
		"initial_heartbeat_delay": p.initialDelay,
		"promotion_tick":          p.promotionTick,
	}).Logf("starting partial span processor")

	p.loops.Go(func() { p.runLoop("promotion", p.promotionTick, p.promote) })
	p.loops.Go(func() { p.runLoop("heartbeat", p.heartbeatInterval, p.heartbeat) })
	go func() {
		if r := p.loops.WaitAndRecover(); r != nil {
			err := r.AsError()
			p.loopPanic.Store(&err)
			p.logger.Error().Logf("partial span loop panicked: %s", r.String())
		}
		close(p.loopsDone)
	}()
	return nil
}

// Stop is Shutdown with a background context, for startstop.
func (p *PartialSpanProcessor) Stop() error {
	return p.Shutdown(context.Background())
}

// OnStart places a new span in its grace period. Nothing is written.
func (p *PartialSpanProcessor) OnStart(_ context.Context, span sdktrace.ReadWriteSpan) {
	if span == nil {
		return
	}
	id := span.SpanContext().SpanID()

	p.mut.Lock()
	if !p.active.TryAdd(id) {
		p.mut.Unlock()
		p.metrics.Increment("partial_span_duplicate_start")
		p.logger.Debug().WithString("span_id", id.String()).Logf("ignoring start for span that is already active")
		return
	}
	// pushed under mut so the promotion loop cannot pop the entry before
	// delayLookup knows its order
	p.delayLookup[id] = p.delayed.push(delayEntry{
		spanID: id,
		span:   span,
		dueAt:  p.clock.Now().Add(p.initialDelay),
	})
	p.mut.Unlock()

	p.metrics.Increment("partial_span_started")
}

// OnEnd either forgets a span that ended during its grace period or, for a
// span receiving heartbeats, writes its stop snapshot before returning.
func (p *PartialSpanProcessor) OnEnd(span sdktrace.ReadOnlySpan) {
	if span == nil {
		return
	}
	id := span.SpanContext().SpanID()

	p.mut.Lock()
	if _, ok := p.delayLookup[id]; ok {
		delete(p.delayLookup, id)
		p.active.Remove(id)
		p.mut.Unlock()
		p.metrics.Increment("partial_span_fast_path")
		return
	}
	entry, ok := p.ready.remove(id)
	if !ok {
		p.mut.Unlock()
		p.metrics.Increment("partial_span_unknown_end")
		p.logger.Debug().WithString("span_id", id.String()).Logf("ignoring end for span that is not tracked")
		return
	}
	p.active.Remove(id)
	if p.stopped {
		p.mut.Unlock()
		return
	}
	p.inflight.Add(1)
	p.mut.Unlock()
	defer p.inflight.Done()

	entry.emitMu.Lock()
	defer entry.emitMu.Unlock()
	entry.ended = true
	p.emit(span, snapshot.Stop, entry.seq)
}

// Shutdown stops both loops and waits for them and for any stop snapshot
// being written. Nothing is written once it returns. If ctx ends first its
// error is returned and the loops finish on their own.
func (p *PartialSpanProcessor) Shutdown(ctx context.Context) error {
	p.stopOnce.Do(func() {
		p.mut.Lock()
		p.stopped = true
		started := p.started
		p.mut.Unlock()
		close(p.done)
		if !started {
			close(p.loopsDone)
		}
	})

	finished := make(chan struct{})
	go func() {
		<-p.loopsDone
		p.inflight.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := p.loopPanic.Load(); err != nil {
		return *err
	}
	return nil
}

// ForceFlush has nothing to flush; snapshots are written synchronously.
func (p *PartialSpanProcessor) ForceFlush(context.Context) error {
	return nil
}

// IsActive reports whether the span has started and not yet ended.
func (p *PartialSpanProcessor) IsActive(id trace.SpanID) bool {
	p.mut.Lock()
	defer p.mut.Unlock()
	return p.active.Contains(id)
}

// IsDelayed reports whether the span is still inside its initial heartbeat delay.
func (p *PartialSpanProcessor) IsDelayed(id trace.SpanID) bool {
	p.mut.Lock()
	defer p.mut.Unlock()
	_, ok := p.delayLookup[id]
	return ok
}

// IsReady reports whether the span has been promoted and is receiving heartbeats.
func (p *PartialSpanProcessor) IsReady(id trace.SpanID) bool {
	p.mut.Lock()
	defer p.mut.Unlock()
	return p.ready.contains(id)
}

// Counts returns the current size of each set and queue. DelayQueueLen includes
// entries left behind by spans that ended during their delay.
func (p *PartialSpanProcessor) Counts() Counts {
	p.mut.Lock()
	c := Counts{
		Active:  p.active.Len(),
		Delayed: len(p.delayLookup),
		Ready:   p.ready.len(),
	}
	p.mut.Unlock()
	c.DelayQueueLen = p.delayed.len()
	return c
}

type nullRecorder struct{}

func (nullRecorder) Register(string, time.Duration) {}
func (nullRecorder) Unregister(string)              {}
func (nullRecorder) Ready(string, bool)             {}
