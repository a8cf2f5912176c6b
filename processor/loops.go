package processor

import (
	"runtime"
	"time"

	"github.com/sourcegraph/conc/panics"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/honeycombio/spanbeat/internal/health"
	"github.com/honeycombio/spanbeat/sink"
	"github.com/honeycombio/spanbeat/snapshot"
)

const loopHealthPrefix = "partial-span-"

// runLoop calls tick every interval until Shutdown. A zero interval runs tick
// back to back, yielding the processor between passes.
func (p *PartialSpanProcessor) runLoop(name string, interval time.Duration, tick func(now time.Time)) {
	healthKey := loopHealthPrefix + name
	p.health.Register(healthKey, max(p.healthTimeout, 2*interval))
	defer p.health.Unregister(healthKey)

	var ticks <-chan time.Time
	if interval > 0 {
		ticker := p.clock.NewTicker(interval)
		defer ticker.Stop()
		ticks = ticker.Chan()
	}

	p.health.Ready(healthKey, true)
	lastReport := p.clock.Now()
	histogram := "partial_span_" + name + "_loop_ms"
	for {
		if ticks != nil {
			select {
			case <-p.done:
				return
			case <-ticks:
			}
		} else {
			select {
			case <-p.done:
				return
			default:
				runtime.Gosched()
			}
		}

		start := p.clock.Now()
		tick(start)
		p.reportGauges()
		p.metrics.Histogram(histogram, float64(p.clock.Since(start).Milliseconds()))

		if interval > 0 || p.clock.Since(lastReport) >= health.TickerTime {
			p.health.Ready(healthKey, true)
			lastReport = p.clock.Now()
		}
	}
}

// promote moves every delay entry due by now onto the heartbeat schedule,
// dropping entries whose span has already ended. It never writes.
func (p *PartialSpanProcessor) promote(now time.Time) {
	due := p.delayed.popDue(now)
	if len(due) == 0 {
		return
	}

	var promoted, stale int
	p.mut.Lock()
	for _, e := range due {
		if order, ok := p.delayLookup[e.spanID]; !ok || order != e.order {
			stale++
			continue
		}
		delete(p.delayLookup, e.spanID)
		p.ready.push(&readyEntry{
			spanID:        e.spanID,
			span:          e.span,
			nextHeartbeat: now,
		})
		promoted++
	}
	p.mut.Unlock()

	if promoted > 0 {
		p.metrics.Count("partial_span_promoted", promoted)
	}
	if stale > 0 {
		p.metrics.Count("partial_span_stale_dropped", stale)
	}
}

// heartbeat reschedules every span due by now and then, outside the lock,
// writes a heartbeat snapshot of each one's live state.
func (p *PartialSpanProcessor) heartbeat(now time.Time) {
	p.mut.Lock()
	due := p.ready.rescheduleDue(now, p.heartbeatInterval)
	p.mut.Unlock()

	for _, e := range due {
		select {
		case <-p.done:
			return
		default:
		}
		p.emitHeartbeat(e)
	}
}

func (p *PartialSpanProcessor) emitHeartbeat(e *readyEntry) {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()
	if e.ended {
		return
	}
	e.seq++
	p.emit(e.span, snapshot.Heartbeat, e.seq)
}

// emit serializes span and hands it to the sink. Failures are counted and
// logged; a panicking sink is recovered.
func (p *PartialSpanProcessor) emit(span sdktrace.ReadOnlySpan, sig snapshot.Signal, seq int) {
	id := span.SpanContext().SpanID().String()
	doc := snapshot.Build(span, sig)
	b, err := doc.Marshal()
	if err != nil {
		p.metrics.Increment("partial_span_serialize_errors")
		p.logger.Error().WithFields(map[string]any{
			"span_id": id,
			"signal":  sig.String(),
		}).Logf("failed to serialize snapshot: %s", err)
		return
	}

	if r := panics.Try(func() { err = sink.WriteSnapshot(p.sink, doc, string(b)) }); r != nil {
		err = r.AsError()
	}
	if err != nil {
		p.metrics.Increment("partial_span_sink_errors")
		p.logger.Error().WithFields(map[string]any{
			"span_id": id,
			"signal":  sig.String(),
		}).Logf("failed to write snapshot: %s", err)
		return
	}

	switch sig {
	case snapshot.Heartbeat:
		p.metrics.Increment("partial_span_heartbeats")
	case snapshot.Stop:
		p.metrics.Increment("partial_span_stops")
	}
	p.logger.Debug().WithFields(map[string]any{
		"span_id":   id,
		"signal":    sig.String(),
		"heartbeat": seq,
	}).Logf("wrote snapshot")
}

func (p *PartialSpanProcessor) reportGauges() {
	c := p.Counts()
	p.metrics.Gauge("partial_span_active", c.Active)
	p.metrics.Gauge("partial_span_delayed", c.Delayed)
	p.metrics.Gauge("partial_span_ready", c.Ready)
}
