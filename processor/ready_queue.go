package processor

import (
	"sync"
	"time"

	"github.com/rdleal/go-priorityq/kpq"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// readyEntry is a promoted span that receives heartbeats. The scheduling
// fields are guarded by the processor lock; emitMu serializes the snapshots
// written for this span so nothing follows its stop line.
type readyEntry struct {
	spanID        trace.SpanID
	span          sdktrace.ReadOnlySpan
	nextHeartbeat time.Time
	order         uint64

	emitMu sync.Mutex
	ended  bool
	// seq counts heartbeats written for this span
	seq int
}

func heartbeatBefore(a, b *readyEntry) bool {
	if a.nextHeartbeat.Equal(b.nextHeartbeat) {
		return a.order < b.order
	}
	return a.nextHeartbeat.Before(b.nextHeartbeat)
}

// readyQueue orders promoted spans by their next heartbeat, keyed by span id
// so an ending span can be pulled out from anywhere in the queue. It is not
// locked itself; the processor lock covers it.
type readyQueue struct {
	pq   *kpq.KeyedPriorityQueue[trace.SpanID, *readyEntry]
	next uint64
}

func newReadyQueue() *readyQueue {
	return &readyQueue{pq: kpq.NewKeyedPriorityQueue[trace.SpanID, *readyEntry](heartbeatBefore)}
}

// push schedules e. An id already in the queue keeps its existing entry.
func (q *readyQueue) push(e *readyEntry) {
	if q.pq.Contains(e.spanID) {
		return
	}
	e.order = q.next
	q.next++
	_ = q.pq.Push(e.spanID, e)
}

func (q *readyQueue) contains(id trace.SpanID) bool {
	return q.pq.Contains(id)
}

func (q *readyQueue) get(id trace.SpanID) (*readyEntry, bool) {
	return q.pq.ValueOf(id)
}

// remove takes the entry for id out of the queue, if it is there.
func (q *readyQueue) remove(id trace.SpanID) (*readyEntry, bool) {
	e, ok := q.pq.ValueOf(id)
	if !ok {
		return nil, false
	}
	q.pq.Remove(id)
	return e, true
}

// rescheduleDue returns every entry whose heartbeat is due at or before now and
// moves each one to now+interval. An entry is returned at most once per call
// even when interval is zero.
func (q *readyQueue) rescheduleDue(now time.Time, interval time.Duration) []*readyEntry {
	var due []*readyEntry
	for {
		head, ok := q.pq.PeekValue()
		if !ok || head.nextHeartbeat.After(now) {
			break
		}
		_, e, _ := q.pq.Pop()
		due = append(due, e)
	}
	next := now.Add(interval)
	for _, e := range due {
		e.nextHeartbeat = next
		_ = q.pq.Push(e.spanID, e)
	}
	return due
}

func (q *readyQueue) len() int {
	return q.pq.Len()
}
