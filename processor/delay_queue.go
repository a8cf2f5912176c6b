package processor

import (
	"sync"
	"time"

	"github.com/rdleal/go-priorityq/kpq"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// delayEntry is a span waiting out its grace period. Ending the span does not
// remove its entry; the promotion loop discards entries that no longer match
// the processor's delay lookup.
type delayEntry struct {
	spanID trace.SpanID
	span   sdktrace.ReadOnlySpan
	dueAt  time.Time
	// order is unique per push. It breaks ties between equal due times and
	// identifies the entry in the delay lookup.
	order uint64
}

func delayBefore(a, b delayEntry) bool {
	if a.dueAt.Equal(b.dueAt) {
		return a.order < b.order
	}
	return a.dueAt.Before(b.dueAt)
}

// delayQueue holds delay entries keyed by push order and ordered by due time.
// A reused span id gets a second entry rather than replacing the first. It
// has its own lock so producers pushing never wait on the processor's
// bookkeeping lock. The zero value is ready to use.
type delayQueue struct {
	pq   *kpq.KeyedPriorityQueue[uint64, delayEntry]
	next uint64
	mut  sync.Mutex
}

// queue must be called with the lock held.
func (q *delayQueue) queue() *kpq.KeyedPriorityQueue[uint64, delayEntry] {
	if q.pq == nil {
		q.pq = kpq.NewKeyedPriorityQueue[uint64, delayEntry](delayBefore)
	}
	return q.pq
}

// push queues e and returns the order it was given.
func (q *delayQueue) push(e delayEntry) uint64 {
	q.mut.Lock()
	defer q.mut.Unlock()
	e.order = q.next
	q.next++
	// orders are never reused, so the key is always new
	_ = q.queue().Push(e.order, e)
	return e.order
}

// popDue removes and returns every entry due at or before now, earliest first.
func (q *delayQueue) popDue(now time.Time) []delayEntry {
	q.mut.Lock()
	defer q.mut.Unlock()
	pq := q.queue()
	var due []delayEntry
	for {
		head, ok := pq.PeekValue()
		if !ok || head.dueAt.After(now) {
			return due
		}
		_, e, _ := pq.Pop()
		due = append(due, e)
	}
}

func (q *delayQueue) len() int {
	q.mut.Lock()
	defer q.mut.Unlock()
	return q.queue().Len()
}
