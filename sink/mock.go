package sink

import (
	"sync"

	"github.com/honeycombio/spanbeat/snapshot"
)

var (
	_ LogSink        = (*MockSink)(nil)
	_ SnapshotWriter = (*MockSink)(nil)
)

// MockSinkWrite is one recorded call. Signal is only meaningful when the write
// came through WriteSnapshot.
type MockSinkWrite struct {
	Line   string
	Doc    snapshot.Document
	Signal snapshot.Signal
}

// MockSink records what is written to it. Setting Err makes every write fail;
// setting Panic makes every write panic after it is recorded.
type MockSink struct {
	Err   error
	Panic bool
	// OnWrite, if set, runs after each write is recorded.
	OnWrite func(MockSinkWrite)

	writes []MockSinkWrite
	mut    sync.Mutex
	closed bool
}

func (m *MockSink) Write(line string) error {
	return m.record(MockSinkWrite{Line: line})
}

func (m *MockSink) WriteSnapshot(doc snapshot.Document, line string) error {
	return m.record(MockSinkWrite{Line: line, Doc: doc, Signal: doc.Signal})
}

func (m *MockSink) record(w MockSinkWrite) error {
	m.mut.Lock()
	m.writes = append(m.writes, w)
	err, shouldPanic, hook := m.Err, m.Panic, m.OnWrite
	m.mut.Unlock()

	if hook != nil {
		hook(w)
	}
	if shouldPanic {
		panic("mock sink panic")
	}
	return err
}

// Writes returns a copy of everything recorded so far.
func (m *MockSink) Writes() []MockSinkWrite {
	m.mut.Lock()
	defer m.mut.Unlock()
	out := make([]MockSinkWrite, len(m.writes))
	copy(out, m.writes)
	return out
}

func (m *MockSink) Lines() []string {
	m.mut.Lock()
	defer m.mut.Unlock()
	out := make([]string, 0, len(m.writes))
	for _, w := range m.writes {
		out = append(out, w.Line)
	}
	return out
}

// WritesFor returns the recorded writes for one span id, in order.
func (m *MockSink) WritesFor(spanID string) []MockSinkWrite {
	m.mut.Lock()
	defer m.mut.Unlock()
	var out []MockSinkWrite
	for _, w := range m.writes {
		if len(w.Doc.ResourceSpans) > 0 && w.Doc.Span().SpanID == spanID {
			out = append(out, w)
		}
	}
	return out
}

func (m *MockSink) SetErr(err error) {
	m.mut.Lock()
	defer m.mut.Unlock()
	m.Err = err
}

func (m *MockSink) SetPanic(p bool) {
	m.mut.Lock()
	defer m.mut.Unlock()
	m.Panic = p
}

func (m *MockSink) Close() error {
	m.mut.Lock()
	defer m.mut.Unlock()
	m.closed = true
	return nil
}

func (m *MockSink) Closed() bool {
	m.mut.Lock()
	defer m.mut.Unlock()
	return m.closed
}
