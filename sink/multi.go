package sink

import (
	"errors"

	"github.com/honeycombio/spanbeat/snapshot"
)

var (
	_ LogSink        = (*MultiSink)(nil)
	_ SnapshotWriter = (*MultiSink)(nil)
)

// MultiSink writes every line to each of its children in order. A failing
// child does not stop the others; all errors are returned together.
type MultiSink struct {
	children []LogSink
}

func NewMultiSink(children ...LogSink) *MultiSink {
	return &MultiSink{children: children}
}

func (m *MultiSink) Write(line string) error {
	var errs []error
	for _, ch := range m.children {
		if err := ch.Write(line); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) WriteSnapshot(doc snapshot.Document, line string) error {
	var errs []error
	for _, ch := range m.children {
		if err := WriteSnapshot(ch, doc, line); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) Close() error {
	var errs []error
	for _, ch := range m.children {
		if err := Close(ch); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
