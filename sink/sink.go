// Package sink holds the destinations that partial span snapshots are written
// to. Every sink accepts one complete JSON line per call and must be safe for
// concurrent use.
package sink

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/honeycombio/spanbeat/config"
	"github.com/honeycombio/spanbeat/logger"
	"github.com/honeycombio/spanbeat/snapshot"
)

// LogSink receives serialized snapshots, one line per call. The line has no
// trailing newline.
type LogSink interface {
	Write(line string) error
}

// SnapshotWriter is implemented by sinks that can make use of the decoded
// document as well as its encoding, usually to carry the signal or the span
// identity alongside the line.
type SnapshotWriter interface {
	WriteSnapshot(doc snapshot.Document, line string) error
}

// WriteSnapshot hands a snapshot to s, using WriteSnapshot when s supports it.
func WriteSnapshot(s LogSink, doc snapshot.Document, line string) error {
	if sw, ok := s.(SnapshotWriter); ok {
		return sw.WriteSnapshot(doc, line)
	}
	return s.Write(line)
}

// Close releases whatever s holds open. Sinks without resources are left alone.
func Close(s LogSink) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

var ErrUnknownSinkType = errors.New("unknown sink type")

// GetSinkImplementation builds the sink or sinks named by the config. More than
// one type yields a MultiSink writing to each in order.
func GetSinkImplementation(c config.Config, lgr logger.Logger) (LogSink, error) {
	sc := c.GetSinkConfig()
	var sinks []LogSink
	fail := func(err error) (LogSink, error) {
		for _, s := range sinks {
			Close(s)
		}
		return nil, err
	}
	for _, typ := range config.SinkTypes(sc.Type) {
		var (
			s   LogSink
			err error
		)
		switch typ {
		case "stdout":
			s = NewWriterSink(os.Stdout)
		case "file":
			s, err = NewFileSink(sc.File.Path)
		case "logger":
			s = &LoggerSink{Logger: lgr}
		case "honeycomb":
			s, err = NewHoneycombSink(sc.Honeycomb, nil)
		case "redis":
			s, err = NewRedisSink(sc.Redis)
		default:
			err = fmt.Errorf("%w: %q", ErrUnknownSinkType, typ)
		}
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, s)
	}
	switch len(sinks) {
	case 0:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSinkType, sc.Type)
	case 1:
		return sinks[0], nil
	default:
		return NewMultiSink(sinks...), nil
	}
}
