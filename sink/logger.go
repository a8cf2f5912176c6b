package sink

import (
	"github.com/honeycombio/spanbeat/logger"
	"github.com/honeycombio/spanbeat/snapshot"
)

var (
	_ LogSink        = (*LoggerSink)(nil)
	_ SnapshotWriter = (*LoggerSink)(nil)
)

// LoggerSink writes each snapshot through the process logger at info level.
type LoggerSink struct {
	Logger logger.Logger
}

func (s *LoggerSink) Write(line string) error {
	s.Logger.Info().Logf("%s", line)
	return nil
}

func (s *LoggerSink) WriteSnapshot(doc snapshot.Document, line string) error {
	span := doc.Span()
	s.Logger.Info().WithFields(map[string]any{
		"signal":   doc.Signal.String(),
		"trace_id": span.TraceID,
		"span_id":  span.SpanID,
	}).Logf("%s", line)
	return nil
}
