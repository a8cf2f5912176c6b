package sink

import (
	"github.com/honeycombio/libhoney-go"
	"github.com/honeycombio/libhoney-go/transmission"
	"github.com/pkg/errors"

	"github.com/honeycombio/spanbeat/config"
	"github.com/honeycombio/spanbeat/snapshot"
)

var (
	_ LogSink        = (*HoneycombSink)(nil)
	_ SnapshotWriter = (*HoneycombSink)(nil)
)

// HoneycombSink sends every snapshot to Honeycomb as one event. The raw line
// goes in the snapshot field; the span identity and signal are lifted out so
// they can be queried directly.
type HoneycombSink struct {
	client *libhoney.Client
}

// NewHoneycombSink builds a libhoney client for the configured dataset. A nil
// sender gets the standard batching transmission.
func NewHoneycombSink(hc config.HoneycombSinkConfig, tx transmission.Sender) (*HoneycombSink, error) {
	if tx == nil {
		tx = &transmission.Honeycomb{
			MaxBatchSize:         libhoney.DefaultMaxBatchSize,
			BatchTimeout:         libhoney.DefaultBatchTimeout,
			MaxConcurrentBatches: libhoney.DefaultMaxConcurrentBatches,
			PendingWorkCapacity:  libhoney.DefaultPendingWorkCapacity,
			UserAgentAddition:    "spanbeat",
		}
	}
	client, err := libhoney.NewClient(libhoney.ClientConfig{
		APIHost:      hc.APIHost,
		APIKey:       hc.APIKey,
		Dataset:      hc.Dataset,
		Transmission: tx,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating honeycomb client")
	}
	return &HoneycombSink{client: client}, nil
}

func (s *HoneycombSink) Write(line string) error {
	ev := s.client.NewEvent()
	ev.AddField("snapshot", line)
	return errors.Wrap(ev.Send(), "sending snapshot event")
}

func (s *HoneycombSink) WriteSnapshot(doc snapshot.Document, line string) error {
	span := doc.Span()
	ev := s.client.NewEvent()
	ev.AddField("snapshot", line)
	ev.AddField("trace.trace_id", span.TraceID)
	ev.AddField("trace.span_id", span.SpanID)
	if span.ParentSpanID != "" {
		ev.AddField("trace.parent_id", span.ParentSpanID)
	}
	ev.AddField("name", span.Name)
	ev.AddField("meta.signal", doc.Signal.String())
	return errors.Wrapf(ev.Send(), "sending %s event for span %s", doc.Signal, span.SpanID)
}

// Close flushes anything still batched and shuts the client down.
func (s *HoneycombSink) Close() error {
	s.client.Close()
	return nil
}
