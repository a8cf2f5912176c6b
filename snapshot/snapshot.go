// Package snapshot renders a span, open or finished, as a single JSON document
// shaped like an OTLP trace export holding exactly one span.
package snapshot

import (
	"fmt"
	"math"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Signal says why a snapshot was taken. It is not part of the document; sinks
// that can carry it out of band do so.
type Signal int

const (
	// Start is not emitted by the processor today.
	Start Signal = iota
	Heartbeat
	Stop
	// Ended is not emitted by the processor today.
	Ended
)

func (s Signal) String() string {
	switch s {
	case Start:
		return "start"
	case Heartbeat:
		return "heartbeat"
	case Stop:
		return "stop"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}

// Terminal reports whether snapshots for this signal describe a finished span
// and so carry an end time.
func (s Signal) Terminal() bool {
	return s == Stop || s == Ended
}

// Document is the top level of a snapshot.
type Document struct {
	ResourceSpans []ResourceSpans `json:"resource_spans"`

	Signal Signal `json:"-"`
}

type ResourceSpans struct {
	Resource   Resource     `json:"resource"`
	ScopeSpans []ScopeSpans `json:"scope_spans"`
}

type Resource struct {
	Attributes []KeyValue `json:"attributes"`
}

type ScopeSpans struct {
	Scope Scope  `json:"scope"`
	Spans []Span `json:"spans"`
}

type Scope struct {
	Name       string     `json:"name"`
	Version    string     `json:"version"`
	Attributes []KeyValue `json:"attributes"`
}

type Span struct {
	TraceID           string     `json:"trace_id"`
	SpanID            string     `json:"span_id"`
	TraceState        string     `json:"trace_state"`
	ParentSpanID      string     `json:"parent_span_id"`
	Flags             uint32     `json:"flags"`
	Name              string     `json:"name"`
	Kind              string     `json:"kind"`
	StartTimeUnixNano uint64     `json:"start_time_unix_nano"`
	EndTimeUnixNano   *uint64    `json:"end_time_unix_nano,omitempty"`
	Attributes        []KeyValue `json:"attributes"`
	Events            []Event    `json:"events"`
	Links             []Link     `json:"links"`
	Status            Status     `json:"status"`
}

// KeyValue holds a string, int64, float64 or bool value.
type KeyValue struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type Event struct {
	Name         string     `json:"name"`
	TimeUnixNano uint64     `json:"time_unix_nano"`
	Attributes   []KeyValue `json:"attributes"`
}

type Link struct {
	TraceID    string     `json:"trace_id"`
	SpanID     string     `json:"span_id"`
	TraceState string     `json:"trace_state"`
	Attributes []KeyValue `json:"attributes"`
}

type Status struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Build maps a span to a Document. The span may still be open; its current
// attributes and status are read through the SDK's own locking.
func Build(span sdktrace.ReadOnlySpan, sig Signal) Document {
	sc := span.SpanContext()
	scope := span.InstrumentationScope()

	rec := Span{
		TraceID:           sc.TraceID().String(),
		SpanID:            sc.SpanID().String(),
		TraceState:        sc.TraceState().String(),
		ParentSpanID:      parentID(span.Parent()),
		Flags:             uint32(sc.TraceFlags()),
		Name:              span.Name(),
		Kind:              span.SpanKind().String(),
		StartTimeUnixNano: unixNano(span.StartTime()),
		Attributes:        keyValues(span.Attributes()),
		Events:            events(span.Events()),
		Links:             links(span.Links()),
		Status:            status(span.Status()),
	}
	if sig.Terminal() {
		end := unixNano(span.EndTime())
		rec.EndTimeUnixNano = &end
	}

	return Document{
		ResourceSpans: []ResourceSpans{{
			Resource: Resource{Attributes: keyValues(span.Resource().Attributes())},
			ScopeSpans: []ScopeSpans{{
				Scope: Scope{
					Name:       scope.Name,
					Version:    scope.Version,
					Attributes: keyValues(scope.Attributes.ToSlice()),
				},
				Spans: []Span{rec},
			}},
		}},
		Signal: sig,
	}
}

// Serialize builds the Document for span and encodes it as one line of JSON.
func Serialize(span sdktrace.ReadOnlySpan, sig Signal) ([]byte, error) {
	return Build(span, sig).Marshal()
}

// Marshal encodes the document as one line of JSON.
func (d Document) Marshal() ([]byte, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encoding %s snapshot for span %s: %w", d.Signal, d.Span().SpanID, err)
	}
	return b, nil
}

// Span returns the single span record in the document.
func (d Document) Span() Span {
	return d.ResourceSpans[0].ScopeSpans[0].Spans[0]
}

func parentID(parent trace.SpanContext) string {
	if !parent.HasSpanID() {
		return ""
	}
	return parent.SpanID().String()
}

func unixNano(t time.Time) uint64 {
	if t.IsZero() || t.Before(time.Unix(0, 0)) {
		return 0
	}
	return uint64(t.UnixNano())
}

// status maps anything outside unset/ok/error to unset.
func status(s sdktrace.Status) Status {
	code := "unset"
	switch s.Code {
	case codes.Ok:
		code = "ok"
	case codes.Error:
		code = "error"
	}
	return Status{Code: code, Message: s.Description}
}

func keyValues(attrs []attribute.KeyValue) []KeyValue {
	out := make([]KeyValue, 0, len(attrs))
	for _, kv := range attrs {
		out = append(out, KeyValue{Key: string(kv.Key), Value: coerce(kv.Value)})
	}
	return out
}

// coerce reduces an attribute value to a JSON scalar. Slices and any value
// JSON cannot represent (NaN, infinities) become strings.
func coerce(v attribute.Value) any {
	switch v.Type() {
	case attribute.BOOL:
		return v.AsBool()
	case attribute.INT64:
		return v.AsInt64()
	case attribute.FLOAT64:
		f := v.AsFloat64()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return v.Emit()
		}
		return f
	case attribute.STRING:
		return v.AsString()
	default:
		return v.Emit()
	}
}

func events(evs []sdktrace.Event) []Event {
	out := make([]Event, 0, len(evs))
	for _, e := range evs {
		out = append(out, Event{
			Name:         e.Name,
			TimeUnixNano: unixNano(e.Time),
			Attributes:   keyValues(e.Attributes),
		})
	}
	return out
}

func links(ls []sdktrace.Link) []Link {
	out := make([]Link, 0, len(ls))
	for _, l := range ls {
		out = append(out, Link{
			TraceID:    l.SpanContext.TraceID().String(),
			SpanID:     l.SpanContext.SpanID().String(),
			TraceState: l.SpanContext.TraceState().String(),
			Attributes: keyValues(l.Attributes),
		})
	}
	return out
}
