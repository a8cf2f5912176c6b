package otelutil

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/honeycombio/spanbeat/config"
)

const (
	apiKeyHeader  = "x-honeycomb-team"
	datasetHeader = "x-honeycomb-dataset"
)

// telemetry helpers

func AddException(span trace.Span, err error) {
	span.AddEvent("exception", trace.WithAttributes(
		attribute.KeyValue{Key: "exception.type", Value: attribute.StringValue("error")},
		attribute.KeyValue{Key: "exception.message", Value: attribute.StringValue(err.Error())},
		attribute.KeyValue{Key: "exception.escaped", Value: attribute.BoolValue(false)},
	))
	span.SetStatus(codes.Error, err.Error())
}

// AddSpanFields adds multiple fields to a span, using the appropriate method for the type of each value.
func AddSpanFields(span trace.Span, fields map[string]any) {
	span.SetAttributes(Attributes(fields)...)
}

// Attributes converts a map of fields to a slice of attribute.KeyValue, setting types appropriately.
func Attributes(fields map[string]any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(fields))
	for k, v := range fields {
		kv := attribute.KeyValue{Key: attribute.Key(k)}
		switch val := v.(type) {
		case string:
			kv.Value = attribute.StringValue(val)
		case int:
			kv.Value = attribute.IntValue(val)
		case int64:
			kv.Value = attribute.Int64Value(val)
		case float64:
			kv.Value = attribute.Float64Value(val)
		case bool:
			kv.Value = attribute.BoolValue(val)
		case []string:
			kv.Value = attribute.StringSliceValue(val)
		default:
			kv.Value = attribute.StringValue(fmt.Sprintf("%v", val))
		}
		attrs = append(attrs, kv)
	}
	return attrs
}

// Starts a span with a single field.
func StartSpanWith(ctx context.Context, tracer trace.Tracer, name string, field string, value any) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(Attributes(map[string]any{field: value})...))
}

// Starts a span with multiple fields.
func StartSpanMulti(ctx context.Context, tracer trace.Tracer, name string, fields map[string]any) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(Attributes(fields)...))
}

// SetupTracing builds the TracerProvider for spans created in this process.
// The given processors, normally the partial span processor, are always
// registered. When OTLP export is enabled a batch exporter is added after them.
// Shutting the provider down shuts down every processor.
func SetupTracing(cfg config.OTelTracingConfig, serviceName, version string, processors ...sdktrace.SpanProcessor) (*sdktrace.TracerProvider, error) {
	res := resource.NewWithAttributes(semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version),
	)
	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	for _, p := range processors {
		opts = append(opts, sdktrace.WithSpanProcessor(p))
	}

	if cfg.Enabled {
		exporter, err := newExporter(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

func newExporter(cfg config.OTelTracingConfig) (*otlptrace.Exporter, error) {
	apiHost := strings.TrimSuffix(cfg.APIHost, "/")
	host, err := url.Parse(apiHost)
	if err != nil {
		return nil, fmt.Errorf("failed to parse otel API host %q: %w", cfg.APIHost, err)
	}
	endpoint := host.Host
	if endpoint == "" {
		endpoint = apiHost
	}

	headers := make(map[string]string)
	if cfg.APIKey != "" {
		headers[apiKeyHeader] = cfg.APIKey
	}
	if cfg.Dataset != "" {
		headers[datasetHeader] = cfg.Dataset
	}

	options := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithHeaders(headers),
		otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
	}
	if cfg.Insecure || host.Scheme == "http" {
		options = append(options, otlptracehttp.WithInsecure())
	} else {
		options = append(options, otlptracehttp.WithTLSClientConfig(&tls.Config{MinVersion: tls.VersionTLS12}))
	}

	exporter, err := otlptrace.New(context.Background(), otlptracehttp.NewClient(options...))
	if err != nil {
		return nil, fmt.Errorf("failure configuring otel trace exporter: %w", err)
	}
	return exporter, nil
}
