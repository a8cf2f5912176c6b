package logger

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/honeycombio/spanbeat/config"
)

// OTelLogger implements Logger and exports log records over OTLP/HTTP.
type OTelLogger struct {
	Config  config.Config `inject:""`
	Version string        `inject:"version"`

	logEmitter   otellog.Logger
	level        config.Level
	shutdownFunc func(context.Context) error
}

var _ = Logger((*OTelLogger)(nil))

func (ol *OTelLogger) Start() error {
	if ol.level == config.UnknownLevel {
		ol.level = ol.Config.GetLoggerLevel()
	}
	loggerConfig := ol.Config.GetOTelLoggerConfig()

	res, err := sdkresource.New(context.Background(),
		sdkresource.WithAttributes(
			semconv.ServiceName(loggerConfig.Dataset),
			semconv.ServiceVersion(ol.Version),
		),
		sdkresource.WithHost(),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	// otel can't handle the default endpoint so we have to parse it
	host, err := url.Parse(loggerConfig.APIHost)
	if err != nil {
		return err
	}
	options := []otlploghttp.Option{otlploghttp.WithEndpoint(host.Host)}
	hdrs := map[string]string{}
	if loggerConfig.APIKey != "" {
		hdrs["x-honeycomb-team"] = loggerConfig.APIKey
	}
	if loggerConfig.Dataset != "" {
		hdrs["x-honeycomb-dataset"] = loggerConfig.Dataset
	}
	if len(hdrs) > 0 {
		options = append(options, otlploghttp.WithHeaders(hdrs))
	}
	if host.Scheme == "http" {
		options = append(options, otlploghttp.WithInsecure())
	}
	compression := otlploghttp.GzipCompression
	if loggerConfig.Compression == "none" {
		compression = otlploghttp.NoCompression
	}
	options = append(options, otlploghttp.WithCompression(compression))

	exporter, err := otlploghttp.New(context.Background(), options...)
	if err != nil {
		return fmt.Errorf("failed to create OTLP log client: %w", err)
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
	ol.logEmitter = provider.Logger("github.com/honeycombio/spanbeat")
	ol.shutdownFunc = provider.Shutdown

	return nil
}

func (ol *OTelLogger) Stop() error {
	if ol.shutdownFunc != nil {
		return ol.shutdownFunc(context.Background())
	}
	return nil
}

func (ol *OTelLogger) SetLevel(lvl string) error {
	level := config.ParseLevel(lvl)
	if level == config.UnknownLevel {
		return fmt.Errorf("unknown logging level '%s'", lvl)
	}
	ol.level = level
	return nil
}

func (ol *OTelLogger) entryAt(level config.Level) Entry {
	if !ol.level.Allows(level) || ol.logEmitter == nil {
		return nullEntry
	}
	return &OTelLoggerEntry{
		logger: ol,
		level:  level,
		attrs:  make(map[string]string),
	}
}

func (ol *OTelLogger) Debug() Entry { return ol.entryAt(config.DebugLevel) }
func (ol *OTelLogger) Info() Entry  { return ol.entryAt(config.InfoLevel) }
func (ol *OTelLogger) Warn() Entry  { return ol.entryAt(config.WarnLevel) }
func (ol *OTelLogger) Error() Entry { return ol.entryAt(config.ErrorLevel) }

// OTelLoggerEntry accumulates attributes for a single log record.
type OTelLoggerEntry struct {
	logger *OTelLogger
	level  config.Level
	attrs  map[string]string
}

func (e *OTelLoggerEntry) with(extra map[string]string) Entry {
	attrs := make(map[string]string, len(e.attrs)+len(extra))
	for k, v := range e.attrs {
		attrs[k] = v
	}
	for k, v := range extra {
		attrs[k] = v
	}
	return &OTelLoggerEntry{logger: e.logger, level: e.level, attrs: attrs}
}

func (e *OTelLoggerEntry) WithField(key string, value interface{}) Entry {
	return e.with(map[string]string{key: fmt.Sprintf("%v", value)})
}

func (e *OTelLoggerEntry) WithString(key string, value string) Entry {
	return e.with(map[string]string{key: value})
}

func (e *OTelLoggerEntry) WithFields(fields map[string]interface{}) Entry {
	extra := make(map[string]string, len(fields))
	for k, v := range fields {
		extra[k] = fmt.Sprintf("%v", v)
	}
	return e.with(extra)
}

func (e *OTelLoggerEntry) Logf(format string, args ...interface{}) {
	record := otellog.Record{}
	record.SetTimestamp(time.Now())
	record.SetSeverityText(e.level.String())
	record.SetSeverity(severityFromLevel(e.level))
	record.SetBody(otellog.StringValue(fmt.Sprintf(format, args...)))
	for k, v := range e.attrs {
		record.AddAttributes(otellog.String(k, v))
	}

	e.logger.logEmitter.Emit(context.Background(), record)
}

func severityFromLevel(level config.Level) otellog.Severity {
	switch level {
	case config.DebugLevel:
		return otellog.SeverityDebug
	case config.InfoLevel:
		return otellog.SeverityInfo
	case config.WarnLevel:
		return otellog.SeverityWarn
	case config.ErrorLevel:
		return otellog.SeverityError
	default:
		return otellog.SeverityInfo
	}
}
