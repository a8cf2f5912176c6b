package config

import (
	"time"
)

// Config defines the interface the rest of the code uses to get items from the
// config. There are different implementations of the config using different
// backends to store the config.
type Config interface {
	// GetHashes returns the hash of the loaded config files.
	GetHashes() string

	// GetHeartbeatConfig returns the timing settings for the partial span
	// processor.
	GetHeartbeatConfig() HeartbeatConfig

	// GetLoggerType returns the type of the logger to use. Valid types are in
	// the logger package
	GetLoggerType() string

	// GetLoggerLevel returns the level of the logger to use.
	GetLoggerLevel() Level

	// GetStdoutLoggerConfig returns the config specific to the StdoutLogger
	GetStdoutLoggerConfig() StdoutLoggerConfig

	// GetOTelLoggerConfig returns the config specific to the OTelLogger
	GetOTelLoggerConfig() OTelLoggerConfig

	// GetSinkConfig returns the config that selects where snapshots are written.
	GetSinkConfig() SinkConfig

	// GetPrometheusMetricsConfig returns the config specific to PrometheusMetrics
	GetPrometheusMetricsConfig() PrometheusMetricsConfig

	// GetOTelMetricsConfig returns the config specific to OTelMetrics
	GetOTelMetricsConfig() OTelMetricsConfig

	GetOTelTracingConfig() OTelTracingConfig

	// GetDebugServiceAddr sets the IP and port the debug service will run on (you must provide the
	// command line flag -d to start the debug service)
	GetDebugServiceAddr() string

	GetGeneratorConfig() GeneratorConfig

	// GetHealthCheckTimeout is the maximum time a background loop may go
	// without reporting in before it is considered dead.
	GetHealthCheckTimeout() time.Duration
}

type HeartbeatConfig struct {
	HeartbeatInterval     Duration `yaml:"HeartbeatInterval" default:"5s" cmdenv:"HeartbeatInterval"`
	InitialHeartbeatDelay Duration `yaml:"InitialHeartbeatDelay" default:"5s" cmdenv:"InitialHeartbeatDelay"`
	PromotionTick         Duration `yaml:"PromotionTick" default:"1s"`
}

type LoggerConfig struct {
	Type  string `yaml:"Type" default:"stdout" cmdenv:"LoggerType"`
	Level Level  `yaml:"Level" default:"warn" cmdenv:"LoggerLevel"`
}

type StdoutLoggerConfig struct {
	Structured        bool `yaml:"Structured" default:"false"`
	SamplerEnabled    bool `yaml:"SamplerEnabled" default:"false"`
	SamplerThroughput int  `yaml:"SamplerThroughput" default:"10"`
}

type OTelLoggerConfig struct {
	APIHost     string `yaml:"APIHost" default:"https://api.honeycomb.io"`
	APIKey      string `yaml:"APIKey" cmdenv:"OTelLogsAPIKey,HoneycombAPIKey"`
	Dataset     string `yaml:"Dataset" default:"Spanbeat Logs"`
	Compression string `yaml:"Compression" default:"gzip"`
}

type SinkConfig struct {
	// Type is one of stdout, file, logger, honeycomb, redis, or a
	// comma-separated list of those to write to several at once.
	Type      string              `yaml:"Type" default:"stdout" cmdenv:"SinkType"`
	File      FileSinkConfig      `yaml:"File"`
	Honeycomb HoneycombSinkConfig `yaml:"Honeycomb"`
	Redis     RedisSinkConfig     `yaml:"Redis"`
}

type FileSinkConfig struct {
	Path string `yaml:"Path" cmdenv:"SinkFilePath"`
}

type HoneycombSinkConfig struct {
	APIHost string `yaml:"APIHost" default:"https://api.honeycomb.io"`
	APIKey  string `yaml:"APIKey" cmdenv:"HoneycombAPIKey"`
	Dataset string `yaml:"Dataset" default:"Partial Spans"`
}

type RedisSinkConfig struct {
	Host      string   `yaml:"Host" cmdenv:"RedisHost"`
	Username  string   `yaml:"Username"`
	Password  string   `yaml:"Password" cmdenv:"RedisPassword"`
	Database  int      `yaml:"Database"`
	Key       string   `yaml:"Key" default:"partial_spans"`
	MaxLength int64    `yaml:"MaxLength"`
	Timeout   Duration `yaml:"Timeout" default:"1s"`
	UseTLS    bool     `yaml:"UseTLS"`
}

type PrometheusMetricsConfig struct {
	Enabled    bool   `yaml:"Enabled" default:"false"`
	ListenAddr string `yaml:"ListenAddr" default:"localhost:2112" cmdenv:"PrometheusListenAddr"`
}

type OTelMetricsConfig struct {
	Enabled           bool     `yaml:"Enabled" default:"false"`
	APIHost           string   `yaml:"APIHost" default:"https://api.honeycomb.io"`
	APIKey            string   `yaml:"APIKey" cmdenv:"OTelMetricsAPIKey,HoneycombAPIKey"`
	Dataset           string   `yaml:"Dataset" default:"Spanbeat Metrics"`
	Compression       string   `yaml:"Compression" default:"gzip"`
	ReportingInterval Duration `yaml:"ReportingInterval" default:"30s"`
}

type OTelTracingConfig struct {
	Enabled bool   `yaml:"Enabled" default:"false"`
	APIHost string `yaml:"APIHost" default:"https://api.honeycomb.io"`
	APIKey  string `yaml:"APIKey" cmdenv:"OTelTracesAPIKey,HoneycombAPIKey"`
	Dataset string `yaml:"Dataset" default:"Spanbeat Traces"`
	// Insecure selects plain HTTP for the OTLP exporter.
	Insecure bool `yaml:"Insecure"`
}

type DebuggingConfig struct {
	ServiceAddr string `yaml:"ServiceAddr" default:"localhost:6060" cmdenv:"DebugServiceAddr"`
}

// GeneratorConfig drives the synthetic workload used by the spanbeat command.
type GeneratorConfig struct {
	Enabled     bool     `yaml:"Enabled" default:"true"`
	SpansPerSec int      `yaml:"SpansPerSec" default:"5"`
	MinDuration Duration `yaml:"MinDuration" default:"100ms"`
	MaxDuration Duration `yaml:"MaxDuration" default:"30s"`
	ErrorRatio  float64  `yaml:"ErrorRatio" default:"0.1"`
	// Seed makes the generated workload repeatable. Empty picks a random seed.
	Seed string `yaml:"Seed"`
}

type GeneralConfig struct {
	HealthCheckTimeout Duration `yaml:"HealthCheckTimeout" default:"15s"`
}
