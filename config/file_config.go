package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ErrConfigInvalid is returned (wrapped) by NewConfig when the loaded config
// fails validation.
var ErrConfigInvalid = errors.New("invalid configuration")

// fileConfig implements the Config interface
type fileConfig struct {
	mainConfig *configContents
	mainHash   string
	opts       *CmdEnv
	mux        sync.RWMutex
}

// configContents is the top-level shape of a spanbeat config file.
type configContents struct {
	General           GeneralConfig           `yaml:"General"`
	Heartbeat         HeartbeatConfig         `yaml:"Heartbeat"`
	Logger            LoggerConfig            `yaml:"Logger"`
	StdoutLogger      StdoutLoggerConfig      `yaml:"StdoutLogger"`
	OTelLogger        OTelLoggerConfig        `yaml:"OTelLogger"`
	Sink              SinkConfig              `yaml:"Sink"`
	PrometheusMetrics PrometheusMetricsConfig `yaml:"PrometheusMetrics"`
	OTelMetrics       OTelMetricsConfig       `yaml:"OTelMetrics"`
	OTelTracing       OTelTracingConfig       `yaml:"OTelTracing"`
	Debugging         DebuggingConfig         `yaml:"Debugging"`
	Generator         GeneratorConfig         `yaml:"Generator"`
}

var validSinkTypes = []string{"stdout", "file", "logger", "honeycomb", "redis"}

// NewConfig loads the config files named in opts, layers the command line and
// environment over them, and validates the result.
func NewConfig(opts *CmdEnv) (Config, error) {
	cfg, err := newFileConfig(opts)
	if err != nil {
		return nil, err
	}

	if failures := cfg.mainConfig.validate(); len(failures) > 0 {
		return nil, fmt.Errorf("%w:\n%s", ErrConfigInvalid, strings.Join(failures, "\n"))
	}
	return cfg, nil
}

func newFileConfig(opts *CmdEnv) (*fileConfig, error) {
	mainconf := &configContents{}
	mainhash, err := readConfigInto(mainconf, opts.ConfigLocations, opts)
	if err != nil {
		return nil, err
	}

	return &fileConfig{
		mainConfig: mainconf,
		mainHash:   mainhash,
		opts:       opts,
	}, nil
}

// validate returns every problem with the config, not just the first.
func (c *configContents) validate() []string {
	var failures []string

	hb := c.Heartbeat
	if hb.HeartbeatInterval < 0 {
		failures = append(failures, "Heartbeat.HeartbeatInterval must not be negative")
	}
	if hb.InitialHeartbeatDelay < 0 {
		failures = append(failures, "Heartbeat.InitialHeartbeatDelay must not be negative")
	}
	if hb.PromotionTick < 0 {
		failures = append(failures, "Heartbeat.PromotionTick must not be negative")
	}

	switch c.Logger.Type {
	case "stdout", "otel", "none":
	default:
		failures = append(failures, fmt.Sprintf("Logger.Type '%s' is not one of stdout, otel, none", c.Logger.Type))
	}
	if c.Logger.Level == UnknownLevel {
		failures = append(failures, "Logger.Level must be one of debug, info, warn, error, panic")
	}
	if c.StdoutLogger.SamplerEnabled && c.StdoutLogger.SamplerThroughput <= 0 {
		failures = append(failures, "StdoutLogger.SamplerThroughput must be positive when the sampler is enabled")
	}

	sinkTypes := SinkTypes(c.Sink.Type)
	if len(sinkTypes) == 0 {
		failures = append(failures, "Sink.Type must name at least one sink")
	}
	for _, st := range sinkTypes {
		if !isOneOf(st, validSinkTypes) {
			failures = append(failures, fmt.Sprintf("Sink.Type '%s' is not one of %s", st, strings.Join(validSinkTypes, ", ")))
			continue
		}
		switch st {
		case "file":
			if c.Sink.File.Path == "" {
				failures = append(failures, "Sink.File.Path is required for the file sink")
			}
		case "honeycomb":
			if c.Sink.Honeycomb.APIKey == "" {
				failures = append(failures, "Sink.Honeycomb.APIKey is required for the honeycomb sink")
			}
		case "redis":
			if c.Sink.Redis.Host == "" {
				failures = append(failures, "Sink.Redis.Host is required for the redis sink")
			}
		}
	}

	if c.Generator.Enabled {
		if c.Generator.SpansPerSec <= 0 {
			failures = append(failures, "Generator.SpansPerSec must be positive")
		}
		if c.Generator.MaxDuration < c.Generator.MinDuration {
			failures = append(failures, "Generator.MaxDuration must not be less than Generator.MinDuration")
		}
	}
	return failures
}

// SinkTypes splits a Sink.Type value into its individual sink names.
func SinkTypes(s string) []string {
	var types []string
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(strings.ToLower(t))
		if t != "" {
			types = append(types, t)
		}
	}
	return types
}

func isOneOf(s string, choices []string) bool {
	for _, c := range choices {
		if s == c {
			return true
		}
	}
	return false
}

func (f *fileConfig) GetHashes() string {
	f.mux.RLock()
	defer f.mux.RUnlock()

	return f.mainHash
}

func (f *fileConfig) GetHeartbeatConfig() HeartbeatConfig {
	f.mux.RLock()
	defer f.mux.RUnlock()

	return f.mainConfig.Heartbeat
}

func (f *fileConfig) GetLoggerType() string {
	f.mux.RLock()
	defer f.mux.RUnlock()

	return f.mainConfig.Logger.Type
}

func (f *fileConfig) GetLoggerLevel() Level {
	f.mux.RLock()
	defer f.mux.RUnlock()

	return f.mainConfig.Logger.Level
}

func (f *fileConfig) GetStdoutLoggerConfig() StdoutLoggerConfig {
	f.mux.RLock()
	defer f.mux.RUnlock()

	return f.mainConfig.StdoutLogger
}

func (f *fileConfig) GetOTelLoggerConfig() OTelLoggerConfig {
	f.mux.RLock()
	defer f.mux.RUnlock()

	return f.mainConfig.OTelLogger
}

func (f *fileConfig) GetSinkConfig() SinkConfig {
	f.mux.RLock()
	defer f.mux.RUnlock()

	return f.mainConfig.Sink
}

func (f *fileConfig) GetPrometheusMetricsConfig() PrometheusMetricsConfig {
	f.mux.RLock()
	defer f.mux.RUnlock()

	return f.mainConfig.PrometheusMetrics
}

func (f *fileConfig) GetOTelMetricsConfig() OTelMetricsConfig {
	f.mux.RLock()
	defer f.mux.RUnlock()

	return f.mainConfig.OTelMetrics
}

func (f *fileConfig) GetOTelTracingConfig() OTelTracingConfig {
	f.mux.RLock()
	defer f.mux.RUnlock()

	return f.mainConfig.OTelTracing
}

func (f *fileConfig) GetDebugServiceAddr() string {
	f.mux.RLock()
	defer f.mux.RUnlock()

	return f.mainConfig.Debugging.ServiceAddr
}

func (f *fileConfig) GetGeneratorConfig() GeneratorConfig {
	f.mux.RLock()
	defer f.mux.RUnlock()

	return f.mainConfig.Generator
}

func (f *fileConfig) GetHealthCheckTimeout() time.Duration {
	f.mux.RLock()
	defer f.mux.RUnlock()

	return time.Duration(f.mainConfig.General.HealthCheckTimeout)
}
