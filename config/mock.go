package config

import (
	"sync"
	"time"
)

// MockConfig will respond with whatever config it's set to do during
// initialization
type MockConfig struct {
	GetHashesVal                  string
	GetHeartbeatConfigVal         HeartbeatConfig
	GetLoggerTypeVal              string
	GetLoggerLevelVal             Level
	GetStdoutLoggerConfigVal      StdoutLoggerConfig
	GetOTelLoggerConfigVal        OTelLoggerConfig
	GetSinkConfigVal              SinkConfig
	GetPrometheusMetricsConfigVal PrometheusMetricsConfig
	GetOTelMetricsConfigVal       OTelMetricsConfig
	GetOTelTracingConfigVal       OTelTracingConfig
	DebugServiceAddr              string
	GetGeneratorConfigVal         GeneratorConfig
	GetHealthCheckTimeoutVal      time.Duration

	Mux sync.RWMutex
}

var _ Config = (*MockConfig)(nil)

func (m *MockConfig) GetHashes() string {
	m.Mux.RLock()
	defer m.Mux.RUnlock()

	return m.GetHashesVal
}

func (m *MockConfig) GetHeartbeatConfig() HeartbeatConfig {
	m.Mux.RLock()
	defer m.Mux.RUnlock()

	return m.GetHeartbeatConfigVal
}

func (m *MockConfig) GetLoggerType() string {
	m.Mux.RLock()
	defer m.Mux.RUnlock()

	return m.GetLoggerTypeVal
}

func (m *MockConfig) GetLoggerLevel() Level {
	m.Mux.RLock()
	defer m.Mux.RUnlock()

	return m.GetLoggerLevelVal
}

func (m *MockConfig) GetStdoutLoggerConfig() StdoutLoggerConfig {
	m.Mux.RLock()
	defer m.Mux.RUnlock()

	return m.GetStdoutLoggerConfigVal
}

func (m *MockConfig) GetOTelLoggerConfig() OTelLoggerConfig {
	m.Mux.RLock()
	defer m.Mux.RUnlock()

	return m.GetOTelLoggerConfigVal
}

func (m *MockConfig) GetSinkConfig() SinkConfig {
	m.Mux.RLock()
	defer m.Mux.RUnlock()

	return m.GetSinkConfigVal
}

func (m *MockConfig) GetPrometheusMetricsConfig() PrometheusMetricsConfig {
	m.Mux.RLock()
	defer m.Mux.RUnlock()

	return m.GetPrometheusMetricsConfigVal
}

func (m *MockConfig) GetOTelMetricsConfig() OTelMetricsConfig {
	m.Mux.RLock()
	defer m.Mux.RUnlock()

	return m.GetOTelMetricsConfigVal
}

func (m *MockConfig) GetOTelTracingConfig() OTelTracingConfig {
	m.Mux.RLock()
	defer m.Mux.RUnlock()

	return m.GetOTelTracingConfigVal
}

func (m *MockConfig) GetDebugServiceAddr() string {
	m.Mux.RLock()
	defer m.Mux.RUnlock()

	return m.DebugServiceAddr
}

func (m *MockConfig) GetGeneratorConfig() GeneratorConfig {
	m.Mux.RLock()
	defer m.Mux.RUnlock()

	return m.GetGeneratorConfigVal
}

func (m *MockConfig) GetHealthCheckTimeout() time.Duration {
	m.Mux.RLock()
	defer m.Mux.RUnlock()

	return m.GetHealthCheckTimeoutVal
}
