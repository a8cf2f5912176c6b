package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honeycombio/spanbeat/config"
)

func newTestStdoutLogger(t *testing.T, cfg config.StdoutLoggerConfig, level string) (*StdoutLogger, *bytes.Buffer) {
	t.Helper()
	l := &StdoutLogger{
		Config: &config.MockConfig{GetStdoutLoggerConfigVal: cfg},
	}
	require.NoError(t, l.SetLevel(level))
	require.NoError(t, l.Start())

	buf := &bytes.Buffer{}
	l.logger.SetOutput(buf)
	return l, buf
}

func TestStdoutLoggerRespectsLevel(t *testing.T) {
	l, buf := newTestStdoutLogger(t, config.StdoutLoggerConfig{}, "warn")

	assert.Equal(t, nullEntry, l.Debug())
	assert.Equal(t, nullEntry, l.Info())

	l.Debug().WithField("span_id", "0102030405060708").Logf("heartbeat")
	l.Info().Logf("started")
	assert.Empty(t, buf.String())

	l.Warn().WithString("sink", "redis").Logf("write failed: %s", "timeout")
	assert.Contains(t, buf.String(), "write failed: timeout")
	assert.Contains(t, buf.String(), "sink=redis")
}

func TestStdoutLoggerSetLevelAfterStart(t *testing.T) {
	l, buf := newTestStdoutLogger(t, config.StdoutLoggerConfig{}, "error")

	l.Info().Logf("hidden")
	require.NoError(t, l.SetLevel("debug"))
	l.Debug().Logf("visible")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "visible")
	assert.Error(t, l.SetLevel("loud"))
}

func TestStdoutLoggerStructured(t *testing.T) {
	l, buf := newTestStdoutLogger(t, config.StdoutLoggerConfig{Structured: true}, "info")

	l.Info().WithFields(map[string]interface{}{"active": 3, "ready": 1}).Logf("counts")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "counts", line["msg"])
	assert.Equal(t, "info", line["level"])
	assert.EqualValues(t, 3, line["active"])
}

func TestStdoutLoggerSampler(t *testing.T) {
	l, buf := newTestStdoutLogger(t, config.StdoutLoggerConfig{
		Structured:        true,
		SamplerEnabled:    true,
		SamplerThroughput: 5,
	}, "info")
	require.NotNil(t, l.sampler)

	// the sampler has no history yet, so everything passes at rate 1
	for i := 0; i < 3; i++ {
		l.Info().Logf("tick %d", i)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	for _, ln := range lines {
		assert.Contains(t, ln, `"SampleRate":1`)
	}
}

func TestMockLogger(t *testing.T) {
	l := &MockLogger{}
	l.Debug().WithField("span_id", "ab").Logf("promoted %d", 1)
	l.Warn().WithFields(map[string]any{"sink": "file"}).Logf("failed")

	require.Len(t, l.Events, 2)
	assert.Equal(t, "promoted 1", l.Events[0].Fields["debug"])
	assert.Equal(t, "ab", l.Events[0].Fields["span_id"])

	warns := l.EventsAt(config.WarnLevel)
	require.Len(t, warns, 1)
	assert.Equal(t, "file", warns[0].Fields["sink"])
}

func TestNullLogger(t *testing.T) {
	var l Logger = &NullLogger{}
	l.Error().WithField("a", 1).WithString("b", "c").WithFields(nil).Logf("nothing")
	assert.NoError(t, l.SetLevel("debug"))
}

func TestOTelLoggerWithoutStartIsSilent(t *testing.T) {
	l := &OTelLogger{}
	require.NoError(t, l.SetLevel("debug"))
	assert.Equal(t, nullEntry, l.Debug())
	assert.Error(t, l.SetLevel("loud"))
	assert.NoError(t, l.Stop())
}

func TestGetLoggerImplementation(t *testing.T) {
	assert.IsType(t, &StdoutLogger{}, GetLoggerImplementation(&config.MockConfig{GetLoggerTypeVal: "stdout"}))
	assert.IsType(t, &OTelLogger{}, GetLoggerImplementation(&config.MockConfig{GetLoggerTypeVal: "otel"}))
	assert.IsType(t, &NullLogger{}, GetLoggerImplementation(&config.MockConfig{GetLoggerTypeVal: "none"}))
}
