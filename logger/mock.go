package logger

import (
	"fmt"
	"maps"
	"sync"

	"github.com/honeycombio/spanbeat/config"
)

var _ Logger = (*MockLogger)(nil)

// MockLogger records every finished entry in Events. The formatted message is
// stored in Fields under the level name ("debug", "info", "warn" or "error").
type MockLogger struct {
	Events []*MockLoggerEvent
	mutex  sync.Mutex
}

type MockLoggerEvent struct {
	Fields map[string]any

	logger *MockLogger
	level  config.Level
}

func (l *MockLogger) entry(level config.Level) Entry {
	return &MockLoggerEvent{logger: l, level: level, Fields: map[string]any{}}
}

func (l *MockLogger) Debug() Entry { return l.entry(config.DebugLevel) }
func (l *MockLogger) Info() Entry  { return l.entry(config.InfoLevel) }
func (l *MockLogger) Warn() Entry  { return l.entry(config.WarnLevel) }
func (l *MockLogger) Error() Entry { return l.entry(config.ErrorLevel) }

func (l *MockLogger) SetLevel(string) error { return nil }

// EventsAt returns the events logged at level, oldest first.
func (l *MockLogger) EventsAt(level config.Level) []*MockLoggerEvent {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	var out []*MockLoggerEvent
	for _, e := range l.Events {
		if e.level == level {
			out = append(out, e)
		}
	}
	return out
}

func (e *MockLoggerEvent) WithField(key string, value any) Entry {
	e.Fields[key] = value
	return e
}

func (e *MockLoggerEvent) WithString(key string, value string) Entry {
	return e.WithField(key, value)
}

func (e *MockLoggerEvent) WithFields(fields map[string]any) Entry {
	maps.Copy(e.Fields, fields)
	return e
}

func (e *MockLoggerEvent) Logf(f string, args ...any) {
	if e.level < config.DebugLevel || e.level > config.ErrorLevel {
		panic("unexpected log level " + e.level.String())
	}
	e.Fields[e.level.String()] = fmt.Sprintf(f, args...)

	e.logger.mutex.Lock()
	defer e.logger.mutex.Unlock()
	e.logger.Events = append(e.logger.Events, e)
}
