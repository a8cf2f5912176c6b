package logger

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/honeycombio/dynsampler-go"
	"github.com/sirupsen/logrus"

	"github.com/honeycombio/spanbeat/config"
)

// StdoutLogger is a Logger implementation that sends all logs to stdout using
// the Logrus package to get nice formatting
type StdoutLogger struct {
	Config config.Config `inject:""`

	logger  *logrus.Logger
	level   logrus.Level
	sampler dynsampler.Sampler
}

var _ = Logger((*StdoutLogger)(nil))

type LogrusEntry struct {
	entry   *logrus.Entry
	level   logrus.Level
	sampler dynsampler.Sampler
}

func (l *StdoutLogger) Start() error {
	l.logger = logrus.New()
	l.logger.SetLevel(l.level)
	cfg := l.Config.GetStdoutLoggerConfig()

	if cfg.Structured {
		l.logger.SetFormatter(&logrus.JSONFormatter{})
	}

	if cfg.SamplerEnabled {
		// repeated debug lines from the heartbeat loop are the main source of
		// volume, so each level+format pair gets its own throughput budget
		l.sampler = &dynsampler.PerKeyThroughput{
			ClearFrequencyDuration: 10 * time.Second,
			PerKeyThroughputPerSec: cfg.SamplerThroughput,
			MaxKeys:                1000,
		}
		if err := l.sampler.Start(); err != nil {
			l.logger.WithField("error", err).Error("Failed to start log sampler")
			l.sampler = nil
		}
	}

	return nil
}

func (l *StdoutLogger) Debug() Entry {
	if !l.logger.IsLevelEnabled(logrus.DebugLevel) {
		return nullEntry
	}

	return &LogrusEntry{
		entry:   logrus.NewEntry(l.logger),
		level:   logrus.DebugLevel,
		sampler: l.sampler,
	}
}

func (l *StdoutLogger) Info() Entry {
	if !l.logger.IsLevelEnabled(logrus.InfoLevel) {
		return nullEntry
	}

	return &LogrusEntry{
		entry:   logrus.NewEntry(l.logger),
		level:   logrus.InfoLevel,
		sampler: l.sampler,
	}
}

func (l *StdoutLogger) Warn() Entry {
	if !l.logger.IsLevelEnabled(logrus.WarnLevel) {
		return nullEntry
	}

	return &LogrusEntry{
		entry:   logrus.NewEntry(l.logger),
		level:   logrus.WarnLevel,
		sampler: l.sampler,
	}
}

func (l *StdoutLogger) Error() Entry {
	if !l.logger.IsLevelEnabled(logrus.ErrorLevel) {
		return nullEntry
	}

	return &LogrusEntry{
		entry:   logrus.NewEntry(l.logger),
		level:   logrus.ErrorLevel,
		sampler: l.sampler,
	}
}

func (l *StdoutLogger) SetLevel(level string) error {
	logrusLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	// record the choice and set it if we're already initialized
	l.level = logrusLevel
	if l.logger != nil {
		l.logger.SetLevel(logrusLevel)
	}
	return nil
}

func (l *LogrusEntry) WithField(key string, value interface{}) Entry {
	return &LogrusEntry{
		entry:   l.entry.WithField(key, value),
		level:   l.level,
		sampler: l.sampler,
	}
}

func (l *LogrusEntry) WithString(key string, value string) Entry {
	return &LogrusEntry{
		entry:   l.entry.WithField(key, value),
		level:   l.level,
		sampler: l.sampler,
	}
}

func (l *LogrusEntry) WithFields(fields map[string]interface{}) Entry {
	return &LogrusEntry{
		entry:   l.entry.WithFields(fields),
		level:   l.level,
		sampler: l.sampler,
	}
}

func (l *LogrusEntry) Logf(f string, args ...interface{}) {
	entry := l.entry
	if l.sampler != nil {
		// sample on the format string rather than the formatted message so
		// that high cardinality arguments share a key
		rate := l.sampler.GetSampleRate(fmt.Sprintf("%s:%s", l.level, f))
		if rate > 1 && rand.Intn(rate) != 0 {
			return
		}
		entry = entry.WithField("SampleRate", rate)
	}

	switch l.level {
	case logrus.WarnLevel:
		// this is to suppress a "Warning: Warnf is deprecated" error
		entry.Warnf(f, args...)
	default:
		entry.Logf(l.level, f, args...)
	}
}
