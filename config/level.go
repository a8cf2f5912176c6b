package config

import (
	"fmt"
	"strings"
)

// Level is a logging threshold shared by the config file and every logger
// implementation.
type Level int

const (
	UnknownLevel Level = iota
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
	PanicLevel
)

var levelNames = [...]string{
	UnknownLevel: "unknown",
	DebugLevel:   "debug",
	InfoLevel:    "info",
	WarnLevel:    "warn",
	ErrorLevel:   "error",
	PanicLevel:   "panic",
}

// ParseLevel is case-insensitive and accepts "warning" for WarnLevel.
// Anything unrecognized is UnknownLevel.
func ParseLevel(s string) Level {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "warning" {
		return WarnLevel
	}
	for l, n := range levelNames {
		if l != int(UnknownLevel) && n == name {
			return Level(l)
		}
	}
	return UnknownLevel
}

func (l Level) String() string {
	if l <= UnknownLevel || int(l) >= len(levelNames) {
		return levelNames[UnknownLevel]
	}
	return levelNames[l]
}

// Allows reports whether a message at msgLevel passes a threshold of l.
// UnknownLevel allows nothing.
func (l Level) Allows(msgLevel Level) bool {
	return l != UnknownLevel && msgLevel >= l
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	parsed := ParseLevel(string(text))
	if parsed == UnknownLevel {
		return fmt.Errorf("unknown logging level %q", text)
	}
	*l = parsed
	return nil
}

// UnmarshalFlag lets go-flags parse --log-level style options.
func (l *Level) UnmarshalFlag(value string) error {
	return l.UnmarshalText([]byte(value))
}
