package config

import (
	"fmt"
	"strconv"
	"time"
)

// Duration is a time.Duration that reads and writes as a Go duration string
// ("1500ms", "5s") in every config format. A bare integer is taken as
// milliseconds.
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration '%s': %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// UnmarshalFlag lets go-flags parse durations on the command line.
func (d *Duration) UnmarshalFlag(value string) error {
	return d.UnmarshalText([]byte(value))
}
