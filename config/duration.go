package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration wraps time.Duration to additionally accept the day-suffixed
// shorthand ("3d") that time.ParseDuration does not support, matching the
// duration strings used throughout config.toml (retry intervals, poll
// intervals, timeouts).
type Duration struct {
	time.Duration
}

// UnmarshalTOML implements naoina/toml's unmarshaler interface for
// string-valued duration fields.
func (d *Duration) UnmarshalTOML(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalTOML implements naoina/toml's marshaler interface.
func (d Duration) MarshalTOML() ([]byte, error) {
	return []byte(`"` + FormatDuration(d.Duration) + `"`), nil
}

// ParseDuration parses a duration string with an s/m/h/d suffix. Unlike
// time.ParseDuration, it accepts exactly one unit suffix and a bare integer
// magnitude (e.g. "30s", "15m", "6h", "3d"); compound durations like
// "1h30m" are not supported, matching config.toml's own duration syntax.
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("config: empty duration")
	}

	unit := s[len(s)-1]
	magnitude := s[:len(s)-1]

	n, err := strconv.ParseInt(magnitude, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid duration %q: %w", s, err)
	}

	switch unit {
	case 's':
		return time.Duration(n) * time.Second, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("config: invalid duration %q: unknown unit suffix %q", s, string(unit))
	}
}

// FormatDuration renders d using the coarsest suffix that reproduces it
// exactly, falling back to seconds.
func FormatDuration(d time.Duration) string {
	switch {
	case d%(24*time.Hour) == 0:
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	case d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	default:
		return fmt.Sprintf("%ds", d/time.Second)
	}
}
