package config

import (
	"fmt"
	"strings"
	"time"
)

// Durations in the config file are Go duration strings ("500ms", "10s",
// "24h"). An empty or absent field means "not set"; callers decide what
// that falls back to.

// ParseDurationField parses one duration field. Empty input is not an
// error and returns 0. Negative durations are rejected; path names the
// offending field in the error ("reminder.offset").
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("config %s: bad duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("config %s: duration %q is negative", path, raw)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def substituted for
// unset (or zero) values.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
