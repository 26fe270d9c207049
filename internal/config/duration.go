package config

import (
	"fmt"
	"strings"
	"time"
)

// Duration resolves an optional duration field (telegram.poll_timeout,
// storage.busy_timeout, delivery.poll_interval). The config keeps these as
// strings so operators write "30s" or "5m" instead of nanosecond counts.
// Empty and zero values fall back to def; negative values are rejected
// with the field path in the error.
func Duration(field, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a duration (use forms like \"30s\", \"5m\"): %w", field, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative, got %q", field, raw)
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}
