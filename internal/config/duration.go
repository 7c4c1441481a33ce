package config

import (
	"fmt"
	"strings"
	"time"
)

// Durations ride through the file as Go duration strings ("7s",
// "1m30s") so a hot reload can be rejected up front; the app's mappers
// call these once per load and components only ever see time.Duration.

// ParseDurationField parses one duration-valued field. path names the
// field in errors ("search.poll_interval"). Empty means unset and
// parses to zero so callers can apply their own default.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: not a duration: %q (want e.g. \"7s\", \"1m30s\"): %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %q", path, raw)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def substituted for
// unset (or zero) values. Malformed input still fails: a typo must not
// silently become the default.
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
