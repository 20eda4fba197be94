package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDurationField parses a duration config value. Empty means zero,
// which callers treat as "use the default". The field name only feeds the
// error message.
func ParseDurationField(field, value string) (time.Duration, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %q", field, value)
	}
	return d, nil
}
