package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDuration parses a duration string. In addition to the standard Go
// units it accepts a day suffix ("30d") and a week suffix ("2w"), which the
// update interval is usually expressed in.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	if n, ok := cutNumericSuffix(s, "d"); ok {
		return time.Duration(n * 24 * float64(time.Hour)), nil
	}
	if n, ok := cutNumericSuffix(s, "w"); ok {
		return time.Duration(n * 7 * 24 * float64(time.Hour)), nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration '%s'", s)
	}
	return d, nil
}

func cutNumericSuffix(s, suffix string) (float64, bool) {
	rest, found := strings.CutSuffix(s, suffix)
	if !found {
		return 0, false
	}
	n, err := strconv.ParseFloat(rest, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
