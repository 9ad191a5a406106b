package auth

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const DefaultSessionTTL = 7 * 24 * time.Hour

// ParseTTL reads a lifetime such as "7d", "12h", "30m" or "45s". A bare
// integer is taken as milliseconds. Suffixes are lower-case only. An empty
// string yields DefaultSessionTTL.
func ParseTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultSessionTTL, nil
	}

	unit := time.Millisecond
	number := s
	switch s[len(s)-1] {
	case 'd':
		unit = 24 * time.Hour
	case 'h':
		unit = time.Hour
	case 'm':
		unit = time.Minute
	case 's':
		unit = time.Second
	}
	if unit != time.Millisecond {
		number = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(number, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid ttl %q", s)
	}
	if n > math.MaxInt64/int64(unit) {
		return 0, fmt.Errorf("ttl %q out of range", s)
	}

	return time.Duration(n) * unit, nil
}
