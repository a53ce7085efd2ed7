package burnin

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseRate converts a download rate string to bytes per second.
// "100m" is 100 MiB/s (104857600), "10k" is 10 KiB/s (10240), "1g" is
// 1 GiB/s, and a unitless number is taken as-is. Unparseable input
// returns 0 and an error; callers log a warning and run unthrottled.
func ParseRate(s string) (int64, error) {
	orig := s
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("empty rate")
	}

	multiplier := int64(1)
	switch s[len(s)-1] {
	case 'k':
		multiplier = 1 << 10
		s = s[:len(s)-1]
	case 'm':
		multiplier = 1 << 20
		s = s[:len(s)-1]
	case 'g':
		multiplier = 1 << 30
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("unparseable rate %q", orig)
	}
	return n * multiplier, nil
}
