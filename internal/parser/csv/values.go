package csv

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// IsNullToken reports whether s is one of the spellings BACI files use for a
// missing value. s must already be trimmed.
func IsNullToken(s string) bool {
	switch strings.ToLower(s) {
	case "", "na", "nan", "null", "n/a":
		return true
	}
	return false
}

// ParseInt parses a base-10 integer. Integral floats ("2020.0") are accepted
// because some exports write integer columns with a float type.
func ParseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	if f >= math.MaxInt64 || f <= math.MinInt64 {
		return 0, fmt.Errorf("integer out of range: %q", s)
	}
	return int(f), nil
}

// ParseMeasure parses a quantity/value cell. Null tokens become 0.
func ParseMeasure(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if IsNullToken(s) {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if math.IsNaN(f) {
		return 0, nil
	}
	return f, nil
}
