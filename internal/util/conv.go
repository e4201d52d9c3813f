package util

import (
	"strconv"
	"strings"
)

// MustParseUint returns 0 when s is not a valid unsigned integer.
func MustParseUint(s string) uint {
	id, _ := strconv.ParseUint(s, 10, 32)
	return uint(id)
}

// ParseOptionalInt returns nil for an empty string.
func ParseOptionalInt(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, Invalidf("invalid integer %q", s)
	}
	return &v, nil
}
