package util

import (
	"strconv"
	"strings"
)

// ParseDecimal parses a vendor numeric string. Thousands separators and a
// leading '+' are tolerated ("1,234.5", "+0.35").
func ParseDecimal(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "+")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
