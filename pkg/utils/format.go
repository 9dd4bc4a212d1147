// Package utils provides shared utility functions.
package utils

import (
	"strings"

	"github.com/holiman/uint256"
)

// FormatAmount renders a raw amount, treating nil as zero.
func FormatAmount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

// FormatScaled renders a fixed-point amount with the decimal point
// inserted, trailing zeros trimmed.
func FormatScaled(v *uint256.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	s := v.Dec()
	if decimals == 0 {
		return s
	}
	d := int(decimals)
	if len(s) <= d {
		s = strings.Repeat("0", d-len(s)+1) + s
	}
	intPart := s[:len(s)-d]
	decPart := strings.TrimRight(s[len(s)-d:], "0")
	if decPart == "" {
		return intPart
	}
	return intPart + "." + decPart
}

// GroupThousands inserts commas every three digits of an integer string.
func GroupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	var parts []string
	for n > 3 {
		parts = append([]string{s[n-3:]}, parts...)
		s = s[:n-3]
		n = len(s)
	}
	return s + "," + strings.Join(parts, ",")
}
