package utils

import (
	"strconv"
	"strings"
)

// ToBool parses flag-like values. It accepts "1", "true", "yes" and "on" in any
// case and falls back to def for empty input.
func ToBool(val string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "":
		return def
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// ToInt parses val as a base 10 integer clamped to [lo, hi]. Empty or malformed
// input returns def.
func ToInt(val string, def, lo, hi int) int {
	i, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return def
	}
	if i < lo {
		return lo
	}
	if i > hi {
		return hi
	}
	return i
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
