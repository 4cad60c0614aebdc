package util

import (
	"regexp"
	"strings"
)

var whitespace = regexp.MustCompile(`\s+`)

// NormalizeWhitespace trims and collapses whitespace to single spaces.
func NormalizeWhitespace(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// Truncate cuts s to at most n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if n <= 0 || len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
