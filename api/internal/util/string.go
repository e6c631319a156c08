package util

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	reLeadingFence  = regexp.MustCompile("^```[A-Za-z0-9_+-]*[ \t]*\r?\n?")
	reTrailingFence = regexp.MustCompile("\r?\n?```$")
)

// StripCodeFences removes a leading ```lang marker and a trailing ``` marker.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = reLeadingFence.ReplaceAllString(s, "")
	s = reTrailingFence.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Truncate cuts s to at most n bytes and marks the cut. The cut moves back
// to a rune boundary so the result stays valid UTF-8.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n < 0 {
		n = 0
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
