// Package textnorm cleans raw assistant output for classification and
// delivery: ANSI/control stripping, newline collapsing, and length-capped
// truncation.
package textnorm

import (
	"regexp"
	"strings"
)

// Ellipsis is appended when Truncate shortens a string.
const Ellipsis = "…"

var (
	// ansiRE matches CSI sequences (colors, cursor movement) and OSC
	// sequences (terminal titles) terminated by BEL or ST.
	ansiRE = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]|\x1b\][^\a\x1b]*(\a|\x1b\\)`)

	trailingWSRE   = regexp.MustCompile(`[ \t]+\n`)
	multiNewlineRE = regexp.MustCompile(`\n{3,}`)
)

// Normalize strips ANSI escape sequences and control characters, converts
// CRLF to LF, removes trailing whitespace before newlines, collapses runs
// of three or more newlines to two, and trims surrounding whitespace.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	s := ansiRE.ReplaceAllString(raw, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	s = trailingWSRE.ReplaceAllString(s, "\n")
	s = multiNewlineRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Truncate caps text at maxChars runes. Within budget the text is returned
// unchanged; otherwise the head is cut to maxChars-1 runes, trailing
// whitespace is trimmed, and a single ellipsis is appended. The operation
// is idempotent: Truncate(Truncate(s, n), n) == Truncate(s, n).
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	head := strings.TrimRight(string(runes[:maxChars-1]), " \t\n\r")
	return head + Ellipsis
}
