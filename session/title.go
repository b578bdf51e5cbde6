package session

import (
	"regexp"
	"strings"
)

// Placeholder titles the host assigns before a session earns a real one.
var genericTitles = map[string]struct{}{
	"new session":      {},
	"new chat":         {},
	"untitled":         {},
	"untitled session": {},
	"no title":         {},
	"새 세션":             {},
	"제목 없음":            {},
}

var genericTitleREs = []*regexp.Regexp{
	// "New session - 2024-05-01T09:30:12" style date-suffixed placeholders.
	regexp.MustCompile(`(?i)^new (session|chat)\s*[-–]\s*\d{4}-\d{2}-\d{2}`),
	regexp.MustCompile(`(?i)^untitled\s*\d*$`),
	regexp.MustCompile(`(?i)^session\s+\d+$`),
}

var subagentTitleRE = regexp.MustCompile(`(?i)^\s*(\[\s*(sub-?agent|task|delegate)[^\]]*\]|sub-?agent\b|task:)`)

var titleSpaceRE = regexp.MustCompile(`\s+`)

// normalizeTitle flattens whitespace so multi-line titles compare sanely.
func normalizeTitle(title string) string {
	return strings.TrimSpace(titleSpaceRE.ReplaceAllString(title, " "))
}

// IsGenericTitle reports whether the title is a placeholder carrying no
// information about the session.
func IsGenericTitle(title string) bool {
	t := normalizeTitle(title)
	if t == "" {
		return true
	}
	if _, ok := genericTitles[strings.ToLower(t)]; ok {
		return true
	}
	for _, re := range genericTitleREs {
		if re.MatchString(t) {
			return true
		}
	}
	return false
}

// ShouldApplyTitle encodes the monotonic improvement rule: apply next
// unless it is empty, unless it equals current, unless current is
// specific and next is generic (never downgrade), and unless both are
// generic (no information gained).
func ShouldApplyTitle(current, next string) bool {
	n := normalizeTitle(next)
	if n == "" {
		return false
	}
	c := normalizeTitle(current)
	if n == c {
		return false
	}
	if c != "" {
		nextGeneric := IsGenericTitle(n)
		if !IsGenericTitle(c) && nextGeneric {
			return false
		}
		if IsGenericTitle(c) && nextGeneric {
			return false
		}
	}
	return true
}

// ResolveTitle picks a title from ordered candidates: the first
// non-generic one, else the first generic one, else empty. Keeping the
// generic fallback distinguishes "a placeholder title" from "no title".
func ResolveTitle(candidates []string) string {
	firstGeneric := ""
	for _, c := range candidates {
		t := normalizeTitle(c)
		if t == "" {
			continue
		}
		if !IsGenericTitle(t) {
			return t
		}
		if firstGeneric == "" {
			firstGeneric = t
		}
	}
	return firstGeneric
}

// LooksLikeSubagentTitle reports whether the title follows the naming
// convention of delegated sub-agent sessions.
func LooksLikeSubagentTitle(title string) bool {
	return subagentTitleRE.MatchString(title)
}
