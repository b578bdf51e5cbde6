package classify

import (
	"fmt"
	"regexp"
	"strings"
)

// Pattern matches a single line against either a case-insensitive literal
// substring or an explicit /regex/flags expression.
type Pattern struct {
	re      *regexp.Regexp
	literal string
	spec    string
}

// ParsePattern compiles a pattern spec. Specs delimited as /body/flags are
// compiled as regular expressions; the default flag is i when none are
// given. Flags g and u have no per-match meaning here and are ignored.
// Everything else is a case-insensitive literal substring.
func ParsePattern(spec string) (Pattern, error) {
	trimmed := strings.TrimSpace(spec)
	if trimmed == "" {
		return Pattern{}, fmt.Errorf("empty pattern")
	}
	if strings.HasPrefix(trimmed, "/") && len(trimmed) > 1 {
		if idx := strings.LastIndex(trimmed[1:], "/"); idx >= 0 {
			body := trimmed[1 : idx+1]
			flags := trimmed[idx+2:]
			if body != "" {
				return compileRegexPattern(trimmed, body, flags)
			}
		}
	}
	return Pattern{literal: strings.ToLower(trimmed), spec: trimmed}, nil
}

// MustPattern is ParsePattern that panics on error, for built-in rule sets.
func MustPattern(spec string) Pattern {
	p, err := ParsePattern(spec)
	if err != nil {
		panic(fmt.Sprintf("classify: bad built-in pattern %q: %v", spec, err))
	}
	return p
}

// ParsePatterns compiles each spec, failing on the first invalid one.
func ParsePatterns(specs []string) ([]Pattern, error) {
	patterns := make([]Pattern, 0, len(specs))
	for _, spec := range specs {
		p, err := ParsePattern(spec)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", spec, err)
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}

func compileRegexPattern(spec, body, flags string) (Pattern, error) {
	var goFlags strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's':
			goFlags.WriteRune(f)
		case 'g', 'u':
			// whole-input matching is already per-call, unicode is implicit
		default:
			return Pattern{}, fmt.Errorf("unsupported regex flag %q", string(f))
		}
	}
	// The i default applies whenever no effective flag survives, so specs
	// carrying only ignored flags stay case-insensitive.
	if goFlags.Len() == 0 {
		goFlags.WriteRune('i')
	}
	re, err := regexp.Compile("(?" + goFlags.String() + ")" + body)
	if err != nil {
		return Pattern{}, err
	}
	return Pattern{re: re, spec: spec}, nil
}

// Match reports whether the line satisfies the pattern.
func (p Pattern) Match(line string) bool {
	if p.re != nil {
		return p.re.MatchString(line)
	}
	if p.literal == "" {
		return false
	}
	return strings.Contains(strings.ToLower(line), p.literal)
}

// String returns the original spec.
func (p Pattern) String() string { return p.spec }

// MatchAny reports whether any pattern in the list matches the line.
// Order does not matter; any single match qualifies.
func MatchAny(line string, patterns []Pattern) bool {
	for _, p := range patterns {
		if p.Match(line) {
			return true
		}
	}
	return false
}
