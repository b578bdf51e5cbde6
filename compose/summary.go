package compose

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Superl3/OpenCode-Discord-Notifier/textnorm"
)

// bulletMaxChars caps each summary bullet.
const bulletMaxChars = 160

var sentenceRE = regexp.MustCompile(`[^.!?\n]+[.!?]*`)

// StripCodeFences drops fenced code blocks, including the fence
// markers. An unclosed fence swallows the rest of the text.
func StripCodeFences(text string) string {
	var kept []string
	inFence := false
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			continue
		}
		if !inFence {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// Summarize renders up to maxBullets sentence-boundary bullets from
// text, with code fences removed first. When no bullet survives it
// falls back to a single truncated bullet.
func Summarize(text string, maxBullets int) string {
	if maxBullets <= 0 {
		maxBullets = 3
	}
	src := StripCodeFences(text)
	if strings.TrimSpace(src) == "" {
		// Everything was fenced; keep the content, lose the markers.
		src = strings.ReplaceAll(text, "```", "")
	}

	var bullets []string
	for _, raw := range sentenceRE.FindAllString(src, -1) {
		s := strings.TrimSpace(raw)
		if utf8.RuneCountInString(s) < 2 {
			continue
		}
		bullets = append(bullets, "- "+textnorm.Truncate(s, bulletMaxChars))
		if len(bullets) == maxBullets {
			break
		}
	}
	if len(bullets) == 0 {
		fallback := textnorm.Truncate(strings.Join(strings.Fields(src), " "), bulletMaxChars)
		if fallback == "" {
			return ""
		}
		return "- " + fallback
	}
	return strings.Join(bullets, "\n")
}
