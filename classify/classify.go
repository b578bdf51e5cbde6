// Package classify decides what a fragment of assistant output means:
// whether a CLI line signals completion or a prompt for input, whether a
// message is intermediate analysis noise, and whether a value describes a
// termination or an interrupt. One classifier instance serves both the
// line-based and the message-based callers; all keyword lists come from a
// RuleSet so they can be tuned without touching code.
package classify

import (
	"regexp"
	"strings"
)

// NoticeKind names the reason a session needs attention.
type NoticeKind string

const (
	NoticeCancelled          NoticeKind = "cancelled"
	NoticeInterrupted        NoticeKind = "interrupted"
	NoticeFailed             NoticeKind = "failed"
	NoticePermissionRequired NoticeKind = "permission_required"
	NoticeInputRequired      NoticeKind = "input_required"
)

// LineKind classifies a single CLI output line.
type LineKind int

const (
	// LineNone means the line matched no configured pattern.
	LineNone LineKind = iota
	// LineBuildComplete means the line matched a completion pattern.
	LineBuildComplete
	// LineAwaitingInput means the line matched a waiting-for-input pattern.
	LineAwaitingInput
)

// Hard noise markers: one match is sufficient to classify text as
// intermediate analysis. These are structural signals, not guesses.
var hardNoiseMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*\[[^\]\n]{0,40}mode\]`),
	regexp.MustCompile(`(?i)^\s*\[(analysis|internal|planning|scratchpad)\]`),
	regexp.MustCompile(`(?is)<\s*/?\s*(analysis|thinking|reasoning|scratchpad|internal)\b`),
	regexp.MustCompile(`(?i)do not (edit|modify|change)\b.{0,20}\bfiles?`),
	regexp.MustCompile(`(?i)read-?only analysis`),
}

// Soft noise markers: suggestive phrasing that only counts in combination.
// A single incidental match must not suppress a real answer.
var softNoiseMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\blet me (check|look|verify|examine|analyze|investigate)\b`),
	regexp.MustCompile(`(?i)\b(analyzing|examining|scanning|investigating|searching|inspecting)\b`),
	regexp.MustCompile(`(?i)\bi('m| am) (looking|checking|reading|reviewing|going)\b`),
	regexp.MustCompile(`(?i)\b(first|next|now),? i('ll| will)\b`),
	regexp.MustCompile(`(?i)\b(intermediate|preliminary|initial) (analysis|findings|results|thoughts)\b`),
	regexp.MustCompile(`살펴보|확인해\s*보|분석\s*중|검토\s*중`),
}

// Classifier applies a compiled RuleSet.
type Classifier struct {
	complete      []Pattern
	awaiting      []Pattern
	cancelRE      *regexp.Regexp
	interruptRE   *regexp.Regexp
	failRE        *regexp.Regexp
	hintRE        *regexp.Regexp
	transientRE   *regexp.Regexp
	delegation    map[string]struct{}
	softThreshold int
}

// New compiles the rule set. Empty lists fall back to the defaults;
// invalid patterns fail compilation.
func New(rules RuleSet) (*Classifier, error) {
	rules = rules.withDefaults()

	complete, err := ParsePatterns(rules.CompletePatterns)
	if err != nil {
		return nil, err
	}
	awaiting, err := ParsePatterns(rules.AwaitingInputPatterns)
	if err != nil {
		return nil, err
	}

	delegation := make(map[string]struct{}, len(rules.DelegationTools))
	for _, name := range rules.DelegationTools {
		delegation[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
	}

	return &Classifier{
		complete:      complete,
		awaiting:      awaiting,
		cancelRE:      keywordRE(rules.CancelKeywords),
		interruptRE:   keywordRE(rules.InterruptKeywords),
		failRE:        keywordRE(rules.FailKeywords),
		hintRE:        keywordRE(rules.InterruptHintKeywords),
		transientRE:   keywordRE(rules.TransientErrorKeywords),
		delegation:    delegation,
		softThreshold: rules.SoftMarkerThreshold,
	}, nil
}

// MustNew is New for rule sets known to be valid, such as the defaults.
func MustNew(rules RuleSet) *Classifier {
	c, err := New(rules)
	if err != nil {
		panic(err)
	}
	return c
}

// ClassifyLine tests a normalized CLI line against the completion and
// awaiting-input pattern lists. Any single match qualifies; completion
// patterns are consulted first.
func (c *Classifier) ClassifyLine(line string) LineKind {
	if strings.TrimSpace(line) == "" {
		return LineNone
	}
	if MatchAny(line, c.complete) {
		return LineBuildComplete
	}
	if MatchAny(line, c.awaiting) {
		return LineAwaitingInput
	}
	return LineNone
}

// IsIntermediateAnalysis reports whether message text is sub-agent or
// analysis noise that must not become a notification candidate. Any hard
// marker match suffices; soft markers require at least the configured
// threshold of independent matches.
func (c *Classifier) IsIntermediateAnalysis(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	for _, re := range hardNoiseMarkers {
		if re.MatchString(text) {
			return true
		}
	}
	matches := 0
	for _, re := range softNoiseMarkers {
		if re.MatchString(text) {
			matches++
			if matches >= c.softThreshold {
				return true
			}
		}
	}
	return false
}

// ClassifyTermination tests a value in priority order: cancellation,
// then interruption, then generic failure. The first matching tier wins;
// no match means the value is not a termination.
func (c *Classifier) ClassifyTermination(value string) (NoticeKind, bool) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", false
	}
	switch {
	case c.cancelRE != nil && c.cancelRE.MatchString(v):
		return NoticeCancelled, true
	case c.interruptRE != nil && c.interruptRE.MatchString(v):
		return NoticeInterrupted, true
	case c.failRE != nil && c.failRE.MatchString(v):
		return NoticeFailed, true
	}
	return "", false
}

// ClassifyInterrupt decides whether an event demands human input right
// now. Permission events always do. A retry status qualifies only when
// its message carries an interrupt hint and is not a transient
// infrastructure problem (rate limits and network errors resolve
// themselves).
func (c *Classifier) ClassifyInterrupt(eventType, status, message string) (NoticeKind, bool) {
	if IsPermissionEvent(eventType) {
		return NoticePermissionRequired, true
	}
	if strings.EqualFold(strings.TrimSpace(status), "retry") {
		if c.hintRE != nil && c.hintRE.MatchString(message) &&
			(c.transientRE == nil || !c.transientRE.MatchString(message)) {
			return NoticeInputRequired, true
		}
	}
	return "", false
}

// IsDelegationTool reports whether the tool name spawns a delegated
// sub-task.
func (c *Classifier) IsDelegationTool(name string) bool {
	_, ok := c.delegation[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// IsPermissionEvent reports whether the event type is a permission
// request, which always classifies as permission_required.
func IsPermissionEvent(eventType string) bool {
	return strings.HasPrefix(eventType, "permission.")
}

// keywordRE builds a case-insensitive alternation over literal keywords.
// Returns nil when the list is empty.
func keywordRE(keywords []string) *regexp.Regexp {
	quoted := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(k))
	}
	if len(quoted) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)(` + strings.Join(quoted, "|") + `)`)
}
