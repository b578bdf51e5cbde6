package classify

// RuleSet holds the keyword and pattern lists the classifier is built
// from. The lists are data, not code: callers may override any of them
// via configuration, and empty fields fall back to the defaults. The
// defaults mix English and Korean phrases matching the assistant's
// observed output.
type RuleSet struct {
	// CompletePatterns classify a CLI output line as "build complete".
	CompletePatterns []string `yaml:"completePatterns,omitempty" json:"completePatterns,omitempty"`

	// AwaitingInputPatterns classify a CLI output line as "waiting for input".
	AwaitingInputPatterns []string `yaml:"awaitingInputPatterns,omitempty" json:"awaitingInputPatterns,omitempty"`

	// CancelKeywords mark a termination value as a cancellation. Checked
	// before interrupt and failure keywords.
	CancelKeywords []string `yaml:"cancelKeywords,omitempty" json:"cancelKeywords,omitempty"`

	// InterruptKeywords mark a termination value as a user interruption.
	InterruptKeywords []string `yaml:"interruptKeywords,omitempty" json:"interruptKeywords,omitempty"`

	// FailKeywords mark a termination value as a generic failure. Checked last.
	FailKeywords []string `yaml:"failKeywords,omitempty" json:"failKeywords,omitempty"`

	// InterruptHintKeywords qualify a retry-status message as needing
	// user input.
	InterruptHintKeywords []string `yaml:"interruptHintKeywords,omitempty" json:"interruptHintKeywords,omitempty"`

	// TransientErrorKeywords disqualify a retry-status message: rate
	// limits and network blips are not interrupts.
	TransientErrorKeywords []string `yaml:"transientErrorKeywords,omitempty" json:"transientErrorKeywords,omitempty"`

	// DelegationTools are tool names whose output belongs to a delegated
	// sub-task rather than the main conversation.
	DelegationTools []string `yaml:"delegationTools,omitempty" json:"delegationTools,omitempty"`

	// SoftMarkerThreshold is the number of independent soft-marker
	// matches required to classify text as intermediate analysis.
	SoftMarkerThreshold int `yaml:"softMarkerThreshold,omitempty" json:"softMarkerThreshold,omitempty" jsonschema:"minimum=1"`
}

// DefaultRuleSet returns the built-in lists.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		CompletePatterns: []string{
			"build complete",
			"build completed",
			"build succeeded",
			"compilation finished",
			"task complete",
			"all tests passed",
			"빌드 완료",
			"작업 완료",
			`/finished in \d+(\.\d+)?m?s/`,
		},
		AwaitingInputPatterns: []string{
			"waiting for input",
			"awaiting input",
			"press enter",
			"(y/n)",
			"[y/n]",
			"proceed?",
			"continue?",
			"입력 대기",
			"계속하시겠습니까",
		},
		CancelKeywords: []string{
			"cancel", "cancelled", "canceled", "abort", "aborted", "취소",
		},
		InterruptKeywords: []string{
			"interrupt", "interrupted", "stopped by user", "stop requested", "중단", "중지",
		},
		FailKeywords: []string{
			"fail", "failed", "failure", "error", "exception", "fatal", "실패", "오류", "에러",
		},
		InterruptHintKeywords: []string{
			"permission", "approval", "approve", "confirm", "authoriz",
			"credential", "token", "login", "log in", "choose", "select",
			"input required", "user input", "waiting for you",
			"승인", "허용", "확인", "선택", "입력",
		},
		TransientErrorKeywords: []string{
			"rate limit", "rate-limit", "too many requests", "429",
			"network", "connection", "timeout", "timed out", "overloaded",
			"503", "502", "econnreset", "socket hang up", "dns",
		},
		DelegationTools: []string{
			"task", "agent", "subagent", "spawn_subagent", "delegate",
		},
		SoftMarkerThreshold: 2,
	}
}

// withDefaults backfills empty fields from the default rule set.
func (r RuleSet) withDefaults() RuleSet {
	def := DefaultRuleSet()
	if len(r.CompletePatterns) == 0 {
		r.CompletePatterns = def.CompletePatterns
	}
	if len(r.AwaitingInputPatterns) == 0 {
		r.AwaitingInputPatterns = def.AwaitingInputPatterns
	}
	if len(r.CancelKeywords) == 0 {
		r.CancelKeywords = def.CancelKeywords
	}
	if len(r.InterruptKeywords) == 0 {
		r.InterruptKeywords = def.InterruptKeywords
	}
	if len(r.FailKeywords) == 0 {
		r.FailKeywords = def.FailKeywords
	}
	if len(r.InterruptHintKeywords) == 0 {
		r.InterruptHintKeywords = def.InterruptHintKeywords
	}
	if len(r.TransientErrorKeywords) == 0 {
		r.TransientErrorKeywords = def.TransientErrorKeywords
	}
	if len(r.DelegationTools) == 0 {
		r.DelegationTools = def.DelegationTools
	}
	if r.SoftMarkerThreshold <= 0 {
		r.SoftMarkerThreshold = def.SoftMarkerThreshold
	}
	return r
}
