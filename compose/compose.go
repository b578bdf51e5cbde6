// Package compose renders outbound notification text from a fixed
// template: mention, header, environment warning, metadata, body, and
// an optional verbatim tail.
package compose

import (
	"fmt"
	"strings"
	"time"

	"github.com/Superl3/OpenCode-Discord-Notifier/textnorm"
)

// ContentCeiling is the hard per-message length limit imposed by the
// delivery platform. Build never exceeds it, whatever MaxChars says.
const ContentCeiling = 2000

// Mode selects how the assistant text is rendered.
type Mode string

const (
	// ModeRaw keeps the normalized text as-is.
	ModeRaw Mode = "raw"
	// ModeClean additionally strips fenced code blocks.
	ModeClean Mode = "clean"
	// ModeSummary renders sentence-boundary bullets.
	ModeSummary Mode = "summary"
)

// Input carries everything Build needs. Zero values mean "omit".
type Input struct {
	// Title is the configured notification title for the header line.
	Title string
	// EnvTag decorates the title, e.g. "[dev]".
	EnvTag string
	// EnvLabel names the environment in the setup warning.
	EnvLabel string
	// EnvNotRegistered adds a warning that setup is incomplete.
	EnvNotRegistered bool

	Workspace    string
	SessionTitle string
	SessionID    string

	// OmitHeader suppresses the header line, used when the message is
	// delivered inside an established per-session thread.
	OmitHeader bool

	TriggerKind     string
	Mode            Mode
	IncludeMetadata bool
	Timestamp       time.Time
	Elapsed         time.Duration

	// Body is the assistant text; RawTail, when set, is appended
	// verbatim inside a code fence.
	Body    string
	RawTail string

	MentionUserID     string
	MaxChars          int
	SummaryMaxBullets int
}

// Build renders the notification. The result never exceeds
// min(MaxChars, ContentCeiling) characters.
func Build(in Input) string {
	var b strings.Builder

	if in.MentionUserID != "" {
		fmt.Fprintf(&b, "<@%s>\n", in.MentionUserID)
	}
	if !in.OmitHeader {
		b.WriteString(headerLine(in))
		b.WriteString("\n")
	}
	if in.EnvNotRegistered {
		label := in.EnvLabel
		if label == "" {
			label = "this environment"
		}
		fmt.Fprintf(&b, "⚠ %s is not registered yet; run setup to finish routing notifications.\n", label)
	}
	if in.IncludeMetadata {
		b.WriteString(metadataLine(in))
	}

	if body := renderBody(in); body != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(body)
	}
	if tail := fenceTail(in.RawTail); tail != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(tail)
	}

	limit := ContentCeiling
	if in.MaxChars > 0 {
		limit = min(in.MaxChars, ContentCeiling)
	}
	return textnorm.Truncate(strings.TrimRight(b.String(), "\n"), limit)
}

func headerLine(in Input) string {
	title := in.Title
	if title == "" {
		title = "Notification"
	}
	if in.EnvTag != "" {
		title = fmt.Sprintf("[%s] %s", in.EnvTag, title)
	}
	parts := []string{"**" + title + "**"}
	if in.Workspace != "" {
		parts = append(parts, in.Workspace)
	}
	switch {
	case in.SessionTitle != "":
		parts = append(parts, in.SessionTitle)
	case in.SessionID != "":
		parts = append(parts, in.SessionID)
	}
	return strings.Join(parts, " · ")
}

func metadataLine(in Input) string {
	var fields []string
	if !in.Timestamp.IsZero() {
		fields = append(fields, "time "+in.Timestamp.Format("2006-01-02 15:04:05"))
	}
	if in.Elapsed > 0 {
		fields = append(fields, "elapsed "+in.Elapsed.Round(time.Second).String())
	}
	if in.TriggerKind != "" {
		fields = append(fields, "trigger "+in.TriggerKind)
	}
	if in.Mode != "" {
		fields = append(fields, "mode "+string(in.Mode))
	}
	if len(fields) == 0 {
		return ""
	}
	return "> " + strings.Join(fields, " · ") + "\n"
}

func renderBody(in Input) string {
	text := textnorm.Normalize(in.Body)
	if text == "" {
		return ""
	}
	switch in.Mode {
	case ModeRaw:
		return text
	case ModeSummary:
		return Summarize(text, in.SummaryMaxBullets)
	default:
		cleaned := textnorm.Normalize(StripCodeFences(text))
		if cleaned == "" {
			// Everything sat inside a fence; better verbatim than empty.
			return text
		}
		return cleaned
	}
}

func fenceTail(tail string) string {
	tail = strings.TrimRight(tail, "\n")
	if tail == "" {
		return ""
	}
	tail = strings.ReplaceAll(tail, "```", "'''")
	return "```\n" + tail + "\n```"
}
