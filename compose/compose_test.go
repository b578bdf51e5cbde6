package compose

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/Superl3/OpenCode-Discord-Notifier/textnorm"
)

func TestBuildFullTemplate(t *testing.T) {
	in := Input{
		Title:            "OpenCode",
		EnvTag:           "dev",
		EnvLabel:         "dev runtime",
		EnvNotRegistered: true,
		Workspace:        "myrepo",
		SessionTitle:     "Fix login bug",
		SessionID:        "ses_1",
		TriggerKind:      "input_required",
		Mode:             ModeClean,
		IncludeMetadata:  true,
		Timestamp:        time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
		Elapsed:          134 * time.Second,
		Body:             "All done. Tests pass.",
		RawTail:          "ok 12 tests",
		MentionUserID:    "42",
		MaxChars:         1900,
	}
	out := Build(in)

	wantOrder := []string{
		"<@42>",
		"**[dev] OpenCode** · myrepo · Fix login bug",
		"⚠ dev runtime is not registered yet",
		"> time 2024-05-01 09:30:00 · elapsed 2m14s · trigger input_required · mode clean",
		"All done. Tests pass.",
		"```\nok 12 tests\n```",
	}
	last := -1
	for _, want := range wantOrder {
		idx := strings.Index(out, want)
		if idx < 0 {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
		if idx < last {
			t.Fatalf("%q appears out of order:\n%s", want, out)
		}
		last = idx
	}
}

func TestBuildOmitsHeaderInThread(t *testing.T) {
	out := Build(Input{
		Title:      "OpenCode",
		Workspace:  "myrepo",
		OmitHeader: true,
		Mode:       ModeRaw,
		Body:       "done.",
	})
	if strings.Contains(out, "**") {
		t.Errorf("header should be omitted in-thread:\n%s", out)
	}
	if out != "done." {
		t.Errorf("Build = %q, want %q", out, "done.")
	}
}

func TestBuildHeaderFallsBackToSessionID(t *testing.T) {
	out := Build(Input{Title: "OpenCode", SessionID: "ses_9", Mode: ModeRaw, Body: "x"})
	if !strings.Contains(out, "**OpenCode** · ses_9") {
		t.Errorf("header should fall back to the session id:\n%s", out)
	}
}

func TestBuildTruncation(t *testing.T) {
	long := strings.Repeat("a", 3000)

	out := Build(Input{OmitHeader: true, Mode: ModeRaw, Body: long})
	if n := utf8.RuneCountInString(out); n > ContentCeiling {
		t.Errorf("len = %d, want <= %d", n, ContentCeiling)
	}
	if !strings.HasSuffix(out, textnorm.Ellipsis) {
		t.Error("truncated output should end with the ellipsis")
	}

	out = Build(Input{OmitHeader: true, Mode: ModeRaw, Body: long, MaxChars: 120})
	if n := utf8.RuneCountInString(out); n > 120 {
		t.Errorf("len = %d, want <= 120", n)
	}

	// MaxChars above the platform ceiling is clipped to the ceiling.
	out = Build(Input{OmitHeader: true, Mode: ModeRaw, Body: long, MaxChars: 5000})
	if n := utf8.RuneCountInString(out); n > ContentCeiling {
		t.Errorf("len = %d, want <= %d", n, ContentCeiling)
	}
}

func TestBodyModes(t *testing.T) {
	body := "before\n```go\ncode here\n```\nafter"

	raw := Build(Input{OmitHeader: true, Mode: ModeRaw, Body: body})
	if !strings.Contains(raw, "code here") {
		t.Errorf("raw mode should keep fence contents:\n%s", raw)
	}

	clean := Build(Input{OmitHeader: true, Mode: ModeClean, Body: body})
	if strings.Contains(clean, "code here") || strings.Contains(clean, "```") {
		t.Errorf("clean mode should strip fences:\n%s", clean)
	}
	if !strings.Contains(clean, "before") || !strings.Contains(clean, "after") {
		t.Errorf("clean mode should keep surrounding text:\n%s", clean)
	}

	sum := Build(Input{
		OmitHeader:        true,
		Mode:              ModeSummary,
		Body:              "First thing done. Second thing done. Third thing. Fourth thing.",
		SummaryMaxBullets: 2,
	})
	lines := strings.Split(sum, "\n")
	if len(lines) != 2 {
		t.Fatalf("summary bullets = %d, want 2:\n%s", len(lines), sum)
	}
	for _, line := range lines {
		if !strings.HasPrefix(line, "- ") {
			t.Errorf("summary line %q is not a bullet", line)
		}
	}
}

func TestCleanModeFencedOnlyBody(t *testing.T) {
	out := Build(Input{OmitHeader: true, Mode: ModeClean, Body: "```\nonly code\n```"})
	if !strings.Contains(out, "only code") {
		t.Errorf("fully fenced body should fall back to verbatim text:\n%s", out)
	}
}

func TestFenceTailSanitized(t *testing.T) {
	out := Build(Input{OmitHeader: true, Mode: ModeRaw, Body: "x", RawTail: "a ``` b"})
	if strings.Count(out, "```") != 2 {
		t.Errorf("embedded fences should be neutralized:\n%s", out)
	}
}

func TestSummarize(t *testing.T) {
	if got := Summarize("```\ncode output only\n```", 3); got != "- code output only" {
		t.Errorf("Summarize fenced-only = %q", got)
	}
	if got := Summarize("a\nb", 3); got != "- a b" {
		t.Errorf("Summarize fallback = %q", got)
	}
	long := strings.Repeat("word ", 100) + "end"
	got := Summarize(long, 3)
	if n := utf8.RuneCountInString(got); n > bulletMaxChars+2 {
		t.Errorf("bullet length = %d, want <= %d", n, bulletMaxChars+2)
	}
}
