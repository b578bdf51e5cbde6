package classify

import "testing"

func TestParsePatternLiteral(t *testing.T) {
	p, err := ParsePattern("Build Complete")
	if err != nil {
		t.Fatalf("ParsePattern: %v", err)
	}
	if !p.Match("the build complete banner") {
		t.Error("literal should match case-insensitively")
	}
	if p.Match("still compiling") {
		t.Error("literal should not match unrelated text")
	}
}

func TestParsePatternRegex(t *testing.T) {
	tests := []struct {
		name  string
		spec  string
		line  string
		match bool
	}{
		{"default i flag", "/done/", "DONE", true},
		{"explicit i", "/ready/i", "Ready.", true},
		{"multiline flag", "/^ok$/m", "first\nok\nlast", true},
		{"anchored no match", "/^done$/", "well done sir", false},
		{"digits", `/exit code \d+/`, "Exit code 1", true},
		{"escaped slash", `/\[y\/n\]/`, "continue? [y/n]", true},
		{"ignored g flag", "/retry/g", "Retry now", true},
		{"only ignored flags keep i default", "/fail/gu", "FAILED", true},
		{"ignored flag beside explicit m", "/^ok$/gm", "first\nOK\nlast", false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			p, err := ParsePattern(tc.spec)
			if err != nil {
				t.Fatalf("ParsePattern(%q): %v", tc.spec, err)
			}
			if got := p.Match(tc.line); got != tc.match {
				t.Errorf("Pattern(%q).Match(%q) = %v, want %v", tc.spec, tc.line, got, tc.match)
			}
		})
	}
}

func TestParsePatternExplicitFlagsReplaceDefault(t *testing.T) {
	p, err := ParsePattern("/done/m")
	if err != nil {
		t.Fatalf("ParsePattern: %v", err)
	}
	if p.Match("DONE") {
		t.Error("explicit flags drop the default i flag")
	}
}

func TestParsePatternErrors(t *testing.T) {
	for _, spec := range []string{"", "   ", "/[unclosed/", "/abc/x"} {
		if _, err := ParsePattern(spec); err == nil {
			t.Errorf("ParsePattern(%q) should fail", spec)
		}
	}
}

func TestParsePatternDegenerateSlashes(t *testing.T) {
	// No closing delimiter or empty body: treated as literal text.
	for _, spec := range []string{"/", "//", "/notclosed"} {
		p, err := ParsePattern(spec)
		if err != nil {
			t.Fatalf("ParsePattern(%q): %v", spec, err)
		}
		if !p.Match("path " + spec + " here") {
			t.Errorf("degenerate spec %q should fall back to literal matching", spec)
		}
	}
}

func TestMatchAny(t *testing.T) {
	patterns, err := ParsePatterns([]string{"alpha", "/bet+a/", "gamma"})
	if err != nil {
		t.Fatalf("ParsePatterns: %v", err)
	}
	if !MatchAny("the BETTTA sequence", patterns) {
		t.Error("middle pattern should match")
	}
	if MatchAny("delta only", patterns) {
		t.Error("no pattern should match")
	}
	if MatchAny("anything", nil) {
		t.Error("empty pattern list matches nothing")
	}
}
