package filter

import (
	"strings"
	"testing"

	"github.com/yumeno-dev/musingd/internal/tag"
)

func md(pairs ...string) tag.Metadata {
	m := make(tag.Metadata)
	for i := 0; i+1 < len(pairs); i += 2 {
		k, err := tag.Lookup(pairs[i])
		if err != nil {
			panic(err)
		}
		m[k] = pairs[i+1]
	}
	return m
}

func TestEmptyExpressionMatchesEverything(t *testing.T) {
	e, err := Compile("")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !e.Eval(md()) {
		t.Fatalf("default expression should match everything")
	}
}

// S1 from spec §8.
func TestScenarioS1(t *testing.T) {
	e, err := Compile(`artist=="^bach" & (genre=="baroque" | year=="17..")`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	bach := md("artist", "Bach, J.S.", "genre", "Baroque")
	if !e.Eval(bach) {
		t.Fatalf("expected match for Bach/Baroque")
	}

	mozart := md("artist", "Mozart", "year", "1785")
	if e.Eval(mozart) {
		t.Fatalf("expected no match for Mozart")
	}
}

func TestNotEqualsNegates(t *testing.T) {
	e, err := Compile(`genre!="rock"`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if e.Eval(md("genre", "Rock")) {
		t.Fatalf("expected no match: genre is rock")
	}
	if !e.Eval(md("genre", "Jazz")) {
		t.Fatalf("expected match: genre is not rock")
	}
}

func TestQuotedPatternWithSpaces(t *testing.T) {
	e, err := Compile(`artist=="foo bar"`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !e.Eval(md("artist", "foo bar baz")) {
		t.Fatalf("expected match")
	}
}

func TestUnaccentedQueryMatchesAccentedContent(t *testing.T) {
	e, err := Compile(`artist=="Beyonce"`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !e.Eval(md("artist", "Beyoncé")) {
		t.Fatalf("expected transliterated match")
	}
}

func TestErrorKinds(t *testing.T) {
	cases := map[string]string{
		`artist==`:              "Incomplete filter",
		`artist~~foo`:           "Invalid comparator",
		`artist=="unterminated`: "Unclosed double quote",
		`(artist=="x"`:          "Mismatched parentheses",
		`artist=="x")`:          "Mismatched parentheses",
		`nosuchtag=="x"`:        "Invalid tag",
		`artist=="("`:           "",
	}
	for src, wantPrefix := range cases {
		_, err := Compile(src)
		if wantPrefix == "" {
			continue
		}
		if err == nil {
			t.Errorf("Compile(%q): expected error", src)
			continue
		}
		if !strings.HasPrefix(err.Error(), wantPrefix) {
			t.Errorf("Compile(%q): error %q, want prefix %q", src, err, wantPrefix)
		}
	}
}

func TestInvalidRegex(t *testing.T) {
	_, err := Compile(`artist=="("`)
	if err == nil {
		t.Fatalf("expected invalid regex error")
	}
}

func TestAndPrecedenceOverOr(t *testing.T) {
	// a | b & c  ==  a | (b & c)
	e, err := Compile(`genre=="x" | genre=="y" & artist=="never"`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !e.Eval(md("genre", "x")) {
		t.Fatalf("expected match via left OR operand alone")
	}
}
