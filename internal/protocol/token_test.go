package protocol

import (
	"reflect"
	"testing"
)

// TestScenarioS5 is spec §8 S5 verbatim.
func TestScenarioS5(t *testing.T) {
	got, err := Tokenize(`select [artist=="foo bar"] sort date`)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	want := []string{"select", `artist=="foo bar"`, "sort", "date"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestTokenizeSingleAndDoubleQuotes(t *testing.T) {
	got, err := Tokenize(`add 'plain single' "escaped \" quote"`)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	want := []string{"add", "plain single", `escaped " quote`}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestTokenizeLineContinuation(t *testing.T) {
	got, err := Tokenize("select \\\nsort date")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	want := []string{"select", "sort", "date"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestTokenizeUnclosedQuoteErrors(t *testing.T) {
	if _, err := Tokenize(`add "unterminated`); err == nil {
		t.Fatalf("expected an error for an unclosed double quote")
	}
	if _, err := Tokenize(`select [unterminated`); err == nil {
		t.Fatalf("expected an error for an unclosed bracket")
	}
}
