package comparator

import (
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

func TestParseInversion(t *testing.T) {
	c, err := Parse("!title")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !c.Inverted {
		t.Fatalf("expected inverted comparator")
	}
	if c.Tag != tag.Title {
		t.Fatalf("expected title tag, got %v", c.Tag)
	}
}

func TestMissingTagSortsBelow(t *testing.T) {
	c, _ := Parse("year")
	present := md("year", "2000")
	missing := md()
	if !c.Less(missing, present) {
		t.Fatalf("missing tag should sort below a present one")
	}
	if c.Less(present, missing) {
		t.Fatalf("present tag should not sort below missing")
	}
}

func TestIntegerCompareFallsBackToEqualOnParseFailure(t *testing.T) {
	c, _ := Parse("year")
	a := md("year", "not-a-number")
	b := md("year", "2000")
	if c.Less(a, b) || c.Less(b, a) {
		t.Fatalf("parse failure should compare equal")
	}
}

func TestOutOfComparesNumerator(t *testing.T) {
	c, _ := Parse("tracknumber")
	a := md("tracknumber", "3/12")
	b := md("tracknumber", "9/12")
	if !c.Less(a, b) {
		t.Fatalf("track 3 should sort before track 9")
	}
}

func TestChainTieBreak(t *testing.T) {
	cmps, err := ParseAll("album,tracknumber")
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	a := md("album", "X", "tracknumber", "2/10")
	b := md("album", "X", "tracknumber", "1/10")
	if Chain(cmps, a, b) <= 0 {
		t.Fatalf("expected a to sort after b by tracknumber tiebreak")
	}
}

func TestInversionFlipsOrder(t *testing.T) {
	asc, _ := Parse("title")
	desc, _ := Parse("!title")
	a := md("title", "A")
	b := md("title", "B")
	if !asc.Less(a, b) {
		t.Fatalf("expected ascending A < B")
	}
	if desc.Less(a, b) {
		t.Fatalf("expected inverted order to reverse A < B")
	}
	if !desc.Less(b, a) {
		t.Fatalf("expected inverted order B < A")
	}
}
