// Package comparator implements sort keys derived from a tag: a total
// preorder over metadata where a missing tag sorts below any present tag.
package comparator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yumeno-dev/musingd/internal/tag"
)

// Comparator is a single sort key: a tag, optionally inverted.
type Comparator struct {
	Tag      tag.Key
	Inverted bool
}

// Parse reads a comparator spec like "title" or "!title" (leading '!'
// inverts the order).
func Parse(s string) (Comparator, error) {
	inverted := false
	if strings.HasPrefix(s, "!") {
		inverted = true
		s = s[1:]
	}
	k, err := tag.Lookup(s)
	if err != nil {
		return Comparator{}, fmt.Errorf("invalid comparator: %w", err)
	}
	return Comparator{Tag: k, Inverted: inverted}, nil
}

// ParseAll parses a comma-separated list of comparator specs, e.g.
// "artist,!year".
func ParseAll(s string) ([]Comparator, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]Comparator, 0, len(parts))
	for _, p := range parts {
		c, err := Parse(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// compare returns -1, 0, or 1 comparing a against b by kind, with a missing
// tag sorting below a present one. It ignores inversion; Less applies that.
func compare(k tag.Key, a, b tag.Metadata) int {
	av, aok := a.Get(k)
	bv, bok := b.Get(k)

	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return -1
	case !bok:
		return 1
	}

	switch k.Kind {
	case tag.Integer:
		return compareInt(av, bv)
	case tag.OutOf:
		return compareInt(numerator(av), numerator(bv))
	default:
		return strings.Compare(av, bv)
	}
}

func numerator(s string) string {
	if i := strings.IndexByte(s, '/'); i >= 0 {
		return s[:i]
	}
	return s
}

// compareInt parses both sides as signed 32-bit integers; on parse failure
// of either side, the values compare equal.
func compareInt(a, b string) int {
	ai, aerr := strconv.ParseInt(a, 10, 32)
	bi, berr := strconv.ParseInt(b, 10, 32)
	if aerr != nil || berr != nil {
		return 0
	}
	switch {
	case ai < bi:
		return -1
	case ai > bi:
		return 1
	default:
		return 0
	}
}

// Less reports whether a sorts before b under this comparator.
func (c Comparator) Less(a, b tag.Metadata) bool {
	cmp := compare(c.Tag, a, b)
	if c.Inverted {
		cmp = -cmp
	}
	return cmp < 0
}

// Chain compares a against b across multiple comparators, left-to-right
// precedence: the first comparator that distinguishes a from b decides the
// order; later comparators break ties.
func Chain(cmps []Comparator, a, b tag.Metadata) int {
	for _, c := range cmps {
		cmp := compare(c.Tag, a, b)
		if c.Inverted {
			cmp = -cmp
		}
		if cmp != 0 {
			return cmp
		}
	}
	return 0
}
