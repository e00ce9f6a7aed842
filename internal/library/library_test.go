package library

import (
	"testing"

	"github.com/yumeno-dev/musingd/internal/comparator"
	"github.com/yumeno-dev/musingd/internal/filter"
	"github.com/yumeno-dev/musingd/internal/song"
	"github.com/yumeno-dev/musingd/internal/tag"
)

func withMeta(path string, pairs ...string) *song.Song {
	m := make(tag.Metadata)
	for i := 0; i+1 < len(pairs); i += 2 {
		k, err := tag.Lookup(pairs[i])
		if err != nil {
			panic(err)
		}
		m[k] = pairs[i+1]
	}
	return &song.Song{Path: path, Metadata: m}
}

// S2 from spec §8: given 3 songs titled A, B, C with ids 1,2,3, select
// sorted by title (and inverted) reorders deterministically.
func TestSelectSortsByTitle(t *testing.T) {
	idx := &Index{
		rows: []Row{
			{ID: 1, Song: withMeta("a.mp3", "title", "A")},
			{ID: 2, Song: withMeta("b.mp3", "title", "B")},
			{ID: 3, Song: withMeta("c.mp3", "title", "C")},
		},
		nextID: 4,
	}

	asc, _ := comparator.ParseAll("title")
	got := idx.Select(filter.Always(), asc)
	want := []uint32{1, 2, 3}
	assertIDs(t, got, want)

	desc, _ := comparator.ParseAll("!title")
	got = idx.Select(filter.Always(), desc)
	want = []uint32{3, 2, 1}
	assertIDs(t, got, want)
}

func TestSelectIsPermutationOfMatches(t *testing.T) {
	idx := &Index{
		rows: []Row{
			{ID: 1, Song: withMeta("a.mp3", "genre", "rock")},
			{ID: 2, Song: withMeta("b.mp3", "genre", "jazz")},
			{ID: 3, Song: withMeta("c.mp3", "genre", "rock")},
		},
		nextID: 4,
	}
	expr, err := filter.Compile(`genre=="rock"`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	got := idx.Select(expr, nil)
	assertIDs(t, got, []uint32{1, 3})
}

func TestTombstonedRowsExcludedFromSelect(t *testing.T) {
	idx := &Index{
		rows: []Row{
			{ID: 1, Song: withMeta("a.mp3", "title", "A")},
			{ID: 2, Song: withMeta("b.mp3", "title", "B"), Tombstoned: true},
		},
		nextID: 3,
	}
	got := idx.Select(filter.Always(), nil)
	assertIDs(t, got, []uint32{1})
}

func TestLookupBinarySearch(t *testing.T) {
	idx := &Index{
		rows: []Row{
			{ID: 1, Song: withMeta("a.mp3")},
			{ID: 5, Song: withMeta("b.mp3")},
			{ID: 9, Song: withMeta("c.mp3")},
		},
		nextID: 10,
	}
	if s, ok := idx.Lookup(5); !ok || s.Path != "b.mp3" {
		t.Fatalf("expected to find id 5")
	}
	if _, ok := idx.Lookup(3); ok {
		t.Fatalf("expected id 3 to be missing")
	}
}

func TestUniqueGroupsAndCollectsDistinctValues(t *testing.T) {
	idx := &Index{
		rows: []Row{
			{ID: 1, Song: withMeta("a.mp3", "album", "X", "artist", "A1")},
			{ID: 2, Song: withMeta("b.mp3", "album", "X", "artist", "A2")},
			{ID: 3, Song: withMeta("c.mp3", "album", "Y")}, // missing artist
		},
		nextID: 4,
	}
	rows := idx.Unique(tag.Artist, []tag.Key{tag.Album}, filter.Always())
	if len(rows) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(rows))
	}
	for _, r := range rows {
		if r.Group[tag.Album] == "X" {
			if len(r.Values) != 2 {
				t.Fatalf("expected 2 distinct artists for album X, got %d", len(r.Values))
			}
		}
		if r.Group[tag.Album] == "Y" {
			if len(r.Values) != 1 || r.Values[0] != nil {
				t.Fatalf("expected a single nil artist value for album Y")
			}
		}
	}
}

func assertIDs(t *testing.T, got, want []uint32) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %v want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("mismatch at %d: got %v want %v", i, got, want)
		}
	}
}
