package queue

import "testing"

func TestQueueIDsAreUniqueAndMonotonic(t *testing.T) {
	q := New()
	seen := make(map[uint64]bool)
	var prev uint64
	for i := 0; i < 50; i++ {
		id := q.Add(uint32(i), nil)
		if seen[id] {
			t.Fatalf("duplicate queue_id %d", id)
		}
		seen[id] = true
		if id <= prev {
			t.Fatalf("queue_id %d did not increase from %d", id, prev)
		}
		prev = id
	}
}

func TestToggleShuffleTwiceLeavesCurrentUnchanged(t *testing.T) {
	q := New()
	q.Add(10, nil)
	q.Add(20, nil)
	q.Add(30, nil)
	q.MoveNext()
	q.MoveNext() // current is now {DBID: 20}

	before, ok := q.Current()
	if !ok {
		t.Fatalf("expected a current entry before toggling shuffle")
	}

	q.ToggleShuffle()
	q.ToggleShuffle()

	after, ok := q.Current()
	if !ok || after != before {
		t.Fatalf("toggling shuffle twice moved current: before=%+v after=%+v ok=%v", before, after, ok)
	}
}

// TestScenarioS4 is spec §8 S4 verbatim: add 10; add 20; add 30; move_next;
// move_next; remove(queue_id_of_20) -> cursor none, was_current=true;
// move_next -> entry with db_id 30.
func TestScenarioS4(t *testing.T) {
	q := New()
	q.Add(10, nil)
	id20 := q.Add(20, nil)
	q.Add(30, nil)

	q.MoveNext()
	q.MoveNext()

	cur, ok := q.Current()
	if !ok || cur.DBID != 20 {
		t.Fatalf("expected current db_id 20 before remove, got %+v ok=%v", cur, ok)
	}

	removed, wasCurrent := q.Remove(id20)
	if !removed || !wasCurrent {
		t.Fatalf("expected removed=true wasCurrent=true, got removed=%v wasCurrent=%v", removed, wasCurrent)
	}
	if _, ok := q.Current(); ok {
		t.Fatalf("expected no current entry immediately after removing the playing entry")
	}

	next, ok := q.MoveNext()
	if !ok || next.DBID != 30 {
		t.Fatalf("expected move_next to land on db_id 30, got %+v ok=%v", next, ok)
	}
}

// TestAddAndRemoveOrdering mirrors the original source's add_and_remove
// unit test: insertion at an explicit position and removal by queue_id.
func TestAddAndRemoveOrdering(t *testing.T) {
	q := New()
	a := q.Add(1, nil)
	b := q.Add(2, nil)
	pos := 1
	c := q.Add(3, &pos) // inserted between a and b

	got := q.Entries()
	want := []Entry{{QueueID: a, DBID: 1}, {QueueID: c, DBID: 3}, {QueueID: b, DBID: 2}}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %+v want %+v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("mismatch at %d: got %+v want %+v", i, got, want)
		}
	}

	removed, wasCurrent := q.Remove(c)
	if !removed || wasCurrent {
		t.Fatalf("expected removed=true wasCurrent=false, got removed=%v wasCurrent=%v", removed, wasCurrent)
	}
	if q.Len() != 2 {
		t.Fatalf("expected 2 entries remaining, got %d", q.Len())
	}

	if removed, _ := q.Remove(999); removed {
		t.Fatalf("removing an unknown queue_id should report removed=false")
	}
}

// TestTraversingWrapsToNoneThenRestartsFromEnd mirrors the original source's
// traversing unit test: move_next past the last entry lands on "none", and
// move_prev from "none" restarts from the last entry.
func TestTraversingWrapsToNoneThenRestartsFromEnd(t *testing.T) {
	q := New()
	var ids []uint64
	for i := 1; i <= 5; i++ {
		ids = append(ids, q.Add(uint32(i*10), nil))
	}

	for i := 0; i < 5; i++ {
		entry, ok := q.MoveNext()
		if !ok || entry.QueueID != ids[i] {
			t.Fatalf("move_next %d: got %+v ok=%v, want queue_id %d", i, entry, ok, ids[i])
		}
	}

	if _, ok := q.MoveNext(); ok {
		t.Fatalf("move_next past the last entry should report none")
	}
	if _, ok := q.Current(); ok {
		t.Fatalf("current should be none after wrapping past the end")
	}

	entry, ok := q.MovePrev()
	if !ok || entry.QueueID != ids[len(ids)-1] {
		t.Fatalf("move_prev from none should restart at the last entry, got %+v ok=%v", entry, ok)
	}
}

// TestShuffleDoesNotMoveCurrentAndVisitsEachEntryOnce mirrors the original
// source's random unit test: toggling shuffle never moves the currently
// playing entry, and every subsequent move_next yields a previously-unseen
// entry until the bag is exhausted.
func TestShuffleDoesNotMoveCurrentAndVisitsEachEntryOnce(t *testing.T) {
	q := New()
	var ids []uint64
	for i := 1; i <= 6; i++ {
		ids = append(ids, q.Add(uint32(i*10), nil))
	}
	q.MoveNext()
	q.MoveNext() // current is now the 2nd entry

	before, _ := q.Current()

	q.ToggleShuffle()

	after, ok := q.Current()
	if !ok || after != before {
		t.Fatalf("toggle_shuffle moved the current entry: before=%+v after=%+v", before, after)
	}

	// The 1st entry was played before shuffle was turned on: it is in
	// history, so it is not in the bag and already counts as visited.
	seen := map[uint64]bool{ids[0]: true, before.QueueID: true}
	for {
		entry, ok := q.MoveNext()
		if !ok {
			break
		}
		if seen[entry.QueueID] {
			t.Fatalf("shuffle revisited queue_id %d", entry.QueueID)
		}
		seen[entry.QueueID] = true
	}
	if len(seen) != len(ids) {
		t.Fatalf("expected to visit all %d entries exactly once, visited %d", len(ids), len(seen))
	}
}

func TestMoveToRemovesTargetFromShuffleBag(t *testing.T) {
	q := New()
	q.Add(10, nil)
	id20 := q.Add(20, nil)
	q.Add(30, nil)

	q.ToggleShuffle()
	if !q.MoveTo(id20) {
		t.Fatalf("expected MoveTo to find queue_id %d", id20)
	}
	cur, ok := q.Current()
	if !ok || cur.DBID != 20 {
		t.Fatalf("expected current db_id 20 after MoveTo, got %+v ok=%v", cur, ok)
	}

	// the jumped-to entry must not be revisited by shuffle's move_next.
	for {
		entry, ok := q.MoveNext()
		if !ok {
			break
		}
		if entry.DBID == 20 {
			t.Fatalf("shuffle revisited the entry that MoveTo jumped to")
		}
	}
}
