// Package queue implements the ordered play list: stable queue-ids, a
// cursor, history, and an optional shuffle overlay. Grounded on the
// teacher's playlist.MasterPlaylist/Playlist (ordered entries, a cursor
// index, RWMutex-guarded mutation), generalized from "many time-tagged
// playlists" to "one ordered queue with shuffle."
package queue

import (
	"math/rand/v2"
	"sync"
)

// Entry is one queue position: a stable queue_id plus the library id it
// refers to.
type Entry struct {
	QueueID uint64
	DBID    uint32
}

// noCursor is the sentinel value for "cursor is none".
const noCursor = -1

// Queue is the per-connection-independent, player-actor-owned play list.
type Queue struct {
	mu     sync.Mutex
	rng    *rand.Rand
	nextID uint64

	entries []Entry
	cursor  int  // resume position into entries, or noCursor
	current bool // whether cursor names an entry that is actually "current"

	history    map[uint64]bool
	shuffleBag []uint64
	shuffling  bool
}

// New creates an empty Queue with its own private RNG (spec §9: the
// shuffle RNG must not be tied to the source thread, so each Queue seeds
// its own Send-safe generator rather than using a package-level global).
func New() *Queue {
	return &Queue{
		cursor:  noCursor,
		history: make(map[uint64]bool),
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Add appends (pos == nil) or inserts dbID at pos. If shuffle is active,
// the new queue_id is additionally inserted at a uniformly random position
// in the shuffle bag via swap-push (O(1)).
func (q *Queue) Add(dbID uint32, pos *int) uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.nextID++
	id := q.nextID
	e := Entry{QueueID: id, DBID: dbID}

	if pos == nil || *pos >= len(q.entries) {
		q.entries = append(q.entries, e)
	} else {
		i := *pos
		if i < 0 {
			i = 0
		}
		q.entries = append(q.entries, Entry{})
		copy(q.entries[i+1:], q.entries[i:])
		q.entries[i] = e
	}

	if q.shuffling {
		q.shuffleBag = append(q.shuffleBag, id)
		j := q.rng.IntN(len(q.shuffleBag))
		q.shuffleBag[len(q.shuffleBag)-1], q.shuffleBag[j] = q.shuffleBag[j], q.shuffleBag[len(q.shuffleBag)-1]
	}

	return id
}

// indexOf returns the slice index of the entry with the given queue_id, or
// -1. Caller must hold q.mu.
func (q *Queue) indexOf(queueID uint64) int {
	for i, e := range q.entries {
		if e.QueueID == queueID {
			return i
		}
	}
	return -1
}

// Remove deletes the entry with queueID. It returns whether an entry was
// actually removed, and whether it was the current entry.
//
// Removing the current entry reports wasCurrent=true and Current() stops
// reporting an entry (spec §8 S4: "cursor becomes none"), but internally the
// resume position is left at i-1 rather than hard-reset, so that the next
// move_next continues into whichever entry slid into the vacated slot
// instead of restarting the queue from the first entry (spec §8 S4's worked
// example: removing the playing 2nd-of-3 entry and calling move_next lands
// on the 3rd entry, not the 1st). Per spec §9's preserved quirk, if the
// removed entry was strictly before the cursor and wasn't itself current,
// the cursor is silently decremented.
func (q *Queue) Remove(queueID uint64) (removed bool, wasCurrent bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexOf(queueID)
	if i < 0 {
		return false, false
	}

	wasCurrent = q.current && q.cursor == i
	q.entries = append(q.entries[:i], q.entries[i+1:]...)

	if wasCurrent {
		q.current = false
		q.cursor = i - 1
	} else if i < q.cursor {
		q.cursor--
	}

	q.removeFromBagUnsafe(queueID)
	return true, wasCurrent
}

func (q *Queue) removeFromBagUnsafe(queueID uint64) {
	if !q.shuffling {
		return
	}
	for i, id := range q.shuffleBag {
		if id == queueID {
			q.shuffleBag = append(q.shuffleBag[:i], q.shuffleBag[i+1:]...)
			return
		}
	}
}

// Clear removes every entry and resets the cursor and history.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = nil
	q.cursor = noCursor
	q.current = false
	q.history = make(map[uint64]bool)
	q.shuffleBag = nil
}

// Current returns the entry at the cursor, if any.
func (q *Queue) Current() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.currentUnsafe()
}

// MoveNext advances the cursor. In non-shuffle mode this wraps past the
// end to "none"; "none" advances to the first entry. In shuffle mode the
// next entry is popped from the shuffle bag (refilling from entries not
// yet visited when the bag is empty has no refill — once exhausted,
// MoveNext returns false, same as "none" in non-shuffle mode with an
// empty queue).
func (q *Queue) MoveNext() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if cur, ok := q.currentUnsafe(); ok {
		q.history[cur.QueueID] = true
	}

	if q.shuffling {
		return q.moveNextShuffleUnsafe()
	}

	if len(q.entries) == 0 {
		q.cursor = noCursor
		q.current = false
		return Entry{}, false
	}

	if q.cursor == noCursor {
		q.cursor = 0
	} else {
		q.cursor++
		if q.cursor >= len(q.entries) {
			q.cursor = noCursor
			q.current = false
			return Entry{}, false
		}
	}
	q.current = true
	return q.entries[q.cursor], true
}

func (q *Queue) moveNextShuffleUnsafe() (Entry, bool) {
	if len(q.shuffleBag) == 0 {
		q.current = false
		return Entry{}, false
	}
	id := q.shuffleBag[len(q.shuffleBag)-1]
	q.shuffleBag = q.shuffleBag[:len(q.shuffleBag)-1]
	i := q.indexOf(id)
	if i < 0 {
		// stale id (entry removed); try the next one
		return q.moveNextShuffleUnsafe()
	}
	q.cursor = i
	q.current = true
	return q.entries[i], true
}

// MovePrev reverses the cursor in non-shuffle mode; in shuffle mode it is
// ignored for reordering purposes but still records history the same way
// MoveNext does.
func (q *Queue) MovePrev() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if cur, ok := q.currentUnsafe(); ok {
		q.history[cur.QueueID] = true
	}

	if q.shuffling {
		return q.currentUnsafe()
	}

	if len(q.entries) == 0 {
		q.cursor = noCursor
		q.current = false
		return Entry{}, false
	}

	if q.cursor == noCursor {
		q.cursor = len(q.entries) - 1
	} else {
		q.cursor--
		if q.cursor < 0 {
			q.cursor = noCursor
			q.current = false
			return Entry{}, false
		}
	}
	q.current = true
	return q.entries[q.cursor], true
}

func (q *Queue) currentUnsafe() (Entry, bool) {
	if !q.current || q.cursor < 0 || q.cursor >= len(q.entries) {
		return Entry{}, false
	}
	return q.entries[q.cursor], true
}

// MoveTo jumps the cursor directly to queueID. In shuffle mode the target
// is removed from the bag so it won't be re-visited.
func (q *Queue) MoveTo(queueID uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexOf(queueID)
	if i < 0 {
		return false
	}
	if cur, ok := q.currentUnsafe(); ok {
		q.history[cur.QueueID] = true
	}
	q.cursor = i
	q.current = true
	q.removeFromBagUnsafe(queueID)
	return true
}

// ToggleShuffle flips shuffle mode. Entering shuffle builds the bag from
// every entry not in history and not currently playing, uniformly
// shuffled. Leaving shuffle discards the bag and leaves the cursor on the
// current entry.
func (q *Queue) ToggleShuffle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.shuffling {
		q.shuffling = false
		q.shuffleBag = nil
		return false
	}

	cur, hasCur := q.currentUnsafe()
	bag := make([]uint64, 0, len(q.entries))
	for _, e := range q.entries {
		if hasCur && e.QueueID == cur.QueueID {
			continue
		}
		if q.history[e.QueueID] {
			continue
		}
		bag = append(bag, e.QueueID)
	}
	q.rng.Shuffle(len(bag), func(i, j int) { bag[i], bag[j] = bag[j], bag[i] })

	q.shuffling = true
	q.shuffleBag = bag
	return true
}

// Shuffling reports whether shuffle mode is active.
func (q *Queue) Shuffling() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.shuffling
}

// Entries returns a snapshot of the queue's entries in order.
func (q *Queue) Entries() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Entry, len(q.entries))
	copy(out, q.entries)
	return out
}

// Len returns the number of entries currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Snapshot is the gob-encodable state internal/snapshot persists across
// restarts (spec.md §6: queue state survives a restart).
type Snapshot struct {
	NextID     uint64
	Entries    []Entry
	Cursor     int
	Current    bool
	History    map[uint64]bool
	ShuffleBag []uint64
	Shuffling  bool
}

// Snapshot captures the queue's full state for persistence.
func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	history := make(map[uint64]bool, len(q.history))
	for k, v := range q.history {
		history[k] = v
	}
	return Snapshot{
		NextID:     q.nextID,
		Entries:    append([]Entry(nil), q.entries...),
		Cursor:     q.cursor,
		Current:    q.current,
		History:    history,
		ShuffleBag: append([]uint64(nil), q.shuffleBag...),
		Shuffling:  q.shuffling,
	}
}

// Restore replaces the queue's state with a previously captured Snapshot.
// The RNG is left untouched; shuffle selection after a restart re-seeds
// fresh rather than trying to replay prior randomness.
func (q *Queue) Restore(s Snapshot) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID = s.NextID
	q.entries = append([]Entry(nil), s.Entries...)
	q.cursor = s.Cursor
	q.current = s.Current
	q.history = make(map[uint64]bool, len(s.History))
	for k, v := range s.History {
		q.history[k] = v
	}
	q.shuffleBag = append([]uint64(nil), s.ShuffleBag...)
	q.shuffling = s.Shuffling
}
