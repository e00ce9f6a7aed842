// Package snapshot persists the queue and volume/speed/gapless state
// across restarts (spec.md §6). The teacher persists its playlists as
// JSON (internal/playlist/store.go); musingd deviates to encoding/gob
// because spec.md §6 declares the on-disk snapshot format opaque and
// implementer's choice, and gob needs no struct tags for the plain
// value types involved.
//
// The atomic write pattern (temp file in the same directory, then
// rename) is grounded on playlist.Store.Save.
package snapshot

import (
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/yumeno-dev/musingd/internal/audio/facade"
	"github.com/yumeno-dev/musingd/internal/queue"
)

// State is the full persisted snapshot.
type State struct {
	Queue  queue.Snapshot
	Facade facade.Snapshot
}

// Store handles loading and saving State to a single file on disk.
type Store struct {
	path string
}

// NewStore returns a Store bound to path, creating its parent directory
// if necessary.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory %q: %w", dir, err)
	}
	return &Store{path: path}, nil
}

// Exists reports whether a snapshot file is already present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load decodes the persisted State from disk.
func (s *Store) Load() (State, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return State{}, err
	}
	defer f.Close()

	var st State
	if err := gob.NewDecoder(f).Decode(&st); err != nil {
		return State{}, fmt.Errorf("decode snapshot %q: %w", s.path, err)
	}
	return st, nil
}

// Save gob-encodes st and atomically replaces the snapshot file: write to
// a temp file in the same directory, then rename.
func (s *Store) Save(st State) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "snapshot-*.gob.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot file: %w", err)
	}
	tmpName := tmp.Name()

	if err := gob.NewEncoder(tmp).Encode(st); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp snapshot file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp snapshot file to %q: %w", s.path, err)
	}

	slog.Info("snapshot saved", "path", s.path)
	return nil
}
