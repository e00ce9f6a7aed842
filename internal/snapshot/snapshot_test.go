package snapshot

import (
	"path/filepath"
	"testing"

	"github.com/yumeno-dev/musingd/internal/audio/facade"
	"github.com/yumeno-dev/musingd/internal/queue"
)

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "musingd.snapshot")
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if store.Exists() {
		t.Fatal("fresh store should not report an existing file")
	}

	q := queue.New()
	q.Add(7, nil)
	q.Add(9, nil)
	f := facade.New()
	f.SetVolume(33)
	f.SetSpeed(120)

	want := State{Queue: q.Snapshot(), Facade: f.Snapshot()}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !store.Exists() {
		t.Fatal("store should report the file exists after Save")
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(got.Queue.Entries) != 2 {
		t.Fatalf("restored queue entries = %v, want 2", got.Queue.Entries)
	}
	if got.Facade.Volume != 33 || got.Facade.Speed != 120 {
		t.Fatalf("restored facade snapshot = %+v", got.Facade)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "nope.snapshot"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := store.Load(); err == nil {
		t.Fatal("Load of a nonexistent file should error")
	}
}
