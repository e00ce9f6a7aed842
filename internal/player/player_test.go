package player

import (
	"context"
	"testing"
	"time"

	"github.com/yumeno-dev/musingd/internal/audio/facade"
	"github.com/yumeno-dev/musingd/internal/library"
	"github.com/yumeno-dev/musingd/internal/queue"
)

func newTestActor(t *testing.T) *Actor {
	t.Helper()
	lib := library.New(t.TempDir(), library.DefaultExtensions)
	if err := lib.Build(context.Background(), time.Unix(0, 0)); err != nil {
		t.Fatalf("Build: %v", err)
	}
	return New(lib, queue.New(), facade.New())
}

func TestDispatchEmptyCommandIsSyntaxError(t *testing.T) {
	a := newTestActor(t)
	r := a.dispatch(context.Background(), nil)
	if r.Status != "ERR" {
		t.Fatalf("expected ERR for empty command, got %+v", r)
	}
}

func TestDispatchUnknownCommandIsSyntaxError(t *testing.T) {
	a := newTestActor(t)
	r := a.dispatch(context.Background(), []string{"frobnicate"})
	if r.Status != "ERR" {
		t.Fatalf("expected ERR for unknown command, got %+v", r)
	}
}

func TestVolumeSetAndChange(t *testing.T) {
	a := newTestActor(t)

	r := a.dispatch(context.Background(), []string{"volume", "set", "100"})
	if r.Status != "OK" || r.Items["volume"] != 100 {
		t.Fatalf("volume set 100: %+v", r)
	}

	r = a.dispatch(context.Background(), []string{"volume", "change", "50"})
	if r.Status != "OK" || r.Items["volume"] != 100 {
		t.Fatalf("volume change +50 over ceiling should saturate at 100: %+v", r)
	}
}

func TestSpeedRejectsGarbage(t *testing.T) {
	a := newTestActor(t)
	r := a.dispatch(context.Background(), []string{"speed", "not-a-number"})
	if r.Status != "ERR" {
		t.Fatalf("expected ERR for non-numeric speed, got %+v", r)
	}
}

func TestGaplessToggles(t *testing.T) {
	a := newTestActor(t)
	r1 := a.dispatch(context.Background(), []string{"gapless"})
	r2 := a.dispatch(context.Background(), []string{"gapless"})
	if r1.Items["gapless"] == r2.Items["gapless"] {
		t.Fatalf("gapless should flip each call: %+v then %+v", r1, r2)
	}
}

func TestAddRejectsUnknownDBID(t *testing.T) {
	a := newTestActor(t)
	r := a.dispatch(context.Background(), []string{"add", "1"})
	if r.Status != "ERR" {
		t.Fatalf("expected ERR adding a nonexistent db_id, got %+v", r)
	}
}

func TestQueueStartsEmpty(t *testing.T) {
	a := newTestActor(t)
	r := a.dispatch(context.Background(), []string{"queue"})
	if r.Status != "OK" {
		t.Fatalf("queue: %+v", r)
	}
	entries, _ := r.Items["entries"].([]map[string]any)
	if len(entries) != 0 {
		t.Fatalf("expected empty queue, got %v", entries)
	}
}

func TestRandomTogglesShuffle(t *testing.T) {
	a := newTestActor(t)
	r1 := a.dispatch(context.Background(), []string{"random"})
	r2 := a.dispatch(context.Background(), []string{"random"})
	if r1.Items["shuffling"] == r2.Items["shuffling"] {
		t.Fatalf("random should flip shuffle each call: %+v then %+v", r1, r2)
	}
}

func TestSelectOnEmptyLibraryReturnsNoIDs(t *testing.T) {
	a := newTestActor(t)
	r := a.dispatch(context.Background(), []string{"select"})
	if r.Status != "OK" {
		t.Fatalf("select: %+v", r)
	}
	ids, _ := r.Items["ids"].([]uint32)
	if len(ids) != 0 {
		t.Fatalf("expected no ids from an empty library, got %v", ids)
	}
}

func TestSelectRejectsBadSyntax(t *testing.T) {
	a := newTestActor(t)
	r := a.dispatch(context.Background(), []string{"select", "nonexistenttag==x"})
	if r.Status != "ERR" {
		t.Fatalf("expected ERR for a filter referencing an unknown tag, got %+v", r)
	}
}

func TestPlayWithEmptyQueueIsPlaybackError(t *testing.T) {
	a := newTestActor(t)
	r := a.dispatch(context.Background(), []string{"play"})
	if r.Status != "ERR" {
		t.Fatalf("expected ERR playing an empty queue, got %+v", r)
	}
}

func TestEnableUnknownDeviceErrors(t *testing.T) {
	a := newTestActor(t)
	r := a.dispatch(context.Background(), []string{"enable", "nonexistent"})
	if r.Status != "ERR" {
		t.Fatalf("expected ERR enabling an unregistered device, got %+v", r)
	}
}
