package watchio

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mystral-js/mystral/internal/core"
)

func waitForEvents(t *testing.T, w *Watcher) []Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var got []Event
		found := w.DrainCompletions(func(ev Event) { got = append(got, ev) })
		if found {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for a filesystem event")
	return nil
}

func TestWatchReportsModifiedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "game.js")
	if err := os.WriteFile(path, []byte("1"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	id, err := w.Watch(path)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if id == 0 {
		t.Fatal("Watch returned zero id")
	}

	if err := os.WriteFile(path, []byte("2"), 0o644); err != nil {
		t.Fatal(err)
	}

	events := waitForEvents(t, w)
	found := false
	for _, ev := range events {
		if ev.WatchID == id && ev.Kind == core.FsModified {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a Modified event for watch id %d, got %+v", id, events)
	}
}

func TestUnwatchStopsFurtherEvents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "game.js")
	if err := os.WriteFile(path, []byte("1"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	if _, err := w.Watch(path); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if err := w.Unwatch(path); err != nil {
		t.Fatalf("Unwatch: %v", err)
	}

	if err := os.WriteFile(path, []byte("2"), 0o644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)
	if w.DrainCompletions(func(Event) {}) {
		t.Errorf("expected no events after Unwatch")
	}
}

func TestDrainCompletionsReturnsFalseWhenEmpty(t *testing.T) {
	w, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	if w.DrainCompletions(func(Event) {}) {
		t.Errorf("DrainCompletions should return false with nothing queued")
	}
}
