package fileio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mystral-js/mystral/internal/core"
)

// recordingRuntime is a minimal core.JSRuntime that only records the
// scripts DrainCompletions evaluates, so tests can assert on the
// resolve/reject bridge calls without a real engine.
type recordingRuntime struct {
	evaluated     []string
	microtaskRuns int
}

func (r *recordingRuntime) Eval(js string) error                   { r.evaluated = append(r.evaluated, js); return nil }
func (r *recordingRuntime) EvalNamed(js, filename string) error    { return r.Eval(js) }
func (r *recordingRuntime) EvalString(js string) (string, error)   { return "", r.Eval(js) }
func (r *recordingRuntime) EvalBool(js string) (bool, error)       { return false, r.Eval(js) }
func (r *recordingRuntime) RegisterFunc(name string, fn any) error { return nil }
func (r *recordingRuntime) SetGlobal(name string, value any) error { return nil }
func (r *recordingRuntime) RunMicrotasks()                         { r.microtaskRuns++ }
func (r *recordingRuntime) Protect(name string) core.Protected {
	return core.NewProtected(name, func(string) {})
}
func (r *recordingRuntime) Close() {}

var _ core.JSRuntime = (*recordingRuntime)(nil)

func waitForPending(t *testing.T, reader *Reader) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if reader.HasPending() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for read to complete")
}

func TestReadFileResolvesWithBase64Payload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	reader := New()
	reader.ReadFile("cb-1", path)
	waitForPending(t, reader)

	rt := &recordingRuntime{}
	if !reader.DrainCompletions(rt) {
		t.Fatal("DrainCompletions returned false, expected a completion")
	}
	if len(rt.evaluated) != 1 {
		t.Fatalf("evaluated %d scripts, want 1", len(rt.evaluated))
	}
	if got := rt.evaluated[0]; !strings.Contains(got, "__fileReadResolve") || !strings.Contains(got, "cb-1") {
		t.Errorf("unexpected script: %q", got)
	}
	if rt.microtaskRuns != 1 {
		t.Errorf("microtaskRuns = %d, want 1", rt.microtaskRuns)
	}
}

func TestReadFileRejectsOnMissingPath(t *testing.T) {
	reader := New()
	reader.ReadFile("cb-2", filepath.Join(t.TempDir(), "does-not-exist"))
	waitForPending(t, reader)

	rt := &recordingRuntime{}
	reader.DrainCompletions(rt)
	if len(rt.evaluated) != 1 || !strings.Contains(rt.evaluated[0], "__fileReadReject") {
		t.Errorf("expected a __fileReadReject call, got %v", rt.evaluated)
	}
}

func TestDrainCompletionsReturnsFalseWhenEmpty(t *testing.T) {
	reader := New()
	rt := &recordingRuntime{}
	if reader.DrainCompletions(rt) {
		t.Errorf("DrainCompletions should return false with nothing queued")
	}
}
