package scheduler

import (
	"strings"
	"testing"
	"time"

	"github.com/mystral-js/mystral/internal/core"
)

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

func TestRunStopsAfterThreeIdleIterationsInNoWindowMode(t *testing.T) {
	rt := &recordingRuntime{}
	s := New(rt)

	done := make(chan struct{})
	go func() {
		s.Run()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run never returned in no-window mode with no pending work")
	}
}

func TestRunStopsImmediatelyOnRequestQuit(t *testing.T) {
	rt := &recordingRuntime{}
	s := New(rt)
	s.RequestQuit()

	done := make(chan struct{})
	go func() {
		s.Run()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run never returned after RequestQuit")
	}
}

func TestRegisterAndCancelRAF(t *testing.T) {
	rt := &recordingRuntime{}
	s := New(rt)

	id := s.RegisterRAF()
	if id == 0 {
		t.Fatal("RegisterRAF returned zero id")
	}
	s.CancelRAF(id)

	s.PollOnce()
	if len(rt.evaluated) != 0 {
		t.Errorf("cancelled RAF callback should not fire, got evals: %v", rt.evaluated)
	}
}

func TestPollOnceRunsArmedRAFCallback(t *testing.T) {
	rt := &recordingRuntime{}
	s := New(rt)

	s.RegisterRAF()
	s.PollOnce()

	found := false
	for _, ev := range rt.evaluated {
		if strings.Contains(ev, "__rafCallbacks") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a RAF invocation, got evals: %v", rt.evaluated)
	}
	if rt.microtaskRuns == 0 {
		t.Errorf("expected RunMicrotasks to be called during PollOnce")
	}
}

func TestPollOnceDrainsWorkerCompletions(t *testing.T) {
	rt := &recordingRuntime{}
	s := New(rt)

	s.Workers <- WorkerCompletion{CallbackID: "mesh-1", ApplyJS: "globalThis.__deliverMesh('mesh-1')"}
	s.PollOnce()

	found := false
	for _, ev := range rt.evaluated {
		if ev == "globalThis.__deliverMesh('mesh-1')" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected the worker completion's ApplyJS to be evaluated, got: %v", rt.evaluated)
	}
}

func TestPollOnceHonorsPendingReload(t *testing.T) {
	rt := &recordingRuntime{}
	s := New(rt)

	reloaded := false
	s.Reload = func() error {
		reloaded = true
		return nil
	}
	s.RegisterRAF()
	s.RequestReload()
	s.PollOnce()

	if !reloaded {
		t.Fatal("expected Reload to be invoked")
	}
	// dropAllRAFAndTimers clears any RAF armed before the reload.
	s.mu.Lock()
	pending := len(s.raf)
	s.mu.Unlock()
	if pending != 0 {
		t.Errorf("expected RAF queue cleared by reload, got %d pending", pending)
	}
}

func TestNowIsMonotonicallyIncreasing(t *testing.T) {
	rt := &recordingRuntime{}
	s := New(rt)

	first := s.Now()
	time.Sleep(time.Millisecond)
	second := s.Now()
	if second <= first {
		t.Errorf("Now() did not increase: %f then %f", first, second)
	}
}
