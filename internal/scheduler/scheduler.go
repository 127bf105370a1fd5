// Package scheduler implements the per-frame cooperative loop of
// spec.md §4.5 — the heart of the runtime. It is the Go-native
// generalization of the teacher's internal/eventloop.EventLoop: the
// teacher only drained timers and HTTP fetch completions for one
// request's lifetime; this Scheduler drains every completion source
// named in spec.md §2 (window input, HTTP, file, fs-watch, timers,
// domain-specific worker results) in the fixed order §4.5 specifies,
// then runs microtasks and the RAF batch, for the lifetime of one
// long-running process.
package scheduler

import (
	"sync"
	"time"

	"github.com/mystral-js/mystral/internal/core"
	"github.com/mystral-js/mystral/internal/domevents"
	"github.com/mystral-js/mystral/internal/fileio"
	"github.com/mystral-js/mystral/internal/httpio"
	"github.com/mystral-js/mystral/internal/watchio"
)

// WorkerCompletion is one domain-specific worker-thread result (spec.md §3
// PendingCompletion's WorkerComputed variant), e.g. a decoded mesh. ApplyJS
// carries the already-serialized result and is evaluated on the engine
// thread to hand it to the protected callback.
type WorkerCompletion struct {
	CallbackID string
	ApplyJS    string
}

// ReloadFunc, set as Scheduler.Reload, is invoked by poll_once step 6 instead of
// the default reload behavior, so callers (the CLI's --watch flag) can
// supply their own "clear caches and re-run the entry module" logic
// without the scheduler importing internal/loader directly.
type ReloadFunc func() error

// Scheduler drives poll_once in the fixed order of spec.md §4.5. All of
// its collaborators are engine-thread-only except the completion queues
// inside httpio.Client/fileio.Reader/watchio.Watcher/TimerService, which
// are the sole cross-thread-safe structures (spec.md §5).
type Scheduler struct {
	RT      core.JSRuntime
	Window  core.WindowSource // nil in no-window mode
	HTTP    *httpio.Client
	Files   *fileio.Reader
	Watch   *watchio.Watcher // nil if --watch is off
	Events  *domevents.Dispatcher
	Timers  *TimerService
	Workers chan WorkerCompletion // domain worker-thread completions, e.g. mesh decode

	Reload       ReloadFunc
	reloadWanted bool

	mu        sync.Mutex
	raf       []rafEntry // callbacks armed for the next runRAFBatch
	nextRAFID uint32

	quit       bool
	idleFrames int
	epoch      time.Time
}

// rafEntry is scheduling metadata only; the callback itself lives in
// globalThis.__rafCallbacks[id] on the JS side, the same "Go owns ids and
// deadlines, JS owns the function" split timers use, which is also what
// keeps the callback reachable for GC without a separate protect step.
type rafEntry struct {
	id uint32
}

// New constructs a Scheduler. Window, Watch, and Workers may be nil/empty
// depending on RuntimeConfig (no-window mode, --watch off).
func New(rt core.JSRuntime) *Scheduler {
	return &Scheduler{
		RT:      rt,
		HTTP:    httpio.New(),
		Files:   fileio.New(),
		Events:  domevents.New(rt),
		Timers:  NewTimerService(),
		Workers: make(chan WorkerCompletion, 64),
		epoch:   time.Now(),
	}
}

// RequestQuit is called by the `quit()` native binding the Web API Shim
// Host installs for scripts that want to exit run()'s loop.
func (s *Scheduler) RequestQuit() { s.mu.Lock(); s.quit = true; s.mu.Unlock() }

// RequestReload marks a hot reload for the next poll_once iteration
// (the CLI's --watch entry-script-change handler calls this).
func (s *Scheduler) RequestReload() { s.mu.Lock(); s.reloadWanted = true; s.mu.Unlock() }

// RegisterRAF arms a requestAnimationFrame callback id for the next frame.
func (s *Scheduler) RegisterRAF() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRAFID++
	id := s.nextRAFID
	s.raf = append(s.raf, rafEntry{id: id})
	return id
}

// CancelRAF removes a pending RAF id, if still armed. Deleting its entry
// from globalThis.__rafCallbacks is the JS-side half of cancelAnimationFrame.
func (s *Scheduler) CancelRAF(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.raf {
		if e.id == id {
			s.raf = append(s.raf[:i], s.raf[i+1:]...)
			return
		}
	}
}

// Run repeatedly calls PollOnce until the script requests quit, or — in
// no-window mode — three consecutive iterations find no work (spec.md
// §4.5's run() contract).
func (s *Scheduler) Run() {
	for {
		s.PollOnce()
		s.mu.Lock()
		quit := s.quit
		s.mu.Unlock()
		if quit {
			return
		}
		if s.Window == nil {
			if s.hasNoWork() {
				s.idleFrames++
				if s.idleFrames >= 3 {
					return
				}
			} else {
				s.idleFrames = 0
			}
		}
	}
}

func (s *Scheduler) hasNoWork() bool {
	s.mu.Lock()
	pendingRAF := len(s.raf)
	s.mu.Unlock()
	return !s.HTTP.HasPending() && !s.Files.HasPending() && !s.Timers.HasPending() &&
		pendingRAF == 0 && len(s.Workers) == 0
}

// PollOnce performs one iteration of the fixed step order from spec.md
// §4.5. Every step is non-blocking; none may wait on I/O synchronously.
func (s *Scheduler) PollOnce() {
	// Step 1: poll the window/input source (skipped in no-window mode).
	if s.Window != nil {
		for _, ev := range s.Window.PollEvents() {
			_ = s.Events.Dispatch(ev)
		}
		if s.Window.ShouldQuit() {
			s.RequestQuit()
		}
	}

	// Step 2: one non-blocking reactor tick — here, the timer deadline
	// check. HTTP/file/watch I/O run on their own goroutines and only
	// need their completion queues drained below.
	s.Timers.Tick()

	// Step 3: drain HTTP completions.
	s.HTTP.DrainCompletions(func(callbackID string, resp core.HTTPResponse) {
		s.deliverHTTP(callbackID, resp)
	})

	// Step 4: drain file-read completions.
	s.Files.DrainCompletions(s.RT)

	// Step 5: drain filesystem-event completions.
	if s.Watch != nil {
		s.Watch.DrainCompletions(func(ev watchio.Event) {
			s.deliverFsEvent(ev)
		})
	}

	// Step 6: honor a pending reload request.
	s.mu.Lock()
	reload := s.reloadWanted
	s.reloadWanted = false
	s.mu.Unlock()
	if reload && s.Reload != nil {
		s.dropAllRAFAndTimers()
		_ = s.Reload()
	}

	// Step 7: drain fired timers not in the cancellation set.
	for _, id := range s.Timers.DrainFired() {
		s.fireTimer(id)
	}

	// Step 8: drain domain-specific worker-thread completions.
	s.drainWorkers()

	// Step 9: run the engine's microtask queue until empty.
	s.RT.RunMicrotasks()

	// Step 10/11: per-frame handle scope brackets the RAF batch. The
	// engine adapter implementations treat EvalNamed calls inside this
	// window as scratch; there is no separate native scope API to open
	// here since every value crossing the boundary in this codebase is
	// already a primitive (spec.md §4.4's ownership contract).
	s.runRAFBatch()
}

func (s *Scheduler) drainWorkers() {
	for {
		select {
		case wc := <-s.Workers:
			_ = s.RT.Eval(wc.ApplyJS)
			s.RT.RunMicrotasks()
		default:
			return
		}
	}
}

func (s *Scheduler) dropAllRAFAndTimers() {
	s.mu.Lock()
	s.raf = nil
	s.mu.Unlock()
	_ = s.RT.Eval(`globalThis.__rafCallbacks = {};`)
	s.Timers.StopAll()
}

// Now returns monotonically increasing milliseconds since the scheduler's
// epoch, the RAF timestamp contract from spec.md §3.
func (s *Scheduler) Now() float64 {
	return float64(time.Since(s.epoch)) / float64(time.Millisecond)
}

func (s *Scheduler) runRAFBatch() {
	s.mu.Lock()
	batch := s.raf
	s.raf = nil // taken by move so newly-scheduled callbacks run next frame
	s.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	ts := s.Now()
	for _, e := range batch {
		_ = s.RT.Eval(rafInvokeJS(e.id, ts))
	}
	s.RT.RunMicrotasks()
}
