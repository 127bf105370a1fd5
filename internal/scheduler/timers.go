package scheduler

import (
	"sync"
	"time"
)

// timerEntry is one armed setTimeout/setInterval, matching spec.md §3's
// TimerEntry record. The callback itself lives on the JS side, keyed by id
// in globalThis.__timerCallbacks; Go only owns scheduling metadata and the
// cancellation set, following the teacher's internal/eventloop split of
// "Go tracks deadlines, JS owns the callback".
type timerEntry struct {
	id        uint32
	deadline  time.Time
	interval  time.Duration // 0 for setTimeout, >0 for setInterval
	cancelled bool
}

// TimerService implements spec.md §4.6: monotonically increasing ids,
// a fallback engine-thread deadline list (no libuv equivalent is wired in
// Go), and a completion queue so fired timers cross to the scheduler the
// same way every other async producer does.
type TimerService struct {
	mu      sync.Mutex
	timers  map[uint32]*timerEntry
	nextID  uint32
	fired   []firedTimer
	clock   func() time.Time
}

type firedTimer struct {
	id         uint32
	isInterval bool
}

// NewTimerService constructs an empty TimerService using the real clock.
func NewTimerService() *TimerService {
	return &TimerService{timers: make(map[uint32]*timerEntry), clock: time.Now}
}

// Set arms a new timer and returns its id. Ids are never reused within a run.
func (t *TimerService) Set(delay time.Duration, interval bool) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id := t.nextID
	e := &timerEntry{id: id, deadline: t.clock().Add(delay)}
	if interval {
		if delay <= 0 {
			delay = time.Millisecond
		}
		e.interval = delay
	}
	t.timers[id] = e
	return id
}

// Clear is idempotent: clearing an unknown or already-cleared id is a no-op.
// Per spec.md §4.5's cancellation semantics, a timer cleared after Tick()
// queued it is still skipped: an interval is dropped by DrainFired, and a
// one-shot's id is still returned but clearTimeout has already deleted its
// globalThis.__timerCallbacks entry, so the scheduler's fireTimer finds
// nothing to call.
func (t *TimerService) Clear(id uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.timers[id]; ok {
		e.cancelled = true
		delete(t.timers, id)
	}
}

// Tick checks every armed timer against the clock and enqueues completions
// for every one that has fired. Interval timers are rearmed in place;
// one-shot timers are removed. Called once per poll_once iteration as part
// of the non-blocking reactor tick (spec.md §4.5 step 2).
func (t *TimerService) Tick() {
	now := t.clock()
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, e := range t.timers {
		if e.cancelled || now.Before(e.deadline) {
			continue
		}
		isInterval := e.interval > 0
		if isInterval {
			e.deadline = now.Add(e.interval)
		} else {
			delete(t.timers, id)
		}
		t.fired = append(t.fired, firedTimer{id: id, isInterval: isInterval})
	}
}

// DrainFired removes and returns every timer completion queued since the
// last drain, in FIFO order (spec.md §5's per-queue ordering guarantee).
// An interval completion whose timer was cleared after Tick queued it but
// before this drain is silently skipped. A one-shot timer has already left
// the timer map at Tick, so its id is returned even if cleared since; the
// JS side skips it (see Clear).
func (t *TimerService) DrainFired() []uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.fired) == 0 {
		return nil
	}
	batch := t.fired
	t.fired = nil
	out := make([]uint32, 0, len(batch))
	for _, f := range batch {
		if _, stillLive := t.timers[f.id]; f.isInterval && !stillLive {
			continue // interval was cleared between Tick and drain
		}
		out = append(out, f.id)
	}
	return out
}

// HasPending reports whether any timer is still armed.
func (t *TimerService) HasPending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers) > 0
}

// StopAll cancels every armed timer, used during scheduler shutdown
// (spec.md §4.5's "stops every timer").
func (t *TimerService) StopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timers = make(map[uint32]*timerEntry)
	t.fired = nil
}
