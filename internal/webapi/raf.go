package webapi

import (
	"github.com/mystral-js/mystral/internal/core"
	"github.com/mystral-js/mystral/internal/scheduler"
)

// rafJS defines requestAnimationFrame/cancelAnimationFrame over the same
// id-keyed callback-table idiom internal/webapi/timers.go uses.
const rafJS = `
(function() {
	globalThis.__rafCallbacks = {};
	globalThis.requestAnimationFrame = function(fn) {
		if (typeof fn !== 'function') return 0;
		var id = __rafRegister();
		globalThis.__rafCallbacks[id] = fn;
		return id;
	};
	globalThis.cancelAnimationFrame = function(id) {
		delete globalThis.__rafCallbacks[id];
		__rafCancel(id);
	};
})();
`

// SetupRAF registers Go-backed requestAnimationFrame/cancelAnimationFrame,
// wired to the Scheduler's per-frame RAF batch (spec.md §4.5 steps 10–11).
func SetupRAF(rt core.JSRuntime, sched *scheduler.Scheduler) error {
	if err := rt.RegisterFunc("__rafRegister", func() uint32 {
		return sched.RegisterRAF()
	}); err != nil {
		return err
	}
	if err := rt.RegisterFunc("__rafCancel", func(id uint32) {
		sched.CancelRAF(id)
	}); err != nil {
		return err
	}
	return rt.Eval(rafJS)
}
