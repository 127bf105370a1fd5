package webapi

import (
	"time"

	"github.com/mystral-js/mystral/internal/core"
	"github.com/mystral-js/mystral/internal/scheduler"
)

// timersJS is the JavaScript polyfill for setTimeout/setInterval/clearTimeout/clearInterval.
const timersJS = `
(function() {
	globalThis.__timerCallbacks = {};
	globalThis.setTimeout = function(fn, delay) {
		if (arguments.length === 0 || typeof fn !== 'function') {
			return 0;
		}
		var args = [];
		for (var i = 2; i < arguments.length; i++) args.push(arguments[i]);
		var id = __timerRegister(delay || 0, false);
		globalThis.__timerCallbacks[id] = { fn: fn, args: args };
		return id;
	};
	globalThis.setInterval = function(fn, interval) {
		if (arguments.length === 0 || typeof fn !== 'function') {
			return 0;
		}
		var args = [];
		for (var i = 2; i < arguments.length; i++) args.push(arguments[i]);
		var id = __timerRegister(interval || 0, true);
		globalThis.__timerCallbacks[id] = { fn: fn, args: args, interval: true };
		return id;
	};
	globalThis.clearTimeout = globalThis.clearInterval = function(id) {
		if (arguments.length === 0 || typeof id !== 'number') {
			return;
		}
		__timerClear(id);
		delete globalThis.__timerCallbacks[id];
	};
})();
`

// SetupTimers registers Go-backed setTimeout/setInterval/clearTimeout/
// clearInterval, wired to the Timer Service of spec.md §4.6. Grounded on
// the teacher's internal/webapi/timers.go, retargeted from
// *eventloop.EventLoop to *scheduler.TimerService.
func SetupTimers(rt core.JSRuntime, timers *scheduler.TimerService) error {
	if err := rt.RegisterFunc("__timerRegister", func(delayMs int, isInterval bool) uint32 {
		return timers.Set(time.Duration(delayMs)*time.Millisecond, isInterval)
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__timerClear", func(id uint32) {
		timers.Clear(id)
	}); err != nil {
		return err
	}

	return rt.Eval(timersJS)
}
