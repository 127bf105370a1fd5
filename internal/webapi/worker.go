package webapi

import (
	"fmt"

	"github.com/mystral-js/mystral/internal/core"
	"github.com/mystral-js/mystral/internal/vfs"
)

// workerJS implements the same-thread Worker polyfill spec.md §6/§8
// describes: shared-memory workers are explicitly out of scope, so a
// worker's script runs in the same realm as its parent, wrapped in its own
// function scope with a private `self`, and every postMessage delivery —
// in both directions — is scheduled through queueMicrotask rather than
// called synchronously, which is the only part of "worker" behavior a
// single-threaded engine can still honor.
//
// Grounded on the teacher's webapi/websocket.go WebSocketPair: two
// endpoints joined by a queueMicrotask-scheduled dispatch, generalized
// from a socket pair's message/close events to Worker's postMessage/error.
const workerJS = `
(function() {

class Worker extends EventTarget {
	constructor(scriptURL, options) {
		super();
		this._terminated = false;
		this.onmessage = null;
		this.onerror = null;

		var self_ = this._buildSelf();

		var source;
		try {
			source = __workerReadSource(String(scriptURL));
		} catch (e) {
			queueMicrotask(() => this._fireError(e));
			return;
		}

		queueMicrotask(() => {
			if (this._terminated) return;
			try {
				var fn = new Function('self', 'postMessage', 'onmessage', source);
				fn.call(self_, self_, self_.postMessage.bind(self_), null);
			} catch (e) {
				this._fireError(e);
			}
		});
	}

	_buildSelf() {
		var worker = this;
		var self_ = new EventTarget();
		self_.onmessage = null;
		self_.postMessage = function(data) {
			if (worker._terminated) return;
			queueMicrotask(function() {
				if (worker._terminated) return;
				var evt = { data: data };
				if (typeof worker.onmessage === 'function') worker.onmessage(evt);
				worker.dispatchEvent(Object.assign(new Event('message'), evt));
			});
		};
		this._self = self_;
		return self_;
	}

	postMessage(data) {
		if (this._terminated) return;
		var self_ = this._self;
		queueMicrotask(function() {
			if (self_._terminated) return;
			var evt = { data: data };
			if (typeof self_.onmessage === 'function') self_.onmessage(evt);
			self_.dispatchEvent(Object.assign(new Event('message'), evt));
		});
	}

	terminate() {
		this._terminated = true;
		if (this._self) this._self._terminated = true;
	}

	_fireError(e) {
		var evt = Object.assign(new Event('error'), { message: String(e && e.message || e) });
		if (typeof this.onerror === 'function') this.onerror(evt);
		this.dispatchEvent(evt);
	}
}

globalThis.Worker = Worker;

})();
`

// SetupWorker registers the __workerReadSource bridge and evaluates the
// Worker polyfill. fs resolves a Worker's scriptURL as a plain VFS path
// relative to the runtime's root — the full module-graph resolver is not
// involved, since a worker script is loaded once as raw text rather than
// required as a CJS/ESM module.
func SetupWorker(rt core.JSRuntime, fs *vfs.VFS) error {
	if err := rt.RegisterFunc("__workerReadSource", func(path string) (string, error) {
		data, err := fs.Read(vfs.Normalize(path))
		if err != nil {
			return "", fmt.Errorf("Worker: reading %q: %w", path, err)
		}
		return string(data), nil
	}); err != nil {
		return err
	}
	if err := rt.Eval(workerJS); err != nil {
		return fmt.Errorf("evaluating worker.js: %w", err)
	}
	return nil
}
