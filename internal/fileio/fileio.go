// Package fileio implements the Async File component of spec.md §4.7: a
// singleton owning a thread-safe FIFO of read-file completions keyed to a
// protected JS callback. Reads run on their own goroutine; the scheduler
// calls DrainCompletions once per frame to invoke callbacks on the engine
// thread, matching the same non-blocking-drain shape the teacher used for
// HTTP fetch completions in internal/webapi/fetch.go — Go crosses the
// engine boundary with only primitive strings (the callback id and a
// base64-encoded payload), never a raw byte slice.
package fileio

import (
	"encoding/base64"
	"fmt"
	"os"
	"sync"

	"github.com/mystral-js/mystral/internal/core"
)

// completion is the result of one read_file call, queued for delivery on
// the engine thread.
type completion struct {
	callbackID string
	dataB64    string
	err        string
}

// Reader issues non-blocking file reads against the real filesystem and
// queues their results for later delivery.
type Reader struct {
	mu      sync.Mutex
	pending []completion
}

// New creates a Reader with an empty completion queue.
func New() *Reader {
	return &Reader{}
}

// ReadFile starts a read on its own goroutine. callbackID identifies the
// protected JS callback the scheduler will invoke once the read completes.
func (r *Reader) ReadFile(callbackID, path string) {
	go func() {
		data, err := os.ReadFile(path)
		c := completion{callbackID: callbackID}
		if err != nil {
			c.err = err.Error()
		} else {
			c.dataB64 = base64.StdEncoding.EncodeToString(data)
		}
		r.mu.Lock()
		r.pending = append(r.pending, c)
		r.mu.Unlock()
	}()
}

// HasPending reports whether any completed read is queued and not yet
// drained. Reads still in flight are not counted.
func (r *Reader) HasPending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending) > 0
}

// DrainCompletions is called by the scheduler once per poll_once iteration
// (spec.md §4.5 step 4). For each completed read it invokes the JS-side
// __fileReadResolve/__fileReadReject bridge with the base64 payload.
func (r *Reader) DrainCompletions(rt core.JSRuntime) bool {
	r.mu.Lock()
	if len(r.pending) == 0 {
		r.mu.Unlock()
		return false
	}
	batch := r.pending
	r.pending = nil
	r.mu.Unlock()

	for _, c := range batch {
		if c.err != "" {
			_ = rt.Eval(fmt.Sprintf(`globalThis.__fileReadReject(%q, %q)`, c.callbackID, c.err))
		} else {
			_ = rt.Eval(fmt.Sprintf(`globalThis.__fileReadResolve(%q, %q)`, c.callbackID, c.dataB64))
		}
		rt.RunMicrotasks()
	}
	return true
}
