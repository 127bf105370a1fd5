// Package core holds the shared types and interfaces used across the
// engine backends, the scheduler, and the Web API shim host so that none
// of those packages needs to import a concrete JS engine.
package core

// JSRuntime abstracts the JavaScript engine (V8 or QuickJS) behind a
// common interface used by the module loader, the scheduler, and every
// internal/webapi setup function. It mirrors the capability set spec.md
// §4.4 assigns to the Engine Adapter: value construction/conversion,
// function registration, global access, protect/unprotect, and
// microtask draining.
type JSRuntime interface {
	// Eval evaluates JavaScript source and discards the result.
	Eval(js string) error

	// EvalNamed evaluates JavaScript source under a given filename, used
	// for module bodies so stack traces and error messages carry the
	// module's canonical path.
	EvalNamed(js, filename string) error

	// EvalString evaluates JavaScript and returns the result as a Go string.
	EvalString(js string) (string, error)

	// EvalBool evaluates JavaScript and returns the result as a Go bool.
	EvalBool(js string) (bool, error)

	// RegisterFunc registers a Go function as a global JavaScript function.
	// Supported Go signatures: func(args...) T, func(args...) (T, error),
	// and func(args...) with no return. On error return, the JS wrapper
	// throws instead of returning a tuple.
	RegisterFunc(name string, fn any) error

	// SetGlobal sets a global variable on the JS context. Basic Go types
	// are auto-converted to JS types; complex types are JSON round-tripped.
	SetGlobal(name string, value any) error

	// RunMicrotasks pumps the microtask queue (Promise callbacks, etc.)
	// until no pending job remains. Corresponds to spec.md §4.5 step 9.
	RunMicrotasks()

	// Protect pins a named global so it survives garbage collection until
	// Release is called on the returned handle.
	Protect(name string) Protected

	// Close tears down the engine context. Called once during runtime
	// shutdown after every protected handle has been released.
	Close()
}

// Protected is a released-once handle into engine-held state, matching
// the ProtectedHandle new-type described in spec.md §9: its destructor
// (Release) must be called exactly once, and the cache types that embed
// it by value are responsible for calling Release on displacement.
type Protected struct {
	Name     string
	released bool
	release  func(name string)
}

// NewProtected constructs a Protected handle backed by the given release
// function. Engine backends call this from Protect.
func NewProtected(name string, release func(string)) Protected {
	return Protected{Name: name, release: release}
}

// Release unprotects the handle. Calling it more than once is a no-op,
// matching the invariant that every protect has exactly one matching
// unprotect in flight at a time.
func (p *Protected) Release() {
	if p.released || p.release == nil {
		return
	}
	p.released = true
	p.release(p.Name)
}

// Released reports whether Release has already run.
func (p *Protected) Released() bool { return p.released }

// InputEvent is one OS input event reported by a WindowSource, already
// shaped for DOM-style dispatch (spec.md §4.8): Target names which
// addEventListener target the event fans out from ("keyboard", "mouse",
// "pointer", "wheel", "gamepad", "resize"); Fields carries the event's
// JS-visible properties (key, code, clientX, deltaY, button, ...).
type InputEvent struct {
	Target string
	Type   string
	Fields map[string]any
}

// WindowSource abstracts the windowing/input backend spec.md §1 names as an
// external collaborator ("the windowing/input source... replaced by
// interface contracts"). poll_once step 1 polls it once per frame in
// no-window mode it is never constructed at all.
type WindowSource interface {
	// PollEvents drains whatever OS input arrived since the last call.
	PollEvents() []InputEvent
	// ShouldQuit reports that the OS requested window close (e.g. the user
	// clicked the close button), which run() treats like a script-requested
	// quit.
	ShouldQuit() bool
	// InnerSize returns the current drawable size, used to keep
	// window.innerWidth/innerHeight (and a resize InputEvent) current.
	InnerSize() (width, height int)
	// Close releases the window/GPU surface. Called once during shutdown.
	Close()
}
