//go:build !v8

// Package quickjsengine implements core.JSRuntime on top of
// modernc.org/quickjs, the pure-Go engine backend selected when the v8
// build tag is absent (spec.md §4.4's Engine Adapter).
package quickjsengine

import (
	"fmt"

	"github.com/mystral-js/mystral/internal/core"
	"modernc.org/quickjs"
)

// Runtime implements core.JSRuntime for the QuickJS engine.
type Runtime struct {
	vm *quickjs.VM
}

var _ core.JSRuntime = (*Runtime)(nil)

// New creates a fresh QuickJS VM.
func New() (*Runtime, error) {
	vm, err := quickjs.NewVM()
	if err != nil {
		return nil, fmt.Errorf("quickjsengine: creating VM: %w", err)
	}
	return &Runtime{vm: vm}, nil
}

// Eval evaluates JavaScript and discards the result.
func (r *Runtime) Eval(js string) error {
	return r.EvalNamed(js, "eval.js")
}

// EvalNamed evaluates JavaScript under the given filename.
func (r *Runtime) EvalNamed(js, filename string) error {
	v, err := r.vm.EvalValue(js, quickjs.EvalGlobal)
	if err != nil {
		return fmt.Errorf("%s: %w", filename, err)
	}
	v.Free()
	return nil
}

// EvalString evaluates JavaScript and returns the result as a Go string.
func (r *Runtime) EvalString(js string) (string, error) {
	result, err := r.vm.Eval(js, quickjs.EvalGlobal)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", nil
	}
	return fmt.Sprint(result), nil
}

// EvalBool evaluates JavaScript and returns the result as a Go bool.
func (r *Runtime) EvalBool(js string) (bool, error) {
	result, err := r.vm.Eval(js, quickjs.EvalGlobal)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expected bool, got %T", result)
	}
	return b, nil
}

// RegisterFunc registers a Go function as a global JavaScript function.
// modernc.org/quickjs returns multi-value Go results as a JS array; this
// wraps the raw registration in a JS shim that unwraps the (T, error)
// convention into "return T" / "throw".
func (r *Runtime) RegisterFunc(name string, fn any) error {
	rawName := "__raw_" + name
	if err := r.vm.RegisterFunc(rawName, fn, false); err != nil {
		return err
	}
	wrapJS := fmt.Sprintf(`(function() {
		var raw = globalThis[%q];
		globalThis[%q] = function() {
			var r = raw.apply(this, arguments);
			if (Array.isArray(r)) {
				if (r[1] !== null && r[1] !== undefined) throw new TypeError("calling %s: " + r[1]);
				return r[0];
			}
			return r;
		};
		delete globalThis[%q];
	})()`, rawName, name, name, rawName)
	return r.Eval(wrapJS)
}

// SetGlobal sets a global property on the VM's global object.
func (r *Runtime) SetGlobal(name string, value any) error {
	atom, err := r.vm.NewAtom(name)
	if err != nil {
		return fmt.Errorf("creating atom %q: %w", name, err)
	}
	glob := r.vm.GlobalObject()
	defer glob.Free()
	return glob.SetProperty(atom, value)
}

// RunMicrotasks pumps the QuickJS microtask queue to completion.
func (r *Runtime) RunMicrotasks() {
	executePendingJobs(r.vm)
}

// Protect pins a named global by keeping it reachable from globalThis;
// release deletes it.
func (r *Runtime) Protect(name string) core.Protected {
	return core.NewProtected(name, func(n string) {
		_ = r.Eval(fmt.Sprintf("delete globalThis[%q];", n))
	})
}

// Close releases the underlying VM.
func (r *Runtime) Close() {
	r.vm.Close()
}
