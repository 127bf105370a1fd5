package webapi

import "github.com/mystral-js/mystral/internal/core"

// fakeRuntimeBase is a no-op core.JSRuntime that individual webapi tests
// embed and selectively override, so each setup-function test only needs
// to describe the one call it cares about.
type fakeRuntimeBase struct{}

func (fakeRuntimeBase) Eval(js string) error                  { return nil }
func (fakeRuntimeBase) EvalNamed(js, filename string) error   { return nil }
func (fakeRuntimeBase) EvalString(js string) (string, error)  { return "", nil }
func (fakeRuntimeBase) EvalBool(js string) (bool, error)      { return false, nil }
func (fakeRuntimeBase) RegisterFunc(name string, fn any) error { return nil }
func (fakeRuntimeBase) SetGlobal(name string, value any) error { return nil }
func (fakeRuntimeBase) RunMicrotasks()                          {}
func (fakeRuntimeBase) Protect(name string) core.Protected {
	return core.NewProtected(name, func(string) {})
}
func (fakeRuntimeBase) Close() {}

var _ core.JSRuntime = fakeRuntimeBase{}
