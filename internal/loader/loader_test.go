package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mystral-js/mystral/internal/core"
	"github.com/mystral-js/mystral/internal/resolver"
	"github.com/mystral-js/mystral/internal/vfs"
)

// fakeRuntime is a minimal core.JSRuntime that records what it was asked
// to evaluate instead of actually running JavaScript. The loader's
// contract with the engine is almost entirely "emit this source text,
// under this filename" — exercising that contract does not require a
// real engine, so these tests assert on the generated programs instead.
type fakeRuntime struct {
	evals     []string
	filenames []string
	funcs     map[string]any
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{funcs: make(map[string]any)}
}

func (f *fakeRuntime) Eval(js string) error { return f.EvalNamed(js, "") }
func (f *fakeRuntime) EvalNamed(js, filename string) error {
	f.evals = append(f.evals, js)
	f.filenames = append(f.filenames, filename)
	return nil
}
func (f *fakeRuntime) EvalString(js string) (string, error) { return "", nil }
func (f *fakeRuntime) EvalBool(js string) (bool, error)     { return false, nil }
func (f *fakeRuntime) RegisterFunc(name string, fn any) error {
	f.funcs[name] = fn
	return nil
}
func (f *fakeRuntime) SetGlobal(name string, value any) error { return nil }
func (f *fakeRuntime) RunMicrotasks()                          {}
func (f *fakeRuntime) Protect(name string) core.Protected {
	return core.NewProtected(name, func(string) {})
}
func (f *fakeRuntime) Close() {}

func newTestLoader(t *testing.T) (*Loader, *fakeRuntime, string) {
	t.Helper()
	root := t.TempDir()
	rt := newFakeRuntime()
	v := vfs.New(root)
	res := resolver.New(v)
	return New(rt, res, v, nil), rt, root
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadEntryBootstrapsOnce(t *testing.T) {
	l, rt, root := newTestLoader(t)
	writeFile(t, root, "main.js", "console.log(1);")

	if err := l.LoadEntry("./main.js"); err != nil {
		t.Fatal(err)
	}
	if _, ok := rt.funcs["__mystralResolveAndLoad"]; !ok {
		t.Fatalf("expected require bridge to be registered")
	}
	foundBootstrap := false
	for _, js := range rt.evals {
		if strings.Contains(js, "__mystralMakeRequire") {
			foundBootstrap = true
		}
	}
	if !foundBootstrap {
		t.Fatalf("expected bootstrap source to be evaluated")
	}
}

func TestLoadEntryWrapsAsCJS(t *testing.T) {
	l, rt, root := newTestLoader(t)
	writeFile(t, root, "main.js", "console.log('hi');")

	if err := l.LoadEntry("./main.js"); err != nil {
		t.Fatal(err)
	}
	last := rt.evals[len(rt.evals)-1]
	for _, want := range []string{"'use strict'", "console.log('hi');", "module.exports", "require", "__filename", "__dirname"} {
		if !strings.Contains(last, want) {
			t.Errorf("wrapper missing %q:\n%s", want, last)
		}
	}
	if rt.filenames[len(rt.filenames)-1] != "main.js" {
		t.Fatalf("filename = %q", rt.filenames[len(rt.filenames)-1])
	}
}

func TestJSONModuleWrapsAsExpression(t *testing.T) {
	l, rt, root := newTestLoader(t)
	writeFile(t, root, "data.json", `{"a":1}`)

	if err := l.LoadEntry("./data.json"); err != nil {
		t.Fatal(err)
	}
	last := rt.evals[len(rt.evals)-1]
	if !strings.Contains(last, `{"a":1}`) || !strings.Contains(last, "exports: (") {
		t.Fatalf("expected JSON wrapper, got %s", last)
	}
}

func TestModuleLoadedOnlyOnce(t *testing.T) {
	l, rt, root := newTestLoader(t)
	writeFile(t, root, "main.js", "require('./a.js'); require('./a.js');")
	writeFile(t, root, "a.js", "module.exports = 1;")

	if err := l.LoadEntry("./main.js"); err != nil {
		t.Fatal(err)
	}
	// Only main.js's own wrapper is emitted by LoadEntry; a.js would be
	// loaded lazily via the JS-side require closure calling back into
	// RequireFromGo, which we exercise directly below.
	path, err := l.RequireFromGo("main.js", "./a.js")
	if err != nil {
		t.Fatal(err)
	}
	countBefore := len(rt.evals)
	path2, err := l.RequireFromGo("main.js", "./a.js")
	if err != nil {
		t.Fatal(err)
	}
	if path != path2 {
		t.Fatalf("expected stable canonical path, got %q then %q", path, path2)
	}
	if len(rt.evals) != countBefore {
		t.Fatalf("expected no additional eval on second require of the same module")
	}
}

func TestTypeScriptWithoutTranspilerFails(t *testing.T) {
	root := t.TempDir()
	v := vfs.New(root)
	res := resolver.New(v)
	l := New(newFakeRuntime(), res, v, nil)
	writeFile(t, root, "main.ts", "const x: number = 1;")

	err := l.LoadEntry("./main.ts")
	if err == nil || !strings.Contains(err.Error(), "TypeScript") {
		t.Fatalf("expected a TypeScript transpilation error, got %v", err)
	}
}

type fakeTranspiler struct{}

func (fakeTranspiler) TranspileTS(source, filename string) (string, error) {
	return fmt.Sprintf("/* transpiled %s */\n%s", filename, source), nil
}

func TestTypeScriptIsTranspiledBeforeWrapping(t *testing.T) {
	root := t.TempDir()
	v := vfs.New(root)
	res := resolver.New(v)
	rt := newFakeRuntime()
	l := New(rt, res, v, fakeTranspiler{})
	writeFile(t, root, "main.ts", "const x = 1;")

	if err := l.LoadEntry("./main.ts"); err != nil {
		t.Fatal(err)
	}
	last := rt.evals[len(rt.evals)-1]
	if !strings.Contains(last, "transpiled") {
		t.Fatalf("expected transpiled marker in wrapped output, got %s", last)
	}
}

// failingOnceRuntime fails EvalNamed the first N times it is called, then
// delegates to an embedded fakeRuntime; used to simulate a module that
// throws during its first evaluation.
type failingOnceRuntime struct {
	*fakeRuntime
	failCount int
}

func (f *failingOnceRuntime) EvalNamed(js, filename string) error {
	if f.failCount > 0 {
		f.failCount--
		return fmt.Errorf("boom")
	}
	return f.fakeRuntime.EvalNamed(js, filename)
}

func TestEnsureLoadedRollsBackOnEvalError(t *testing.T) {
	root := t.TempDir()
	v := vfs.New(root)
	res := resolver.New(v)
	inner := newFakeRuntime()
	rt := &failingOnceRuntime{fakeRuntime: inner, failCount: 1}
	l := New(rt, res, v, nil)
	writeFile(t, root, "main.js", "console.log(1);")

	// Bootstrap succeeds (first EvalNamed call consumes the bootstrap
	// eval before LoadEntry's own wrapper eval, so bump failCount to hit
	// the module wrapper specifically).
	rt.failCount = 0
	if err := l.bootstrap(); err != nil {
		t.Fatal(err)
	}
	rt.failCount = 1

	resolved, err := res.Resolve("./main.js", "", core.ModeRequire)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.ensureLoaded(resolved); err == nil {
		t.Fatalf("expected evaluation error to propagate")
	}
	if l.loaded[resolved.CanonicalPath] {
		t.Fatalf("expected loaded[path] to be rolled back after an evaluation error")
	}

	// A subsequent attempt must retry evaluation rather than silently
	// treating the module as already loaded with empty exports.
	if err := l.ensureLoaded(resolved); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if !l.loaded[resolved.CanonicalPath] {
		t.Fatalf("expected loaded[path] to be set after a successful retry")
	}
}

func TestClearCacheAllowsReload(t *testing.T) {
	l, rt, root := newTestLoader(t)
	writeFile(t, root, "main.js", "console.log(1);")

	if err := l.LoadEntry("./main.js"); err != nil {
		t.Fatal(err)
	}
	countBefore := len(rt.evals)

	if err := l.LoadEntry("./main.js"); err != nil {
		t.Fatal(err)
	}
	if len(rt.evals) != countBefore {
		t.Fatalf("expected no additional eval before ClearCache")
	}

	if err := l.ClearCache(); err != nil {
		t.Fatal(err)
	}
	foundRegistryReset := false
	for _, js := range rt.evals {
		if strings.Contains(js, "__mystralModules = Object.create(null)") {
			foundRegistryReset = true
		}
	}
	if !foundRegistryReset {
		t.Fatalf("expected ClearCache to reset the JS-side module registry")
	}

	if err := l.LoadEntry("./main.js"); err != nil {
		t.Fatal(err)
	}
	if len(rt.evals) == countBefore {
		t.Fatalf("expected LoadEntry to re-evaluate main.js after ClearCache")
	}
}

func TestESMEntryIsTextuallyTransformed(t *testing.T) {
	root := t.TempDir()
	v := vfs.New(root)
	res := resolver.New(v)
	rt := newFakeRuntime()
	l := New(rt, res, v, nil)
	writeFile(t, root, "package.json", `{"type":"module"}`)
	writeFile(t, root, "main.js", `export const x = 1;`)

	if err := l.LoadEntry("./main.js"); err != nil {
		t.Fatal(err)
	}
	last := rt.evals[len(rt.evals)-1]
	if !strings.Contains(last, "exports.x = x;") || !strings.Contains(last, "exports.__esModule = true;") {
		t.Fatalf("expected ESM module body to be transformed to CJS before wrapping, got %s", last)
	}
}
