// Package loader implements the Module Loader from spec.md §4.3: it turns
// a ResolvedModule into evaluated JS state inside the engine, handling the
// CJS wrapper, JSON wrapping, the textual ESM→CJS transform, and the
// partial-exports cycle-caching rule.
package loader

import (
	"fmt"
	"strings"

	"github.com/mystral-js/mystral/internal/core"
	"github.com/mystral-js/mystral/internal/resolver"
	"github.com/mystral-js/mystral/internal/vfs"
)

// Transpiler turns TypeScript source into JavaScript. Wired to esbuild in
// production; see internal/compiler.
type Transpiler interface {
	TranspileTS(source, filename string) (string, error)
}

// Loader drives module loading against a JSRuntime. One Loader belongs to
// one Runtime; its cache lives for the runtime's whole lifetime.
type Loader struct {
	rt           core.JSRuntime
	resolver     *resolver.Resolver
	fs           *vfs.VFS
	transpiler   Transpiler
	loaded       map[string]bool // canonical path -> fully evaluated
	bootstrapped bool
}

// New constructs a Loader. transpiler may be nil; TypeScript modules then
// fail to load with a clear message, matching spec.md §4.3's "if
// transpilation is unavailable the loader fails" rule.
func New(rt core.JSRuntime, res *resolver.Resolver, fs *vfs.VFS, transpiler Transpiler) *Loader {
	return &Loader{rt: rt, resolver: res, fs: fs, transpiler: transpiler, loaded: make(map[string]bool)}
}

// bootstrap installs the one-time JS-side module registry and the
// require-closure factory that every generated wrapper calls into. It
// runs lazily on first use so a Loader with no entry point never touches
// the engine.
func (l *Loader) bootstrap() error {
	if l.bootstrapped {
		return nil
	}
	l.bootstrapped = true
	if err := l.rt.RegisterFunc("__mystralResolveAndLoad", l.RequireFromGo); err != nil {
		return fmt.Errorf("loader: registering require bridge: %w", err)
	}
	return l.rt.EvalNamed(bootstrapSource, "<mystral-module-bootstrap>")
}

const bootstrapSource = `
(function() {
  if (globalThis.__mystralModules) return;
  globalThis.__mystralModules = Object.create(null);
  globalThis.__mystralMakeRequire = function(referrerPath) {
    return function(specifier) {
      var resolvedPath = __mystralResolveAndLoad(referrerPath, specifier);
      return globalThis.__mystralModules[resolvedPath].exports;
    };
  };
})();
`

// LoadEntry resolves path as a Require specifier relative to root and
// evaluates it as the program entry point.
func (l *Loader) LoadEntry(path string) error {
	if err := l.bootstrap(); err != nil {
		return err
	}
	resolved, err := l.resolver.Resolve(path, "", core.ModeRequire)
	if err != nil {
		return err
	}
	return l.ensureLoaded(resolved)
}

// RequireFromGo resolves and loads specifier relative to referrer and
// returns the module's canonical path; it is the Go-side implementation
// registered as __mystralResolveAndLoad (spec.md §4.3's synchronous
// require() contract, expressed here as resolve+load with JS doing the
// final `.exports` lookup so values never cross the Go/JS boundary).
func (l *Loader) RequireFromGo(referrer, specifier string) (string, error) {
	resolved, err := l.resolver.Resolve(specifier, referrer, core.ModeRequire)
	if err != nil {
		return "", err
	}
	if err := l.ensureLoaded(resolved); err != nil {
		return "", err
	}
	return resolved.CanonicalPath, nil
}

// ResolveForImport exposes the resolver for the engine's native-ESM loader
// callback (spec.md §4.3's resolve_for_import). Present for completeness;
// the current engine backends run every module through the textual
// transform (see EsmSource), so this is primarily used by tests and by
// any future engine backend with real ESM module linking.
func (l *Loader) ResolveForImport(specifier, referrer string) (core.ResolvedModule, error) {
	return l.resolver.Resolve(specifier, referrer, core.ModeImport)
}

// EsmSource returns the transformed source and filename for an ESM module,
// after any TypeScript transpile step.
func (l *Loader) EsmSource(resolved core.ResolvedModule, referrer string) (string, string, error) {
	raw, err := l.readAndMaybeTranspile(resolved)
	if err != nil {
		return "", "", err
	}
	return Transform(raw), resolved.CanonicalPath, nil
}

// ensureLoaded evaluates resolved's module body exactly once, seeding the
// JS-side registry with a placeholder exports object before evaluation so
// a circular require observes the partially-built module instead of
// recursing.
func (l *Loader) ensureLoaded(resolved core.ResolvedModule) error {
	path := resolved.CanonicalPath
	if l.loaded[path] {
		return nil
	}
	l.loaded[path] = true

	body, err := l.readAndMaybeTranspile(resolved)
	if err != nil {
		delete(l.loaded, path)
		return err
	}

	switch resolved.Format {
	case core.FormatJSON:
		if err := l.evalJSONModule(path, body); err != nil {
			delete(l.loaded, path)
			return err
		}
		return nil
	case core.FormatESM:
		if err := l.evalCJSModule(path, Transform(body)); err != nil {
			delete(l.loaded, path)
			return err
		}
		return nil
	default:
		if err := l.evalCJSModule(path, body); err != nil {
			delete(l.loaded, path)
			return err
		}
		return nil
	}
}

// ClearCache resets module-loaded state so a subsequent LoadEntry
// re-evaluates every module from scratch, and clears the JS-side module
// registry so stale exports objects are not returned to a fresh require().
// Used by watch-mode reloads (spec.md:168's "clear module caches" step).
func (l *Loader) ClearCache() error {
	l.loaded = make(map[string]bool)
	if !l.bootstrapped {
		return nil
	}
	return l.rt.EvalNamed(`globalThis.__mystralModules = Object.create(null);`, "<mystral-module-cache-clear>")
}

func (l *Loader) readAndMaybeTranspile(resolved core.ResolvedModule) (string, error) {
	data, err := l.fs.Read(resolved.CanonicalPath)
	if err != nil {
		return "", fmt.Errorf("loader: reading %s: %w", resolved.CanonicalPath, err)
	}
	source := string(data)
	if isTypeScriptPath(resolved.CanonicalPath) {
		if l.transpiler == nil {
			return "", fmt.Errorf("loader: %s requires TypeScript transpilation, none is configured", resolved.CanonicalPath)
		}
		transpiled, err := l.transpiler.TranspileTS(source, resolved.CanonicalPath)
		if err != nil {
			return "", fmt.Errorf("loader: transpiling %s: %w", resolved.CanonicalPath, err)
		}
		return transpiled, nil
	}
	return source, nil
}

func isTypeScriptPath(path string) bool {
	for _, ext := range []string{".ts", ".tsx", ".mts", ".cts"} {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

func (l *Loader) evalJSONModule(path, jsonText string) error {
	wrapper := fmt.Sprintf(
		"globalThis.__mystralModules[%s] = { exports: (%s) };\n",
		jsQuote(path), jsonText,
	)
	return l.rt.EvalNamed(wrapper, path)
}

func (l *Loader) evalCJSModule(path, body string) error {
	dir := dirname(path)
	program := fmt.Sprintf(`(function() {
  var __path = %s;
  if (!globalThis.__mystralModules[__path]) {
    globalThis.__mystralModules[__path] = { exports: {} };
  }
  var module = globalThis.__mystralModules[__path];
  var exports = module.exports;
  var require = globalThis.__mystralMakeRequire(__path);
  var __filename = __path;
  var __dirname = %s;
  (function(exports, require, module, __filename, __dirname) {
    'use strict';
%s
  })(exports, require, module, __filename, __dirname);
})();
`, jsQuote(path), jsQuote(dir), indent(body))
	return l.rt.EvalNamed(program, path)
}

func indent(body string) string {
	lines := strings.Split(body, "\n")
	for i, ln := range lines {
		lines[i] = "    " + ln
	}
	return strings.Join(lines, "\n")
}

func dirname(p string) string {
	idx := strings.LastIndex(p, "/")
	if idx < 0 {
		return ""
	}
	return p[:idx]
}

func jsQuote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
