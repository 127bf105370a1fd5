// Package compiler implements the TypeScript transpile step
// (internal/loader.Transpiler) and the Compile Command bundle emitter of
// spec.md §4.9.
package compiler

import (
	"fmt"
	"strings"

	esbuild "github.com/evanw/esbuild/pkg/api"

	"github.com/mystral-js/mystral/internal/cachedb"
)

// Transpiler turns TypeScript (or TSX) source into JavaScript via
// esbuild's single-file Transform API, satisfying internal/loader.Transpiler.
//
// Grounded on becomeliminal-js-rules' tools/please_js/transpile/transpile.go
// (per-file api.Transform with Loader/Format/Target/Sourcemap options),
// rather than the teacher's own bundle.go, which calls the multi-file
// api.Build — the Module Loader transpiles one file at a time as it is
// required, so the single-file Transform API is the right fit.
type Transpiler struct{}

// NewTranspiler constructs a Transpiler. It holds no state; esbuild's
// Transform API is safe to call concurrently.
func NewTranspiler() *Transpiler { return &Transpiler{} }

// TranspileTS compiles TypeScript source into JavaScript. filename selects
// TS vs. TSX loading by extension and is used for esbuild's diagnostics.
func (t *Transpiler) TranspileTS(source, filename string) (string, error) {
	loader := esbuild.LoaderTS
	if strings.HasSuffix(filename, ".tsx") {
		loader = esbuild.LoaderTSX
	}

	result := esbuild.Transform(source, esbuild.TransformOptions{
		Loader:     loader,
		Format:     esbuild.FormatESModule,
		Target:     esbuild.ESNext,
		JSX:        esbuild.JSXAutomatic,
		Sourcefile: filename,
	})

	if len(result.Errors) > 0 {
		var msgs []string
		for _, e := range result.Errors {
			if e.Location != nil {
				msgs = append(msgs, fmt.Sprintf("%s:%d:%d: %s", filename, e.Location.Line, e.Location.Column, e.Text))
			} else {
				msgs = append(msgs, fmt.Sprintf("%s: %s", filename, e.Text))
			}
		}
		return "", fmt.Errorf("transpiling %s: %s", filename, strings.Join(msgs, "; "))
	}

	return string(result.Code), nil
}

// CachedTranspiler wraps a Transpiler with a content-hash keyed cache, so a
// `--watch` reload that re-requires an unchanged file skips esbuild
// entirely. It satisfies the same internal/loader.Transpiler interface.
type CachedTranspiler struct {
	inner *Transpiler
	cache *cachedb.Cache
}

// NewCachedTranspiler constructs a CachedTranspiler backed by cache.
func NewCachedTranspiler(cache *cachedb.Cache) *CachedTranspiler {
	return &CachedTranspiler{inner: NewTranspiler(), cache: cache}
}

// TranspileTS returns the cached output for source/filename if present,
// otherwise transpiles with esbuild and stores the result before returning.
func (t *CachedTranspiler) TranspileTS(source, filename string) (string, error) {
	hash := cachedb.HashSource(source)
	if output, ok, err := t.cache.Lookup(filename, hash); err == nil && ok {
		return output, nil
	}

	output, err := t.inner.TranspileTS(source, filename)
	if err != nil {
		return "", err
	}

	// Cache write failures are not fatal to transpilation; a missing
	// entry just means the next load pays the esbuild cost again.
	_ = t.cache.Store(filename, hash, output)

	return output, nil
}
