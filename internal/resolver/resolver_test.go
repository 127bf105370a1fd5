package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mystral-js/mystral/internal/core"
	"github.com/mystral-js/mystral/internal/vfs"
)

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newFsResolver(t *testing.T) (*Resolver, string) {
	root := t.TempDir()
	return New(vfs.New(root)), root
}

func TestResolveAsFileExactMatch(t *testing.T) {
	r, root := newFsResolver(t)
	write(t, root, "a.js", "1")
	resolved, err := r.Resolve("./a.js", "entry.js", core.ModeRequire)
	if err != nil {
		t.Fatal(err)
	}
	if resolved.Format != core.FormatCJS {
		t.Fatalf("format = %v", resolved.Format)
	}
}

func TestRequireAppendsExtensionsInOrder(t *testing.T) {
	r, root := newFsResolver(t)
	write(t, root, "a.json", "{}")
	resolved, err := r.Resolve("./a", "entry.js", core.ModeRequire)
	if err != nil {
		t.Fatal(err)
	}
	if resolved.Format != core.FormatJSON {
		t.Fatalf("format = %v, want json", resolved.Format)
	}
}

func TestImportRequiresExactExtension(t *testing.T) {
	r, root := newFsResolver(t)
	write(t, root, "a.js", "1")
	_, err := r.Resolve("./a", "entry.js", core.ModeImport)
	if err == nil {
		t.Fatalf("expected strict-ESM extension error")
	}
}

func TestDirectoryIndexFallbackForRequire(t *testing.T) {
	r, root := newFsResolver(t)
	write(t, root, "lib/index.js", "1")
	resolved, err := r.Resolve("./lib", "entry.js", core.ModeRequire)
	if err != nil {
		t.Fatal(err)
	}
	if resolved.CanonicalPath != "lib/index.js" {
		t.Fatalf("canonical = %q", resolved.CanonicalPath)
	}
}

func TestDirectoryImportWithoutPackageJSONFails(t *testing.T) {
	r, root := newFsResolver(t)
	write(t, root, "lib/index.js", "1")
	_, err := r.Resolve("./lib", "entry.js", core.ModeImport)
	re, ok := err.(*core.ResolveError)
	if !ok || re.Kind != core.ErrUnsupportedDirectoryImport {
		t.Fatalf("err = %v, want UnsupportedDirectoryImport", err)
	}
}

func TestFormatByPackageType(t *testing.T) {
	r, root := newFsResolver(t)
	write(t, root, "package.json", `{"type":"module"}`)
	write(t, root, "a.js", "1")
	resolved, err := r.Resolve("./a.js", "entry.js", core.ModeRequire)
	if err != nil {
		t.Fatal(err)
	}
	if resolved.Format != core.FormatESM {
		t.Fatalf("format = %v, want esm due to package type=module", resolved.Format)
	}
}

func TestPackageSpecifierWalksNodeModulesUpward(t *testing.T) {
	r, root := newFsResolver(t)
	write(t, root, "node_modules/foo/package.json", `{"main":"index.js"}`)
	write(t, root, "node_modules/foo/index.js", "1")
	resolved, err := r.Resolve("foo", "src/deep/entry.js", core.ModeRequire)
	if err != nil {
		t.Fatal(err)
	}
	if resolved.CanonicalPath != "node_modules/foo/index.js" {
		t.Fatalf("canonical = %q", resolved.CanonicalPath)
	}
}

func TestScopedPackageSpecifier(t *testing.T) {
	r, root := newFsResolver(t)
	write(t, root, "node_modules/@scope/pkg/package.json", `{"main":"index.js"}`)
	write(t, root, "node_modules/@scope/pkg/index.js", "1")
	resolved, err := r.Resolve("@scope/pkg", "entry.js", core.ModeRequire)
	if err != nil {
		t.Fatal(err)
	}
	if resolved.CanonicalPath != "node_modules/@scope/pkg/index.js" {
		t.Fatalf("canonical = %q", resolved.CanonicalPath)
	}
}

func TestConditionalExportsOrderSensitivity(t *testing.T) {
	r, root := newFsResolver(t)
	write(t, root, "node_modules/foo/package.json", `{
		"exports": { ".": { "import": "./esm.js", "require": "./cjs.js", "default": "./default.js" } }
	}`)
	write(t, root, "node_modules/foo/esm.js", "1")
	write(t, root, "node_modules/foo/cjs.js", "1")

	importResolved, err := r.Resolve("foo", "entry.js", core.ModeImport)
	if err != nil {
		t.Fatal(err)
	}
	if importResolved.CanonicalPath != "node_modules/foo/esm.js" {
		t.Fatalf("import resolved to %q, want esm.js", importResolved.CanonicalPath)
	}

	requireResolved, err := r.Resolve("foo", "entry.js", core.ModeRequire)
	if err != nil {
		t.Fatal(err)
	}
	if requireResolved.CanonicalPath != "node_modules/foo/cjs.js" {
		t.Fatalf("require resolved to %q, want cjs.js", requireResolved.CanonicalPath)
	}
}

func TestExportsPatternSubstitution(t *testing.T) {
	r, root := newFsResolver(t)
	write(t, root, "node_modules/foo/package.json", `{
		"exports": { "./features/*": "./src/features/*.js" }
	}`)
	write(t, root, "node_modules/foo/src/features/widgets.js", "1")
	resolved, err := r.Resolve("foo/features/widgets", "entry.js", core.ModeRequire)
	if err != nil {
		t.Fatal(err)
	}
	if resolved.CanonicalPath != "node_modules/foo/src/features/widgets.js" {
		t.Fatalf("canonical = %q", resolved.CanonicalPath)
	}
}

func TestExportsMostSpecificPatternWins(t *testing.T) {
	r, root := newFsResolver(t)
	write(t, root, "node_modules/foo/package.json", `{
		"exports": {
			"./*": "./generic/*.js",
			"./special/*": "./special/*.js"
		}
	}`)
	write(t, root, "node_modules/foo/special/x.js", "1")
	resolved, err := r.Resolve("foo/special/x", "entry.js", core.ModeRequire)
	if err != nil {
		t.Fatal(err)
	}
	if resolved.CanonicalPath != "node_modules/foo/special/x.js" {
		t.Fatalf("canonical = %q, want the more specific pattern", resolved.CanonicalPath)
	}
}

func TestNoExportMatchError(t *testing.T) {
	r, root := newFsResolver(t)
	write(t, root, "node_modules/foo/package.json", `{"exports": {".": "./index.js"}}`)
	write(t, root, "node_modules/foo/index.js", "1")
	_, err := r.Resolve("foo/nope", "entry.js", core.ModeRequire)
	re, ok := err.(*core.ResolveError)
	if !ok || re.Kind != core.ErrNoExportMatch {
		t.Fatalf("err = %v, want NoExportMatch", err)
	}
}

func TestImportsMapSpecifier(t *testing.T) {
	r, root := newFsResolver(t)
	write(t, root, "package.json", `{"imports": {"#utils": "./lib/utils.js"}}`)
	write(t, root, "lib/utils.js", "1")
	write(t, root, "src/entry.js", "1")
	resolved, err := r.Resolve("#utils", "src/entry.js", core.ModeRequire)
	if err != nil {
		t.Fatal(err)
	}
	if resolved.CanonicalPath != "lib/utils.js" {
		t.Fatalf("canonical = %q", resolved.CanonicalPath)
	}
}

func TestEmptySpecifierError(t *testing.T) {
	r, _ := newFsResolver(t)
	_, err := r.Resolve("", "entry.js", core.ModeRequire)
	re, ok := err.(*core.ResolveError)
	if !ok || re.Kind != core.ErrEmptySpecifier {
		t.Fatalf("err = %v, want EmptySpecifier", err)
	}
}

func TestNestedPatternInTargetRejected(t *testing.T) {
	r, root := newFsResolver(t)
	write(t, root, "node_modules/foo/package.json", `{
		"exports": { "./*": { "import": "./dist/*/index.js" } }
	}`)
	_, err := r.Resolve("foo/x", "entry.js", core.ModeImport)
	re, ok := err.(*core.ResolveError)
	if !ok || re.Kind != core.ErrInvalidExports {
		t.Fatalf("err = %v, want InvalidExports for a nested pattern target", err)
	}
}

func TestBareSpecifierNotPromotedWithoutBundle(t *testing.T) {
	root := t.TempDir()
	v := vfs.New(root)
	// Simulate an attached bundle via Discover against a hand-built blob is
	// exercised in internal/vfs; here we only need HasBundle()==false to
	// confirm fs-mode bare specifiers are NOT promoted and go through
	// package resolution instead.
	r := New(v)
	_, err := r.Resolve("nonexistent-package", "entry.js", core.ModeRequire)
	if err == nil {
		t.Fatalf("expected package-not-found for a bare specifier with no bundle and no node_modules")
	}
}
