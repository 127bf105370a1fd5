// Package resolver implements the module resolution algorithm from
// spec.md §4.2: path, package, and imports-map specifiers, conditional
// exports/imports, and single-wildcard pattern substitution.
package resolver

import (
	"path"
	"strings"

	"github.com/mystral-js/mystral/internal/core"
	"github.com/mystral-js/mystral/internal/vfs"
)

// requireExtensions is tried, in order, against an as-file candidate when
// mode is Require and the exact specifier did not match a file.
var requireExtensions = []string{".js", ".json", ".mjs", ".cjs", ".ts", ".tsx", ".mts", ".cts"}

// Resolver resolves specifiers against a VFS and caches package.json reads.
type Resolver struct {
	fs       *vfs.VFS
	packages map[string]*core.PackageInfo // keyed by package root path
}

// New returns a Resolver backed by fs.
func New(fs *vfs.VFS) *Resolver {
	return &Resolver{fs: fs, packages: make(map[string]*core.PackageInfo)}
}

func resErr(kind core.ResolveErrorKind, specifier, referrer, detail string) error {
	return &core.ResolveError{Kind: kind, Specifier: specifier, Referrer: referrer, Detail: detail}
}

// Resolve implements the top-level specifier classification from §4.2.
func (r *Resolver) Resolve(specifier, referrer string, mode core.ResolveMode) (core.ResolvedModule, error) {
	if specifier == "" {
		return core.ResolvedModule{}, resErr(core.ErrEmptySpecifier, specifier, referrer, "")
	}

	spec := strings.TrimPrefix(specifier, "file://")

	switch {
	case strings.HasPrefix(spec, "#"):
		return r.resolveImportsMap(spec, referrer, mode)
	case isPathSpecifier(spec):
		return r.resolveAsPath(spec, referrer, mode)
	default:
		if r.fs.HasBundle() {
			if promoted, ok := r.promoteBareToPath(spec, referrer); ok {
				return r.resolveAsPath(promoted, referrer, mode)
			}
		}
		return r.resolvePackage(spec, referrer, mode)
	}
}

func isPathSpecifier(spec string) bool {
	if strings.HasPrefix(spec, "/") || strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") {
		return true
	}
	if len(spec) >= 2 && spec[1] == ':' && isDriveLetter(spec[0]) {
		return true
	}
	return false
}

func isDriveLetter(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

// promoteBareToPath checks whether a bare specifier names an existing
// bundle file, in which case §4.2 promotes it to a path specifier.
func (r *Resolver) promoteBareToPath(spec, referrer string) (string, bool) {
	candidate := vfs.Normalize(spec)
	if r.fs.Exists(candidate) && !r.fs.IsDir(candidate) {
		return "./" + candidate, true
	}
	return "", false
}

func dirname(p string) string {
	d := path.Dir(vfs.Normalize(p))
	if d == "." {
		return ""
	}
	return d
}

func (r *Resolver) resolveAsPath(spec, referrer string, mode core.ResolveMode) (core.ResolvedModule, error) {
	base := dirname(referrer)
	joined := vfs.Normalize(path.Join("/", base, spec))

	if canonical, format, ok := r.tryAsFile(joined, mode); ok {
		return core.ResolvedModule{CanonicalPath: canonical, InBundle: r.fs.HasBundle(), Format: format}, nil
	}

	return r.tryAsDirectory(joined, spec, referrer, mode)
}

func (r *Resolver) tryAsFile(p string, mode core.ResolveMode) (string, core.ModuleFormat, bool) {
	if r.fs.Exists(p) && !r.fs.IsDir(p) {
		return p, detectFormat(p, r.nearestPackageType(p)), true
	}
	if mode == core.ModeImport {
		return "", 0, false
	}
	for _, ext := range requireExtensions {
		candidate := p + ext
		if r.fs.Exists(candidate) && !r.fs.IsDir(candidate) {
			return candidate, detectFormat(candidate, r.nearestPackageType(candidate)), true
		}
	}
	return "", 0, false
}

func (r *Resolver) tryAsDirectory(joined, spec, referrer string, mode core.ResolveMode) (core.ResolvedModule, error) {
	if !r.fs.IsDir(joined) {
		return core.ResolvedModule{}, resErr(core.ErrPackageNotFound, spec, referrer, "no file or directory match")
	}

	pkgJSONPath := path.Join(joined, "package.json")
	if r.fs.Exists(pkgJSONPath) {
		pkg, err := r.loadPackageInfo(joined)
		if err == nil {
			if mode == core.ModeImport && pkg.Exports != nil {
				return r.resolveExportsTarget(pkg, joined, ".", spec, referrer, mode)
			}
			if pkg.Main != "" {
				mainPath := vfs.Normalize(path.Join(joined, pkg.Main))
				if canonical, format, ok := r.tryAsFile(mainPath, core.ModeRequire); ok {
					return core.ResolvedModule{CanonicalPath: canonical, InBundle: r.fs.HasBundle(), Format: format}, nil
				}
			}
		}
	}

	if mode == core.ModeImport {
		return core.ResolvedModule{}, resErr(core.ErrUnsupportedDirectoryImport, spec, referrer, joined)
	}

	indexPath := path.Join(joined, "index")
	if canonical, format, ok := r.tryAsFile(indexPath, core.ModeRequire); ok {
		return core.ResolvedModule{CanonicalPath: canonical, InBundle: r.fs.HasBundle(), Format: format}, nil
	}
	return core.ResolvedModule{}, resErr(core.ErrPackageNotFound, spec, referrer, "no index in "+joined)
}

func detectFormat(p string, pkgType string) core.ModuleFormat {
	switch {
	case strings.HasSuffix(p, ".mjs"), strings.HasSuffix(p, ".mts"):
		return core.FormatESM
	case strings.HasSuffix(p, ".cjs"), strings.HasSuffix(p, ".cts"):
		return core.FormatCJS
	case strings.HasSuffix(p, ".json"):
		return core.FormatJSON
	case strings.HasSuffix(p, ".js"), strings.HasSuffix(p, ".ts"), strings.HasSuffix(p, ".tsx"):
		if pkgType == "module" {
			return core.FormatESM
		}
		return core.FormatCJS
	default:
		return core.FormatCJS
	}
}

func (r *Resolver) nearestPackageType(filePath string) string {
	pkg := r.findNearestPackage(dirname(filePath))
	if pkg == nil {
		return ""
	}
	return pkg.Type
}
