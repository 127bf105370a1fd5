package resolver

import (
	"encoding/json"
	"path"
	"strings"

	"github.com/mystral-js/mystral/internal/core"
	"github.com/mystral-js/mystral/internal/vfs"
)

// resolvePackage implements the package-specifier algorithm: split into
// name + subpath, walk node_modules upward, then dispatch to the exports
// algorithm or a legacy main/subpath fallback.
func (r *Resolver) resolvePackage(spec, referrer string, mode core.ResolveMode) (core.ResolvedModule, error) {
	name, subpath := splitPackageSpecifier(spec)

	pkgRoot := r.findPackageRoot(dirname(referrer), name)
	if pkgRoot == "" {
		return core.ResolvedModule{}, resErr(core.ErrPackageNotFound, spec, referrer, name)
	}

	pkg, err := r.loadPackageInfo(pkgRoot)
	if err != nil {
		return core.ResolvedModule{}, resErr(core.ErrPackageNotFound, spec, referrer, err.Error())
	}

	if pkg.Exports != nil {
		return r.resolveExportsTarget(pkg, pkgRoot, subpath, spec, referrer, mode)
	}

	if subpath != "." {
		rel := vfs.Normalize(path.Join(pkgRoot, strings.TrimPrefix(subpath, "./")))
		if canonical, format, ok := r.tryAsFile(rel, mode); ok {
			return core.ResolvedModule{CanonicalPath: canonical, InBundle: r.fs.HasBundle(), Format: format}, nil
		}
		return core.ResolvedModule{}, resErr(core.ErrNoExportMatch, spec, referrer, subpath)
	}

	main := pkg.Main
	if main == "" {
		main = "index.js"
	}
	mainPath := vfs.Normalize(path.Join(pkgRoot, main))
	if canonical, format, ok := r.tryAsFile(mainPath, core.ModeRequire); ok {
		return core.ResolvedModule{CanonicalPath: canonical, InBundle: r.fs.HasBundle(), Format: format}, nil
	}
	return core.ResolvedModule{}, resErr(core.ErrPackageNotFound, spec, referrer, "no main in "+pkgRoot)
}

// splitPackageSpecifier separates a package specifier into its name
// (honoring the scoped @scope/name form) and subpath ("." if absent).
func splitPackageSpecifier(spec string) (name, subpath string) {
	parts := strings.SplitN(spec, "/", 2)
	if strings.HasPrefix(spec, "@") && len(parts) == 2 {
		scopedParts := strings.SplitN(parts[1], "/", 2)
		name = parts[0] + "/" + scopedParts[0]
		if len(scopedParts) == 2 {
			return name, "./" + scopedParts[1]
		}
		return name, "."
	}
	name = parts[0]
	if len(parts) == 2 {
		return name, "./" + parts[1]
	}
	return name, "."
}

// findPackageRoot walks from dir upward looking for node_modules/<name>.
func (r *Resolver) findPackageRoot(dir, name string) string {
	for {
		candidate := vfs.Normalize(path.Join(dir, "node_modules", name))
		if r.fs.IsDir(candidate) {
			return candidate
		}
		if dir == "" {
			return ""
		}
		parent := path.Dir(dir)
		if parent == "." {
			parent = ""
		}
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// findNearestPackage walks upward from dir looking for the nearest
// package.json, used for ESM/CJS format determination and imports-map
// resolution.
func (r *Resolver) findNearestPackage(dir string) *core.PackageInfo {
	for {
		pkgPath := path.Join(dir, "package.json")
		if r.fs.Exists(pkgPath) {
			if pkg, err := r.loadPackageInfo(dir); err == nil {
				return pkg
			}
		}
		if dir == "" {
			return nil
		}
		parent := path.Dir(dir)
		if parent == "." {
			parent = ""
		}
		if parent == dir {
			return nil
		}
		dir = parent
	}
}

func (r *Resolver) loadPackageInfo(rootDir string) (*core.PackageInfo, error) {
	if cached, ok := r.packages[rootDir]; ok {
		return cached, nil
	}
	data, err := r.fs.Read(path.Join(rootDir, "package.json"))
	if err != nil {
		return nil, err
	}

	var raw struct {
		Name    string          `json:"name"`
		Type    string          `json:"type"`
		Main    string          `json:"main"`
		Exports json.RawMessage `json:"exports"`
		Imports json.RawMessage `json:"imports"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	pkg := &core.PackageInfo{RootPath: rootDir, Name: raw.Name, Type: raw.Type, Main: raw.Main}
	if len(raw.Exports) > 0 {
		var v any
		if err := json.Unmarshal(raw.Exports, &v); err == nil {
			pkg.Exports = v
		}
	}
	if len(raw.Imports) > 0 {
		var v any
		if err := json.Unmarshal(raw.Imports, &v); err == nil {
			pkg.Imports = v
		}
	}
	r.packages[rootDir] = pkg
	return pkg, nil
}
