package resolver

import (
	"path"
	"strings"

	"github.com/mystral-js/mystral/internal/core"
	"github.com/mystral-js/mystral/internal/vfs"
)

// conditionOrder returns the ordered condition list for a resolve mode,
// per spec.md §4.2.
func conditionOrder(mode core.ResolveMode) []string {
	if mode == core.ModeImport {
		return []string{"import", "node", "default"}
	}
	return []string{"require", "node", "default"}
}

func isSubpathKey(key string) bool {
	return strings.HasPrefix(key, ".") || strings.HasPrefix(key, "/") || strings.HasPrefix(key, "#")
}

// resolveExportsTarget resolves subpath against pkg.Exports and joins the
// result onto pkgRoot. "#" imports go through resolveImportsMap instead.
func (r *Resolver) resolveExportsTarget(pkg *core.PackageInfo, pkgRoot, subpath, spec, referrer string, mode core.ResolveMode) (core.ResolvedModule, error) {
	target, err := resolveMapEntry(pkg.Exports, subpath, conditionOrder(mode))
	if err != nil {
		return core.ResolvedModule{}, withContext(err, spec, referrer)
	}
	if target == "" {
		return core.ResolvedModule{}, resErr(core.ErrNoExportMatch, spec, referrer, subpath)
	}
	joined := vfs.Normalize(path.Join(pkgRoot, target))
	if canonical, format, ok := r.tryAsFile(joined, core.ModeRequire); ok {
		return core.ResolvedModule{CanonicalPath: canonical, InBundle: r.fs.HasBundle(), Format: format}, nil
	}
	return core.ResolvedModule{}, resErr(core.ErrNoExportMatch, spec, referrer, joined)
}

func withContext(err error, spec, referrer string) error {
	if re, ok := err.(*core.ResolveError); ok {
		re.Specifier = spec
		re.Referrer = referrer
		return re
	}
	return err
}

// resolveMapEntry is the shared exports/imports resolution algorithm: if
// map is a string or array, it is the (conditional, unkeyed) target set
// directly. If it is an object with subpath keys, pick the most specific
// matching pattern; otherwise treat it as a conditional set and resolve
// the first condition the mode offers.
func resolveMapEntry(m any, subpath string, conditions []string) (string, error) {
	switch v := m.(type) {
	case string:
		if subpath != "." {
			return "", &core.ResolveError{Kind: core.ErrNoExportMatch, Detail: "string export has no subpaths"}
		}
		return rejectNestedPattern(v)
	case []any:
		for _, alt := range v {
			if target, err := resolveMapEntry(alt, subpath, conditions); err == nil && target != "" {
				return target, nil
			}
		}
		return "", nil
	case map[string]any:
		hasSubpathKeys := false
		for k := range v {
			if isSubpathKey(k) {
				hasSubpathKeys = true
				break
			}
		}
		if hasSubpathKeys {
			return resolvePatternMap(v, subpath, conditions)
		}
		return resolveConditionalSet(v, conditions, subpath)
	case nil:
		return "", nil
	default:
		return "", &core.ResolveError{Kind: core.ErrInvalidExports, Detail: "unsupported exports value"}
	}
}

func resolveConditionalSet(m map[string]any, conditions []string, subpath string) (string, error) {
	for _, cond := range conditions {
		if val, ok := m[cond]; ok {
			return resolveMapEntry(val, subpath, conditions)
		}
	}
	if val, ok := m["default"]; ok {
		return resolveMapEntry(val, subpath, conditions)
	}
	return "", nil
}

// resolvePatternMap finds the most specific key matching subpath, allowing
// at most one "*" wildcard in both key and target, and substitutes the
// captured segment into the chosen target. A "*" inside a conditional
// (object) target is rejected as a nested pattern.
func resolvePatternMap(m map[string]any, subpath string, conditions []string) (string, error) {
	var bestKey string
	var bestCapture string
	var bestVal any
	found := false

	for k, v := range m {
		if !isSubpathKey(k) {
			continue
		}
		if k == subpath {
			bestKey, bestCapture, bestVal, found = k, "", v, true
			break
		}
		if capture, ok := matchPattern(k, subpath); ok {
			if !found || len(k) > len(bestKey) {
				bestKey, bestCapture, bestVal, found = k, capture, v, true
			}
		}
	}
	if !found {
		return "", nil
	}

	var target string
	if s, ok := bestVal.(string); ok {
		// A plain string target's "*" is the substitution slot below.
		target = s
	} else {
		t, err := resolveMapEntry(bestVal, ".", conditions)
		if err != nil {
			return "", err
		}
		target = t
	}
	if target == "" {
		return "", nil
	}
	if bestCapture != "" && strings.Contains(bestKey, "*") {
		target = strings.Replace(target, "*", bestCapture, 1)
	}
	return rejectNestedPattern(target)
}

// matchPattern matches a key containing exactly one "*" against subpath,
// returning the captured substring.
func matchPattern(key, subpath string) (string, bool) {
	idx := strings.Index(key, "*")
	if idx < 0 {
		return "", false
	}
	prefix, suffix := key[:idx], key[idx+1:]
	if !strings.HasPrefix(subpath, prefix) || !strings.HasSuffix(subpath, suffix) {
		return "", false
	}
	rest := subpath[len(prefix):]
	if len(suffix) > 0 {
		rest = rest[:len(rest)-len(suffix)]
	}
	return rest, true
}

func rejectNestedPattern(target string) (string, error) {
	if strings.Count(target, "*") > 0 {
		return "", &core.ResolveError{Kind: core.ErrInvalidExports, Detail: "nested pattern in resolved target: " + target}
	}
	return target, nil
}

// resolveImportsMap implements the `#specifier` algorithm: walk upward to
// the nearest package.json with an imports map and apply the same
// conditional/pattern resolution used for exports.
func (r *Resolver) resolveImportsMap(spec, referrer string, mode core.ResolveMode) (core.ResolvedModule, error) {
	pkg := r.findNearestPackage(dirname(referrer))
	if pkg == nil || pkg.Imports == nil {
		return core.ResolvedModule{}, resErr(core.ErrPackageNotFound, spec, referrer, "no imports map in scope")
	}
	target, err := resolveMapEntry(pkg.Imports, spec, conditionOrder(mode))
	if err != nil {
		return core.ResolvedModule{}, withContext(err, spec, referrer)
	}
	if target == "" {
		return core.ResolvedModule{}, resErr(core.ErrNoExportMatch, spec, referrer, spec)
	}
	if isPathSpecifier(target) {
		joined := vfs.Normalize(path.Join(pkg.RootPath, strings.TrimPrefix(target, "./")))
		if canonical, format, ok := r.tryAsFile(joined, core.ModeRequire); ok {
			return core.ResolvedModule{CanonicalPath: canonical, InBundle: r.fs.HasBundle(), Format: format}, nil
		}
		return core.ResolvedModule{}, resErr(core.ErrNoExportMatch, spec, referrer, joined)
	}
	return r.resolvePackage(target, referrer, mode)
}
