package loader

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// transformState accumulates one file's transformed lines; importSeq
// disambiguates the synthetic require() temporaries emitted for each import
// statement within that file.
type transformState struct {
	out       []string
	anyExport bool
	importSeq int
}

var (
	reImportDefault          = regexp.MustCompile(`^import\s+([A-Za-z_$][\w$]*)\s+from\s+(['"].*['"]);?\s*$`)
	reImportNamespace        = regexp.MustCompile(`^import\s+\*\s+as\s+([A-Za-z_$][\w$]*)\s+from\s+(['"].*['"]);?\s*$`)
	reImportNamed            = regexp.MustCompile(`^import\s+\{([^}]*)\}\s+from\s+(['"].*['"]);?\s*$`)
	reImportDefaultNamed     = regexp.MustCompile(`^import\s+([A-Za-z_$][\w$]*)\s*,\s*\{([^}]*)\}\s+from\s+(['"].*['"]);?\s*$`)
	reImportDefaultNamespace = regexp.MustCompile(`^import\s+([A-Za-z_$][\w$]*)\s*,\s*\*\s+as\s+([A-Za-z_$][\w$]*)\s+from\s+(['"].*['"]);?\s*$`)
	reImportBare             = regexp.MustCompile(`^import\s+(['"].*['"]);?\s*$`)

	reExportDefaultFuncOrClass = regexp.MustCompile(`^export\s+default\s+(function|class)\s*(\*?)\s*([A-Za-z_$][\w$]*)?`)
	reExportDefaultExpr        = regexp.MustCompile(`^export\s+default\s+(.+?);?\s*$`)
	reExportDecl               = regexp.MustCompile(`^export\s+(const|let|var)\s+([A-Za-z_$][\w$]*)\b(.*)$`)
	reExportFuncOrClass        = regexp.MustCompile(`^export\s+(function|class)\s*(\*?)\s*([A-Za-z_$][\w$]*)`)
	reExportNamedFrom          = regexp.MustCompile(`^export\s+\{([^}]*)\}\s+from\s+(['"].*['"]);?\s*$`)
	reExportNamed              = regexp.MustCompile(`^export\s+\{([^}]*)\};?\s*$`)
	reExportStarFrom           = regexp.MustCompile(`^export\s+\*\s+from\s+(['"].*['"]);?\s*$`)
)

// Transform applies the textual ESM→CJS rewrite from spec.md §4.3: it is a
// line-oriented pass recognizing a fixed set of import/export forms and
// emitting equivalent CommonJS. It is not a general ESM parser — modules
// requiring fuller semantics must run on an engine with native ESM.
func Transform(source string) string {
	st := &transformState{}
	lines := strings.Split(source, "\n")
	for _, line := range lines {
		st.rewriteLine(line)
	}

	if st.anyExport {
		out := make([]string, 0, len(st.out)+1)
		out = append(out, "exports.__esModule = true;")
		out = append(out, st.out...)
		return strings.Join(out, "\n")
	}
	return strings.Join(st.out, "\n")
}

func (st *transformState) emit(line string) { st.out = append(st.out, line) }

func (st *transformState) rewriteLine(line string) {
	trimmed := strings.TrimSpace(line)

	if m := reImportDefaultNamed.FindStringSubmatch(trimmed); m != nil {
		tmp := st.nextTemp()
		st.emit(fmt.Sprintf("const %s = require(%s);", tmp, m[3]))
		st.emit(fmt.Sprintf("const %s = %s && %s.__esModule ? %s.default : %s;", m[1], tmp, tmp, tmp, tmp))
		st.emit(destructureNamed(m[2], tmp))
		return
	}
	if m := reImportDefaultNamespace.FindStringSubmatch(trimmed); m != nil {
		tmp := st.nextTemp()
		st.emit(fmt.Sprintf("const %s = require(%s);", tmp, m[3]))
		st.emit(fmt.Sprintf("const %s = %s;", m[2], tmp))
		st.emit(fmt.Sprintf("const %s = %s && %s.__esModule ? %s.default : %s;", m[1], tmp, tmp, tmp, tmp))
		return
	}
	if m := reImportNamespace.FindStringSubmatch(trimmed); m != nil {
		st.emit(fmt.Sprintf("const %s = require(%s);", m[1], m[2]))
		return
	}
	if m := reImportNamed.FindStringSubmatch(trimmed); m != nil {
		tmp := st.nextTemp()
		st.emit(fmt.Sprintf("const %s = require(%s);", tmp, m[2]))
		st.emit(destructureNamed(m[1], tmp))
		return
	}
	if m := reImportDefault.FindStringSubmatch(trimmed); m != nil {
		tmp := st.nextTemp()
		st.emit(fmt.Sprintf("const %s = require(%s);", tmp, m[2]))
		st.emit(fmt.Sprintf("const %s = %s && %s.__esModule ? %s.default : %s;", m[1], tmp, tmp, tmp, tmp))
		return
	}
	if m := reImportBare.FindStringSubmatch(trimmed); m != nil {
		st.emit(fmt.Sprintf("require(%s);", m[1]))
		return
	}

	if m := reExportDefaultFuncOrClass.FindStringSubmatch(trimmed); m != nil && m[3] != "" {
		st.anyExport = true
		st.emit(strings.TrimPrefix(trimmed, "export default "))
		st.emit(fmt.Sprintf("exports.default = %s;", m[3]))
		return
	}
	if m := reExportDefaultExpr.FindStringSubmatch(trimmed); m != nil {
		st.anyExport = true
		st.emit(fmt.Sprintf("exports.default = %s;", m[1]))
		return
	}
	if m := reExportFuncOrClass.FindStringSubmatch(trimmed); m != nil {
		st.anyExport = true
		st.emit(strings.TrimPrefix(trimmed, "export "))
		st.emit(fmt.Sprintf("exports.%s = %s;", m[3], m[3]))
		return
	}
	if m := reExportDecl.FindStringSubmatch(trimmed); m != nil {
		st.anyExport = true
		st.emit(strings.TrimPrefix(trimmed, "export "))
		st.emit(fmt.Sprintf("exports.%s = %s;", m[2], m[2]))
		return
	}
	if m := reExportNamedFrom.FindStringSubmatch(trimmed); m != nil {
		st.anyExport = true
		tmp := st.nextTemp()
		st.emit(fmt.Sprintf("const %s = require(%s);", tmp, m[2]))
		for _, binding := range splitBindings(m[1]) {
			local, exported := splitAsClause(binding)
			st.emit(fmt.Sprintf("exports.%s = %s.%s;", exported, tmp, local))
		}
		return
	}
	if m := reExportNamed.FindStringSubmatch(trimmed); m != nil {
		st.anyExport = true
		for _, binding := range splitBindings(m[1]) {
			local, exported := splitAsClause(binding)
			st.emit(fmt.Sprintf("exports.%s = %s;", exported, local))
		}
		return
	}
	if m := reExportStarFrom.FindStringSubmatch(trimmed); m != nil {
		st.anyExport = true
		st.emit(fmt.Sprintf("Object.assign(exports, require(%s));", m[1]))
		return
	}

	st.emit(line)
}

func (st *transformState) nextTemp() string {
	st.importSeq++
	return "__mystral_m" + strconv.Itoa(st.importSeq)
}

// destructureNamed turns "a, b as c" into "const { a, b: c } = require(...)"-
// shaped output given the already-evaluated require() temp.
func destructureNamed(bindings, tmp string) string {
	var parts []string
	for _, b := range splitBindings(bindings) {
		sourceKey, localAlias := splitAsClause(b)
		if sourceKey == localAlias {
			parts = append(parts, sourceKey)
		} else {
			parts = append(parts, sourceKey+": "+localAlias)
		}
	}
	return fmt.Sprintf("const { %s } = %s;", strings.Join(parts, ", "), tmp)
}

func splitBindings(list string) []string {
	raw := strings.Split(list, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r != "" {
			out = append(out, r)
		}
	}
	return out
}

// splitAsClause parses "a as c" into (a, c); for an import binding the
// first element is the source name and the second is the local alias, for
// an export binding it is the reverse (local, exported) — callers pass the
// raw "a" / "a as c" token and read the two results according to context.
func splitAsClause(token string) (first, second string) {
	parts := strings.Fields(token)
	if len(parts) == 3 && parts[1] == "as" {
		return parts[0], parts[2]
	}
	return token, token
}
