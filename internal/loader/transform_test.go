package loader

import (
	"strings"
	"testing"
)

func contains(t *testing.T, got, want string) {
	t.Helper()
	if !strings.Contains(got, want) {
		t.Errorf("output %q does not contain %q", got, want)
	}
}

func TestTransformImportDefault(t *testing.T) {
	out := Transform(`import foo from "./foo.js";`)
	contains(t, out, `const foo = __mystral_m1 && __mystral_m1.__esModule ? __mystral_m1.default : __mystral_m1;`)
	contains(t, out, `require("./foo.js")`)
}

func TestTransformImportNamespace(t *testing.T) {
	out := Transform(`import * as foo from "./foo.js";`)
	if strings.TrimSpace(out) != `const foo = require("./foo.js");` {
		t.Fatalf("got %q", out)
	}
}

func TestTransformImportNamed(t *testing.T) {
	out := Transform(`import { a, b as c } from "./m.js";`)
	contains(t, out, `const { a, b: c } = __mystral_m1;`)
}

func TestTransformImportDefaultAndNamed(t *testing.T) {
	out := Transform(`import X, { a } from "./m.js";`)
	contains(t, out, `const X =`)
	contains(t, out, `{ a }`)
}

func TestTransformImportDefaultAndNamespace(t *testing.T) {
	out := Transform(`import X, * as N from "./m.js";`)
	contains(t, out, `const N =`)
	contains(t, out, `const X =`)
}

func TestTransformImportBare(t *testing.T) {
	out := Transform(`import "./polyfill.js";`)
	if strings.TrimSpace(out) != `require("./polyfill.js");` {
		t.Fatalf("got %q", out)
	}
}

func TestTransformExportDefaultExpr(t *testing.T) {
	out := Transform(`export default 42;`)
	contains(t, out, `exports.default = 42;`)
	contains(t, out, `exports.__esModule = true;`)
}

func TestTransformExportDefaultFunction(t *testing.T) {
	out := Transform(`export default function f() {}`)
	contains(t, out, `function f() {}`)
	contains(t, out, `exports.default = f;`)
	if strings.Contains(out, "export default") {
		t.Fatalf("expected leading 'export default' to be stripped, got %q", out)
	}
}

func TestTransformExportConst(t *testing.T) {
	out := Transform(`export const x = 1;`)
	contains(t, out, `const x = 1;`)
	contains(t, out, `exports.x = x;`)
}

func TestTransformExportFunction(t *testing.T) {
	out := Transform(`export function greet() {}`)
	contains(t, out, `function greet() {}`)
	contains(t, out, `exports.greet = greet;`)
}

func TestTransformExportNamed(t *testing.T) {
	out := Transform(`export { a, b as c };`)
	contains(t, out, `exports.a = a;`)
	contains(t, out, `exports.c = b;`)
}

func TestTransformExportNamedFrom(t *testing.T) {
	out := Transform(`export { a } from "./m.js";`)
	contains(t, out, `require("./m.js")`)
	contains(t, out, `exports.a =`)
}

func TestTransformExportStarFrom(t *testing.T) {
	out := Transform(`export * from "./m.js";`)
	contains(t, out, `Object.assign(exports, require("./m.js"));`)
}

func TestTransformNoExportOmitsEsModuleHeader(t *testing.T) {
	out := Transform("const x = 1;\nconsole.log(x);")
	if strings.Contains(out, "__esModule") {
		t.Fatalf("expected no __esModule header when no export form is present, got %q", out)
	}
}

func TestTransformPreservesNonImportExportLines(t *testing.T) {
	out := Transform("const x = 1;\nfunction f() { return x; }")
	if !strings.Contains(out, "const x = 1;") || !strings.Contains(out, "function f() { return x; }") {
		t.Fatalf("expected ordinary lines to pass through unchanged, got %q", out)
	}
}
