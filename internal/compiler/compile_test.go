package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mystral-js/mystral/internal/bundle"
	"github.com/mystral-js/mystral/internal/core"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestCompileWalksImportGraph(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "main.js"), `
import { helper } from "./lib/helper.js";
const other = require("./lib/other.js");
import "./style.css";
import fs from "node:fs";
helper();
`)
	writeFile(t, filepath.Join(root, "lib/helper.js"), `export function helper() {}`)
	writeFile(t, filepath.Join(root, "lib/other.js"), `module.exports = {};`)
	writeFile(t, filepath.Join(root, "style.css"), `body { color: red; }`)
	writeFile(t, filepath.Join(root, "package.json"), `{"name":"game"}`)

	exe := filepath.Join(root, "fake-exe")
	writeFile(t, exe, "EXEBYTES")

	out := filepath.Join(root, "out.bin")
	err := Compile(core.CompileOptions{
		Entry:   filepath.Join(root, "main.js"),
		Root:    root,
		Output:  out,
		ExePath: exe,
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile output: %v", err)
	}
	if string(data[:len("EXEBYTES")]) != "EXEBYTES" {
		t.Fatalf("output does not start with executable prefix")
	}

	parsed, _, err := bundle.Discover(data)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if parsed.EntryPath != "main.js" {
		t.Fatalf("entry path = %q", parsed.EntryPath)
	}

	want := map[string]bool{
		"main.js": false, "lib/helper.js": false, "lib/other.js": false,
		"package.json": false, "style.css": false,
	}
	for _, f := range parsed.Files {
		if _, ok := want[f.Path]; ok {
			want[f.Path] = true
		}
		if f.Path == "node:fs" {
			t.Fatalf("bare specifier node:fs should not be walked as an import")
		}
	}
	for p, found := range want {
		if !found {
			t.Errorf("expected bundled file %q not found", p)
		}
	}
}

func TestCompileBundleOnlySkipsExecutablePrefix(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "main.js"), `console.log("hi")`)

	out := filepath.Join(root, "out.bundle")
	err := Compile(core.CompileOptions{
		Entry:      filepath.Join(root, "main.js"),
		Root:       root,
		Output:     out,
		BundleOnly: true,
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if _, _, err := bundle.Discover(data); err != nil {
		t.Fatalf("Discover: %v", err)
	}
}

func TestCompileRejectsAssetEscapingRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "main.js"), `console.log("hi")`)

	outsideDir := t.TempDir()
	writeFile(t, filepath.Join(outsideDir, "asset.png"), "PNGDATA")

	rel, err := bundleRelative(root, outsideDir)
	if err == nil {
		t.Fatalf("expected bundleRelative to reject path outside root, got %q", rel)
	}
}

func TestExtractSpecifiers(t *testing.T) {
	src := `
import x from "./a.js";
import { y } from './b.js';
export * from "./c.js";
export { z } from "./d.js";
const m = require("./e.js");
import "bare-package";
`
	got := extractSpecifiers(src)
	want := []string{"./a.js", "./b.js", "./c.js", "./d.js", "./e.js", "bare-package"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("specifier %d = %q, want %q", i, got[i], want[i])
		}
	}
}
