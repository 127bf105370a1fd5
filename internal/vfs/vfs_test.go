package vfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mystral-js/mystral/internal/bundle"
)

func TestFsPassthroughWhenNoBundle(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "main.js"), []byte("1"), 0o644); err != nil {
		t.Fatal(err)
	}
	v := New(root)

	if !v.Exists("main.js") {
		t.Fatalf("expected main.js to exist on disk")
	}
	data, err := v.Read("main.js")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "1" {
		t.Fatalf("data = %q", data)
	}
	if _, err := v.Read("missing.js"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBundlePrecedesFilesystem(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "main.js"), []byte("fs-copy"), 0o644); err != nil {
		t.Fatal(err)
	}

	blob := bundle.Build("main.js", []bundle.File{
		{Path: "main.js", Data: []byte("bundle-copy")},
		{Path: "lib/util.js", Data: []byte("util")},
	})
	parsed, dataAt, err := bundle.Discover(blob)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	v := New(root)
	v.attach(parsed, blob, dataAt)

	data, err := v.Read("main.js")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "bundle-copy" {
		t.Fatalf("data = %q, want bundle entry to take precedence over fs copy", data)
	}
	if v.EntryScript() != "main.js" {
		t.Fatalf("EntryScript = %q", v.EntryScript())
	}
}

func TestBundleDirectoryExistenceIsSynthesized(t *testing.T) {
	blob := bundle.Build("src/index.js", []bundle.File{
		{Path: "src/index.js", Data: []byte("1")},
		{Path: "src/lib/helper.js", Data: []byte("2")},
	})
	parsed, dataAt, err := bundle.Discover(blob)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	v := New(t.TempDir())
	v.attach(parsed, blob, dataAt)

	if !v.IsDir("src") {
		t.Fatalf("expected src to be synthesized as a directory")
	}
	if !v.IsDir("src/lib") {
		t.Fatalf("expected src/lib to be synthesized as a directory")
	}
	if v.IsDir("src/index.js") {
		t.Fatalf("a file entry must not also report as a directory")
	}
	if v.IsDir("nonexistent") {
		t.Fatalf("nonexistent path should not be a directory")
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"./a/b":        "a/b",
		"a/../b":       "b",
		"/a/b":         "a/b",
		"a\\b":         "a/b",
		"":             "",
		".":            "",
		"a/./b/../c":   "a/c",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}
