// Package vfs implements the embedded virtual filesystem described in
// spec.md §4.1: reads are served from an appended bundle when one is
// present, falling back to the real filesystem otherwise.
package vfs

import (
	"errors"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mystral-js/mystral/internal/bundle"
)

// ErrNotFound is returned by Read when neither the bundle nor the real
// filesystem has the requested path. All VFS operations are total: they
// never panic and never return an unclassified error for a missing path.
var ErrNotFound = errors.New("vfs: not found")

// VFS serves file reads from an optional embedded bundle, falling back to
// the OS filesystem. A VFS with no bundle behaves as a thin pass-through
// to the OS, rooted at Root.
type VFS struct {
	Root   string
	bundle *bundle.Parsed
	blob   []byte // whole bundle image; file bytes are blob[dataAt+off : ...]
	dataAt uint64
	index  map[string]bundle.IndexEntry
}

// New creates a VFS rooted at root with no bundle attached.
func New(root string) *VFS {
	return &VFS{Root: root}
}

// Discover attempts bundle discovery in the order specified by spec.md
// §4.1: (1) a trailing blob in the currently-running executable, (2) the
// path named by bundleEnvOverride, (3) a file named game.bundle adjacent
// to the executable (and, on macOS, inside its Resources directory). At
// most one of these is used; the first that parses successfully wins.
func Discover(root, bundleEnvOverride string) (*VFS, error) {
	v := New(root)

	if exePath, err := os.Executable(); err == nil {
		if data, err := os.ReadFile(exePath); err == nil {
			if parsed, dataAt, err := bundle.Discover(data); err == nil {
				v.attach(parsed, data, dataAt)
				return v, nil
			}
		}
	}

	if bundleEnvOverride != "" {
		if data, err := os.ReadFile(bundleEnvOverride); err == nil {
			if parsed, dataAt, err := bundle.Discover(data); err == nil {
				v.attach(parsed, data, dataAt)
				return v, nil
			}
		}
	}

	for _, candidate := range adjacentBundleCandidates() {
		data, err := os.ReadFile(candidate)
		if err != nil {
			continue
		}
		if parsed, dataAt, err := bundle.Discover(data); err == nil {
			v.attach(parsed, data, dataAt)
			return v, nil
		}
	}

	return v, nil
}

func adjacentBundleCandidates() []string {
	exePath, err := os.Executable()
	if err != nil {
		return nil
	}
	dir := filepath.Dir(exePath)
	candidates := []string{filepath.Join(dir, "game.bundle")}
	if runtime.GOOS == "darwin" {
		candidates = append(candidates, filepath.Join(dir, "..", "Resources", "game.bundle"))
	}
	return candidates
}

func (v *VFS) attach(parsed *bundle.Parsed, blob []byte, dataAt uint64) {
	v.bundle = parsed
	v.blob = blob
	v.dataAt = dataAt
	v.index = make(map[string]bundle.IndexEntry, len(parsed.Files))
	for _, f := range parsed.Files {
		v.index[f.Path] = f
	}
}

// HasBundle reports whether a bundle was attached during Discover.
func (v *VFS) HasBundle() bool { return v.bundle != nil }

// EntryScript returns the bundle's designated entry path, or "" if there
// is no bundle.
func (v *VFS) EntryScript() string {
	if v.bundle == nil {
		return ""
	}
	return v.bundle.EntryPath
}

// Normalize collapses a path to forward slashes with "." and ".." segments
// resolved, and with any leading slash stripped in every mode, matching
// the canonical-path rule in spec.md §3.
func Normalize(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	cleaned := path.Clean("/" + p)
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "." {
		cleaned = ""
	}
	return cleaned
}

// Read returns the file's contents, searching the bundle first.
func (v *VFS) Read(p string) ([]byte, error) {
	norm := Normalize(p)
	if v.bundle != nil {
		if entry, ok := v.index[norm]; ok {
			start := v.dataAt + entry.DataOffset
			end := start + entry.DataSize
			if end > uint64(len(v.blob)) {
				return nil, ErrNotFound
			}
			out := make([]byte, entry.DataSize)
			copy(out, v.blob[start:end])
			return out, nil
		}
	}
	fsPath := v.toFsPath(norm)
	data, err := os.ReadFile(fsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Exists reports whether p names a file or directory.
func (v *VFS) Exists(p string) bool {
	norm := Normalize(p)
	if v.bundle != nil {
		if _, ok := v.index[norm]; ok {
			return true
		}
		if v.bundleDirExists(norm) {
			return true
		}
		if norm != "" {
			return false
		}
	}
	_, err := os.Stat(v.toFsPath(norm))
	return err == nil
}

// IsDir reports whether p names a directory. In bundle mode, directory
// existence is synthesized from the presence of any entry under "p/"
// (including an implied package.json or index.{js,mjs,cjs}), per spec §4.1.
func (v *VFS) IsDir(p string) bool {
	norm := Normalize(p)
	if v.bundle != nil {
		if _, ok := v.index[norm]; ok {
			return false // a file entry shadows directory-ness
		}
		if v.bundleDirExists(norm) {
			return true
		}
		if norm != "" {
			return false
		}
	}
	info, err := os.Stat(v.toFsPath(norm))
	return err == nil && info.IsDir()
}

func (v *VFS) bundleDirExists(norm string) bool {
	prefix := norm
	if prefix != "" {
		prefix += "/"
	}
	for p := range v.index {
		if strings.HasPrefix(p, prefix) && p != prefix {
			return true
		}
	}
	return false
}

func (v *VFS) toFsPath(norm string) string {
	if norm == "" {
		return v.Root
	}
	if filepath.IsAbs(norm) {
		return norm
	}
	return filepath.Join(v.Root, filepath.FromSlash(norm))
}
