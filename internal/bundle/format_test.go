package bundle

import (
	"bytes"
	"testing"
)

func TestBuildDiscoverRoundTrip(t *testing.T) {
	files := []File{
		{Path: "main.js", Data: []byte("console.log(1)")},
		{Path: "lib/util.js", Data: []byte("module.exports = {}")},
	}
	blob := Build("main.js", files)

	parsed, dataStart, err := Discover(blob)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if parsed.EntryPath != "main.js" {
		t.Fatalf("entry path = %q", parsed.EntryPath)
	}
	if len(parsed.Files) != 2 {
		t.Fatalf("file count = %d", len(parsed.Files))
	}
	for _, want := range files {
		var found *IndexEntry
		for i := range parsed.Files {
			if parsed.Files[i].Path == want.Path {
				found = &parsed.Files[i]
			}
		}
		if found == nil {
			t.Fatalf("missing entry for %q", want.Path)
		}
		got := blob[dataStart+found.DataOffset : dataStart+found.DataOffset+found.DataSize]
		if !bytes.Equal(got, want.Data) {
			t.Errorf("data for %q = %q, want %q", want.Path, got, want.Data)
		}
	}
}

func TestBuildWithExecutablePrefix(t *testing.T) {
	exe := []byte("#!fake-executable-bytes")
	files := []File{{Path: "a.js", Data: []byte("1")}}
	tail := Build("a.js", files)
	whole := append(append([]byte{}, exe...), tail...)

	parsed, dataStart, err := Discover(whole)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if parsed.EntryPath != "a.js" {
		t.Fatalf("entry = %q", parsed.EntryPath)
	}
	if dataStart != uint64(len(exe)) {
		t.Fatalf("dataStart = %d, want %d", dataStart, len(exe))
	}
}

func TestFooterTruncationFallsBackCleanly(t *testing.T) {
	files := []File{{Path: "a.js", Data: []byte("1")}}
	blob := Build("a.js", files)

	for i := 1; i <= FooterSize; i++ {
		truncated := blob[:len(blob)-i]
		if _, _, err := Discover(truncated); err == nil {
			t.Fatalf("truncating %d bytes of footer should fail discovery, got success", i)
		}
	}
}

func TestDuplicatePathRejected(t *testing.T) {
	// Build does not deduplicate, so packing two files under one path yields
	// an index with a duplicate path; Discover must reject it rather than
	// silently picking one.
	files := []File{{Path: "dup.js", Data: []byte("a")}, {Path: "dup.js", Data: []byte("b")}}
	blob := Build("dup.js", files)
	if _, _, err := Discover(blob); err == nil {
		t.Fatalf("expected duplicate-path error")
	}
}
