// Package bundle implements the bit-exact single-binary bundle envelope
// described in spec.md §6: an optional runtime-executable prefix, followed
// by concatenated file data, an index block, and a fixed 28-byte footer.
package bundle

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Magic is the 8-byte footer magic identifying a mystral bundle.
const Magic = "MYSBNDL1"

// Version is the only index/footer version this package emits or accepts.
const Version uint32 = 1

// FooterSize is the fixed size of the trailing footer, in bytes.
const FooterSize = 8 + 4 + 4 + 8 // magic + version + reserved + index_size

// File is one entry to pack into a bundle: its bundle-relative path and
// its raw content.
type File struct {
	Path string
	Data []byte
}

// IndexEntry mirrors BundleFileEntry (spec.md §3) as it appears on disk.
type IndexEntry struct {
	Path       string
	DataOffset uint64
	DataSize   uint64
}

// Footer is the parsed fixed-size trailer.
type Footer struct {
	Version   uint32
	IndexSize uint64
}

// Build serializes the concatenated file-data region and the index block
// for the given entry path and files, in insertion order. It returns the
// data region followed immediately by the index block and footer — i.e.
// everything after the (optional) runtime-executable prefix.
func Build(entryPath string, files []File) []byte {
	var data bytes.Buffer
	offsets := make([]uint64, len(files))
	for i, f := range files {
		offsets[i] = uint64(data.Len())
		data.Write(f.Data)
	}

	var index bytes.Buffer
	writeU32(&index, Version)
	writeU32(&index, uint32(len(files)))
	writeU32(&index, uint32(len(entryPath)))
	writeU32(&index, 0) // reserved
	index.WriteString(entryPath)
	for i, f := range files {
		writeU32(&index, uint32(len(f.Path)))
		writeU32(&index, 0) // reserved
		writeU64(&index, offsets[i])
		writeU64(&index, uint64(len(f.Data)))
		index.WriteString(f.Path)
	}

	var out bytes.Buffer
	out.Write(data.Bytes())
	out.Write(index.Bytes())
	writeFooter(&out, uint64(index.Len()))
	return out.Bytes()
}

// Parsed is a fully decoded bundle: its designated entry path and the
// file index, with offsets relative to the start of the data region.
type Parsed struct {
	EntryPath      string
	Files          []IndexEntry
	DataRegionSize uint64
}

// Discover locates and parses the footer + index block within buf, which
// must end with the data region, index block, and footer. Any bytes before
// the data region (such as a runtime-executable prefix) are left in place;
// the returned offset is where the data region starts within buf.
func Discover(buf []byte) (*Parsed, uint64, error) {
	if len(buf) < FooterSize {
		return nil, 0, fmt.Errorf("bundle: buffer too small for footer")
	}
	footerBytes := buf[len(buf)-FooterSize:]
	footer, err := parseFooter(footerBytes)
	if err != nil {
		return nil, 0, err
	}
	if uint64(len(buf)) < FooterSize+footer.IndexSize {
		return nil, 0, fmt.Errorf("bundle: index_size exceeds buffer")
	}
	indexStart := uint64(len(buf)) - FooterSize - footer.IndexSize
	index := buf[indexStart : indexStart+footer.IndexSize]

	parsed, dataSizeTotal, err := parseIndex(index)
	if err != nil {
		return nil, 0, err
	}
	if indexStart < dataSizeTotal {
		return nil, 0, fmt.Errorf("bundle: data region underflows buffer")
	}
	dataRegionStart := indexStart - dataSizeTotal
	parsed.DataRegionSize = dataSizeTotal
	return parsed, dataRegionStart, nil
}

func parseIndex(index []byte) (*Parsed, uint64, error) {
	r := bytes.NewReader(index)
	version, err := readU32(r)
	if err != nil {
		return nil, 0, err
	}
	if version != Version {
		return nil, 0, fmt.Errorf("bundle: unsupported index version %d", version)
	}
	fileCount, err := readU32(r)
	if err != nil {
		return nil, 0, err
	}
	entryLen, err := readU32(r)
	if err != nil {
		return nil, 0, err
	}
	if _, err := readU32(r); err != nil { // reserved
		return nil, 0, err
	}
	entryPath, err := readString(r, int(entryLen))
	if err != nil {
		return nil, 0, err
	}

	var totalSize uint64
	files := make([]IndexEntry, 0, fileCount)
	seen := make(map[string]bool, fileCount)
	for i := uint32(0); i < fileCount; i++ {
		pathLen, err := readU32(r)
		if err != nil {
			return nil, 0, err
		}
		if _, err := readU32(r); err != nil { // reserved
			return nil, 0, err
		}
		offset, err := readU64(r)
		if err != nil {
			return nil, 0, err
		}
		size, err := readU64(r)
		if err != nil {
			return nil, 0, err
		}
		path, err := readString(r, int(pathLen))
		if err != nil {
			return nil, 0, err
		}
		if seen[path] {
			return nil, 0, fmt.Errorf("bundle: duplicate path %q", path)
		}
		seen[path] = true
		if end := offset + size; end > totalSize {
			totalSize = end
		}
		files = append(files, IndexEntry{Path: path, DataOffset: offset, DataSize: size})
	}

	return &Parsed{EntryPath: entryPath, Files: files}, totalSize, nil
}

func writeFooter(w *bytes.Buffer, indexSize uint64) {
	w.WriteString(Magic)
	writeU32(w, Version)
	writeU32(w, 0) // reserved
	writeU64(w, indexSize)
}

func parseFooter(b []byte) (Footer, error) {
	if len(b) != FooterSize {
		return Footer{}, fmt.Errorf("bundle: malformed footer length")
	}
	if string(b[:8]) != Magic {
		return Footer{}, fmt.Errorf("bundle: bad magic")
	}
	version := binary.LittleEndian.Uint32(b[8:12])
	// b[12:16] is reserved.
	indexSize := binary.LittleEndian.Uint64(b[16:24])
	if version != Version {
		return Footer{}, fmt.Errorf("bundle: unsupported footer version %d", version)
	}
	return Footer{Version: version, IndexSize: indexSize}, nil
}

func writeU32(w *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

func writeU64(w *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.Write(b[:])
}

func readU32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, fmt.Errorf("bundle: truncated u32: %w", err)
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readU64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, fmt.Errorf("bundle: truncated u64: %w", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func readString(r *bytes.Reader, n int) (string, error) {
	if n == 0 {
		return "", nil
	}
	b := make([]byte, n)
	if _, err := r.Read(b); err != nil {
		return "", fmt.Errorf("bundle: truncated string: %w", err)
	}
	return string(b), nil
}
