package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"
)

// DefaultMaxEntryBytes bounds how much of a single entry Read will inflate.
const DefaultMaxEntryBytes int64 = 32 << 20

var (
	ErrUnreadable    = errors.New("archive: unreadable")
	ErrEntryNotFound = errors.New("archive: entry not found")
	ErrEntryTooLarge = errors.New("archive: entry exceeds size limit")
)

// Entry describes one file inside the archive.
type Entry struct {
	Name  string
	Size  int64 // uncompressed
	IsDir bool
}

// Base returns the entry's file name without directories.
func (e Entry) Base() string {
	return path.Base(e.Name)
}

// Noise reports macOS metadata entries that zip tools add alongside real files.
func (e Entry) Noise() bool {
	return strings.HasPrefix(e.Name, "__MACOSX/") || strings.HasPrefix(e.Base(), "._")
}

// Reader lists and extracts entries of an in-memory ZIP archive.
type Reader struct {
	zr       *zip.Reader
	files    map[string]*zip.File
	entries  []Entry
	maxEntry int64
}

// Open parses archive bytes. maxEntry <= 0 selects DefaultMaxEntryBytes.
func Open(data []byte, maxEntry int64) (*Reader, error) {
	if maxEntry <= 0 {
		maxEntry = DefaultMaxEntryBytes
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	r := &Reader{
		zr:       zr,
		files:    make(map[string]*zip.File, len(zr.File)),
		entries:  make([]Entry, 0, len(zr.File)),
		maxEntry: maxEntry,
	}
	for _, f := range zr.File {
		name := strings.ReplaceAll(f.Name, "\\", "/")
		r.files[name] = f
		r.entries = append(r.entries, Entry{
			Name:  name,
			Size:  int64(f.UncompressedSize64),
			IsDir: f.FileInfo().IsDir() || strings.HasSuffix(name, "/"),
		})
	}
	return r, nil
}

// Entries returns entries in archive order.
func (r *Reader) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Names returns every entry name, directories included.
func (r *Reader) Names() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.Name
	}
	return names
}

// Read extracts an entry's bytes.
func (r *Reader) Read(name string) ([]byte, error) {
	f, ok := r.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}
	if int64(f.UncompressedSize64) > r.maxEntry {
		return nil, fmt.Errorf("%w: %s", ErrEntryTooLarge, name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer rc.Close()

	// the header size can lie; never inflate past the limit
	data, err := io.ReadAll(io.LimitReader(rc, r.maxEntry+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if int64(len(data)) > r.maxEntry {
		return nil, fmt.Errorf("%w: %s", ErrEntryTooLarge, name)
	}
	return data, nil
}
