package bundle

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"vareview/internal/filetype"
	"vareview/internal/services"
	"vareview/internal/source"
)

// Entry is one member of an archive.
type Entry interface {
	Name() string
	IsDir() bool
	Read() ([]byte, error)
}

// Streamer is implemented by entries that can be opened without buffering
// the whole payload. Media entries use it so a recording is never held in
// memory twice and is not subject to the annotation read cap.
type Streamer interface {
	Size() int64
	Open() (io.ReadCloser, error)
}

// Archive is an opened bundle.
type Archive struct {
	entries []Entry
}

type zipEntry struct {
	file  *zip.File
	limit int64
}

func (e zipEntry) Name() string { return e.file.Name }
func (e zipEntry) IsDir() bool  { return e.file.FileInfo().IsDir() }

func (e zipEntry) Size() int64 { return int64(e.file.UncompressedSize64) }

func (e zipEntry) Open() (io.ReadCloser, error) {
	rc, err := e.file.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", e.file.Name, err)
	}
	return rc, nil
}

func (e zipEntry) Read() ([]byte, error) {
	if e.file.UncompressedSize64 > uint64(e.limit) {
		return nil, fmt.Errorf("%s: entry exceeds %d bytes", e.file.Name, e.limit)
	}
	rc, err := e.file.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", e.file.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, e.limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", e.file.Name, err)
	}
	if int64(len(data)) > e.limit {
		return nil, fmt.Errorf("%s: entry exceeds %d bytes", e.file.Name, e.limit)
	}
	return data, nil
}

// Open parses a zip archive held in memory.
func Open(data []byte) (*Archive, error) {
	return openWithLimit(data, source.MaxReadBytes)
}

func openWithLimit(data []byte, limit int64) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "bundle", "open", "Artifact bundle is not a zip archive", err)
	}
	entries := make([]Entry, 0, len(zr.File))
	for _, f := range zr.File {
		entries = append(entries, zipEntry{file: f, limit: limit})
	}
	return &Archive{entries: entries}, nil
}

// Entries returns every member, including ignored ones.
func (a *Archive) Entries() []Entry {
	return append([]Entry(nil), a.entries...)
}

// Ignored reports whether name is archive noise: directories, macOS
// resource forks, and hidden files.
func Ignored(name string) bool {
	name = strings.ReplaceAll(name, "\\", "/")
	if strings.HasSuffix(name, "/") {
		return true
	}
	if strings.HasPrefix(name, "__MACOSX/") || strings.Contains(name, "/__MACOSX/") {
		return true
	}
	for _, part := range strings.Split(name, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

// Files turns every usable entry into a handle named by its base name.
// Video and audio entries that implement Streamer stay in the archive and are
// decompressed on each Open; everything else is read into memory. Entries
// that cannot be read are reported as warnings.
func Files(entries []Entry) ([]source.File, []string) {
	var (
		files    []source.File
		warnings []string
	)
	for _, entry := range entries {
		if entry.IsDir() || Ignored(entry.Name()) {
			continue
		}
		name := path.Base(strings.ReplaceAll(entry.Name(), "\\", "/"))
		if s, ok := entry.(Streamer); ok && isMedia(name) {
			files = append(files, &streamedFile{name: name, mime: source.MIMEFromName(name), entry: s})
			continue
		}
		data, err := entry.Read()
		if err != nil {
			warnings = append(warnings, err.Error())
			continue
		}
		files = append(files, source.FromBytes(name, data, filetype.DetectMIME(name, data)))
	}
	return files, warnings
}

func isMedia(name string) bool {
	switch filetype.ClassifyName(name, source.MIMEFromName(name)).Type {
	case filetype.TypeVideo, filetype.TypeAudio:
		return true
	}
	return false
}

// streamedFile is a source.File reading straight from an archive entry.
type streamedFile struct {
	name  string
	mime  string
	entry Streamer
}

func (f *streamedFile) Name() string                 { return f.name }
func (f *streamedFile) Size() int64                  { return f.entry.Size() }
func (f *streamedFile) MIMEType() string             { return f.mime }
func (f *streamedFile) Open() (io.ReadCloser, error) { return f.entry.Open() }
