package source

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// File is a generic file-like handle.
type File interface {
	Name() string
	Size() int64
	MIMEType() string
	Open() (io.ReadCloser, error)
}

// Pather is implemented by handles backed by a file on local disk.
type Pather interface {
	Path() string
}

// MaxReadBytes caps how much of a single annotation file ReadAll buffers.
const MaxReadBytes = 512 << 20

type pathFile struct {
	path string
	size int64
	mime string
}

// FromPath stats path and returns a handle for it. The MIME type is derived
// from the extension.
func FromPath(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return &pathFile{path: path, size: info.Size(), mime: MIMEFromName(path)}, nil
}

func (f *pathFile) Name() string     { return filepath.Base(f.path) }
func (f *pathFile) Size() int64      { return f.size }
func (f *pathFile) MIMEType() string { return f.mime }
func (f *pathFile) Path() string     { return f.path }

func (f *pathFile) Open() (io.ReadCloser, error) {
	return os.Open(f.path)
}

type memoryFile struct {
	name string
	data []byte
	mime string
}

// FromBytes wraps an in-memory payload. An empty mimeType is derived from the
// name's extension.
func FromBytes(name string, data []byte, mimeType string) File {
	if strings.TrimSpace(mimeType) == "" {
		mimeType = MIMEFromName(name)
	}
	return &memoryFile{name: name, data: data, mime: mimeType}
}

func (f *memoryFile) Name() string     { return f.name }
func (f *memoryFile) Size() int64      { return int64(len(f.data)) }
func (f *memoryFile) MIMEType() string { return f.mime }

func (f *memoryFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

// Bytes returns the payload of an in-memory handle. The boolean is false for
// handles that are not memory backed.
func Bytes(f File) ([]byte, bool) {
	if m, ok := f.(*memoryFile); ok {
		return m.data, true
	}
	return nil, false
}

// ReadAll opens f and buffers its content.
func ReadAll(f File) ([]byte, error) {
	if data, ok := Bytes(f); ok {
		return data, nil
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name(), err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, MaxReadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name(), err)
	}
	if len(data) > MaxReadBytes {
		return nil, fmt.Errorf("read %s: file exceeds %d bytes", f.Name(), MaxReadBytes)
	}
	return data, nil
}

// Extension returns the lower-cased extension of name without the dot.
func Extension(name string) string {
	ext := filepath.Ext(name)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MIMEFromName derives a MIME type from the file extension, ignoring any
// parameters. Formats the platform registry tends to lack are covered
// explicitly.
func MIMEFromName(name string) string {
	switch Extension(name) {
	case "vtt":
		return "text/vtt"
	case "rttm":
		return "text/plain"
	case "json":
		return "application/json"
	case "mkv":
		return "video/x-matroska"
	case "mp4":
		return "video/mp4"
	case "webm":
		return "video/webm"
	case "mov":
		return "video/quicktime"
	case "avi":
		return "video/x-msvideo"
	case "zip":
		return "application/zip"
	case "":
		return ""
	}
	value := mime.TypeByExtension("." + Extension(name))
	if value == "" {
		return ""
	}
	if mediaType, _, err := mime.ParseMediaType(value); err == nil {
		return mediaType
	}
	return value
}
