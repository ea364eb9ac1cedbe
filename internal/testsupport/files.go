package testsupport

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path holding size filler bytes (at least one), for
// tests that only care about a file's presence and length.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	WriteText(t, path, string(bytes.Repeat([]byte{'x'}, int(max(size, 1)))))
}

// WriteText writes content to path, creating parent directories.
func WriteText(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// ZipEntry is one member of an archive built by BuildZip. A Name ending in
// "/" produces a directory entry.
type ZipEntry struct {
	Name string
	Body string
}

// BuildZip returns an in-memory zip archive holding entries in order, shaped
// like the artifact bundles the annotation service serves.
func BuildZip(t testing.TB, entries ...ZipEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.Name)
		if err != nil {
			t.Fatalf("zip create %s: %v", e.Name, err)
		}
		if _, err := w.Write([]byte(e.Body)); err != nil {
			t.Fatalf("zip write %s: %v", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}
