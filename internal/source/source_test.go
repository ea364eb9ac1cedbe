package source_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"vareview/internal/source"
)

func TestFromPathReportsMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Speakers.RTTM")
	content := []byte("SPEAKER f 1 0 1 <NA> <NA> a <NA> <NA>\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := source.FromPath(path)
	if err != nil {
		t.Fatalf("FromPath: %v", err)
	}
	if f.Name() != "Speakers.RTTM" {
		t.Fatalf("unexpected name %q", f.Name())
	}
	if f.Size() != int64(len(content)) {
		t.Fatalf("unexpected size %d", f.Size())
	}
	if p, ok := f.(source.Pather); !ok || p.Path() != path {
		t.Fatalf("expected path-backed handle")
	}
	if source.Extension(f.Name()) != "rttm" {
		t.Fatalf("expected lower-cased extension")
	}
}

func TestFromPathRejectsDirectory(t *testing.T) {
	if _, err := source.FromPath(t.TempDir()); err == nil {
		t.Fatal("expected error for directory")
	}
}

func TestFromBytesOpensIndependentReaders(t *testing.T) {
	f := source.FromBytes("cues.vtt", []byte("WEBVTT\n"), "")
	if f.MIMEType() != "text/vtt" {
		t.Fatalf("expected derived mime, got %q", f.MIMEType())
	}
	first, _ := f.Open()
	second, _ := f.Open()
	a, _ := io.ReadAll(first)
	b, _ := io.ReadAll(second)
	if string(a) != "WEBVTT\n" || string(b) != "WEBVTT\n" {
		t.Fatalf("readers should be independent: %q %q", a, b)
	}
}

func TestMIMEFromName(t *testing.T) {
	tests := map[string]string{
		"clip.mkv":    "video/x-matroska",
		"clip.MP4":    "video/mp4",
		"scenes.json": "application/json",
		"notes.vtt":   "text/vtt",
		"README":      "",
	}
	for name, want := range tests {
		if got := source.MIMEFromName(name); got != want {
			t.Errorf("MIMEFromName(%q) = %q, want %q", name, got, want)
		}
	}
}
