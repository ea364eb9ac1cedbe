package textutil

import (
	"strings"
	"testing"
)

func TestSanitizeFileName(t *testing.T) {
	tests := map[string]string{
		"clip.mp4":         "clip.mp4",
		"  a/b\\c:d*e  ":   "a-b-c-d-e",
		`what?"<>|`:        "what",
		"..":               "",
		"   ":              "",
		"demo:sample-clip": "demo-sample-clip",
		"tab\tname.vtt":    "tabname.vtt",
		"caf\u00e9.mp4":    "caf\u00e9.mp4",
	}
	for input, want := range tests {
		if got := SanitizeFileName(input); got != want {
			t.Fatalf("SanitizeFileName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestSanitizeToken(t *testing.T) {
	tests := map[string]string{
		"abc-123":          "abc-123",
		"Job 42":           "Job_42",
		"demo:sample":      "demo_sample",
		"../../etc/passwd": "etc_passwd",
		"":                 "unknown",
		"///":              "unknown",
		"caf\u00e9":        "caf",
	}
	for input, want := range tests {
		if got := SanitizeToken(input); got != want {
			t.Fatalf("SanitizeToken(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestSanitizeFileNameTruncatesKeepingExtension(t *testing.T) {
	name := strings.Repeat("\u00e9", 200) + ".mp4"
	got := SanitizeFileName(name)
	if len(got) > MaxFileNameBytes {
		t.Fatalf("len = %d, want <= %d", len(got), MaxFileNameBytes)
	}
	if !strings.HasSuffix(got, ".mp4") {
		t.Fatalf("extension lost: %q", got)
	}
	if !utf8ValidPrefix(got) {
		t.Fatalf("truncation split a rune: %q", got)
	}
}

func TestSanitizeTokenCapsLength(t *testing.T) {
	got := SanitizeToken(strings.Repeat("a", 100))
	if len(got) != MaxTokenLength {
		t.Fatalf("len = %d, want %d", len(got), MaxTokenLength)
	}
}

func utf8ValidPrefix(s string) bool {
	return strings.ToValidUTF8(s, "?") == s
}

func TestTitleFromFileName(t *testing.T) {
	tests := map[string]string{
		"team_meeting-2024.mp4": "Team Meeting 2024",
		"/videos/interview.mov": "Interview",
		"":                      "",
		"lecture":               "Lecture",
	}
	for input, want := range tests {
		if got := TitleFromFileName(input); got != want {
			t.Fatalf("TitleFromFileName(%q) = %q, want %q", input, got, want)
		}
	}
}
