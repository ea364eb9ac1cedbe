package textutil

import (
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxFileNameBytes is the longest name most filesystems accept.
	MaxFileNameBytes = 255
	// MaxTokenLength bounds tokens used as folder name components.
	MaxTokenLength = 64
)

// SanitizeFileName makes a video or artifact name safe to write inside a
// dataset folder. Path separators, colons and asterisks become dashes;
// quotes, angle brackets, pipes, question marks and control characters are
// dropped. Over-long names are shortened keeping the extension. Names that
// reduce to dots or nothing return "".
func SanitizeFileName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*':
			b.WriteByte('-')
		case r == '?' || r == '"' || r == '<' || r == '>' || r == '|':
		case unicode.IsControl(r) || r == utf8.RuneError:
		default:
			b.WriteRune(r)
		}
	}
	cleaned := strings.TrimSpace(b.String())
	if strings.Trim(cleaned, ".") == "" {
		return ""
	}
	return truncateName(cleaned, MaxFileNameBytes)
}

func truncateName(name string, limit int) string {
	if len(name) <= limit {
		return name
	}
	ext := filepath.Ext(name)
	if len(ext) >= limit/2 {
		ext = ""
	}
	stem := name[:len(name)-len(ext)]
	cut := limit - len(ext)
	for cut > 0 && !utf8.RuneStart(stem[cut]) {
		cut--
	}
	return strings.TrimSpace(stem[:cut]) + ext
}

// SanitizeToken reduces value to ASCII letters, digits, dashes, dots and
// underscores, replacing everything else with an underscore, trimming
// separators from both ends and capping the length at MaxTokenLength.
// Empty results become "unknown".
func SanitizeToken(value string) string {
	token := strings.Map(func(r rune) rune {
		if r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.') {
			return r
		}
		return '_'
	}, strings.TrimSpace(value))
	if len(token) > MaxTokenLength {
		token = token[:MaxTokenLength]
	}
	token = strings.Trim(token, "_-.")
	if token == "" {
		return "unknown"
	}
	return token
}
