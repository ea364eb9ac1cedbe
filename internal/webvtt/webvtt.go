package webvtt

import (
	"context"
	"html"
	"regexp"
	"strconv"
	"strings"

	"vareview/internal/source"
)

const (
	Pipeline = "speech_recognition"
	Format   = "webvtt"
)

// Cue is one timed speech segment.
type Cue struct {
	ID        string  `json:"id,omitempty"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Text      string  `json:"text"`
	Speaker   string  `json:"speaker,omitempty"`
	Settings  string  `json:"settings,omitempty"`
	Pipeline  string  `json:"pipeline"`
	Format    string  `json:"format"`
}

// Result holds the parsed cues in file order and any per-cue warnings.
type Result struct {
	Cues     []Cue
	Warnings []string
}

var (
	voiceSpan = regexp.MustCompile(`<v(?:\.[^\s>]*)?\s+([^>]+)>`)
	anyTag    = regexp.MustCompile(`</?[^>]*>`)
)

// Parse reads a WebVTT file.
func Parse(ctx context.Context, f source.File) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	data, err := source.ReadAll(f)
	if err != nil {
		return Result{}, source.WrapError(f.Name(), "read failed", err)
	}
	return ParseBytes(f.Name(), data)
}

type block struct {
	line  int
	lines []string
}

// ParseBytes parses WebVTT content already held in memory.
func ParseBytes(name string, data []byte) (Result, error) {
	text := strings.TrimPrefix(string(data), "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	blocks := splitBlocks(text)
	if len(blocks) == 0 || !isHeader(blocks[0].lines[0]) || blocks[0].line != 1 {
		return Result{}, source.Errorf(name, 1, "missing WEBVTT header")
	}

	var result Result
	attempted := 0
	for _, b := range blocks[1:] {
		first := b.lines[0]
		if isMetadataBlock(first) {
			continue
		}
		attempted++
		cue, warning, ok := parseCue(b)
		if !ok {
			result.Warnings = append(result.Warnings, warning)
			continue
		}
		result.Cues = append(result.Cues, cue)
	}

	if attempted > 0 && len(result.Cues) == 0 {
		reason := "no valid cues"
		if len(result.Warnings) > 0 {
			reason += " (" + result.Warnings[0] + ")"
		}
		return Result{}, source.Errorf(name, 0, "%s", reason)
	}
	if result.Cues == nil {
		result.Cues = []Cue{}
	}
	return result, nil
}

func splitBlocks(text string) []block {
	var blocks []block
	var current *block
	for i, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			current = nil
			continue
		}
		if current == nil {
			blocks = append(blocks, block{line: i + 1})
			current = &blocks[len(blocks)-1]
		}
		current.lines = append(current.lines, line)
	}
	return blocks
}

func isHeader(line string) bool {
	if !strings.HasPrefix(line, "WEBVTT") {
		return false
	}
	rest := line[len("WEBVTT"):]
	return rest == "" || rest[0] == ' ' || rest[0] == '\t'
}

func isMetadataBlock(first string) bool {
	for _, keyword := range []string{"NOTE", "STYLE", "REGION"} {
		if first == keyword || strings.HasPrefix(first, keyword+" ") || strings.HasPrefix(first, keyword+"\t") {
			return true
		}
	}
	return false
}

func parseCue(b block) (Cue, string, bool) {
	timingIdx := 0
	var id string
	if !strings.Contains(b.lines[0], "-->") {
		if len(b.lines) < 2 || !strings.Contains(b.lines[1], "-->") {
			return Cue{}, source.LineWarning(b.line, "cue without timing line"), false
		}
		id = strings.TrimSpace(b.lines[0])
		timingIdx = 1
	}

	lineNo := b.line + timingIdx
	start, end, settings, err := parseTiming(b.lines[timingIdx])
	if err != "" {
		return Cue{}, source.LineWarning(lineNo, "%s", err), false
	}
	if end <= start {
		return Cue{}, source.LineWarning(lineNo, "cue end time must be after start time"), false
	}

	payload := strings.Join(b.lines[timingIdx+1:], "\n")
	text, speaker := cleanPayload(payload)
	return Cue{
		ID:        id,
		StartTime: start,
		EndTime:   end,
		Text:      text,
		Speaker:   speaker,
		Settings:  settings,
		Pipeline:  Pipeline,
		Format:    Format,
	}, "", true
}

func parseTiming(line string) (float64, float64, string, string) {
	left, right, found := strings.Cut(line, "-->")
	if !found {
		return 0, 0, "", "malformed cue timing"
	}
	start, ok := parseTimestamp(strings.TrimSpace(left))
	if !ok {
		return 0, 0, "", "invalid cue start " + strconv.Quote(strings.TrimSpace(left))
	}
	rightFields := strings.Fields(right)
	if len(rightFields) == 0 {
		return 0, 0, "", "missing cue end time"
	}
	end, ok := parseTimestamp(rightFields[0])
	if !ok {
		return 0, 0, "", "invalid cue end " + strconv.Quote(rightFields[0])
	}
	return start, end, strings.Join(rightFields[1:], " "), ""
}

// parseTimestamp accepts [hh:]mm:ss.ttt; a comma decimal separator is
// tolerated.
func parseTimestamp(value string) (float64, bool) {
	value = strings.Replace(value, ",", ".", 1)
	parts := strings.Split(value, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	var hours, minutes int
	var err error
	if len(parts) == 3 {
		if hours, err = strconv.Atoi(parts[0]); err != nil || hours < 0 {
			return 0, false
		}
		parts = parts[1:]
	}
	if minutes, err = strconv.Atoi(parts[0]); err != nil || minutes < 0 || minutes > 59 {
		return 0, false
	}
	secondsText := parts[1]
	if whole, _, ok := strings.Cut(secondsText, "."); !ok || len(whole) != 2 {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(secondsText, 64)
	if err != nil || seconds < 0 || seconds >= 60 {
		return 0, false
	}
	return float64(hours*3600+minutes*60) + seconds, true
}

func cleanPayload(payload string) (string, string) {
	var speaker string
	if m := voiceSpan.FindStringSubmatch(payload); m != nil {
		speaker = strings.TrimSpace(m[1])
	}
	text := anyTag.ReplaceAllString(payload, "")
	text = html.UnescapeString(text)
	return strings.TrimSpace(text), speaker
}
