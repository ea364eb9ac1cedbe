package rttm

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"vareview/internal/source"
)

const (
	Pipeline = "speaker_diarization"
	Format   = "rttm"

	minFields = 9
)

// Segment is one speaker-active interval.
type Segment struct {
	FileID     string  `json:"file_id"`
	StartTime  float64 `json:"start_time"`
	Duration   float64 `json:"duration"`
	EndTime    float64 `json:"end_time"`
	SpeakerID  string  `json:"speaker_id"`
	Confidence float64 `json:"confidence"`
	Pipeline   string  `json:"pipeline"`
	Format     string  `json:"format"`
}

// Result holds the parsed segments, sorted by start time, and any per-line
// warnings.
type Result struct {
	Segments []Segment
	Warnings []string
}

// Parse reads an RTTM file.
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

// ParseBytes parses RTTM content already held in memory.
func ParseBytes(name string, data []byte) (Result, error) {
	return parse(name, bytes.NewReader(data))
}

func parse(name string, r io.Reader) (Result, error) {
	var result Result
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";;") {
			continue
		}
		fields := strings.Fields(line)
		if fields[0] != "SPEAKER" {
			continue
		}
		seg, warning, ok := parseSpeakerLine(fields)
		if warning != "" {
			result.Warnings = append(result.Warnings, source.LineWarning(lineNo, "%s", warning))
		}
		if ok {
			result.Segments = append(result.Segments, seg)
		}
	}
	if err := scanner.Err(); err != nil {
		return Result{}, source.WrapError(name, "read failed", err)
	}

	if len(result.Segments) == 0 {
		reason := "no valid SPEAKER segments"
		if len(result.Warnings) > 0 {
			reason += " (" + result.Warnings[0] + ")"
		}
		return Result{}, source.Errorf(name, 0, "%s", reason)
	}

	sort.SliceStable(result.Segments, func(i, j int) bool {
		return result.Segments[i].StartTime < result.Segments[j].StartTime
	})
	return result, nil
}

// parseSpeakerLine converts one SPEAKER record. A non-empty warning with
// ok=false means the line was dropped; with ok=true the line was kept after a
// recoverable correction.
func parseSpeakerLine(fields []string) (Segment, string, bool) {
	if len(fields) < minFields {
		return Segment{}, "expected at least " + strconv.Itoa(minFields) + " fields, got " + strconv.Itoa(len(fields)), false
	}
	start, err := parseFinite(fields[3])
	if err != nil {
		return Segment{}, "invalid start time " + strconv.Quote(fields[3]), false
	}
	if start < 0 {
		return Segment{}, "start time must be >= 0", false
	}
	duration, err := parseFinite(fields[4])
	if err != nil {
		return Segment{}, "invalid duration " + strconv.Quote(fields[4]), false
	}
	if duration <= 0 {
		return Segment{}, "duration must be > 0", false
	}

	confidence, warning := parseConfidence(fields[8])
	return Segment{
		FileID:     fields[1],
		StartTime:  start,
		Duration:   duration,
		EndTime:    start + duration,
		SpeakerID:  fields[7],
		Confidence: confidence,
		Pipeline:   Pipeline,
		Format:     Format,
	}, warning, true
}

func parseFinite(value string) (float64, error) {
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0, strconv.ErrSyntax
	}
	return parsed, nil
}

func parseConfidence(value string) (float64, string) {
	if strings.EqualFold(value, "<NA>") {
		return 1, ""
	}
	parsed, err := parseFinite(value)
	if err != nil {
		return 1, "invalid confidence " + strconv.Quote(value) + ", using 1.0"
	}
	return clamp01(parsed), ""
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
