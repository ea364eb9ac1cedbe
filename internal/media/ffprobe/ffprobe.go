package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Duration     string `json:"duration"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	FormatName string `json:"format_name"`
}

// Summary is the subset of probe data recorded for an annotated video.
type Summary struct {
	Duration  float64
	Width     int
	Height    int
	FrameRate float64
	SizeBytes int64
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return Decode(output)
}

// Decode parses raw ffprobe JSON.
func Decode(data []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// VideoStream returns the first video stream.
func (r Result) VideoStream() (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			return stream, true
		}
	}
	return Stream{}, false
}

// DurationSeconds returns the container duration in seconds, falling back to
// the video stream duration. Zero means unknown.
func (r Result) DurationSeconds() float64 {
	if d := parsePositive(r.Format.Duration); d > 0 {
		return d
	}
	if stream, ok := r.VideoStream(); ok {
		return parsePositive(stream.Duration)
	}
	return 0
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	return int64(parsePositive(r.Format.Size))
}

// FrameRate returns the video frame rate, preferring avg_frame_rate.
func (r Result) FrameRate() float64 {
	stream, ok := r.VideoStream()
	if !ok {
		return 0
	}
	if rate := parseRational(stream.AvgFrameRate); rate > 0 {
		return rate
	}
	return parseRational(stream.RFrameRate)
}

// Summarize extracts the fields recorded in video_info.
func (r Result) Summarize() Summary {
	summary := Summary{
		Duration:  r.DurationSeconds(),
		FrameRate: r.FrameRate(),
		SizeBytes: r.SizeBytes(),
	}
	if stream, ok := r.VideoStream(); ok {
		summary.Width = stream.Width
		summary.Height = stream.Height
	}
	return summary
}

// parseRational handles ffprobe's "30000/1001" notation as well as plain numbers.
func parseRational(value string) float64 {
	num, den, found := strings.Cut(strings.TrimSpace(value), "/")
	if !found {
		return parsePositive(num)
	}
	n := parsePositive(num)
	d := parsePositive(den)
	if n == 0 || d == 0 {
		return 0
	}
	return n / d
}

func parsePositive(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" || strings.EqualFold(cleaned, "N/A") {
		return 0
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) || parsed < 0 {
		return 0
	}
	return parsed
}
