// Package ffprobe wraps ffprobe JSON output for the video metadata the merge
// engine records in video_info.
//
// Inspect runs the binary and decodes its streams and format sections.
// Summarize reduces a Result to duration, dimensions, frame rate and size,
// tolerating the missing or malformed fields ffprobe emits for partial files.
package ffprobe
