// Package webvtt converts WebVTT subtitle cues into speech recognition
// segments.
//
// The WEBVTT header is mandatory; without it the whole file is rejected.
// Individual cues with malformed timings are skipped with a warning.
package webvtt
