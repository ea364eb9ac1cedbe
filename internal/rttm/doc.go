// Package rttm parses Rich Transcription Time-Marked speaker diarization
// files and provides the timeline helpers the viewer relies on.
//
// Parsing is permissive per line: a malformed SPEAKER record is dropped with
// a warning and the rest of the file still loads. Non-SPEAKER records are
// ignored. A file that yields no valid segment at all is an error.
package rttm
