// Package merge folds a batch of classified annotation files into one
// canonical annotations.Document.
//
// Files are parsed one at a time in input order. A file that fails to parse
// becomes a warning and never aborts the batch; only a batch with no video
// and no parseable file is rejected with ErrNoUsableInput. When the video is
// path-backed its duration, dimensions and frame rate are probed with
// ffprobe, memoised per file revision.
package merge
