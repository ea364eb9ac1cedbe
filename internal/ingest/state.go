package ingest

import (
	"vareview/internal/annotations"
	"vareview/internal/library"
	"vareview/internal/source"
)

// State is the flow's current phase.
type State string

const (
	StateIdle         State = "idle"
	StateSelectingDir State = "selecting_dir"
	StateDownloading  State = "downloading"
	StateUnzipping    State = "unzipping"
	StateReady        State = "ready"
	StateError        State = "error"
)

// Progress is byte-level download progress. Total is -1 while unknown.
type Progress struct {
	Received      int64
	Total         int64
	Fraction      float64
	Indeterminate bool
}

func newProgress(received, total int64) Progress {
	p := Progress{Received: received, Total: total}
	if total <= 0 {
		p.Total = -1
		p.Indeterminate = true
		return p
	}
	p.Fraction = min(float64(received)/float64(total), 1)
	return p
}

// Outcome is what a successful Start produces.
type Outcome struct {
	VideoFile source.File
	Document  *annotations.Document
	// DatasetEntry is zero when the dataset was not persisted.
	DatasetEntry library.IndexEntry
	FromCache    bool
	Persisted    bool
}

// Snapshot is a copy of the flow's observable state.
type Snapshot struct {
	JobID    string
	State    State
	Progress Progress
	Error    string
	Outcome  *Outcome
}
