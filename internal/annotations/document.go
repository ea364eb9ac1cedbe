package annotations

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"vareview/internal/coco"
	"vareview/internal/openface"
	"vareview/internal/rttm"
	"vareview/internal/scenes"
	"vareview/internal/webvtt"
)

const (
	// FormatVersion is written into metadata.version of new documents.
	FormatVersion = "1.0"

	SourceMerged        = "merged"
	SourceEmpty         = "empty"
	SourceLegacyResults = "legacy_results"
)

// VideoInfo describes the annotated video.
type VideoInfo struct {
	Filename  string  `json:"filename"`
	Duration  float64 `json:"duration"`
	Width     int     `json:"width,omitempty"`
	Height    int     `json:"height,omitempty"`
	FrameRate float64 `json:"frame_rate,omitempty"`
	SizeBytes int64   `json:"size_bytes,omitempty"`
}

func (v VideoInfo) isZero() bool {
	return v == VideoInfo{}
}

// Metadata records how a document was produced.
type Metadata struct {
	Created   time.Time `json:"created"`
	Version   string    `json:"version"`
	Pipelines []string  `json:"pipelines"`
	Source    string    `json:"source"`
	Warnings  []string  `json:"warnings"`
	// VideoInfo is only populated by pre-1.0 documents and is moved to the
	// top level on decode.
	VideoInfo *VideoInfo `json:"video_info,omitempty"`
}

// Document is the canonical merged annotation document.
type Document struct {
	VideoInfo          VideoInfo                 `json:"video_info"`
	Metadata           Metadata                  `json:"metadata"`
	PersonTracking     []coco.PersonAnnotation   `json:"person_tracking"`
	FaceAnalysis       []openface.FaceAnnotation `json:"face_analysis"`
	SpeechRecognition  []webvtt.Cue              `json:"speech_recognition"`
	SpeakerDiarization []rttm.Segment            `json:"speaker_diarization"`
	SceneDetection     []scenes.Scene            `json:"scene_detection"`
}

// New returns an empty current-version document for video.
func New(video VideoInfo, source string) *Document {
	doc := &Document{
		VideoInfo: video,
		Metadata: Metadata{
			Created: time.Now().UTC(),
			Version: FormatVersion,
			Source:  source,
		},
	}
	doc.EnsureArrays()
	return doc
}

// Empty returns a document carrying only video info, used when an ingestion
// produced no annotation data.
func Empty(video VideoInfo) *Document {
	return New(video, SourceEmpty)
}

// EnsureArrays replaces nil slices with empty ones.
func (d *Document) EnsureArrays() {
	if d.PersonTracking == nil {
		d.PersonTracking = []coco.PersonAnnotation{}
	}
	if d.FaceAnalysis == nil {
		d.FaceAnalysis = []openface.FaceAnnotation{}
	}
	if d.SpeechRecognition == nil {
		d.SpeechRecognition = []webvtt.Cue{}
	}
	if d.SpeakerDiarization == nil {
		d.SpeakerDiarization = []rttm.Segment{}
	}
	if d.SceneDetection == nil {
		d.SceneDetection = []scenes.Scene{}
	}
	if d.Metadata.Pipelines == nil {
		d.Metadata.Pipelines = []string{}
	}
	if d.Metadata.Warnings == nil {
		d.Metadata.Warnings = []string{}
	}
}

// MarshalJSON guarantees empty kinds serialize as [] rather than null.
func (d Document) MarshalJSON() ([]byte, error) {
	type plain Document
	d.EnsureArrays()
	return json.Marshal(plain(d))
}

// Counts maps each annotation kind to its record count.
func (d *Document) Counts() map[string]int {
	return map[string]int{
		KindPersonTracking:     len(d.PersonTracking),
		KindFaceAnalysis:       len(d.FaceAnalysis),
		KindSpeechRecognition:  len(d.SpeechRecognition),
		KindSpeakerDiarization: len(d.SpeakerDiarization),
		KindSceneDetection:     len(d.SceneDetection),
	}
}

// Total returns the number of annotation records across all kinds.
func (d *Document) Total() int {
	total := 0
	for _, n := range d.Counts() {
		total += n
	}
	return total
}

// AddWarning appends a warning to metadata.warnings.
func (d *Document) AddWarning(format string, args ...any) {
	d.Metadata.Warnings = append(d.Metadata.Warnings, fmt.Sprintf(format, args...))
}

// SortByTime orders every kind by its start time or timestamp.
func (d *Document) SortByTime() {
	sort.SliceStable(d.PersonTracking, func(i, j int) bool {
		return d.PersonTracking[i].Timestamp < d.PersonTracking[j].Timestamp
	})
	sort.SliceStable(d.FaceAnalysis, func(i, j int) bool {
		return d.FaceAnalysis[i].Timestamp < d.FaceAnalysis[j].Timestamp
	})
	sort.SliceStable(d.SpeechRecognition, func(i, j int) bool {
		return d.SpeechRecognition[i].StartTime < d.SpeechRecognition[j].StartTime
	})
	sort.SliceStable(d.SpeakerDiarization, func(i, j int) bool {
		return d.SpeakerDiarization[i].StartTime < d.SpeakerDiarization[j].StartTime
	})
	sort.SliceStable(d.SceneDetection, func(i, j int) bool {
		return d.SceneDetection[i].StartTime < d.SceneDetection[j].StartTime
	})
}

// MaxEnd returns the latest time referenced by any annotation.
func (d *Document) MaxEnd() float64 {
	var end float64
	bump := func(v float64) {
		if v > end {
			end = v
		}
	}
	for _, p := range d.PersonTracking {
		bump(p.Timestamp)
	}
	for _, f := range d.FaceAnalysis {
		bump(f.Timestamp)
	}
	for _, c := range d.SpeechRecognition {
		bump(c.EndTime)
	}
	for _, s := range d.SpeakerDiarization {
		bump(s.EndTime)
	}
	for _, s := range d.SceneDetection {
		bump(s.EndTime)
	}
	return end
}
