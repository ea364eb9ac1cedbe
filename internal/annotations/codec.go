package annotations

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"vareview/internal/coco"
	"vareview/internal/openface"
	"vareview/internal/rttm"
	"vareview/internal/scenes"
	"vareview/internal/services"
	"vareview/internal/webvtt"
)

// LegacyResultsName is the file name of a pre-merged results bundle.
const LegacyResultsName = "results.json"

// Decode parses a canonical document and upgrades legacy layouts.
func Decode(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, services.Wrap(services.ErrValidation, "annotations", "decode", "Invalid annotation document", err)
	}
	Normalize(&doc)
	return &doc, nil
}

// Encode renders doc as indented JSON with a trailing newline.
func Encode(doc *Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("encode annotations: nil document")
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode annotations: %w", err)
	}
	return append(data, '\n'), nil
}

// Normalize upgrades a document in place to the current layout. Video info
// stored under metadata by 0.x documents moves to the top level.
func Normalize(doc *Document) {
	if doc == nil {
		return
	}
	if legacy := doc.Metadata.VideoInfo; legacy != nil {
		if doc.VideoInfo.isZero() {
			doc.VideoInfo = *legacy
		}
		doc.Metadata.VideoInfo = nil
	}
	if v := strings.TrimSpace(doc.Metadata.Version); v == "" || strings.HasPrefix(v, "0.") {
		doc.Metadata.Version = FormatVersion
	}
	doc.EnsureArrays()
}

// IsLegacyResults reports whether name/data look like a pre-merged
// results.json carrying both metadata and annotations keys.
func IsLegacyResults(name string, data []byte) bool {
	if !strings.EqualFold(filepath.Base(name), LegacyResultsName) {
		return false
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(data), &probe); err != nil {
		return false
	}
	_, hasMeta := probe["metadata"]
	_, hasAnn := probe["annotations"]
	return hasMeta && hasAnn
}

type legacyResults struct {
	VideoInfo   *VideoInfo        `json:"video_info"`
	Metadata    legacyMetadata    `json:"metadata"`
	Annotations legacyAnnotations `json:"annotations"`
}

type legacyMetadata struct {
	Version   string     `json:"version"`
	Pipelines []string   `json:"pipelines"`
	Warnings  []string   `json:"warnings"`
	VideoInfo *VideoInfo `json:"video_info"`
}

type legacyAnnotations struct {
	PersonTracking     []coco.PersonAnnotation   `json:"person_tracking"`
	FaceAnalysis       []openface.FaceAnnotation `json:"face_analysis"`
	SpeechRecognition  []webvtt.Cue              `json:"speech_recognition"`
	SpeakerDiarization []rttm.Segment            `json:"speaker_diarization"`
	SceneDetection     []scenes.Scene            `json:"scene_detection"`
}

// FromLegacyResults converts a results.json bundle into a canonical
// document. videoName fills video_info.filename when the bundle omits it.
func FromLegacyResults(data []byte, videoName string) (*Document, error) {
	var raw legacyResults
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, services.Wrap(services.ErrValidation, "annotations", "legacy results", "Invalid results.json", err)
	}
	var video VideoInfo
	switch {
	case raw.VideoInfo != nil:
		video = *raw.VideoInfo
	case raw.Metadata.VideoInfo != nil:
		video = *raw.Metadata.VideoInfo
	}
	if video.Filename == "" {
		video.Filename = videoName
	}

	doc := New(video, SourceLegacyResults)
	doc.PersonTracking = raw.Annotations.PersonTracking
	doc.FaceAnalysis = raw.Annotations.FaceAnalysis
	doc.SpeechRecognition = raw.Annotations.SpeechRecognition
	doc.SpeakerDiarization = raw.Annotations.SpeakerDiarization
	doc.SceneDetection = raw.Annotations.SceneDetection
	doc.Metadata.Warnings = append(doc.Metadata.Warnings, raw.Metadata.Warnings...)
	doc.EnsureArrays()
	doc.SortByTime()
	doc.Metadata.Pipelines = doc.ContributingPipelines()
	return doc, nil
}

// ContributingPipelines returns the sorted kinds holding at least one record.
func (d *Document) ContributingPipelines() []string {
	counts := d.Counts()
	out := make([]string, 0, len(Kinds))
	for _, kind := range Kinds {
		if counts[kind] > 0 {
			out = append(out, kind)
		}
	}
	sort.Strings(out)
	return out
}
