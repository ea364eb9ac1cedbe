package coco

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"vareview/internal/source"
)

const (
	Pipeline = "person_tracking"
	Format   = "coco"

	// DefaultFPS converts frame numbers to seconds when neither the document
	// nor the caller supplies a frame rate.
	DefaultFPS = 30.0
)

// PersonAnnotation is one tracked person at a timestamp.
type PersonAnnotation struct {
	ID           int64     `json:"id"`
	ImageID      int64     `json:"image_id,omitempty"`
	TrackID      *int64    `json:"track_id,omitempty"`
	Timestamp    float64   `json:"timestamp"`
	FrameNumber  *int64    `json:"frame_number,omitempty"`
	BBox         []float64 `json:"bbox"`
	Keypoints    []float64 `json:"keypoints"`
	NumKeypoints int       `json:"num_keypoints"`
	Score        float64   `json:"score"`
	CategoryID   int64     `json:"category_id"`
	Pipeline     string    `json:"pipeline"`
	Format       string    `json:"format"`
}

// Options tune conversion.
type Options struct {
	// FPS is used when the document has no info.fps.
	FPS float64
}

// Result holds the converted annotations sorted by timestamp and any
// per-record warnings.
type Result struct {
	People   []PersonAnnotation
	Warnings []string
}

type image struct {
	ID          int64    `json:"id"`
	Timestamp   *float64 `json:"timestamp"`
	FrameNumber *int64   `json:"frame_number"`
}

type record struct {
	ID           *int64    `json:"id"`
	ImageID      *int64    `json:"image_id"`
	TrackID      *int64    `json:"track_id"`
	Timestamp    *float64  `json:"timestamp"`
	FrameNumber  *int64    `json:"frame_number"`
	BBox         []float64 `json:"bbox"`
	Keypoints    []float64 `json:"keypoints"`
	NumKeypoints *int      `json:"num_keypoints"`
	Score        *float64  `json:"score"`
	CategoryID   *int64    `json:"category_id"`
}

type document struct {
	Info struct {
		FPS float64 `json:"fps"`
	} `json:"info"`
	Images      []image           `json:"images"`
	Annotations []json.RawMessage `json:"annotations"`
	People      []json.RawMessage `json:"people"`
}

// Parse reads a COCO keypoint document.
func Parse(ctx context.Context, f source.File, opts Options) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	data, err := source.ReadAll(f)
	if err != nil {
		return Result{}, source.WrapError(f.Name(), "read failed", err)
	}
	return ParseBytes(f.Name(), data, opts)
}

// ParseBytes converts a COCO document held in memory.
func ParseBytes(name string, data []byte, opts Options) (Result, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return Result{}, source.WrapError(name, "expected a JSON object", err)
	}
	key := "annotations"
	if _, ok := probe[key]; !ok {
		key = "people"
	}
	if !isArray(probe[key]) {
		return Result{}, source.Errorf(name, 0, "annotations must be an array")
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Result{}, source.WrapError(name, "invalid COCO document", err)
	}
	records := doc.Annotations
	if key == "people" {
		records = doc.People
	}

	fps := doc.Info.FPS
	if fps <= 0 {
		fps = opts.FPS
	}
	if fps <= 0 {
		fps = DefaultFPS
	}
	images := make(map[int64]image, len(doc.Images))
	for _, img := range doc.Images {
		images[img.ID] = img
	}

	result := Result{People: make([]PersonAnnotation, 0, len(records))}
	for i, raw := range records {
		person, warning := convert(i, raw, images, fps)
		if warning != "" {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s %d: %s", key, i, warning))
			continue
		}
		result.People = append(result.People, person)
	}

	if len(records) > 0 && len(result.People) == 0 {
		return Result{}, source.Errorf(name, 0, "no valid %s (%s)", key, result.Warnings[0])
	}
	sort.SliceStable(result.People, func(i, j int) bool {
		return result.People[i].Timestamp < result.People[j].Timestamp
	})
	return result, nil
}

func convert(index int, raw json.RawMessage, images map[int64]image, fps float64) (PersonAnnotation, string) {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return PersonAnnotation{}, "malformed record: " + err.Error()
	}
	if len(rec.BBox) != 4 {
		return PersonAnnotation{}, fmt.Sprintf("bbox must have 4 values, got %d", len(rec.BBox))
	}
	if len(rec.Keypoints)%3 != 0 {
		return PersonAnnotation{}, fmt.Sprintf("keypoints length %d is not a multiple of 3", len(rec.Keypoints))
	}

	person := PersonAnnotation{
		ID:         int64(index + 1),
		TrackID:    rec.TrackID,
		BBox:       rec.BBox,
		Keypoints:  rec.Keypoints,
		Score:      1,
		CategoryID: 1,
		Pipeline:   Pipeline,
		Format:     Format,
	}
	if person.Keypoints == nil {
		person.Keypoints = []float64{}
	}
	if rec.ID != nil {
		person.ID = *rec.ID
	}
	if rec.Score != nil {
		person.Score = *rec.Score
	}
	if rec.CategoryID != nil {
		person.CategoryID = *rec.CategoryID
	}
	if rec.NumKeypoints != nil {
		person.NumKeypoints = *rec.NumKeypoints
	} else {
		person.NumKeypoints = visibleKeypoints(rec.Keypoints)
	}

	var img image
	var haveImage bool
	if rec.ImageID != nil {
		person.ImageID = *rec.ImageID
		img, haveImage = images[*rec.ImageID]
	}

	person.FrameNumber = rec.FrameNumber
	if person.FrameNumber == nil && haveImage {
		person.FrameNumber = img.FrameNumber
	}

	switch {
	case rec.Timestamp != nil:
		person.Timestamp = *rec.Timestamp
	case haveImage && img.Timestamp != nil:
		person.Timestamp = *img.Timestamp
	case person.FrameNumber != nil:
		person.Timestamp = float64(*person.FrameNumber) / fps
	default:
		return PersonAnnotation{}, "no timestamp or frame number"
	}
	if math.IsNaN(person.Timestamp) || person.Timestamp < 0 {
		return PersonAnnotation{}, "timestamp must be >= 0"
	}
	return person, ""
}

// visibleKeypoints counts triples with a positive visibility flag.
func visibleKeypoints(keypoints []float64) int {
	count := 0
	for i := 2; i < len(keypoints); i += 3 {
		if keypoints[i] > 0 {
			count++
		}
	}
	return count
}

func isArray(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '[':
			return true
		default:
			return false
		}
	}
	return false
}
