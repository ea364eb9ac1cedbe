package openface

import (
	"context"
	"encoding/json"
	"sort"

	"vareview/internal/source"
)

// DefaultConfidenceThreshold is the minimum face confidence kept by
// FilterByConfidence when no threshold is configured.
const DefaultConfidenceThreshold = 0.5

// Result holds the converted faces and the capture metadata.
type Result struct {
	Faces    []FaceAnnotation
	Metadata Metadata
	Features FeatureSet
}

// Parse reads an OpenFace3 capture document.
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

// ParseBytes validates and converts a capture document held in memory.
func ParseBytes(name string, data []byte) (Result, error) {
	if err := validate(name, data); err != nil {
		return Result{}, err
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Result{}, source.WrapError(name, "invalid OpenFace3 document", err)
	}

	faces := make([]FaceAnnotation, 0, len(doc.Faces))
	for i, raw := range doc.Faces {
		faces = append(faces, convert(i, raw))
	}
	return Result{
		Faces:    faces,
		Metadata: doc.Metadata,
		Features: AvailableFeatures(doc.Metadata, faces),
	}, nil
}

func validate(name string, data []byte) error {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return source.WrapError(name, "expected a JSON object", err)
	}
	var meta map[string]json.RawMessage
	if err := json.Unmarshal(root["metadata"], &meta); err != nil || meta == nil {
		return source.Errorf(name, 0, "missing metadata object")
	}
	if _, ok := meta["pipeline"]; !ok {
		return source.Errorf(name, 0, "missing metadata.pipeline")
	}
	if _, ok := meta["model_info"]; !ok {
		return source.Errorf(name, 0, "missing metadata.model_info")
	}
	var faces []map[string]json.RawMessage
	if err := json.Unmarshal(root["faces"], &faces); err != nil || faces == nil {
		return source.Errorf(name, 0, "faces must be an array")
	}
	if len(faces) > 0 {
		for _, key := range []string{"bbox", "features", "timestamp"} {
			if _, ok := faces[0][key]; !ok {
				return source.Errorf(name, 0, "first face is missing %s", key)
			}
		}
	}
	return nil
}

func convert(index int, raw rawFace) FaceAnnotation {
	id := int64(index + 1)
	if raw.AnnotationID != nil {
		id = *raw.AnnotationID
	}
	confidence := 1.0
	switch {
	case raw.FaceConfidence != nil:
		confidence = *raw.FaceConfidence
	case raw.Confidence != nil:
		confidence = *raw.Confidence
	}
	return FaceAnnotation{
		AnnotationID:   id,
		ImageID:        idString(raw.ImageID),
		BBox:           raw.BBox,
		Timestamp:      raw.Timestamp,
		FaceConfidence: confidence,
		OpenFace3: Features{
			Landmarks2D: raw.Features.Landmarks2D,
			ActionUnits: raw.Features.ActionUnits,
			HeadPose:    raw.Features.HeadPose,
			Gaze:        raw.Features.Gaze,
			Emotion:     raw.Features.Emotion,
			TrackID:     raw.TrackID,
		},
		Pipeline: Pipeline,
		Format:   Format,
	}
}

// FilterByConfidence keeps faces whose confidence is at least threshold.
func FilterByConfidence(faces []FaceAnnotation, threshold float64) []FaceAnnotation {
	out := make([]FaceAnnotation, 0, len(faces))
	for _, face := range faces {
		if face.FaceConfidence >= threshold {
			out = append(out, face)
		}
	}
	return out
}

// Timestamps returns the distinct face timestamps in ascending order.
func Timestamps(faces []FaceAnnotation) []float64 {
	seen := make(map[float64]struct{}, len(faces))
	out := make([]float64, 0, len(faces))
	for _, face := range faces {
		if _, ok := seen[face.Timestamp]; ok {
			continue
		}
		seen[face.Timestamp] = struct{}{}
		out = append(out, face.Timestamp)
	}
	sort.Float64s(out)
	return out
}
