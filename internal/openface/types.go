package openface

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

const (
	Pipeline = "face_analysis"
	Format   = "openface3"
)

// FaceAnnotation is one face detection and its analysis at a timestamp.
type FaceAnnotation struct {
	AnnotationID   int64     `json:"annotation_id"`
	ImageID        string    `json:"image_id,omitempty"`
	BBox           []float64 `json:"bbox"`
	Timestamp      float64   `json:"timestamp"`
	FaceConfidence float64   `json:"face_confidence"`
	OpenFace3      Features  `json:"openface3"`
	Pipeline       string    `json:"pipeline"`
	Format         string    `json:"format"`
}

// Features carries the optional analysis families. A nil field means the
// upstream model did not produce that family.
type Features struct {
	Landmarks2D Landmarks             `json:"landmarks_2d,omitempty"`
	ActionUnits map[string]ActionUnit `json:"action_units,omitempty"`
	HeadPose    *HeadPose             `json:"head_pose,omitempty"`
	Gaze        *Gaze                 `json:"gaze,omitempty"`
	Emotion     *Emotion              `json:"emotion,omitempty"`
	TrackID     *int64                `json:"track_id,omitempty"`
}

// Landmarks is a list of (x, y) points.
type Landmarks [][]float64

// UnmarshalJSON accepts nested pairs or a flat x0,y0,x1,y1,... list.
func (l *Landmarks) UnmarshalJSON(data []byte) error {
	var nested [][]float64
	if err := json.Unmarshal(data, &nested); err == nil {
		*l = nested
		return nil
	}
	var flat []float64
	if err := json.Unmarshal(data, &flat); err != nil {
		return fmt.Errorf("landmarks_2d: expected point pairs or a flat coordinate list")
	}
	if len(flat)%2 != 0 {
		return fmt.Errorf("landmarks_2d: odd coordinate count %d", len(flat))
	}
	points := make([][]float64, 0, len(flat)/2)
	for i := 0; i < len(flat); i += 2 {
		points = append(points, []float64{flat[i], flat[i+1]})
	}
	*l = points
	return nil
}

// ActionUnit is one facial action unit reading.
type ActionUnit struct {
	Intensity float64 `json:"intensity"`
	Presence  bool    `json:"presence"`
}

// UnmarshalJSON accepts either an object or a bare intensity number.
func (a *ActionUnit) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] != '{' {
		v, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("action unit: %w", err)
		}
		*a = ActionUnit{Intensity: v, Presence: v > 0}
		return nil
	}
	type plain ActionUnit
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*a = ActionUnit(p)
	return nil
}

// HeadPose angles are in degrees.
type HeadPose struct {
	Pitch      float64  `json:"pitch"`
	Yaw        float64  `json:"yaw"`
	Roll       float64  `json:"roll"`
	Confidence *float64 `json:"confidence,omitempty"`
}

type Gaze struct {
	DirectionX float64  `json:"direction_x"`
	DirectionY float64  `json:"direction_y"`
	DirectionZ float64  `json:"direction_z"`
	Confidence *float64 `json:"confidence,omitempty"`
}

type Emotion struct {
	Dominant      string             `json:"dominant"`
	Probabilities map[string]float64 `json:"probabilities,omitempty"`
	Valence       *float64           `json:"valence,omitempty"`
	Arousal       *float64           `json:"arousal,omitempty"`
	Confidence    *float64           `json:"confidence,omitempty"`
}

// Metadata is the capture-level header of an OpenFace3 document.
type Metadata struct {
	Pipeline            string    `json:"pipeline"`
	ModelInfo           ModelInfo `json:"model_info"`
	ProcessingTimestamp string    `json:"processing_timestamp,omitempty"`
}

// ModelInfo describes the producing model. Features may be a list of family
// names or a name to enabled map.
type ModelInfo struct {
	Name     string          `json:"model_name,omitempty"`
	Version  string          `json:"version,omitempty"`
	Features json.RawMessage `json:"features,omitempty"`
}

type rawFace struct {
	AnnotationID   *int64          `json:"annotation_id"`
	ImageID        json.RawMessage `json:"image_id"`
	BBox           []float64       `json:"bbox"`
	Timestamp      float64         `json:"timestamp"`
	Confidence     *float64        `json:"confidence"`
	FaceConfidence *float64        `json:"face_confidence"`
	TrackID        *int64          `json:"track_id"`
	Features       rawFeatures     `json:"features"`
}

type rawFeatures struct {
	Landmarks2D Landmarks             `json:"landmarks_2d"`
	ActionUnits map[string]ActionUnit `json:"action_units"`
	HeadPose    *HeadPose             `json:"head_pose"`
	Gaze        *Gaze                 `json:"gaze"`
	Emotion     *Emotion              `json:"emotion"`
}

type document struct {
	Metadata Metadata  `json:"metadata"`
	Faces    []rawFace `json:"faces"`
}

// idString renders a JSON string or number identifier.
func idString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
