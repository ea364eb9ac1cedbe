package openface

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"vareview/internal/services"
	"vareview/internal/source"
)

const capture = `{
  "metadata": {
    "pipeline": "openface3_face_analysis",
    "model_info": {"model_name": "openface3", "features": ["landmarks_2d", "action_units", "head_pose", "emotion"]}
  },
  "faces": [
    {
      "annotation_id": 7,
      "image_id": "frame_000030",
      "bbox": [10, 20, 50, 60],
      "timestamp": 1.0,
      "confidence": 0.92,
      "track_id": 3,
      "features": {
        "landmarks_2d": [12.5, 30.0, 14.0, 31.5],
        "action_units": {"AU01": {"intensity": 0.4, "presence": true}, "AU12": 1.2},
        "head_pose": {"pitch": 1.5, "yaw": -3.0, "roll": 0.2},
        "emotion": {"dominant": "happy", "probabilities": {"happy": 0.8, "neutral": 0.2}}
      }
    },
    {
      "image_id": 60,
      "bbox": [11, 21, 50, 60],
      "timestamp": 2.0,
      "confidence": 0.4,
      "features": {}
    },
    {
      "image_id": 61,
      "bbox": [11, 21, 50, 60],
      "timestamp": 1.0,
      "features": {"gaze": {"direction_x": 0.1, "direction_y": 0.0, "direction_z": -1.0}}
    }
  ]
}`

func TestParseCapture(t *testing.T) {
	result, err := Parse(context.Background(), source.FromBytes("faces.json", []byte(capture), ""))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(result.Faces) != 3 {
		t.Fatalf("expected 3 faces, got %d", len(result.Faces))
	}

	first := result.Faces[0]
	if first.AnnotationID != 7 || first.ImageID != "frame_000030" || first.FaceConfidence != 0.92 {
		t.Fatalf("unexpected first face: %+v", first)
	}
	if !reflect.DeepEqual([][]float64(first.OpenFace3.Landmarks2D), [][]float64{{12.5, 30}, {14, 31.5}}) {
		t.Fatalf("unexpected landmarks: %v", first.OpenFace3.Landmarks2D)
	}
	if au := first.OpenFace3.ActionUnits["AU12"]; au.Intensity != 1.2 || !au.Presence {
		t.Fatalf("expected numeric action unit to decode, got %+v", au)
	}
	if first.OpenFace3.HeadPose == nil || first.OpenFace3.HeadPose.Yaw != -3 {
		t.Fatalf("unexpected head pose: %+v", first.OpenFace3.HeadPose)
	}
	if first.OpenFace3.Gaze != nil {
		t.Fatal("expected gaze to stay absent")
	}
	if first.OpenFace3.TrackID == nil || *first.OpenFace3.TrackID != 3 {
		t.Fatalf("expected track id, got %v", first.OpenFace3.TrackID)
	}

	second := result.Faces[1]
	if second.AnnotationID != 2 {
		t.Fatalf("expected fallback sequential id 2, got %d", second.AnnotationID)
	}
	if second.ImageID != "60" {
		t.Fatalf("expected numeric image id rendered, got %q", second.ImageID)
	}
	if result.Faces[2].FaceConfidence != 1 {
		t.Fatalf("expected missing confidence to default to 1, got %v", result.Faces[2].FaceConfidence)
	}
	if second.Pipeline != Pipeline || second.Format != Format {
		t.Fatalf("unexpected provenance: %+v", second)
	}

	wantFeatures := FeatureSet{Landmarks: true, ActionUnits: true, HeadPose: true, Emotion: true}
	if result.Features != wantFeatures {
		t.Fatalf("features = %+v, want %+v", result.Features, wantFeatures)
	}
}

func TestParseValidationIsAllOrNothing(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"not json", `{"metadata":`, "expected a JSON object"},
		{"array root", `[]`, "expected a JSON object"},
		{"no metadata", `{"faces": []}`, "missing metadata object"},
		{"no pipeline", `{"metadata": {"model_info": {}}, "faces": []}`, "missing metadata.pipeline"},
		{"no model info", `{"metadata": {"pipeline": "p"}, "faces": []}`, "missing metadata.model_info"},
		{"faces not array", `{"metadata": {"pipeline": "p", "model_info": {}}, "faces": {}}`, "faces must be an array"},
		{"first face incomplete", `{"metadata": {"pipeline": "p", "model_info": {}}, "faces": [{"bbox": [0,0,1,1], "timestamp": 0}]}`, "first face is missing features"},
		{"bad later face", `{"metadata": {"pipeline": "p", "model_info": {}}, "faces": [{"bbox": [0,0,1,1], "timestamp": 0, "features": {}}, {"bbox": "wide"}]}`, "invalid OpenFace3 document"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseBytes("faces.json", []byte(tt.body))
			if err == nil {
				t.Fatalf("expected error, got %d faces", len(result.Faces))
			}
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation marker, got %v", err)
			}
			if !strings.HasPrefix(err.Error(), "faces.json: ") || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("unexpected error %q", err.Error())
			}
		})
	}
}

func TestParseEmptyFacesIsValid(t *testing.T) {
	result, err := ParseBytes("faces.json", []byte(`{"metadata": {"pipeline": "p", "model_info": {}}, "faces": []}`))
	if err != nil {
		t.Fatalf("ParseBytes: %v", err)
	}
	if result.Faces == nil || len(result.Faces) != 0 {
		t.Fatalf("expected empty non-nil faces, got %#v", result.Faces)
	}
}

func TestAvailableFeaturesFallsBackToFirstFace(t *testing.T) {
	body := `{"metadata": {"pipeline": "p", "model_info": {"features": {"gaze": false}}}, "faces": [
	  {"bbox": [0,0,1,1], "timestamp": 0, "track_id": 1, "features": {"gaze": {"direction_x": 1}}}
	]}`
	result, err := ParseBytes("faces.json", []byte(body))
	if err != nil {
		t.Fatalf("ParseBytes: %v", err)
	}
	want := FeatureSet{Gaze: true, Tracking: true}
	if result.Features != want {
		t.Fatalf("features = %+v, want %+v", result.Features, want)
	}
	if names := result.Features.Names(); !reflect.DeepEqual(names, []string{"gaze", "tracking"}) {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestFilterByConfidenceInclusive(t *testing.T) {
	faces := []FaceAnnotation{
		{AnnotationID: 1, FaceConfidence: 0.49},
		{AnnotationID: 2, FaceConfidence: 0.5},
		{AnnotationID: 3, FaceConfidence: 0.9},
	}
	kept := FilterByConfidence(faces, DefaultConfidenceThreshold)
	if len(kept) != 2 || kept[0].AnnotationID != 2 || kept[1].AnnotationID != 3 {
		t.Fatalf("unexpected filter result: %+v", kept)
	}
}

func TestTimestampsDeduplicatedAndSorted(t *testing.T) {
	faces := []FaceAnnotation{{Timestamp: 2}, {Timestamp: 1}, {Timestamp: 2}, {Timestamp: 0.5}}
	if got := Timestamps(faces); !reflect.DeepEqual(got, []float64{0.5, 1, 2}) {
		t.Fatalf("unexpected timestamps %v", got)
	}
}
