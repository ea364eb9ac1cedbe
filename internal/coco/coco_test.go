package coco

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"vareview/internal/services"
	"vareview/internal/source"
)

const keypointsDoc = `{
  "info": {"fps": 25},
  "images": [
    {"id": 1, "file_name": "frame_0001.jpg", "frame_number": 50},
    {"id": 2, "file_name": "frame_0002.jpg", "timestamp": 1.5}
  ],
  "annotations": [
    {"id": 11, "image_id": 2, "category_id": 1, "bbox": [0, 0, 10, 20], "keypoints": [1, 2, 2, 3, 4, 0], "score": 0.8, "track_id": 4},
    {"id": 10, "image_id": 1, "category_id": 1, "bbox": [1, 1, 10, 20], "keypoints": [1, 2, 2], "num_keypoints": 1},
    {"id": 12, "image_id": 2, "bbox": [1, 1, 10], "keypoints": []},
    {"id": 13, "image_id": 2, "bbox": [1, 1, 10, 20], "keypoints": [1, 2]},
    {"id": 14, "timestamp": 0.25, "bbox": [1, 1, 10, 20], "keypoints": []}
  ],
  "categories": [{"id": 1, "name": "person"}]
}`

func TestParseKeypointsDocument(t *testing.T) {
	result, err := Parse(context.Background(), source.FromBytes("pose.json", []byte(keypointsDoc), ""), Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(result.People) != 3 {
		t.Fatalf("expected 3 people, got %+v", result.People)
	}
	if len(result.Warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %v", result.Warnings)
	}
	if !strings.Contains(result.Warnings[0], "annotations 2: bbox must have 4 values") {
		t.Fatalf("unexpected warning %q", result.Warnings[0])
	}
	if !strings.Contains(result.Warnings[1], "not a multiple of 3") {
		t.Fatalf("unexpected warning %q", result.Warnings[1])
	}

	order := []int64{14, 11, 10}
	for i, id := range order {
		if result.People[i].ID != id {
			t.Fatalf("expected ordering %v by timestamp, got %+v", order, result.People)
		}
	}
	fromImage := result.People[1]
	if fromImage.Timestamp != 1.5 || fromImage.TrackID == nil || *fromImage.TrackID != 4 || fromImage.NumKeypoints != 1 {
		t.Fatalf("unexpected annotation 11: %+v", fromImage)
	}
	fromFrame := result.People[2]
	if math.Abs(fromFrame.Timestamp-2.0) > 1e-9 {
		t.Fatalf("expected frame 50 at 25fps to be 2.0s, got %v", fromFrame.Timestamp)
	}
	if fromFrame.Score != 1 || fromFrame.Pipeline != Pipeline {
		t.Fatalf("unexpected defaults: %+v", fromFrame)
	}
}

func TestParsePeopleLayoutUsesOptionFPS(t *testing.T) {
	body := `{"people": [{"frame_number": 30, "bbox": [0, 0, 5, 5], "keypoints": [0, 0, 1]}]}`
	result, err := ParseBytes("people.json", []byte(body), Options{FPS: 15})
	if err != nil {
		t.Fatalf("ParseBytes: %v", err)
	}
	if len(result.People) != 1 || result.People[0].Timestamp != 2 || result.People[0].ID != 1 {
		t.Fatalf("unexpected people: %+v", result.People)
	}
}

func TestParseStructuralFailures(t *testing.T) {
	tests := map[string]string{
		"not an object":        `[1, 2]`,
		"annotations object":   `{"annotations": {}}`,
		"missing arrays":       `{"images": []}`,
		"all records invalid":  `{"annotations": [{"bbox": [1]}]}`,
		"no timestamp sources": `{"annotations": [{"bbox": [0, 0, 1, 1], "keypoints": []}]}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseBytes("pose.json", []byte(body), Options{})
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation marker, got %v", err)
			}
		})
	}
}

func TestParseEmptyAnnotationsIsValid(t *testing.T) {
	result, err := ParseBytes("pose.json", []byte(`{"images": [], "annotations": []}`), Options{})
	if err != nil {
		t.Fatalf("ParseBytes: %v", err)
	}
	if result.People == nil || len(result.People) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", result.People)
	}
}
