package scenes

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"vareview/internal/source"
)

const (
	Pipeline = "scene_detection"
	Format   = "scene_json"
)

// Scene is one detected shot or scene interval.
type Scene struct {
	ID           int64    `json:"id"`
	StartTime    float64  `json:"start_time"`
	EndTime      float64  `json:"end_time"`
	Duration     float64  `json:"duration"`
	SceneType    string   `json:"scene_type,omitempty"`
	Confidence   float64  `json:"confidence"`
	KeyframeTime *float64 `json:"keyframe_time,omitempty"`
	Pipeline     string   `json:"pipeline"`
	Format       string   `json:"format"`
}

// Result holds scenes sorted by start time and any per-record warnings.
type Result struct {
	Scenes   []Scene
	Warnings []string
}

type record struct {
	ID           *int64   `json:"id"`
	SceneID      *int64   `json:"scene_id"`
	StartTime    *float64 `json:"start_time"`
	EndTime      *float64 `json:"end_time"`
	SceneType    string   `json:"scene_type"`
	Type         string   `json:"type"`
	Label        string   `json:"label"`
	Confidence   *float64 `json:"confidence"`
	KeyframeTime *float64 `json:"keyframe_time"`
}

// Parse reads a scene-boundary document.
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

// ParseBytes converts scene JSON held in memory.
func ParseBytes(name string, data []byte) (Result, error) {
	records, err := decodeRecords(name, data)
	if err != nil {
		return Result{}, err
	}

	type pending struct {
		scene Scene
		hasID bool
	}
	kept := make([]pending, 0, len(records))
	var warnings []string
	for i, raw := range records {
		scene, hasID, warning := convert(raw)
		if warning != "" {
			warnings = append(warnings, fmt.Sprintf("scene %d: %s", i, warning))
			continue
		}
		kept = append(kept, pending{scene: scene, hasID: hasID})
	}
	if len(records) > 0 && len(kept) == 0 {
		return Result{}, source.Errorf(name, 0, "no valid scenes (%s)", warnings[0])
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].scene.StartTime < kept[j].scene.StartTime
	})
	result := Result{Scenes: make([]Scene, 0, len(kept)), Warnings: warnings}
	for i, p := range kept {
		if !p.hasID {
			p.scene.ID = int64(i + 1)
		}
		result.Scenes = append(result.Scenes, p.scene)
	}
	return result, nil
}

func decodeRecords(name string, data []byte) ([]json.RawMessage, error) {
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Scenes *[]json.RawMessage `json:"scenes"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, source.WrapError(name, "expected a scene array or an object with scenes", err)
	}
	if wrapped.Scenes == nil {
		return nil, source.Errorf(name, 0, "scenes must be an array")
	}
	return *wrapped.Scenes, nil
}

func convert(raw json.RawMessage) (Scene, bool, string) {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Scene{}, false, "malformed record: " + err.Error()
	}
	if rec.StartTime == nil || rec.EndTime == nil {
		return Scene{}, false, "missing start_time or end_time"
	}
	start, end := *rec.StartTime, *rec.EndTime
	if math.IsNaN(start) || math.IsNaN(end) {
		return Scene{}, false, "non-numeric time"
	}
	if start < 0 {
		return Scene{}, false, "start_time must be >= 0"
	}
	if end <= start {
		return Scene{}, false, "end_time must be after start_time"
	}

	scene := Scene{
		StartTime:    start,
		EndTime:      end,
		Duration:     end - start,
		SceneType:    firstNonEmpty(rec.SceneType, rec.Type, rec.Label),
		Confidence:   1,
		KeyframeTime: rec.KeyframeTime,
		Pipeline:     Pipeline,
		Format:       Format,
	}
	if rec.Confidence != nil {
		scene.Confidence = math.Max(0, math.Min(1, *rec.Confidence))
	}
	hasID := true
	switch {
	case rec.ID != nil:
		scene.ID = *rec.ID
	case rec.SceneID != nil:
		scene.ID = *rec.SceneID
	default:
		hasID = false
	}
	return scene, hasID, ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
