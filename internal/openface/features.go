package openface

import (
	"encoding/json"
	"strings"
)

// FeatureSet lists which optional families a capture provides.
type FeatureSet struct {
	Landmarks   bool `json:"landmarks"`
	ActionUnits bool `json:"action_units"`
	HeadPose    bool `json:"head_pose"`
	Gaze        bool `json:"gaze"`
	Emotion     bool `json:"emotion"`
	Tracking    bool `json:"tracking"`
}

// Names returns the enabled family names in a fixed order.
func (s FeatureSet) Names() []string {
	var names []string
	for _, f := range []struct {
		on   bool
		name string
	}{
		{s.Landmarks, "landmarks"},
		{s.ActionUnits, "action_units"},
		{s.HeadPose, "head_pose"},
		{s.Gaze, "gaze"},
		{s.Emotion, "emotion"},
		{s.Tracking, "tracking"},
	} {
		if f.on {
			names = append(names, f.name)
		}
	}
	return names
}

// AvailableFeatures reports the families declared in model_info.features.
// When the model declares nothing, the first face is inspected instead.
func AvailableFeatures(meta Metadata, faces []FaceAnnotation) FeatureSet {
	if declared, ok := declaredFeatures(meta.ModelInfo.Features); ok {
		return declared
	}
	if len(faces) == 0 {
		return FeatureSet{}
	}
	first := faces[0].OpenFace3
	return FeatureSet{
		Landmarks:   len(first.Landmarks2D) > 0,
		ActionUnits: len(first.ActionUnits) > 0,
		HeadPose:    first.HeadPose != nil,
		Gaze:        first.Gaze != nil,
		Emotion:     first.Emotion != nil,
		Tracking:    first.TrackID != nil,
	}
}

func declaredFeatures(raw json.RawMessage) (FeatureSet, bool) {
	if len(raw) == 0 {
		return FeatureSet{}, false
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		var flags map[string]bool
		if err := json.Unmarshal(raw, &flags); err != nil {
			return FeatureSet{}, false
		}
		for name, on := range flags {
			if on {
				names = append(names, name)
			}
		}
	}
	if len(names) == 0 {
		return FeatureSet{}, false
	}
	var set FeatureSet
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "landmarks", "landmarks_2d", "landmarks_3d":
			set.Landmarks = true
		case "action_units", "aus":
			set.ActionUnits = true
		case "head_pose", "pose":
			set.HeadPose = true
		case "gaze":
			set.Gaze = true
		case "emotion", "emotions":
			set.Emotion = true
		case "tracking", "track_id", "face_tracking":
			set.Tracking = true
		}
	}
	return set, true
}
