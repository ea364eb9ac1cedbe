package filetype

import "encoding/json"

func analyzeJSON(info Info, data []byte) Info {
	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		return info.with(TypeUnknown, ConfidenceLow, "invalid JSON: "+err.Error())
	}

	switch doc := root.(type) {
	case []any:
		if first, ok := firstObject(doc); ok && hasKeys(first, "start_time", "end_time") {
			return info.with(TypeSceneDetection, ConfidenceHigh, "array of timed segments")
		}
	case map[string]any:
		if annotations, ok := doc["annotations"].([]any); ok {
			if first, ok := firstObject(annotations); ok && hasKeys(first, "keypoints") {
				return info.with(TypePersonTracking, ConfidenceHigh, "COCO keypoint annotations")
			}
		}
		if _, ok := doc["scenes"].([]any); ok {
			return info.with(TypeSceneDetection, ConfidenceMedium, "scenes array")
		}
		if _, ok := doc["people"].([]any); ok {
			return info.with(TypePersonTracking, ConfidenceMedium, "people array")
		}
		if _, ok := doc["faces"].([]any); ok {
			if meta, ok := doc["metadata"].(map[string]any); ok && hasKeys(meta, "model_info") {
				return info.with(TypeFaceAnalysis, ConfidenceHigh, "OpenFace3 capture document")
			}
			return info.with(TypeFaceAnalysis, ConfidenceMedium, "faces array")
		}
	}
	return info.with(TypeUnknown, ConfidenceLow, "JSON structure not recognized")
}

func firstObject(values []any) (map[string]any, bool) {
	if len(values) == 0 {
		return nil, false
	}
	obj, ok := values[0].(map[string]any)
	return obj, ok
}

func hasKeys(obj map[string]any, keys ...string) bool {
	for _, key := range keys {
		if _, ok := obj[key]; !ok {
			return false
		}
	}
	return true
}
