package annotations

import (
	"vareview/internal/coco"
	"vareview/internal/openface"
	"vareview/internal/rttm"
	"vareview/internal/scenes"
	"vareview/internal/webvtt"
)

// Kind names match the document's array keys.
const (
	KindPersonTracking     = coco.Pipeline
	KindFaceAnalysis       = openface.Pipeline
	KindSpeechRecognition  = webvtt.Pipeline
	KindSpeakerDiarization = rttm.Pipeline
	KindSceneDetection     = scenes.Pipeline
)

// Kinds lists every annotation kind in document order.
var Kinds = []string{
	KindPersonTracking,
	KindFaceAnalysis,
	KindSpeechRecognition,
	KindSpeakerDiarization,
	KindSceneDetection,
}
