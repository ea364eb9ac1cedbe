package annotations

import (
	"fmt"

	"vareview/internal/coco"
	"vareview/internal/openface"
	"vareview/internal/rttm"
	"vareview/internal/scenes"
	"vareview/internal/webvtt"
)

// EnforceRange applies the time-range invariant: every timestamp or start
// time must fall within [0, video_info.duration]. An unknown duration is
// inferred from the latest annotation end first, so only negative times can
// fall outside it. Records outside the range are removed when drop is true;
// either way one warning per affected kind is recorded in metadata.warnings
// and returned.
func (d *Document) EnforceRange(drop bool) []string {
	if d.VideoInfo.Duration <= 0 {
		d.VideoInfo.Duration = d.MaxEnd()
	}
	limit := d.VideoInfo.Duration
	var warnings []string
	report := func(kind string, n int) {
		if n == 0 {
			return
		}
		verb := "found"
		if drop {
			verb = "dropped"
		}
		warnings = append(warnings, fmt.Sprintf("%s: %s %d records outside [0, %.3f]s", kind, verb, n, limit))
	}

	var n int
	d.PersonTracking, n = filterRange(d.PersonTracking, limit, drop, func(p coco.PersonAnnotation) float64 { return p.Timestamp })
	report(KindPersonTracking, n)
	d.FaceAnalysis, n = filterRange(d.FaceAnalysis, limit, drop, func(f openface.FaceAnnotation) float64 { return f.Timestamp })
	report(KindFaceAnalysis, n)
	d.SpeechRecognition, n = filterRange(d.SpeechRecognition, limit, drop, func(c webvtt.Cue) float64 { return c.StartTime })
	report(KindSpeechRecognition, n)
	d.SpeakerDiarization, n = filterRange(d.SpeakerDiarization, limit, drop, func(s rttm.Segment) float64 { return s.StartTime })
	report(KindSpeakerDiarization, n)
	d.SceneDetection, n = filterRange(d.SceneDetection, limit, drop, func(s scenes.Scene) float64 { return s.StartTime })
	report(KindSceneDetection, n)

	d.Metadata.Warnings = append(d.Metadata.Warnings, warnings...)
	return warnings
}

// filterRange counts items whose time lies outside [0, limit] and, when drop
// is set, removes them.
func filterRange[T any](items []T, limit float64, drop bool, at func(T) float64) ([]T, int) {
	outside := 0
	kept := make([]T, 0, len(items))
	for _, item := range items {
		t := at(item)
		if t >= 0 && t <= limit {
			kept = append(kept, item)
			continue
		}
		outside++
		if !drop {
			kept = append(kept, item)
		}
	}
	return kept, outside
}
