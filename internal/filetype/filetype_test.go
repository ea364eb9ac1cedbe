package filetype_test

import (
	"context"
	"testing"

	"vareview/internal/filetype"
	"vareview/internal/source"
)

func TestClassifyByNameAndMIME(t *testing.T) {
	tests := []struct {
		name       string
		file       string
		mime       string
		wantType   filetype.Type
		wantConf   filetype.Confidence
		wantReason string
	}{
		{"mp4 extension", "clip.mp4", "", filetype.TypeVideo, filetype.ConfidenceHigh, ""},
		{"video mime without extension", "clip", "video/quicktime", filetype.TypeVideo, filetype.ConfidenceHigh, ""},
		{"uppercase mkv", "CLIP.MKV", "", filetype.TypeVideo, filetype.ConfidenceHigh, ""},
		{"wav", "voice.wav", "", filetype.TypeAudio, filetype.ConfidenceHigh, ""},
		{"audio mime", "voice", "audio/mpeg", filetype.TypeAudio, filetype.ConfidenceHigh, ""},
		{"vtt extension", "speech.vtt", "", filetype.TypeSpeechRecognition, filetype.ConfidenceHigh, ""},
		{"vtt mime", "speech.txt", "text/vtt", filetype.TypeSpeechRecognition, filetype.ConfidenceHigh, ""},
		{"rttm", "speakers.rttm", "text/plain", filetype.TypeSpeakerDiarization, filetype.ConfidenceHigh, ""},
		{"json deferred", "scenes.json", "application/json", filetype.TypeUnknown, filetype.ConfidenceLow, "JSON file requires content analysis"},
		{"json mime only", "payload", "application/json", filetype.TypeUnknown, filetype.ConfidenceLow, "JSON file requires content analysis"},
		{"other", "notes.txt", "text/plain", filetype.TypeUnknown, filetype.ConfidenceLow, "unrecognized file type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := filetype.Classify(source.FromBytes(tt.file, nil, tt.mime))
			if info.Type != tt.wantType || info.Confidence != tt.wantConf {
				t.Fatalf("Classify(%q, %q) = %s/%s, want %s/%s", tt.file, tt.mime, info.Type, info.Confidence, tt.wantType, tt.wantConf)
			}
			if tt.wantReason != "" && info.Reason != tt.wantReason {
				t.Fatalf("unexpected reason %q", info.Reason)
			}
			if info.Reason == "" {
				t.Fatal("expected a reason")
			}
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	a := filetype.ClassifyName("clip.webm", "")
	b := filetype.Classify(source.FromBytes("clip.webm", []byte("different bytes"), "video/webm"))
	if a.Type != b.Type || a.Confidence != b.Confidence {
		t.Fatalf("expected same classification, got %+v and %+v", a, b)
	}
}

func TestClassifyContent(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantType filetype.Type
		wantConf filetype.Confidence
	}{
		{"coco keypoints", `{"images":[],"annotations":[{"id":1,"keypoints":[1,2,2]}]}`, filetype.TypePersonTracking, filetype.ConfidenceHigh},
		{"scene array", `[{"start_time":0,"end_time":5},{"start_time":5,"end_time":12}]`, filetype.TypeSceneDetection, filetype.ConfidenceHigh},
		{"scenes key", `{"scenes":[]}`, filetype.TypeSceneDetection, filetype.ConfidenceMedium},
		{"people key", `{"people":[{"id":1}]}`, filetype.TypePersonTracking, filetype.ConfidenceMedium},
		{"openface", `{"metadata":{"pipeline":"face","model_info":{}},"faces":[]}`, filetype.TypeFaceAnalysis, filetype.ConfidenceHigh},
		{"faces without model info", `{"faces":[]}`, filetype.TypeFaceAnalysis, filetype.ConfidenceMedium},
		{"annotations without keypoints", `{"annotations":[{"bbox":[0,0,1,1]}]}`, filetype.TypeUnknown, filetype.ConfidenceLow},
		{"array without times", `[{"start_time":0}]`, filetype.TypeUnknown, filetype.ConfidenceLow},
		{"invalid json", `{"scenes": [`, filetype.TypeUnknown, filetype.ConfidenceLow},
		{"scalar", `42`, filetype.TypeUnknown, filetype.ConfidenceLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := filetype.ClassifyContent(context.Background(), source.FromBytes("data.json", []byte(tt.body), ""))
			if info.Type != tt.wantType || info.Confidence != tt.wantConf {
				t.Fatalf("got %s/%s (%s), want %s/%s", info.Type, info.Confidence, info.Reason, tt.wantType, tt.wantConf)
			}
		})
	}
}

func TestClassifyContentSkipsNonJSON(t *testing.T) {
	f := source.FromBytes("clip.mp4", []byte(`[{"start_time":0,"end_time":1}]`), "")
	if info := filetype.ClassifyContent(context.Background(), f); info.Type != filetype.TypeVideo {
		t.Fatalf("expected name rules to win, got %s", info.Type)
	}
}

func TestDetectAllPreservesOrder(t *testing.T) {
	files := []source.File{
		source.FromBytes("a.rttm", nil, ""),
		source.FromBytes("b.json", []byte(`{"scenes":[]}`), ""),
		source.FromBytes("c.mp4", nil, ""),
	}
	detected := filetype.DetectAll(context.Background(), files)
	want := []filetype.Type{filetype.TypeSpeakerDiarization, filetype.TypeSceneDetection, filetype.TypeVideo}
	if len(detected) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(detected))
	}
	for i, d := range detected {
		if d.Info.Type != want[i] || d.File != files[i] {
			t.Fatalf("entry %d: got %s for %s", i, d.Info.Type, d.File.Name())
		}
	}
}

func TestDetectMIME(t *testing.T) {
	if got := filetype.DetectMIME("scenes.json", nil); got != "application/json" {
		t.Fatalf("expected name-derived mime, got %q", got)
	}
	if got := filetype.DetectMIME("payload", []byte(`{"scenes":[]}`)); got != "application/json" {
		t.Fatalf("expected sniffed json, got %q", got)
	}
	if got := filetype.DetectMIME("blob", []byte{0x00, 0x01, 0x02, 0x03}); got != "" {
		t.Fatalf("expected empty mime for opaque bytes, got %q", got)
	}
}
