package filetype

import (
	"context"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"vareview/internal/source"
)

// Type names the kind of data a file carries.
type Type string

const (
	TypeVideo              Type = "video"
	TypeAudio              Type = "audio"
	TypePersonTracking     Type = "person_tracking"
	TypeSpeechRecognition  Type = "speech_recognition"
	TypeSpeakerDiarization Type = "speaker_diarization"
	TypeSceneDetection     Type = "scene_detection"
	TypeFaceAnalysis       Type = "face_analysis"
	TypeUnknown            Type = "unknown"
)

// Confidence grades how certain a classification is.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Info is the classification result for one file.
type Info struct {
	Type       Type       `json:"type"`
	Extension  string     `json:"extension"`
	MIMEType   string     `json:"mimeType"`
	Confidence Confidence `json:"confidence"`
	Reason     string     `json:"reason"`
}

// Detected pairs a file with its classification.
type Detected struct {
	File source.File
	Info Info
}

var (
	videoExtensions = map[string]struct{}{"mp4": {}, "webm": {}, "avi": {}, "mov": {}, "mkv": {}}
	audioExtensions = map[string]struct{}{"wav": {}, "mp3": {}, "aac": {}, "ogg": {}}
)

const reasonNeedsContent = "JSON file requires content analysis"

// Classify inspects the name, extension, and MIME type of f. The result is a
// pure function of those three values.
func Classify(f source.File) Info {
	return ClassifyName(f.Name(), f.MIMEType())
}

// ClassifyName applies the extension and MIME rules without a file handle.
func ClassifyName(name, mimeType string) Info {
	ext := source.Extension(name)
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	info := Info{Extension: ext, MIMEType: mimeType}

	_, videoExt := videoExtensions[ext]
	_, audioExt := audioExtensions[ext]
	switch {
	case strings.HasPrefix(mimeType, "video/") || videoExt:
		return info.with(TypeVideo, ConfidenceHigh, "video container by "+basis(strings.HasPrefix(mimeType, "video/")))
	case strings.HasPrefix(mimeType, "audio/") || audioExt:
		return info.with(TypeAudio, ConfidenceHigh, "audio file by "+basis(strings.HasPrefix(mimeType, "audio/")))
	case ext == "vtt" || mimeType == "text/vtt":
		return info.with(TypeSpeechRecognition, ConfidenceHigh, "WebVTT subtitle cues")
	case ext == "rttm":
		return info.with(TypeSpeakerDiarization, ConfidenceHigh, "RTTM speaker segments")
	case isJSON(ext, mimeType):
		return info.with(TypeUnknown, ConfidenceLow, reasonNeedsContent)
	default:
		return info.with(TypeUnknown, ConfidenceLow, "unrecognized file type")
	}
}

// NeedsContentAnalysis reports whether info is the deferred unknown+json case.
func NeedsContentAnalysis(info Info) bool {
	return info.Type == TypeUnknown && isJSON(info.Extension, info.MIMEType)
}

// ClassifyContent classifies f, peeking at JSON structure only when the
// name-based rules leave it as unknown JSON. Read or parse failures degrade to
// TypeUnknown.
func ClassifyContent(ctx context.Context, f source.File) Info {
	info := Classify(f)
	if !NeedsContentAnalysis(info) {
		return info
	}
	if ctx != nil && ctx.Err() != nil {
		return info.with(TypeUnknown, ConfidenceLow, "content analysis cancelled")
	}
	data, err := source.ReadAll(f)
	if err != nil {
		return info.with(TypeUnknown, ConfidenceLow, "unreadable JSON: "+err.Error())
	}
	return analyzeJSON(info, data)
}

// DetectAll classifies files one at a time, in order.
func DetectAll(ctx context.Context, files []source.File) []Detected {
	out := make([]Detected, 0, len(files))
	for _, f := range files {
		out = append(out, Detected{File: f, Info: ClassifyContent(ctx, f)})
	}
	return out
}

// DetectMIME returns the MIME type implied by name, falling back to sniffing
// the leading bytes of data. Generic binary results yield an empty string.
func DetectMIME(name string, data []byte) string {
	if byName := source.MIMEFromName(name); byName != "" {
		return byName
	}
	if len(data) == 0 {
		return ""
	}
	detected := mimetype.Detect(data)
	if detected.Is("application/octet-stream") {
		return ""
	}
	if mediaType, _, err := mime.ParseMediaType(detected.String()); err == nil {
		return mediaType
	}
	return detected.String()
}

func (i Info) with(t Type, c Confidence, reason string) Info {
	i.Type = t
	i.Confidence = c
	i.Reason = reason
	return i
}

func basis(byMIME bool) string {
	if byMIME {
		return "MIME type"
	}
	return "extension"
}

func isJSON(ext, mimeType string) bool {
	return ext == "json" || mimeType == "application/json" || strings.HasSuffix(mimeType, "+json")
}
