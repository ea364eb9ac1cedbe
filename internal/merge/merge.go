package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"vareview/internal/annotations"
	"vareview/internal/coco"
	"vareview/internal/config"
	"vareview/internal/filetype"
	"vareview/internal/logging"
	"vareview/internal/openface"
	"vareview/internal/rttm"
	"vareview/internal/scenes"
	"vareview/internal/services"
	"vareview/internal/source"
	"vareview/internal/webvtt"
)

// ErrNoUsableInput is returned when a batch has neither a video nor a single
// file that parsed.
var ErrNoUsableInput = fmt.Errorf("no usable input files: %w", services.ErrValidation)

// StageComplete is reported once every file has been handled.
const StageComplete = "complete"

// ProgressFunc observes merge progress at file boundaries. completed never
// decreases within one Merge call.
type ProgressFunc func(stage string, completed, total int)

// Options tune an Engine.
type Options struct {
	// COCOFPS converts frame numbers to timestamps when a COCO document
	// carries no fps of its own.
	COCOFPS float64
	// DropOutOfRange removes records outside [0, duration] instead of only
	// reporting them.
	DropOutOfRange bool
	// Prober fills video_info from the video file. Nil disables probing.
	Prober Prober
	Logger *slog.Logger
}

// Engine merges detected files into canonical documents. It holds no
// per-merge state and may be reused.
type Engine struct {
	opts   Options
	logger *slog.Logger
}

// Result is the outcome of one Merge call. The caller owns Document.
type Result struct {
	Document       *annotations.Document
	FilesProcessed int
	Warnings       []string
}

// New constructs an Engine.
func New(opts Options) *Engine {
	if opts.COCOFPS <= 0 {
		opts.COCOFPS = coco.DefaultFPS
	}
	return &Engine{opts: opts, logger: logging.NewComponentLogger(opts.Logger, "merge")}
}

// NewFromConfig builds an Engine from the [merge] configuration section.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Engine {
	opts := Options{Logger: logger}
	if cfg != nil {
		opts.COCOFPS = cfg.Merge.COCODefaultFPS
		opts.DropOutOfRange = cfg.Merge.DropOutOfRange
		if cfg.Merge.ProbeVideo {
			opts.Prober = NewFFprobe(cfg.FFprobeBinary(), 30*time.Minute)
		}
	}
	return New(opts)
}

// Merge parses every detected file and folds the records into one document.
// Files are handled sequentially; a cancelled context stops the batch
// between files.
func (e *Engine) Merge(ctx context.Context, detected []filetype.Detected, onProgress ProgressFunc) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	total := len(detected)
	report := func(stage string, completed int) {
		if onProgress != nil {
			onProgress(stage, completed, total)
		}
	}

	var (
		video     source.File
		warnings  []string
		processed int
		parsed    int
	)
	doc := annotations.New(annotations.VideoInfo{}, annotations.SourceMerged)
	report("start", 0)

	for i, entry := range detected {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if entry.File == nil {
			warnings = append(warnings, fmt.Sprintf("entry %d: missing file handle", i+1))
			report("skipped", i+1)
			continue
		}
		info := entry.Info
		if info.Type == "" || filetype.NeedsContentAnalysis(info) {
			info = filetype.ClassifyContent(ctx, entry.File)
		}
		name := entry.File.Name()

		switch info.Type {
		case filetype.TypeVideo:
			if video != nil {
				warnings = append(warnings, fmt.Sprintf("%s: additional video ignored, using %s", name, video.Name()))
				break
			}
			video = entry.File
			processed++
		case filetype.TypeAudio, filetype.TypeUnknown:
			warnings = append(warnings, fmt.Sprintf("%s: unsupported file type (%s)", name, info.Reason))
		default:
			fileWarnings, err := e.parseInto(ctx, doc, entry.File, info.Type)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return Result{}, ctxErr
				}
				warnings = append(warnings, failureWarning(name, err))
				logging.WarnWithContext(e.logger, "annotation file skipped", "merge_file_failed",
					logging.File(name),
					logging.String("type", string(info.Type)),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check the file against its format"),
					logging.String(logging.FieldImpact, "records from this file are missing from the merged document"),
				)
				break
			}
			for _, w := range fileWarnings {
				warnings = append(warnings, name+": "+w)
			}
			processed++
			parsed++
		}
		report(string(info.Type), i+1)
	}

	if video == nil && parsed == 0 {
		return Result{}, ErrNoUsableInput
	}

	if video != nil {
		doc.VideoInfo = e.videoInfo(ctx, video)
	}
	doc.Metadata.Warnings = append(doc.Metadata.Warnings, warnings...)
	doc.SortByTime()
	doc.EnforceRange(e.opts.DropOutOfRange)
	doc.Metadata.Pipelines = doc.ContributingPipelines()
	doc.EnsureArrays()
	report(StageComplete, total)

	e.logger.Info("merge complete",
		logging.Int("files", total),
		logging.Int("files_processed", processed),
		logging.Int("records", doc.Total()),
		logging.Int("warnings", len(doc.Metadata.Warnings)),
		logging.Strings("pipelines", doc.Metadata.Pipelines),
	)
	return Result{
		Document:       doc,
		FilesProcessed: processed,
		Warnings:       append([]string(nil), doc.Metadata.Warnings...),
	}, nil
}

func (e *Engine) parseInto(ctx context.Context, doc *annotations.Document, f source.File, t filetype.Type) ([]string, error) {
	switch t {
	case filetype.TypeSpeakerDiarization:
		result, err := rttm.Parse(ctx, f)
		if err != nil {
			return nil, err
		}
		doc.SpeakerDiarization = append(doc.SpeakerDiarization, result.Segments...)
		return result.Warnings, nil
	case filetype.TypeSpeechRecognition:
		result, err := webvtt.Parse(ctx, f)
		if err != nil {
			return nil, err
		}
		doc.SpeechRecognition = append(doc.SpeechRecognition, result.Cues...)
		return result.Warnings, nil
	case filetype.TypeFaceAnalysis:
		result, err := openface.Parse(ctx, f)
		if err != nil {
			return nil, err
		}
		doc.FaceAnalysis = append(doc.FaceAnalysis, result.Faces...)
		return nil, nil
	case filetype.TypePersonTracking:
		result, err := coco.Parse(ctx, f, coco.Options{FPS: e.opts.COCOFPS})
		if err != nil {
			return nil, err
		}
		doc.PersonTracking = append(doc.PersonTracking, result.People...)
		return result.Warnings, nil
	case filetype.TypeSceneDetection:
		result, err := scenes.Parse(ctx, f)
		if err != nil {
			return nil, err
		}
		doc.SceneDetection = append(doc.SceneDetection, result.Scenes...)
		return result.Warnings, nil
	default:
		return nil, fmt.Errorf("no parser for %s", t)
	}
}

// videoInfo never adds document warnings; probe failures only reach the log.
func (e *Engine) videoInfo(ctx context.Context, video source.File) annotations.VideoInfo {
	info := annotations.VideoInfo{Filename: video.Name(), SizeBytes: video.Size()}
	if e.opts.Prober == nil {
		return info
	}
	pather, ok := video.(source.Pather)
	if !ok {
		return info
	}
	summary, err := e.opts.Prober.Probe(ctx, pather.Path())
	if err != nil {
		logging.WarnWithContext(e.logger, "video probe failed", "video_probe_failed",
			logging.File(video.Name()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "install ffprobe or disable merge.probe_video"),
			logging.String(logging.FieldImpact, "video duration will be inferred from annotations"),
		)
		return info
	}
	e.logger.Debug("video probed",
		logging.File(video.Name()),
		logging.Seconds("duration", summary.Duration),
		logging.Int("width", summary.Width),
		logging.Int("height", summary.Height),
	)
	info.Duration = summary.Duration
	info.Width = summary.Width
	info.Height = summary.Height
	info.FrameRate = summary.FrameRate
	if info.SizeBytes <= 0 {
		info.SizeBytes = summary.SizeBytes
	}
	return info
}

// failureWarning renders a parser failure as "<filename>: <error>".
// ParseError messages already lead with the file name.
func failureWarning(name string, err error) string {
	var parseErr *source.ParseError
	if errors.As(err, &parseErr) && parseErr.File == name {
		return parseErr.Error()
	}
	return name + ": " + err.Error()
}
