package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"vareview/internal/annotations"
	"vareview/internal/bundle"
	"vareview/internal/config"
	"vareview/internal/filetype"
	"vareview/internal/jobclient"
	"vareview/internal/library"
	"vareview/internal/logging"
	"vareview/internal/merge"
	"vareview/internal/services"
	"vareview/internal/source"
)

// ErrBusy is returned when Start is called while another Start is running.
var ErrBusy = errors.New("ingestion already in progress")

// ErrNoVideo is returned when the artifact bundle carries no video file.
var ErrNoVideo = fmt.Errorf("artifact bundle contains no video: %w", services.ErrValidation)

// Library is the subset of library.Store the flow uses.
type Library interface {
	LoadDataset(ctx context.Context, jobID string) (library.Dataset, bool)
	RootDirHandle(ctx context.Context) (library.Dir, bool)
	SetRootDirHandle(ctx context.Context, dir library.Dir) error
	SaveDataset(ctx context.Context, req library.SaveRequest) (library.IndexEntry, error)
}

// Merger merges classified files into a document.
type Merger interface {
	Merge(ctx context.Context, detected []filetype.Detected, onProgress merge.ProgressFunc) (merge.Result, error)
}

// DirPrompter asks the user for a library root. It is only consulted when no
// usable root is cached.
type DirPrompter interface {
	PromptRootDir(ctx context.Context) (library.Dir, error)
}

// Observer receives a snapshot after every state or progress change. It is
// called synchronously from Start.
type Observer func(Snapshot)

// Options configure a Flow.
type Options struct {
	Client   jobclient.Client
	Library  Library
	Merger   Merger
	Prompter DirPrompter
	// BaseURL is recorded in manifest provenance.
	BaseURL         string
	DownloadTimeout time.Duration
	// DropOutOfRange applies to pre-merged results.json documents; merged
	// documents follow the Merger's own setting.
	DropOutOfRange  bool
	Observer        Observer
	Logger          *slog.Logger
}

// Flow ingests remote jobs. Snapshot is safe to call from any goroutine.
type Flow struct {
	opts    Options
	logger  *slog.Logger
	mu      sync.Mutex
	running bool
	snap    Snapshot
}

// New constructs a Flow.
func New(opts Options) *Flow {
	return &Flow{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "ingest"),
		snap:   Snapshot{State: StateIdle, Progress: newProgress(0, -1)},
	}
}

// NewFromConfig wires a flow against the configured remote service.
func NewFromConfig(cfg *config.Config, client jobclient.Client, lib Library, prompter DirPrompter, observer Observer, logger *slog.Logger) *Flow {
	return New(Options{
		Client:          client,
		Library:         lib,
		Merger:          merge.NewFromConfig(cfg, logger),
		Prompter:        prompter,
		BaseURL:         cfg.Server.BaseURL,
		DownloadTimeout: cfg.DownloadTimeout(),
		DropOutOfRange:  cfg.Merge.DropOutOfRange,
		Observer:        observer,
		Logger:          logger,
	})
}

// Snapshot returns the current observable state.
func (f *Flow) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

// Start ingests jobID. It always begins from the fast-path check, so calling
// it again after a failure is a full retry.
func (f *Flow) Start(ctx context.Context, jobID string) (Outcome, error) {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return Outcome{}, ErrBusy
	}
	f.running = true
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.running = false
		f.mu.Unlock()
	}()

	ctx = services.WithJobID(ctx, jobID)
	logger := logging.WithContext(ctx, f.logger)
	f.update(func(s *Snapshot) {
		*s = Snapshot{JobID: jobID, State: StateIdle, Progress: newProgress(0, -1)}
	})

	if f.opts.Library != nil {
		if ds, ok := f.opts.Library.LoadDataset(ctx, jobID); ok {
			out := Outcome{
				VideoFile:    ds.Video,
				Document:     ds.Document,
				DatasetEntry: ds.Entry,
				FromCache:    true,
				Persisted:    true,
			}
			logging.WithContext(services.WithDatasetID(ctx, ds.Entry.DatasetID), f.logger).Info("using local dataset")
			f.finish(out)
			return out, nil
		}
	}

	stageCtx, stageLogger := f.enter(ctx, StateSelectingDir)
	root := f.acquireRoot(stageCtx, stageLogger)

	stageCtx, stageLogger = f.enter(ctx, StateDownloading)
	if f.opts.Client == nil {
		return Outcome{}, f.fail(stageLogger, services.Wrap(services.ErrConfiguration, "ingest", "download", "No job client configured", nil))
	}
	job := f.jobMetadata(stageCtx, stageLogger, jobID)
	archive, err := f.download(stageCtx, stageLogger, jobID)
	if err != nil {
		return Outcome{}, f.fail(stageLogger, err)
	}

	stageCtx, stageLogger = f.enter(ctx, StateUnzipping)
	video, doc, err := f.unpack(stageCtx, stageLogger, archive)
	if err != nil {
		return Outcome{}, f.fail(stageLogger, err)
	}

	if job.Status != "" && !job.Terminal() {
		doc.AddWarning("job %s was %s when downloaded; artifacts may be incomplete", jobID, job.Status)
	}

	out := Outcome{VideoFile: video, Document: doc}
	if root != nil {
		pipelines := job.Pipelines
		if len(pipelines) == 0 {
			pipelines = doc.Metadata.Pipelines
		}
		entry, err := f.opts.Library.SaveDataset(ctx, library.SaveRequest{
			JobID:      jobID,
			Video:      video,
			Document:   doc,
			Archive:    source.FromBytes(library.ArchiveName(jobID), archive, "application/zip"),
			Provenance: library.ProvenanceFor(jobID, f.opts.BaseURL, pipelines, job.Status),
		})
		if err != nil {
			logging.WarnWithContext(logger, "dataset not saved", "dataset_save_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the library folder is writable"),
				logging.String(logging.FieldImpact, "the job will be downloaded again next time"),
			)
		} else {
			out.DatasetEntry = entry
			out.Persisted = true
			logger = logging.WithContext(services.WithDatasetID(ctx, entry.DatasetID), f.logger)
		}
	}

	logger.Info("ingestion complete",
		logging.String("video", video.Name()),
		logging.Int("records", doc.Total()),
		logging.Int("warnings", len(doc.Metadata.Warnings)),
		logging.Bool("persisted", out.Persisted),
	)
	f.finish(out)
	return out, nil
}

// acquireRoot returns a writable library root or nil. Without one the flow
// still completes in memory.
func (f *Flow) acquireRoot(ctx context.Context, logger *slog.Logger) library.Dir {
	lib := f.opts.Library
	if lib == nil {
		return nil
	}
	if root, ok := lib.RootDirHandle(ctx); ok && library.EnsurePermission(root, library.ModeReadWrite) {
		return root
	}
	if f.opts.Prompter == nil {
		logging.WarnWithContext(logger, "no library root available", "library_root_missing",
			logging.String(logging.FieldErrorHint, "set one with: vareview library root set <dir>"),
			logging.String(logging.FieldImpact, "the dataset will not be saved locally"),
		)
		return nil
	}
	root, err := f.opts.Prompter.PromptRootDir(ctx)
	if err != nil || root == nil {
		logging.WarnWithContext(logger, "library root not selected", "library_root_missing",
			logging.Error(err),
			logging.String(logging.FieldImpact, "the dataset will not be saved locally"),
		)
		return nil
	}
	if !library.EnsurePermission(root, library.ModeReadWrite) {
		logging.WarnWithContext(logger, "library root not writable", "library_permission_denied",
			logging.String("root", root.Path()),
			logging.String(logging.FieldImpact, "the dataset will not be saved locally"),
		)
		return nil
	}
	if err := lib.SetRootDirHandle(ctx, root); err != nil {
		logging.WarnWithContext(logger, "library root not remembered", "library_root_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "the folder will be asked for again next time"),
		)
	}
	return root
}

// jobMetadata is best effort; provenance falls back to the document's
// pipelines and an empty status.
func (f *Flow) jobMetadata(ctx context.Context, logger *slog.Logger, jobID string) jobclient.Job {
	job, err := f.opts.Client.GetJob(ctx, jobID)
	if err != nil {
		logging.WarnWithContext(logger, "job metadata unavailable", "job_metadata_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "manifest provenance will omit job status"),
		)
		return jobclient.Job{ID: jobID}
	}
	return job
}

func (f *Flow) download(ctx context.Context, logger *slog.Logger, jobID string) ([]byte, error) {
	dctx := ctx
	if f.opts.DownloadTimeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, f.opts.DownloadTimeout)
		defer cancel()
	}
	sampler := logging.NewTransferSampler(10, 0)
	data, err := f.opts.Client.DownloadArtifacts(dctx, jobID, func(received, total int64) {
		p := newProgress(received, total)
		f.update(func(s *Snapshot) { s.Progress = p })
		if sampler.Observe(received, p.Total) {
			percent := logging.Percent(received, p.Total)
			logger.Info("artifact download progress",
				logging.Int64("received_bytes", received),
				logging.Int64("total_bytes", p.Total),
				logging.Float64("percent", percent),
			)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("download artifacts: %w", err)
	}
	return data, nil
}

// unpack reads the bundle and produces the video handle and its document.
func (f *Flow) unpack(ctx context.Context, logger *slog.Logger, data []byte) (source.File, *annotations.Document, error) {
	archive, err := bundle.Open(data)
	if err != nil {
		return nil, nil, err
	}
	files, readWarnings := bundle.Files(archive.Entries())
	detected := filetype.DetectAll(ctx, files)

	var (
		video  source.File
		legacy source.File
	)
	for _, d := range detected {
		if d.Info.Type == filetype.TypeVideo && video == nil {
			video = d.File
		}
		if legacy == nil {
			if raw, ok := source.Bytes(d.File); ok && annotations.IsLegacyResults(d.File.Name(), raw) {
				legacy = d.File
			}
		}
	}
	if video == nil {
		return nil, nil, ErrNoVideo
	}
	videoInfo := annotations.VideoInfo{Filename: video.Name(), SizeBytes: video.Size()}

	var doc *annotations.Document
	if legacy != nil {
		raw, _ := source.Bytes(legacy)
		doc, err = annotations.FromLegacyResults(raw, video.Name())
		if err != nil {
			return nil, nil, err
		}
		if doc.VideoInfo.SizeBytes == 0 {
			doc.VideoInfo.SizeBytes = video.Size()
		}
		doc.EnforceRange(f.opts.DropOutOfRange)
		logger.Info("using pre-merged results", logging.File(legacy.Name()))
	} else {
		if f.opts.Merger == nil {
			return nil, nil, services.Wrap(services.ErrConfiguration, "ingest", "merge", "No merge engine configured", nil)
		}
		result, err := f.opts.Merger.Merge(ctx, detected, nil)
		switch {
		case errors.Is(err, merge.ErrNoUsableInput):
			doc = annotations.Empty(videoInfo)
		case err != nil:
			return nil, nil, fmt.Errorf("merge artifacts: %w", err)
		default:
			doc = result.Document
		}
	}

	if doc.Total() == 0 && doc.Metadata.Source != annotations.SourceEmpty {
		empty := annotations.Empty(doc.VideoInfo)
		empty.Metadata.Warnings = append(empty.Metadata.Warnings, doc.Metadata.Warnings...)
		doc = empty
	}
	if len(readWarnings) > 0 {
		doc.Metadata.Warnings = append(doc.Metadata.Warnings, readWarnings...)
	}
	doc.EnsureArrays()
	return video, doc, nil
}

// enter moves the flow to state and returns a context and logger tagged with
// it.
func (f *Flow) enter(ctx context.Context, state State) (context.Context, *slog.Logger) {
	f.setState(state)
	ctx = services.WithStage(ctx, string(state))
	return ctx, logging.WithContext(ctx, f.logger)
}

func (f *Flow) setState(state State) {
	f.update(func(s *Snapshot) { s.State = state })
}

func (f *Flow) finish(out Outcome) {
	f.update(func(s *Snapshot) {
		s.State = StateReady
		s.Error = ""
		s.Outcome = &out
	})
}

func (f *Flow) fail(logger *slog.Logger, err error) error {
	logging.ErrorWithContext(logger, "ingestion failed", "ingest_failed",
		logging.Error(err),
		logging.String("error_kind", services.Kind(err)),
		logging.Bool("retryable", services.IsRetryable(err)),
		logging.String(logging.FieldErrorHint, "run the ingest command again to retry"),
	)
	f.update(func(s *Snapshot) {
		s.State = StateError
		s.Error = err.Error()
	})
	return err
}

func (f *Flow) update(mutate func(*Snapshot)) {
	f.mu.Lock()
	mutate(&f.snap)
	snap := f.snap
	f.mu.Unlock()
	if f.opts.Observer != nil {
		f.opts.Observer(snap)
	}
}
