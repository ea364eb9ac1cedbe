package library

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"vareview/internal/annotations"
	"vareview/internal/logging"
	"vareview/internal/services"
	"vareview/internal/source"
	"vareview/internal/textutil"
)

// Dataset is a locally stored job loaded from disk.
type Dataset struct {
	JobID    string
	Entry    IndexEntry
	Folder   Dir
	Video    source.File
	Document *annotations.Document
	// Manifest is nil when dataset.json is missing or unreadable.
	Manifest *Manifest
}

// SaveRequest carries everything persisted for one ingested job.
type SaveRequest struct {
	JobID      string
	Video      source.File
	Document   *annotations.Document
	Archive    source.File
	Title      string
	Provenance Provenance
}

// Listing is one row of ListDatasets.
type Listing struct {
	JobID string `json:"jobId"`
	IndexEntry
}

// LoadDataset is the fast path for a job already on disk. Any missing piece
// (index row, root, permission, folder, annotations, video) is a miss.
func (s *Store) LoadDataset(ctx context.Context, jobID string) (Dataset, bool) {
	miss := func(reason string, attrs ...logging.Attr) (Dataset, bool) {
		attrs = append(attrs, logging.String(logging.FieldJobID, jobID), logging.String("reason", reason))
		s.logger.Debug("local dataset unavailable", logging.Args(attrs...)...)
		return Dataset{}, false
	}

	entry, ok := s.DatasetForJob(ctx, jobID)
	if !ok {
		return miss("not indexed")
	}
	root, ok := s.RootDirHandle(ctx)
	if !ok {
		return miss("no library root")
	}
	if !EnsurePermission(root, ModeRead) {
		return miss("permission denied", logging.String("root", root.Path()))
	}
	folder, err := ResolveDatasetsDir(root).Dir(entry.FolderName, false)
	if err != nil {
		return miss("folder missing", logging.String("folder", entry.FolderName))
	}
	data, err := folder.ReadFile(AnnotationsFile)
	if err != nil {
		return miss("annotations missing")
	}
	doc, err := annotations.Decode(data)
	if err != nil {
		return miss("annotations unreadable", logging.Error(err))
	}

	var manifest *Manifest
	if raw, err := folder.ReadFile(ManifestFile); err == nil {
		if decoded, err := DecodeManifest(raw); err == nil {
			manifest = decoded
		}
	}
	videoName := entry.VideoFileName
	if videoName == "" && manifest != nil {
		for _, candidate := range []string{manifest.Video.LocalPath, manifest.ArtifactPath(ArtifactVideo), manifest.Video.OriginalFilename} {
			if candidate != "" {
				videoName = candidate
				break
			}
		}
	}
	if videoName == "" || !folder.HasFile(videoName) {
		return miss("video missing", logging.String("video", videoName))
	}
	video, err := folder.File(videoName)
	if err != nil {
		return miss("video unreadable", logging.Error(err))
	}

	s.logger.Info("loaded local dataset",
		logging.String(logging.FieldJobID, jobID),
		logging.String(logging.FieldDatasetID, entry.DatasetID),
		logging.String("folder", folder.Path()),
	)
	return Dataset{
		JobID:    jobID,
		Entry:    entry,
		Folder:   folder,
		Video:    video,
		Document: doc,
		Manifest: manifest,
	}, true
}

// SaveDataset writes the video, canonical document, archive and manifest into
// the job's folder and records the index row last. Each file is replaced
// atomically and the folder is locked against concurrent writers.
func (s *Store) SaveDataset(ctx context.Context, req SaveRequest) (IndexEntry, error) {
	if strings.TrimSpace(req.JobID) == "" {
		return IndexEntry{}, services.Wrap(services.ErrValidation, "library", "save dataset", "Job id is required", nil)
	}
	if req.Document == nil {
		return IndexEntry{}, services.Wrap(services.ErrValidation, "library", "save dataset", "Annotation document is required", nil)
	}
	root, ok := s.RootDirHandle(ctx)
	if !ok {
		return IndexEntry{}, ErrNoRoot
	}
	if !EnsurePermission(root, ModeReadWrite) {
		return IndexEntry{}, fmt.Errorf("%w: %s", ErrPermissionDenied, root.Path())
	}

	folderName := DatasetFolderName(req.JobID)
	folder, err := ResolveDatasetsDir(root).Dir(folderName, true)
	if err != nil {
		return IndexEntry{}, fmt.Errorf("create dataset folder: %w", err)
	}

	unlock, err := s.lockFolder(ctx, folder, folderName)
	if err != nil {
		return IndexEntry{}, err
	}
	defer unlock()

	now := s.now().Format(time.RFC3339)
	manifest := &Manifest{
		SchemaVersion: ManifestSchemaVersion,
		DatasetID:     uuid.NewString(),
		CreatedAt:     now,
		UpdatedAt:     now,
		Title:         strings.TrimSpace(req.Title),
		Provenance:    req.Provenance,
	}
	if previous, err := folder.ReadFile(ManifestFile); err == nil {
		if decoded, err := DecodeManifest(previous); err == nil && decoded.DatasetID != "" {
			manifest.DatasetID = decoded.DatasetID
			manifest.CreatedAt = decoded.CreatedAt
		}
	}

	videoName := ""
	if req.Video != nil {
		videoName = textutil.SanitizeFileName(filepath.Base(req.Video.Name()))
		if videoName == "" {
			return IndexEntry{}, services.Wrap(services.ErrValidation, "library", "save dataset", "Invalid video file name", nil)
		}
		if err := writeFromFile(folder, videoName, req.Video); err != nil {
			return IndexEntry{}, fmt.Errorf("write video: %w", err)
		}
		manifest.Video = ManifestVideo{
			OriginalFilename: req.Video.Name(),
			SizeBytes:        req.Video.Size(),
			LocalPath:        videoName,
		}
		manifest.Artifacts = append(manifest.Artifacts, Artifact{Kind: ArtifactVideo, Path: videoName})
	}
	if manifest.Title == "" {
		titleSource := videoName
		if titleSource == "" {
			titleSource = req.Document.VideoInfo.Filename
		}
		manifest.Title = textutil.TitleFromFileName(titleSource)
	}

	docData, err := annotations.Encode(req.Document)
	if err != nil {
		return IndexEntry{}, err
	}
	if err := folder.WriteFile(AnnotationsFile, bytes.NewReader(docData), int64(len(docData))); err != nil {
		return IndexEntry{}, fmt.Errorf("write annotations: %w", err)
	}
	manifest.Artifacts = append(manifest.Artifacts, Artifact{Kind: ArtifactAnnotationsMerged, Path: AnnotationsFile})

	if req.Archive != nil {
		archiveName := ArchiveName(req.JobID)
		if err := writeFromFile(folder, archiveName, req.Archive); err != nil {
			return IndexEntry{}, fmt.Errorf("write archive: %w", err)
		}
		manifest.Artifacts = append(manifest.Artifacts, Artifact{Kind: ArtifactArchive, Path: archiveName})
	}

	manifest.Artifacts = append(manifest.Artifacts, Artifact{Kind: ArtifactManifest, Path: ManifestFile})
	manifestData, err := manifest.Encode()
	if err != nil {
		return IndexEntry{}, err
	}
	if err := folder.WriteFile(ManifestFile, bytes.NewReader(manifestData), int64(len(manifestData))); err != nil {
		return IndexEntry{}, fmt.Errorf("write manifest: %w", err)
	}

	entry := IndexEntry{
		DatasetID:     manifest.DatasetID,
		FolderName:    folderName,
		CreatedAt:     manifest.CreatedAt,
		VideoFileName: videoName,
	}
	if err := s.SetDatasetForJob(ctx, req.JobID, entry); err != nil {
		return IndexEntry{}, err
	}
	s.logger.Info("dataset saved",
		logging.String(logging.FieldJobID, req.JobID),
		logging.String(logging.FieldDatasetID, entry.DatasetID),
		logging.String("folder", folder.Path()),
		logging.Int("artifacts", len(manifest.Artifacts)),
	)
	return entry, nil
}

// RemoveDataset forgets jobID and, when deleteFiles is set, deletes its
// folder. A missing root or folder does not prevent the index row from being
// dropped.
func (s *Store) RemoveDataset(ctx context.Context, jobID string, deleteFiles bool) error {
	entry, ok := s.DatasetForJob(ctx, jobID)
	if !ok {
		return services.Wrap(services.ErrNotFound, "library", "remove dataset", "No dataset for job "+jobID, nil)
	}
	if deleteFiles {
		root, ok := s.RootDirHandle(ctx)
		if !ok {
			return ErrNoRoot
		}
		if !EnsurePermission(root, ModeReadWrite) {
			return fmt.Errorf("%w: %s", ErrPermissionDenied, root.Path())
		}
		if err := ResolveDatasetsDir(root).Remove(entry.FolderName); err != nil {
			return fmt.Errorf("remove dataset folder: %w", err)
		}
	}
	if err := s.RemoveDatasetForJob(ctx, jobID); err != nil {
		return err
	}
	s.logger.Info("dataset removed",
		logging.String(logging.FieldJobID, jobID),
		logging.Bool("files_deleted", deleteFiles),
	)
	return nil
}

// ListDatasets returns the index rows, newest first.
func (s *Store) ListDatasets(ctx context.Context) []Listing {
	index := s.JobDatasetIndex(ctx)
	out := make([]Listing, 0, len(index))
	for jobID, entry := range index {
		out = append(out, Listing{JobID: jobID, IndexEntry: entry})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].JobID < out[j].JobID
	})
	return out
}

func (s *Store) lockFolder(ctx context.Context, folder Dir, folderName string) (func(), error) {
	lockPath := filepath.Join(folder.Path(), ".lock")
	if s.lockDir != "" {
		if err := os.MkdirAll(s.lockDir, 0o755); err != nil {
			return nil, fmt.Errorf("create lock dir: %w", err)
		}
		lockPath = filepath.Join(s.lockDir, folderName+".lock")
	}
	lock := flock.New(lockPath)
	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("lock dataset folder: %w", err)
	}
	if !locked {
		return nil, errors.New("lock dataset folder: already locked")
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Warn("failed to release dataset lock", logging.Error(err))
		}
	}, nil
}

func writeFromFile(folder Dir, name string, f source.File) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	size := f.Size()
	if size <= 0 {
		size = -1
	}
	return folder.WriteFile(name, rc, size)
}
