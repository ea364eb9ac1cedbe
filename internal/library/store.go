package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"vareview/internal/logging"
	"vareview/internal/textutil"
)

// Keys used in the key-value store.
const (
	KeyRootDir         = "library.root_dir"
	KeyJobDatasetIndex = "library.job_dataset_index"
)

var (
	// ErrNoRoot means no library root has been chosen yet.
	ErrNoRoot = errors.New("library root not set")
	// ErrPermissionDenied means the library root is not writable.
	ErrPermissionDenied = errors.New("library root permission denied")
)

// KV is the durable key-value primitive the store persists into.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	Update(ctx context.Context, key string, fn func(current []byte, found bool) ([]byte, error)) error
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, value any) error
}

// IndexEntry records where the dataset for one job lives.
type IndexEntry struct {
	DatasetID     string `json:"datasetId"`
	FolderName    string `json:"folderName"`
	CreatedAt     string `json:"createdAt"`
	VideoFileName string `json:"videoFileName,omitempty"`
}

// Index maps job ids, remote or demo:<key>, to their datasets.
type Index map[string]IndexEntry

// Options configure a Store.
type Options struct {
	// LockDir holds per-dataset lock files. Empty places locks inside the
	// dataset folder.
	LockDir string
	// OpenDir rebuilds a root handle from its persisted path. Defaults to
	// NewOSDir.
	OpenDir func(path string) Dir
	Logger  *slog.Logger
}

// Store is the local dataset library.
type Store struct {
	kv      KV
	lockDir string
	openDir func(path string) Dir
	logger  *slog.Logger
	now     func() time.Time
}

// New constructs a Store over kv.
func New(kv KV, opts Options) *Store {
	openDir := opts.OpenDir
	if openDir == nil {
		openDir = func(path string) Dir { return NewOSDir(path) }
	}
	return &Store{
		kv:      kv,
		lockDir: opts.LockDir,
		openDir: openDir,
		logger:  logging.NewComponentLogger(opts.Logger, "library"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type rootRecord struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// RootDirHandle returns the persisted library root. Lookup problems are
// logged and reported as absent.
func (s *Store) RootDirHandle(ctx context.Context) (Dir, bool) {
	var record rootRecord
	found, err := s.kv.GetJSON(ctx, KeyRootDir, &record)
	switch {
	case err != nil && !found:
		logging.WarnWithContext(s.logger, "library root lookup failed", "library_root_lookup_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "user will be asked to choose a library folder"),
		)
		return nil, false
	case !found:
		return nil, false
	case err != nil || strings.TrimSpace(record.Path) == "":
		s.logger.Debug("ignoring malformed library root record", logging.Error(err))
		return nil, false
	}
	return s.openDir(record.Path), true
}

// SetRootDirHandle persists dir as the library root.
func (s *Store) SetRootDirHandle(ctx context.Context, dir Dir) error {
	if dir == nil || strings.TrimSpace(dir.Path()) == "" {
		return errors.New("set library root: empty directory")
	}
	if err := s.kv.SetJSON(ctx, KeyRootDir, rootRecord{Path: dir.Path(), Name: dir.Name()}); err != nil {
		return fmt.Errorf("store library root: %w", err)
	}
	s.logger.Info("library root set", logging.String("path", dir.Path()))
	return nil
}

// ClearRootDirHandle forgets the library root. Dataset folders are untouched.
func (s *Store) ClearRootDirHandle(ctx context.Context) error {
	if err := s.kv.Delete(ctx, KeyRootDir); err != nil {
		return fmt.Errorf("clear library root: %w", err)
	}
	return nil
}

// JobDatasetIndex returns the whole job index. An unreadable index is logged
// and returned as empty.
func (s *Store) JobDatasetIndex(ctx context.Context) Index {
	data, found, err := s.kv.Get(ctx, KeyJobDatasetIndex)
	if err != nil {
		logging.WarnWithContext(s.logger, "dataset index lookup failed", "library_index_lookup_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "local datasets will be re-downloaded"),
		)
		return Index{}
	}
	if !found {
		return Index{}
	}
	index, err := decodeIndex(data)
	if err != nil {
		logging.WarnWithContext(s.logger, "dataset index unreadable", "library_index_corrupt",
			logging.Error(err),
			logging.String(logging.FieldImpact, "the index is rebuilt as jobs are ingested again"),
		)
		return Index{}
	}
	return index
}

// SetJobDatasetIndex replaces the whole job index.
func (s *Store) SetJobDatasetIndex(ctx context.Context, index Index) error {
	if index == nil {
		index = Index{}
	}
	if err := s.kv.SetJSON(ctx, KeyJobDatasetIndex, index); err != nil {
		return fmt.Errorf("store dataset index: %w", err)
	}
	return nil
}

// DatasetForJob returns the index row for jobID.
func (s *Store) DatasetForJob(ctx context.Context, jobID string) (IndexEntry, bool) {
	entry, ok := s.JobDatasetIndex(ctx)[jobID]
	return entry, ok
}

// SetDatasetForJob records entry for jobID. The read-modify-write of the
// index runs in one key-value transaction.
func (s *Store) SetDatasetForJob(ctx context.Context, jobID string, entry IndexEntry) error {
	if strings.TrimSpace(jobID) == "" {
		return errors.New("set dataset for job: empty job id")
	}
	return s.updateIndex(ctx, func(index Index) {
		index[jobID] = entry
	})
}

// RemoveDatasetForJob drops the index row for jobID.
func (s *Store) RemoveDatasetForJob(ctx context.Context, jobID string) error {
	return s.updateIndex(ctx, func(index Index) {
		delete(index, jobID)
	})
}

func (s *Store) updateIndex(ctx context.Context, mutate func(Index)) error {
	err := s.kv.Update(ctx, KeyJobDatasetIndex, func(current []byte, found bool) ([]byte, error) {
		index := Index{}
		if found {
			decoded, err := decodeIndex(current)
			if err != nil {
				s.logger.Warn("replacing unreadable dataset index", logging.Error(err))
			} else {
				index = decoded
			}
		}
		mutate(index)
		return json.Marshal(index)
	})
	if err != nil {
		return fmt.Errorf("update dataset index: %w", err)
	}
	return nil
}

func decodeIndex(data []byte) (Index, error) {
	index := Index{}
	if len(data) == 0 {
		return index, nil
	}
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("decode dataset index: %w", err)
	}
	if index == nil {
		index = Index{}
	}
	return index, nil
}

// DatasetFolderName derives the stable folder name for jobID so
// re-ingesting a job overwrites its folder.
func DatasetFolderName(jobID string) string {
	return "job_" + textutil.SanitizeToken(jobID)
}
