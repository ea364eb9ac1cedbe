package library_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vareview/internal/annotations"
	"vareview/internal/config"
	"vareview/internal/library"
	"vareview/internal/rttm"
	"vareview/internal/source"
	"vareview/internal/testsupport"
)

func newStore(t *testing.T, opts library.Options) (*library.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	kv := testsupport.MustOpenKV(t, cfg)
	if opts.LockDir == "" {
		opts.LockDir = cfg.LockDir()
	}
	return library.New(kv, opts), cfg
}

func setRoot(t *testing.T, store *library.Store, path string) library.Dir {
	t.Helper()
	root := library.NewOSDir(path)
	if !library.EnsurePermission(root, library.ModeReadWrite) {
		t.Fatalf("expected permission for %s", path)
	}
	if err := store.SetRootDirHandle(context.Background(), root); err != nil {
		t.Fatalf("SetRootDirHandle: %v", err)
	}
	return root
}

func sampleDocument() *annotations.Document {
	doc := annotations.New(annotations.VideoInfo{Filename: "team_meeting.mp4", Duration: 10}, annotations.SourceMerged)
	doc.SpeakerDiarization = []rttm.Segment{{SpeakerID: "spk1", StartTime: 0, EndTime: 2, Duration: 2, Confidence: 1}}
	doc.Metadata.Pipelines = doc.ContributingPipelines()
	return doc
}

func saveSample(t *testing.T, store *library.Store, jobID string) library.IndexEntry {
	t.Helper()
	entry, err := store.SaveDataset(context.Background(), library.SaveRequest{
		JobID:      jobID,
		Video:      source.FromBytes("team_meeting.mp4", []byte("video-bytes"), "video/mp4"),
		Document:   sampleDocument(),
		Archive:    source.FromBytes("bundle.zip", []byte("PK\x03\x04zip"), "application/zip"),
		Provenance: library.ProvenanceFor(jobID, "http://annotator.test", []string{"speaker_diarization"}, "completed"),
	})
	if err != nil {
		t.Fatalf("SaveDataset: %v", err)
	}
	return entry
}

func TestDatasetForJobRoundTrip(t *testing.T) {
	store, _ := newStore(t, library.Options{})
	ctx := context.Background()

	if _, ok := store.DatasetForJob(ctx, "job-1"); ok {
		t.Fatal("expected no entry before set")
	}
	entry := library.IndexEntry{
		DatasetID:     "0b6f3c1e-2f1d-4d55-9a8e-1c2b3d4e5f60",
		FolderName:    "job_job-1",
		CreatedAt:     "2024-05-01T12:00:00Z",
		VideoFileName: "clip.mp4",
	}
	if err := store.SetDatasetForJob(ctx, "job-1", entry); err != nil {
		t.Fatalf("SetDatasetForJob: %v", err)
	}
	got, ok := store.DatasetForJob(ctx, "job-1")
	if !ok {
		t.Fatal("expected entry after set")
	}
	want, _ := json.Marshal(entry)
	have, _ := json.Marshal(got)
	if string(want) != string(have) {
		t.Fatalf("entry changed across round trip:\nwant %s\ngot  %s", want, have)
	}

	other := library.IndexEntry{DatasetID: "d2", FolderName: "job_demo_sample", CreatedAt: "2024-05-02T00:00:00Z"}
	if err := store.SetDatasetForJob(ctx, "demo:sample", other); err != nil {
		t.Fatalf("SetDatasetForJob: %v", err)
	}
	index := store.JobDatasetIndex(ctx)
	if len(index) != 2 || index["job-1"] != entry || index["demo:sample"] != other {
		t.Fatalf("unexpected index %+v", index)
	}
}

func TestSetJobDatasetIndexReplacesWholeMap(t *testing.T) {
	store, _ := newStore(t, library.Options{})
	ctx := context.Background()
	if err := store.SetDatasetForJob(ctx, "old", library.IndexEntry{DatasetID: "x"}); err != nil {
		t.Fatalf("SetDatasetForJob: %v", err)
	}
	replacement := library.Index{"new": {DatasetID: "y", FolderName: "job_new"}}
	if err := store.SetJobDatasetIndex(ctx, replacement); err != nil {
		t.Fatalf("SetJobDatasetIndex: %v", err)
	}
	index := store.JobDatasetIndex(ctx)
	if _, ok := index["old"]; ok || len(index) != 1 {
		t.Fatalf("expected whole map replaced, got %+v", index)
	}
}

func TestCorruptIndexIsTreatedAsEmpty(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	kv := testsupport.MustOpenKV(t, cfg)
	store := library.New(kv, library.Options{})
	ctx := context.Background()
	if err := kv.Set(ctx, library.KeyJobDatasetIndex, []byte("{not json")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if index := store.JobDatasetIndex(ctx); len(index) != 0 {
		t.Fatalf("expected empty index, got %+v", index)
	}
	if err := store.SetDatasetForJob(ctx, "job", library.IndexEntry{DatasetID: "a"}); err != nil {
		t.Fatalf("SetDatasetForJob should recover from a corrupt index: %v", err)
	}
	if _, ok := store.DatasetForJob(ctx, "job"); !ok {
		t.Fatal("expected entry after recovery")
	}
}

func TestRootDirHandleLifecycle(t *testing.T) {
	store, cfg := newStore(t, library.Options{})
	ctx := context.Background()
	if _, ok := store.RootDirHandle(ctx); ok {
		t.Fatal("expected no root before set")
	}
	setRoot(t, store, cfg.Paths.LibraryDir)
	root, ok := store.RootDirHandle(ctx)
	if !ok || root.Path() != cfg.Paths.LibraryDir {
		t.Fatalf("unexpected root %v ok=%v", root, ok)
	}
	if err := store.ClearRootDirHandle(ctx); err != nil {
		t.Fatalf("ClearRootDirHandle: %v", err)
	}
	if _, ok := store.RootDirHandle(ctx); ok {
		t.Fatal("expected root cleared")
	}
}

func TestMalformedRootRecordIsIgnored(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	kv := testsupport.MustOpenKV(t, cfg)
	store := library.New(kv, library.Options{})
	ctx := context.Background()
	for _, raw := range []string{"{bad", `{"path": "  "}`} {
		if err := kv.Set(ctx, library.KeyRootDir, []byte(raw)); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if root, ok := store.RootDirHandle(ctx); ok {
			t.Fatalf("%q: expected no root, got %v", raw, root)
		}
	}
}

func TestEnsurePermission(t *testing.T) {
	base := t.TempDir()
	if !library.EnsurePermission(library.NewOSDir(base), library.ModeRead) {
		t.Fatal("expected read access to temp dir")
	}
	missing := filepath.Join(base, "new", "library")
	if library.EnsurePermission(library.NewOSDir(missing), library.ModeRead) {
		t.Fatal("read access to a missing directory should be refused")
	}
	if !library.EnsurePermission(library.NewOSDir(missing), library.ModeReadWrite) {
		t.Fatal("read-write request should create the directory")
	}
	if _, err := os.Stat(missing); err != nil {
		t.Fatalf("expected directory to exist: %v", err)
	}
	file := filepath.Join(base, "file")
	testsupport.WriteText(t, file, "x")
	if library.EnsurePermission(library.NewOSDir(file), library.ModeRead) {
		t.Fatal("a regular file is not a directory handle")
	}
	if library.EnsurePermission(nil, library.ModeRead) {
		t.Fatal("nil handle must be refused")
	}
}

func TestResolveDatasetsDirPrefersLegacy(t *testing.T) {
	base := t.TempDir()
	root := library.NewOSDir(base)
	if got := library.ResolveDatasetsDir(root); got.Path() != base {
		t.Fatalf("expected root, got %s", got.Path())
	}
	if err := os.Mkdir(filepath.Join(base, library.LegacyDatasetsDir), 0o755); err != nil {
		t.Fatal(err)
	}
	if got := library.ResolveDatasetsDir(root); got.Path() != filepath.Join(base, library.LegacyDatasetsDir) {
		t.Fatalf("expected legacy dir, got %s", got.Path())
	}
}

func TestDatasetFolderName(t *testing.T) {
	tests := map[string]string{
		"abc-123":     "job_abc-123",
		"demo:sample": "job_demo_sample",
		"../escape":   "job_escape",
	}
	for jobID, want := range tests {
		if got := library.DatasetFolderName(jobID); got != want {
			t.Fatalf("DatasetFolderName(%q) = %q, want %q", jobID, got, want)
		}
		if library.DatasetFolderName(jobID) != library.DatasetFolderName(jobID) {
			t.Fatalf("folder name not stable for %q", jobID)
		}
	}
}

func TestSaveAndLoadDataset(t *testing.T) {
	store, cfg := newStore(t, library.Options{})
	ctx := context.Background()
	setRoot(t, store, cfg.Paths.LibraryDir)

	entry := saveSample(t, store, "job-42")
	if entry.FolderName != "job_job-42" || entry.VideoFileName != "team_meeting.mp4" || entry.DatasetID == "" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	folder := filepath.Join(cfg.Paths.LibraryDir, entry.FolderName)
	for _, name := range []string{"team_meeting.mp4", library.AnnotationsFile, library.ManifestFile, "job_job-42_artifacts.zip"} {
		if _, err := os.Stat(filepath.Join(folder, name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}

	dataset, ok := store.LoadDataset(ctx, "job-42")
	if !ok {
		t.Fatal("expected fast path hit")
	}
	if dataset.Document.VideoInfo.Filename != "team_meeting.mp4" || len(dataset.Document.SpeakerDiarization) != 1 {
		t.Fatalf("unexpected document %+v", dataset.Document)
	}
	if dataset.Video.Name() != "team_meeting.mp4" || dataset.Video.Size() != int64(len("video-bytes")) {
		t.Fatalf("unexpected video %s (%d bytes)", dataset.Video.Name(), dataset.Video.Size())
	}
	m := dataset.Manifest
	if m == nil {
		t.Fatal("expected manifest")
	}
	if m.SchemaVersion != library.ManifestSchemaVersion || m.DatasetID != entry.DatasetID || m.Title != "Team Meeting" {
		t.Fatalf("unexpected manifest %+v", m)
	}
	if m.Provenance.Type != library.ProvenanceServerJob || m.Provenance.ServerJob.JobID != "job-42" {
		t.Fatalf("unexpected provenance %+v", m.Provenance)
	}
	if m.ArtifactPath(library.ArtifactArchive) != "job_job-42_artifacts.zip" || m.ArtifactPath(library.ArtifactManifest) != library.ManifestFile {
		t.Fatalf("unexpected artifacts %+v", m.Artifacts)
	}
}

func TestSaveDatasetKeepsIdentityOnReingest(t *testing.T) {
	store, cfg := newStore(t, library.Options{})
	setRoot(t, store, cfg.Paths.LibraryDir)
	first := saveSample(t, store, "job-7")
	second := saveSample(t, store, "job-7")
	if first.DatasetID != second.DatasetID || first.CreatedAt != second.CreatedAt {
		t.Fatalf("re-ingest should overwrite in place: %+v vs %+v", first, second)
	}
	entries, err := os.ReadDir(cfg.Paths.LibraryDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected a single dataset folder, got %d", len(entries))
	}
}

func TestSaveDatasetUsesLegacyDir(t *testing.T) {
	store, cfg := newStore(t, library.Options{})
	setRoot(t, store, cfg.Paths.LibraryDir)
	legacy := filepath.Join(cfg.Paths.LibraryDir, library.LegacyDatasetsDir)
	if err := os.Mkdir(legacy, 0o755); err != nil {
		t.Fatal(err)
	}
	entry := saveSample(t, store, "job-legacy")
	if _, err := os.Stat(filepath.Join(legacy, entry.FolderName, library.AnnotationsFile)); err != nil {
		t.Fatalf("expected dataset under the legacy dir: %v", err)
	}
	if _, ok := store.LoadDataset(context.Background(), "job-legacy"); !ok {
		t.Fatal("expected fast path hit from legacy dir")
	}
}

func TestSaveDatasetWithoutRoot(t *testing.T) {
	store, _ := newStore(t, library.Options{})
	_, err := store.SaveDataset(context.Background(), library.SaveRequest{JobID: "j", Document: sampleDocument()})
	if !errors.Is(err, library.ErrNoRoot) {
		t.Fatalf("expected ErrNoRoot, got %v", err)
	}
}

func TestLoadDatasetFailsClosed(t *testing.T) {
	store, cfg := newStore(t, library.Options{})
	ctx := context.Background()
	setRoot(t, store, cfg.Paths.LibraryDir)
	entry := saveSample(t, store, "job-9")
	folder := filepath.Join(cfg.Paths.LibraryDir, entry.FolderName)

	if _, ok := store.LoadDataset(ctx, "unknown-job"); ok {
		t.Fatal("unindexed job must miss")
	}

	if err := os.Remove(filepath.Join(folder, "team_meeting.mp4")); err != nil {
		t.Fatal(err)
	}
	if _, ok := store.LoadDataset(ctx, "job-9"); ok {
		t.Fatal("missing video must miss")
	}

	saveSample(t, store, "job-9")
	if err := os.Remove(filepath.Join(folder, library.AnnotationsFile)); err != nil {
		t.Fatal(err)
	}
	if _, ok := store.LoadDataset(ctx, "job-9"); ok {
		t.Fatal("missing annotations must miss")
	}

	if err := os.RemoveAll(folder); err != nil {
		t.Fatal(err)
	}
	if _, ok := store.LoadDataset(ctx, "job-9"); ok {
		t.Fatal("missing folder must miss")
	}
	if _, ok := store.DatasetForJob(ctx, "job-9"); !ok {
		t.Fatal("a cache miss must not drop the index row")
	}
}

type deniedDir struct {
	*library.OSDir
}

func (deniedDir) QueryPermission(library.Mode) library.Permission   { return library.PermissionDenied }
func (deniedDir) RequestPermission(library.Mode) library.Permission { return library.PermissionDenied }

func TestPermissionDeniedIsNotAnError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	kv := testsupport.MustOpenKV(t, cfg)
	ctx := context.Background()

	writer := library.New(kv, library.Options{LockDir: cfg.LockDir()})
	setRoot(t, writer, cfg.Paths.LibraryDir)
	saveSample(t, writer, "job-1")

	denied := library.New(kv, library.Options{
		OpenDir: func(path string) library.Dir { return deniedDir{library.NewOSDir(path)} },
	})
	if _, ok := denied.LoadDataset(ctx, "job-1"); ok {
		t.Fatal("denied root must miss")
	}
	_, err := denied.SaveDataset(ctx, library.SaveRequest{JobID: "job-2", Document: sampleDocument()})
	if !errors.Is(err, library.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestRemoveDataset(t *testing.T) {
	store, cfg := newStore(t, library.Options{})
	ctx := context.Background()
	setRoot(t, store, cfg.Paths.LibraryDir)
	entry := saveSample(t, store, "job-r")

	if err := store.RemoveDataset(ctx, "job-r", true); err != nil {
		t.Fatalf("RemoveDataset: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.LibraryDir, entry.FolderName)); !os.IsNotExist(err) {
		t.Fatalf("expected folder removed, got %v", err)
	}
	if _, ok := store.DatasetForJob(ctx, "job-r"); ok {
		t.Fatal("expected index row removed")
	}
	if err := store.RemoveDataset(ctx, "job-r", false); err == nil {
		t.Fatal("removing an unknown job should fail")
	}
}

func TestListDatasetsNewestFirst(t *testing.T) {
	store, _ := newStore(t, library.Options{})
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		entry := library.IndexEntry{DatasetID: id, CreatedAt: base.Add(time.Duration(i) * time.Hour).Format(time.RFC3339)}
		if err := store.SetDatasetForJob(ctx, id, entry); err != nil {
			t.Fatalf("SetDatasetForJob: %v", err)
		}
	}
	list := store.ListDatasets(ctx)
	if len(list) != 3 || list[0].JobID != "c" || list[2].JobID != "a" {
		t.Fatalf("unexpected order %+v", list)
	}
}

func TestProvenanceForDemo(t *testing.T) {
	p := library.ProvenanceFor("demo:sample-clip", "", nil, "")
	if p.Type != library.ProvenanceDemo || p.Demo == nil || p.Demo.Key != "sample-clip" || p.ServerJob != nil {
		t.Fatalf("unexpected provenance %+v", p)
	}
}
