package library

import (
	"encoding/json"
	"fmt"
	"strings"
)

// File and key names used inside the library.
const (
	LegacyDatasetsDir = "VideoAnnotatorDatasets"
	AnnotationsFile   = "annotations_merged.json"
	ManifestFile      = "dataset.json"

	ManifestSchemaVersion = 1
)

// Artifact kinds recorded in the manifest.
const (
	ArtifactVideo             = "video"
	ArtifactAnnotationsMerged = "annotations_merged"
	ArtifactArchive           = "artifacts_zip"
	ArtifactManifest          = "manifest"
)

// Provenance types.
const (
	ProvenanceServerJob = "server_job"
	ProvenanceDemo      = "demo"
)

// DemoJobPrefix marks index keys for bundled demo datasets.
const DemoJobPrefix = "demo:"

// Manifest is the dataset.json descriptor written beside every dataset.
type Manifest struct {
	SchemaVersion int           `json:"schema_version"`
	DatasetID     string        `json:"dataset_id"`
	CreatedAt     string        `json:"created_at"`
	UpdatedAt     string        `json:"updated_at"`
	Title         string        `json:"title"`
	Video         ManifestVideo `json:"video"`
	Artifacts     []Artifact    `json:"artifacts"`
	Provenance    Provenance    `json:"provenance"`
}

// ManifestVideo describes the dataset's video copy.
type ManifestVideo struct {
	OriginalFilename string `json:"original_filename"`
	SizeBytes        int64  `json:"size_bytes"`
	LocalPath        string `json:"local_path"`
}

// Artifact is one file stored in the dataset folder.
type Artifact struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
}

// Provenance records where a dataset came from.
type Provenance struct {
	Type      string     `json:"type"`
	ServerJob *ServerJob `json:"server_job,omitempty"`
	Demo      *Demo      `json:"demo,omitempty"`
}

// ServerJob identifies the remote job that produced a dataset.
type ServerJob struct {
	BaseURL   string   `json:"base_url"`
	JobID     string   `json:"job_id"`
	Pipelines []string `json:"pipelines"`
	Status    string   `json:"status"`
}

// Demo identifies a bundled demo dataset.
type Demo struct {
	Key string `json:"key"`
}

// ArchiveName is the file name of the retained artifact bundle.
func ArchiveName(jobID string) string {
	return DatasetFolderName(jobID) + "_artifacts.zip"
}

// DecodeManifest parses dataset.json.
func DecodeManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if m.SchemaVersion == 0 {
		return nil, fmt.Errorf("decode manifest: missing schema_version")
	}
	if m.SchemaVersion > ManifestSchemaVersion {
		return nil, fmt.Errorf("decode manifest: unsupported schema_version %d", m.SchemaVersion)
	}
	return &m, nil
}

// Encode renders the manifest as indented JSON.
func (m *Manifest) Encode() ([]byte, error) {
	if m.Artifacts == nil {
		m.Artifacts = []Artifact{}
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return append(data, '\n'), nil
}

// ArtifactPath returns the recorded path for kind.
func (m *Manifest) ArtifactPath(kind string) string {
	if m == nil {
		return ""
	}
	for _, a := range m.Artifacts {
		if a.Kind == kind {
			return a.Path
		}
	}
	return ""
}

// ProvenanceFor builds the provenance block for jobID. Demo ids carry the
// DemoJobPrefix; everything else is a server job.
func ProvenanceFor(jobID, baseURL string, pipelines []string, status string) Provenance {
	if key, ok := strings.CutPrefix(jobID, DemoJobPrefix); ok {
		return Provenance{Type: ProvenanceDemo, Demo: &Demo{Key: key}}
	}
	if pipelines == nil {
		pipelines = []string{}
	}
	return Provenance{
		Type: ProvenanceServerJob,
		ServerJob: &ServerJob{
			BaseURL:   baseURL,
			JobID:     jobID,
			Pipelines: pipelines,
			Status:    status,
		},
	}
}
