package testsupport

import (
	"path/filepath"
	"testing"

	"vareview/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Video probing is disabled so tests never shell out to ffprobe.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "state", "logs")
	cfgVal.Paths.LibraryDir = filepath.Join(base, "library")
	cfgVal.Server.BaseURL = "http://annotator.test"
	cfgVal.Server.APIToken = "test-token"
	cfgVal.Merge.ProbeVideo = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithServer points the config at a different job service.
func WithServer(baseURL, token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.BaseURL = baseURL
		b.cfg.Server.APIToken = token
	}
}
