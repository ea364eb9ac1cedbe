package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"vareview/internal/config"
)

func TestLoadDefaultConfigExpandsPathsAndReadsEnvToken(t *testing.T) {
	t.Setenv("VIDEOANNOTATOR_API_TOKEN", "env-token")
	t.Setenv("XDG_STATE_HOME", "")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "state", "vareview")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Paths.LibraryDir != filepath.Join(tempHome, "VideoAnnotatorLibrary") {
		t.Fatalf("unexpected library dir: %q", cfg.Paths.LibraryDir)
	}
	if cfg.StatePath() != filepath.Join(wantState, "state.db") {
		t.Fatalf("unexpected state path: %q", cfg.StatePath())
	}
	if cfg.Server.APIToken != "env-token" {
		t.Fatalf("expected token from env, got %q", cfg.Server.APIToken)
	}
	if cfg.Merge.RTTMMergeGap != 0.1 {
		t.Fatalf("unexpected merge gap: %v", cfg.Merge.RTTMMergeGap)
	}
	if cfg.Merge.FaceConfidenceThreshold != 0.5 {
		t.Fatalf("unexpected face threshold: %v", cfg.Merge.FaceConfidenceThreshold)
	}
	if !cfg.Merge.ProbeVideo {
		t.Fatal("expected video probing enabled by default")
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadCustomConfig(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	payload := struct {
		Paths struct {
			StateDir   string `toml:"state_dir"`
			LibraryDir string `toml:"library_dir"`
		} `toml:"paths"`
		Server struct {
			BaseURL         string `toml:"base_url"`
			APIToken        string `toml:"api_token"`
			DownloadTimeout int    `toml:"download_timeout"`
		} `toml:"server"`
		Merge struct {
			RTTMMergeGap float64 `toml:"rttm_merge_gap"`
		} `toml:"merge"`
		Logging struct {
			Format string `toml:"format"`
			Level  string `toml:"level"`
		} `toml:"logging"`
	}{}
	payload.Paths.StateDir = "~/state"
	payload.Paths.LibraryDir = "~/datasets"
	payload.Server.BaseURL = "https://annotator.example.com/"
	payload.Server.APIToken = "file-token"
	payload.Server.DownloadTimeout = 42
	payload.Merge.RTTMMergeGap = 0.25
	payload.Logging.Format = "JSON"
	payload.Logging.Level = "Debug"

	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	configPath := filepath.Join(tempHome, "config.toml")
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("unexpected resolution: %q exists=%v", resolved, exists)
	}
	if cfg.Paths.StateDir != filepath.Join(tempHome, "state") {
		t.Fatalf("unexpected state dir: %q", cfg.Paths.StateDir)
	}
	if cfg.Paths.LibraryDir != filepath.Join(tempHome, "datasets") {
		t.Fatalf("unexpected library dir: %q", cfg.Paths.LibraryDir)
	}
	if cfg.Server.BaseURL != "https://annotator.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Server.BaseURL)
	}
	if cfg.Server.APIToken != "file-token" {
		t.Fatalf("unexpected token: %q", cfg.Server.APIToken)
	}
	if cfg.DownloadTimeout().Seconds() != 42 {
		t.Fatalf("unexpected download timeout: %v", cfg.DownloadTimeout())
	}
	if cfg.Merge.RTTMMergeGap != 0.25 {
		t.Fatalf("unexpected merge gap: %v", cfg.Merge.RTTMMergeGap)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("expected normalized logging settings, got %+v", cfg.Logging)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[paths]\nstaging_dir = \"/tmp\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for unknown key")
	} else if !strings.Contains(err.Error(), "staging_dir") {
		t.Fatalf("expected error to name the unknown key, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"defaults", func(*config.Config) {}, ""},
		{"bad scheme", func(c *config.Config) { c.Server.BaseURL = "ftp://host" }, "http or https"},
		{"missing host", func(c *config.Config) { c.Server.BaseURL = "http://" }, "host"},
		{"negative gap", func(c *config.Config) { c.Merge.RTTMMergeGap = -1 }, "rttm_merge_gap"},
		{"threshold above one", func(c *config.Config) { c.Merge.FaceConfidenceThreshold = 1.5 }, "face_confidence_threshold"},
		{"bad format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad level", func(c *config.Config) { c.Logging.Level = "trace" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, exists, err := config.Load(path); err != nil {
		t.Fatalf("sample config should load: %v", err)
	} else if !exists {
		t.Fatal("expected sample config to exist")
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}
