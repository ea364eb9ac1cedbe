package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir   string `toml:"state_dir"`
	LogDir     string `toml:"log_dir"`
	LibraryDir string `toml:"library_dir"`
}

// Server describes the remote video-processing service that produces
// artifact bundles.
type Server struct {
	BaseURL         string `toml:"base_url"`
	APIToken        string `toml:"api_token"`
	RequestTimeout  int    `toml:"request_timeout"`
	DownloadTimeout int    `toml:"download_timeout"`
}

// Merge contains tunables for parsing and merging annotation files.
type Merge struct {
	RTTMMergeGap            float64 `toml:"rttm_merge_gap"`
	FaceConfidenceThreshold float64 `toml:"face_confidence_threshold"`
	COCODefaultFPS          float64 `toml:"coco_default_fps"`
	ProbeVideo              bool    `toml:"probe_video"`
	DropOutOfRange          bool    `toml:"drop_out_of_range"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for vareview.
//
// Configuration sections by subsystem:
//   - Paths: state database, logs, and default library root
//   - Server: remote job service used by ingestion
//   - Merge: parser and merge engine tunables
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Server  Server  `toml:"server"`
	Merge   Merge   `toml:"merge"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strict.String())
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("vareview.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories. The library
// directory is left alone; it is created on demand when the user grants it.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StatePath returns the SQLite database backing the key-value store.
func (c *Config) StatePath() string {
	return filepath.Join(c.Paths.StateDir, "state.db")
}

// LockDir returns the directory holding advisory lock files.
func (c *Config) LockDir() string {
	return filepath.Join(c.Paths.StateDir, "locks")
}

// FFprobeBinary returns the ffprobe executable name used for video probing.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// RequestTimeout returns the per-request timeout for job metadata calls.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeout) * time.Second
}

// DownloadTimeout returns the timeout applied to artifact bundle downloads.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Server.DownloadTimeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
