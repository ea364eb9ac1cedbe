package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultConfigPath              = "~/.config/vareview/config.toml"
	defaultLibraryDir              = "~/VideoAnnotatorLibrary"
	defaultServerBaseURL           = "http://localhost:18011"
	defaultRequestTimeout          = 30
	defaultDownloadTimeout         = 600
	defaultRTTMMergeGap            = 0.1
	defaultFaceConfidenceThreshold = 0.5
	defaultCOCOFPS                 = 30
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:   defaultStateDir(),
			LogDir:     filepath.Join(defaultStateDir(), "logs"),
			LibraryDir: defaultLibraryDir,
		},
		Server: Server{
			BaseURL:         defaultServerBaseURL,
			RequestTimeout:  defaultRequestTimeout,
			DownloadTimeout: defaultDownloadTimeout,
		},
		Merge: Merge{
			RTTMMergeGap:            defaultRTTMMergeGap,
			FaceConfidenceThreshold: defaultFaceConfidenceThreshold,
			COCODefaultFPS:          defaultCOCOFPS,
			ProbeVideo:              true,
			DropOutOfRange:          true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

func defaultStateDir() string {
	if base, ok := os.LookupEnv("XDG_STATE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "vareview")
	}
	return "~/.local/state/vareview"
}
