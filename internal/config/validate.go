package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateMerge(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	parsed, err := url.Parse(c.Server.BaseURL)
	if err != nil {
		return fmt.Errorf("server.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("server.base_url must use http or https, got %q", c.Server.BaseURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("server.base_url must include a host, got %q", c.Server.BaseURL)
	}
	return nil
}

func (c *Config) validateMerge() error {
	if c.Merge.RTTMMergeGap < 0 {
		return errors.New("merge.rttm_merge_gap must be >= 0")
	}
	if c.Merge.FaceConfidenceThreshold < 0 || c.Merge.FaceConfidenceThreshold > 1 {
		return errors.New("merge.face_confidence_threshold must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
