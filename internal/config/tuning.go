package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"camwatch/internal/motion"
)

// TuningConfig holds detector and recorder tuning loaded from a JSON file.
// Omitted fields fall back to the Get* defaults, so partial files are fine.
type TuningConfig struct {
	// Detector params
	Threshold        *int     `json:"threshold,omitempty"`
	DilateIterations *int     `json:"dilate_iterations,omitempty"`
	MinArea          *float64 `json:"min_area,omitempty"`
	BlurKernel       *int     `json:"blur_kernel,omitempty"`

	// Output params
	FallbackFPS   *float64 `json:"fallback_fps,omitempty"`
	StreamQuality *int     `json:"stream_quality,omitempty"`

	// Catalog params
	Retention     *string `json:"retention,omitempty"`      // duration string like "720h"
	PruneInterval *string `json:"prune_interval,omitempty"` // duration string like "1h"
}

// Defaults not covered by motion.DefaultConfig.
const (
	DefaultFallbackFPS   = 20.0
	DefaultStreamQuality = 80
	DefaultRetention     = 30 * 24 * time.Hour
	DefaultPruneInterval = time.Hour
)

// LoadTuningConfig loads and validates a TuningConfig from a JSON file.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("tuning file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat tuning file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("tuning file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read tuning file: %w", err)
	}

	cfg := &TuningConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse tuning JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tuning: %w", err)
	}
	return cfg, nil
}

// Validate checks the fields that are set.
func (c *TuningConfig) Validate() error {
	if err := c.Motion(motion.DefaultConfig()).Validate(); err != nil {
		return err
	}

	if c.FallbackFPS != nil && *c.FallbackFPS <= 0 {
		return fmt.Errorf("fallback_fps must be positive, got %f", *c.FallbackFPS)
	}

	if c.StreamQuality != nil && (*c.StreamQuality < 1 || *c.StreamQuality > 100) {
		return fmt.Errorf("stream_quality must be between 1 and 100, got %d", *c.StreamQuality)
	}

	if c.Retention != nil && *c.Retention != "" {
		if d, err := time.ParseDuration(*c.Retention); err != nil {
			return fmt.Errorf("invalid retention '%s': %w", *c.Retention, err)
		} else if d <= 0 {
			return fmt.Errorf("retention must be positive, got %s", d)
		}
	}

	if c.PruneInterval != nil && *c.PruneInterval != "" {
		if d, err := time.ParseDuration(*c.PruneInterval); err != nil {
			return fmt.Errorf("invalid prune_interval '%s': %w", *c.PruneInterval, err)
		} else if d <= 0 {
			return fmt.Errorf("prune_interval must be positive, got %s", d)
		}
	}
	return nil
}

// Motion overlays the detector fields that are set onto base.
func (c *TuningConfig) Motion(base motion.Config) motion.Config {
	if c.Threshold != nil {
		base.Threshold = *c.Threshold
	}
	if c.DilateIterations != nil {
		base.DilateIterations = *c.DilateIterations
	}
	if c.MinArea != nil {
		base.MinArea = *c.MinArea
	}
	if c.BlurKernel != nil {
		base.BlurKernel = *c.BlurKernel
	}
	return base
}

// GetFallbackFPS returns the frame rate used when the device reports none.
func (c *TuningConfig) GetFallbackFPS() float64 {
	if c.FallbackFPS == nil {
		return DefaultFallbackFPS
	}
	return *c.FallbackFPS
}

// GetStreamQuality returns the JPEG quality of operator streams.
func (c *TuningConfig) GetStreamQuality() int {
	if c.StreamQuality == nil {
		return DefaultStreamQuality
	}
	return *c.StreamQuality
}

// GetRetention returns how long motion events are kept.
func (c *TuningConfig) GetRetention() time.Duration {
	return parseDurationOr(c.Retention, DefaultRetention)
}

// GetPruneInterval returns how often expired motion events are deleted.
func (c *TuningConfig) GetPruneInterval() time.Duration {
	return parseDurationOr(c.PruneInterval, DefaultPruneInterval)
}

func parseDurationOr(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def
	}
	return d
}
