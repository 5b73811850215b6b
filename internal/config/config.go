// SPDX-License-Identifier: Apache-2.0

// Package config loads and validates the service configuration. Invalid
// configuration is fatal at startup: scoring weights and thresholds are never
// silently corrected at runtime.
package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/lendproj/defreview/internal/detect"
	"github.com/lendproj/defreview/internal/filter"
	"github.com/lendproj/defreview/internal/oracle"
	"github.com/lendproj/defreview/internal/score"
)

// ConfigurationError marks an invalid configuration value. It is raised at
// load time, before any document is processed.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// RankConfig tunes the candidate ranking stage.
type RankConfig struct {
	Method string `yaml:"method"`
	TopN   int    `yaml:"top_n"`
}

// LogConfig tunes process logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the full service configuration.
type Config struct {
	CatalogPath string             `yaml:"catalog_path"`
	Log         LogConfig          `yaml:"log"`
	Oracle      oracle.GenAIConfig `yaml:"oracle"`
	Filter      filter.Config      `yaml:"filter"`
	Rank        RankConfig         `yaml:"rank"`
	Detect      detect.Config      `yaml:"detect"`
	Score       score.Config       `yaml:"score"`
}

// Default returns the reference configuration. The oracle API key is not
// defaulted; it comes from the file or the GEMINI_API_KEY environment
// variable.
func Default() Config {
	return Config{
		Log:    LogConfig{Level: "info", Format: "json"},
		Oracle: oracle.DefaultGenAIConfig(),
		Filter: filter.DefaultConfig(),
		Rank:   RankConfig{Method: "max"},
		Detect: detect.DefaultConfig(),
		Score:  score.DefaultConfig(),
	}
}

// Load reads the YAML file at path over the defaults. An empty path loads
// defaults plus environment overrides only.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, &ConfigurationError{Field: "file", Err: err}
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, &ConfigurationError{Field: "file", Err: fmt.Errorf("parse %s: %w", path, err)}
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && cfg.Oracle.APIKey == "" {
		cfg.Oracle.APIKey = key
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects out-of-range thresholds and weight blends that do not sum
// to 1.0.
func (c Config) Validate() error {
	if c.Filter.SimilarityThreshold < 0 || c.Filter.SimilarityThreshold > 1 {
		return &ConfigurationError{Field: "filter.similarity_threshold",
			Err: fmt.Errorf("must be in [0, 1], got %v", c.Filter.SimilarityThreshold)}
	}
	if c.Filter.TopKPerEntity < 0 {
		return &ConfigurationError{Field: "filter.top_k_per_entity",
			Err: fmt.Errorf("must be non-negative, got %d", c.Filter.TopKPerEntity)}
	}
	switch c.Rank.Method {
	case "", "max", "avg":
	default:
		return &ConfigurationError{Field: "rank.method",
			Err: fmt.Errorf("must be \"max\" or \"avg\", got %q", c.Rank.Method)}
	}
	if c.Detect.BatchSize < 0 {
		return &ConfigurationError{Field: "detect.batch_size",
			Err: fmt.Errorf("must be non-negative, got %d", c.Detect.BatchSize)}
	}
	if c.Detect.Concurrency < 0 {
		return &ConfigurationError{Field: "detect.concurrency",
			Err: fmt.Errorf("must be non-negative, got %d", c.Detect.Concurrency)}
	}
	if err := c.Score.Confidence.Weights.Validate(); err != nil {
		return &ConfigurationError{Field: "score.confidence.weights", Err: err}
	}
	if err := c.Score.Priority.Validate(); err != nil {
		return &ConfigurationError{Field: "score.priority_weights", Err: err}
	}
	if c.Oracle.CallTimeout < 0 {
		return &ConfigurationError{Field: "oracle.call_timeout",
			Err: fmt.Errorf("must be non-negative, got %v", c.Oracle.CallTimeout)}
	}
	return nil
}
