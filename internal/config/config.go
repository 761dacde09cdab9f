// Package config provides configuration types, defaults, and persistence
// for roundtable.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MightyPrytanis/roundtable/internal/tracing"
)

// AgentConfig describes one participant's backing model. There is no
// process-wide default provider; every agent names its model explicitly
// and the caller owns the mapping.
type AgentConfig struct {
	Provider string `mapstructure:"provider"` // "openai" or an OpenAI-compatible gateway
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"` // optional endpoint override
}

// EngineConfig holds workflow execution tuning.
type EngineConfig struct {
	// StepTimeout bounds a single agent invocation.
	StepTimeout time.Duration `mapstructure:"step_timeout"`

	// PreviewLimit caps attachment content shown after the first step.
	PreviewLimit int `mapstructure:"preview_limit"`

	// FirstStepBudget caps total attachment content on the first step.
	FirstStepBudget int `mapstructure:"first_step_budget"`

	// DigestBudget caps the prior-step digest across all completed steps.
	DigestBudget int `mapstructure:"digest_budget"`
}

// Config holds all configuration options for roundtable.
type Config struct {
	// StoragePath is the SQLite database location.
	StoragePath string `mapstructure:"storage_path"`

	// AttachmentsDir is the directory served by the attachment store.
	AttachmentsDir string `mapstructure:"attachments_dir"`

	// LogPath is the debug log file location.
	LogPath string `mapstructure:"log_path"`

	// Debug enables debug logging.
	Debug bool `mapstructure:"debug"`

	Engine  EngineConfig           `mapstructure:"engine"`
	Agents  map[string]AgentConfig `mapstructure:"agents"`
	Tracing tracing.Config         `mapstructure:"tracing"`
}

// Defaults returns the default configuration.
func Defaults() Config {
	return Config{
		StoragePath:    DefaultStoragePath(),
		AttachmentsDir: "attachments",
		LogPath:        DefaultLogPath(),
		Debug:          false,
		Engine: EngineConfig{
			StepTimeout:     5 * time.Minute,
			PreviewLimit:    400,
			FirstStepBudget: 16000,
			DigestBudget:    12000,
		},
		Agents:  map[string]AgentConfig{},
		Tracing: tracing.DefaultConfig(),
	}
}

// Validate checks the configuration for inconsistencies worth failing
// fast on.
func (c Config) Validate() error {
	if c.Engine.StepTimeout <= 0 {
		return fmt.Errorf("engine.step_timeout must be positive")
	}
	if c.Engine.PreviewLimit <= 0 {
		return fmt.Errorf("engine.preview_limit must be positive")
	}
	if c.Engine.DigestBudget <= 0 {
		return fmt.Errorf("engine.digest_budget must be positive")
	}
	for name, a := range c.Agents {
		if a.Model == "" {
			return fmt.Errorf("agent %q has no model", name)
		}
	}
	return nil
}

// DefaultStoragePath returns the conventional database location.
func DefaultStoragePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "roundtable.db"
	}
	return filepath.Join(home, ".roundtable", "roundtable.db")
}

// DefaultLogPath returns the conventional debug log location.
func DefaultLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "roundtable.log"
	}
	return filepath.Join(home, ".roundtable", "debug.log")
}

// DefaultTracesFilePath returns the conventional trace output location.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("traces", "traces.jsonl")
	}
	return filepath.Join(home, ".roundtable", "traces", "traces.jsonl")
}
