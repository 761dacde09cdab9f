package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteDefaultConfig writes a commented starter config to the given path.
// Parent directories are created as needed. Existing files are left alone.
func WriteDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(DefaultConfigTemplate()), 0600); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}

// DefaultConfigTemplate returns the starter config file content.
func DefaultConfigTemplate() string {
	return `# roundtable configuration

# Where workflow state is stored.
# storage_path: ~/.roundtable/roundtable.db

# Directory holding attachment files, one file per attachment id.
# attachments_dir: attachments

# Enable debug logging to log_path.
# debug: false

engine:
  # Maximum duration for a single agent invocation.
  step_timeout: 5m
  # Attachment preview size (characters) after the first step.
  preview_limit: 400
  # Total attachment budget (characters) on the first step.
  first_step_budget: 16000
  # Total prior-step digest budget (characters).
  digest_budget: 12000

# Participants. Each agent id maps to its own model; workflows may mix them.
agents:
  # analyst:
  #   provider: openai
  #   model: gpt-4o
  #   api_key: sk-...
  # reviewer:
  #   provider: openai
  #   model: gpt-4o-mini
  #   base_url: https://gateway.example.com/v1
  #   api_key: sk-...

tracing:
  enabled: false
  # exporter: file | stdout | otlp | none
  exporter: file
  sample_rate: 1.0
`
}
