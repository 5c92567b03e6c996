// Package config loads and saves the user's persistent preferences.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the user's persistent configuration preferences.
type Config struct {
	LLMProvider    string `json:"llm_provider,omitempty"` // anthropic, openai, gemini, ollama, ...
	APIKey         string `json:"api_key,omitempty"`
	Model          string `json:"model,omitempty"`
	BaseURL        string `json:"base_url,omitempty"`        // optional API base URL override
	TrustPreset    string `json:"trust_preset,omitempty"`    // paranoid..yolo; default when empty
	EvidenceBudget int    `json:"evidence_budget,omitempty"` // global evidence token budget
	EnableCaching  bool   `json:"enable_caching"`
	AutoIndex      bool   `json:"auto_index"` // index new projects on first use
}

// Manager handles loading and saving the configuration.
type Manager struct {
	configDir string
}

// NewManager creates a configuration manager under the user config dir.
func NewManager() (*Manager, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user config dir: %w", err)
	}
	return &Manager{configDir: filepath.Join(configDir, "vellum")}, nil
}

// Dir returns the configuration directory.
func (m *Manager) Dir() string { return m.configDir }

// ConfigPath returns the absolute path to config.json.
func (m *Manager) ConfigPath() string {
	return filepath.Join(m.configDir, "config.json")
}

// StatsPath returns where compaction stats persist.
func (m *Manager) StatsPath() string {
	return filepath.Join(m.configDir, "compaction-stats.json")
}

// IndexDir returns where a repository's retrieval index lives.
func (m *Manager) IndexDir(repoHash string) string {
	return filepath.Join(m.configDir, "index", repoHash)
}

// Load reads the configuration from disk. A missing file returns an
// empty Config and no error.
func (m *Manager) Load() (*Config, error) {
	path := m.ConfigPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &Config{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config json: %w", err)
	}
	return &cfg, nil
}

// Save writes the configuration with restricted permissions; the file
// holds an API key.
func (m *Manager) Save(cfg *Config) error {
	if err := os.MkdirAll(m.configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(m.ConfigPath(), data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
