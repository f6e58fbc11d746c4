package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds the engine's tunables: storage location and size policy,
// recall budget defaults, and logging. JSON-backed, layered user-then-
// project.
type Config struct {
	// Storage settings
	DataDir         string  `json:"data_dir,omitempty"`
	DBSoftLimitMB   int     `json:"db_soft_limit_mb,omitempty"`
	DBGCTargetRatio float64 `json:"db_gc_target_ratio,omitempty"`

	// Recall settings
	DefaultBudgetTokens int `json:"default_budget_tokens,omitempty"`
	MaxCandidates       int `json:"max_candidates,omitempty"`

	// Logging
	LogLevel string `json:"log_level,omitempty"`
}

type Manager struct {
	userConfig    *Config
	projectConfig *Config
	merged        *Config
}

func NewManager() *Manager {
	return &Manager{
		userConfig:    &Config{},
		projectConfig: &Config{},
		merged:        &Config{},
	}
}

// Load reads userConfigDir/settings.json and projectDir/.attention-matters/settings.json,
// then merges them (project overrides user, user overrides built-in defaults).
func (m *Manager) Load(userConfigDir, projectDir string) error {
	userConfigPath := filepath.Join(userConfigDir, "settings.json")
	if err := m.loadConfig(userConfigPath, m.userConfig); err != nil {
		return err
	}

	projectConfigPath := filepath.Join(projectDir, ".attention-matters", "settings.json")
	if err := m.loadConfig(projectConfigPath, m.projectConfig); err != nil {
		return err
	}

	m.mergeConfigs()

	return nil
}

func (m *Manager) loadConfig(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // Config file doesn't exist, use defaults
		}
		return err
	}

	return json.Unmarshal(data, config)
}

func (m *Manager) mergeConfigs() {
	m.merged = &Config{
		DataDir:             m.getStringValue(m.userConfig.DataDir, m.projectConfig.DataDir, ""),
		DBSoftLimitMB:       m.getIntValue(m.userConfig.DBSoftLimitMB, m.projectConfig.DBSoftLimitMB, 50),
		DBGCTargetRatio:     m.getFloatValue(m.userConfig.DBGCTargetRatio, m.projectConfig.DBGCTargetRatio, 0.8),
		DefaultBudgetTokens: m.getIntValue(m.userConfig.DefaultBudgetTokens, m.projectConfig.DefaultBudgetTokens, 2000),
		MaxCandidates:       m.getIntValue(m.userConfig.MaxCandidates, m.projectConfig.MaxCandidates, 20),
		LogLevel:            m.getStringValue(m.userConfig.LogLevel, m.projectConfig.LogLevel, "info"),
	}
}

func (m *Manager) getStringValue(user, project, defaultValue string) string {
	if project != "" {
		return project
	}
	if user != "" {
		return user
	}
	return defaultValue
}

func (m *Manager) getIntValue(user, project, defaultValue int) int {
	if project != 0 {
		return project
	}
	if user != 0 {
		return user
	}
	return defaultValue
}

func (m *Manager) getFloatValue(user, project, defaultValue float64) float64 {
	if project != 0 {
		return project
	}
	if user != 0 {
		return user
	}
	return defaultValue
}

func (m *Manager) Get() *Config {
	return m.merged
}

func (m *Manager) SaveUserConfig(userConfigDir string) error {
	configPath := filepath.Join(userConfigDir, "settings.json")

	if err := os.MkdirAll(userConfigDir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(m.userConfig, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}

func (m *Manager) SaveProjectConfig(projectDir string) error {
	dir := filepath.Join(projectDir, ".attention-matters")
	configPath := filepath.Join(dir, "settings.json")

	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(m.projectConfig, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}
