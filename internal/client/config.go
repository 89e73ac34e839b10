package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// Config holds the client configuration
type Config struct {
	Server    ServerConfig `toml:"server"`
	Theme     string       `toml:"theme"`
	ThemesDir string       `toml:"themes_dir"`
	LogFile   string       `toml:"log_file"`
	Debug     bool         `toml:"debug"`
}

// ServerConfig holds server connection settings
type ServerConfig struct {
	Address string `toml:"address"`
}

// DefaultConfig returns the default client configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address: "http://localhost:8080",
		},
		Theme: "dracula",
	}
}

// ConfigSearchPaths lists where the client looks for a config file when
// none is given
func ConfigSearchPaths() []string {
	paths := []string{
		"./devchat.toml",
		"./config/client.toml",
	}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "devchat", "client.toml"))
	}
	return paths
}

// FindConfig returns the first existing path from ConfigSearchPaths, or ""
func FindConfig() string {
	for _, path := range ConfigSearchPaths() {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// LoadConfig reads the TOML file at path over cfg
func LoadConfig(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// Preferences are remembered between runs in ~/.devchat/preferences.json
type Preferences struct {
	Version   int    `json:"version"`
	LastEmail string `json:"last_email,omitempty"`
	Theme     string `json:"theme,omitempty"`
}

// ConfigManager handles loading and saving the preferences file
type ConfigManager struct {
	prefsFilePath string
	mu            sync.RWMutex
}

// NewConfigManager creates a manager storing files under dir. An empty dir
// means ~/.devchat.
func NewConfigManager(dir string) (*ConfigManager, error) {
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		dir = filepath.Join(homeDir, ".devchat")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	return &ConfigManager{
		prefsFilePath: filepath.Join(dir, "preferences.json"),
	}, nil
}

// Dir returns the directory holding the preferences file
func (cm *ConfigManager) Dir() string {
	return filepath.Dir(cm.prefsFilePath)
}

// LoadPreferences loads the preferences, returning defaults when the file
// does not exist yet
func (cm *ConfigManager) LoadPreferences() (*Preferences, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	data, err := os.ReadFile(cm.prefsFilePath)
	if os.IsNotExist(err) {
		return &Preferences{Version: 1}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}

	var prefs Preferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		return nil, fmt.Errorf("failed to parse preferences: %w", err)
	}
	return &prefs, nil
}

// SavePreferences writes prefs atomically
func (cm *ConfigManager) SavePreferences(prefs *Preferences) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}

	// Write to temp file first, then rename over the real one
	tempFile := cm.prefsFilePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}

	if err := os.Rename(tempFile, cm.prefsFilePath); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to save preferences: %w", err)
	}

	return nil
}

// RememberEmail stores the last email that signed in successfully
func (cm *ConfigManager) RememberEmail(email string) error {
	prefs, err := cm.LoadPreferences()
	if err != nil {
		return err
	}
	if prefs.LastEmail == email {
		return nil
	}
	prefs.LastEmail = email
	return cm.SavePreferences(prefs)
}

// RememberTheme stores the theme picked in the client
func (cm *ConfigManager) RememberTheme(name string) error {
	prefs, err := cm.LoadPreferences()
	if err != nil {
		return err
	}
	prefs.Theme = name
	return cm.SavePreferences(prefs)
}
