package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the main configuration structure
type Config struct {
	Scan   ScanConfig   `yaml:"scan"`
	Repair RepairConfig `yaml:"repair"`
	Log    LogConfig    `yaml:"log"`
	Watch  WatchConfig  `yaml:"watch"`
	Remote RemoteConfig `yaml:"remote"`
}

type ScanConfig struct {
	// BufferSize is the payload read buffer in bytes
	BufferSize int64 `yaml:"buffer_size"`
}

type RepairConfig struct {
	// Backup copies the file to <file>.bak before its first header rewrite
	Backup bool `yaml:"backup"`

	// PersistObservedLength writes the truncated payload length back into
	// the header instead of keeping the declared one
	PersistObservedLength bool `yaml:"persist_observed_length"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type WatchConfig struct {
	DebounceMs int `yaml:"debounce_ms"`
}

type RemoteConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password,omitempty"`
	KeyFile  string `yaml:"key_file,omitempty"`

	// KnownHosts enables host key verification against an OpenSSH
	// known_hosts file
	KnownHosts string `yaml:"known_hosts,omitempty"`
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		Scan: ScanConfig{
			BufferSize: 4096,
		},
		Repair: RepairConfig{
			Backup:                true,
			PersistObservedLength: false,
		},
		Log: LogConfig{
			Level: "info",
		},
		Watch: WatchConfig{
			DebounceMs: 200,
		},
		Remote: RemoteConfig{
			Port: 22,
		},
	}
}

// LoadConfig loads configuration from the specified YAML file. Keys missing
// from the file keep their default values.
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return config, nil
}

// Validate checks values that would make a scan misbehave
func (c *Config) Validate() error {
	if c.Scan.BufferSize <= 0 {
		return fmt.Errorf("scan.buffer_size must be positive, got %d", c.Scan.BufferSize)
	}
	if c.Watch.DebounceMs < 0 {
		return fmt.Errorf("watch.debounce_ms must not be negative, got %d", c.Watch.DebounceMs)
	}
	if c.Remote.Port < 0 || c.Remote.Port > 65535 {
		return fmt.Errorf("remote.port out of range: %d", c.Remote.Port)
	}
	return nil
}

// SaveConfig saves the configuration to the specified YAML file
func SaveConfig(config *Config, configPath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}
