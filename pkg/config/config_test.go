package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, int64(4096), cfg.Scan.BufferSize)
	assert.True(t, cfg.Repair.Backup)
	assert.False(t, cfg.Repair.PersistObservedLength)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 22, cfg.Remote.Port)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "fwinfo.yaml")

	cfg := DefaultConfig()
	cfg.Repair.PersistObservedLength = true
	cfg.Remote.Host = "radio.local"
	cfg.Remote.Username = "root"
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadConfigPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fwinfo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\nrepair:\n  backup: false\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Repair.Backup)
	assert.Equal(t, int64(4096), cfg.Scan.BufferSize)
	assert.Equal(t, 200, cfg.Watch.DebounceMs)
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{name: "bad yaml", content: "scan: [", errMsg: "error parsing config file"},
		{name: "zero buffer", content: "scan:\n  buffer_size: 0\n", errMsg: "buffer_size must be positive"},
		{name: "bad port", content: "remote:\n  port: 70000\n", errMsg: "remote.port out of range"},
		{name: "negative debounce", content: "watch:\n  debounce_ms: -1\n", errMsg: "debounce_ms must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := LoadConfig(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
