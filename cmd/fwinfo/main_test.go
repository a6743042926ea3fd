package main

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fwinfo/pkg/checksum"
	"fwinfo/pkg/config"
	"fwinfo/pkg/firmware"
)

func isolate(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("APPDATA", t.TempDir())
	return t.TempDir()
}

func v1Image(payload []byte) []byte {
	hdr := &firmware.HeaderV1{
		Sig:             firmware.SignatureV1,
		Type:            1,
		Length:          uint32(len(payload)),
		CRC32:           checksum.ComputeCRC32(payload),
		FirmwareVersion: 0x01000002,
	}
	return append(hdr.Marshal(), payload...)
}

func v2Image(payload []byte) []byte {
	hdr := &firmware.HeaderV2{
		Sig:        firmware.SignatureV2,
		Type:       2,
		Length:     uint32(len(payload)),
		CRC32:      checksum.ComputeCRC32(payload),
		DeviceType: 4,
	}
	hdr.Checksum = hdr.ComputeChecksum()
	return append(hdr.Marshal(), payload...)
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantPath   string
		wantRepair bool
		wantErr    bool
	}{
		{name: "file only", args: []string{"fw.bin"}, wantPath: "fw.bin"},
		{name: "lower f", args: []string{"fw.bin", "-f"}, wantPath: "fw.bin", wantRepair: true},
		{name: "upper F", args: []string{"fw.bin", "-F"}, wantPath: "fw.bin", wantRepair: true},
		{name: "unknown flag", args: []string{"fw.bin", "-x"}, wantErr: true},
		{name: "too many", args: []string{"fw.bin", "-f", "extra"}, wantErr: true},
		{name: "none", args: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, repairMode, err := parseTarget(tt.args)
			if tt.wantErr {
				assert.ErrorIs(t, err, errBadCommandLine)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, path)
			assert.Equal(t, tt.wantRepair, repairMode)
		})
	}
}

func TestRunUsage(t *testing.T) {
	isolate(t)
	var stdout, stderr bytes.Buffer

	assert.Equal(t, 1, run(nil, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "Usage:")

	stdout.Reset()
	assert.Equal(t, 0, run([]string{"--help"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "init-config")
	assert.Contains(t, stdout.String(), "./watch")

	stdout.Reset()
	assert.Equal(t, 1, run([]string{"fw.bin", "-q"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "bad command line")
}

func TestRunCleanFile(t *testing.T) {
	dir := isolate(t)
	data := append(v1Image(bytes.Repeat([]byte{0xA5}, 40)), v1Image([]byte("second"))...)
	path := writeFile(t, dir, "fw.bin", data)

	var stdout, stderr bytes.Buffer
	code := run([]string{path, "-f"}, &stdout, &stderr)
	assert.Equal(t, 0, code)
	assert.NotContains(t, stdout.String(), "Error!")
	assert.Contains(t, stdout.String(), "Firmware block at 0x000000:")
	assert.Contains(t, stdout.String(), "Firmware block at 0x00003C:")
	assert.Contains(t, stderr.String(), "scan complete")

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, after)
}

func TestRunTruncatedV2(t *testing.T) {
	dir := isolate(t)
	data := v2Image(bytes.Repeat([]byte{0x3C}, 64))
	path := writeFile(t, dir, "fw.bin", data[:len(data)-10])

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run([]string{path}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "Block data length: 0x000040 (64) <-- Error! Only 0x000036 (54) data bytes available")
}

func TestRunRepairWithBackup(t *testing.T) {
	dir := isolate(t)
	good := v1Image([]byte("payload to protect"))
	broken := append([]byte(nil), good...)
	binary.LittleEndian.PutUint32(broken[12:16], 0x0BADF00D)
	path := writeFile(t, dir, "fw.bin", broken)

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, run([]string{path, "-F"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "Block header errors fixed")

	fixed, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, good, fixed)

	backup, err := os.ReadFile(path + ".bak")
	require.NoError(t, err)
	assert.Equal(t, broken, backup)
}

func TestRunRepairTwiceKeepsOriginalBackup(t *testing.T) {
	dir := isolate(t)
	good := v1Image([]byte("payload to protect"))
	broken := append([]byte(nil), good...)
	binary.LittleEndian.PutUint32(broken[12:16], 0x0BADF00D)
	path := writeFile(t, dir, "fw.bin", broken)

	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run([]string{path, "-f"}, &stdout, &stderr))

	// Damage the repaired file again so the second run writes too.
	second := append([]byte(nil), good...)
	binary.LittleEndian.PutUint32(second[12:16], 0x12345678)
	require.NoError(t, os.WriteFile(path, second, 0o644))

	stderr.Reset()
	require.Equal(t, 0, run([]string{path, "-f"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "backup already exists")

	fixed, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, good, fixed)

	backup, err := os.ReadFile(path + ".bak")
	require.NoError(t, err)
	assert.Equal(t, broken, backup)
}

func TestRunRepairCleanFileWritesNoBackup(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "fw.bin", v1Image([]byte("all good")))

	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run([]string{path, "-f"}, &stdout, &stderr))
	assert.NoFileExists(t, path+".bak")
}

func TestRunRepairBackupFailureLeavesFileUntouched(t *testing.T) {
	dir := isolate(t)
	good := v1Image([]byte("payload"))
	broken := append([]byte(nil), good...)
	binary.LittleEndian.PutUint32(broken[12:16], 0x0BADF00D)
	path := writeFile(t, dir, "fw.bin", broken)
	// A directory in the way makes the backup copy fail.
	require.NoError(t, os.Mkdir(path+".bak", 0o755))

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run([]string{path, "-f"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "No changes were made")

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, broken, after)
}

func TestRunNotFirmware(t *testing.T) {
	dir := isolate(t)

	t.Run("empty file", func(t *testing.T) {
		path := writeFile(t, dir, "empty.bin", nil)
		var stdout, stderr bytes.Buffer
		assert.Equal(t, 1, run([]string{path}, &stdout, &stderr))
		assert.Contains(t, stdout.String(), "Error reading firmware block header")
		assert.Contains(t, stdout.String(), "does not seem to be a Mi Walkie-talkie firmware file")
	})

	t.Run("unknown signature", func(t *testing.T) {
		path := writeFile(t, dir, "junk.bin", bytes.Repeat([]byte{0x42}, 32))
		var stdout, stderr bytes.Buffer
		assert.Equal(t, 1, run([]string{path}, &stdout, &stderr))
		assert.Contains(t, stdout.String(), "Unknown file signature 0x42424242")
	})

	t.Run("missing file", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		assert.Equal(t, 1, run([]string{filepath.Join(dir, "nope.bin")}, &stdout, &stderr))
		assert.Contains(t, stdout.String(), "Error opening file")
	})
}

func TestRunInitConfig(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "cfg", "fwinfo.yaml")

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, run([]string{"init-config", path}, &stdout, &stderr))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)

	stdout.Reset()
	assert.Equal(t, 1, run([]string{"init-config", path}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "already exists")

	assert.Equal(t, 0, run([]string{"init-config", "-force", path}, &stdout, &stderr))
}

func TestLoadConfigExplicitPath(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "c.yaml", []byte("repair:\n  persist_observed_length: true\n"))

	cfg, source, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, path, source)
	assert.True(t, cfg.Repair.PersistObservedLength)

	cfg, source, err = loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "built-in defaults", source)
	assert.Equal(t, config.DefaultConfig(), cfg)
}

func TestRunRemoteWithoutHost(t *testing.T) {
	dir := isolate(t)
	cfgPath := writeFile(t, dir, "c.yaml", []byte("log:\n  level: error\n"))

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run([]string{"remote", "-config", cfgPath, "/fw.bin"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "remote host not configured")

	stdout.Reset()
	assert.Equal(t, 1, run([]string{"remote"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "remote requires a remote firmware path")
}

func TestRunWatchArgs(t *testing.T) {
	isolate(t)
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run([]string{"watch"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "watch requires a firmware file path")
}
