package platform

import (
	"os"
	"path/filepath"
	"runtime"
)

// IsWindows returns true if running on Windows
func IsWindows() bool {
	return runtime.GOOS == "windows"
}

// GetDefaultConfigPath returns the platform-specific default config path
func GetDefaultConfigPath() string {
	if IsWindows() {
		return filepath.Join(os.Getenv("APPDATA"), "fwinfo", "config.yaml")
	}
	return filepath.Join(os.Getenv("HOME"), ".config", "fwinfo", "config.yaml")
}

// ProgramName returns the base name the program was invoked as
func ProgramName() string {
	if len(os.Args) == 0 {
		return "fwinfo"
	}
	name := filepath.Base(os.Args[0])
	if IsWindows() {
		name = trimExe(name)
	}
	return name
}

func trimExe(name string) string {
	if ext := filepath.Ext(name); ext == ".exe" || ext == ".EXE" {
		return name[:len(name)-len(ext)]
	}
	return name
}
