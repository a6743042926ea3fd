package utils

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// BackupSuffix is appended to a firmware file name for its pre-repair copy
const BackupSuffix = ".bak"

// FileExists reports whether path names an existing regular file
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// CopyFile copies a file from source to destination, keeping its permissions
func CopyFile(src, dst string) error {
	return copyFile(src, dst, os.O_TRUNC)
}

func copyFile(src, dst string, flag int) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	info, err := sourceFile.Stat()
	if err != nil {
		return err
	}

	// Create destination directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	destFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|flag, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		destFile.Close()
		if flag&os.O_EXCL != 0 {
			os.Remove(dst)
		}
		return err
	}
	return destFile.Close()
}

// BackupFile copies path to path+BackupSuffix and returns the backup name.
// An existing backup is never overwritten: it holds the bytes from before the
// first repair, so created is false and the file is left alone.
func BackupFile(path string) (backup string, created bool, err error) {
	backup = path + BackupSuffix
	if err := copyFile(path, backup, os.O_EXCL); err != nil {
		if errors.Is(err, os.ErrExist) && FileExists(backup) {
			return backup, false, nil
		}
		return "", false, fmt.Errorf("error creating backup %s: %w", backup, err)
	}
	return backup, true, nil
}
