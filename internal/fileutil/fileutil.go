// Package fileutil moves and copies photo files for the export and cull
// workflows, with collision-safe naming and trash support.
package fileutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"
)

// ExportCopy copies a photo into destDir, appending a counter to the name
// if a file with the same name already exists (e.g. photo_1.jpg). It
// returns the destination path.
func ExportCopy(src, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", err
	}

	destName := uniqueName(filepath.Base(src), func(name string) bool {
		_, err := os.Stat(filepath.Join(destDir, name))
		return os.IsNotExist(err)
	})

	dest := filepath.Join(destDir, destName)
	if err := copyFile(src, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// MoveFile moves a photo into destDir with the same collision handling as
// ExportCopy. It returns the destination path.
func MoveFile(src, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", err
	}

	destName := uniqueName(filepath.Base(src), func(name string) bool {
		_, err := os.Stat(filepath.Join(destDir, name))
		return os.IsNotExist(err)
	})

	dest := filepath.Join(destDir, destName)
	if err := moveAcrossFS(src, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// uniqueName appends a counter to filename until isAvailable accepts it.
func uniqueName(filename string, isAvailable func(string) bool) string {
	if isAvailable(filename) {
		return filename
	}

	ext := filepath.Ext(filename)
	name := strings.TrimSuffix(filename, ext)
	for counter := 1; ; counter++ {
		candidate := fmt.Sprintf("%s_%d%s", name, counter, ext)
		if isAvailable(candidate) {
			return candidate
		}
	}
}

// moveAcrossFS renames src to dest, falling back to copy+delete when they
// live on different filesystems.
func moveAcrossFS(src, dest string) error {
	err := os.Rename(src, dest)
	if err == nil {
		return nil
	}

	var linkErr *os.LinkError
	if errors.As(err, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV) {
		if err := copyFile(src, dest); err != nil {
			return err
		}
		return os.Remove(src)
	}

	return err
}

func copyFile(src, dest string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return err
	}

	destFile, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, srcInfo.Mode())
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, srcFile); err != nil {
		os.Remove(dest) // Clean up on failure
		return err
	}

	return nil
}

// MoveToTrash moves a file to the system trash so a culled photo can still
// be recovered.
//   - macOS: ~/.Trash
//   - Linux: ~/.local/share/Trash (freedesktop.org spec)
//   - Windows: Recycle Bin (via shell32.dll)
func MoveToTrash(src string) error {
	switch runtime.GOOS {
	case "windows":
		return moveToWindowsTrash(src)
	case "linux":
		return moveToLinuxTrash(src)
	default: // darwin, etc.
		trashDir, err := trashDir()
		if err != nil {
			return err
		}
		_, err = MoveFile(src, trashDir)
		return err
	}
}

func trashDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	var dir string
	switch runtime.GOOS {
	case "darwin":
		dir = filepath.Join(homeDir, ".Trash")
	case "linux":
		dir = filepath.Join(homeDir, ".local", "share", "Trash", "files")
	default:
		dir = filepath.Join(homeDir, "photocull_trash")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create trash directory: %w", err)
	}

	return dir, nil
}

// moveToLinuxTrash moves a file to the freedesktop trash with a matching
// .trashinfo entry.
func moveToLinuxTrash(src string) error {
	trashFilesDir, err := trashDir()
	if err != nil {
		return err
	}

	homeDir, _ := os.UserHomeDir()
	trashInfoDir := filepath.Join(homeDir, ".local", "share", "Trash", "info")
	if err := os.MkdirAll(trashInfoDir, 0755); err != nil {
		return err
	}

	absPath, err := filepath.Abs(src)
	if err != nil {
		return err
	}

	// The name must be free in both the files and info directories.
	destName := uniqueName(filepath.Base(src), func(name string) bool {
		_, err1 := os.Stat(filepath.Join(trashFilesDir, name))
		_, err2 := os.Stat(filepath.Join(trashInfoDir, name+".trashinfo"))
		return os.IsNotExist(err1) && os.IsNotExist(err2)
	})

	dest := filepath.Join(trashFilesDir, destName)
	infoPath := filepath.Join(trashInfoDir, destName+".trashinfo")

	info := fmt.Sprintf("[Trash Info]\nPath=%s\nDeletionDate=%s\n",
		absPath,
		time.Now().Format("2006-01-02T15:04:05"))
	if err := os.WriteFile(infoPath, []byte(info), 0644); err != nil {
		return err
	}

	if err := moveAcrossFS(src, dest); err != nil {
		os.Remove(infoPath) // Clean up .trashinfo if move fails
		return err
	}

	return nil
}
