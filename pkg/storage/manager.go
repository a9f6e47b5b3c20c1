package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Manager handles the download directory: destination naming, existence
// checks for dedup, and atomic writes.
type Manager struct {
	outputDir string
}

// NewManager creates a storage manager, creating the directory if needed
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &Manager{outputDir: outputDir}, nil
}

// OutputDir returns the output directory path
func (m *Manager) OutputDir() string {
	return m.outputDir
}

// DestinationPath builds the destination file name for a track.
// Path separators in artist or title would escape the directory, so they are
// replaced before joining.
func (m *Manager) DestinationPath(artist, title string) string {
	name := fmt.Sprintf("%s - %s.mp3", sanitizeComponent(artist), sanitizeComponent(title))
	return filepath.Join(m.outputDir, name)
}

// Exists reports whether the destination file is already present. This is
// the sole dedup signal; no checksums are kept.
func (m *Manager) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Save writes the reader's contents to path via a temporary file and an
// atomic rename, so a killed process never leaves a half-written final file.
func (m *Manager) Save(r io.Reader, path string) error {
	tempFile := path + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to save data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}

// sanitizeComponent strips characters that would break the destination path
func sanitizeComponent(s string) string {
	s = strings.ReplaceAll(s, string(os.PathSeparator), "_")
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.TrimSpace(s)
}
