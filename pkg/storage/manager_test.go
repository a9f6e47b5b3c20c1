package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "out"))
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	return m
}

func TestNewManagerCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	if _, err := NewManager(dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Errorf("expected directory to exist, got %v", err)
	}
}

func TestDestinationPath(t *testing.T) {
	m := newTestManager(t)

	tests := []struct {
		name     string
		artist   string
		title    string
		expected string
	}{
		{"plain", "Artist", "Song", "Artist - Song.mp3"},
		{"trimmed", "  Artist  ", " Song ", "Artist - Song.mp3"},
		{"path separator replaced", "AC/DC", "Back in Black", "AC_DC - Back in Black.mp3"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := m.DestinationPath(test.artist, test.title)
			if filepath.Base(got) != test.expected {
				t.Errorf("expected %q, got %q", test.expected, filepath.Base(got))
			}
			if filepath.Dir(got) != m.OutputDir() {
				t.Errorf("destination escaped the output directory: %q", got)
			}
		})
	}
}

func TestExists(t *testing.T) {
	m := newTestManager(t)
	dest := m.DestinationPath("Artist", "Song")

	if m.Exists(dest) {
		t.Error("expected missing file to report false")
	}

	if err := os.WriteFile(dest, []byte("audio"), 0644); err != nil {
		t.Fatalf("failed to create fixture: %v", err)
	}
	if !m.Exists(dest) {
		t.Error("expected existing file to report true")
	}

	if m.Exists(m.OutputDir()) {
		t.Error("a directory must not count as a downloaded file")
	}
}

func TestSaveWritesAtomically(t *testing.T) {
	m := newTestManager(t)
	dest := m.DestinationPath("Artist", "Song")

	if err := m.Save(strings.NewReader("audio bytes"), dest); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("destination missing: %v", err)
	}
	if string(data) != "audio bytes" {
		t.Errorf("unexpected content %q", string(data))
	}

	if _, err := os.Stat(dest + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, os.ErrClosed
}

func TestSaveCleansUpOnReadFailure(t *testing.T) {
	m := newTestManager(t)
	dest := m.DestinationPath("Artist", "Song")

	if err := m.Save(failingReader{}, dest); err == nil {
		t.Fatal("expected save to fail")
	}

	if m.Exists(dest) {
		t.Error("failed save must not leave a destination file")
	}
	if _, err := os.Stat(dest + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind after failure")
	}
}
