// Package metadata writes JSON sidecar files describing downloaded tracks.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"vkmusic/pkg/vk"
)

// TrackMetadata is the sidecar document saved next to a downloaded file
type TrackMetadata struct {
	// Core identifiers
	ID      int64 `json:"id"`
	OwnerID int64 `json:"owner_id"`

	// Content
	Artist          string `json:"artist"`
	Title           string `json:"title"`
	Album           string `json:"album,omitempty"`
	AlbumArtURL     string `json:"album_art_url,omitempty"`
	DurationSeconds int    `json:"duration_seconds"`
	GenreID         int    `json:"genre_id,omitempty"`
	LyricsID        int    `json:"lyrics_id,omitempty"`

	// Timestamps
	AddedAt      time.Time `json:"added_at,omitempty"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// Writer saves sidecars next to their destination files
type Writer struct{}

// NewWriter creates a metadata writer
func NewWriter() *Writer {
	return &Writer{}
}

// Write saves the sidecar for record as destPath + ".json"
func (w *Writer) Write(record vk.MediaRecord, destPath string) error {
	meta := FromRecord(record)

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	sidecar := destPath + ".json"
	if err := os.WriteFile(sidecar, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	return nil
}

// FromRecord builds the sidecar document for a catalog record
func FromRecord(record vk.MediaRecord) TrackMetadata {
	meta := TrackMetadata{
		ID:              record.ID,
		OwnerID:         record.OwnerID,
		Artist:          record.Artist,
		Title:           record.Title,
		Album:           record.Album,
		AlbumArtURL:     record.AlbumArtURL,
		DurationSeconds: record.DurationSeconds,
		GenreID:         record.GenreID,
		LyricsID:        record.LyricsID,
		DownloadedAt:    time.Now().UTC(),
	}
	if record.AddedAt > 0 {
		meta.AddedAt = time.Unix(record.AddedAt, 0).UTC()
	}
	return meta
}
