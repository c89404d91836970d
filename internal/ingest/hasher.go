// Package ingest walks photo folders, fingerprints every supported image
// and persists the records the grouping engine runs over.
package ingest

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rwcarlsen/goexif/exif"

	"photocull/internal/models"
	"photocull/internal/phash"
	"photocull/internal/raster"
)

// Hasher fingerprints images and extracts file metadata.
type Hasher struct{}

// NewHasher creates a new Hasher.
func NewHasher() *Hasher {
	return &Hasher{}
}

// HashImage decodes the image at path, computes its perceptual fingerprint
// and builds a fresh ImageRecord.
func (h *Hasher) HashImage(path string) (*models.ImageRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	// Read EXIF before decoding, Decode consumes the reader.
	capturedAt := readCaptureTime(path)

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	hash, err := phash.Compute(img)
	if err != nil {
		return nil, fmt.Errorf("failed to compute hash: %w", err)
	}

	bounds := img.Bounds()
	return &models.ImageRecord{
		ID:         uuid.NewString(),
		Path:       path,
		FileName:   filepath.Base(path),
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		Hash:       hash,
		FileSize:   stat.Size(),
		ModTime:    stat.ModTime(),
		CapturedAt: capturedAt,
	}, nil
}

// readCaptureTime extracts the EXIF capture timestamp if present.
func readCaptureTime(path string) *time.Time {
	file, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer file.Close()

	meta, err := exif.Decode(file)
	if err != nil {
		return nil
	}
	taken, err := meta.DateTime()
	if err != nil {
		return nil
	}
	return &taken
}

// HashImageWithTimeout hashes an image with a timeout
func (h *Hasher) HashImageWithTimeout(path string, timeout time.Duration) (*models.ImageRecord, error) {
	done := make(chan struct{})
	var record *models.ImageRecord
	var err error

	go func() {
		record, err = h.HashImage(path)
		close(done)
	}()

	select {
	case <-done:
		return record, err
	case <-time.After(timeout):
		return nil, fmt.Errorf("timeout hashing image: %s", path)
	}
}

// IsSupportedImage reports whether path looks like a decodable image.
func IsSupportedImage(path string) bool {
	return raster.IsSupportedImage(path)
}
