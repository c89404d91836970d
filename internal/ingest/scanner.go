package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"photocull/internal/models"
)

// Scanner walks folders and fingerprints images with a worker pool.
type Scanner struct {
	hasher     *Hasher
	workers    int
	timeout    time.Duration
	progressFn models.ProgressFunc
}

// ScannerOption configures a Scanner
type ScannerOption func(*Scanner)

// WithWorkers sets the number of parallel workers
func WithWorkers(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithTimeout sets the timeout for hashing each image
func WithTimeout(d time.Duration) ScannerOption {
	return func(s *Scanner) {
		s.timeout = d
	}
}

// WithProgress sets a progress callback
func WithProgress(fn models.ProgressFunc) ScannerOption {
	return func(s *Scanner) {
		s.progressFn = fn
	}
}

// NewScanner creates a new Scanner
func NewScanner(opts ...ScannerOption) *Scanner {
	s := &Scanner{
		hasher:  NewHasher(),
		workers: 8,
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScanFolder recursively fingerprints every supported image under folder.
// Images that fail to decode are skipped, not fatal.
func (s *Scanner) ScanFolder(folder string) ([]*models.ImageRecord, error) {
	var paths []string
	err := filepath.Walk(folder, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if info.IsDir() {
			return nil
		}
		if IsSupportedImage(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk folder: %w", err)
	}

	if len(paths) == 0 {
		return nil, nil
	}

	var (
		results   []*models.ImageRecord
		resultsMu sync.Mutex
		wg        sync.WaitGroup
		scanned   int64
		total     = len(paths)
	)

	work := make(chan string, len(paths))
	for _, p := range paths {
		work <- p
	}
	close(work)

	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range work {
				record, err := s.hasher.HashImageWithTimeout(path, s.timeout)
				if err != nil {
					// Skip failed images silently
					atomic.AddInt64(&scanned, 1)
					continue
				}

				resultsMu.Lock()
				results = append(results, record)
				resultsMu.Unlock()

				n := atomic.AddInt64(&scanned, 1)
				if s.progressFn != nil {
					s.progressFn(int(n), total, fmt.Sprintf("Hashing %s...", record.FileName))
				}
			}
		}()
	}

	wg.Wait()

	return results, nil
}
