package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"photocull/internal/ingest"
)

var scanWorkers int

var scanCmd = &cobra.Command{
	Use:   "scan <folder>",
	Short: "Fingerprint a folder of images",
	Long: `Scan a folder recursively and fingerprint every supported image.

The scan will:
1. Find all supported images (jpg, png, gif, webp, bmp, tiff)
2. Compute a perceptual hash for each image
3. Read the EXIF capture time where present
4. Store the records for grouping

Example:
  photocull scan ./photos
  photocull scan /path/to/images --workers 4`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanWorkers, "workers", 0, "Number of parallel workers (default from config)")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	folder := args[0]

	absFolder, err := filepath.Abs(folder)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	info, err := os.Stat(absFolder)
	if err != nil {
		return fmt.Errorf("folder not found: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", absFolder)
	}

	store, cfg, err := openStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	workers := cfg.Workers
	if scanWorkers > 0 {
		workers = scanWorkers
	}

	fmt.Printf("Scanning: %s\n", absFolder)
	fmt.Printf("Workers: %d\n\n", workers)

	var bar *progressbar.ProgressBar
	scanner := ingest.NewScanner(
		ingest.WithWorkers(workers),
		ingest.WithProgress(func(scanned, total int, status string) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetDescription("Hashing"),
					progressbar.OptionShowCount(),
					progressbar.OptionShowIts(),
					progressbar.OptionSetItsString("images"),
					progressbar.OptionShowElapsedTimeOnFinish(),
				)
			}
			bar.Set(scanned)
		}),
	)

	records, err := scanner.ScanFolder(absFolder)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	if bar != nil {
		bar.Finish()
		fmt.Println()
	}

	if len(records) == 0 {
		fmt.Println("No images found.")
		return nil
	}

	if err := store.SaveImages(records); err != nil {
		return fmt.Errorf("failed to save images: %w", err)
	}
	if err := store.RecomputeStats(); err != nil {
		return fmt.Errorf("failed to recompute stats: %w", err)
	}

	fmt.Printf("Fingerprinted %d images\n", len(records))
	fmt.Println()
	fmt.Println("Run 'photocull group' to cluster near-duplicates")

	return nil
}
