package cmd

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"photocull/internal/ingest"
	"photocull/internal/models"
	"photocull/internal/phash"
)

var similarThreshold int

var similarCmd = &cobra.Command{
	Use:   "similar <path>",
	Short: "Find stored images similar to a given image",
	Long: `Fingerprint the given image and look up all stored images within
the Hamming distance threshold, using a BK-tree index over the stored
fingerprints. This is a lookup only; it does not create groups.

Example:
  photocull similar ./photos/IMG_0042.jpg
  photocull similar shot.jpg --threshold 5`,
	Args: cobra.ExactArgs(1),
	RunE: runSimilar,
}

func init() {
	similarCmd.Flags().IntVar(&similarThreshold, "threshold", 0, "Hamming distance threshold (default from config)")
	rootCmd.AddCommand(similarCmd)
}

func runSimilar(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	store, cfg, err := openStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	threshold := cfg.Grouping.Threshold
	if similarThreshold > 0 {
		threshold = similarThreshold
	}

	// Reuse the stored fingerprint when the probe is already in the library.
	probe, err := store.GetImageByPath(path)
	if err != nil {
		return err
	}
	if probe == nil || probe.Hash == "" {
		if probe, err = ingest.NewHasher().HashImage(path); err != nil {
			return fmt.Errorf("failed to hash %s: %w", path, err)
		}
	}

	images, err := store.ListImages()
	if err != nil {
		return fmt.Errorf("failed to load images: %w", err)
	}

	tree := phash.NewBKTree()
	byID := make(map[string]*models.ImageRecord)
	for _, img := range images {
		if img.Hash == "" || img.Path == path {
			continue
		}
		tree.Insert(img.Hash, img.ID)
		byID[img.ID] = img
	}

	ids := tree.FindWithinDistance(probe.Hash, threshold)
	if len(ids) == 0 {
		fmt.Printf("No stored images within distance %d of %s\n", threshold, filepath.Base(path))
		return nil
	}

	type match struct {
		img  *models.ImageRecord
		dist int
	}
	matches := make([]match, 0, len(ids))
	for _, id := range ids {
		img := byID[id]
		dist, err := phash.HammingDistance(probe.Hash, img.Hash)
		if err != nil {
			return err
		}
		matches = append(matches, match{img: img, dist: dist})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].dist < matches[j].dist })

	fmt.Printf("Found %d similar images (threshold %d):\n\n", len(matches), threshold)
	for _, m := range matches {
		fmt.Printf("  distance %2d  %s\n", m.dist, m.img.Path)
	}

	return nil
}
