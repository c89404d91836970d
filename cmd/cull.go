package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"photocull/internal/fileutil"
	"photocull/internal/models"
)

var (
	cullTo     string
	cullDryRun bool
)

var cullCmd = &cobra.Command{
	Use:   "cull",
	Short: "Discard the non-picked members of every group",
	Long: `Move every group member except the auto-pick out of the library.
Rejects go to the system trash by default, or to a folder given with
--to. Each group is then disbanded and its rejects removed from the
database; the auto-pick stays as an ungrouped image.

Use --dry-run to preview what would be discarded.

Example:
  photocull cull --dry-run
  photocull cull
  photocull cull --to ./rejects`,
	RunE: runCull,
}

func init() {
	cullCmd.Flags().StringVar(&cullTo, "to", "", "Move rejects into this folder instead of the trash")
	cullCmd.Flags().BoolVar(&cullDryRun, "dry-run", false, "Show what would be discarded without touching anything")
	rootCmd.AddCommand(cullCmd)
}

func runCull(cmd *cobra.Command, args []string) error {
	store, _, err := openStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	groups, err := store.ListGroups()
	if err != nil {
		return fmt.Errorf("failed to list groups: %w", err)
	}
	if len(groups) == 0 {
		fmt.Println("No groups to cull.")
		return nil
	}

	images, err := store.ListImages()
	if err != nil {
		return fmt.Errorf("failed to list images: %w", err)
	}
	byID := make(map[string]*models.ImageRecord, len(images))
	for _, img := range images {
		byID[img.ID] = img
	}

	destDir := cullTo
	if destDir != "" {
		if destDir, err = filepath.Abs(destDir); err != nil {
			return fmt.Errorf("failed to resolve path: %w", err)
		}
	}

	culled := 0
	for _, group := range groups {
		var rejects []*models.ImageRecord
		for _, memberID := range group.MemberIDs {
			if memberID == group.AutoPickID {
				continue
			}
			if img, ok := byID[memberID]; ok {
				rejects = append(rejects, img)
			}
		}

		if cullDryRun {
			for _, img := range rejects {
				fmt.Printf("Would discard %s\n", img.Path)
			}
			culled += len(rejects)
			continue
		}

		var removedIDs []string
		for _, img := range rejects {
			if destDir != "" {
				_, err = fileutil.MoveFile(img.Path, destDir)
			} else {
				err = fileutil.MoveToTrash(img.Path)
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to discard %s: %v\n", img.Path, err)
				continue
			}
			removedIDs = append(removedIDs, img.ID)
			culled++
		}

		if err := store.DisbandGroup(group.ID); err != nil {
			return fmt.Errorf("failed to disband group: %w", err)
		}
		if err := store.DeleteImages(removedIDs); err != nil {
			return fmt.Errorf("failed to delete records: %w", err)
		}
	}

	if cullDryRun {
		fmt.Printf("Would discard %d images from %d groups.\n", culled, len(groups))
		return nil
	}

	if err := store.RecomputeStats(); err != nil {
		return fmt.Errorf("failed to recompute stats: %w", err)
	}

	fmt.Printf("Discarded %d images from %d groups.\n", culled, len(groups))
	return nil
}
