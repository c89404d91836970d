package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"photocull/internal/fileutil"
	"photocull/internal/models"
)

var exportUngrouped bool

var exportCmd = &cobra.Command{
	Use:   "export <folder>",
	Short: "Copy each group's auto-pick into a folder",
	Long: `Copy the auto-pick of every group into the destination folder. The
originals stay in place; name collisions get a counter suffix
(photo_1.jpg). With --ungrouped, images that belong to no group are
copied as well.

Example:
  photocull export ./picks
  photocull export --ungrouped ./picks`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().BoolVar(&exportUngrouped, "ungrouped", false, "Also export images that belong to no group")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	destDir, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	store, _, err := openStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	images, err := store.ListImages()
	if err != nil {
		return fmt.Errorf("failed to list images: %w", err)
	}

	var picks []*models.ImageRecord
	for _, img := range images {
		if img.IsAutoPick || (exportUngrouped && img.GroupID == "") {
			picks = append(picks, img)
		}
	}
	if len(picks) == 0 {
		fmt.Println("Nothing to export.")
		return nil
	}

	exported := 0
	for _, img := range picks {
		if _, err := fileutil.ExportCopy(img.Path, destDir); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to export %s: %v\n", img.Path, err)
			continue
		}
		exported++
	}

	fmt.Printf("Exported %d of %d images to %s\n", exported, len(picks), destDir)
	return nil
}
