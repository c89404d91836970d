package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show project statistics",
	Long: `Show the aggregate counters recomputed after scans and grouping
runs: total images, fingerprinted images, grouped images and group count.

Example:
  photocull stats`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	store, _, err := openStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.GetStats()
	if err != nil {
		return err
	}

	fmt.Printf("Total images:   %d\n", stats.TotalImages)
	fmt.Printf("Fingerprinted:  %d\n", stats.HashedImages)
	fmt.Printf("Grouped:        %d\n", stats.GroupedImages)
	fmt.Printf("Groups:         %d\n", stats.GroupCount)
	if !stats.UpdatedAt.IsZero() {
		fmt.Printf("Updated:        %s\n", stats.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}
