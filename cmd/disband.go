package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"photocull/internal/engine"
	"photocull/internal/raster"
)

var disbandCmd = &cobra.Command{
	Use:   "disband",
	Short: "Dissolve all groups",
	Long: `Dissolve every group, clearing group membership and auto-pick flags
on all images. Each group is disbanded atomically; the images themselves
are untouched.

Example:
  photocull disband`,
	RunE: runDisband,
}

func init() {
	rootCmd.AddCommand(disbandCmd)
}

func runDisband(cmd *cobra.Command, args []string) error {
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
		fmt.Println("No groups to disband.")
		return nil
	}

	grouper := engine.New(store, raster.NewFileDecoder())
	if err := grouper.DisbandAllGroups(); err != nil {
		return err
	}
	if err := store.RecomputeStats(); err != nil {
		return fmt.Errorf("failed to recompute stats: %w", err)
	}

	fmt.Printf("Disbanded %d groups.\n", len(groups))
	return nil
}
