package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
)

var rateCmd = &cobra.Command{
	Use:   "rate <path> <0-5>",
	Short: "Set the user rating for an image",
	Long: `Assign a 0-5 star rating to an image. The rating feeds into the
auto-pick score when the image's group nominates its best frame.

Example:
  photocull rate ./photos/IMG_0042.jpg 4`,
	Args: cobra.ExactArgs(2),
	RunE: runRate,
}

func init() {
	rootCmd.AddCommand(rateCmd)
}

func runRate(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	rating, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid rating %q: %w", args[1], err)
	}

	store, _, err := openStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.SetRating(path, rating); err != nil {
		return err
	}

	fmt.Printf("Rated %s: %d\n", filepath.Base(path), rating)
	return nil
}
