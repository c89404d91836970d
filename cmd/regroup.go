package cmd

import (
	"github.com/spf13/cobra"
)

var regroupCmd = &cobra.Command{
	Use:   "regroup",
	Short: "Disband all groups and re-run the grouper",
	Long: `Disband every existing group, then run a fresh grouping pass.

Nothing is reused across the boundary: all images become ungrouped and the
grouper reconsiders every fingerprint with the current options.

Example:
  photocull regroup --threshold 8`,
	RunE: runRegroup,
}

func init() {
	regroupCmd.Flags().IntVar(&groupThreshold, "threshold", 0, "Hamming distance threshold (default from config)")
	regroupCmd.Flags().BoolVar(&groupSSIM, "ssim", true, "Confirm matches with SSIM")
	regroupCmd.Flags().Float64Var(&groupSSIMThreshold, "ssim-threshold", 0, "Minimum SSIM score to accept a match (default from config)")
	regroupCmd.Flags().IntVar(&groupMaxSize, "max-group-size", 0, "Maximum images per group (default from config)")
	rootCmd.AddCommand(regroupCmd)
}

func runRegroup(cmd *cobra.Command, args []string) error {
	return runGrouping(cmd, true)
}
