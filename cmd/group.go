package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"photocull/internal/engine"
	"photocull/internal/models"
	"photocull/internal/raster"
)

var (
	groupThreshold     int
	groupSSIM          bool
	groupSSIMThreshold float64
	groupMaxSize       int
)

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Cluster near-duplicate images into groups",
	Long: `Run the auto-grouper over all ungrouped, fingerprinted images.

Images whose fingerprints are within the Hamming distance threshold are
clustered greedily in storage order. With SSIM enabled, each candidate
match is confirmed with a structural comparison of the decoded previews;
if a preview cannot be decoded the match falls back to the fingerprint
alone. The best frame of each group is nominated automatically.

Press Ctrl-C to abort; groups created so far are kept.

Example:
  photocull group
  photocull group --threshold 5 --ssim=false
  photocull group --max-group-size 20`,
	RunE: runGroup,
}

func init() {
	groupCmd.Flags().IntVar(&groupThreshold, "threshold", 0, "Hamming distance threshold (default from config)")
	groupCmd.Flags().BoolVar(&groupSSIM, "ssim", true, "Confirm matches with SSIM")
	groupCmd.Flags().Float64Var(&groupSSIMThreshold, "ssim-threshold", 0, "Minimum SSIM score to accept a match (default from config)")
	groupCmd.Flags().IntVar(&groupMaxSize, "max-group-size", 0, "Maximum images per group (default from config)")
	rootCmd.AddCommand(groupCmd)
}

func runGroup(cmd *cobra.Command, args []string) error {
	return runGrouping(cmd, false)
}

// groupingOptions merges config defaults with the flags set on cmd.
func groupingOptions(cmd *cobra.Command, base models.GroupingOptions) models.GroupingOptions {
	opts := base
	if cmd.Flags().Changed("threshold") {
		opts.Threshold = groupThreshold
	}
	if cmd.Flags().Changed("ssim") {
		opts.UseSSIM = groupSSIM
	}
	if cmd.Flags().Changed("ssim-threshold") {
		opts.SSIMThreshold = groupSSIMThreshold
	}
	if cmd.Flags().Changed("max-group-size") {
		opts.MaxGroupSize = groupMaxSize
	}
	return opts.Normalized()
}

// runGrouping drives a grouping (or regrouping) pass with a progress bar
// and Ctrl-C cancellation.
func runGrouping(cmd *cobra.Command, regroup bool) error {
	store, cfg, err := openStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	opts := groupingOptions(cmd, cfg.Grouping.Options())

	fmt.Printf("Threshold: %d (Hamming distance)\n", opts.Threshold)
	if opts.UseSSIM {
		fmt.Printf("SSIM refinement: enabled (threshold %.2f)\n", opts.SSIMThreshold)
	} else {
		fmt.Println("SSIM refinement: disabled")
	}
	fmt.Printf("Max group size: %d\n\n", opts.MaxGroupSize)

	grouper := engine.New(store, raster.NewFileDecoder())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		<-sigs
		fmt.Fprintln(os.Stderr, "\nAborting...")
		grouper.Abort()
	}()

	var bar *progressbar.ProgressBar
	opts.Progress = func(processed, total int, status string) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("Grouping"),
				progressbar.OptionShowCount(),
				progressbar.OptionShowElapsedTimeOnFinish(),
			)
		}
		bar.Describe(status)
		bar.Set(processed)
	}

	var groups []*models.Group
	if regroup {
		groups, err = grouper.RegroupAll(opts)
	} else {
		groups, err = grouper.GroupSimilarImages(opts)
	}
	if bar != nil {
		bar.Finish()
		fmt.Println()
	}
	if err != nil {
		return fmt.Errorf("grouping failed: %w", err)
	}

	switch grouper.State() {
	case engine.StateAborted:
		fmt.Printf("Aborted. %d groups created before cancellation were kept.\n", len(groups))
	default:
		grouped := 0
		for _, g := range groups {
			grouped += len(g.MemberIDs)
		}
		fmt.Println("=== Grouping Complete ===")
		fmt.Printf("Groups created: %d\n", len(groups))
		fmt.Printf("Images grouped: %d\n", grouped)
		if len(groups) > 0 {
			fmt.Println()
			fmt.Println("Run 'photocull list' to see the groups and their auto-picks")
		}
	}

	return nil
}
