package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"photocull/internal/models"
	"photocull/internal/quality"
)

var (
	listJSON    bool
	listVerbose bool
	listLimit   int
	listOffset  int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all groups of near-duplicates",
	Long: `Display all groups with their member images.

Each group shows:
- Group ID
- Member images with their quality scores
- The nominated best frame (auto-pick) marked with ✓

Example:
  photocull list              # Show first 10 groups (default)
  photocull list -n 0         # Show all groups
  photocull list --offset 10  # Groups 11-20`,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	listCmd.Flags().BoolVarP(&listVerbose, "verbose", "v", false, "Show detailed image info")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 10, "Limit number of groups to display (0 = all)")
	listCmd.Flags().IntVar(&listOffset, "offset", 0, "Skip first N groups (for pagination)")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	store, _, err := openStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	groups, err := store.ListGroups()
	if err != nil {
		return fmt.Errorf("failed to get groups: %w", err)
	}

	if len(groups) == 0 {
		fmt.Println("No groups found.")
		fmt.Println("Run 'photocull scan <folder>' and 'photocull group' first.")
		return nil
	}

	images, err := store.ListImages()
	if err != nil {
		return fmt.Errorf("failed to get images: %w", err)
	}
	byID := make(map[string]*models.ImageRecord, len(images))
	for _, img := range images {
		byID[img.ID] = img
	}

	totalGroups := len(groups)
	startIdx := listOffset
	if startIdx > len(groups) {
		startIdx = len(groups)
	}
	groups = groups[startIdx:]
	if listLimit > 0 && listLimit < len(groups) {
		groups = groups[:listLimit]
	}

	if listJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(groups)
	}

	fmt.Printf("Found %d groups\n\n", totalGroups)

	if len(groups) == 0 {
		fmt.Printf("No groups in range (offset %d exceeds total %d)\n", listOffset, totalGroups)
		return nil
	}

	for i, group := range groups {
		printGroup(startIdx+i+1, group, byID, listVerbose)
	}

	endIdx := startIdx + len(groups)
	fmt.Printf("Showing groups %d-%d of %d\n", startIdx+1, endIdx, totalGroups)
	if endIdx < totalGroups {
		fmt.Printf("Next page: photocull list -n %d --offset %d\n", listLimit, endIdx)
	}

	return nil
}

func printGroup(ordinal int, group *models.Group, byID map[string]*models.ImageRecord, verbose bool) {
	fmt.Printf("Group %d (%d images, id %s)\n", ordinal, len(group.MemberIDs), group.ID)
	fmt.Println(strings.Repeat("-", 60))

	for _, memberID := range group.MemberIDs {
		img, ok := byID[memberID]
		if !ok {
			fmt.Printf("    (missing image %s)\n", memberID)
			continue
		}

		marker := " "
		if memberID == group.AutoPickID {
			marker = "✓"
		}

		if verbose {
			fmt.Printf("  %s %s\n", marker, img.Path)
			fmt.Printf("      Resolution: %dx%d  Rating: %d  Score: %.3f\n",
				img.Width, img.Height, img.Rating, quality.Score(img))
			if img.CapturedAt != nil {
				fmt.Printf("      Captured: %s\n", img.CapturedAt.Format("2006-01-02 15:04:05"))
			}
		} else {
			fmt.Printf("  %s %-40s  %dx%d  Score: %.3f\n",
				marker, shortenName(img.FileName, 40), img.Width, img.Height, quality.Score(img))
		}
	}
	fmt.Println()
}

func shortenName(name string, maxLen int) string {
	if len(name) <= maxLen {
		return name
	}
	return "..." + name[len(name)-(maxLen-3):]
}
