package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"photocull/internal/models"
)

// signalEntry is one record of the external quality-signal file. Bounding
// box coordinates are percentages of the image dimensions.
type signalEntry struct {
	Path          string        `json:"path"`
	FocusScore    *float64      `json:"focus_score,omitempty"`
	ExposureScore *float64      `json:"exposure_score,omitempty"`
	Faces         []models.Face `json:"faces,omitempty"`
}

var signalsCmd = &cobra.Command{
	Use:   "signals <file.json>",
	Short: "Import externally computed quality signals",
	Long: `Import per-image quality signals from a JSON file produced by an
external analysis tool: focus/sharpness scores, exposure scores, and
detected faces with eye states. These signals drive the auto-pick
selection inside each group.

The file is an array of entries:
  [{"path": "/photos/a.jpg", "focus_score": 0.9,
    "faces": [{"x": 10, "y": 20, "width": 15, "height": 20,
               "left_eye": "open", "right_eye": "open"}]}]

Example:
  photocull signals analysis.json`,
	Args: cobra.ExactArgs(1),
	RunE: runSignals,
}

func init() {
	rootCmd.AddCommand(signalsCmd)
}

func runSignals(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read signals file: %w", err)
	}

	var entries []signalEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to parse signals file: %w", err)
	}

	store, _, err := openStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	updated := 0
	skipped := 0
	for _, entry := range entries {
		if err := store.UpdateSignals(entry.Path, entry.FocusScore, entry.ExposureScore, entry.Faces); err != nil {
			fmt.Fprintf(os.Stderr, "skipping %s: %v\n", entry.Path, err)
			skipped++
			continue
		}
		updated++
	}

	fmt.Printf("Updated signals for %d images", updated)
	if skipped > 0 {
		fmt.Printf(" (%d skipped)", skipped)
	}
	fmt.Println()
	return nil
}
