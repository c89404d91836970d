package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"photocull/internal/config"
	"photocull/internal/storage"
)

var (
	dbPath     string
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "photocull",
	Short: "Cull photo batches by grouping near-duplicate shots",
	Long: `photocull helps a photographer cull large photo batches.

It fingerprints every image with a perceptual hash (pHash), clusters
near-duplicate shots such as burst sequences, optionally confirms matches
with a structural comparison (SSIM), and nominates the best frame of each
group from focus, eye-state, face-size, exposure and rating signals.

Example usage:
  photocull scan ./photos        # Fingerprint a folder of images
  photocull group                # Cluster near-duplicates into groups
  photocull list                 # Show groups with their auto-picks
  photocull disband              # Dissolve all groups`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to SQLite database (default ~/.photocull/photocull.db)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to YAML config file")
}

// loadConfig resolves configuration and applies the global overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return cfg, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg, nil
}

// openStorage loads configuration and opens the database.
func openStorage() (*storage.Storage, config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, cfg, err
	}
	store, err := storage.NewStorage(cfg.DBPath)
	if err != nil {
		return nil, cfg, fmt.Errorf("failed to open database: %w", err)
	}
	return store, cfg, nil
}
