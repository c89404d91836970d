// Package config resolves tool settings from, in increasing precedence:
// built-in defaults, an optional YAML config file, a .env file and
// PHOTOCULL_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"photocull/internal/models"
)

// Config holds tool-wide settings.
type Config struct {
	DBPath   string         `yaml:"db_path"`
	Workers  int            `yaml:"workers"`
	Grouping GroupingConfig `yaml:"grouping"`
}

// GroupingConfig holds default grouping parameters; per-run flags override
// them.
type GroupingConfig struct {
	Threshold     int     `yaml:"threshold"`
	UseSSIM       bool    `yaml:"use_ssim"`
	SSIMThreshold float64 `yaml:"ssim_threshold"`
	MaxGroupSize  int     `yaml:"max_group_size"`
}

// Options converts the configured defaults into engine options.
func (g GroupingConfig) Options() models.GroupingOptions {
	return models.GroupingOptions{
		Threshold:     g.Threshold,
		UseSSIM:       g.UseSSIM,
		SSIMThreshold: g.SSIMThreshold,
		MaxGroupSize:  g.MaxGroupSize,
	}.Normalized()
}

func defaults() Config {
	homeDir, _ := os.UserHomeDir()
	return Config{
		DBPath:  filepath.Join(homeDir, ".photocull", "photocull.db"),
		Workers: 8,
		Grouping: GroupingConfig{
			Threshold:     models.DefaultHammingThreshold,
			UseSSIM:       true,
			SSIMThreshold: models.DefaultSSIMThreshold,
			MaxGroupSize:  models.DefaultMaxGroupSize,
		},
	}
}

// Load resolves the configuration. configFile may be empty; a missing .env
// is fine.
func Load(configFile string) (Config, error) {
	cfg := defaults()

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Ignore error, .env file is optional.
	godotenv.Load()

	if v := os.Getenv("PHOTOCULL_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("PHOTOCULL_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid PHOTOCULL_WORKERS: %w", err)
		}
		cfg.Workers = n
	}
	if v := os.Getenv("PHOTOCULL_THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid PHOTOCULL_THRESHOLD: %w", err)
		}
		cfg.Grouping.Threshold = n
	}
	if v := os.Getenv("PHOTOCULL_SSIM"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid PHOTOCULL_SSIM: %w", err)
		}
		cfg.Grouping.UseSSIM = b
	}
	if v := os.Getenv("PHOTOCULL_SSIM_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid PHOTOCULL_SSIM_THRESHOLD: %w", err)
		}
		cfg.Grouping.SSIMThreshold = f
	}
	if v := os.Getenv("PHOTOCULL_MAX_GROUP_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid PHOTOCULL_MAX_GROUP_SIZE: %w", err)
		}
		cfg.Grouping.MaxGroupSize = n
	}

	return cfg, nil
}
