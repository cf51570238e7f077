package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration
type Config struct {
	General       GeneralConfig       `toml:"general"`
	Quota         QuotaConfig         `toml:"quota"`
	Review        ReviewConfig        `toml:"review"`
	Daemon        DaemonConfig        `toml:"daemon"`
	Notifications NotificationsConfig `toml:"notifications"`
}

// GeneralConfig holds repository and state-file settings
type GeneralConfig struct {
	RepoDir      string `toml:"repo_dir"`
	BaseBranch   string `toml:"base_branch"`
	Remote       string `toml:"remote"`
	DataDir      string `toml:"data_dir"`
	ActivityFile string `toml:"activity_file"`
	CatalogPath  string `toml:"catalog_path"`
}

// QuotaConfig holds the daily commit quota bounds
type QuotaConfig struct {
	MinTarget int    `toml:"min_target"`
	MaxTarget int    `toml:"max_target"`
	Timezone  string `toml:"timezone"`
}

// ReviewConfig holds settle delays used around platform calls
type ReviewConfig struct {
	MergeSettleSeconds int `toml:"merge_settle_seconds"`
	StashSettleSeconds int `toml:"stash_settle_seconds"`
}

// DaemonConfig holds long-running mode settings
type DaemonConfig struct {
	Cron string `toml:"cron"`
}

// NotificationsConfig holds notification settings
type NotificationsConfig struct {
	SlackWebhook string `toml:"slack_webhook"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		General: GeneralConfig{
			RepoDir:      "",
			BaseBranch:   "main",
			Remote:       "origin",
			DataDir:      filepath.Join(home, ".activity-bot"),
			ActivityFile: "ACTIVITY.md",
		},
		Quota: QuotaConfig{
			MinTarget: 8,
			MaxTarget: 15,
			Timezone:  "Europe/Berlin",
		},
		Review: ReviewConfig{
			MergeSettleSeconds: 5,
			StashSettleSeconds: 1,
		},
		Daemon: DaemonConfig{
			Cron: "*/20 8-19 * * 1-5",
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Expand paths
	cfg.General.RepoDir = ExpandPath(cfg.General.RepoDir)
	cfg.General.DataDir = ExpandPath(cfg.General.DataDir)
	cfg.General.CatalogPath = ExpandPath(cfg.General.CatalogPath)

	return cfg, cfg.Validate()
}

// Validate checks bounds the rest of the code relies on
func (c *Config) Validate() error {
	if c.Quota.MinTarget < 1 {
		return fmt.Errorf("quota min_target must be >= 1, got %d", c.Quota.MinTarget)
	}
	if c.Quota.MaxTarget < c.Quota.MinTarget {
		return fmt.Errorf("quota max_target %d < min_target %d", c.Quota.MaxTarget, c.Quota.MinTarget)
	}
	if c.General.BaseBranch == "" {
		return fmt.Errorf("base_branch is required")
	}
	if c.General.Remote == "" {
		return fmt.Errorf("remote is required")
	}
	return nil
}

// Save writes the configuration as TOML
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "activity-bot", "config.toml")
}

// LockPath returns the location of the run lock file
func (c *Config) LockPath() string {
	return filepath.Join(c.General.DataDir, "lock")
}

// QuotaPath returns the location of the persisted quota state
func (c *Config) QuotaPath() string {
	return filepath.Join(c.General.DataDir, "quota.toml")
}

// WorklogPath returns the location of the append-only activity log
func (c *Config) WorklogPath() string {
	return filepath.Join(c.General.DataDir, "activity.log")
}

// DatabasePath returns the location of the run-history database
func (c *Config) DatabasePath() string {
	return filepath.Join(c.General.DataDir, "runs.db")
}
