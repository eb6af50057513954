// Package config provides YAML-based configuration loading for Lotline.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Lotline configuration, loaded from lotline.yaml.
type Config struct {
	Dealer    string          `yaml:"dealer"`
	Database  DatabaseConfig  `yaml:"database"`
	Inventory InventoryConfig `yaml:"inventory"`
	Leads     LeadsConfig     `yaml:"leads"`
	Server    ServerConfig    `yaml:"server"`
	Sweep     SweepConfig     `yaml:"sweep"`
	Notify    NotifyConfig    `yaml:"notify"`
	Analytics AnalyticsConfig `yaml:"analytics"`
}

// DatabaseConfig selects and parameterizes the storage engine.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite or mysql
	Path   string `yaml:"path"`   // sqlite only
	Host   string `yaml:"host"`   // mysql only
	Port   int    `yaml:"port"`   // mysql only
	Name   string `yaml:"name"`   // mysql only
	User   string `yaml:"user"`   // mysql only
}

// InventoryConfig holds listing lifecycle settings.
type InventoryConfig struct {
	TTLDays int `yaml:"ttl_days"`
}

// LeadsConfig holds lead scoring settings.
type LeadsConfig struct {
	ScoringWindowDays int `yaml:"scoring_window_days"`
}

// ServerConfig holds dashboard API settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// SweepConfig schedules the TTL expiry sweep.
type SweepConfig struct {
	Cron string `yaml:"cron"` // 5-field cron expression
}

// NotifyConfig wires escalation subscribers. A subscriber is enabled
// when its token is non-empty.
type NotifyConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
}

// SlackConfig holds Slack escalation delivery settings.
type SlackConfig struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

// DiscordConfig holds Discord escalation delivery settings.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// AnalyticsConfig holds reporting thresholds.
type AnalyticsConfig struct {
	MinDaysOnLot       int     `yaml:"min_days_on_lot"`
	StaleDaysThreshold int     `yaml:"stale_days_threshold"`
	OverpricedPct      float64 `yaml:"overpriced_pct"`
	UnderpricedPct     float64 `yaml:"underpriced_pct"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is present: a
// local SQLite engine with stock thresholds.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "lotline.db"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Name == "" {
		c.Database.Name = "lotline"
	}
	if c.Database.User == "" {
		c.Database.User = "root"
	}
	if c.Inventory.TTLDays == 0 {
		c.Inventory.TTLDays = 7
	}
	if c.Leads.ScoringWindowDays == 0 {
		c.Leads.ScoringWindowDays = 30
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Sweep.Cron == "" {
		c.Sweep.Cron = "15 * * * *"
	}
	if c.Analytics.MinDaysOnLot == 0 {
		c.Analytics.MinDaysOnLot = 30
	}
	if c.Analytics.StaleDaysThreshold == 0 {
		c.Analytics.StaleDaysThreshold = 45
	}
	if c.Analytics.OverpricedPct == 0 {
		c.Analytics.OverpricedPct = 5.0
	}
	if c.Analytics.UnderpricedPct == 0 {
		c.Analytics.UnderpricedPct = -5.0
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not sqlite or mysql", c.Database.Driver))
	}
	if c.Inventory.TTLDays < 0 {
		errs = append(errs, "inventory.ttl_days must not be negative")
	}
	if c.Leads.ScoringWindowDays < 0 {
		errs = append(errs, "leads.scoring_window_days must not be negative")
	}
	if c.Analytics.UnderpricedPct > 0 {
		errs = append(errs, "analytics.underpriced_pct must not be positive")
	}
	if c.Notify.Slack.Token != "" && c.Notify.Slack.Channel == "" {
		errs = append(errs, "notify.slack.channel is required when a token is set")
	}
	if c.Notify.Discord.BotToken != "" && c.Notify.Discord.ChannelID == "" {
		errs = append(errs, "notify.discord.channel_id is required when a bot token is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
