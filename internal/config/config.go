// Package config loads YAML configuration with environment overrides and
// defaults, validating everything before a run starts.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"sectorbot/internal/model"
)

// Config holds all application configuration.
type Config struct {
	Mode        string `yaml:"mode"`         // rotation|parent_based|weighted_rotation|auto
	AccountSize string `yaml:"account_size"` // small|large
	Benchmark   string `yaml:"benchmark"`
	VIXSymbol   string `yaml:"vix_symbol"`

	Strategy struct {
		SBIEntryThreshold    int     `yaml:"sbi_entry_threshold"`
		RotationRSIThreshold float64 `yaml:"rotation_rsi_threshold"`
		FillPolicy           string  `yaml:"fill_policy"` // same_close|next_open
		DurationSource       string  `yaml:"duration_source"`
		InitialEquity        float64 `yaml:"initial_equity"`
		RiskFreeRate         float64 `yaml:"risk_free_rate"`
		StateFile            string  `yaml:"state_file"`
	} `yaml:"strategy"`

	// Sectors maps each parent instrument to its child tickers.
	Sectors map[string][]string `yaml:"sectors"`
	// Categories maps tickers to volatility categories.
	Categories map[string]string `yaml:"categories"`

	DataSource struct {
		Proxy   string `yaml:"proxy"`
		Workers int    `yaml:"workers"`
	} `yaml:"data_source"`
	Schedule struct {
		DailyCron string `yaml:"daily_cron"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file yields pure defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("SECTORBOT_MODE"); v != "" {
		cfg.Mode = v
	}
	if v := os.Getenv("SECTORBOT_ACCOUNT_SIZE"); v != "" {
		cfg.AccountSize = v
	}
	if v := os.Getenv("SECTORBOT_FILL_POLICY"); v != "" {
		cfg.Strategy.FillPolicy = v
	}
	if v := os.Getenv("SECTORBOT_INITIAL_EQUITY"); v != "" {
		if eq, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Strategy.InitialEquity = eq
		}
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.DataSource.Proxy = v
	}
	if v := os.Getenv("CRON_DAILY"); v != "" {
		cfg.Schedule.DailyCron = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}

	// Defaults
	if cfg.Mode == "" {
		cfg.Mode = "auto"
	}
	if cfg.AccountSize == "" {
		cfg.AccountSize = "small"
	}
	if cfg.Benchmark == "" {
		cfg.Benchmark = "SPY"
	}
	if cfg.VIXSymbol == "" {
		cfg.VIXSymbol = "VIX"
	}
	if cfg.Strategy.SBIEntryThreshold == 0 {
		cfg.Strategy.SBIEntryThreshold = 9
	}
	if cfg.Strategy.RotationRSIThreshold == 0 {
		cfg.Strategy.RotationRSIThreshold = 40
	}
	if cfg.Strategy.FillPolicy == "" {
		cfg.Strategy.FillPolicy = "same_close"
	}
	if cfg.Strategy.DurationSource == "" {
		cfg.Strategy.DurationSource = "child"
	}
	if cfg.Strategy.InitialEquity == 0 {
		cfg.Strategy.InitialEquity = 100_000
	}
	if cfg.Strategy.StateFile == "" {
		cfg.Strategy.StateFile = "data/session_state.json"
	}
	if cfg.DataSource.Workers == 0 {
		cfg.DataSource.Workers = 4
	}
	if cfg.Schedule.DailyCron == "" {
		cfg.Schedule.DailyCron = "0 30 16 * * 1-5"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/sectorbot.db"
	}

	return cfg, nil
}

// Validate rejects unknown enum values and inconsistent limits before any
// period is processed.
func (c *Config) Validate() error {
	if _, err := model.ParseMode(c.Mode); err != nil {
		return err
	}
	switch c.AccountSize {
	case "small", "large":
	default:
		return fmt.Errorf("%w: account_size must be small or large, got %q", model.ErrInvalidConfiguration, c.AccountSize)
	}
	switch c.Strategy.FillPolicy {
	case "same_close", "next_open":
	default:
		return fmt.Errorf("%w: fill_policy must be same_close or next_open, got %q", model.ErrInvalidConfiguration, c.Strategy.FillPolicy)
	}
	switch c.Strategy.DurationSource {
	case "child", "parent":
	default:
		return fmt.Errorf("%w: duration_source must be child or parent, got %q", model.ErrInvalidConfiguration, c.Strategy.DurationSource)
	}
	if c.Strategy.SBIEntryThreshold < 1 || c.Strategy.SBIEntryThreshold > 10 {
		return fmt.Errorf("%w: sbi_entry_threshold %d outside [1,10]", model.ErrInvalidConfiguration, c.Strategy.SBIEntryThreshold)
	}
	if c.Strategy.InitialEquity <= 0 {
		return fmt.Errorf("%w: initial_equity must be positive", model.ErrInvalidConfiguration)
	}
	if len(c.Sectors) == 0 {
		return fmt.Errorf("%w: at least one sector is required", model.ErrInvalidConfiguration)
	}
	for parent, children := range c.Sectors {
		if parent == "" {
			return fmt.Errorf("%w: empty sector parent symbol", model.ErrInvalidConfiguration)
		}
		if len(children) == 0 {
			return fmt.Errorf("%w: sector %s has no children", model.ErrInvalidConfiguration, parent)
		}
	}
	if _, err := c.CategoryMap(); err != nil {
		return err
	}
	return nil
}

// CategoryMap converts the raw category strings into the typed map.
func (c *Config) CategoryMap() (model.CategoryMap, error) {
	out := make(model.CategoryMap, len(c.Categories))
	for ticker, raw := range c.Categories {
		cat, err := model.ParseCategory(raw)
		if err != nil {
			return nil, fmt.Errorf("ticker %s: %w", ticker, err)
		}
		out[ticker] = cat
	}
	return out, nil
}
