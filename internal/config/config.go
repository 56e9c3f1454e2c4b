package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Scan struct {
		Concurrency    int           `yaml:"concurrency"`
		Pacing         time.Duration `yaml:"pacing"`
		ThresholdRatio float64       `yaml:"threshold_ratio"`
		MinHistory     int           `yaml:"min_history"`
		ETAEvery       int           `yaml:"eta_every"`
		FetchTimeout   time.Duration `yaml:"fetch_timeout"`
		RunOnStart     bool          `yaml:"run_on_start"`
	} `yaml:"scan"`
	Source struct {
		Kind         string `yaml:"kind"` // yahoo, rest or mock
		BaseURL      string `yaml:"base_url"`
		APIKey       string `yaml:"api_key"`
		HistoryRange string `yaml:"history_range"`
		Bars         int    `yaml:"bars"`
		Breaker      struct {
			ConsecutiveFailures uint32        `yaml:"consecutive_failures"`
			OpenTimeout         time.Duration `yaml:"open_timeout"`
			HalfOpenRequests    uint32        `yaml:"half_open_requests"`
		} `yaml:"breaker"`
	} `yaml:"source"`
	Directory struct {
		NSEURL          string        `yaml:"nse_url"`
		BSEURL          string        `yaml:"bse_url"`
		File            string        `yaml:"file"`
		CacheFile       string        `yaml:"cache_file"`
		CacheMaxAge     time.Duration `yaml:"cache_max_age"`
		Classes         []string      `yaml:"classes"`
		ExemptExchanges []string      `yaml:"exempt_exchanges"`
		Redis           struct {
			Addr     string        `yaml:"addr"`
			Password string        `yaml:"password"`
			DB       int           `yaml:"db"`
			Key      string        `yaml:"key"`
			TTL      time.Duration `yaml:"ttl"`
		} `yaml:"redis"`
	} `yaml:"directory"`
	Schedule struct {
		ScanCron string `yaml:"scan_cron"`
		Timezone string `yaml:"timezone"`
	} `yaml:"schedule"`
	Storage struct {
		ResultsFile string `yaml:"results_file"`
		Database    struct {
			Driver string `yaml:"driver"` // sqlite or postgres
			DSN    string `yaml:"dsn"`
		} `yaml:"database"`
	} `yaml:"storage"`
	Server struct {
		Addr         string        `yaml:"addr"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		IdleTimeout  time.Duration `yaml:"idle_timeout"`
	} `yaml:"server"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Logging struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		Output     string `yaml:"output"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"logging"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error.
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

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("SCAN_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SCAN_CONCURRENCY: %w", err)
		}
		c.Scan.Concurrency = n
	}
	if v := os.Getenv("ATH_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("ATH_THRESHOLD: %w", err)
		}
		c.Scan.ThresholdRatio = f
	}
	if v := os.Getenv("CRON_SCAN"); v != "" {
		c.Schedule.ScanCron = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Storage.Database.Driver = "sqlite"
		c.Storage.Database.DSN = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		c.Storage.Database.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Directory.Redis.Addr = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("RUN_ON_START"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("RUN_ON_START: %w", err)
		}
		c.Scan.RunOnStart = b
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Scan.Concurrency == 0 {
		c.Scan.Concurrency = 6
	}
	if c.Scan.Pacing == 0 {
		c.Scan.Pacing = 100 * time.Millisecond
	}
	if c.Scan.ThresholdRatio == 0 {
		c.Scan.ThresholdRatio = 0.98
	}
	if c.Scan.MinHistory == 0 {
		c.Scan.MinHistory = 20
	}
	if c.Scan.ETAEvery == 0 {
		c.Scan.ETAEvery = 100
	}
	if c.Scan.FetchTimeout == 0 {
		c.Scan.FetchTimeout = 20 * time.Second
	}

	if c.Source.Kind == "" {
		c.Source.Kind = "yahoo"
	}
	if c.Source.HistoryRange == "" {
		c.Source.HistoryRange = "10y"
	}
	if c.Source.Breaker.ConsecutiveFailures == 0 {
		c.Source.Breaker.ConsecutiveFailures = 20
	}
	if c.Source.Breaker.OpenTimeout == 0 {
		c.Source.Breaker.OpenTimeout = 30 * time.Second
	}
	if c.Source.Breaker.HalfOpenRequests == 0 {
		c.Source.Breaker.HalfOpenRequests = 1
	}

	if c.Directory.CacheFile == "" {
		c.Directory.CacheFile = "data/symbols_cache.json"
	}
	if c.Directory.CacheMaxAge == 0 {
		c.Directory.CacheMaxAge = 7 * 24 * time.Hour
	}
	if c.Directory.Redis.TTL == 0 {
		c.Directory.Redis.TTL = c.Directory.CacheMaxAge
	}

	if c.Schedule.ScanCron == "" {
		c.Schedule.ScanCron = "0 31 15 * * 1-5"
	}
	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = "Asia/Kolkata"
	}

	if c.Storage.ResultsFile == "" {
		c.Storage.ResultsFile = "data/ath_results.json"
	}
	if c.Storage.Database.Driver == "" {
		c.Storage.Database.Driver = "sqlite"
	}
	if c.Storage.Database.DSN == "" && c.Storage.Database.Driver == "sqlite" {
		c.Storage.Database.DSN = "data/athscan.db"
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "logs/ath_scanner.log"
	}
}

// Validate checks that the settings are usable. Telegram is optional but
// needs both fields when configured.
func (c *Config) Validate() error {
	if c.Scan.Concurrency < 1 || c.Scan.Concurrency > 64 {
		return fmt.Errorf("scan.concurrency must be between 1 and 64, got %d", c.Scan.Concurrency)
	}
	if c.Scan.ThresholdRatio <= 0 || c.Scan.ThresholdRatio > 1 {
		return fmt.Errorf("scan.threshold_ratio must be in (0, 1], got %v", c.Scan.ThresholdRatio)
	}
	if c.Scan.MinHistory < 1 {
		return fmt.Errorf("scan.min_history must be positive")
	}
	if c.Scan.Pacing < 0 || c.Scan.FetchTimeout < 0 {
		return fmt.Errorf("scan durations must not be negative")
	}
	switch c.Source.Kind {
	case "yahoo", "mock":
	case "rest":
		if c.Source.BaseURL == "" {
			return fmt.Errorf("source.base_url is required for the rest source")
		}
	default:
		return fmt.Errorf("unknown source.kind %q", c.Source.Kind)
	}
	switch c.Storage.Database.Driver {
	case "sqlite", "postgres", "none":
	default:
		return fmt.Errorf("unknown storage.database.driver %q", c.Storage.Database.Driver)
	}
	if c.Storage.Database.Driver == "postgres" && c.Storage.Database.DSN == "" {
		return fmt.Errorf("storage.database.dsn is required for postgres")
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("schedule.timezone: %w", err)
	}
	return nil
}

// TelegramEnabled reports whether a bot is configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// Location returns the configured time zone; Validate has already checked it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
