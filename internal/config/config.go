// Package config loads and validates application configuration via viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Terminal   TerminalConfig   `mapstructure:"terminal"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	Alerts     AlertsConfig     `mapstructure:"alerts"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Levels     LevelsConfig     `mapstructure:"levels"`
	Profit     ProfitConfig     `mapstructure:"profit"`
	Volatility VolatilityConfig `mapstructure:"volatility"`
	Summary    SummaryConfig    `mapstructure:"summary"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// TerminalConfig holds the trading-terminal bridge connection settings.
type TerminalConfig struct {
	BridgeURL      string        `mapstructure:"bridge_url"`
	Login          int64         `mapstructure:"login"`
	Password       string        `mapstructure:"password"`
	Server         string        `mapstructure:"server"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// MonitorConfig holds polling behavior configuration.
type MonitorConfig struct {
	PollInterval        time.Duration `mapstructure:"poll_interval"`
	Symbols             []string      `mapstructure:"symbols"`
	TradeAlerts         bool          `mapstructure:"trade_alerts"`
	OrderAlerts         bool          `mapstructure:"order_alerts"`
	PriceAlerts         bool          `mapstructure:"price_alerts"`
	PendingProximity    bool          `mapstructure:"pending_proximity"`
	PendingProximityPct float64       `mapstructure:"pending_proximity_pct"`
}

// AlertsConfig holds the alert gate settings: rate limiting, batching,
// quiet hours, and one-shot state durability.
type AlertsConfig struct {
	RateLimitEnabled bool          `mapstructure:"rate_limit_enabled"`
	MaxPerMinute     int           `mapstructure:"max_per_minute"`
	MaxPerHour       int           `mapstructure:"max_per_hour"`
	BatchEnabled     bool          `mapstructure:"batch_enabled"`
	BatchWindow      time.Duration `mapstructure:"batch_window"`
	MaxBatchSize     int           `mapstructure:"max_batch_size"`
	QuietEnabled     bool          `mapstructure:"quiet_enabled"`
	QuietStart       string        `mapstructure:"quiet_start"`
	QuietEnd         string        `mapstructure:"quiet_end"`
	DurableState     bool          `mapstructure:"durable_state"`
}

// RiskConfig holds the risk evaluator thresholds.
type RiskConfig struct {
	Enabled              bool          `mapstructure:"enabled"`
	CheckInterval        time.Duration `mapstructure:"check_interval"`
	MarginLevelWarning   float64       `mapstructure:"margin_level_warning"`
	MarginLevelCritical  float64       `mapstructure:"margin_level_critical"`
	MaxPositionSizePct   float64       `mapstructure:"max_position_size_pct"`
	DailyLossLimitPct    float64       `mapstructure:"daily_loss_limit_pct"`
	DailyLossLimitAmount float64       `mapstructure:"daily_loss_limit_amount"`
	DrawdownLimitPct     float64       `mapstructure:"drawdown_limit_pct"`
}

// LevelsConfig holds the price-level document location and the
// auto-detection settings for dynamic support/resistance levels.
type LevelsConfig struct {
	File            string        `mapstructure:"file"`
	AutoDetect      bool          `mapstructure:"auto_detect"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	Timeframe       string        `mapstructure:"timeframe"`
	BarCount        int           `mapstructure:"bar_count"`
}

// ProfitConfig holds the profit-taking suggestion thresholds.
type ProfitConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Interval     time.Duration `mapstructure:"interval"`
	MinProfit    float64       `mapstructure:"min_profit"`
	PctThreshold float64       `mapstructure:"pct_threshold"`
}

// VolatilityConfig holds the volatility-aware sizing settings.
type VolatilityConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Interval        time.Duration `mapstructure:"interval"`
	Periods         int           `mapstructure:"periods"`
	RiskPerTradePct float64       `mapstructure:"risk_per_trade_pct"`
	StopLossPips    float64       `mapstructure:"stop_loss_pips"`
}

// SummaryConfig holds the daily summary schedule.
type SummaryConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Hour    int  `mapstructure:"hour"`
	Minute  int  `mapstructure:"minute"`
}

// NotifyConfig holds the notification channel settings.
type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Discord  DiscordConfig  `mapstructure:"discord"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// DiscordConfig holds Discord webhook notification configuration.
type DiscordConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url"`
}

// WebhookConfig holds generic webhook notification configuration.
type WebhookConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	URL        string `mapstructure:"url"`
	AuthHeader string `mapstructure:"auth_header"`
}

// StorageConfig holds persistence configuration.
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	setDefaults(v)

	v.SetEnvPrefix("TRADEWATCH")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Terminal defaults
	v.SetDefault("terminal.bridge_url", "http://127.0.0.1:6542")
	v.SetDefault("terminal.timeout", "10s")
	v.SetDefault("terminal.max_retries", 3)
	v.SetDefault("terminal.retry_delay_base", "1s")

	// Monitor defaults
	v.SetDefault("monitor.poll_interval", "5s")
	v.SetDefault("monitor.trade_alerts", true)
	v.SetDefault("monitor.order_alerts", true)
	v.SetDefault("monitor.price_alerts", true)
	v.SetDefault("monitor.pending_proximity", true)
	v.SetDefault("monitor.pending_proximity_pct", 1.0)

	// Alert gate defaults
	v.SetDefault("alerts.rate_limit_enabled", true)
	v.SetDefault("alerts.max_per_minute", 10)
	v.SetDefault("alerts.max_per_hour", 100)
	v.SetDefault("alerts.batch_enabled", true)
	v.SetDefault("alerts.batch_window", "30s")
	v.SetDefault("alerts.max_batch_size", 10)
	v.SetDefault("alerts.quiet_enabled", false)
	v.SetDefault("alerts.quiet_start", "22:00")
	v.SetDefault("alerts.quiet_end", "08:00")
	v.SetDefault("alerts.durable_state", false)

	// Risk defaults
	v.SetDefault("risk.enabled", true)
	v.SetDefault("risk.check_interval", "30s")
	v.SetDefault("risk.margin_level_warning", 150.0)
	v.SetDefault("risk.margin_level_critical", 100.0)
	v.SetDefault("risk.max_position_size_pct", 20.0)
	v.SetDefault("risk.daily_loss_limit_pct", 5.0)
	v.SetDefault("risk.daily_loss_limit_amount", 0.0) // 0 = disabled
	v.SetDefault("risk.drawdown_limit_pct", 10.0)

	// Level defaults
	v.SetDefault("levels.file", "price_levels.yaml")
	v.SetDefault("levels.auto_detect", false)
	v.SetDefault("levels.refresh_interval", "1h")
	v.SetDefault("levels.timeframe", "1h")
	v.SetDefault("levels.bar_count", 100)

	// Profit suggestion defaults
	v.SetDefault("profit.enabled", true)
	v.SetDefault("profit.interval", "1m")
	v.SetDefault("profit.min_profit", 10.0)
	v.SetDefault("profit.pct_threshold", 5.0)

	// Volatility defaults
	v.SetDefault("volatility.enabled", false)
	v.SetDefault("volatility.interval", "5m")
	v.SetDefault("volatility.periods", 20)
	v.SetDefault("volatility.risk_per_trade_pct", 2.0)
	v.SetDefault("volatility.stop_loss_pips", 50.0)

	// Summary defaults
	v.SetDefault("summary.enabled", true)
	v.SetDefault("summary.hour", 23)
	v.SetDefault("summary.minute", 0)

	// Notify defaults
	v.SetDefault("notify.telegram.enabled", false)
	v.SetDefault("notify.telegram.max_retries", 3)
	v.SetDefault("notify.telegram.retry_delay_base", "1s")
	v.SetDefault("notify.discord.enabled", false)
	v.SetDefault("notify.webhook.enabled", false)

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/tradewatch.db")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Terminal config
	if c.Terminal.BridgeURL == "" {
		return fmt.Errorf("terminal.bridge_url is required")
	}
	if c.Terminal.Login == 0 {
		return fmt.Errorf("terminal.login is required")
	}
	if c.Terminal.Timeout <= 0 {
		return fmt.Errorf("terminal.timeout must be positive")
	}

	// Validate Monitor config
	if c.Monitor.PollInterval < time.Second {
		return fmt.Errorf("monitor.poll_interval must be at least 1 second")
	}
	if c.Monitor.PendingProximityPct < 0 {
		return fmt.Errorf("monitor.pending_proximity_pct must not be negative")
	}

	// Validate Alert gate config
	if c.Alerts.MaxPerMinute < 1 {
		return fmt.Errorf("alerts.max_per_minute must be at least 1")
	}
	if c.Alerts.MaxPerHour < c.Alerts.MaxPerMinute {
		return fmt.Errorf("alerts.max_per_hour must be >= alerts.max_per_minute")
	}
	if c.Alerts.BatchWindow < time.Second {
		return fmt.Errorf("alerts.batch_window must be at least 1 second")
	}
	if c.Alerts.MaxBatchSize < 1 {
		return fmt.Errorf("alerts.max_batch_size must be at least 1")
	}
	for _, clock := range []string{c.Alerts.QuietStart, c.Alerts.QuietEnd} {
		if _, err := time.Parse("15:04", clock); err != nil {
			return fmt.Errorf("alerts quiet hours must be HH:MM, got %q", clock)
		}
	}

	// Validate Risk config
	if c.Risk.Enabled {
		if c.Risk.MarginLevelCritical > c.Risk.MarginLevelWarning {
			return fmt.Errorf("risk.margin_level_critical must be <= risk.margin_level_warning")
		}
		if c.Risk.MaxPositionSizePct <= 0 {
			return fmt.Errorf("risk.max_position_size_pct must be positive")
		}
		if c.Risk.DrawdownLimitPct <= 0 {
			return fmt.Errorf("risk.drawdown_limit_pct must be positive")
		}
	}

	// Validate Level config
	if c.Levels.File == "" {
		return fmt.Errorf("levels.file is required")
	}
	if c.Levels.AutoDetect && c.Levels.BarCount < 20 {
		return fmt.Errorf("levels.bar_count must be at least 20 when auto_detect is on")
	}

	// Validate Summary config
	if c.Summary.Hour < 0 || c.Summary.Hour > 23 {
		return fmt.Errorf("summary.hour must be between 0 and 23")
	}
	if c.Summary.Minute < 0 || c.Summary.Minute > 59 {
		return fmt.Errorf("summary.minute must be between 0 and 59")
	}

	// Validate Notify config
	if c.Notify.Telegram.Enabled {
		if c.Notify.Telegram.BotToken == "" {
			return fmt.Errorf("notify.telegram.bot_token is required when telegram is enabled")
		}
		if c.Notify.Telegram.ChatID == "" {
			return fmt.Errorf("notify.telegram.chat_id is required when telegram is enabled")
		}
	}
	if c.Notify.Discord.Enabled && c.Notify.Discord.WebhookURL == "" {
		return fmt.Errorf("notify.discord.webhook_url is required when discord is enabled")
	}
	if c.Notify.Webhook.Enabled && c.Notify.Webhook.URL == "" {
		return fmt.Errorf("notify.webhook.url is required when webhook is enabled")
	}
	if !c.Notify.Telegram.Enabled && !c.Notify.Discord.Enabled && !c.Notify.Webhook.Enabled {
		return fmt.Errorf("at least one notification channel must be enabled")
	}

	// Validate Storage config
	if c.Alerts.DurableState && c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required when alerts.durable_state is on")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, console")
	}

	return nil
}
