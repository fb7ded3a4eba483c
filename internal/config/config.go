// Package config provides configuration management using Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. GROUPGUARD_OWNER_ID.
const EnvPrefix = "GROUPGUARD"

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// defaultDataDir returns the directory holding the database and restart marker.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".groupguard")
}

// Config holds all configuration for the bot.
type Config struct {
	// Credentials
	TelegramToken string `mapstructure:"telegram_token"`
	OwnerID       int64  `mapstructure:"owner_id"`

	// Paths
	DataDir           string `mapstructure:"data_dir"`
	StorePath         string `mapstructure:"store_path"`
	RestartMarkerPath string `mapstructure:"restart_marker_path"`
	LegacyImport      bool   `mapstructure:"legacy_import"`

	// Polling & Reconnection
	PollTimeout        time.Duration `mapstructure:"poll_timeout"`
	ReconnectBaseDelay time.Duration `mapstructure:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `mapstructure:"reconnect_max_delay"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// Metrics
	MetricsEnabled bool `mapstructure:"metrics_enabled"`
	MetricsPort    int  `mapstructure:"metrics_port"`

	// Presence
	RedisURL          string `mapstructure:"redis_url"`
	UsernameCacheSize int    `mapstructure:"username_cache_size"`

	// Moderation defaults, overridden at runtime by persisted settings
	WarnLimit  int    `mapstructure:"warn_limit"`
	WarnAction string `mapstructure:"warn_action"`
	ModLogChat int64  `mapstructure:"mod_log_chat"`

	// Jobs
	VerifyAt      string  `mapstructure:"verify_at"`
	BroadcastRate float64 `mapstructure:"broadcast_rate"`
	PurgeMax      int     `mapstructure:"purge_max"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	dataDir := defaultDataDir()
	return &Config{
		DataDir:            dataDir,
		StorePath:          filepath.Join(dataDir, "groupguard.db"),
		RestartMarkerPath:  filepath.Join(dataDir, "restart.flag"),
		PollTimeout:        60 * time.Second,
		ReconnectBaseDelay: 1 * time.Second,
		ReconnectMaxDelay:  5 * time.Minute,
		LogLevel:           "info",
		LogFormat:          "json",
		MetricsEnabled:     true,
		MetricsPort:        9090,
		UsernameCacheSize:  4096,
		WarnLimit:          3,
		WarnAction:         "mute",
		VerifyAt:           "03:00",
		BroadcastRate:      20,
		PurgeMax:           1000,
	}
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// LoadConfig loads configuration from file, environment, and defaults.
// Priority: Environment > Config file > Defaults
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("telegram_token", "")
	v.SetDefault("owner_id", int64(0))
	v.SetDefault("data_dir", defaults.DataDir)
	v.SetDefault("store_path", defaults.StorePath)
	v.SetDefault("restart_marker_path", defaults.RestartMarkerPath)
	v.SetDefault("legacy_import", defaults.LegacyImport)
	v.SetDefault("poll_timeout", defaults.PollTimeout)
	v.SetDefault("reconnect_base_delay", defaults.ReconnectBaseDelay)
	v.SetDefault("reconnect_max_delay", defaults.ReconnectMaxDelay)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("log_format", defaults.LogFormat)
	v.SetDefault("metrics_enabled", defaults.MetricsEnabled)
	v.SetDefault("metrics_port", defaults.MetricsPort)
	v.SetDefault("redis_url", defaults.RedisURL)
	v.SetDefault("username_cache_size", defaults.UsernameCacheSize)
	v.SetDefault("warn_limit", defaults.WarnLimit)
	v.SetDefault("warn_action", defaults.WarnAction)
	v.SetDefault("mod_log_chat", defaults.ModLogChat)
	v.SetDefault("verify_at", defaults.VerifyAt)
	v.SetDefault("broadcast_rate", defaults.BroadcastRate)
	v.SetDefault("purge_max", defaults.PurgeMax)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			isNotFound := errors.Is(err, os.ErrNotExist)
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !isNotFound {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("telegram token is required (set %s_TELEGRAM_TOKEN)", EnvPrefix)
	}
	if c.OwnerID == 0 {
		return fmt.Errorf("owner id is required (set %s_OWNER_ID)", EnvPrefix)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.LogFormat)
	}

	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d (must be 0-65535)", c.MetricsPort)
	}

	if c.PollTimeout <= 0 {
		return fmt.Errorf("poll timeout must be positive")
	}

	if c.ReconnectBaseDelay <= 0 {
		return fmt.Errorf("reconnect base delay must be positive")
	}

	if c.ReconnectMaxDelay <= 0 {
		return fmt.Errorf("reconnect max delay must be positive")
	}

	if c.ReconnectBaseDelay > c.ReconnectMaxDelay {
		return fmt.Errorf("reconnect base delay must be less than or equal to max delay")
	}

	if c.WarnLimit < 1 {
		return fmt.Errorf("warn limit must be at least 1")
	}

	switch c.WarnAction {
	case "mute", "kick", "ban":
	default:
		return fmt.Errorf("invalid warn action: %s (must be mute, kick, or ban)", c.WarnAction)
	}

	if !clockPattern.MatchString(c.VerifyAt) {
		return fmt.Errorf("invalid verify_at: %q (must be HH:MM)", c.VerifyAt)
	}

	if c.BroadcastRate <= 0 {
		return fmt.Errorf("broadcast rate must be positive")
	}

	if c.PurgeMax < 1 {
		return fmt.Errorf("purge max must be at least 1")
	}

	if c.UsernameCacheSize < 1 {
		return fmt.Errorf("username cache size must be at least 1")
	}

	return nil
}
