package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.TelegramToken = "123:abc"
	cfg.OwnerID = 42
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, ".groupguard"), cfg.DataDir)
	assert.Equal(t, filepath.Join(home, ".groupguard", "groupguard.db"), cfg.StorePath)
	assert.Equal(t, filepath.Join(home, ".groupguard", "restart.flag"), cfg.RestartMarkerPath)
	assert.Equal(t, 60*time.Second, cfg.PollTimeout)
	assert.Equal(t, 1*time.Second, cfg.ReconnectBaseDelay)
	assert.Equal(t, 5*time.Minute, cfg.ReconnectMaxDelay)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.True(t, cfg.MetricsEnabled)
	assert.Equal(t, 9090, cfg.MetricsPort)
	assert.Equal(t, 3, cfg.WarnLimit)
	assert.Equal(t, "mute", cfg.WarnAction)
	assert.Equal(t, "03:00", cfg.VerifyAt)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoadConfig_FromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
telegram_token: "999:xyz"
owner_id: 777
store_path: /custom/bot.db
poll_timeout: 30s
reconnect_base_delay: 2s
reconnect_max_delay: 10m
log_level: debug
log_format: text
metrics_enabled: false
metrics_port: 8080
warn_limit: 5
warn_action: ban
mod_log_chat: -100123
verify_at: "04:30"
redis_url: redis://localhost:6379/0
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "999:xyz", cfg.TelegramToken)
	assert.Equal(t, int64(777), cfg.OwnerID)
	assert.Equal(t, "/custom/bot.db", cfg.StorePath)
	assert.Equal(t, 30*time.Second, cfg.PollTimeout)
	assert.Equal(t, 2*time.Second, cfg.ReconnectBaseDelay)
	assert.Equal(t, 10*time.Minute, cfg.ReconnectMaxDelay)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.False(t, cfg.MetricsEnabled)
	assert.Equal(t, 8080, cfg.MetricsPort)
	assert.Equal(t, 5, cfg.WarnLimit)
	assert.Equal(t, "ban", cfg.WarnAction)
	assert.Equal(t, int64(-100123), cfg.ModLogChat)
	assert.Equal(t, "04:30", cfg.VerifyAt)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
log_level: info
metrics_port: 9090
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	t.Setenv("GROUPGUARD_LOG_LEVEL", "debug")
	t.Setenv("GROUPGUARD_METRICS_PORT", "8888")
	t.Setenv("GROUPGUARD_OWNER_ID", "12345")

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 8888, cfg.MetricsPort)
	assert.Equal(t, int64(12345), cfg.OwnerID)
}

func TestLoadConfig_NoFile(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, ".groupguard", "groupguard.db"), cfg.StorePath)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadDotEnv(t *testing.T) {
	tmpDir := t.TempDir()
	envPath := filepath.Join(tmpDir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("GROUPGUARD_TELEGRAM_TOKEN=from-dotenv\n"), 0600))
	t.Cleanup(func() { os.Unsetenv("GROUPGUARD_TELEGRAM_TOKEN") })

	require.NoError(t, LoadDotEnv(envPath))

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.TelegramToken)
}

func TestLoadDotEnv_Missing(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
	assert.NoError(t, LoadDotEnv(""))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "missing token",
			modify: func(c *Config) {
				c.TelegramToken = ""
			},
			wantErr: true,
		},
		{
			name: "missing owner",
			modify: func(c *Config) {
				c.OwnerID = 0
			},
			wantErr: true,
		},
		{
			name: "invalid log level",
			modify: func(c *Config) {
				c.LogLevel = "invalid"
			},
			wantErr: true,
		},
		{
			name: "invalid metrics port",
			modify: func(c *Config) {
				c.MetricsPort = -1
			},
			wantErr: true,
		},
		{
			name: "zero warn limit",
			modify: func(c *Config) {
				c.WarnLimit = 0
			},
			wantErr: true,
		},
		{
			name: "unknown warn action",
			modify: func(c *Config) {
				c.WarnAction = "shame"
			},
			wantErr: true,
		},
		{
			name: "bad verify time",
			modify: func(c *Config) {
				c.VerifyAt = "25:00"
			},
			wantErr: true,
		},
		{
			name: "base delay above max",
			modify: func(c *Config) {
				c.ReconnectBaseDelay = time.Hour
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
