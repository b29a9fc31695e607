package config

import (
	"os"
	"path/filepath"
	"testing"

	"chitchat/internal/constants"
	"chitchat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `{"database": {"path": "/var/lib/chitchat/chitchat.db"}}`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// clearEnv unsets every override for the duration of the test so the host
// environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"ENV", "DB_PATH", "PORT", "JWT_SECRET", "REDIS_URL", "TRANSLATION_API_KEY", "LOG_LEVEL"} {
		name := EnvPrefix + "_" + key
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, constants.DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, constants.DefaultAuthRateLimit, cfg.Server.AuthRateLimit)
	assert.Equal(t, constants.DefaultAuthRateWindowSec, cfg.Server.AuthRateWindowSec)
	assert.Equal(t, constants.DefaultReconcileIntervalSec, cfg.Scheduler.IntervalSec)
	assert.Equal(t, constants.DefaultReconcileWarmupSec, cfg.Scheduler.WarmupDelaySec)
	assert.Equal(t, constants.DefaultReconcileItemTimeout, cfg.Scheduler.ItemTimeoutSec)
	assert.Equal(t, 0, cfg.Scheduler.MaxAttempts)
	assert.Equal(t, constants.DefaultSendBufferSize, cfg.Fanout.SendBufferSize)
	assert.Equal(t, constants.DefaultRedisChannel, cfg.Fanout.RedisChannel)
	assert.Equal(t, constants.DefaultTokenTTLHours, cfg.Auth.TokenTTLHours)
	assert.Equal(t, constants.DefaultBreakerFailures, cfg.Translation.BreakerFailures)
	assert.Equal(t, constants.DefaultMaxAttempts, cfg.Retry.MaxAttempts)
	assert.Equal(t, "chitchat", cfg.Tracing.ServiceName)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRate)
}

func TestLoadConfig_FileValuesKept(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig(writeConfig(t, `{
		"server": {"port": 8080},
		"database": {"path": "/data/chat.db", "encryptContent": true},
		"scheduler": {"intervalSec": 2, "maxAttempts": 7},
		"features": {"translation": false},
		"log_level": "warn"
	}`))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Database.EncryptContent)
	assert.Equal(t, 2, cfg.Scheduler.IntervalSec)
	assert.Equal(t, 7, cfg.Scheduler.MaxAttempts)
	assert.Equal(t, map[string]bool{"translation": false}, cfg.Features)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHITCHAT_DB_PATH", "/override/chat.db")
	t.Setenv("CHITCHAT_PORT", "9090")
	t.Setenv("CHITCHAT_JWT_SECRET", "from-env")
	t.Setenv("CHITCHAT_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("CHITCHAT_TRANSLATION_API_KEY", "api-key")
	t.Setenv("CHITCHAT_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(writeConfig(t, `{"database": {}}`))
	require.NoError(t, err)

	assert.Equal(t, "/override/chat.db", cfg.Database.Path)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Fanout.RedisURL)
	assert.Equal(t, "api-key", cfg.Translation.APIKey)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
		errMsg  string
	}{
		{name: "missing db path", content: `{}`, errMsg: "missing database path"},
		{name: "malformed json", content: `{"database":`, errMsg: "failed to parse config"},
		{name: "bad log level", content: `{"database": {"path": "x.db"}, "log_level": "loud"}`, errMsg: "invalid log level"},
		{name: "port out of range", content: `{"database": {"path": "x.db"}, "server": {"port": 70000}}`, errMsg: "server port out of range"},
		{name: "negative attempts", content: `{"database": {"path": "x.db"}, "scheduler": {"maxAttempts": -1}}`, errMsg: "maxAttempts cannot be negative"},
		{name: "unparseable env port", content: minimalConfig, env: map[string]string{"CHITCHAT_PORT": "eighty"}, errMsg: "environment overrides"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadConfig_InvalidPath(t *testing.T) {
	_, err := LoadConfig("../../etc/passwd")
	assert.ErrorContains(t, err, "invalid config path")

	_, err = LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoadConfig_ProductionSecrets(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		level   string
		wantErr string
	}{
		{name: "missing secret", wantErr: "JWT secret is required"},
		{name: "short secret", secret: "too-short", wantErr: "at least 32 characters"},
		{name: "debug logging", secret: "0123456789abcdef0123456789abcdef", level: "debug", wantErr: "debug logging"},
		{name: "valid", secret: "0123456789abcdef0123456789abcdef", level: "info"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("CHITCHAT_ENV", "production")
			t.Setenv("CHITCHAT_JWT_SECRET", tt.secret)
			t.Setenv("CHITCHAT_LOG_LEVEL", tt.level)

			_, err := LoadConfig(writeConfig(t, minimalConfig))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
			var cfgErr models.ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}
