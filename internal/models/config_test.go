package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_DecodesFileLayout(t *testing.T) {
	raw := `{
		"server": {"port": 5000, "authRateLimit": 5},
		"database": {"path": "./chitchat.db", "encryptContent": true},
		"scheduler": {"intervalSec": 10, "maxAttempts": 3},
		"fanout": {"redisUrl": "redis://localhost:6379/0"},
		"features": {"translation": false},
		"log_level": "debug"
	}`

	var cfg Config
	require.NoError(t, json.Unmarshal([]byte(raw), &cfg))
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Server.AuthRateLimit)
	assert.True(t, cfg.Database.EncryptContent)
	assert.Equal(t, 3, cfg.Scheduler.MaxAttempts)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Fanout.RedisURL)
	assert.Equal(t, map[string]bool{"translation": false}, cfg.Features)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestConfigError_SurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("load config: %w", ConfigError{Message: "missing database path"})

	var cfgErr ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "missing database path", cfgErr.Error())
}
