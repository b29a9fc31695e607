package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"chitchat/internal/constants"
	"chitchat/internal/models"
	"chitchat/internal/security"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

// EnvPrefix prefixes every environment override, e.g. CHITCHAT_DB_PATH.
const EnvPrefix = "CHITCHAT"

var (
	ErrMissingDBPath   = models.ConfigError{Message: "missing database path"}
	ErrInvalidLogLevel = models.ConfigError{Message: "invalid log level"}
)

// envOverrides are the settings that may come from the environment instead
// of the config file. Secrets belong here rather than in the file.
type envOverrides struct {
	Env               string `envconfig:"ENV"`
	DBPath            string `envconfig:"DB_PATH"`
	Port              int    `envconfig:"PORT"`
	JWTSecret         string `envconfig:"JWT_SECRET"`
	RedisURL          string `envconfig:"REDIS_URL"`
	TranslationAPIKey string `envconfig:"TRANSLATION_API_KEY"`
	LogLevel          string `envconfig:"LOG_LEVEL"`
}

func LoadConfig(path string) (*models.Config, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return nil, fmt.Errorf("failed to read environment overrides: %w", err)
	}
	applyEnvironmentOverrides(&config, env)

	if err := validate(&config); err != nil {
		return nil, err
	}
	if err := validateSecurity(&config, env.Env == "production"); err != nil {
		return nil, err
	}
	return &config, nil
}

func applyEnvironmentOverrides(c *models.Config, env envOverrides) {
	if env.DBPath != "" {
		c.Database.Path = env.DBPath
	}
	if env.Port != 0 {
		c.Server.Port = env.Port
	}
	if env.JWTSecret != "" {
		c.Auth.JWTSecret = env.JWTSecret
	}
	if env.RedisURL != "" {
		c.Fanout.RedisURL = env.RedisURL
	}
	if env.TranslationAPIKey != "" {
		c.Translation.APIKey = env.TranslationAPIKey
	}
	if env.LogLevel != "" {
		c.LogLevel = env.LogLevel
	}
}

// validate rejects unusable settings and fills in defaults for the rest.
func validate(c *models.Config) error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return ErrMissingDBPath
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return models.ConfigError{Message: fmt.Sprintf("%s: %q", ErrInvalidLogLevel.Message, c.LogLevel)}
	}

	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.Port > 65535 {
		return models.ConfigError{Message: fmt.Sprintf("server port out of range: %d", c.Server.Port)}
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}
	if c.Server.AuthRateLimit <= 0 {
		c.Server.AuthRateLimit = constants.DefaultAuthRateLimit
	}
	if c.Server.AuthRateWindowSec <= 0 {
		c.Server.AuthRateWindowSec = constants.DefaultAuthRateWindowSec
	}

	if c.Scheduler.IntervalSec <= 0 {
		c.Scheduler.IntervalSec = constants.DefaultReconcileIntervalSec
	}
	if c.Scheduler.WarmupDelaySec <= 0 {
		c.Scheduler.WarmupDelaySec = constants.DefaultReconcileWarmupSec
	}
	if c.Scheduler.ItemTimeoutSec <= 0 {
		c.Scheduler.ItemTimeoutSec = constants.DefaultReconcileItemTimeout
	}
	if c.Scheduler.MaxAttempts < 0 {
		return models.ConfigError{Message: "scheduler maxAttempts cannot be negative"}
	}
	if c.Scheduler.MonitorIntervalSec <= 0 {
		c.Scheduler.MonitorIntervalSec = constants.DefaultMonitorIntervalSec
	}

	if c.Fanout.SendBufferSize <= 0 {
		c.Fanout.SendBufferSize = constants.DefaultSendBufferSize
	}
	if c.Fanout.WriteTimeoutSec <= 0 {
		c.Fanout.WriteTimeoutSec = constants.DefaultWriteTimeoutSec
	}
	if c.Fanout.PingIntervalSec <= 0 {
		c.Fanout.PingIntervalSec = constants.DefaultPingIntervalSec
	}
	if c.Fanout.RedisChannel == "" {
		c.Fanout.RedisChannel = constants.DefaultRedisChannel
	}

	if c.Auth.TokenTTLHours <= 0 {
		c.Auth.TokenTTLHours = constants.DefaultTokenTTLHours
	}

	if c.Translation.TimeoutSec <= 0 {
		c.Translation.TimeoutSec = constants.DefaultTranslationTimeoutSec
	}
	if c.Translation.BreakerFailures <= 0 {
		c.Translation.BreakerFailures = constants.DefaultBreakerFailures
	}
	if c.Translation.BreakerTimeoutSec <= 0 {
		c.Translation.BreakerTimeoutSec = constants.DefaultBreakerTimeoutSec
	}

	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultMaxAttempts
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "chitchat"
	}
	if c.Tracing.SampleRate <= 0 || c.Tracing.SampleRate > 1 {
		c.Tracing.SampleRate = 1.0
	}
	return nil
}

// validateSecurity enforces secret requirements. Outside production a
// missing JWT secret is only warned about so local setups keep working.
func validateSecurity(c *models.Config, production bool) error {
	if production {
		if c.Auth.JWTSecret == "" {
			return models.ConfigError{Message: "JWT secret is required in production (set CHITCHAT_JWT_SECRET environment variable)"}
		}
		if len(c.Auth.JWTSecret) < 32 {
			return models.ConfigError{Message: "JWT secret must be at least 32 characters long"}
		}
		if c.LogLevel == "debug" || c.LogLevel == "trace" {
			return models.ConfigError{Message: "debug logging should not be used in production (security risk)"}
		}
		return nil
	}

	if c.Auth.JWTSecret == "" {
		fmt.Fprintf(os.Stderr, "WARNING: JWT secret not set. Set CHITCHAT_JWT_SECRET environment variable before exposing the server.\n")
	}
	return nil
}
