package models

// Config holds the application configuration
type Config struct {
	Server      ServerConfig      `json:"server"`
	Database    DatabaseConfig    `json:"database"`
	Scheduler   SchedulerConfig   `json:"scheduler"`
	Fanout      FanoutConfig      `json:"fanout"`
	Auth        AuthConfig        `json:"auth"`
	Translation TranslationConfig `json:"translation"`
	Retry       RetryConfig       `json:"retry"`
	Tracing     TracingConfig     `json:"tracing"`
	Features    map[string]bool   `json:"features"`
	LogLevel    string            `json:"log_level"`
}

// ServerConfig holds HTTP listener settings. AuthRateLimit caps register
// and login attempts per client IP within AuthRateWindowSec.
type ServerConfig struct {
	Port              int `json:"port"`
	ReadTimeoutSec    int `json:"readTimeoutSec"`
	WriteTimeoutSec   int `json:"writeTimeoutSec"`
	IdleTimeoutSec    int `json:"idleTimeoutSec"`
	AuthRateLimit     int `json:"authRateLimit"`
	AuthRateWindowSec int `json:"authRateWindowSec"`
}

// DatabaseConfig holds database related configurations
type DatabaseConfig struct {
	Path           string `json:"path"`
	EncryptContent bool   `json:"encryptContent"`
}

// SchedulerConfig controls the scheduled-message reconciler and its monitor.
// MaxAttempts of 0 retries a failing message on every tick indefinitely.
type SchedulerConfig struct {
	IntervalSec        int `json:"intervalSec"`
	WarmupDelaySec     int `json:"warmupDelaySec"`
	ItemTimeoutSec     int `json:"itemTimeoutSec"`
	MaxAttempts        int `json:"maxAttempts"`
	MonitorIntervalSec int `json:"monitorIntervalSec"`
}

// FanoutConfig controls push sessions and the optional Redis relay
type FanoutConfig struct {
	SendBufferSize  int    `json:"sendBufferSize"`
	WriteTimeoutSec int    `json:"writeTimeoutSec"`
	PingIntervalSec int    `json:"pingIntervalSec"`
	RedisURL        string `json:"redisUrl"`
	RedisChannel    string `json:"redisChannel"`
}

type AuthConfig struct {
	JWTSecret     string `json:"jwtSecret"`
	TokenTTLHours int    `json:"tokenTtlHours"`
}

// TranslationConfig configures the external translation endpoint
type TranslationConfig struct {
	Endpoint          string `json:"endpoint"`
	APIKey            string `json:"apiKey"`
	TimeoutSec        int    `json:"timeoutSec"`
	BreakerFailures   int    `json:"breakerFailures"`
	BreakerTimeoutSec int    `json:"breakerTimeoutSec"`
}

// RetryConfig holds retry related configurations
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"serviceName"`
	ServiceVersion string  `json:"serviceVersion"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlpEndpoint"`
	SampleRate     float64 `json:"sampleRate"`
	UseStdout      bool    `json:"useStdout"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
