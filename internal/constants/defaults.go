package constants

// Default scheduler configuration values
const (
	DefaultReconcileIntervalSec  = 10
	DefaultReconcileWarmupSec    = 5
	DefaultReconcileItemTimeout  = 5
	DefaultReconcileMaxAttempts  = 0
	DefaultMonitorIntervalSec    = 60
	DefaultOverdueWarnThreshold  = 1
	DefaultScheduledListLimit    = 500
	DefaultReconcileBatchSize    = 500
	DefaultUserSearchLimit       = 50
	DefaultRetryBackoffMs        = 1000
	DefaultMaxBackoffMs          = 60000
	DefaultMaxAttempts           = 5
	DefaultServerPort            = 5000
	DefaultTokenTTLHours         = 24 * 30
	DefaultTranslationTimeoutSec = 10
)

// Push channel defaults
const (
	DefaultSendBufferSize    = 64
	DefaultWriteTimeoutSec   = 10
	DefaultPingIntervalSec   = 25
	DefaultRedisChannel      = "chitchat:fanout"
	MaxInboundFrameBytes     = 64 * 1024
	DefaultBreakerFailures   = 5
	DefaultBreakerTimeoutSec = 30
	CBHalfOpenMaxCalls       = 3
)

// Default timeout values
const (
	DefaultHTTPTimeoutSec        = 30
	DefaultDatabaseRetryAttempts = 3
	DefaultGracefulShutdownSec   = 30
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	ServerErrorChannelSize       = 1
	ConfigPollIntervalSec        = 5
)

// Per-IP limits on the register and login endpoints
const (
	DefaultAuthRateLimit     = 20
	DefaultAuthRateWindowSec = 60
	RateLimitSweepInterval   = 5 * 60
)

// Validation limits
const (
	MinNameLength      = 5
	MinUsernameLength  = 5
	MinPasswordLength  = 8
	MaxPasswordLength  = 72
	MaxContentLength   = 10000
	MaxChatNameLength  = 100
	MinGroupMembers    = 2
	MaxSearchLength    = 100
	MaxMessageIDLength = 128
)

// Privacy settings
const (
	DefaultMessageIDLength = 8
	DefaultContentPreview  = 12
)

// At-rest message content encryption (AES-256-GCM, PBKDF2-SHA256 key)
const (
	EncryptionSalt         = "chitchat-content-encryption-salt-v1"
	KeySize                = 32
	Iterations             = 100000
	MinEncryptionSecretLen = 32
)
