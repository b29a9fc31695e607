package service

// Standard log field names. Use these exact names so log queries work
// across the HTTP layer, the services and the background loops.
const (
	// Core identifiers
	LogFieldMessageID = "message_id"
	LogFieldChatID    = "chat_id"
	LogFieldUserID    = "user_id"
	LogFieldSenderID  = "sender_id"
	LogFieldSessionID = "session_id"
	LogFieldRequestID = "request_id"
	LogFieldTraceID   = "trace_id"

	// Service and operation fields
	LogFieldService   = "service"
	LogFieldOperation = "operation"
	LogFieldComponent = "component"
	LogFieldMethod    = "method"

	// Message and event fields
	LogFieldEvent        = "event"
	LogFieldKind         = "kind"
	LogFieldScheduledFor = "scheduled_for"
	LogFieldContent      = "content"
	LogFieldLanguage     = "language"

	// Performance and metrics
	LogFieldDuration = "duration_ms"
	LogFieldCount    = "count"
	LogFieldSize     = "size_bytes"

	// Network
	LogFieldURL        = "url"
	LogFieldStatusCode = "status_code"
	LogFieldRemoteIP   = "remote_ip"
	LogFieldUserAgent  = "user_agent"

	// Errors and retries
	LogFieldErrorCode = "error_code"
	LogFieldAttempt   = "attempt"
)

// Log level usage
//
// DEBUG: per-message flow detail, lost promotion races, raw request bodies
// (masked) in verbose mode.
// INFO: startup/shutdown, services started/stopped, submissions, ticks that
// promoted something.
// WARN: retryable failures, fallbacks (translation dictionary), overdue
// scheduled messages, dropped pushes.
// ERROR: failed operations that will not be retried automatically and
// dead-lettered messages.
// FATAL: startup cannot continue (config, database).
//
// Message patterns: "Starting [operation]", "Failed to [operation]",
// "Skipping [operation]: [reason]".
