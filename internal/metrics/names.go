package metrics

// Metric names recorded by the messaging core
const (
	MessagesSubmitted     = "messages_submitted_total"
	MessagesPromoted      = "messages_promoted_total"
	ReconcilerFailures    = "reconciler_failures_total"
	ReconcilerDeadLetters = "reconciler_dead_letters_total"
	ReconcilerTick        = "reconciler_tick_duration"
	FanoutPushes          = "fanout_pushes_total"
	FanoutDropped         = "fanout_dropped_total"
	FanoutSessions        = "fanout_sessions_active"
	ScheduledPending      = "scheduled_pending"
	ScheduledOverdue      = "scheduled_overdue"
	TranslationsTotal     = "translations_total"
	TranslationBreaker    = "translation_breaker_open"
	TranslationFailures   = "translation_breaker_failures"
	HTTPRequests          = "http_requests_total"
	HTTPRequestDuration   = "http_request_duration"
	HTTPRateLimited       = "http_rate_limited_total"
)

// Values of the kind label on MessagesSubmitted
const (
	KindImmediate = "immediate"
	KindScheduled = "scheduled"
)

// OrGlobal returns r, or the global registry when r is nil.
func OrGlobal(r *Registry) *Registry {
	if r == nil {
		return globalRegistry
	}
	return r
}
