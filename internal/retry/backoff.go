package retry

import (
	"context"
	"math/rand/v2"
	"time"

	"chitchat/internal/models"
)

// BackoffConfig contains configuration for exponential backoff
type BackoffConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	MaxAttempts  int
	Jitter       bool
}

func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  5,
		Jitter:       true,
	}
}

// FromConfig builds a backoff configuration from the retry section of the
// application config. Unset fields keep their defaults.
func FromConfig(c models.RetryConfig) BackoffConfig {
	config := DefaultBackoffConfig()
	if c.InitialBackoffMs > 0 {
		config.InitialDelay = time.Duration(c.InitialBackoffMs) * time.Millisecond
	}
	if c.MaxBackoffMs > 0 {
		config.MaxDelay = time.Duration(c.MaxBackoffMs) * time.Millisecond
	}
	if c.MaxAttempts > 0 {
		config.MaxAttempts = c.MaxAttempts
	}
	return config
}

// Backoff retries an operation with exponentially growing delays.
type Backoff struct {
	config  BackoffConfig
	onRetry func(attempt int, err error, delay time.Duration)
}

func NewBackoff(config BackoffConfig) *Backoff {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if config.Multiplier < 1 {
		config.Multiplier = 1
	}
	return &Backoff{config: config}
}

// OnRetry registers a hook called before each wait, typically for logging.
func (b *Backoff) OnRetry(hook func(attempt int, err error, delay time.Duration)) *Backoff {
	b.onRetry = hook
	return b
}

// Retry runs operation until it succeeds, MaxAttempts is reached or ctx is
// done. The last operation error is returned.
func (b *Backoff) Retry(ctx context.Context, operation func(ctx context.Context) error) error {
	return b.RetryIf(ctx, operation, func(error) bool { return true })
}

// RetryIf is Retry that gives up immediately on errors isRetryable rejects.
func (b *Backoff) RetryIf(ctx context.Context, operation func(ctx context.Context) error, isRetryable func(error) bool) error {
	var lastErr error

	for attempt := 1; attempt <= b.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := operation(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) || attempt == b.config.MaxAttempts {
			break
		}

		delay := b.Delay(attempt)
		if b.onRetry != nil {
			b.onRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}

// Delay returns the wait after the given failed attempt, counting from 1.
func (b *Backoff) Delay(attempt int) time.Duration {
	delay := float64(b.config.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= b.config.Multiplier
		if delay >= float64(b.config.MaxDelay) {
			break
		}
	}
	if delay > float64(b.config.MaxDelay) {
		delay = float64(b.config.MaxDelay)
	}

	// ±25%, clamped to [InitialDelay, MaxDelay]
	if b.config.Jitter {
		delay += (rand.Float64() - 0.5) * 0.5 * delay
		if delay < float64(b.config.InitialDelay) {
			delay = float64(b.config.InitialDelay)
		}
		if delay > float64(b.config.MaxDelay) {
			delay = float64(b.config.MaxDelay)
		}
	}

	return time.Duration(delay)
}
