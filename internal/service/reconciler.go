package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"chitchat/internal/constants"
	apperrors "chitchat/internal/errors"
	"chitchat/internal/metrics"
	"chitchat/internal/models"
	"chitchat/internal/privacy"
	"chitchat/internal/tracing"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// ReconcilerStore is the slice of the database the reconciler needs.
type ReconcilerStore interface {
	ListDueMessages(ctx context.Context, now time.Time, limit int) ([]*models.Message, error)
	PromoteMessage(ctx context.Context, messageID, chatID string, at time.Time) (bool, error)
	RecordDeliveryFailure(ctx context.Context, messageID string, maxAttempts int, at time.Time) (int, bool, error)
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
}

// ReconcilerConfig tunes the sweep. Zero values take the defaults; a zero
// MaxAttempts keeps retrying a failing message on every tick.
type ReconcilerConfig struct {
	Interval    time.Duration
	WarmupDelay time.Duration
	ItemTimeout time.Duration
	MaxAttempts int
	BatchSize   int
}

func (c ReconcilerConfig) withDefaults() ReconcilerConfig {
	if c.Interval <= 0 {
		c.Interval = constants.DefaultReconcileIntervalSec * time.Second
	}
	if c.WarmupDelay <= 0 {
		c.WarmupDelay = constants.DefaultReconcileWarmupSec * time.Second
	}
	if c.ItemTimeout <= 0 {
		c.ItemTimeout = constants.DefaultReconcileItemTimeout * time.Second
	}
	if c.MaxAttempts < 0 {
		c.MaxAttempts = 0
	}
	if c.BatchSize <= 0 {
		c.BatchSize = constants.DefaultReconcileBatchSize
	}
	return c
}

// TickResult summarises one sweep.
type TickResult struct {
	Due          int
	Promoted     int
	Skipped      int
	Failed       int
	DeadLettered int
}

type outcome int

const (
	outcomePromoted outcome = iota
	outcomeSkipped
	outcomeFailed
)

// Reconciler periodically promotes due scheduled messages and pushes them
// through the same publisher the live send path uses. Promotion is a
// conditional update, so overlapping sweeps, here or on another instance,
// promote and push each message at most once.
type Reconciler struct {
	store     ReconcilerStore
	publisher Publisher
	config    ReconcilerConfig
	registry  *metrics.Registry
	logger    *logrus.Logger
	now       func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewReconciler(store ReconcilerStore, publisher Publisher, config ReconcilerConfig, registry *metrics.Registry, logger *logrus.Logger) *Reconciler {
	return &Reconciler{
		store:     store,
		publisher: publisher,
		config:    config.withDefaults(),
		registry:  metrics.OrGlobal(registry),
		logger:    logger,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// Start blocks running sweeps until ctx is cancelled or Stop is called. A
// warm-up sweep runs shortly after start to drain any backlog accumulated
// while the process was down.
func (r *Reconciler) Start(ctx context.Context) {
	warmup := time.NewTimer(r.config.WarmupDelay)
	defer warmup.Stop()
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	r.logger.WithFields(logrus.Fields{
		"interval":     r.config.Interval.String(),
		"warmup":       r.config.WarmupDelay.String(),
		"item_timeout": r.config.ItemTimeout.String(),
		"max_attempts": r.config.MaxAttempts,
	}).Info("Starting delivery reconciler")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Reconciler context cancelled, stopping")
			return
		case <-r.stopCh:
			r.logger.Info("Reconciler stop signal received, stopping")
			return
		case <-warmup.C:
			r.Tick(ctx)
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Stop ends Start. It is safe to call more than once.
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// Tick runs one sweep. Each due message is processed to completion before
// the next; a failure on one message never aborts the rest.
func (r *Reconciler) Tick(ctx context.Context) TickResult {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "reconciler.tick")
	defer span.End()

	var result TickResult
	now := r.now().UTC()

	due, err := r.store.ListDueMessages(ctx, now, r.config.BatchSize)
	if err != nil {
		tracing.RecordError(ctx, err)
		apperrors.LogRetryable(r.logger, err, "Failed to list due messages")
		return result
	}
	result.Due = len(due)

	for _, msg := range due {
		if ctx.Err() != nil {
			break
		}
		switch out, err := r.reconcile(ctx, msg, now); out {
		case outcomePromoted:
			result.Promoted++
		case outcomeSkipped:
			result.Skipped++
		case outcomeFailed:
			result.Failed++
			if r.recordFailure(ctx, msg, err) {
				result.DeadLettered++
			}
		}
	}

	duration := time.Since(start)
	r.registry.RecordTimer(metrics.ReconcilerTick, duration, nil, "Duration of one reconciler sweep")
	span.SetAttributes(
		attribute.Int("reconciler.due", result.Due),
		attribute.Int("reconciler.promoted", result.Promoted),
		attribute.Int("reconciler.failed", result.Failed),
	)

	entry := r.logger.WithFields(logrus.Fields{
		"due":            result.Due,
		"promoted":       result.Promoted,
		"skipped":        result.Skipped,
		"failed":         result.Failed,
		"dead_lettered":  result.DeadLettered,
		LogFieldDuration: duration.Milliseconds(),
	})
	if result.Due > 0 {
		entry.Info("Reconciler tick completed")
	} else {
		entry.Debug("Reconciler tick completed")
	}
	return result
}

// reconcile promotes a single message under its own timeout. The
// conversation is resolved first so a message whose conversation is gone
// stays pending and is counted as a failure.
func (r *Reconciler) reconcile(ctx context.Context, msg *models.Message, now time.Time) (outcome, error) {
	itemCtx, cancel := context.WithTimeout(ctx, r.config.ItemTimeout)
	defer cancel()

	itemCtx, span := tracing.StartSpan(itemCtx, "reconciler.promote",
		attribute.String("message.id", msg.ID),
		attribute.String("chat.id", msg.ChatID),
	)
	defer span.End()

	fail := func(err error) (outcome, error) {
		if errors.Is(itemCtx.Err(), context.DeadlineExceeded) {
			timeout := apperrors.NewTimeoutError("promotion", r.config.ItemTimeout.String())
			timeout.Cause = err
			err = timeout
		}
		tracing.RecordError(itemCtx, err)
		return outcomeFailed, err
	}

	conv, err := r.store.GetConversation(itemCtx, msg.ChatID)
	if err != nil {
		return fail(err)
	}
	if conv == nil {
		return fail(apperrors.NewNotFoundError("chat", msg.ChatID))
	}

	promoted, err := r.store.PromoteMessage(itemCtx, msg.ID, msg.ChatID, now)
	if err != nil {
		return fail(err)
	}
	if !promoted {
		r.logger.WithField(LogFieldMessageID, privacy.MaskMessageID(msg.ID)).Debug("Skipping promotion: message already delivered")
		return outcomeSkipped, nil
	}

	msg.ScheduledFor = nil
	msg.UpdatedAt = now
	r.registry.IncrementCounter(metrics.MessagesPromoted, nil, "Scheduled messages promoted to delivered")

	// The promotion is committed; a failed push is recovered by clients
	// pulling the message list.
	r.publisher.PublishMessage(ctx, msg, conv.ParticipantIDs)

	r.logger.WithFields(messageFields(ctx, msg.ID, msg.ChatID, msg.SenderID, msg.Content)).Info("Scheduled message delivered")
	return outcomePromoted, nil
}

// recordFailure logs the failure and bumps the message's attempt counter.
// It reports whether the message has now been dead-lettered.
func (r *Reconciler) recordFailure(ctx context.Context, msg *models.Message, cause error) bool {
	r.registry.IncrementCounter(metrics.ReconcilerFailures, nil, "Scheduled messages that failed to promote")

	fields := logrus.Fields{
		LogFieldMessageID: privacy.MaskMessageID(msg.ID),
		LogFieldChatID:    msg.ChatID,
	}

	// Use a fresh deadline: the item's own may be what just expired.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.config.ItemTimeout)
	defer cancel()

	attempts, deadLettered, err := r.store.RecordDeliveryFailure(recordCtx, msg.ID, r.config.MaxAttempts, r.now().UTC())
	if err != nil {
		apperrors.LogRetryable(r.logger, err, "Failed to record delivery failure", fields)
	}
	fields[LogFieldAttempt] = attempts

	if deadLettered {
		r.registry.IncrementCounter(metrics.ReconcilerDeadLetters, nil, "Scheduled messages given up on")
		apperrors.Entry(r.logger, cause).WithFields(fields).Error("Giving up on scheduled message after repeated failures")
		return true
	}

	// Every failure leaves the message pending for the next tick.
	entry := apperrors.Entry(r.logger, cause).WithFields(fields)
	entry.Warn("Failed to promote scheduled message, will retry next tick")
	return false
}
