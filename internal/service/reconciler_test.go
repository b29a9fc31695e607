package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "chitchat/internal/errors"
	"chitchat/internal/metrics"
	"chitchat/internal/models"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestReconcilerConfig_Defaults(t *testing.T) {
	c := ReconcilerConfig{MaxAttempts: -3}.withDefaults()
	assert.Equal(t, 10*time.Second, c.Interval)
	assert.Equal(t, 5*time.Second, c.WarmupDelay)
	assert.Equal(t, 5*time.Second, c.ItemTimeout)
	assert.Equal(t, 0, c.MaxAttempts)
	assert.Equal(t, 500, c.BatchSize)
}

// A message scheduled for later is invisible and unpushed until the
// reconciler runs after its time, then delivered and pushed exactly once.
func TestReconciler_DeliversScheduledMessageOnce(t *testing.T) {
	w := newChatWorld(t)
	ctx := context.Background()
	t0 := time.Now().UTC().Truncate(time.Millisecond)
	clock, current := fixedClock(t0)
	w.setNow(clock)

	bobSession := w.hub.Register(w.bob.ID)
	aliceSession := w.hub.Register(w.alice.ID)

	at := t0.Add(5 * time.Second)
	msg, err := w.messages.SubmitMessage(ctx, w.alice.ID, w.chat.ID, "see you soon", &at)
	require.NoError(t, err)
	assert.Empty(t, pushedMessageIDs(t, bobSession), "pending messages are never pushed")

	visible, err := w.messages.ListMessages(ctx, w.bob.ID, w.chat.ID)
	require.NoError(t, err)
	assert.Empty(t, visible)

	queued, err := w.messages.ListScheduled(ctx, w.alice)
	require.NoError(t, err)
	assert.Equal(t, []string{msg.ID}, messageIDsOf(queued))

	reconciler := w.newReconciler(clock, ReconcilerConfig{})

	early := reconciler.Tick(ctx)
	assert.Equal(t, TickResult{}, early)

	*current = t0.Add(6 * time.Second)
	result := reconciler.Tick(ctx)
	assert.Equal(t, TickResult{Due: 1, Promoted: 1}, result)
	assert.Equal(t, []string{msg.ID}, pushedMessageIDs(t, bobSession))
	assert.Empty(t, pushedMessageIDs(t, aliceSession), "the sender is not pushed its own message")

	stored, err := w.db.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsDelivered())

	conv, err := w.db.GetConversation(ctx, w.chat.ID)
	require.NoError(t, err)
	require.NotNil(t, conv.LatestMessageID)
	assert.Equal(t, msg.ID, *conv.LatestMessageID)

	again := reconciler.Tick(ctx)
	assert.Equal(t, 0, again.Due)
	assert.Empty(t, pushedMessageIDs(t, bobSession))
	assert.Equal(t, float64(1), w.registry.CounterValue(metrics.MessagesPromoted, nil))
}

// A due message shows up in the pull path even before it is promoted.
func TestReconciler_DueMessageVisibleBeforePromotion(t *testing.T) {
	w := newChatWorld(t)
	ctx := context.Background()
	t0 := time.Now().UTC().Truncate(time.Millisecond)
	clock, current := fixedClock(t0)
	w.setNow(clock)

	at := t0.Add(time.Second)
	msg, err := w.messages.SubmitMessage(ctx, w.alice.ID, w.chat.ID, "due soon", &at)
	require.NoError(t, err)

	*current = t0.Add(2 * time.Second)
	visible, err := w.messages.ListMessages(ctx, w.bob.ID, w.chat.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{msg.ID}, messageIDsOf(visible))

	queued, err := w.messages.ListScheduled(ctx, w.alice)
	require.NoError(t, err)
	assert.Empty(t, queued)
}

// Immediate messages are pushed by the send path and never again by the
// reconciler.
func TestReconciler_ImmediateMessageNotRepushed(t *testing.T) {
	w := newChatWorld(t)
	ctx := context.Background()

	bobSession := w.hub.Register(w.bob.ID)
	msg, err := w.messages.SubmitMessage(ctx, w.alice.ID, w.chat.ID, "right now", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{msg.ID}, pushedMessageIDs(t, bobSession))

	reconciler := w.newReconciler(time.Now, ReconcilerConfig{})
	result := reconciler.Tick(ctx)
	assert.Equal(t, 0, result.Due)
	assert.Empty(t, pushedMessageIDs(t, bobSession))
}

// Overlapping sweeps, as from two server instances, promote and push each
// due message exactly once.
func TestReconciler_ConcurrentTicksPushOnce(t *testing.T) {
	w := newChatWorld(t)
	ctx := context.Background()
	t0 := time.Now().UTC().Truncate(time.Millisecond)
	clock, current := fixedClock(t0)
	w.setNow(clock)

	bobSession := w.hub.Register(w.bob.ID)

	var ids []string
	for i := 0; i < 5; i++ {
		at := t0.Add(time.Second)
		msg, err := w.messages.SubmitMessage(ctx, w.alice.ID, w.chat.ID, "batch", &at)
		require.NoError(t, err)
		ids = append(ids, msg.ID)
	}
	*current = t0.Add(time.Minute)

	first := w.newReconciler(clock, ReconcilerConfig{})
	second := w.newReconciler(clock, ReconcilerConfig{})

	var wg sync.WaitGroup
	results := make([]TickResult, 2)
	for i, r := range []*Reconciler{first, second} {
		wg.Add(1)
		go func(i int, r *Reconciler) {
			defer wg.Done()
			results[i] = r.Tick(ctx)
		}(i, r)
	}
	wg.Wait()

	assert.Equal(t, 5, results[0].Promoted+results[1].Promoted)
	assert.Zero(t, results[0].Failed+results[1].Failed)
	assert.ElementsMatch(t, ids, pushedMessageIDs(t, bobSession))
}

// A message whose conversation is gone stays pending, is retried, and is
// dead-lettered once MaxAttempts is reached.
func TestReconciler_MissingConversationDeadLetters(t *testing.T) {
	w := newChatWorld(t)
	ctx := context.Background()
	t0 := time.Now().UTC().Truncate(time.Millisecond)

	past := t0.Add(-time.Second)
	orphan := &models.Message{SenderID: w.alice.ID, ChatID: "ghost", Content: "orphan", ScheduledFor: &past}
	require.NoError(t, w.db.InsertMessage(ctx, orphan, false))

	clock, _ := fixedClock(t0)
	reconciler := w.newReconciler(clock, ReconcilerConfig{MaxAttempts: 2})

	first := reconciler.Tick(ctx)
	assert.Equal(t, TickResult{Due: 1, Failed: 1}, first)

	stored, err := w.db.GetMessage(ctx, orphan.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.ScheduledFor)
	assert.Equal(t, 1, stored.DeliveryAttempts)

	second := reconciler.Tick(ctx)
	assert.Equal(t, TickResult{Due: 1, Failed: 1, DeadLettered: 1}, second)

	third := reconciler.Tick(ctx)
	assert.Equal(t, 0, third.Due)

	assert.Equal(t, float64(2), w.registry.CounterValue(metrics.ReconcilerFailures, nil))
	assert.Equal(t, float64(1), w.registry.CounterValue(metrics.ReconcilerDeadLetters, nil))
}

func TestReconciler_FailureDoesNotAbortSweep(t *testing.T) {
	store := &mockMessageStore{}
	publisher := &mockPublisher{}
	now := engineNow
	past := now.Add(-time.Minute)

	broken := &models.Message{ID: "m-broken", ChatID: "chat-1", SenderID: "alice", ScheduledFor: &past}
	healthy := &models.Message{ID: "m-healthy", ChatID: "chat-1", SenderID: "alice", ScheduledFor: &past}
	store.On("ListDueMessages", mock.Anything, now, 500).Return([]*models.Message{broken, healthy}, nil)
	store.On("GetConversation", mock.Anything, "chat-1").Return(testConversation(), nil)
	store.On("PromoteMessage", mock.Anything, "m-broken", "chat-1", now).
		Return(false, apperrors.NewTransientStoreError("promote message", errors.New("database is locked")))
	store.On("RecordDeliveryFailure", mock.Anything, "m-broken", 0, now).Return(1, false, nil)
	store.On("PromoteMessage", mock.Anything, "m-healthy", "chat-1", now).Return(true, nil)
	publisher.On("PublishMessage", mock.Anything, healthy, []string{"alice", "bob"}).Once()

	r := NewReconciler(store, publisher, ReconcilerConfig{}, metrics.NewRegistry(), quietLogger())
	r.now = func() time.Time { return now }

	result := r.Tick(context.Background())
	assert.Equal(t, TickResult{Due: 2, Promoted: 1, Failed: 1}, result)
	assert.Nil(t, healthy.ScheduledFor)
	assert.NotNil(t, broken.ScheduledFor)
	store.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestReconciler_StuckPromotionTimesOut(t *testing.T) {
	store := &mockMessageStore{}
	publisher := &mockPublisher{}
	past := engineNow.Add(-time.Minute)

	msg := &models.Message{ID: "m-slow", ChatID: "chat-1", SenderID: "alice", ScheduledFor: &past}
	store.On("ListDueMessages", mock.Anything, engineNow, 500).Return([]*models.Message{msg}, nil)
	store.On("GetConversation", mock.Anything, "chat-1").Return(testConversation(), nil)
	store.On("PromoteMessage", mock.Anything, "m-slow", "chat-1", engineNow).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(false, context.DeadlineExceeded)
	store.On("RecordDeliveryFailure", mock.Anything, "m-slow", 0, engineNow).Return(1, false, nil)

	logger, hook := test.NewNullLogger()
	r := NewReconciler(store, publisher, ReconcilerConfig{ItemTimeout: 20 * time.Millisecond}, metrics.NewRegistry(), logger)
	r.now = func() time.Time { return engineNow }

	assert.Equal(t, TickResult{Due: 1, Failed: 1}, r.Tick(context.Background()))

	var logged bool
	for _, entry := range hook.AllEntries() {
		if entry.Message == "Failed to promote scheduled message, will retry next tick" {
			logged = true
			assert.Equal(t, apperrors.ErrCodeTimeout, entry.Data["error_code"])
		}
	}
	assert.True(t, logged)
	publisher.AssertNotCalled(t, "PublishMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconciler_LostRaceIsSkipped(t *testing.T) {
	store := &mockMessageStore{}
	publisher := &mockPublisher{}
	past := engineNow.Add(-time.Minute)

	msg := &models.Message{ID: "m1", ChatID: "chat-1", SenderID: "alice", ScheduledFor: &past}
	store.On("ListDueMessages", mock.Anything, engineNow, 500).Return([]*models.Message{msg}, nil)
	store.On("GetConversation", mock.Anything, "chat-1").Return(testConversation(), nil)
	store.On("PromoteMessage", mock.Anything, "m1", "chat-1", engineNow).Return(false, nil)

	r := NewReconciler(store, publisher, ReconcilerConfig{}, metrics.NewRegistry(), quietLogger())
	r.now = func() time.Time { return engineNow }

	assert.Equal(t, TickResult{Due: 1, Skipped: 1}, r.Tick(context.Background()))
	publisher.AssertNotCalled(t, "PublishMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconciler_ListFailureEndsTickQuietly(t *testing.T) {
	store := &mockMessageStore{}
	store.On("ListDueMessages", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, apperrors.NewTransientStoreError("list due messages", errors.New("database is locked")))

	r := NewReconciler(store, &mockPublisher{}, ReconcilerConfig{}, metrics.NewRegistry(), quietLogger())
	assert.Equal(t, TickResult{}, r.Tick(context.Background()))
}

func TestReconciler_StartAndStop(t *testing.T) {
	ticked := make(chan struct{}, 1)
	store := &mockMessageStore{}
	store.On("ListDueMessages", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			select {
			case ticked <- struct{}{}:
			default:
			}
		}).
		Return([]*models.Message{}, nil)

	r := NewReconciler(store, &mockPublisher{}, ReconcilerConfig{
		Interval:    10 * time.Millisecond,
		WarmupDelay: time.Millisecond,
	}, metrics.NewRegistry(), quietLogger())

	done := make(chan struct{})
	go func() {
		r.Start(context.Background())
		close(done)
	}()

	select {
	case <-ticked:
	case <-time.After(time.Second):
		t.Fatal("reconciler never ticked")
	}

	r.Stop()
	r.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop")
	}
}
