package fanout

import (
	"context"
	"encoding/json"
	"sync"

	"chitchat/internal/constants"
	"chitchat/internal/metrics"
	"chitchat/internal/models"
	"chitchat/internal/protocol"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// Hub routes pushes to live sessions addressed by user identity and by
// conversation. Delivery is best-effort: nothing is queued for users who
// are not connected.
type Hub struct {
	mu     sync.RWMutex
	byUser map[string]map[*Session]struct{}
	byChat map[string]map[*Session]struct{}

	bufferSize int
	instanceID string
	relay      Relay
	logger     *logrus.Logger
	metrics    *metrics.Registry
}

// NewHub creates a hub whose sessions buffer up to bufferSize frames.
func NewHub(bufferSize int, logger *logrus.Logger, registry *metrics.Registry) *Hub {
	if bufferSize <= 0 {
		bufferSize = constants.DefaultSendBufferSize
	}
	return &Hub{
		byUser:     make(map[string]map[*Session]struct{}),
		byChat:     make(map[string]map[*Session]struct{}),
		bufferSize: bufferSize,
		instanceID: uuid.NewString(),
		logger:     logger,
		metrics:    metrics.OrGlobal(registry),
	}
}

// SetRelay makes the hub forward every publish to other instances through
// relay. Call RunRelay to receive theirs.
func (h *Hub) SetRelay(relay Relay) {
	h.relay = relay
}

// Register binds a new connection to userID. A user may hold any number of
// sessions at once.
func (h *Hub) Register(userID string) *Session {
	s := newSession(userID, h.bufferSize)

	h.mu.Lock()
	addTo(h.byUser, userID, s)
	count := h.sessionCountLocked()
	h.mu.Unlock()

	h.metrics.SetGauge(metrics.FanoutSessions, float64(count), nil, "Live push sessions")
	h.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"session_id": s.id,
	}).Debug("Push session registered")
	return s
}

// Unregister removes every binding of s. Other sessions of the same user are
// unaffected. Calling it twice is harmless.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	chats, ok := s.close()
	if ok {
		removeFrom(h.byUser, s.userID, s)
		for _, chatID := range chats {
			removeFrom(h.byChat, chatID, s)
		}
	}
	count := h.sessionCountLocked()
	h.mu.Unlock()

	if !ok {
		return
	}
	h.metrics.SetGauge(metrics.FanoutSessions, float64(count), nil, "Live push sessions")
	h.logger.WithFields(logrus.Fields{
		"user_id":    s.userID,
		"session_id": s.id,
	}).Debug("Push session unregistered")
}

// Join additionally binds s to chatID for presence events.
func (h *Hub) Join(s *Session, chatID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.join(chatID) {
		addTo(h.byChat, chatID, s)
	}
}

func (h *Hub) Leave(s *Session, chatID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s.leave(chatID)
	removeFrom(h.byChat, chatID, s)
}

// PublishMessage pushes msg to every session of every participant except the
// sender. It never fails the caller: undeliverable pushes are dropped.
func (h *Hub) PublishMessage(ctx context.Context, msg *models.Message, participantIDs []string) {
	recipients := lo.Without(participantIDs, msg.SenderID)
	if len(recipients) == 0 {
		return
	}

	frame, err := protocol.MessageDeliveredFrame(msg)
	if err != nil {
		h.logger.WithError(err).WithField("message_id", msg.ID).Error("Failed to encode message push")
		return
	}

	h.deliverToUsers(recipients, frame)
	h.forward(ctx, RelayEvent{Kind: relayKindUsers, UserIDs: recipients, Frame: frame})
}

// PublishPresence broadcasts a typing event to every session joined to chatID
// except origin.
func (h *Hub) PublishPresence(ctx context.Context, origin *Session, chatID string, started bool) {
	frame, err := protocol.PresenceFrame(chatID, origin.userID, started)
	if err != nil {
		h.logger.WithError(err).WithField("chat_id", chatID).Error("Failed to encode presence push")
		return
	}

	h.deliverToChat(chatID, origin.id, frame)
	h.forward(ctx, RelayEvent{Kind: relayKindChat, ChatID: chatID, ExcludeSession: origin.id, Frame: frame})
}

// Send queues a frame on a single session, typically a direct reply.
func (h *Hub) Send(s *Session, frame []byte) bool {
	if !s.enqueue(frame) {
		h.metrics.IncrementCounter(metrics.FanoutDropped, nil, "Pushes dropped on full or closed sessions")
		return false
	}
	return true
}

// SessionCount returns the number of live sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessionCountLocked()
}

// UserSessionCount returns the number of live sessions of userID.
func (h *Hub) UserSessionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID])
}

func (h *Hub) deliverToUsers(userIDs []string, frame []byte) {
	h.mu.RLock()
	var targets []*Session
	for _, userID := range lo.Uniq(userIDs) {
		for s := range h.byUser[userID] {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()

	h.deliver(targets, frame)
}

func (h *Hub) deliverToChat(chatID, excludeSession string, frame []byte) {
	h.mu.RLock()
	var targets []*Session
	for s := range h.byChat[chatID] {
		if s.id != excludeSession {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()

	h.deliver(targets, frame)
}

func (h *Hub) deliver(targets []*Session, frame []byte) {
	for _, s := range targets {
		if s.enqueue(frame) {
			h.metrics.IncrementCounter(metrics.FanoutPushes, nil, "Pushes queued to sessions")
			continue
		}
		h.metrics.IncrementCounter(metrics.FanoutDropped, nil, "Pushes dropped on full or closed sessions")
		h.logger.WithFields(logrus.Fields{
			"user_id":    s.userID,
			"session_id": s.id,
		}).Debug("Dropped push for slow or closed session")
	}
}

func (h *Hub) forward(ctx context.Context, event RelayEvent) {
	if h.relay == nil {
		return
	}
	event.Origin = h.instanceID
	if err := h.relay.Publish(ctx, event); err != nil {
		h.logger.WithError(err).WithField("kind", event.Kind).Warn("Failed to relay push to other instances")
	}
}

// RunRelay delivers pushes published by other instances until ctx is done.
func (h *Hub) RunRelay(ctx context.Context) error {
	if h.relay == nil {
		return nil
	}
	return h.relay.Subscribe(ctx, h.handleRelayed)
}

func (h *Hub) handleRelayed(event RelayEvent) {
	if event.Origin == h.instanceID {
		return
	}
	if !json.Valid(event.Frame) {
		h.logger.WithField("origin", event.Origin).Warn("Ignoring relayed push with invalid frame")
		return
	}

	switch event.Kind {
	case relayKindUsers:
		h.deliverToUsers(event.UserIDs, event.Frame)
	case relayKindChat:
		h.deliverToChat(event.ChatID, event.ExcludeSession, event.Frame)
	default:
		h.logger.WithField("kind", event.Kind).Warn("Ignoring relayed push of unknown kind")
	}
}

func (h *Hub) sessionCountLocked() int {
	n := 0
	for _, sessions := range h.byUser {
		n += len(sessions)
	}
	return n
}

func addTo(index map[string]map[*Session]struct{}, key string, s *Session) {
	set, ok := index[key]
	if !ok {
		set = make(map[*Session]struct{})
		index[key] = set
	}
	set[s] = struct{}{}
}

func removeFrom(index map[string]map[*Session]struct{}, key string, s *Session) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(index, key)
	}
}
