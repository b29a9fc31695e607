package service

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"
	"time"

	"chitchat/internal/database"
	"chitchat/internal/fanout"
	"chitchat/internal/features"
	"chitchat/internal/metrics"
	"chitchat/internal/models"
	"chitchat/internal/protocol"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fixedClock returns a clock frozen at t that can be moved by the test.
func fixedClock(t time.Time) (func() time.Time, *time.Time) {
	current := t
	return func() time.Time { return current }, &current
}

// chatWorld wires the real store, hub and services together the way the
// server does.
type chatWorld struct {
	db       *database.Database
	hub      *fanout.Hub
	registry *metrics.Registry
	flags    *features.FlagManager
	engine   *SchedulingEngine
	messages *MessageService
	logger   *logrus.Logger

	alice *models.User
	bob   *models.User
	chat  *models.Conversation
}

func newChatWorld(t *testing.T) *chatWorld {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "chitchat.db"), false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := quietLogger()
	registry := metrics.NewRegistry()
	flags := features.NewFlagManager()
	hub := fanout.NewHub(16, logger, registry)

	engine := NewSchedulingEngine(db, db, db, flags, registry, logger)
	messages := NewMessageService(engine, db, db, hub, nil, flags, logger)

	w := &chatWorld{
		db:       db,
		hub:      hub,
		registry: registry,
		flags:    flags,
		engine:   engine,
		messages: messages,
		logger:   logger,
	}
	w.alice = w.createUser(t, "alice")
	w.bob = w.createUser(t, "bobby")

	w.chat = &models.Conversation{Name: "sender", ParticipantIDs: []string{w.alice.ID, w.bob.ID}}
	require.NoError(t, db.CreateConversation(context.Background(), w.chat))
	return w
}

func (w *chatWorld) createUser(t *testing.T, username string) *models.User {
	t.Helper()
	user := &models.User{
		Name:         username + " Name",
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
		Pic:          models.DefaultAvatarURL,
	}
	require.NoError(t, w.db.CreateUser(context.Background(), user))
	return user
}

func (w *chatWorld) setNow(now func() time.Time) {
	w.engine.now = now
	w.messages.now = now
}

func (w *chatWorld) newReconciler(now func() time.Time, config ReconcilerConfig) *Reconciler {
	r := NewReconciler(w.db, w.hub, config, w.registry, w.logger)
	r.now = now
	return r
}

// pushedMessageIDs drains s and returns the ids of delivered-message pushes.
func pushedMessageIDs(t *testing.T, s *fanout.Session) []string {
	t.Helper()
	ids := []string{}
	for {
		select {
		case frame := <-s.Outbound():
			var env protocol.Envelope
			require.NoError(t, json.Unmarshal(frame, &env))
			if env.Type != protocol.KindMessageDelivered {
				continue
			}
			var payload protocol.MessageDelivered
			require.NoError(t, json.Unmarshal(env.Data, &payload))
			ids = append(ids, payload.Message.ID)
		default:
			return ids
		}
	}
}

func messageIDsOf(msgs []*models.Message) []string {
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	return ids
}
