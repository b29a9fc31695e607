package service

import (
	"context"
	"time"

	"chitchat/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockMessageStore struct {
	mock.Mock
}

func (m *mockMessageStore) InsertMessage(ctx context.Context, msg *models.Message, deliverNow bool) error {
	args := m.Called(ctx, msg, deliverNow)
	if args.Error(0) == nil && msg.ID == "" {
		msg.ID = "msg-1"
	}
	return args.Error(0)
}

func (m *mockMessageStore) PromoteMessage(ctx context.Context, messageID, chatID string, at time.Time) (bool, error) {
	args := m.Called(ctx, messageID, chatID, at)
	return args.Bool(0), args.Error(1)
}

func (m *mockMessageStore) RecordDeliveryFailure(ctx context.Context, messageID string, maxAttempts int, at time.Time) (int, bool, error) {
	args := m.Called(ctx, messageID, maxAttempts, at)
	return args.Int(0), args.Bool(1), args.Error(2)
}

func (m *mockMessageStore) ListMessages(ctx context.Context, chatID string, now time.Time) ([]*models.Message, error) {
	args := m.Called(ctx, chatID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Message), args.Error(1)
}

func (m *mockMessageStore) ListScheduled(ctx context.Context, senderID string, now time.Time, limit int) ([]*models.Message, error) {
	args := m.Called(ctx, senderID, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Message), args.Error(1)
}

func (m *mockMessageStore) ListDueMessages(ctx context.Context, now time.Time, limit int) ([]*models.Message, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Message), args.Error(1)
}

func (m *mockMessageStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *mockMessageStore) MarkRead(ctx context.Context, messageID, userID string) error {
	return m.Called(ctx, messageID, userID).Error(0)
}

// GetConversation lets the mock stand in for a ReconcilerStore.
func (m *mockMessageStore) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *mockDirectory) GetUser(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockDirectory) GetUsersByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *mockDirectory) FindDirectConversation(ctx context.Context, a, b string) (*models.Conversation, error) {
	args := m.Called(ctx, a, b)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *mockDirectory) ListConversationsForUser(ctx context.Context, userID string) ([]*models.Conversation, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Conversation), args.Error(1)
}

func (m *mockDirectory) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	args := m.Called(ctx, conv)
	if args.Error(0) == nil && conv.ID == "" {
		conv.ID = "chat-new"
	}
	return args.Error(0)
}

func (m *mockDirectory) RenameConversation(ctx context.Context, id, name string) error {
	return m.Called(ctx, id, name).Error(0)
}

func (m *mockDirectory) AddParticipant(ctx context.Context, chatID, userID string) error {
	return m.Called(ctx, chatID, userID).Error(0)
}

func (m *mockDirectory) RemoveParticipant(ctx context.Context, chatID, userID string) error {
	return m.Called(ctx, chatID, userID).Error(0)
}

func (m *mockDirectory) CreateUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	if args.Error(0) == nil && user.ID == "" {
		user.ID = "user-new"
	}
	return args.Error(0)
}

func (m *mockDirectory) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockDirectory) SearchUsers(ctx context.Context, query, excludeID string, limit int) ([]*models.User, error) {
	args := m.Called(ctx, query, excludeID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishMessage(ctx context.Context, msg *models.Message, participantIDs []string) {
	m.Called(ctx, msg, participantIDs)
}

type mockTranslator struct {
	mock.Mock
}

func (m *mockTranslator) Translate(ctx context.Context, content, targetLanguage string) (string, error) {
	args := m.Called(ctx, content, targetLanguage)
	return args.String(0), args.Error(1)
}

type mockTokenIssuer struct {
	mock.Mock
}

func (m *mockTokenIssuer) Issue(userID string) (string, error) {
	args := m.Called(userID)
	return args.String(0), args.Error(1)
}

type mockCounter struct {
	mock.Mock
}

func (m *mockCounter) CountScheduled(ctx context.Context, now, overdueBefore time.Time) (int, int, error) {
	args := m.Called(ctx, now, overdueBefore)
	return args.Int(0), args.Int(1), args.Error(2)
}
