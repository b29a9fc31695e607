package service

import (
	"context"
	"strings"
	"time"

	"chitchat/internal/constants"
	apperrors "chitchat/internal/errors"
	"chitchat/internal/features"
	"chitchat/internal/metrics"
	"chitchat/internal/models"

	"github.com/sirupsen/logrus"
)

// MessageStore persists messages and performs promotions.
type MessageStore interface {
	InsertMessage(ctx context.Context, msg *models.Message, deliverNow bool) error
	PromoteMessage(ctx context.Context, messageID, chatID string, at time.Time) (bool, error)
	RecordDeliveryFailure(ctx context.Context, messageID string, maxAttempts int, at time.Time) (int, bool, error)
	ListMessages(ctx context.Context, chatID string, now time.Time) ([]*models.Message, error)
	ListScheduled(ctx context.Context, senderID string, now time.Time, limit int) ([]*models.Message, error)
	ListDueMessages(ctx context.Context, now time.Time, limit int) ([]*models.Message, error)
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	MarkRead(ctx context.Context, messageID, userID string) error
}

// ConversationReader resolves a conversation and its participants. A
// missing conversation is reported as nil, nil.
type ConversationReader interface {
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
}

// UserReader resolves a user. A missing user is reported as nil, nil.
type UserReader interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// SubmitRequest is a message as handed in by an authenticated sender.
type SubmitRequest struct {
	SenderID     string
	ChatID       string
	Content      string
	ScheduledFor *time.Time
}

// Submission is the outcome of classifying and persisting a message.
// Delivered messages must be fanned out by the caller; pending ones must not.
type Submission struct {
	Message      *models.Message
	Conversation *models.Conversation
	Delivered    bool
}

// SchedulingEngine decides whether a new message is due now or later and
// persists it accordingly.
type SchedulingEngine struct {
	messages MessageStore
	chats    ConversationReader
	users    UserReader
	flags    *features.FlagManager
	registry *metrics.Registry
	logger   *logrus.Logger
	now      func() time.Time
}

func NewSchedulingEngine(messages MessageStore, chats ConversationReader, users UserReader, flags *features.FlagManager, registry *metrics.Registry, logger *logrus.Logger) *SchedulingEngine {
	return &SchedulingEngine{
		messages: messages,
		chats:    chats,
		users:    users,
		flags:    flags,
		registry: metrics.OrGlobal(registry),
		logger:   logger,
		now:      time.Now,
	}
}

// ClassifyAndPersist validates req and stores exactly one message. A message
// without a schedule, or whose schedule is not in the future, is stored as
// delivered and becomes the conversation's latest message in the same
// transaction. A future schedule stores it as pending and leaves the
// conversation untouched.
func (e *SchedulingEngine) ClassifyAndPersist(ctx context.Context, req SubmitRequest) (*Submission, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, apperrors.NewValidationError("content", "", "Message content is required")
	}
	if len(content) > constants.MaxContentLength {
		return nil, apperrors.NewValidationError("content", "", "Message content is too long")
	}
	chatID := strings.TrimSpace(req.ChatID)
	if chatID == "" {
		return nil, apperrors.NewValidationError("chatId", "", "Chat is required")
	}

	conv, err := e.chats.GetConversation(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, apperrors.NewValidationError("chatId", chatID, "Chat does not exist")
	}
	if !conv.HasParticipant(req.SenderID) {
		return nil, apperrors.NewForbiddenError("send messages to this chat")
	}

	now := e.now().UTC()
	msg := &models.Message{
		SenderID:  req.SenderID,
		ChatID:    chatID,
		Content:   content,
		ReadBy:    []string{},
		CreatedAt: now,
	}

	deliverNow := req.ScheduledFor == nil || !req.ScheduledFor.After(now)
	if !deliverNow {
		if !e.flags.IsEnabled(features.FlagScheduledMessages) {
			return nil, apperrors.NewValidationError("scheduledFor", req.ScheduledFor.Format(time.RFC3339), "Scheduled messages are disabled")
		}
		at := req.ScheduledFor.UTC()
		msg.ScheduledFor = &at
	}

	sender, err := e.users.GetUser(ctx, req.SenderID)
	if err != nil {
		return nil, err
	}
	if sender != nil {
		summary := sender.Summary()
		msg.Sender = &summary
	}

	if err := e.messages.InsertMessage(ctx, msg, deliverNow); err != nil {
		return nil, err
	}

	kind := metrics.KindImmediate
	if !deliverNow {
		kind = metrics.KindScheduled
	}
	e.registry.IncrementCounter(metrics.MessagesSubmitted, map[string]string{"kind": kind}, "Messages accepted for delivery")

	fields := messageFields(ctx, msg.ID, msg.ChatID, msg.SenderID, msg.Content)
	fields[LogFieldKind] = kind
	if msg.ScheduledFor != nil {
		fields[LogFieldScheduledFor] = msg.ScheduledFor.Format(time.RFC3339)
	}
	e.logger.WithFields(fields).Info("Message stored")

	if deliverNow {
		conv.LatestMessageID = &msg.ID
		conv.LatestMessage = msg
	}
	return &Submission{Message: msg, Conversation: conv, Delivered: deliverNow}, nil
}
