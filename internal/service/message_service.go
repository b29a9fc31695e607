package service

import (
	"context"
	"time"

	"chitchat/internal/constants"
	apperrors "chitchat/internal/errors"
	"chitchat/internal/features"
	"chitchat/internal/models"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// Publisher pushes a delivered message to every connected session of the
// given participants except the sender.
type Publisher interface {
	PublishMessage(ctx context.Context, msg *models.Message, participantIDs []string)
}

// TextTranslator translates message text into a named language.
type TextTranslator interface {
	Translate(ctx context.Context, content, targetLanguage string) (string, error)
}

// MessageService is the entry point for message operations coming from
// authenticated callers.
type MessageService struct {
	engine     *SchedulingEngine
	messages   MessageStore
	chats      ConversationReader
	publisher  Publisher
	translator TextTranslator
	flags      *features.FlagManager
	logger     *logrus.Logger
	now        func() time.Time
}

func NewMessageService(engine *SchedulingEngine, messages MessageStore, chats ConversationReader, publisher Publisher, translator TextTranslator, flags *features.FlagManager, logger *logrus.Logger) *MessageService {
	return &MessageService{
		engine:     engine,
		messages:   messages,
		chats:      chats,
		publisher:  publisher,
		translator: translator,
		flags:      flags,
		logger:     logger,
		now:        time.Now,
	}
}

// SubmitMessage stores a message from senderID. A message delivered now is
// pushed to the other participants before returning; a pending one is not.
func (s *MessageService) SubmitMessage(ctx context.Context, senderID, chatID, content string, scheduledFor *time.Time) (*models.Message, error) {
	sub, err := s.engine.ClassifyAndPersist(ctx, SubmitRequest{
		SenderID:     senderID,
		ChatID:       chatID,
		Content:      content,
		ScheduledFor: scheduledFor,
	})
	if err != nil {
		return nil, err
	}

	if sub.Delivered {
		s.publisher.PublishMessage(ctx, sub.Message, sub.Conversation.ParticipantIDs)
	}
	return sub.Message, nil
}

// ListMessages returns the messages of chatID visible to callerID right
// now. Messages scheduled in the future are left out; due ones are included
// even before the reconciler promotes them.
func (s *MessageService) ListMessages(ctx context.Context, callerID, chatID string) ([]*models.Message, error) {
	conv, err := s.chats.GetConversation(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, apperrors.NewNotFoundError("chat", chatID)
	}
	if !conv.HasParticipant(callerID) {
		return nil, apperrors.NewForbiddenError("read this chat")
	}

	msgs, err := s.messages.ListMessages(ctx, chatID, s.now())
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []*models.Message{}
	}
	return msgs, nil
}

// ListScheduled returns messages still waiting for their delivery time.
// Administrators see every sender's queue, other callers only their own.
func (s *MessageService) ListScheduled(ctx context.Context, caller *models.User) ([]*models.Message, error) {
	senderID := caller.ID
	if caller.IsAdmin {
		senderID = ""
	}

	msgs, err := s.messages.ListScheduled(ctx, senderID, s.now(), constants.DefaultScheduledListLimit)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []*models.Message{}
	}
	return msgs, nil
}

// MarkRead records that callerID has seen messageID and returns the message
// with its updated read list. A message still waiting for its delivery time
// is reported as missing.
func (s *MessageService) MarkRead(ctx context.Context, callerID, messageID string) (*models.Message, error) {
	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil || msg.IsPending(s.now()) {
		return nil, apperrors.NewNotFoundError("message", messageID)
	}

	conv, err := s.chats.GetConversation(ctx, msg.ChatID)
	if err != nil {
		return nil, err
	}
	if conv == nil || !conv.HasParticipant(callerID) {
		return nil, apperrors.NewForbiddenError("read this chat")
	}

	if err := s.messages.MarkRead(ctx, messageID, callerID); err != nil {
		return nil, err
	}
	if !lo.Contains(msg.ReadBy, callerID) {
		msg.ReadBy = append(msg.ReadBy, callerID)
	}
	return msg, nil
}

// Translate translates content into targetLanguage.
func (s *MessageService) Translate(ctx context.Context, content, targetLanguage string) (string, error) {
	if !s.flags.IsEnabled(features.FlagTranslation) {
		return "", apperrors.NewForbiddenError("translate messages")
	}
	return s.translator.Translate(ctx, content, targetLanguage)
}
