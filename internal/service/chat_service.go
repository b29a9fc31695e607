package service

import (
	"context"
	"strings"

	"chitchat/internal/constants"
	apperrors "chitchat/internal/errors"
	"chitchat/internal/models"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// ChatStore is the conversation directory plus the user lookups needed to
// build participant sets.
type ChatStore interface {
	ConversationReader
	UserReader
	GetUsersByIDs(ctx context.Context, ids []string) ([]*models.User, error)
	FindDirectConversation(ctx context.Context, a, b string) (*models.Conversation, error)
	ListConversationsForUser(ctx context.Context, userID string) ([]*models.Conversation, error)
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	RenameConversation(ctx context.Context, id, name string) error
	AddParticipant(ctx context.Context, chatID, userID string) error
	RemoveParticipant(ctx context.Context, chatID, userID string) error
}

type ChatService struct {
	store  ChatStore
	logger *logrus.Logger
}

func NewChatService(store ChatStore, logger *logrus.Logger) *ChatService {
	return &ChatService{store: store, logger: logger}
}

// AccessChat returns the one-to-one conversation between callerID and
// otherID, creating it on first use.
func (s *ChatService) AccessChat(ctx context.Context, callerID, otherID string) (*models.Conversation, error) {
	otherID = strings.TrimSpace(otherID)
	if otherID == "" {
		return nil, apperrors.NewValidationError("userId", "", "UserId param not sent with request")
	}
	if otherID == callerID {
		return nil, apperrors.NewValidationError("userId", otherID, "Cannot start a chat with yourself")
	}

	other, err := s.store.GetUser(ctx, otherID)
	if err != nil {
		return nil, err
	}
	if other == nil {
		return nil, apperrors.NewNotFoundError("user", otherID)
	}

	existing, err := s.store.FindDirectConversation(ctx, callerID, otherID)
	if err != nil || existing != nil {
		return existing, err
	}

	conv := &models.Conversation{
		Name:           "sender",
		ParticipantIDs: []string{callerID, otherID},
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		LogFieldChatID:    conv.ID,
		LogFieldOperation: "access_chat",
	}).Info("Created direct chat")
	return s.mustGet(ctx, conv.ID)
}

// ListChats returns callerID's conversations, most recently active first.
func (s *ChatService) ListChats(ctx context.Context, callerID string) ([]*models.Conversation, error) {
	convs, err := s.store.ListConversationsForUser(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if convs == nil {
		convs = []*models.Conversation{}
	}
	return convs, nil
}

// CreateGroup creates a group chat administered by callerID. At least two
// other users are required.
func (s *ChatService) CreateGroup(ctx context.Context, callerID, name string, userIDs []string) (*models.Conversation, error) {
	name, err := validateChatName(name)
	if err != nil {
		return nil, err
	}

	members := lo.Uniq(lo.Without(userIDs, callerID, ""))
	if len(members) < constants.MinGroupMembers {
		return nil, apperrors.NewValidationError("users", "", "More than 2 users are required to form a group chat")
	}

	found, err := s.store.GetUsersByIDs(ctx, members)
	if err != nil {
		return nil, err
	}
	if len(found) != len(members) {
		known := lo.Map(found, func(u *models.User, _ int) string { return u.ID })
		missing, _ := lo.Difference(members, known)
		return nil, apperrors.NewNotFoundError("user", strings.Join(missing, ","))
	}

	conv := &models.Conversation{
		Name:           name,
		IsGroup:        true,
		GroupAdminID:   callerID,
		ParticipantIDs: append(members, callerID),
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		LogFieldChatID:    conv.ID,
		LogFieldCount:     len(conv.ParticipantIDs),
		LogFieldOperation: "create_group",
	}).Info("Created group chat")
	return s.mustGet(ctx, conv.ID)
}

// RenameGroup renames a group chat. Any participant may rename it.
func (s *ChatService) RenameGroup(ctx context.Context, callerID, chatID, name string) (*models.Conversation, error) {
	name, err := validateChatName(name)
	if err != nil {
		return nil, err
	}
	conv, err := s.groupFor(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(callerID) {
		return nil, apperrors.NewForbiddenError("rename this chat")
	}

	if err := s.store.RenameConversation(ctx, chatID, name); err != nil {
		return nil, err
	}
	return s.mustGet(ctx, chatID)
}

// AddToGroup adds userID to a group. Only the group admin may add members.
func (s *ChatService) AddToGroup(ctx context.Context, callerID, chatID, userID string) (*models.Conversation, error) {
	conv, err := s.groupFor(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if conv.GroupAdminID != callerID {
		return nil, apperrors.NewForbiddenError("add members to this chat")
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.NewNotFoundError("user", userID)
	}

	if err := s.store.AddParticipant(ctx, chatID, userID); err != nil {
		return nil, err
	}
	return s.mustGet(ctx, chatID)
}

// RemoveFromGroup removes userID from a group. The admin may remove anyone;
// other participants may only remove themselves.
func (s *ChatService) RemoveFromGroup(ctx context.Context, callerID, chatID, userID string) (*models.Conversation, error) {
	conv, err := s.groupFor(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if conv.GroupAdminID != callerID && userID != callerID {
		return nil, apperrors.NewForbiddenError("remove members from this chat")
	}
	if !conv.HasParticipant(userID) {
		return nil, apperrors.NewNotFoundError("participant", userID)
	}

	if err := s.store.RemoveParticipant(ctx, chatID, userID); err != nil {
		return nil, err
	}
	return s.mustGet(ctx, chatID)
}

// GetConversation returns the conversation or a NotFound error.
func (s *ChatService) GetConversation(ctx context.Context, chatID string) (*models.Conversation, error) {
	return s.mustGet(ctx, chatID)
}

func (s *ChatService) groupFor(ctx context.Context, chatID string) (*models.Conversation, error) {
	conv, err := s.mustGet(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !conv.IsGroup {
		return nil, apperrors.NewValidationError("chatId", chatID, "Chat is not a group chat")
	}
	return conv, nil
}

func (s *ChatService) mustGet(ctx context.Context, chatID string) (*models.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, apperrors.NewNotFoundError("chat", chatID)
	}
	return conv, nil
}

func validateChatName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperrors.NewValidationError("chatName", "", "Chat name is required")
	}
	if len(name) > constants.MaxChatNameLength {
		return "", apperrors.NewValidationError("chatName", "", "Chat name is too long")
	}
	return name, nil
}
