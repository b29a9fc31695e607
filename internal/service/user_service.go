package service

import (
	"context"
	"errors"
	"strings"

	"chitchat/internal/auth"
	"chitchat/internal/constants"
	apperrors "chitchat/internal/errors"
	"chitchat/internal/models"
	"chitchat/internal/privacy"
	"chitchat/internal/validation"

	"github.com/sirupsen/logrus"
)

// UserStore is the user directory.
type UserStore interface {
	UserReader
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	SearchUsers(ctx context.Context, query, excludeID string, limit int) ([]*models.User, error)
}

// TokenIssuer mints access tokens for a user id.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

// AuthResult is a user together with a freshly issued token.
type AuthResult struct {
	User  *models.User
	Token string
}

type UserService struct {
	store  UserStore
	tokens TokenIssuer
	logger *logrus.Logger
}

func NewUserService(store UserStore, tokens TokenIssuer, logger *logrus.Logger) *UserService {
	return &UserService{store: store, tokens: tokens, logger: logger}
}

// Register validates and stores a new user and signs them in.
func (s *UserService) Register(ctx context.Context, reg validation.Registration, pic string) (*AuthResult, error) {
	reg.Email = strings.TrimSpace(reg.Email)
	if err := validation.ValidateRegistration(reg); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(reg.Password)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternalError, "failed to hash password")
	}
	if strings.TrimSpace(pic) == "" {
		pic = models.DefaultAvatarURL
	}

	user := &models.User{
		Name:         strings.TrimSpace(reg.Name),
		Username:     reg.Username,
		Email:        reg.Email,
		PasswordHash: hash,
		Pic:          pic,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		LogFieldUserID:    privacy.MaskUserID(user.ID),
		"email":           privacy.MaskEmail(user.Email),
		LogFieldOperation: "register",
	}).Info("User registered")
	return s.signIn(user)
}

// Login checks credentials. Unknown emails and wrong passwords produce the
// same authentication error.
func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("email", "", "Email and password are required")
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, invalidCredentials()
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.WithError(err).WithField(LogFieldUserID, privacy.MaskUserID(user.ID)).Warn("Stored password hash is unreadable")
		}
		return nil, invalidCredentials()
	}
	return s.signIn(user)
}

// Search matches name, email or username case-insensitively, excluding the
// caller. An empty query lists everyone else.
func (s *UserService) Search(ctx context.Context, callerID, query string) ([]*models.User, error) {
	query = strings.TrimSpace(query)
	if len(query) > constants.MaxSearchLength {
		return nil, apperrors.NewValidationError("search", "", "Search query is too long")
	}

	users, err := s.store.SearchUsers(ctx, query, callerID, constants.DefaultUserSearchLimit)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []*models.User{}
	}
	return users, nil
}

func (s *UserService) signIn(user *models.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternalError, "failed to issue token")
	}
	return &AuthResult{User: user, Token: token}, nil
}

func invalidCredentials() *apperrors.AppError {
	return apperrors.NewAuthError("invalid credentials").WithUserMessage("Invalid Email or Password")
}
