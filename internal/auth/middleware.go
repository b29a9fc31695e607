package auth

import (
	"context"
	"net/http"
	"strings"

	apperrors "chitchat/internal/errors"
	"chitchat/internal/httputil"
	"chitchat/internal/models"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type contextKey string

const userKey contextKey = "user"

// UserLookup resolves the user named in a token.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// WithUser stores the authenticated user on ctx.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userKey).(*models.User)
	return user, ok && user != nil
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Authenticate resolves a raw token to a user.
func Authenticate(ctx context.Context, tokens *TokenManager, users UserLookup, token string) (*models.User, error) {
	if token == "" {
		return nil, apperrors.NewAuthError("no token")
	}
	claims, err := tokens.Verify(token)
	if err != nil {
		return nil, apperrors.NewAuthError("token failed")
	}
	user, err := users.GetUser(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.NewAuthError("unknown user")
	}
	return user, nil
}

// Middleware rejects requests without a valid bearer token and places the
// caller on the request context.
func Middleware(tokens *TokenManager, users UserLookup, logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := Authenticate(r.Context(), tokens, users, BearerToken(r))
			if err != nil {
				httputil.WriteError(w, r, logger, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}
