package main

import (
	"net/http"

	"chitchat/internal/auth"
	apperrors "chitchat/internal/errors"
	"chitchat/internal/httputil"
	"chitchat/internal/models"
)

// caller returns the user placed on the context by the auth middleware.
func (s *Server) caller(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		s.fail(w, r, apperrors.NewAuthError("no user on request"))
		return nil, false
	}
	return user, true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	httputil.WriteError(w, r, s.logger, err)
}

// decode reads the JSON body into v, answering 400 itself on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := httputil.DecodeJSON(w, r, v); err != nil {
		s.fail(w, r, err)
		return false
	}
	return true
}
