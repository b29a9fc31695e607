package main

import (
	"net/http"

	"chitchat/internal/httputil"
	"chitchat/internal/service"
	"chitchat/internal/validation"
)

type registerRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Pic      string `json:"pic"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authResponse is the signed-in user together with their token.
type authResponse struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Pic      string `json:"pic"`
	IsAdmin  bool   `json:"isAdmin"`
	Token    string `json:"token"`
}

func newAuthResponse(res *service.AuthResult) authResponse {
	return authResponse{
		ID:       res.User.ID,
		Name:     res.User.Name,
		Username: res.User.Username,
		Email:    res.User.Email,
		Pic:      res.User.Pic,
		IsAdmin:  res.User.IsAdmin,
		Token:    res.Token,
	}
}

func (s *Server) handleRegister() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if !s.decode(w, r, &req) {
			return
		}

		res, err := s.svc.Users.Register(r.Context(), validation.Registration{
			Name:     req.Name,
			Username: req.Username,
			Email:    req.Email,
			Password: req.Password,
		}, req.Pic)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, newAuthResponse(res))
	}
}

func (s *Server) handleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if !s.decode(w, r, &req) {
			return
		}

		res, err := s.svc.Users.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, newAuthResponse(res))
	}
}

func (s *Server) handleSearchUsers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := s.caller(w, r)
		if !ok {
			return
		}

		users, err := s.svc.Users.Search(r.Context(), caller.ID, r.URL.Query().Get("search"))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, users)
	}
}
