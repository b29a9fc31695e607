package main

import (
	"net/http"

	"chitchat/internal/httputil"
)

type accessChatRequest struct {
	UserID string `json:"userId"`
}

type createGroupRequest struct {
	Name  string   `json:"name"`
	Users []string `json:"users"`
}

type renameGroupRequest struct {
	ChatID   string `json:"chatId"`
	ChatName string `json:"chatName"`
}

type groupMemberRequest struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

func (s *Server) handleAccessChat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := s.caller(w, r)
		if !ok {
			return
		}
		var req accessChatRequest
		if !s.decode(w, r, &req) {
			return
		}

		conv, err := s.svc.Chats.AccessChat(r.Context(), caller.ID, req.UserID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, conv)
	}
}

func (s *Server) handleListChats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := s.caller(w, r)
		if !ok {
			return
		}

		convs, err := s.svc.Chats.ListChats(r.Context(), caller.ID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, convs)
	}
}

func (s *Server) handleCreateGroup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := s.caller(w, r)
		if !ok {
			return
		}
		var req createGroupRequest
		if !s.decode(w, r, &req) {
			return
		}

		conv, err := s.svc.Chats.CreateGroup(r.Context(), caller.ID, req.Name, req.Users)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, conv)
	}
}

func (s *Server) handleRenameGroup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := s.caller(w, r)
		if !ok {
			return
		}
		var req renameGroupRequest
		if !s.decode(w, r, &req) {
			return
		}

		conv, err := s.svc.Chats.RenameGroup(r.Context(), caller.ID, req.ChatID, req.ChatName)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, conv)
	}
}

func (s *Server) handleAddToGroup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := s.caller(w, r)
		if !ok {
			return
		}
		var req groupMemberRequest
		if !s.decode(w, r, &req) {
			return
		}

		conv, err := s.svc.Chats.AddToGroup(r.Context(), caller.ID, req.ChatID, req.UserID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, conv)
	}
}

func (s *Server) handleRemoveFromGroup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := s.caller(w, r)
		if !ok {
			return
		}
		var req groupMemberRequest
		if !s.decode(w, r, &req) {
			return
		}

		conv, err := s.svc.Chats.RemoveFromGroup(r.Context(), caller.ID, req.ChatID, req.UserID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, conv)
	}
}
