package main

import (
	"net/http"
	"strings"
	"time"

	apperrors "chitchat/internal/errors"
	"chitchat/internal/httputil"
	"chitchat/internal/validation"

	"github.com/gorilla/mux"
)

type submitMessageRequest struct {
	Content      string  `json:"content"`
	ChatID       string  `json:"chatId"`
	ScheduledFor *string `json:"scheduledFor"`
}

type translateRequest struct {
	Content        string `json:"content"`
	TargetLanguage string `json:"targetLanguage"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
}

// parseSchedule accepts a missing or empty value as "deliver now".
func parseSchedule(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	at, err := time.Parse(time.RFC3339, strings.TrimSpace(*raw))
	if err != nil {
		return nil, apperrors.NewValidationError("scheduledFor", *raw,
			"scheduledFor must be an RFC3339 timestamp")
	}
	return &at, nil
}

func (s *Server) handleSubmitMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := s.caller(w, r)
		if !ok {
			return
		}
		var req submitMessageRequest
		if !s.decode(w, r, &req) {
			return
		}
		scheduledFor, err := parseSchedule(req.ScheduledFor)
		if err != nil {
			s.fail(w, r, err)
			return
		}

		msg, err := s.svc.Messages.SubmitMessage(r.Context(), caller.ID, req.ChatID, req.Content, scheduledFor)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, msg)
	}
}

func (s *Server) handleListMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := s.caller(w, r)
		if !ok {
			return
		}
		chatID := mux.Vars(r)["chatId"]
		if err := validation.ValidateID("chatId", chatID); err != nil {
			s.fail(w, r, err)
			return
		}

		msgs, err := s.svc.Messages.ListMessages(r.Context(), caller.ID, chatID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, msgs)
	}
}

func (s *Server) handleMarkRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := s.caller(w, r)
		if !ok {
			return
		}
		messageID := mux.Vars(r)["messageId"]
		if err := validation.ValidateID("messageId", messageID); err != nil {
			s.fail(w, r, err)
			return
		}

		msg, err := s.svc.Messages.MarkRead(r.Context(), caller.ID, messageID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, msg)
	}
}

func (s *Server) handleListScheduled() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := s.caller(w, r)
		if !ok {
			return
		}

		msgs, err := s.svc.Messages.ListScheduled(r.Context(), caller)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, msgs)
	}
}

func (s *Server) handleTranslate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req translateRequest
		if !s.decode(w, r, &req) {
			return
		}

		text, err := s.svc.Messages.Translate(r.Context(), req.Content, req.TargetLanguage)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, translateResponse{TranslatedText: text})
	}
}
