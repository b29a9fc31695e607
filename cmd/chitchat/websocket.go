package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"chitchat/internal/auth"
	"chitchat/internal/constants"
	apperrors "chitchat/internal/errors"
	"chitchat/internal/fanout"
	"chitchat/internal/features"
	"chitchat/internal/models"
	"chitchat/internal/privacy"
	"chitchat/internal/protocol"
	"chitchat/internal/service"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

// handleWebSocket upgrades an authenticated request to a push connection.
// The token travels in the query string because browsers cannot set
// headers on a websocket handshake.
func (s *Server) handleWebSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := auth.Authenticate(r.Context(), s.svc.Tokens, s.svc.Directory, r.URL.Query().Get("token"))
		if err != nil {
			s.fail(w, r, err)
			return
		}

		// Server read and write timeouts must not apply to a long-lived
		// connection.
		rc := http.NewResponseController(w)
		_ = rc.SetReadDeadline(time.Time{})
		_ = rc.SetWriteDeadline(time.Time{})

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			s.logger.WithError(err).Warn("WebSocket upgrade failed")
			return
		}
		defer conn.CloseNow()
		conn.SetReadLimit(constants.MaxInboundFrameBytes)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		session := s.svc.Hub.Register(user.ID)
		defer s.svc.Hub.Unregister(session)

		log := s.logger.WithFields(logrus.Fields{
			service.LogFieldUserID:    privacy.MaskUserID(user.ID),
			service.LogFieldSessionID: session.ID(),
		})

		// Nothing else writes yet, so session-ready is always the first frame.
		if err := s.writeFrame(ctx, conn, mustFrame(protocol.SessionReadyFrame(user.ID))); err != nil {
			log.WithError(err).Debug("Failed to acknowledge push session")
			return
		}

		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			defer cancel()
			s.writePump(ctx, conn, session, log)
		}()

		s.readPump(ctx, conn, session, user, log)
		cancel()
		<-writerDone
		conn.Close(websocket.StatusNormalClosure, "")
	}
}

// readPump handles client events until the connection fails or ctx ends.
func (s *Server) readPump(ctx context.Context, conn *websocket.Conn, session *fanout.Session, user *models.User, log *logrus.Entry) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				log.Debug("Push connection closed by client")
			default:
				if ctx.Err() == nil && !errors.Is(err, context.Canceled) {
					log.WithError(err).Debug("Push connection read failed")
				}
			}
			return
		}
		if typ != websocket.MessageText {
			s.sendError(session, protocol.ErrCodeInvalidEvent, "only text frames are accepted")
			continue
		}
		s.handleEvent(ctx, session, user, data, log)
	}
}

// writePump is the only writer on conn. It drains the session queue in
// order and pings the client so dead connections are noticed.
func (s *Server) writePump(ctx context.Context, conn *websocket.Conn, session *fanout.Session, log *logrus.Entry) {
	ticker := time.NewTicker(s.pingInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-session.Outbound():
			if !ok {
				return
			}
			if err := s.writeFrame(ctx, conn, frame); err != nil {
				log.WithError(err).Debug("Push write failed, closing connection")
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, s.writeTimeout())
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				log.WithError(err).Debug("Push ping failed, closing connection")
				return
			}
		}
	}
}

func (s *Server) writeFrame(ctx context.Context, conn *websocket.Conn, frame []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, s.writeTimeout())
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, frame)
}

func (s *Server) handleEvent(ctx context.Context, session *fanout.Session, user *models.User, data []byte, log *logrus.Entry) {
	event, err := protocol.ParseClientEvent(data)
	if err != nil {
		s.sendError(session, protocol.ErrCodeInvalidEvent, err.Error())
		return
	}

	switch ev := event.(type) {
	case protocol.Setup:
		s.svc.Hub.Send(session, mustFrame(protocol.SessionReadyFrame(user.ID)))

	case protocol.JoinChat:
		conv, err := s.svc.Chats.GetConversation(ctx, ev.ChatID)
		switch {
		case apperrors.HasCode(err, apperrors.ErrCodeNotFound):
			s.sendError(session, protocol.ErrCodeForbidden, "not a participant of this chat")
			return
		case err != nil:
			apperrors.Entry(log, err).Warn("Failed to resolve chat for join")
			s.sendError(session, protocol.ErrCodeInternal, "could not join chat")
			return
		case !conv.HasParticipant(user.ID):
			s.sendError(session, protocol.ErrCodeForbidden, "not a participant of this chat")
			return
		}
		s.svc.Hub.Join(session, ev.ChatID)
		log.WithField(service.LogFieldChatID, ev.ChatID).Debug("Session joined chat")

	case protocol.LeaveChat:
		s.svc.Hub.Leave(session, ev.ChatID)

	case protocol.Typing:
		s.relayTyping(ctx, session, ev.ChatID, true)

	case protocol.StopTyping:
		s.relayTyping(ctx, session, ev.ChatID, false)
	}
}

// relayTyping forwards presence only from sessions joined to the chat.
// With typing indicators switched off the event is dropped silently.
func (s *Server) relayTyping(ctx context.Context, session *fanout.Session, chatID string, started bool) {
	if !s.svc.Flags.IsEnabled(features.FlagTypingIndicators) {
		return
	}
	if !session.Joined(chatID) {
		s.sendError(session, protocol.ErrCodeForbidden, "join the chat before sending typing events")
		return
	}
	s.svc.Hub.PublishPresence(ctx, session, chatID, started)
}

func (s *Server) sendError(session *fanout.Session, code, message string) {
	s.svc.Hub.Send(session, mustFrame(protocol.ErrorFrame(code, message)))
}

// mustFrame unwraps the encoders for fixed payload shapes, which cannot
// fail to marshal.
func mustFrame(frame []byte, err error) []byte {
	if err != nil {
		panic(err)
	}
	return frame
}
