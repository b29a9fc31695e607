package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"chitchat/internal/constants"
	"chitchat/internal/models"
)

// Kind identifies the type of a push-channel event.
type Kind string

const (
	// Client -> Server
	KindSetup      Kind = "setup"
	KindJoinChat   Kind = "join-chat"
	KindLeaveChat  Kind = "leave-chat"
	KindTyping     Kind = "typing"
	KindStopTyping Kind = "stop-typing"

	// Server -> Client
	KindSessionReady     Kind = "session-ready"
	KindMessageDelivered Kind = "message-delivered"
	KindTypingStarted    Kind = "typing-started"
	KindTypingStopped    Kind = "typing-stopped"
	KindError            Kind = "error"
)

// Error codes carried by error events
const (
	ErrCodeInvalidEvent = "invalid_event"
	ErrCodeForbidden    = "forbidden"
	ErrCodeDisabled     = "disabled"
	ErrCodeInternal     = "internal_error"
)

// Envelope wraps every event on the wire.
type Envelope struct {
	Type Kind            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ChatRef is the payload of join-chat, leave-chat, typing and stop-typing.
type ChatRef struct {
	ChatID string `json:"chatId"`
}

type SessionReady struct {
	UserID string `json:"userId"`
}

type MessageDelivered struct {
	Message *models.Message `json:"message"`
}

// Presence is the payload of typing-started and typing-stopped.
type Presence struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId,omitempty"`
}

type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ClientEvent is one of Setup, JoinChat, LeaveChat, Typing or StopTyping.
type ClientEvent interface {
	Kind() Kind
}

type Setup struct{}

type JoinChat struct{ ChatID string }

type LeaveChat struct{ ChatID string }

type Typing struct{ ChatID string }

type StopTyping struct{ ChatID string }

func (Setup) Kind() Kind      { return KindSetup }
func (JoinChat) Kind() Kind   { return KindJoinChat }
func (LeaveChat) Kind() Kind  { return KindLeaveChat }
func (Typing) Kind() Kind     { return KindTyping }
func (StopTyping) Kind() Kind { return KindStopTyping }

// InvalidEventError reports a frame rejected at the protocol boundary.
type InvalidEventError struct {
	Reason string
}

func (e *InvalidEventError) Error() string {
	return "invalid event: " + e.Reason
}

func invalid(format string, args ...any) error {
	return &InvalidEventError{Reason: fmt.Sprintf(format, args...)}
}

// ParseClientEvent decodes and validates a client frame. Unknown kinds and
// missing payload fields are rejected.
func ParseClientEvent(data []byte) (ClientEvent, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, invalid("malformed envelope")
	}

	switch env.Type {
	case KindSetup:
		return Setup{}, nil
	case KindJoinChat, KindLeaveChat, KindTyping, KindStopTyping:
		chatID, err := parseChatRef(env)
		if err != nil {
			return nil, err
		}
		switch env.Type {
		case KindJoinChat:
			return JoinChat{ChatID: chatID}, nil
		case KindLeaveChat:
			return LeaveChat{ChatID: chatID}, nil
		case KindTyping:
			return Typing{ChatID: chatID}, nil
		default:
			return StopTyping{ChatID: chatID}, nil
		}
	case "":
		return nil, invalid("missing event type")
	default:
		return nil, invalid("unknown event type %q", env.Type)
	}
}

func parseChatRef(env Envelope) (string, error) {
	if len(env.Data) == 0 {
		return "", invalid("%s requires chatId", env.Type)
	}
	var ref ChatRef
	if err := json.Unmarshal(env.Data, &ref); err != nil {
		return "", invalid("%s payload is malformed", env.Type)
	}
	ref.ChatID = strings.TrimSpace(ref.ChatID)
	if ref.ChatID == "" {
		return "", invalid("%s requires chatId", env.Type)
	}
	if len(ref.ChatID) > constants.MaxMessageIDLength {
		return "", invalid("chatId too long")
	}
	return ref.ChatID, nil
}

// NewEnvelope creates an envelope with the given type and data.
func NewEnvelope(kind Kind, data any) (*Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Envelope{Type: kind, Data: raw}, nil
}

// Encode renders a server event as a ready-to-send frame.
func Encode(kind Kind, data any) ([]byte, error) {
	env, err := NewEnvelope(kind, data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", kind, err)
	}
	return json.Marshal(env)
}

func SessionReadyFrame(userID string) ([]byte, error) {
	return Encode(KindSessionReady, SessionReady{UserID: userID})
}

func MessageDeliveredFrame(msg *models.Message) ([]byte, error) {
	return Encode(KindMessageDelivered, MessageDelivered{Message: msg})
}

// PresenceFrame renders typing-started when started is true and
// typing-stopped otherwise.
func PresenceFrame(chatID, userID string, started bool) ([]byte, error) {
	kind := KindTypingStopped
	if started {
		kind = KindTypingStarted
	}
	return Encode(kind, Presence{ChatID: chatID, UserID: userID})
}

func ErrorFrame(code, message string) ([]byte, error) {
	return Encode(KindError, ErrorEvent{Code: code, Message: message})
}
