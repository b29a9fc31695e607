package fanout

import (
	"sync"

	"github.com/google/uuid"
)

// Session is one live push connection. Frames are queued in publish order
// and drained by a single writer, so each connection sees a FIFO stream.
type Session struct {
	id     string
	userID string

	mu     sync.Mutex
	send   chan []byte
	closed bool
	chats  map[string]struct{}
	done   chan struct{}
}

func newSession(userID string, bufferSize int) *Session {
	return &Session{
		id:     uuid.NewString(),
		userID: userID,
		send:   make(chan []byte, bufferSize),
		chats:  make(map[string]struct{}),
		done:   make(chan struct{}),
	}
}

func (s *Session) ID() string     { return s.id }
func (s *Session) UserID() string { return s.userID }

// Outbound yields queued frames; it is closed when the session is
// unregistered.
func (s *Session) Outbound() <-chan []byte {
	return s.send
}

// Done is closed when the session is unregistered.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Joined reports whether the session is bound to chatID.
func (s *Session) Joined(chatID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.chats[chatID]
	return ok
}

// enqueue never blocks: a full or closed queue drops the frame.
func (s *Session) enqueue(frame []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

func (s *Session) join(chatID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.chats[chatID] = struct{}{}
	return true
}

func (s *Session) leave(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chats, chatID)
}

// close marks the session closed and returns the chats it was bound to.
// It returns ok=false if it was already closed.
func (s *Session) close() ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false
	}
	s.closed = true
	close(s.send)
	close(s.done)

	chats := make([]string, 0, len(s.chats))
	for chatID := range s.chats {
		chats = append(chats, chatID)
	}
	s.chats = nil
	return chats, true
}
