package models

import (
	"time"
)

// Message is a chat message. A message with a nil ScheduledFor is delivered;
// a non-nil ScheduledFor means it is still pending promotion.
type Message struct {
	ID           string        `json:"_id"`
	SenderID     string        `json:"senderId"`
	ChatID       string        `json:"chatId"`
	Content      string        `json:"content"`
	ScheduledFor *time.Time    `json:"scheduledFor"`
	ReadBy       []string      `json:"readBy"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
	Sender       *UserSummary  `json:"sender,omitempty"`
	Chat         *Conversation `json:"chat,omitempty"`

	DeliveryAttempts int        `json:"-"`
	DeliveryFailedAt *time.Time `json:"-"`
}

// IsDelivered reports whether the message has no outstanding schedule.
func (m *Message) IsDelivered() bool {
	return m.ScheduledFor == nil
}

// IsPending reports whether the message is scheduled strictly after now.
func (m *Message) IsPending(now time.Time) bool {
	return m.ScheduledFor != nil && m.ScheduledFor.After(now)
}

// IsDue reports whether the message is scheduled and its time has come.
func (m *Message) IsDue(now time.Time) bool {
	return m.ScheduledFor != nil && !m.ScheduledFor.After(now)
}
