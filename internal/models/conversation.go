package models

import (
	"time"

	"github.com/samber/lo"
)

// Conversation is a direct or group chat.
type Conversation struct {
	ID              string        `json:"_id"`
	Name            string        `json:"chatName"`
	IsGroup         bool          `json:"isGroupChat"`
	ParticipantIDs  []string      `json:"participantIds"`
	Users           []UserSummary `json:"users,omitempty"`
	GroupAdminID    string        `json:"groupAdminId,omitempty"`
	LatestMessageID *string       `json:"latestMessageId,omitempty"`
	LatestMessage   *Message      `json:"latestMessage,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

func (c *Conversation) HasParticipant(userID string) bool {
	return lo.Contains(c.ParticipantIDs, userID)
}

// Recipients returns every participant except the sender.
func (c *Conversation) Recipients(senderID string) []string {
	return lo.Without(c.ParticipantIDs, senderID)
}
