package models

import "time"

const DefaultAvatarURL = "https://icon-library.com/images/anonymous-avatar-icon/anonymous-avatar-icon-25.jpg"

type User struct {
	ID           string    `json:"_id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Pic          string    `json:"pic"`
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserSummary is the public projection of a user attached to messages and chats.
type UserSummary struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Pic   string `json:"pic"`
	Email string `json:"email,omitempty"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Pic: u.Pic, Email: u.Email}
}
