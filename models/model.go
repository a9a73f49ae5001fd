package models

import "time"

// Contact relationship statuses.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusBlocked  = "blocked"
)

// Profile represents a user profile row
type Profile struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url"`
	IsOnline    bool      `json:"is_online"`
	LastSeen    time.Time `json:"last_seen"`
}

// Contact represents a directed contact edge, joined with the target profile
type Contact struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ContactID string    `json:"contact_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	Profile   Profile   `json:"profile"`
}

// Message represents a directed chat message
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

// Chat pairs a contact with the message history exchanged with it. It is
// derived view state, rebuilt on every reconciliation pass and never persisted.
type Chat struct {
	Contact     Contact   `json:"contact"`
	Messages    []Message `json:"messages"`
	LastMessage *Message  `json:"last_message,omitempty"`
	UnreadCount int       `json:"unread_count"`
}

// Status represents the current state of the bridge session
type Status struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
	Subscribed    bool   `json:"subscribed"`
	Contacts      int    `json:"contacts"`
	Chats         int    `json:"chats"`
	LastError     string `json:"last_error,omitempty"`
}
