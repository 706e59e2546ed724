package models

import "time"

// Chat is a conversation, either direct (exactly two participants, never
// named) or group (named or started with more than one other participant).
type Chat struct {
	ID        string    `db:"id" json:"id"`
	Name      *string   `db:"name" json:"name,omitempty"`
	IsGroup   bool      `db:"is_group" json:"is_group"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	// DirectKey is the sorted "minID:maxID" participant pair for direct
	// chats, NULL for groups. Unique, so two racing creation requests for
	// the same pair collapse onto one row.
	DirectKey *string `db:"direct_key" json:"-"`
}

// Participant is the membership edge between a user and a chat. Edges are
// owned by their chat and cascade-deleted with it.
type Participant struct {
	ChatID   string    `db:"chat_id" json:"chat_id"`
	UserID   string    `db:"user_id" json:"user_id"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
}

// ChatSummary is the per-user API view of a chat. For direct chats Name is
// the other participant's username.
type ChatSummary struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	IsGroup      bool         `json:"is_group"`
	CreatedAt    time.Time    `json:"created_at"`
	Participants []PublicUser `json:"participants"`
}
