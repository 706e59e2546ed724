package models

import "time"

// Message is one per-recipient delivery record in the ledger. A message sent
// to a chat is fanned out into one row per recipient, so a row carries sender
// and recipient identifiers but no chat identifier. Rows are immutable once
// written except for the Read flag.
type Message struct {
	ID               string    `db:"id" json:"id"`
	SenderID         string    `db:"sender_id" json:"sender_id"`
	RecipientID      string    `db:"recipient_id" json:"recipient_id"`
	EncryptedContent string    `db:"encrypted_content" json:"encrypted_content"`
	BlobHash         *string   `db:"ipfs_hash" json:"ipfs_hash,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"timestamp"`
	Read             bool      `db:"read" json:"read"`
}

// MessageEvent is the lightweight realtime notification broadcast to a chat
// room after a fan-out commits. Subscribers pull the durable rows separately.
type MessageEvent struct {
	Type      string `json:"type"`
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id"`
	SenderID  string `json:"sender_id"`
}
