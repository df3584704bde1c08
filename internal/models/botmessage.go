package models

import "time"

// Message type tags recorded with each bot message
const (
	MessageTypePhotoReview = "photo_review"
	MessageTypeLinkRequest = "link_request"
)

// BotMessage is an append-only log entry for a message the bot sent to a
// parent chat, kept for traceability.
type BotMessage struct {
	ID           int64     `json:"id" db:"id"`
	ChatID       int64     `json:"chat_id" db:"chat_id"`
	MessageID    int       `json:"message_id" db:"message_id"`
	SubmissionID *string   `json:"submission_id" db:"submission_id"`
	MessageType  *string   `json:"message_type" db:"message_type"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
