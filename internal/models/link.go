package models

import "time"

// FamilyLink represents the trust relation between one child quest session
// and the parent Telegram chat that reviews its photos. At most one active
// link exists per session; re-linking replaces the previous record.
type FamilyLink struct {
	ID              int64     `json:"id" db:"id"`
	ChildSessionID  string    `json:"child_session_id" db:"child_session_id"`
	ParentChatID    int64     `json:"parent_chat_id" db:"parent_chat_id"`
	ParentUsername  string    `json:"parent_username" db:"parent_username"`
	ParentFirstName string    `json:"parent_first_name" db:"parent_first_name"`
	LinkedAt        time.Time `json:"linked_at" db:"linked_at"`
	Active          bool      `json:"active" db:"active"`
}

// DisplayName returns the parent's first name, falling back to the username
// and finally to a generic label.
func (l *FamilyLink) DisplayName() string {
	if l.ParentFirstName != "" {
		return l.ParentFirstName
	}
	if l.ParentUsername != "" {
		return "@" + l.ParentUsername
	}
	return "Родитель"
}
