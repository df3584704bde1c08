package repository

import (
	"context"
	"errors"

	"github.com/Kerhoff/QuestboT/internal/models"
)

// ErrNotLinked is returned when a submission targets a session that has no
// active family link.
var ErrNotLinked = errors.New("no active family link for session")

// FamilyLinkRepository defines the interface for family link data operations
type FamilyLinkRepository interface {
	// Upsert creates the link or replaces an existing one for the same
	// child session (last write wins, link becomes active again).
	Upsert(ctx context.Context, link *models.FamilyLink) (*models.FamilyLink, error)
	// GetBySessionID returns the active link for the session, or nil when
	// no active link exists.
	GetBySessionID(ctx context.Context, sessionID string) (*models.FamilyLink, error)
}

// SubmissionRepository defines the interface for photo submission operations
type SubmissionRepository interface {
	// Submit checks the active family link and inserts a pending submission
	// carrying the link's parent chat ID, both inside one transaction.
	// Returns ErrNotLinked when the session has no active link.
	Submit(ctx context.Context, sub *models.PhotoSubmission) (*models.PhotoSubmission, error)
	GetBySubmissionID(ctx context.Context, submissionID string) (*models.PhotoSubmission, error)
	// UpdateStatus records the verdict for a still-pending submission and
	// stamps the review time. Returns false when the submission is unknown
	// or already reviewed, so a repeated button press cannot rewrite a
	// verdict.
	UpdateStatus(ctx context.Context, submissionID string, status models.SubmissionStatus, comment *string) (bool, error)
}

// BotMessageRepository defines the interface for the sent-message log
type BotMessageRepository interface {
	Create(ctx context.Context, msg *models.BotMessage) error
}
