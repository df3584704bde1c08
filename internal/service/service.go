package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Kerhoff/QuestboT/internal/models"
	"github.com/Kerhoff/QuestboT/internal/repository"
	"github.com/sirupsen/logrus"
)

// ErrNotLinked reports that a session has no active family link.
var ErrNotLinked = repository.ErrNotLinked

// Service is the central business logic layer that holds all repositories
// and provides high-level methods for the application.
type Service struct {
	logger      *logrus.Logger
	Links       repository.FamilyLinkRepository
	Submissions repository.SubmissionRepository
	BotMessages repository.BotMessageRepository
}

// New creates a new Service with all required dependencies.
func New(logger *logrus.Logger,
	links repository.FamilyLinkRepository,
	submissions repository.SubmissionRepository,
	botMessages repository.BotMessageRepository,
) *Service {
	return &Service{
		logger:      logger,
		Links:       links,
		Submissions: submissions,
		BotMessages: botMessages,
	}
}

// LinkParent creates or replaces the family link for the given child session.
// Re-linking with a different parent chat replaces the prior record, so at
// most one active link exists per session.
func (s *Service) LinkParent(ctx context.Context, sessionID string, parentChatID int64, username, firstName string) (*models.FamilyLink, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is empty")
	}

	link, err := s.Links.Upsert(ctx, &models.FamilyLink{
		ChildSessionID:  sessionID,
		ParentChatID:    parentChatID,
		ParentUsername:  strings.TrimSpace(username),
		ParentFirstName: strings.TrimSpace(firstName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to link parent (session=%s): %w", sessionID, err)
	}

	s.logger.Infof("Family link created: %s -> %d", sessionID, parentChatID)
	return link, nil
}

// CheckParentLink returns the active family link for the session, or nil when
// the session is not linked.
func (s *Service) CheckParentLink(ctx context.Context, sessionID string) (*models.FamilyLink, error) {
	link, err := s.Links.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to check parent link (session=%s): %w", sessionID, err)
	}
	return link, nil
}

// SubmitPhoto records a pending submission for the session's linked parent.
// Returns ErrNotLinked when no active link exists; the link check and the
// insert run in one storage transaction.
func (s *Service) SubmitPhoto(ctx context.Context, submissionID, sessionID string, taskID int64, taskName, photoURL, photoPath string) (*models.PhotoSubmission, error) {
	sub, err := s.Submissions.Submit(ctx, &models.PhotoSubmission{
		SubmissionID:   submissionID,
		ChildSessionID: sessionID,
		TaskID:         taskID,
		TaskName:       taskName,
		PhotoURL:       photoURL,
		PhotoPath:      photoPath,
	})
	if err != nil {
		if err == repository.ErrNotLinked {
			return nil, ErrNotLinked
		}
		return nil, fmt.Errorf("failed to submit photo (session=%s): %w", sessionID, err)
	}

	s.logger.Infof("Photo submitted: %s (task %q, session %s)", submissionID, taskName, sessionID)
	return sub, nil
}

// GetSubmission returns the submission by its public identifier, or nil when
// unknown.
func (s *Service) GetSubmission(ctx context.Context, submissionID string) (*models.PhotoSubmission, error) {
	sub, err := s.Submissions.GetBySubmissionID(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get submission %s: %w", submissionID, err)
	}
	return sub, nil
}

// ReviewSubmission records the parent's verdict. It returns false when the
// submission is unknown or already reviewed; a verdict is written at most
// once per submission.
func (s *Service) ReviewSubmission(ctx context.Context, submissionID string, status models.SubmissionStatus, comment *string) (bool, error) {
	if status != models.SubmissionStatusApproved && status != models.SubmissionStatusRejected {
		return false, fmt.Errorf("invalid review status %q", status)
	}

	reviewed, err := s.Submissions.UpdateStatus(ctx, submissionID, status, comment)
	if err != nil {
		return false, fmt.Errorf("failed to review submission %s: %w", submissionID, err)
	}
	if reviewed {
		s.logger.Infof("Photo %s: %s", status, submissionID)
	}
	return reviewed, nil
}

// LogBotMessage appends a record of a message the bot sent to a parent chat.
// Empty submissionID or messageType are stored as NULL.
func (s *Service) LogBotMessage(ctx context.Context, chatID int64, messageID int, submissionID, messageType string) error {
	msg := &models.BotMessage{
		ChatID:       chatID,
		MessageID:    messageID,
		SubmissionID: optional(submissionID),
		MessageType:  optional(messageType),
	}
	if err := s.BotMessages.Create(ctx, msg); err != nil {
		return fmt.Errorf("failed to log bot message (chat=%d): %w", chatID, err)
	}
	return nil
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
