package models

import "time"

// SubmissionStatus represents the review state of a photo submission
type SubmissionStatus string

const (
	SubmissionStatusPending  SubmissionStatus = "pending"
	SubmissionStatusApproved SubmissionStatus = "approved"
	SubmissionStatusRejected SubmissionStatus = "rejected"
)

// PhotoSubmission represents one child-submitted task photo and its review
// outcome. The parent chat ID is copied from the family link at submission
// time so a later re-link does not redirect an in-flight review.
type PhotoSubmission struct {
	ID             int64            `json:"id" db:"id"`
	SubmissionID   string           `json:"submission_id" db:"submission_id"`
	ChildSessionID string           `json:"child_session_id" db:"child_session_id"`
	ParentChatID   int64            `json:"parent_chat_id" db:"parent_chat_id"`
	TaskID         int64            `json:"task_id" db:"task_id"`
	TaskName       string           `json:"task_name" db:"task_name"`
	PhotoURL       string           `json:"photo_url" db:"photo_url"`
	PhotoPath      string           `json:"photo_path" db:"photo_path"`
	Status         SubmissionStatus `json:"status" db:"status"`
	ParentComment  *string          `json:"parent_comment" db:"parent_comment"`
	SubmittedAt    time.Time        `json:"submitted_at" db:"submitted_at"`
	ReviewedAt     *time.Time       `json:"reviewed_at" db:"reviewed_at"`
}

// IsPending returns true if the submission has not been reviewed yet
func (s *PhotoSubmission) IsPending() bool {
	return s.Status == SubmissionStatusPending
}

// IsReviewed returns true if the submission has a final verdict
func (s *PhotoSubmission) IsReviewed() bool {
	return s.Status == SubmissionStatusApproved || s.Status == SubmissionStatusRejected
}
