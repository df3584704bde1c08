package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Kerhoff/QuestboT/internal/models"
	"github.com/Kerhoff/QuestboT/internal/repository"
)

type submissionRepository struct {
	db *sql.DB
}

// NewSubmissionRepository creates a new photo submission repository
func NewSubmissionRepository(db *sql.DB) repository.SubmissionRepository {
	return &submissionRepository{db: db}
}

// Submit runs the link check and the insert in one transaction so a link
// replaced between the two statements cannot produce a submission pointing at
// a stale parent chat.
func (r *submissionRepository) Submit(ctx context.Context, sub *models.PhotoSubmission) (*models.PhotoSubmission, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var parentChatID int64
	err = tx.QueryRowContext(ctx,
		`SELECT parent_chat_id FROM family_links WHERE child_session_id = $1 AND active`,
		sub.ChildSessionID,
	).Scan(&parentChatID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotLinked
		}
		return nil, fmt.Errorf("failed to check family link: %w", err)
	}

	sub.ParentChatID = parentChatID
	sub.Status = models.SubmissionStatusPending
	sub.SubmittedAt = time.Now()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO photo_submissions (submission_id, child_session_id, parent_chat_id, task_id, task_name, photo_url, photo_path, status, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, submitted_at`,
		sub.SubmissionID,
		sub.ChildSessionID,
		sub.ParentChatID,
		sub.TaskID,
		sub.TaskName,
		sub.PhotoURL,
		sub.PhotoPath,
		sub.Status,
		sub.SubmittedAt,
	).Scan(&sub.ID, &sub.SubmittedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert photo submission: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit photo submission: %w", err)
	}

	return sub, nil
}

func (r *submissionRepository) GetBySubmissionID(ctx context.Context, submissionID string) (*models.PhotoSubmission, error) {
	query := `
		SELECT id, submission_id, child_session_id, parent_chat_id, task_id, task_name, photo_url, photo_path, status, parent_comment, submitted_at, reviewed_at
		FROM photo_submissions
		WHERE submission_id = $1`

	sub := &models.PhotoSubmission{}
	err := r.db.QueryRowContext(ctx, query, submissionID).Scan(
		&sub.ID,
		&sub.SubmissionID,
		&sub.ChildSessionID,
		&sub.ParentChatID,
		&sub.TaskID,
		&sub.TaskName,
		&sub.PhotoURL,
		&sub.PhotoPath,
		&sub.Status,
		&sub.ParentComment,
		&sub.SubmittedAt,
		&sub.ReviewedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get photo submission: %w", err)
	}

	return sub, nil
}

// UpdateStatus only touches still-pending rows. A second press on an already
// actioned review button therefore changes nothing and reports false.
func (r *submissionRepository) UpdateStatus(ctx context.Context, submissionID string, status models.SubmissionStatus, comment *string) (bool, error) {
	query := `
		UPDATE photo_submissions
		SET status = $2, parent_comment = $3, reviewed_at = $4
		WHERE submission_id = $1 AND status = 'pending'`

	result, err := r.db.ExecContext(ctx, query, submissionID, status, comment, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to update submission status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}
