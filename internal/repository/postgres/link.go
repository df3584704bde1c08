package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Kerhoff/QuestboT/internal/models"
	"github.com/Kerhoff/QuestboT/internal/repository"
)

type familyLinkRepository struct {
	db *sql.DB
}

// NewFamilyLinkRepository creates a new family link repository
func NewFamilyLinkRepository(db *sql.DB) repository.FamilyLinkRepository {
	return &familyLinkRepository{db: db}
}

func (r *familyLinkRepository) Upsert(ctx context.Context, link *models.FamilyLink) (*models.FamilyLink, error) {
	query := `
		INSERT INTO family_links (child_session_id, parent_chat_id, parent_username, parent_first_name, linked_at, active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		ON CONFLICT (child_session_id) DO UPDATE SET
			parent_chat_id = EXCLUDED.parent_chat_id,
			parent_username = EXCLUDED.parent_username,
			parent_first_name = EXCLUDED.parent_first_name,
			linked_at = EXCLUDED.linked_at,
			active = TRUE
		RETURNING id, linked_at`

	link.LinkedAt = time.Now()
	link.Active = true

	err := r.db.QueryRowContext(ctx, query,
		link.ChildSessionID,
		link.ParentChatID,
		link.ParentUsername,
		link.ParentFirstName,
		link.LinkedAt,
	).Scan(&link.ID, &link.LinkedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to upsert family link: %w", err)
	}

	return link, nil
}

func (r *familyLinkRepository) GetBySessionID(ctx context.Context, sessionID string) (*models.FamilyLink, error) {
	query := `
		SELECT id, child_session_id, parent_chat_id, parent_username, parent_first_name, linked_at, active
		FROM family_links
		WHERE child_session_id = $1 AND active`

	link := &models.FamilyLink{}
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(
		&link.ID,
		&link.ChildSessionID,
		&link.ParentChatID,
		&link.ParentUsername,
		&link.ParentFirstName,
		&link.LinkedAt,
		&link.Active,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get family link by session ID: %w", err)
	}

	return link, nil
}
