package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Kerhoff/QuestboT/internal/models"
	"github.com/Kerhoff/QuestboT/internal/repository"
)

type botMessageRepository struct {
	db *sql.DB
}

// NewBotMessageRepository creates a new bot message log repository
func NewBotMessageRepository(db *sql.DB) repository.BotMessageRepository {
	return &botMessageRepository{db: db}
}

func (r *botMessageRepository) Create(ctx context.Context, msg *models.BotMessage) error {
	query := `
		INSERT INTO bot_messages (chat_id, message_id, submission_id, message_type, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	msg.CreatedAt = time.Now()

	err := r.db.QueryRowContext(ctx, query,
		msg.ChatID,
		msg.MessageID,
		msg.SubmissionID,
		msg.MessageType,
		msg.CreatedAt,
	).Scan(&msg.ID)

	if err != nil {
		return fmt.Errorf("failed to log bot message: %w", err)
	}

	return nil
}
