package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chat-backend/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for chat messages.
type MessageRepository interface {
	AppendMessage(ctx context.Context, chatID int, senderID int, content string) (models.Message, error)
	ListMessages(ctx context.Context, chatID int) ([]models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// AppendMessage stores a message; the database assigns id and timestamp.
func (r *MessageRepo) AppendMessage(ctx context.Context, chatID int, senderID int, content string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (chat_id, sender_id, content) VALUES ($1, $2, $3)
        RETURNING id, chat_id, sender_id, content, created_at`, chatID, senderID, content).
		StructScan(&msg)
	return msg, err
}

// ListMessages returns the chat history ascending by creation time,
// ties broken by insertion order.
func (r *MessageRepo) ListMessages(ctx context.Context, chatID int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT id, chat_id, sender_id, content, created_at
        FROM messages WHERE chat_id=$1 ORDER BY created_at ASC, id ASC`, chatID)
	return msgs, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT id, chat_id, sender_id, content, created_at FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}
