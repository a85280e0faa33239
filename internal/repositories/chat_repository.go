package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-backend/internal/models"
)

var ErrChatNotFound = errors.New("chat not found")

// ChatRepository abstracts chat and membership persistence.
type ChatRepository interface {
	CreateChat(ctx context.Context, name *string, participantIDs []int) (models.Chat, error)
	GetChat(ctx context.Context, chatID int) (models.Chat, error)
	ListChatsForUser(ctx context.Context, userID int) ([]models.ChatSummary, error)
	ListParticipantIDs(ctx context.Context, chatID int) ([]int, error)
	AddParticipant(ctx context.Context, chatID int, userID int) error
	IsParticipant(ctx context.Context, chatID int, userID int) (bool, error)
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// CreateChat creates a chat and its participant rows atomically.
// The participant set is deduplicated; unknown user ids are skipped so
// one bad id does not reject the whole chat.
func (r *ChatRepo) CreateChat(ctx context.Context, name *string, participantIDs []int) (models.Chat, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Chat{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var chat models.Chat
	if err = tx.QueryRowxContext(ctx, `INSERT INTO chats (name) VALUES ($1) RETURNING id, name, created_at`, name).
		StructScan(&chat); err != nil {
		return models.Chat{}, err
	}

	idSet := map[int]struct{}{}
	for _, id := range participantIDs {
		idSet[id] = struct{}{}
	}
	ids := make([]int, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		if _, err = tx.ExecContext(ctx, `INSERT INTO chat_participants (chat_id, user_id)
            SELECT $1, id FROM users WHERE id=$2`, chat.ID, id); err != nil {
			return models.Chat{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Chat{}, err
	}
	return chat, nil
}

// GetChat fetches a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT id, name, created_at FROM chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// ListChatsForUser returns the chats the user participates in, newest first.
func (r *ChatRepo) ListChatsForUser(ctx context.Context, userID int) ([]models.ChatSummary, error) {
	query := `SELECT c.id, c.name, c.created_at,
            (SELECT COUNT(*) FROM chat_participants p WHERE p.chat_id = c.id) AS participant_count
        FROM chats c
        INNER JOIN chat_participants cp ON cp.chat_id = c.id
        WHERE cp.user_id=$1
        ORDER BY c.created_at DESC`
	var chats []models.ChatSummary
	err := r.db.SelectContext(ctx, &chats, query, userID)
	return chats, err
}

// ListParticipantIDs returns the member ids of a chat.
func (r *ChatRepo) ListParticipantIDs(ctx context.Context, chatID int) ([]int, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM chats WHERE id=$1)`, chatID); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrChatNotFound
	}

	var ids pq.Int64Array
	if err := r.db.GetContext(ctx, &ids, `SELECT COALESCE(ARRAY_AGG(user_id ORDER BY user_id), '{}') FROM chat_participants WHERE chat_id=$1`, chatID); err != nil {
		return nil, err
	}
	result := make([]int, 0, len(ids))
	for _, id := range ids {
		result = append(result, int(id))
	}
	return result, nil
}

// AddParticipant appends a user to the chat. Existing membership is a no-op.
func (r *ChatRepo) AddParticipant(ctx context.Context, chatID int, userID int) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO chat_participants (chat_id, user_id) VALUES ($1, $2)
        ON CONFLICT (chat_id, user_id) DO NOTHING`, chatID, userID)
	return err
}

// IsParticipant checks whether a user belongs to the chat.
func (r *ChatRepo) IsParticipant(ctx context.Context, chatID int, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM chat_participants WHERE chat_id=$1 AND user_id=$2)`, chatID, userID)
	return exists, err
}
