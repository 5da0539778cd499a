package store

import (
	"context"
	"errors"
	"time"

	"chat-server/internal/apperr"
	"chat-server/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgMessageStore struct {
	pool *pgxpool.Pool
}

func NewPgMessageStore(pool *pgxpool.Pool) *PgMessageStore {
	return &PgMessageStore{pool: pool}
}

const messageColumns = `id, room_id, sender_id, content, is_edited, edited_at, delivered_at, read_at, created_at`

func scanMessage(row pgx.Row) (*models.Message, error) {
	var m models.Message
	err := row.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Content, &m.IsEdited, &m.EditedAt, &m.DeliveredAt, &m.ReadAt, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.ErrNotFound, "Message not found")
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *PgMessageStore) Create(ctx context.Context, msg *models.Message) error {
	query := `INSERT INTO messages (id, room_id, sender_id, content, delivered_at) VALUES ($1, $2, $3, $4, $5) RETURNING created_at`
	return s.pool.QueryRow(ctx, query, msg.ID, msg.RoomID, msg.SenderID, msg.Content, msg.DeliveredAt).Scan(&msg.CreatedAt)
}

func (s *PgMessageStore) FindByID(ctx context.Context, id string) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	return scanMessage(s.pool.QueryRow(ctx, query, id))
}

func (s *PgMessageStore) ListByRoom(ctx context.Context, roomID string, limit, offset int) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE room_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := s.pool.Query(ctx, query, roomID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Content, &m.IsEdited, &m.EditedAt, &m.DeliveredAt, &m.ReadAt, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (s *PgMessageStore) Edit(ctx context.Context, id, content string, editedAt time.Time) (*models.Message, error) {
	query := `UPDATE messages SET content = $2, is_edited = true, edited_at = $3 WHERE id = $1 RETURNING ` + messageColumns
	return scanMessage(s.pool.QueryRow(ctx, query, id, content, editedAt))
}

func (s *PgMessageStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.ErrNotFound, "Message not found")
	}
	return nil
}

func (s *PgMessageStore) MarkRead(ctx context.Context, id string, readAt time.Time) (*models.Message, error) {
	// COALESCE keeps the earlier timestamp: a repeated read receipt can
	// never move read_at backward.
	query := `UPDATE messages SET read_at = COALESCE(read_at, $2) WHERE id = $1 RETURNING ` + messageColumns
	return scanMessage(s.pool.QueryRow(ctx, query, id, readAt))
}
