package store

import (
	"context"

	"chat-server/internal/apperr"
	"chat-server/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PgNotificationStore struct {
	pool *pgxpool.Pool
}

func NewPgNotificationStore(pool *pgxpool.Pool) *PgNotificationStore {
	return &PgNotificationStore{pool: pool}
}

func (s *PgNotificationStore) Create(ctx context.Context, n *models.Notification) error {
	query := `INSERT INTO notifications (id, user_id, title, content, type) VALUES ($1, $2, $3, $4, $5) RETURNING created_at`
	return s.pool.QueryRow(ctx, query, n.ID, n.UserID, n.Title, n.Content, n.Type).Scan(&n.CreatedAt)
}

func (s *PgNotificationStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Notification, error) {
	query := `SELECT id, user_id, title, content, type, is_read, created_at FROM notifications WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := s.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.Type, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

func (s *PgNotificationStore) MarkRead(ctx context.Context, id, userID string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE notifications SET is_read = true WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.ErrNotFound, "Notification not found")
	}
	return nil
}
