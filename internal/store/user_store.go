package store

import (
	"context"
	"errors"
	"time"

	"chat-server/internal/apperr"
	"chat-server/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgUserStore struct {
	pool *pgxpool.Pool
}

func NewPgUserStore(pool *pgxpool.Pool) *PgUserStore {
	return &PgUserStore{pool: pool}
}

func (s *PgUserStore) Create(ctx context.Context, username, passwordHash string) (*models.User, error) {
	user := models.User{ID: uuid.New().String(), Username: username}
	query := `INSERT INTO users (id, username, password_hash) VALUES ($1, $2, $3) RETURNING created_at`
	err := s.pool.QueryRow(ctx, query, user.ID, username, passwordHash).Scan(&user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, apperr.New(apperr.ErrConflict, "username already exists")
		}
		return nil, err
	}
	return &user, nil
}

func (s *PgUserStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	query := `SELECT id, username, password_hash, last_seen, created_at FROM users WHERE username = $1`
	err := s.pool.QueryRow(ctx, query, username).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.LastSeen, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.ErrNotFound, "User not found")
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *PgUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	query := `SELECT id, username, password_hash, last_seen, created_at FROM users WHERE id = $1`
	err := s.pool.QueryRow(ctx, query, id).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.LastSeen, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.ErrNotFound, "User not found")
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *PgUserStore) List(ctx context.Context) ([]models.User, error) {
	query := `SELECT id, username, last_seen, created_at FROM users ORDER BY username`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.LastSeen, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *PgUserStore) TouchLastSeen(ctx context.Context, id string, t time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET last_seen = $2 WHERE id = $1`, id, t)
	return err
}
