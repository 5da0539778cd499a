package store

import (
	"context"
	"crypto/rand"
	"errors"

	"chat-server/internal/apperr"
	"chat-server/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRoomStore struct {
	pool *pgxpool.Pool
}

func NewPgRoomStore(pool *pgxpool.Pool) *PgRoomStore {
	return &PgRoomStore{pool: pool}
}

const inviteCodeLength = 8

// NewInviteCode returns a random base36 code for private rooms.
func NewInviteCode() string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	buf := make([]byte, inviteCodeLength)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand failure is unrecoverable
	}
	for i, b := range buf {
		buf[i] = charset[int(b)%len(charset)]
	}
	return string(buf)
}

func (s *PgRoomStore) Create(ctx context.Context, room *models.Room) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `INSERT INTO rooms (id, name, is_private, invite_code, created_by) VALUES ($1, $2, $3, $4, $5) RETURNING created_at`
	if err := tx.QueryRow(ctx, query, room.ID, room.Name, room.IsPrivate, room.InviteCode, room.CreatedBy).Scan(&room.CreatedAt); err != nil {
		return err
	}

	// The creator becomes the owner member in the same transaction.
	_, err = tx.Exec(ctx, `INSERT INTO room_members (room_id, user_id, role) VALUES ($1, $2, $3)`,
		room.ID, room.CreatedBy, models.RoleOwner)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *PgRoomStore) FindByID(ctx context.Context, id string) (*models.Room, error) {
	return s.findOne(ctx, `SELECT id, name, is_private, invite_code, created_by, created_at FROM rooms WHERE id = $1`, id)
}

func (s *PgRoomStore) FindByInviteCode(ctx context.Context, code string) (*models.Room, error) {
	return s.findOne(ctx, `SELECT id, name, is_private, invite_code, created_by, created_at FROM rooms WHERE invite_code = $1`, code)
}

func (s *PgRoomStore) findOne(ctx context.Context, query, arg string) (*models.Room, error) {
	var room models.Room
	err := s.pool.QueryRow(ctx, query, arg).Scan(&room.ID, &room.Name, &room.IsPrivate, &room.InviteCode, &room.CreatedBy, &room.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.ErrNotFound, "Room not found")
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *PgRoomStore) ListByUser(ctx context.Context, userID string) ([]models.Room, error) {
	query := `
		SELECT r.id, r.name, r.is_private, r.invite_code, r.created_by, r.created_at
		FROM rooms r
		JOIN room_members m ON r.id = m.room_id
		WHERE m.user_id = $1
		ORDER BY r.created_at DESC
	`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []models.Room
	for rows.Next() {
		var r models.Room
		if err := rows.Scan(&r.ID, &r.Name, &r.IsPrivate, &r.InviteCode, &r.CreatedBy, &r.CreatedAt); err != nil {
			return nil, err
		}
		rooms = append(rooms, r)
	}
	return rooms, rows.Err()
}

func (s *PgRoomStore) Members(ctx context.Context, roomID string) ([]models.RoomMemberInfo, error) {
	query := `
		SELECT u.id, u.username, m.role, m.joined_at, u.last_seen
		FROM room_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.room_id = $1
		ORDER BY m.joined_at
	`
	rows, err := s.pool.Query(ctx, query, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []models.RoomMemberInfo
	for rows.Next() {
		var m models.RoomMemberInfo
		if err := rows.Scan(&m.UserID, &m.Username, &m.Role, &m.JoinedAt, &m.LastSeen); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *PgRoomStore) MemberIDs(ctx context.Context, roomID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_id FROM room_members WHERE room_id = $1`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PgRoomStore) Membership(ctx context.Context, roomID, userID string) (*models.Membership, error) {
	var m models.Membership
	query := `SELECT room_id, user_id, role, joined_at FROM room_members WHERE room_id = $1 AND user_id = $2`
	err := s.pool.QueryRow(ctx, query, roomID, userID).Scan(&m.RoomID, &m.UserID, &m.Role, &m.JoinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.ErrForbidden, "Not a member of this room")
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *PgRoomStore) AddMember(ctx context.Context, roomID, userID, role string) error {
	query := `INSERT INTO room_members (room_id, user_id, role) VALUES ($1, $2, $3) ON CONFLICT (room_id, user_id) DO NOTHING`
	_, err := s.pool.Exec(ctx, query, roomID, userID, role)
	return err
}

func (s *PgRoomStore) RemoveMember(ctx context.Context, roomID, userID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM room_members WHERE room_id = $1 AND user_id = $2`, roomID, userID)
	return err
}

func (s *PgRoomStore) CountMembers(ctx context.Context, roomID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM room_members WHERE room_id = $1`, roomID).Scan(&count)
	return count, err
}
