// Package store holds the persistence boundary of the messaging core.
// The handlers consume these interfaces; the pgx implementations live in
// this package, and the tests substitute in-memory fakes.
package store

import (
	"context"
	"time"

	"chat-server/internal/models"
)

type UserStore interface {
	Create(ctx context.Context, username, passwordHash string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	TouchLastSeen(ctx context.Context, id string, t time.Time) error
}

type RoomStore interface {
	// Create inserts the room and its owner membership atomically.
	Create(ctx context.Context, room *models.Room) error
	FindByID(ctx context.Context, id string) (*models.Room, error)
	FindByInviteCode(ctx context.Context, code string) (*models.Room, error)
	ListByUser(ctx context.Context, userID string) ([]models.Room, error)
	Members(ctx context.Context, roomID string) ([]models.RoomMemberInfo, error)
	MemberIDs(ctx context.Context, roomID string) ([]string, error)
	Membership(ctx context.Context, roomID, userID string) (*models.Membership, error)
	// AddMember is idempotent: adding an existing member is a no-op.
	AddMember(ctx context.Context, roomID, userID, role string) error
	RemoveMember(ctx context.Context, roomID, userID string) error
	CountMembers(ctx context.Context, roomID string) (int, error)
}

type MessageStore interface {
	Create(ctx context.Context, msg *models.Message) error
	FindByID(ctx context.Context, id string) (*models.Message, error)
	// ListByRoom returns messages newest first.
	ListByRoom(ctx context.Context, roomID string, limit, offset int) ([]models.Message, error)
	Edit(ctx context.Context, id, content string, editedAt time.Time) (*models.Message, error)
	Delete(ctx context.Context, id string) error
	// MarkRead sets the read timestamp once; a later call never moves it.
	MarkRead(ctx context.Context, id string, readAt time.Time) (*models.Message, error)
}

type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
}
