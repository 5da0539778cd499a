package models

import "time"

const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

type Room struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	IsPrivate  bool      `json:"is_private"`
	InviteCode *string   `json:"invite_code,omitempty"`
	CreatedBy  string    `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
}

type Membership struct {
	RoomID   string    `json:"room_id"`
	UserID   string    `json:"user_id"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

type CreateRoomRequest struct {
	Name      string `json:"name"`
	IsPrivate bool   `json:"is_private"`
}

type JoinRoomRequest struct {
	RoomID     string `json:"room_id"`
	InviteCode string `json:"invite_code"`
}

// RoomMemberInfo is a membership joined with user presence, returned by
// the room info endpoint.
type RoomMemberInfo struct {
	UserID   string     `json:"user_id"`
	Username string     `json:"username"`
	Role     string     `json:"role"`
	JoinedAt time.Time  `json:"joined_at"`
	Status   string     `json:"status"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}
