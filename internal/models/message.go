package models

import "time"

type Message struct {
	ID          string     `json:"id"`
	RoomID      string     `json:"room_id"`
	SenderID    string     `json:"sender_id"`
	Content     string     `json:"content"`
	IsEdited    bool       `json:"is_edited"`
	EditedAt    *time.Time `json:"edited_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type SendMessageRequest struct {
	RoomID  string `json:"room_id"`
	Content string `json:"content"`
}

type EditMessageRequest struct {
	Content string `json:"content"`
}

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

const NotificationNewMessage = "new_message"
