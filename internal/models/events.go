package models

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"time"
	"unicode/utf8"

	"chat-server/internal/apperr"
)

// Inbound websocket frames carry an event name and an event-specific
// payload. Each payload has its own decoder that fails closed: unknown
// fields, missing fields, or wrong types reject the whole frame.
type InboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Inbound event names.
const (
	EventJoinRoom        = "join_room"
	EventTyping          = "typing"
	EventSendMessage     = "send_message"
	EventEditMessage     = "edit_message"
	EventDeleteMessage   = "delete_message"
	EventMarkMessageRead = "mark_message_read"
	EventLeaveRoom       = "leave_room"
)

// Outbound event names.
const (
	EventWelcome        = "welcome"
	EventError          = "error"
	EventUserStatus     = "user_status"
	EventReceiveMessage = "receive_message"
	EventMessageEdited  = "message_edited"
	EventMessageDeleted = "message_deleted"
	EventMessageRead    = "message_read"
	EventNotification   = "notification"
)

const MaxContentLength = 1000

type JoinRoomEvent struct {
	RoomID string `json:"room_id"`
}

type TypingEvent struct {
	RoomID   string `json:"room_id"`
	IsTyping bool   `json:"is_typing"`
}

type SendMessageEvent struct {
	RoomID  string `json:"room_id"`
	Content string `json:"content"`
}

type EditMessageEvent struct {
	MessageID string `json:"message_id"`
	Content   string `json:"content"`
}

type DeleteMessageEvent struct {
	MessageID string `json:"message_id"`
}

type MarkMessageReadEvent struct {
	MessageID string `json:"message_id"`
}

type LeaveRoomEvent struct {
	RoomID string `json:"room_id"`
}

func decodeStrict(data []byte, v interface{}) error {
	if len(data) == 0 {
		return apperr.New(apperr.ErrInvalidInput, "Missing event payload")
	}
	// Zero the receiver first so a reused struct cannot keep fields from
	// an earlier decode when the payload omits them.
	rv := reflect.ValueOf(v).Elem()
	rv.Set(reflect.Zero(rv.Type()))
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.New(apperr.ErrInvalidInput, "Malformed event payload")
	}
	// Reject trailing garbage after the JSON value.
	if dec.More() {
		return apperr.New(apperr.ErrInvalidInput, "Malformed event payload")
	}
	return nil
}

func (e *JoinRoomEvent) Decode(data []byte) error {
	if err := decodeStrict(data, e); err != nil {
		return err
	}
	if e.RoomID == "" {
		return apperr.New(apperr.ErrInvalidInput, "Room ID is required")
	}
	return nil
}

func (e *TypingEvent) Decode(data []byte) error {
	// is_typing is required; a pointer distinguishes "absent" from an
	// explicit false.
	var raw struct {
		RoomID   string `json:"room_id"`
		IsTyping *bool  `json:"is_typing"`
	}
	if err := decodeStrict(data, &raw); err != nil {
		return err
	}
	if raw.RoomID == "" {
		return apperr.New(apperr.ErrInvalidInput, "Room ID is required")
	}
	if raw.IsTyping == nil {
		return apperr.New(apperr.ErrInvalidInput, "is_typing is required")
	}
	e.RoomID = raw.RoomID
	e.IsTyping = *raw.IsTyping
	return nil
}

func (e *SendMessageEvent) Decode(data []byte) error {
	if err := decodeStrict(data, e); err != nil {
		return err
	}
	if e.RoomID == "" {
		return apperr.New(apperr.ErrInvalidInput, "Room ID is required")
	}
	e.Content = strings.TrimSpace(e.Content)
	return ValidateContent(e.Content)
}

func (e *EditMessageEvent) Decode(data []byte) error {
	if err := decodeStrict(data, e); err != nil {
		return err
	}
	if e.MessageID == "" {
		return apperr.New(apperr.ErrInvalidInput, "Message ID is required")
	}
	e.Content = strings.TrimSpace(e.Content)
	return ValidateContent(e.Content)
}

func (e *DeleteMessageEvent) Decode(data []byte) error {
	if err := decodeStrict(data, e); err != nil {
		return err
	}
	if e.MessageID == "" {
		return apperr.New(apperr.ErrInvalidInput, "Message ID is required")
	}
	return nil
}

func (e *MarkMessageReadEvent) Decode(data []byte) error {
	if err := decodeStrict(data, e); err != nil {
		return err
	}
	if e.MessageID == "" {
		return apperr.New(apperr.ErrInvalidInput, "Message ID is required")
	}
	return nil
}

func (e *LeaveRoomEvent) Decode(data []byte) error {
	if err := decodeStrict(data, e); err != nil {
		return err
	}
	if e.RoomID == "" {
		return apperr.New(apperr.ErrInvalidInput, "Room ID is required")
	}
	return nil
}

// ValidateContent enforces the 1-1000 character bound on trimmed message
// bodies.
func ValidateContent(content string) error {
	if content == "" {
		return apperr.New(apperr.ErrInvalidInput, "Message content is required")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return apperr.New(apperr.ErrInvalidInput, "Message content too long")
	}
	return nil
}

// OutboundFrame is what the server writes to websocket clients.
type OutboundFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}

type WelcomeEvent struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

type UserStatusEvent struct {
	UserID   string     `json:"user_id"`
	Status   string     `json:"status"` // "online", "offline", "joined", "left"
	RoomID   string     `json:"room_id,omitempty"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

type TypingBroadcast struct {
	UserID   string `json:"user_id"`
	RoomID   string `json:"room_id"`
	IsTyping bool   `json:"is_typing"`
}

type MessageEditedEvent struct {
	ID       string    `json:"id"`
	RoomID   string    `json:"room_id"`
	Content  string    `json:"content"`
	IsEdited bool      `json:"is_edited"`
	EditedAt time.Time `json:"edited_at"`
}

type MessageDeletedEvent struct {
	MessageID string `json:"message_id"`
	RoomID    string `json:"room_id"`
}

type MessageReadEvent struct {
	MessageID string    `json:"message_id"`
	RoomID    string    `json:"room_id"`
	ReadAt    time.Time `json:"read_at"`
	ReadBy    string    `json:"read_by"`
}
