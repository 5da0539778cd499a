// Package bus wraps the cross-process fanout channel. Every server
// publishes chat and user-targeted events here and consumes the same
// subjects itself; a publisher gets its own events back through the
// subscription like any other process, so local and remote delivery
// share one code path.
//
// Delivery is at-least-once: per-publisher order is preserved on a
// subject, duplicates and cross-publisher reordering must be tolerated
// by consumers.
package bus

import (
	"context"
	"encoding/json"
)

// Subjects. Room-scoped chat traffic and account-targeted notifications
// are the only two the core needs.
const (
	SubjectChat = "chat.events"
	SubjectUser = "notify.user"
)

// ChatEvent is the envelope for room-scoped (or, with an empty RoomID,
// global) events.
type ChatEvent struct {
	Event  string          `json:"event"`
	RoomID string          `json:"room_id,omitempty"`
	Data   json.RawMessage `json:"data"`
}

// UserEvent is the envelope for events addressed to a single account.
type UserEvent struct {
	UserID string          `json:"user_id"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
}

// Publisher is the side of the bus the session manager talks to.
type Publisher interface {
	// PublishChat broadcasts an event to a room; an empty roomID
	// addresses every connection on every process.
	PublishChat(ctx context.Context, event, roomID string, data interface{}) error
	// PublishUser addresses an event to all of one account's devices.
	PublishUser(ctx context.Context, userID, event string, data interface{}) error
}

// ChatHandler and UserHandler are invoked by the consumer loops, one
// event at a time. A handler error is logged and isolated; it never
// stops the loop.
type (
	ChatHandler func(ctx context.Context, evt ChatEvent) error
	UserHandler func(ctx context.Context, evt UserEvent) error
)

func marshalChat(event, roomID string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(ChatEvent{Event: event, RoomID: roomID, Data: raw})
}

func marshalUser(userID, event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(UserEvent{UserID: userID, Event: event, Data: raw})
}
