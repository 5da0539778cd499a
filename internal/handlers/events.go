package handlers

import (
	"context"
	"encoding/json"
	"log"

	"chat-server/internal/apperr"
	"chat-server/internal/hub"
	"chat-server/internal/models"
)

// HandleEvent decodes and executes one inbound protocol event. Every
// failure is converted into a single "error" event to the originating
// connection; nothing here ever drops the connection or escapes to the
// read loop.
func (g *Gateway) HandleEvent(ctx context.Context, s *hub.Session, raw []byte) {
	var frame models.InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		g.sendError(s, apperr.New(apperr.ErrInvalidInput, "Malformed event"))
		return
	}

	var err error
	switch frame.Event {
	case models.EventJoinRoom:
		err = g.handleJoinRoom(ctx, s, frame.Data)
	case models.EventLeaveRoom:
		err = g.handleLeaveRoom(ctx, s, frame.Data)
	case models.EventTyping:
		err = g.handleTyping(ctx, s, frame.Data)
	case models.EventSendMessage:
		err = g.handleSendMessage(ctx, s, frame.Data)
	case models.EventEditMessage:
		err = g.handleEditMessage(ctx, s, frame.Data)
	case models.EventDeleteMessage:
		err = g.handleDeleteMessage(ctx, s, frame.Data)
	case models.EventMarkMessageRead:
		err = g.handleMarkMessageRead(ctx, s, frame.Data)
	default:
		err = apperr.Newf(apperr.ErrInvalidInput, "Unknown event %q", frame.Event)
	}

	if err != nil {
		g.sendError(s, err)
	}
}

func (g *Gateway) handleJoinRoom(ctx context.Context, s *hub.Session, data json.RawMessage) error {
	var evt models.JoinRoomEvent
	if err := evt.Decode(data); err != nil {
		return err
	}

	if s.InRoom(evt.RoomID) {
		return apperr.New(apperr.ErrConflict, "Already joined this room")
	}
	if _, err := g.Rooms.FindByID(ctx, evt.RoomID); err != nil {
		return err
	}
	if _, err := g.Rooms.Membership(ctx, evt.RoomID, s.UserID); err != nil {
		return err
	}

	s.JoinRoom(evt.RoomID)

	return g.Bus.PublishChat(ctx, models.EventUserStatus, evt.RoomID, models.UserStatusEvent{
		UserID: s.UserID,
		Status: "joined",
		RoomID: evt.RoomID,
	})
}

func (g *Gateway) handleLeaveRoom(ctx context.Context, s *hub.Session, data json.RawMessage) error {
	var evt models.LeaveRoomEvent
	if err := evt.Decode(data); err != nil {
		return err
	}

	if err := g.LeaveRoom(ctx, s.UserID, evt.RoomID); err != nil {
		return err
	}
	s.LeaveRoom(evt.RoomID)

	return g.Bus.PublishChat(ctx, models.EventUserStatus, evt.RoomID, models.UserStatusEvent{
		UserID: s.UserID,
		Status: "left",
		RoomID: evt.RoomID,
	})
}

func (g *Gateway) handleTyping(ctx context.Context, s *hub.Session, data json.RawMessage) error {
	var evt models.TypingEvent
	if err := evt.Decode(data); err != nil {
		return err
	}
	if _, err := g.Rooms.Membership(ctx, evt.RoomID, s.UserID); err != nil {
		return err
	}

	// Typing indicators are ephemeral: nothing is persisted and a lost
	// broadcast is not an error the client needs to hear about.
	if err := g.Bus.PublishChat(ctx, models.EventTyping, evt.RoomID, models.TypingBroadcast{
		UserID:   s.UserID,
		RoomID:   evt.RoomID,
		IsTyping: evt.IsTyping,
	}); err != nil {
		log.Printf("typing broadcast failed: %v", err)
	}
	return nil
}

func (g *Gateway) handleSendMessage(ctx context.Context, s *hub.Session, data json.RawMessage) error {
	var evt models.SendMessageEvent
	if err := evt.Decode(data); err != nil {
		return err
	}

	// The limiter is consulted before any side effect: a throttled send
	// persists nothing and broadcasts nothing.
	if !s.Limiter.Allow() {
		return apperr.New(apperr.ErrRateLimited, "Rate limit exceeded")
	}

	_, err := g.SendMessage(ctx, s.UserID, evt.RoomID, evt.Content)
	return err
}

func (g *Gateway) handleEditMessage(ctx context.Context, s *hub.Session, data json.RawMessage) error {
	var evt models.EditMessageEvent
	if err := evt.Decode(data); err != nil {
		return err
	}
	_, err := g.EditMessage(ctx, s.UserID, evt.MessageID, evt.Content)
	return err
}

func (g *Gateway) handleDeleteMessage(ctx context.Context, s *hub.Session, data json.RawMessage) error {
	var evt models.DeleteMessageEvent
	if err := evt.Decode(data); err != nil {
		return err
	}
	_, err := g.DeleteMessage(ctx, s.UserID, evt.MessageID)
	return err
}

func (g *Gateway) handleMarkMessageRead(ctx context.Context, s *hub.Session, data json.RawMessage) error {
	var evt models.MarkMessageReadEvent
	if err := evt.Decode(data); err != nil {
		return err
	}
	_, err := g.MarkMessageRead(ctx, s.UserID, evt.MessageID)
	return err
}

// sendError delivers a structured error event to the originating
// connection only; errors are never broadcast.
func (g *Gateway) sendError(s *hub.Session, err error) {
	s.Enqueue(models.OutboundFrame{
		Event: models.EventError,
		Data:  models.ErrorEvent{Message: apperr.ClientMessage(err)},
	})
}
