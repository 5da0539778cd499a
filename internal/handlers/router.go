package handlers

import (
	"context"
	"encoding/json"
	"log"

	"chat-server/internal/bus"
	"chat-server/internal/models"
)

// The router turns bus deliveries into local pushes. Each process runs
// the same logic independently; a delivery only targets the connections
// this process holds.

// HandleChatEvent resolves a room-scoped (or global) bus event to local
// connections. Duplicate deliveries are harmless: pushing the same frame
// twice is the at-least-once contract surfacing to clients.
func (g *Gateway) HandleChatEvent(ctx context.Context, evt bus.ChatEvent) error {
	frame := models.OutboundFrame{Event: evt.Event, Data: json.RawMessage(evt.Data)}
	if evt.RoomID == "" {
		g.Registry.BroadcastAll(frame)
		return nil
	}
	g.Registry.BroadcastRoom(evt.RoomID, frame)
	return nil
}

// HandleUserEvent delivers an account-targeted event to the account's
// local connections. If the account is offline everywhere the event is
// dropped from real-time delivery; it was persisted before publish, so
// nothing is lost.
func (g *Gateway) HandleUserEvent(ctx context.Context, evt bus.UserEvent) error {
	frame := models.OutboundFrame{Event: evt.Event, Data: json.RawMessage(evt.Data)}
	if g.Registry.SendToUser(evt.UserID, frame) > 0 {
		return nil
	}

	locators, err := g.Presence.Get(ctx, evt.UserID)
	if err != nil {
		return err
	}
	if len(locators) == 0 {
		log.Printf("user %s offline everywhere; %s kept for later retrieval", evt.UserID, evt.Event)
	}
	// Locators on other processes are served by those processes.
	return nil
}
