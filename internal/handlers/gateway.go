// Package handlers contains the connection session manager, the room
// broadcast router, and the REST surface. All shared state (registry,
// presence directory, bus, stores) is injected at startup.
package handlers

import (
	"context"
	"log"
	"time"

	"chat-server/internal/apperr"
	"chat-server/internal/bus"
	"chat-server/internal/config"
	"chat-server/internal/hub"
	"chat-server/internal/models"
	"chat-server/internal/presence"
	"chat-server/internal/store"

	"github.com/google/uuid"
)

// Gateway wires the messaging core together. One instance per process.
type Gateway struct {
	Registry      *hub.Registry
	Presence      presence.Directory
	Bus           bus.Publisher
	Users         store.UserStore
	Rooms         store.RoomStore
	Messages      store.MessageStore
	Notifications store.NotificationStore
	Cfg           config.Config
}

func NewGateway(
	registry *hub.Registry,
	dir presence.Directory,
	publisher bus.Publisher,
	users store.UserStore,
	rooms store.RoomStore,
	messages store.MessageStore,
	notifications store.NotificationStore,
	cfg config.Config,
) *Gateway {
	return &Gateway{
		Registry:      registry,
		Presence:      dir,
		Bus:           publisher,
		Users:         users,
		Rooms:         rooms,
		Messages:      messages,
		Notifications: notifications,
		Cfg:           cfg,
	}
}

// The operations below are shared by the websocket event dispatcher and
// the REST handlers; both surfaces enforce identical access rules.

// SendMessage persists a room message and replicates it on the bus.
// Persistence always wins: a message that is committed stays committed
// even if the subsequent broadcast fails.
func (g *Gateway) SendMessage(ctx context.Context, userID, roomID, content string) (*models.Message, error) {
	if _, err := g.Rooms.Membership(ctx, roomID, userID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	msg := &models.Message{
		ID:          uuid.New().String(),
		RoomID:      roomID,
		SenderID:    userID,
		Content:     content,
		DeliveredAt: &now,
	}
	if err := g.Messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	if err := g.Bus.PublishChat(ctx, models.EventReceiveMessage, roomID, msg); err != nil {
		log.Printf("broadcast of message %s failed (message persisted): %v", msg.ID, err)
	}

	// Members not currently viewing the room get a stored notification
	// and, when online, a real-time push.
	go g.notifyRoomMembers(msg)

	return msg, nil
}

// EditMessage mutates the body; only the sender may edit.
func (g *Gateway) EditMessage(ctx context.Context, userID, messageID, content string) (*models.Message, error) {
	msg, err := g.Messages.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != userID {
		return nil, apperr.New(apperr.ErrForbidden, "You can only edit your own messages")
	}

	updated, err := g.Messages.Edit(ctx, messageID, content, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	payload := models.MessageEditedEvent{
		ID:       updated.ID,
		RoomID:   updated.RoomID,
		Content:  updated.Content,
		IsEdited: true,
		EditedAt: *updated.EditedAt,
	}
	if err := g.Bus.PublishChat(ctx, models.EventMessageEdited, updated.RoomID, payload); err != nil {
		log.Printf("broadcast of edit %s failed (edit persisted): %v", updated.ID, err)
	}
	return updated, nil
}

// DeleteMessage removes a message; allowed for the sender or a room
// owner.
func (g *Gateway) DeleteMessage(ctx context.Context, userID, messageID string) (string, error) {
	msg, err := g.Messages.FindByID(ctx, messageID)
	if err != nil {
		return "", err
	}
	membership, err := g.Rooms.Membership(ctx, msg.RoomID, userID)
	if err != nil {
		return "", err
	}
	if msg.SenderID != userID && membership.Role != models.RoleOwner {
		return "", apperr.New(apperr.ErrForbidden, "You can only delete your own messages or must be the room owner")
	}

	if err := g.Messages.Delete(ctx, messageID); err != nil {
		return "", err
	}

	payload := models.MessageDeletedEvent{MessageID: messageID, RoomID: msg.RoomID}
	if err := g.Bus.PublishChat(ctx, models.EventMessageDeleted, msg.RoomID, payload); err != nil {
		log.Printf("broadcast of delete %s failed (delete persisted): %v", messageID, err)
	}
	return msg.RoomID, nil
}

// MarkMessageRead records a read receipt. The stored timestamp is
// monotonic; repeated receipts never move it backward.
func (g *Gateway) MarkMessageRead(ctx context.Context, userID, messageID string) (*models.Message, error) {
	msg, err := g.Messages.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if _, err := g.Rooms.Membership(ctx, msg.RoomID, userID); err != nil {
		return nil, err
	}

	updated, err := g.Messages.MarkRead(ctx, messageID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	payload := models.MessageReadEvent{
		MessageID: updated.ID,
		RoomID:    updated.RoomID,
		ReadAt:    *updated.ReadAt,
		ReadBy:    userID,
	}
	if err := g.Bus.PublishChat(ctx, models.EventMessageRead, updated.RoomID, payload); err != nil {
		log.Printf("broadcast of read receipt %s failed (receipt persisted): %v", updated.ID, err)
	}
	return updated, nil
}

// LeaveRoom destroys a membership. A sole remaining member may always
// leave; an owner with other members still present must transfer
// ownership first.
func (g *Gateway) LeaveRoom(ctx context.Context, userID, roomID string) error {
	membership, err := g.Rooms.Membership(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if membership.Role == models.RoleOwner {
		count, err := g.Rooms.CountMembers(ctx, roomID)
		if err != nil {
			return err
		}
		if count > 1 {
			return apperr.New(apperr.ErrConflict, "Cannot leave room as owner while other members exist. Transfer ownership first.")
		}
	}
	return g.Rooms.RemoveMember(ctx, roomID, userID)
}

// notifyRoomMembers persists a new-message notification for every member
// not currently joined to the room on this process, then publishes it on
// the user subject. Persistence happens first so an offline recipient
// still finds the notification later.
func (g *Gateway) notifyRoomMembers(msg *models.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	memberIDs, err := g.Rooms.MemberIDs(ctx, msg.RoomID)
	if err != nil {
		log.Printf("notify: listing members of room %s failed: %v", msg.RoomID, err)
		return
	}

	for _, memberID := range memberIDs {
		if memberID == msg.SenderID {
			continue
		}
		if g.Registry.IsUserInRoom(memberID, msg.RoomID) {
			continue // already receiving the room broadcast
		}

		n := &models.Notification{
			ID:      uuid.New().String(),
			UserID:  memberID,
			Title:   "New message",
			Content: msg.Content,
			Type:    models.NotificationNewMessage,
		}
		if err := g.Notifications.Create(ctx, n); err != nil {
			log.Printf("notify: persisting notification for %s failed: %v", memberID, err)
			continue
		}
		if err := g.Bus.PublishUser(ctx, memberID, models.EventNotification, n); err != nil {
			log.Printf("notify: publishing notification for %s failed (notification persisted): %v", memberID, err)
		}
	}
}
