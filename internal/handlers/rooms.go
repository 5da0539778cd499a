package handlers

import (
	"strings"

	"chat-server/internal/apperr"
	"chat-server/internal/models"
	"chat-server/internal/store"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func respondError(c *fiber.Ctx, err error) error {
	return c.Status(apperr.Status(err)).JSON(fiber.Map{"error": apperr.ClientMessage(err)})
}

// CreateRoomHandler creates a room; the creator becomes its owner
// member. Private rooms get a unique invite code.
func (g *Gateway) CreateRoomHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req models.CreateRoomRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" || len(req.Name) > 100 {
			return respondError(c, apperr.New(apperr.ErrInvalidInput, "Room name must be 1-100 characters"))
		}

		room := &models.Room{
			ID:        uuid.New().String(),
			Name:      req.Name,
			IsPrivate: req.IsPrivate,
			CreatedBy: userID,
		}
		if req.IsPrivate {
			code := store.NewInviteCode()
			room.InviteCode = &code
		}

		if err := g.Rooms.Create(c.Context(), room); err != nil {
			return respondError(c, err)
		}
		return c.Status(201).JSON(fiber.Map{"room": room})
	}
}

// JoinRoomHandler adds the caller as a member, by room id or invite
// code. Joining a room you already belong to is a no-op that still
// returns the room.
func (g *Gateway) JoinRoomHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req models.JoinRoomRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
		}
		if req.RoomID == "" && req.InviteCode == "" {
			return respondError(c, apperr.New(apperr.ErrInvalidInput, "room_id or invite_code is required"))
		}

		var room *models.Room
		var err error
		if req.RoomID != "" {
			room, err = g.Rooms.FindByID(c.Context(), req.RoomID)
		} else {
			room, err = g.Rooms.FindByInviteCode(c.Context(), req.InviteCode)
		}
		if err != nil {
			return respondError(c, err)
		}

		if room.IsPrivate && room.InviteCode != nil && req.InviteCode != *room.InviteCode {
			return respondError(c, apperr.New(apperr.ErrForbidden, "Invalid invite code"))
		}

		if err := g.Rooms.AddMember(c.Context(), room.ID, userID, models.RoleMember); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"room": room})
	}
}

// MyRoomsHandler lists the caller's rooms.
func (g *Gateway) MyRoomsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		rooms, err := g.Rooms.ListByUser(c.Context(), userID)
		if err != nil {
			return respondError(c, err)
		}
		if rooms == nil {
			rooms = []models.Room{}
		}
		return c.JSON(fiber.Map{"rooms": rooms})
	}
}

// RoomInfoHandler returns a room with its members and their online
// status resolved through the presence directory in one batch.
func (g *Gateway) RoomInfoHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		roomID := c.Params("roomId")

		if _, err := g.Rooms.Membership(c.Context(), roomID, userID); err != nil {
			return respondError(c, err)
		}
		room, err := g.Rooms.FindByID(c.Context(), roomID)
		if err != nil {
			return respondError(c, err)
		}
		members, err := g.Rooms.Members(c.Context(), roomID)
		if err != nil {
			return respondError(c, err)
		}

		ids := make([]string, 0, len(members))
		for _, m := range members {
			ids = append(ids, m.UserID)
		}
		online, err := g.Presence.GetBatch(c.Context(), ids)
		if err != nil {
			return respondError(c, err)
		}
		for i := range members {
			if len(online[members[i].UserID]) > 0 {
				members[i].Status = "online"
			} else {
				members[i].Status = "offline"
			}
		}

		return c.JSON(fiber.Map{"room": room, "members": members})
	}
}

// LeaveRoomHandler destroys the caller's membership, subject to the
// sole-owner rule.
func (g *Gateway) LeaveRoomHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		roomID := c.Params("roomId")

		if err := g.LeaveRoom(c.Context(), userID, roomID); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"message": "Successfully left the room"})
	}
}
