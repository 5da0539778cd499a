package handlers

import (
	"strings"

	"chat-server/internal/apperr"
	"chat-server/internal/models"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// RoomMessagesHandler lists a room's messages, newest first, paginated
// with ?page and ?limit.
func (g *Gateway) RoomMessagesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		roomID := c.Params("roomId")

		if _, err := g.Rooms.Membership(c.Context(), roomID, userID); err != nil {
			return respondError(c, err)
		}

		page := c.QueryInt("page", 1)
		if page < 1 {
			page = 1
		}
		limit := c.QueryInt("limit", defaultPageSize)
		if limit < 1 || limit > maxPageSize {
			limit = defaultPageSize
		}

		messages, err := g.Messages.ListByRoom(c.Context(), roomID, limit, (page-1)*limit)
		if err != nil {
			return respondError(c, err)
		}
		if messages == nil {
			messages = []models.Message{}
		}
		return c.JSON(fiber.Map{
			"messages":   messages,
			"pagination": fiber.Map{"page": page, "limit": limit},
		})
	}
}

// SendMessageHandler is the REST twin of the send_message event; it runs
// the same membership and content checks and the same persist-then-
// publish pipeline.
func (g *Gateway) SendMessageHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req models.SendMessageRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
		}
		if req.RoomID == "" {
			return respondError(c, apperr.New(apperr.ErrInvalidInput, "Room ID is required"))
		}
		req.Content = strings.TrimSpace(req.Content)
		if err := models.ValidateContent(req.Content); err != nil {
			return respondError(c, err)
		}

		msg, err := g.SendMessage(c.Context(), userID, req.RoomID, req.Content)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(201).JSON(fiber.Map{"message": msg})
	}
}

func (g *Gateway) EditMessageHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		messageID := c.Params("messageId")

		var req models.EditMessageRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
		}
		req.Content = strings.TrimSpace(req.Content)
		if err := models.ValidateContent(req.Content); err != nil {
			return respondError(c, err)
		}

		msg, err := g.EditMessage(c.Context(), userID, messageID, req.Content)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"message": msg})
	}
}

func (g *Gateway) DeleteMessageHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		messageID := c.Params("messageId")

		if _, err := g.DeleteMessage(c.Context(), userID, messageID); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"message": "Message deleted successfully"})
	}
}

func (g *Gateway) MarkMessageReadHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		messageID := c.Params("messageId")

		msg, err := g.MarkMessageRead(c.Context(), userID, messageID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"message": msg})
	}
}
