package handlers

import (
	"chat-server/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ListUsersHandler returns every account except the caller, with online
// status resolved through a single batched presence lookup.
func (g *Gateway) ListUsersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authUserID := c.Locals("user_id").(string)

		users, err := g.Users.List(c.Context())
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "failed to fetch users"})
		}

		ids := make([]string, 0, len(users))
		for _, u := range users {
			ids = append(ids, u.ID)
		}
		online, err := g.Presence.GetBatch(c.Context(), ids)
		if err != nil {
			return respondError(c, err)
		}

		resp := make([]models.UserStatus, 0, len(users))
		for _, u := range users {
			if u.ID == authUserID {
				continue
			}
			status := "offline"
			if len(online[u.ID]) > 0 {
				status = "online"
			}
			resp = append(resp, models.UserStatus{
				ID:        u.ID,
				Username:  u.Username,
				Status:    status,
				LastSeen:  u.LastSeen,
				CreatedAt: u.CreatedAt,
			})
		}
		return c.JSON(resp)
	}
}

// ListNotificationsHandler returns the caller's stored notifications,
// newest first.
func (g *Gateway) ListNotificationsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		page := c.QueryInt("page", 1)
		if page < 1 {
			page = 1
		}
		limit := c.QueryInt("limit", defaultPageSize)
		if limit < 1 || limit > maxPageSize {
			limit = defaultPageSize
		}

		items, err := g.Notifications.ListByUser(c.Context(), userID, limit, (page-1)*limit)
		if err != nil {
			return respondError(c, err)
		}
		if items == nil {
			items = []models.Notification{}
		}
		return c.JSON(fiber.Map{"notifications": items})
	}
}

// MarkNotificationReadHandler marks one of the caller's notifications
// as read.
func (g *Gateway) MarkNotificationReadHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		id := c.Params("notificationId")

		if err := g.Notifications.MarkRead(c.Context(), id, userID); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"message": "Notification marked as read"})
	}
}
