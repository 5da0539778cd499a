package handlers

import (
	"context"
	"log"
	"time"

	"chat-server/internal/hub"
	"chat-server/internal/models"
	"chat-server/internal/ratelimit"
	"chat-server/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const writeTimeout = 10 * time.Second

// WSUpgradeMiddleware rejects non-websocket requests on the /ws route.
func WSUpgradeMiddleware(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// AuthRequired verifies the bearer credential before the request (or
// upgrade) proceeds. A connection is never upgraded without a verified
// identity, so no partial session can exist.
func AuthRequired(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Token from query param `access_token` or Authorization header
		token := c.Query("access_token")
		if token == "" {
			authHeader := c.Get("Authorization")
			if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
				token = authHeader[7:]
			}
		}
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Missing token")
		}

		identity, err := auth.Verify(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
		}

		c.Locals("user_id", identity.UserID)
		c.Locals("username", identity.Username)
		return c.Next()
	}
}

// WebSocketHandler runs the per-connection session: registers presence,
// starts the write pump, and processes inbound events in strict arrival
// order until the connection dies.
func (g *Gateway) WebSocketHandler() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		userID := c.Locals("user_id").(string)
		username, _ := c.Locals("username").(string)

		connID := uuid.New().String()
		limiter := ratelimit.NewSlidingWindow(g.Cfg.RateLimitMax, g.Cfg.RateLimitWindow)
		session := hub.NewSession(connID, userID, username, limiter, g.Cfg.SendQueueSize)

		ctx := context.Background()
		if err := g.Presence.Set(ctx, userID, connID); err != nil {
			log.Printf("presence registration failed for %s: %v", userID, err)
			c.Close()
			return
		}
		g.Registry.Register(session)

		defer g.teardown(session, c)

		session.Enqueue(models.OutboundFrame{
			Event: models.EventWelcome,
			Data:  models.WelcomeEvent{Message: "Welcome to the chat server", UserID: userID},
		})

		if err := g.Bus.PublishChat(ctx, models.EventUserStatus, "", models.UserStatusEvent{
			UserID: userID,
			Status: "online",
		}); err != nil {
			log.Printf("publishing online status for %s failed: %v", userID, err)
		}

		go g.writePump(c, session)

		// Liveness: the client must answer pings within the pong window
		// or the read below times out and the connection is torn down.
		_ = c.SetReadDeadline(time.Now().Add(g.Cfg.PongTimeout))
		c.SetPongHandler(func(string) error {
			_ = c.SetReadDeadline(time.Now().Add(g.Cfg.PongTimeout))
			if err := g.Presence.Refresh(context.Background(), userID, connID); err != nil {
				log.Printf("presence refresh failed for %s: %v", userID, err)
			}
			return nil
		})

		for {
			msgType, msg, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("read error on %s: %v", connID, err)
				}
				return
			}
			if msgType != websocket.TextMessage {
				continue
			}
			g.HandleEvent(context.Background(), session, msg)
		}
	})
}

// writePump is the only goroutine that writes to the connection. It
// drains the session's bounded queue and keeps the liveness probe going.
func (g *Gateway) writePump(c *websocket.Conn, s *hub.Session) {
	ticker := time.NewTicker(g.Cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-s.Outbound():
			_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.WriteJSON(frame); err != nil {
				s.Close()
				return
			}
		case <-ticker.C:
			_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}
		case <-s.Done():
			_ = c.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			c.Close()
			return
		}
	}
}

// teardown removes exactly this connection's presence entry and, when it
// was the account's last locator anywhere, broadcasts the offline status.
func (g *Gateway) teardown(s *hub.Session, c *websocket.Conn) {
	s.Close()
	c.Close()
	g.Registry.Unregister(s.ID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := g.Presence.Remove(ctx, s.UserID, s.ID); err != nil {
		log.Printf("presence removal failed for %s: %v", s.UserID, err)
	}

	now := time.Now().UTC()
	if err := g.Users.TouchLastSeen(ctx, s.UserID, now); err != nil {
		log.Printf("updating last_seen for %s failed: %v", s.UserID, err)
	}

	// Other devices (possibly on other processes) keep the account
	// online; only the last locator going away makes it offline.
	locators, err := g.Presence.Get(ctx, s.UserID)
	if err != nil {
		log.Printf("presence lookup failed for %s: %v", s.UserID, err)
		return
	}
	if len(locators) > 0 {
		return
	}

	if err := g.Bus.PublishChat(ctx, models.EventUserStatus, "", models.UserStatusEvent{
		UserID:   s.UserID,
		Status:   "offline",
		LastSeen: &now,
	}); err != nil {
		log.Printf("publishing offline status for %s failed: %v", s.UserID, err)
	}
}
