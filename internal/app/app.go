package app

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"chat-server/internal/apperr"
	"chat-server/internal/bus"
	"chat-server/internal/config"
	"chat-server/internal/db"
	"chat-server/internal/handlers"
	"chat-server/internal/hub"
	"chat-server/internal/models"
	"chat-server/internal/presence"
	"chat-server/internal/services"
	"chat-server/internal/store"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func Run() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init DB
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Presence directory (shared across all server processes)
	redisClient, err := presence.Connect(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	directory := presence.NewRedisDirectory(redisClient)

	// Fanout bus
	nc, err := bus.Connect(cfg.NatsURL)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	natsBus := bus.NewNatsBus(nc)

	// Stores
	users := store.NewPgUserStore(pool)
	rooms := store.NewPgRoomStore(pool)
	messages := store.NewPgMessageStore(pool)
	notifications := store.NewPgNotificationStore(pool)

	// Services
	authService := services.NewAuthService(users, cfg.JWTSecret)

	// Connection registry: created here, torn down at shutdown, passed
	// by reference everywhere it is needed.
	registry := hub.NewRegistry()

	gateway := handlers.NewGateway(registry, directory, natsBus, users, rooms, messages, notifications, cfg)

	// Every process subscribes once at startup; its own publishes come
	// back through the same subscription.
	if err := natsBus.ConsumeChat(ctx, gateway.HandleChatEvent); err != nil {
		log.Fatalf("Failed to subscribe to %s: %v", bus.SubjectChat, err)
	}
	if err := natsBus.ConsumeUser(ctx, gateway.HandleUserEvent); err != nil {
		log.Fatalf("Failed to subscribe to %s: %v", bus.SubjectUser, err)
	}

	// Fiber App
	app := fiber.New()

	// Middleware
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New())

	// Routes
	api := app.Group("/api")

	// Public Routes
	api.Post("/register", func(c *fiber.Ctx) error {
		var req models.RegisterRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
		}
		user, err := authService.Register(c.Context(), req)
		if err != nil {
			return c.Status(apperr.Status(err)).JSON(fiber.Map{"error": apperr.ClientMessage(err)})
		}
		return c.Status(201).JSON(user)
	})

	api.Post("/login", func(c *fiber.Ctx) error {
		var req models.LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
		}
		res, err := authService.Login(c.Context(), req)
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(res)
	})

	api.Post("/refresh", func(c *fiber.Ctx) error {
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
		}
		if body.RefreshToken == "" {
			return c.Status(400).JSON(fiber.Map{"error": "refresh_token required"})
		}
		res, err := authService.Refresh(body.RefreshToken)
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"error": "invalid refresh token"})
		}
		return c.JSON(res)
	})

	// Protected Routes
	protected := api.Group("/")
	protected.Use(handlers.AuthRequired(authService))

	protected.Get("/users", gateway.ListUsersHandler())

	protected.Post("/rooms", gateway.CreateRoomHandler())
	protected.Post("/rooms/join", gateway.JoinRoomHandler())
	protected.Get("/rooms", gateway.MyRoomsHandler())
	protected.Get("/rooms/:roomId", gateway.RoomInfoHandler())
	protected.Post("/rooms/:roomId/leave", gateway.LeaveRoomHandler())
	protected.Get("/rooms/:roomId/messages", gateway.RoomMessagesHandler())

	protected.Post("/messages", gateway.SendMessageHandler())
	protected.Put("/messages/:messageId", gateway.EditMessageHandler())
	protected.Delete("/messages/:messageId", gateway.DeleteMessageHandler())
	protected.Post("/messages/:messageId/read", gateway.MarkMessageReadHandler())

	protected.Get("/notifications", gateway.ListNotificationsHandler())
	protected.Post("/notifications/:notificationId/read", gateway.MarkNotificationReadHandler())

	// Health Check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// WebSocket Route
	// Note: Middleware order matters. AuthRequired checks the token
	// before the upgrade, so no unauthenticated session ever exists.
	app.Use("/ws", handlers.WSUpgradeMiddleware)
	app.Use("/ws", handlers.AuthRequired(authService))
	app.Get("/ws", gateway.WebSocketHandler())

	// Start Server
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Panic(err)
		}
	}()

	// Graceful Shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	<-c // Block until signal
	log.Println("Gracefully shutting down...")
	cancel()
	registry.Shutdown()
	_ = nc.Drain()
	_ = app.Shutdown()
	log.Println("Server shutdown complete")
}
