package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the server reads from the environment.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string
	NatsURL     string
	JWTSecret   string

	// Per-connection send rate limit (sliding window).
	RateLimitMax    int
	RateLimitWindow time.Duration

	// Liveness probe settings for websocket connections.
	PingInterval time.Duration
	PongTimeout  time.Duration

	// Outbound queue size per connection before the fanout path
	// starts dropping frames for that connection.
	SendQueueSize int
}

// Load reads the environment (and an optional .env file) into a Config.
func Load() Config {
	// Ignore error if .env file doesn't exist (e.g. in production)
	_ = godotenv.Load()

	connString := getEnv("DATABASE_URL", "")
	if connString == "" {
		// Fallback to individual vars
		connString = "postgres://" + getEnv("POSTGRES_USER", "postgres") + ":" +
			getEnv("POSTGRES_PASSWORD", "postgres") + "@" +
			getEnv("POSTGRES_HOST", "localhost") + ":" +
			getEnv("POSTGRES_PORT", "5432") + "/" +
			getEnv("POSTGRES_DB", "chatdb") + "?sslmode=disable"
	}

	return Config{
		Port:            getEnv("PORT", "3001"),
		DatabaseURL:     connString,
		RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379"),
		NatsURL:         getEnv("NATS_URL", "nats://localhost:4222"),
		JWTSecret:       getEnv("JWT_SECRET", "secret"),
		RateLimitMax:    getEnvInt("RATE_LIMIT_MAX", 5),
		RateLimitWindow: time.Duration(getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 10)) * time.Second,
		PingInterval:    time.Duration(getEnvInt("WS_PING_INTERVAL_SECONDS", 30)) * time.Second,
		PongTimeout:     time.Duration(getEnvInt("WS_PONG_TIMEOUT_SECONDS", 60)) * time.Second,
		SendQueueSize:   getEnvInt("WS_SEND_QUEUE_SIZE", 64),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}
