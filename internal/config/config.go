package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Client   ClientConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Buffer   BufferConfig
	JWT      JWTConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ClientConfig carries everything the chat client needs to reach the
// backend. The timer values are configurable so tests can shrink them.
type ClientConfig struct {
	AuthBaseURL    string
	RealtimeURL    string
	ReconnectDelay time.Duration
	PingInterval   time.Duration
	TypingDebounce time.Duration
}

type DatabaseConfig struct {
	URL string
}

type RedisConfig struct {
	Addr string
}

type BufferConfig struct {
	Capacity      int
	FlushInterval time.Duration
}

type JWTConfig struct {
	Secret    []byte
	ExpiresIn time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading .env file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:         getEnvOrDefault("PORT", ":8080"),
			ReadTimeout:  getDurationOrDefault("READ_TIMEOUT", "15s"),
			WriteTimeout: getDurationOrDefault("WRITE_TIMEOUT", "15s"),
		},
		Client: ClientConfig{
			AuthBaseURL:    getEnvOrDefault("AUTH_BASE_URL", "http://localhost:8080"),
			RealtimeURL:    getEnvOrDefault("REALTIME_URL", "ws://localhost:8080/socket"),
			ReconnectDelay: getDurationOrDefault("RECONNECT_DELAY", "3s"),
			PingInterval:   getDurationOrDefault("PING_INTERVAL", "5s"),
			TypingDebounce: getDurationOrDefault("TYPING_DEBOUNCE", "1500ms"),
		},
		Database: DatabaseConfig{
			URL: getEnvOrDefault("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			Addr: getEnvOrDefault("REDIS_ADDR", ""),
		},
		Buffer: BufferConfig{
			Capacity:      getIntOrDefault("BUFFER_CAPACITY", 200),
			FlushInterval: getDurationOrDefault("BUFFER_FLUSH_INTERVAL", "30s"),
		},
		JWT: JWTConfig{
			Secret:    []byte(getEnvOrDefault("JWT_SECRET", "")),
			ExpiresIn: getDurationOrDefault("JWT_EXPIRES_IN", "24h"),
		},
	}
}

// RequireJWTSecret exits when the server is started without a signing key.
// The client binaries never call this.
func (c *Config) RequireJWTSecret() {
	if len(c.JWT.Secret) == 0 {
		log.Fatal("JWT_SECRET environment variable is required")
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key, defaultValue string) time.Duration {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		log.Fatalf("Invalid duration for %s: %v", key, err)
	}
	return duration
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Fatalf("Invalid integer for %s: %v", key, err)
	}
	return intValue
}
