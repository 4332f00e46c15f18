package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"stream-chat/internal/auth"
	"stream-chat/internal/buffer"
	"stream-chat/internal/config"
	"stream-chat/internal/database"
	"stream-chat/internal/server"
	"stream-chat/pkg/logger"

	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg := config.Load()
	cfg.RequireJWTSecret()

	// Initialize storage
	var store database.Store
	if cfg.Database.URL != "" {
		pg, err := database.NewPostgresDB(cfg.Database.URL)
		if err != nil {
			logger.Fatal("Failed to connect to database: %v", err)
		}
		store = pg
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory storage")
		store = database.NewMemoryDB()
	}
	defer store.Close()

	seedUsers(store)

	// Initialize the recent-message buffer
	var buf buffer.Buffer
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		buf = buffer.NewRedisBuffer(client, cfg.Buffer.Capacity)
		logger.Info("Using Redis message buffer at %s", cfg.Redis.Addr)
	} else {
		buf = buffer.NewMemoryBuffer(cfg.Buffer.Capacity)
	}

	// Initialize services and handlers
	authService := auth.NewService(store, cfg)
	srv := server.NewServer(store, buf, authService)
	authHandlers := server.NewAuthHandlers(authService)
	adminHandlers := server.NewAdminHandlers(store, buf, srv.Hubs(), authService)

	httpServer := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      server.NewMux(srv, authHandlers, adminHandlers),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	flushCtx, stopFlush := context.WithCancel(context.Background())
	go srv.RunBufferFlush(flushCtx, cfg.Buffer.FlushInterval)

	logger.Info("Chat server started on http://localhost%s", cfg.Server.Port)
	logger.Info("Realtime endpoint: ws://localhost%s/socket", cfg.Server.Port)
	printAPIEndpoints()

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Server shutting down...")

	stopFlush()
	if _, err := buf.Flush(context.Background(), store); err != nil {
		logger.Error("Final buffer flush failed: %v", err)
	}
	if err := httpServer.Shutdown(context.Background()); err != nil {
		logger.Error("Shutdown error: %v", err)
	}
}

// seedUsers provisions students from SEED_USERS, a comma-separated list
// of studentId:birthDate:fullName[:role] records.
func seedUsers(store database.Store) {
	raw := os.Getenv("SEED_USERS")
	if raw == "" {
		return
	}

	for _, record := range strings.Split(raw, ",") {
		fields := strings.Split(strings.TrimSpace(record), ":")
		if len(fields) < 3 {
			logger.Warn("Skipping malformed seed record %q", record)
			continue
		}
		role := ""
		if len(fields) > 3 {
			role = fields[3]
		}
		if _, err := store.CreateUser(context.Background(), fields[0], fields[1], fields[2], role); err != nil {
			logger.Error("Failed to seed user %s: %v", fields[0], err)
			continue
		}
		logger.Info("Seeded user %s", fields[0])
	}
}

func printAPIEndpoints() {
	logger.Info("API endpoints:")
	logger.Info("   POST /auth/login")
	logger.Info("   GET  /auth/verify")
	logger.Info("   POST /auth/logout")
	logger.Info("   GET  /socket (websocket)")
	logger.Info("   GET  /admin/dashboard/stats")
	logger.Info("   GET  /admin/users?page=&limit=")
	logger.Info("   GET  /admin/users/online")
	logger.Info("   GET  /admin/users/banned")
	logger.Info("   GET  /admin/users/status?userId=")
	logger.Info("   POST /admin/users/ban")
	logger.Info("   POST /admin/users/unban")
	logger.Info("   GET  /admin/buffer-stats")
	logger.Info("   POST /admin/flush-messages")
}
