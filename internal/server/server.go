// Package server is the reference chat backend: the auth and admin REST
// surfaces plus the realtime websocket channel the client connects to.
package server

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"stream-chat/internal/auth"
	"stream-chat/internal/buffer"
	"stream-chat/internal/database"
	"stream-chat/pkg/logger"

	"github.com/gorilla/websocket"
)

type Server struct {
	store       database.Store
	buf         buffer.Buffer
	hubs        *Manager
	authService *auth.Service
	upgrader    websocket.Upgrader
	msgSeq      atomic.Int64
}

func NewServer(store database.Store, buf buffer.Buffer, authService *auth.Service) *Server {
	return &Server{
		store:       store,
		buf:         buf,
		hubs:        NewManager(buf),
		authService: authService,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // Configure for production
		},
	}
}

func (s *Server) Hubs() *Manager {
	return s.hubs
}

func (s *Server) nextMessageID() int64 {
	return s.msgSeq.Add(1)
}

// HandleWebSocket authenticates the handshake (token query parameter or
// session cookie) and starts the client pumps.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		if cookie, err := r.Cookie(sessionCookieName); err == nil {
			tokenStr = cookie.Value
		}
	}
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	user, err := s.authService.GetUserFromToken(r.Context(), tokenStr)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	if user.Banned {
		http.Error(w, "banned", http.StatusForbidden)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Upgrade error: %v", err)
		return
	}

	client := NewClient(s, conn, user)
	go client.WritePump()
	go client.ReadPump()
}

// RunBufferFlush periodically archives buffered messages to storage
// until ctx is cancelled.
func (s *Server) RunBufferFlush(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.buf.Flush(ctx, s.store); err != nil {
				logger.Error("Buffer flush failed: %v", err)
			} else if n > 0 {
				logger.Debug("Flushed %d messages to storage", n)
			}
		}
	}
}
