package server

import (
	"context"
	"sync"
	"time"

	"stream-chat/internal/buffer"
	"stream-chat/internal/models"
	"stream-chat/pkg/logger"
)

const joinSnapshotSize = 50

// outbound is a broadcast request; exclude skips one client (the actor
// of the event, who learns the outcome some other way).
type outbound struct {
	env     models.Envelope
	exclude *Client
}

// Hub fans events out to every client in one room.
type Hub struct {
	roomID       string
	Broadcast    chan outbound
	Register     chan *Client
	Unregister   chan *Client
	shutdown     chan bool
	lastActivity time.Time
	buf          buffer.Buffer

	mu      sync.Mutex
	clients map[*Client]bool
}

func NewHub(roomID string, buf buffer.Buffer) *Hub {
	return &Hub{
		roomID:       roomID,
		Broadcast:    make(chan outbound, 16),
		Register:     make(chan *Client),
		Unregister:   make(chan *Client),
		shutdown:     make(chan bool),
		lastActivity: time.Now(),
		buf:          buf,
		clients:      make(map[*Client]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.shutdown:
			h.mu.Lock()
			for client := range h.clients {
				client.closeSend()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.lastActivity = time.Now()

			h.sendJoinSnapshot(client, count)
			h.broadcastToAll(h.presenceEnvelope(models.EventUserJoined, client.username, count), client)
			logger.Info("User %s joined room %s", client.username, h.roomID)

		case client := <-h.Unregister:
			h.mu.Lock()
			_, ok := h.clients[client]
			if ok {
				delete(h.clients, client)
			}
			count := len(h.clients)
			h.mu.Unlock()

			if ok {
				h.broadcastToAll(h.presenceEnvelope(models.EventUserLeft, client.username, count), nil)
				logger.Info("User %s left room %s", client.username, h.roomID)
			}

		case out := <-h.Broadcast:
			h.lastActivity = time.Now()
			h.broadcastToAll(out.env, out.exclude)
		}
	}
}

func (h *Hub) ViewerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Roster returns the clients currently in the room.
func (h *Hub) Roster() []*Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		out = append(out, client)
	}
	return out
}

func (h *Hub) sendJoinSnapshot(client *Client, viewerCount int) {
	recent, err := h.buf.Recent(context.Background(), h.roomID, joinSnapshotSize)
	if err != nil {
		logger.Error("Error loading recent messages for room %s: %v", h.roomID, err)
	}
	if recent == nil {
		recent = []models.Message{}
	}

	env, err := models.NewEnvelope(models.EventJoinedRoom, models.JoinedRoomPayload{
		RoomID:      h.roomID,
		Messages:    recent,
		ViewerCount: viewerCount,
	})
	if err != nil {
		logger.Error("Error marshaling join snapshot: %v", err)
		return
	}
	client.trySend(env)
}

func (h *Hub) presenceEnvelope(event, username string, viewerCount int) models.Envelope {
	env, err := models.NewEnvelope(event, models.PresencePayload{
		Username:    username,
		ViewerCount: viewerCount,
	})
	if err != nil {
		logger.Error("Error marshaling presence event: %v", err)
	}
	return env
}

func (h *Hub) broadcastToAll(env models.Envelope, exclude *Client) {
	h.mu.Lock()
	targets := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		if client != exclude {
			targets = append(targets, client)
		}
	}
	h.mu.Unlock()

	for _, client := range targets {
		client.trySend(env)
	}
}

func (h *Hub) ShutdownHub() {
	select {
	case h.shutdown <- true:
	default:
	}
}

// Hub Manager
type Manager struct {
	hubs  map[string]*Hub
	mutex sync.Mutex
	buf   buffer.Buffer
}

func NewManager(buf buffer.Buffer) *Manager {
	manager := &Manager{
		hubs: make(map[string]*Hub),
		buf:  buf,
	}

	go manager.cleanupUnusedHubs()
	return manager
}

func (m *Manager) GetHubForRoom(roomID string) *Hub {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	hub, exists := m.hubs[roomID]
	if !exists {
		hub = NewHub(roomID, m.buf)
		m.hubs[roomID] = hub
		go hub.Run()
	}
	return hub
}

// OnlineUsers lists every connected participant across rooms, for the
// admin dashboard.
func (m *Manager) OnlineUsers() []OnlineUser {
	m.mutex.Lock()
	hubs := make([]*Hub, 0, len(m.hubs))
	for _, hub := range m.hubs {
		hubs = append(hubs, hub)
	}
	m.mutex.Unlock()

	var out []OnlineUser
	for _, hub := range hubs {
		for _, client := range hub.Roster() {
			out = append(out, OnlineUser{
				UserID:      client.localID,
				StudentID:   client.user.StudentID,
				Username:    client.username,
				RoomID:      hub.roomID,
				ConnectedAt: client.connectedAt,
			})
		}
	}
	return out
}

func (m *Manager) ActiveRooms() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	count := 0
	for _, hub := range m.hubs {
		if hub.ViewerCount() > 0 {
			count++
		}
	}
	return count
}

func (m *Manager) cleanupUnusedHubs() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		m.mutex.Lock()
		for roomID, hub := range m.hubs {
			if hub.ViewerCount() == 0 && time.Since(hub.lastActivity) > 30*time.Minute {
				hub.ShutdownHub()
				delete(m.hubs, roomID)
				logger.Debug("Cleaned up unused hub for room %s", roomID)
			}
		}
		m.mutex.Unlock()
	}
}

// OnlineUser is one row of the admin "online users" listing.
type OnlineUser struct {
	UserID      string    `json:"userId"`
	StudentID   string    `json:"studentId"`
	Username    string    `json:"username"`
	RoomID      string    `json:"roomId"`
	ConnectedAt time.Time `json:"connectedAt"`
}
