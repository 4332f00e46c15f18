package server

import (
	"context"
	"strings"
	"sync"
	"time"

	"stream-chat/internal/models"
	"stream-chat/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// Client is one websocket connection on the server side. It routes the
// named events of the realtime protocol to its room hub.
type Client struct {
	server      *Server
	conn        *websocket.Conn
	user        *models.User
	hub         *Hub
	localID     string
	username    string
	joined      bool
	connectedAt time.Time

	send       chan models.Envelope
	sendMu     sync.Mutex
	sendClosed bool
}

func NewClient(server *Server, conn *websocket.Conn, user *models.User) *Client {
	return &Client{
		server:      server,
		conn:        conn,
		user:        user,
		username:    user.FullName,
		connectedAt: time.Now(),
		send:        make(chan models.Envelope, 64),
	}
}

// trySend enqueues an envelope without blocking; slow consumers lose
// events rather than stalling the hub.
func (c *Client) trySend(env models.Envelope) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return
	}
	select {
	case c.send <- env:
	default:
		logger.Warn("Dropping event %s for slow client %s", env.Event, c.username)
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.sendClosed {
		c.sendClosed = true
		close(c.send)
	}
}

func (c *Client) ReadPump() {
	defer func() {
		if c.joined && c.hub != nil {
			c.hub.Unregister <- c
		}
		c.closeSend()
		c.conn.Close()
	}()

	// Read deadline and pong handler for connection health
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var env models.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket error: %v", err)
			}
			return
		}
		c.handleEvent(env)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(env); err != nil {
				logger.Error("Write error: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleEvent(env models.Envelope) {
	switch env.Event {
	case models.EventJoinRoom:
		c.handleJoinRoom(env)

	case models.EventSendMessage:
		c.handleSendMessage(env)

	case models.EventTyping:
		c.handleTyping(env)

	case models.EventPing:
		var payload models.PingPayload
		if err := env.Decode(&payload); err != nil {
			return
		}
		c.reply(models.EventPong, payload)

	case models.EventLeaveRoom:
		if c.joined && c.hub != nil {
			c.hub.Unregister <- c
			c.joined = false
			c.hub = nil
		}

	default:
		logger.Debug("Ignoring unknown client event %q", env.Event)
	}
}

func (c *Client) handleJoinRoom(env models.Envelope) {
	var req models.JoinRoomRequest
	if err := env.Decode(&req); err != nil {
		c.reply(models.EventJoinRoomError, models.ErrorPayload{Message: "malformed join request"})
		return
	}

	roomID := strings.TrimSpace(req.RoomID)
	if roomID == "" {
		c.reply(models.EventJoinRoomError, models.ErrorPayload{Message: "room id is required"})
		return
	}
	if c.joined {
		c.reply(models.EventJoinRoomError, models.ErrorPayload{Message: "already in a room"})
		return
	}

	// Re-check the ban flag at join time; a ban issued after login must
	// take effect on the next join.
	user, err := c.server.store.GetUserByStudentID(context.Background(), c.user.StudentID)
	if err == nil && user.Banned {
		c.reply(models.EventJoinRoomError, models.ErrorPayload{Message: "you are banned from chat"})
		return
	}

	if req.UserID != "" {
		c.localID = req.UserID
	}
	if req.Username != "" {
		c.username = req.Username
	}

	c.hub = c.server.hubs.GetHubForRoom(roomID)
	c.joined = true
	c.hub.Register <- c
}

func (c *Client) handleSendMessage(env models.Envelope) {
	if !c.joined || c.hub == nil {
		c.reply(models.EventError, models.ErrorPayload{Message: "join a room first"})
		return
	}

	var req models.SendMessageRequest
	if err := env.Decode(&req); err != nil {
		return
	}

	body := strings.TrimSpace(req.Message)
	if body == "" {
		return
	}

	msg := models.Message{
		ID:        c.server.nextMessageID(),
		Username:  c.username,
		Body:      body,
		Timestamp: time.Now().Format(time.RFC3339),
	}

	if err := c.server.buf.Append(context.Background(), c.hub.roomID, msg); err != nil {
		logger.Error("Error buffering message: %v", err)
	}

	out, err := models.NewEnvelope(models.EventNewMessage, msg)
	if err != nil {
		logger.Error("Error marshaling message: %v", err)
		return
	}
	c.hub.Broadcast <- outbound{env: out}
}

func (c *Client) handleTyping(env models.Envelope) {
	if !c.joined || c.hub == nil {
		return
	}

	var payload models.TypingPayload
	if err := env.Decode(&payload); err != nil {
		return
	}
	payload.RoomID = c.hub.roomID
	if payload.UserID == "" {
		payload.UserID = c.localID
	}
	if payload.Username == "" {
		payload.Username = c.username
	}
	payload.StudentID = c.user.StudentID

	out, err := models.NewEnvelope(models.EventUserTyping, payload)
	if err != nil {
		return
	}
	c.hub.Broadcast <- outbound{env: out, exclude: c}
}

func (c *Client) reply(event string, data interface{}) {
	env, err := models.NewEnvelope(event, data)
	if err != nil {
		logger.Error("Error marshaling %s reply: %v", event, err)
		return
	}
	c.trySend(env)
}
