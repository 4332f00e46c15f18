// Package session owns the realtime chat session: the connection
// lifecycle state machine, room membership, transcript reconciliation,
// typing debounce and latency sampling. It is the only place session
// state is mutated; views render read-only snapshots.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"stream-chat/internal/models"
	"stream-chat/internal/transport"
	"stream-chat/pkg/logger"

	"github.com/google/uuid"
)

type ConnState string

const (
	StateIdle         ConnState = "idle"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateDisconnected ConnState = "disconnected"
	StateReconnecting ConnState = "reconnecting"
)

// Membership describes the local participant inside a joined room. It is
// set only when the server confirms the join.
type Membership struct {
	RoomID      string
	LocalUserID string
	DisplayName string
	JoinedAt    time.Time
}

// Snapshot is a read-only copy of the session for rendering and tests.
type Snapshot struct {
	State        ConnState
	Credential   *models.Credential
	Membership   *Membership
	Transcript   []models.Message
	ViewerCount  int
	TypingPeers  string
	RoundTripMs  int64
	MessageCount int
}

// Hooks are optional UI callbacks. They are invoked with the controller
// lock held and must not call back into the controller.
type Hooks struct {
	OnState       func(ConnState)
	OnMessage     func(models.Message)
	OnNotice      func(string)
	OnTyping      func(string)
	OnViewerCount func(int)
	OnLatency     func(int64)
}

// Config carries the connection target and timer constants.
type Config struct {
	RealtimeURL    string
	ReconnectDelay time.Duration
	PingInterval   time.Duration
	TypingDebounce time.Duration
}

// AuthClient is the slice of the auth service the controller needs.
type AuthClient interface {
	Login(ctx context.Context, studentID, birthDate string) (*models.Credential, error)
	Verify(ctx context.Context) (*models.Credential, error)
	Logout(ctx context.Context) error
}

const typingPeersNotice = "Someone is typing..."

type Controller struct {
	cfg   Config
	auth  AuthClient
	dial  transport.Dialer
	hooks Hooks

	mu          sync.Mutex
	epoch       int
	state       ConnState
	cred        *models.Credential
	conn        transport.Conn
	pendingJoin *Membership
	member      *Membership
	transcript  []models.Message
	viewerCount int
	typingPeers string
	rttMs       int64
	msgCount    int
	lastLocalID int64

	reconnectTimer *time.Timer
	typingTimer    *time.Timer
	pingStop       chan struct{}
}

func NewController(cfg Config, auth AuthClient, dial transport.Dialer, hooks Hooks) *Controller {
	return &Controller{
		cfg:   cfg,
		auth:  auth,
		dial:  dial,
		hooks: hooks,
		state: StateIdle,
		rttMs: -1,
	}
}

// Authenticate validates the login form, exchanges it for a credential
// and auto-starts the connection. Validation failures never reach the
// network.
func (c *Controller) Authenticate(ctx context.Context, studentID, birthDate string) (*models.Credential, error) {
	studentID = strings.TrimSpace(studentID)
	birthDate = strings.TrimSpace(birthDate)
	if studentID == "" {
		return nil, &models.ValidationError{Field: "studentId", Reason: "must not be empty"}
	}
	if birthDate == "" {
		return nil, &models.ValidationError{Field: "birthDate", Reason: "must not be empty"}
	}
	if len(birthDate) != 6 {
		return nil, &models.ValidationError{Field: "birthDate", Reason: "must be DDMMYY (6 characters)"}
	}

	cred, err := c.auth.Login(ctx, studentID, birthDate)
	if err != nil {
		var rejected *models.AuthRejectedError
		if errors.As(err, &rejected) {
			c.mu.Lock()
			c.cred = nil
			c.mu.Unlock()
		}
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cred = cred
	c.maybeStartLocked()
	return cred, nil
}

// RestoreSession attempts a silent cookie-backed restore. It never fails
// on "not authenticated".
func (c *Controller) RestoreSession(ctx context.Context) (*models.Credential, error) {
	cred, _ := c.auth.Verify(ctx)
	if cred == nil {
		return nil, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cred = cred
	c.maybeStartLocked()
	return cred, nil
}

// JoinRoom sends a join request for the trimmed room id. Membership is
// not set optimistically; it arrives with the server's joinedRoom event.
func (c *Controller) JoinRoom(roomID string) error {
	roomID = strings.TrimSpace(roomID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cred == nil {
		return &models.PreconditionError{Op: "joinRoom", Reason: "not authenticated"}
	}
	if c.state != StateConnected || c.conn == nil {
		return &models.PreconditionError{Op: "joinRoom", Reason: "not connected"}
	}
	if roomID == "" {
		return &models.PreconditionError{Op: "joinRoom", Reason: "room id must not be empty"}
	}

	identity := &Membership{
		RoomID:      roomID,
		LocalUserID: "user_" + uuid.NewString()[:8],
		DisplayName: c.cred.FullName,
	}
	c.pendingJoin = identity

	return c.conn.Emit(models.EventJoinRoom, models.JoinRoomRequest{
		RoomID:   roomID,
		UserID:   identity.LocalUserID,
		Username: identity.DisplayName,
	})
}

// SendMessage emits the message when connected. Offline it appends a
// local-only echo to the transcript; the echo is never queued or retried.
func (c *Controller) SendMessage(body string) error {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateConnected || c.conn == nil {
		name := "You"
		if c.member != nil {
			name = c.member.DisplayName
		} else if c.cred != nil {
			name = c.cred.FullName
		}
		msg := models.Message{
			ID:        c.nextLocalIDLocked(),
			Username:  name,
			Body:      body,
			Timestamp: time.Now().Format(time.RFC3339),
		}
		c.transcript = append(c.transcript, msg)
		c.msgCount++
		if c.hooks.OnMessage != nil {
			c.hooks.OnMessage(msg)
		}
		return nil
	}

	if err := c.conn.Emit(models.EventSendMessage, models.SendMessageRequest{
		Message: body,
		Type:    "text",
	}); err != nil {
		return err
	}

	// Sending a message ends the local typing indicator.
	c.cancelTypingTimerLocked()
	if c.member != nil {
		c.emitTypingLocked(false)
	}
	return nil
}

// ReportTyping forwards the typing indicator. Repeated true calls restart
// the single stop timer; exactly one false auto-emission follows the last
// keystroke once the debounce window elapses.
func (c *Controller) ReportTyping(isTyping bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.member == nil || c.conn == nil || c.state != StateConnected {
		return
	}

	if !isTyping {
		c.cancelTypingTimerLocked()
		c.emitTypingLocked(false)
		return
	}

	c.emitTypingLocked(true)

	c.cancelTypingTimerLocked()
	epoch := c.epoch
	c.typingTimer = time.AfterFunc(c.cfg.TypingDebounce, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if epoch != c.epoch {
			return
		}
		c.typingTimer = nil
		if c.member == nil || c.conn == nil {
			return
		}
		c.emitTypingLocked(false)
	})
}

// LeaveOrEndSession logs out (best-effort) and resets the session.
func (c *Controller) LeaveOrEndSession(ctx context.Context) {
	if err := c.auth.Logout(ctx); err != nil {
		logger.Warn("Logout failed: %v", err)
	}
	c.EndSession()
}

// EndSession tears the session down: cancels every timer, detaches from
// the transport and rebuilds the state at idle. Late timer callbacks and
// events from the discarded handle are fenced off by the epoch bump.
func (c *Controller) EndSession() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	c.cancelReconnectTimerLocked()
	c.cancelTypingTimerLocked()
	c.stopPingLocked()

	if c.conn != nil {
		if c.member != nil {
			c.conn.Emit(models.EventLeaveRoom, models.JoinRoomRequest{
				RoomID:   c.member.RoomID,
				UserID:   c.member.LocalUserID,
				Username: c.member.DisplayName,
			})
		}
		c.conn.Close()
		c.conn = nil
	}

	c.cred = nil
	c.member = nil
	c.pendingJoin = nil
	c.transcript = nil
	c.viewerCount = 0
	c.typingPeers = ""
	c.rttMs = -1
	c.msgCount = 0
	c.setStateLocked(StateIdle)
}

// Snapshot returns a copy of the current session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		State:        c.state,
		ViewerCount:  c.viewerCount,
		TypingPeers:  c.typingPeers,
		RoundTripMs:  c.rttMs,
		MessageCount: c.msgCount,
	}
	if c.cred != nil {
		cred := *c.cred
		snap.Credential = &cred
	}
	if c.member != nil {
		member := *c.member
		snap.Membership = &member
	}
	snap.Transcript = make([]models.Message, len(c.transcript))
	copy(snap.Transcript, c.transcript)
	return snap
}

// connection lifecycle

func (c *Controller) maybeStartLocked() {
	if c.cred == nil || c.conn != nil || c.reconnectTimer != nil {
		return
	}
	if c.state != StateIdle && c.state != StateDisconnected {
		return
	}
	c.startLocked()
}

func (c *Controller) startLocked() {
	c.setStateLocked(StateConnecting)
	epoch := c.epoch
	cred := c.cred
	go c.dialAndRun(epoch, cred)
}

func (c *Controller) dialAndRun(epoch int, cred *models.Credential) {
	conn, err := c.dial(context.Background(), c.cfg.RealtimeURL, cred)

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}

	if err != nil {
		var rejected *models.AuthRejectedError
		if errors.As(err, &rejected) {
			// Credential rejection is terminal: back to the login form.
			c.cred = nil
			c.setStateLocked(StateDisconnected)
			c.notifyLocked("Authentication failed - please log in again")
			c.mu.Unlock()
			return
		}
		c.setStateLocked(StateDisconnected)
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		return
	}

	c.conn = conn
	c.cancelReconnectTimerLocked()
	c.setStateLocked(StateConnected)
	c.startPingLocked(conn)
	c.mu.Unlock()

	go c.consume(epoch, conn)
}

func (c *Controller) consume(epoch int, conn transport.Conn) {
	for ev := range conn.Events() {
		c.mu.Lock()
		if epoch != c.epoch || c.conn != conn {
			c.mu.Unlock()
			return
		}
		if ev.Err != nil {
			c.handleDisconnectLocked()
			c.mu.Unlock()
			return
		}
		c.handleEventLocked(ev.Envelope)
		c.mu.Unlock()
	}
}

func (c *Controller) handleDisconnectLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.stopPingLocked()
	c.member = nil
	c.pendingJoin = nil
	c.viewerCount = 0
	c.typingPeers = ""
	if c.hooks.OnViewerCount != nil {
		c.hooks.OnViewerCount(0)
	}
	c.setStateLocked(StateDisconnected)
	c.scheduleReconnectLocked()
}

func (c *Controller) scheduleReconnectLocked() {
	if c.cred == nil || c.reconnectTimer != nil {
		return
	}

	c.setStateLocked(StateReconnecting)
	epoch := c.epoch
	c.reconnectTimer = time.AfterFunc(c.cfg.ReconnectDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if epoch != c.epoch {
			return
		}
		c.reconnectTimer = nil
		if c.conn != nil {
			// Tear down the stale handle before redialing.
			c.conn.Close()
			c.conn = nil
		}
		if c.cred == nil {
			c.setStateLocked(StateDisconnected)
			return
		}
		c.startLocked()
	})
}

func (c *Controller) cancelReconnectTimerLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

func (c *Controller) cancelTypingTimerLocked() {
	if c.typingTimer != nil {
		c.typingTimer.Stop()
		c.typingTimer = nil
	}
}

// latency sampling

func (c *Controller) startPingLocked(conn transport.Conn) {
	if c.pingStop != nil {
		return
	}
	stop := make(chan struct{})
	c.pingStop = stop

	go func() {
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := conn.Emit(models.EventPing, models.PingPayload{SentAt: time.Now().UnixMilli()}); err != nil {
					return
				}
			}
		}
	}()
}

func (c *Controller) stopPingLocked() {
	if c.pingStop != nil {
		close(c.pingStop)
		c.pingStop = nil
	}
}

// inbound event reconciliation

func (c *Controller) handleEventLocked(env models.Envelope) {
	switch env.Event {
	case models.EventJoinedRoom:
		var payload models.JoinedRoomPayload
		if err := env.Decode(&payload); err != nil {
			logger.Debug("Malformed joinedRoom payload: %v", err)
			return
		}
		c.handleJoinedRoomLocked(payload)

	case models.EventNewMessage:
		var msg models.Message
		if err := env.Decode(&msg); err != nil {
			logger.Debug("Malformed newMessage payload: %v", err)
			return
		}
		c.appendMessageLocked(msg)

	case models.EventUserJoined:
		var payload models.PresencePayload
		if err := env.Decode(&payload); err != nil {
			return
		}
		c.appendNoticeLocked(fmt.Sprintf("%s joined the room", payload.Username))
		c.setViewerCountLocked(payload.ViewerCount)

	case models.EventUserLeft:
		var payload models.PresencePayload
		if err := env.Decode(&payload); err != nil {
			return
		}
		c.appendNoticeLocked(fmt.Sprintf("%s left the room", payload.Username))
		c.setViewerCountLocked(payload.ViewerCount)

	case models.EventTyping, models.EventUserTyping:
		var payload models.TypingPayload
		if err := env.Decode(&payload); err != nil {
			return
		}
		c.handleTypingLocked(payload)

	case models.EventPong:
		var payload models.PingPayload
		if err := env.Decode(&payload); err != nil {
			return
		}
		c.rttMs = time.Now().UnixMilli() - payload.SentAt
		if c.hooks.OnLatency != nil {
			c.hooks.OnLatency(c.rttMs)
		}

	case models.EventJoinRoomError:
		var payload models.ErrorPayload
		env.Decode(&payload)
		c.pendingJoin = nil
		c.notifyLocked("Failed to join room: " + payload.Message)

	case models.EventError:
		var payload models.ErrorPayload
		env.Decode(&payload)
		c.notifyLocked("Server error: " + payload.Message)

	default:
		logger.Debug("Ignoring unknown event %q", env.Event)
	}
}

func (c *Controller) handleJoinedRoomLocked(payload models.JoinedRoomPayload) {
	if c.pendingJoin == nil {
		logger.Debug("joinedRoom without a pending join, ignoring")
		return
	}

	member := *c.pendingJoin
	member.JoinedAt = time.Now()
	c.member = &member
	c.pendingJoin = nil

	// The server snapshot fully replaces local state.
	c.transcript = make([]models.Message, len(payload.Messages))
	copy(c.transcript, payload.Messages)
	c.msgCount = len(payload.Messages)
	c.setViewerCountLocked(payload.ViewerCount)
	c.notifyLocked(fmt.Sprintf("Joined room %s", member.RoomID))
}

func (c *Controller) appendMessageLocked(msg models.Message) {
	// Skip the authoritative echo of a message already present, matched
	// by id or by (timestamp, body).
	for _, existing := range c.transcript {
		if msg.ID != 0 && existing.ID == msg.ID {
			return
		}
		if existing.Timestamp == msg.Timestamp && existing.Body == msg.Body {
			return
		}
	}

	c.transcript = append(c.transcript, msg)
	c.msgCount++
	if c.hooks.OnMessage != nil {
		c.hooks.OnMessage(msg)
	}
}

func (c *Controller) appendNoticeLocked(text string) {
	notice := models.NewSystemNotice(text)
	c.transcript = append(c.transcript, notice)
	c.msgCount++
	if c.hooks.OnMessage != nil {
		c.hooks.OnMessage(notice)
	}
}

func (c *Controller) handleTypingLocked(payload models.TypingPayload) {
	local := false
	if c.member != nil && payload.UserID != "" && payload.UserID == c.member.LocalUserID {
		local = true
	}
	if c.cred != nil && payload.StudentID != "" && payload.StudentID == c.cred.StudentID {
		local = true
	}

	if payload.IsTyping && !local {
		c.typingPeers = typingPeersNotice
	} else {
		c.typingPeers = ""
	}
	if c.hooks.OnTyping != nil {
		c.hooks.OnTyping(c.typingPeers)
	}
}

func (c *Controller) emitTypingLocked(isTyping bool) {
	if c.conn == nil || c.member == nil {
		return
	}
	c.conn.Emit(models.EventTyping, models.TypingPayload{
		RoomID:    c.member.RoomID,
		UserID:    c.member.LocalUserID,
		StudentID: c.credStudentIDLocked(),
		Username:  c.member.DisplayName,
		IsTyping:  isTyping,
	})
}

func (c *Controller) credStudentIDLocked() string {
	if c.cred == nil {
		return ""
	}
	return c.cred.StudentID
}

func (c *Controller) setViewerCountLocked(count int) {
	c.viewerCount = count
	if c.hooks.OnViewerCount != nil {
		c.hooks.OnViewerCount(count)
	}
}

func (c *Controller) setStateLocked(state ConnState) {
	if c.state == state {
		return
	}
	c.state = state
	if c.hooks.OnState != nil {
		c.hooks.OnState(state)
	}
}

func (c *Controller) notifyLocked(text string) {
	if c.hooks.OnNotice != nil {
		c.hooks.OnNotice(text)
	}
}

func (c *Controller) nextLocalIDLocked() int64 {
	id := time.Now().UnixMilli()
	if id <= c.lastLocalID {
		id = c.lastLocalID + 1
	}
	c.lastLocalID = id
	return id
}
