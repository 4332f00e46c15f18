// Package transport binds the realtime event channel to a websocket
// connection. The connection speaks the named-event envelope protocol;
// everything above it (session state, reconnection) lives in the session
// controller.
package transport

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"stream-chat/internal/models"
	"stream-chat/pkg/logger"

	"github.com/gorilla/websocket"
)

// Event is one inbound item from the channel. A non-nil Err is the
// terminal transport-level disconnect notification; no further events
// follow it.
type Event struct {
	Envelope models.Envelope
	Err      error
}

// Conn is an established bidirectional event channel.
type Conn interface {
	Emit(event string, data interface{}) error
	Events() <-chan Event
	Close() error
}

// Dialer opens a channel to the realtime service. The session controller
// takes a Dialer so tests can inject a fake transport.
type Dialer func(ctx context.Context, rawURL string, cred *models.Credential) (Conn, error)

// NewDialer returns the websocket Dialer. The credential travels as a
// token query parameter when present; the cookie jar covers deployments
// that authenticate the handshake with the session cookie instead.
func NewDialer(jar http.CookieJar) Dialer {
	return func(ctx context.Context, rawURL string, cred *models.Credential) (Conn, error) {
		target, err := url.Parse(rawURL)
		if err != nil {
			return nil, err
		}
		if cred != nil && cred.AccessToken != "" {
			q := target.Query()
			q.Set("token", cred.AccessToken)
			target.RawQuery = q.Encode()
		}

		dialer := websocket.Dialer{
			Jar:              jar,
			HandshakeTimeout: 10 * time.Second,
		}

		conn, resp, err := dialer.DialContext(ctx, target.String(), nil)
		if err != nil {
			if errors.Is(err, websocket.ErrBadHandshake) && resp != nil &&
				(resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
				return nil, &models.AuthRejectedError{Message: resp.Status}
			}
			return nil, err
		}

		wc := &wsConn{
			conn:   conn,
			events: make(chan Event, 32),
		}
		go wc.readPump()
		return wc, nil
	}
}

type wsConn struct {
	conn      *websocket.Conn
	events    chan Event
	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (c *wsConn) Emit(event string, data interface{}) error {
	env, err := models.NewEnvelope(event, data)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(env)
}

func (c *wsConn) Events() <-chan Event {
	return c.events
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func (c *wsConn) readPump() {
	defer close(c.events)

	for {
		var env models.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Debug("Realtime channel read error: %v", err)
			}
			c.events <- Event{Err: err}
			return
		}
		c.events <- Event{Envelope: env}
	}
}
