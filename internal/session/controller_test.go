package session

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"stream-chat/internal/models"
	"stream-chat/internal/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitTimeout = 2 * time.Second
	waitTick    = 5 * time.Millisecond
)

type fakeConn struct {
	events chan transport.Event

	mu      sync.Mutex
	emitted []models.Envelope
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan transport.Event, 32)}
}

func (f *fakeConn) Emit(event string, data interface{}) error {
	env, err := models.NewEnvelope(event, data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitted = append(f.emitted, env)
	return nil
}

func (f *fakeConn) Events() <-chan transport.Event {
	return f.events
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) push(t *testing.T, event string, data interface{}) {
	t.Helper()
	env, err := models.NewEnvelope(event, data)
	require.NoError(t, err)
	f.events <- transport.Event{Envelope: env}
}

func (f *fakeConn) fail(err error) {
	f.events <- transport.Event{Err: err}
}

func (f *fakeConn) countEmitted(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, env := range f.emitted {
		if env.Event == event {
			count++
		}
	}
	return count
}

func (f *fakeConn) typingEmissions(isTyping bool) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, env := range f.emitted {
		if env.Event != models.EventTyping {
			continue
		}
		var payload models.TypingPayload
		if err := env.Decode(&payload); err != nil {
			continue
		}
		if payload.IsTyping == isTyping {
			count++
		}
	}
	return count
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	errs  []error
	calls int
}

func (d *fakeDialer) dial(ctx context.Context, rawURL string, cred *models.Credential) (transport.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	idx := d.calls
	d.calls++
	if idx < len(d.errs) && d.errs[idx] != nil {
		return nil, d.errs[idx]
	}
	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

type fakeAuth struct {
	mu          sync.Mutex
	cred        *models.Credential
	loginErr    error
	loginCalls  int
	logoutCalls int
}

func (a *fakeAuth) Login(ctx context.Context, studentID, birthDate string) (*models.Credential, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loginCalls++
	if a.loginErr != nil {
		return nil, a.loginErr
	}
	return a.cred, nil
}

func (a *fakeAuth) Verify(ctx context.Context) (*models.Credential, error) {
	return nil, nil
}

func (a *fakeAuth) Logout(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logoutCalls++
	return nil
}

func (a *fakeAuth) loginCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loginCalls
}

func testConfig() Config {
	return Config{
		RealtimeURL:    "ws://test/socket",
		ReconnectDelay: 30 * time.Millisecond,
		PingInterval:   time.Hour,
		TypingDebounce: 50 * time.Millisecond,
	}
}

func testCredential() *models.Credential {
	return &models.Credential{
		StudentID:   "SV001",
		FullName:    "Nguyen Van A",
		AccessToken: "token-1",
	}
}

func waitForState(t *testing.T, c *Controller, state ConnState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.Snapshot().State == state
	}, waitTimeout, waitTick, "expected state %s", state)
}

// connectAndJoin authenticates, waits for the connection and completes a
// room join with a server confirmation carrying the given snapshot.
func connectAndJoin(t *testing.T, c *Controller, dialer *fakeDialer, payload models.JoinedRoomPayload) *fakeConn {
	t.Helper()

	_, err := c.Authenticate(context.Background(), "SV001", "150807")
	require.NoError(t, err)
	waitForState(t, c, StateConnected)

	require.NoError(t, c.JoinRoom("room-42"))
	conn := dialer.conn(0)
	require.Equal(t, 1, conn.countEmitted(models.EventJoinRoom))

	conn.push(t, models.EventJoinedRoom, payload)
	require.Eventually(t, func() bool {
		return c.Snapshot().Membership != nil
	}, waitTimeout, waitTick)
	return conn
}

func TestAuthenticateValidation(t *testing.T) {
	auth := &fakeAuth{cred: testCredential()}
	dialer := &fakeDialer{}
	c := NewController(testConfig(), auth, dialer.dial, Hooks{})

	cases := []struct {
		name      string
		studentID string
		birthDate string
	}{
		{"empty student id", "", "150807"},
		{"empty birth date", "SV001", ""},
		{"short birth date", "SV001", "15087"},
		{"long birth date", "SV001", "1508071"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Authenticate(context.Background(), tc.studentID, tc.birthDate)
			var validation *models.ValidationError
			require.ErrorAs(t, err, &validation)
		})
	}

	// Validation failures never reach the auth service or the transport.
	assert.Equal(t, 0, auth.loginCount())
	assert.Equal(t, 0, dialer.callCount())
	assert.Equal(t, StateIdle, c.Snapshot().State)
}

func TestAuthenticateAutoConnects(t *testing.T) {
	auth := &fakeAuth{cred: testCredential()}
	dialer := &fakeDialer{}
	c := NewController(testConfig(), auth, dialer.dial, Hooks{})

	cred, err := c.Authenticate(context.Background(), "SV001", "150807")
	require.NoError(t, err)
	require.Equal(t, "SV001", cred.StudentID)

	waitForState(t, c, StateConnected)
	assert.Equal(t, 1, dialer.callCount())
}

func TestAuthenticateRejectedClearsCredential(t *testing.T) {
	auth := &fakeAuth{loginErr: &models.AuthRejectedError{Message: "bad secret"}}
	dialer := &fakeDialer{}
	c := NewController(testConfig(), auth, dialer.dial, Hooks{})

	_, err := c.Authenticate(context.Background(), "SV001", "150807")
	var rejected *models.AuthRejectedError
	require.ErrorAs(t, err, &rejected)

	snap := c.Snapshot()
	assert.Nil(t, snap.Credential)
	assert.Equal(t, StateIdle, snap.State)
	assert.Equal(t, 0, dialer.callCount())
}

func TestJoinRoomPreconditions(t *testing.T) {
	t.Run("not authenticated", func(t *testing.T) {
		c := NewController(testConfig(), &fakeAuth{}, (&fakeDialer{}).dial, Hooks{})
		err := c.JoinRoom("room-42")
		var precondition *models.PreconditionError
		require.ErrorAs(t, err, &precondition)
	})

	t.Run("not connected", func(t *testing.T) {
		auth := &fakeAuth{cred: testCredential()}
		dialer := &fakeDialer{errs: []error{io.EOF, io.EOF, io.EOF, io.EOF}}
		c := NewController(testConfig(), auth, dialer.dial, Hooks{})
		defer c.EndSession()

		_, err := c.Authenticate(context.Background(), "SV001", "150807")
		require.NoError(t, err)
		require.Eventually(t, func() bool {
			state := c.Snapshot().State
			return state == StateDisconnected || state == StateReconnecting
		}, waitTimeout, waitTick)

		err = c.JoinRoom("room-42")
		var precondition *models.PreconditionError
		require.ErrorAs(t, err, &precondition)
	})

	t.Run("empty room id", func(t *testing.T) {
		auth := &fakeAuth{cred: testCredential()}
		dialer := &fakeDialer{}
		c := NewController(testConfig(), auth, dialer.dial, Hooks{})
		defer c.EndSession()

		_, err := c.Authenticate(context.Background(), "SV001", "150807")
		require.NoError(t, err)
		waitForState(t, c, StateConnected)

		err = c.JoinRoom("   ")
		var precondition *models.PreconditionError
		require.ErrorAs(t, err, &precondition)
		assert.Equal(t, 0, dialer.conn(0).countEmitted(models.EventJoinRoom))
	})
}

func TestJoinRoomConfirmationReplacesState(t *testing.T) {
	auth := &fakeAuth{cred: testCredential()}
	dialer := &fakeDialer{}
	c := NewController(testConfig(), auth, dialer.dial, Hooks{})
	defer c.EndSession()

	connectAndJoin(t, c, dialer, models.JoinedRoomPayload{
		Messages: []models.Message{
			{ID: 1, Username: "Bob", Body: "hi", Timestamp: "2026-08-30T10:00:00Z"},
		},
		ViewerCount: 5,
	})

	snap := c.Snapshot()
	require.NotNil(t, snap.Membership)
	assert.Equal(t, "room-42", snap.Membership.RoomID)
	assert.Equal(t, "Nguyen Van A", snap.Membership.DisplayName)
	require.Len(t, snap.Transcript, 1)
	assert.Equal(t, int64(1), snap.Transcript[0].ID)
	assert.Equal(t, 5, snap.ViewerCount)
	assert.Equal(t, 1, snap.MessageCount)
}

func TestJoinedRoomIsAuthoritativeForMembership(t *testing.T) {
	auth := &fakeAuth{cred: testCredential()}
	dialer := &fakeDialer{}
	c := NewController(testConfig(), auth, dialer.dial, Hooks{})
	defer c.EndSession()

	_, err := c.Authenticate(context.Background(), "SV001", "150807")
	require.NoError(t, err)
	waitForState(t, c, StateConnected)
	conn := dialer.conn(0)

	// A userJoined for another participant must not create membership.
	conn.push(t, models.EventUserJoined, models.PresencePayload{Username: "Bob", ViewerCount: 3})
	require.Eventually(t, func() bool {
		return c.Snapshot().ViewerCount == 3
	}, waitTimeout, waitTick)

	snap := c.Snapshot()
	assert.Nil(t, snap.Membership)
	require.Len(t, snap.Transcript, 1)
	assert.True(t, snap.Transcript[0].System)
}

func TestOfflineSendMessageIsLocalEcho(t *testing.T) {
	dialer := &fakeDialer{}
	c := NewController(testConfig(), &fakeAuth{}, dialer.dial, Hooks{})

	require.NoError(t, c.SendMessage("hello"))

	snap := c.Snapshot()
	require.Len(t, snap.Transcript, 1)
	assert.Equal(t, "hello", snap.Transcript[0].Body)
	assert.False(t, snap.Transcript[0].System)
	assert.NotZero(t, snap.Transcript[0].ID)
	assert.Equal(t, 0, dialer.callCount())

	// Empty and whitespace-only bodies are no-ops.
	require.NoError(t, c.SendMessage("   "))
	assert.Len(t, c.Snapshot().Transcript, 1)
}

func TestSendMessageWhenConnected(t *testing.T) {
	auth := &fakeAuth{cred: testCredential()}
	dialer := &fakeDialer{}
	c := NewController(testConfig(), auth, dialer.dial, Hooks{})
	defer c.EndSession()

	conn := connectAndJoin(t, c, dialer, models.JoinedRoomPayload{})

	require.NoError(t, c.SendMessage("hello room"))
	assert.Equal(t, 1, conn.countEmitted(models.EventSendMessage))
	// No optimistic append while connected; the server echo populates
	// the transcript.
	assert.Len(t, c.Snapshot().Transcript, 0)
	// Sending stops the local typing indicator.
	assert.Equal(t, 1, conn.typingEmissions(false))
}

func TestNewMessageDedup(t *testing.T) {
	auth := &fakeAuth{cred: testCredential()}
	dialer := &fakeDialer{}
	c := NewController(testConfig(), auth, dialer.dial, Hooks{})
	defer c.EndSession()

	conn := connectAndJoin(t, c, dialer, models.JoinedRoomPayload{})

	first := models.Message{ID: 10, Username: "Bob", Body: "hi", Timestamp: "2026-08-30T10:00:00Z"}
	conn.push(t, models.EventNewMessage, first)
	require.Eventually(t, func() bool {
		return len(c.Snapshot().Transcript) == 1
	}, waitTimeout, waitTick)

	// Same id: skipped.
	conn.push(t, models.EventNewMessage, models.Message{ID: 10, Username: "Bob", Body: "edited", Timestamp: "2026-08-30T10:00:05Z"})
	// Same (timestamp, body) pair with a different id: skipped.
	conn.push(t, models.EventNewMessage, models.Message{ID: 11, Username: "Bob", Body: "hi", Timestamp: "2026-08-30T10:00:00Z"})
	// Distinct message: appended.
	conn.push(t, models.EventNewMessage, models.Message{ID: 12, Username: "Bob", Body: "bye", Timestamp: "2026-08-30T10:00:10Z"})

	require.Eventually(t, func() bool {
		return len(c.Snapshot().Transcript) == 2
	}, waitTimeout, waitTick)
	assert.Equal(t, int64(12), c.Snapshot().Transcript[1].ID)
}

func TestTypingDebounceCoalesces(t *testing.T) {
	auth := &fakeAuth{cred: testCredential()}
	dialer := &fakeDialer{}
	c := NewController(testConfig(), auth, dialer.dial, Hooks{})
	defer c.EndSession()

	conn := connectAndJoin(t, c, dialer, models.JoinedRoomPayload{})

	for i := 0; i < 3; i++ {
		c.ReportTyping(true)
		time.Sleep(10 * time.Millisecond)
	}

	// Exactly one auto stop after the window elapses from the last call.
	require.Eventually(t, func() bool {
		return conn.typingEmissions(false) == 1
	}, waitTimeout, waitTick)
	time.Sleep(3 * testConfig().TypingDebounce)
	assert.Equal(t, 1, conn.typingEmissions(false))
	assert.Equal(t, 3, conn.typingEmissions(true))
}

func TestTypingIsNoopWithoutRoom(t *testing.T) {
	auth := &fakeAuth{cred: testCredential()}
	dialer := &fakeDialer{}
	c := NewController(testConfig(), auth, dialer.dial, Hooks{})
	defer c.EndSession()

	_, err := c.Authenticate(context.Background(), "SV001", "150807")
	require.NoError(t, err)
	waitForState(t, c, StateConnected)

	c.ReportTyping(true)
	time.Sleep(2 * testConfig().TypingDebounce)
	assert.Equal(t, 0, dialer.conn(0).countEmitted(models.EventTyping))
}

func TestTypingPeersFromOthersOnly(t *testing.T) {
	auth := &fakeAuth{cred: testCredential()}
	dialer := &fakeDialer{}
	c := NewController(testConfig(), auth, dialer.dial, Hooks{})
	defer c.EndSession()

	conn := connectAndJoin(t, c, dialer, models.JoinedRoomPayload{})
	localID := c.Snapshot().Membership.LocalUserID

	conn.push(t, models.EventUserTyping, models.TypingPayload{UserID: "user_someone", IsTyping: true})
	require.Eventually(t, func() bool {
		return c.Snapshot().TypingPeers != ""
	}, waitTimeout, waitTick)

	// The local participant's own echo clears the line.
	conn.push(t, models.EventUserTyping, models.TypingPayload{UserID: localID, IsTyping: true})
	require.Eventually(t, func() bool {
		return c.Snapshot().TypingPeers == ""
	}, waitTimeout, waitTick)

	// Matching by student id works when no user id is present.
	conn.push(t, models.EventUserTyping, models.TypingPayload{UserID: "user_someone", IsTyping: true})
	require.Eventually(t, func() bool {
		return c.Snapshot().TypingPeers != ""
	}, waitTimeout, waitTick)
	conn.push(t, models.EventUserTyping, models.TypingPayload{StudentID: "SV001", IsTyping: true})
	require.Eventually(t, func() bool {
		return c.Snapshot().TypingPeers == ""
	}, waitTimeout, waitTick)
}

func TestPongUpdatesLatency(t *testing.T) {
	auth := &fakeAuth{cred: testCredential()}
	dialer := &fakeDialer{}
	c := NewController(testConfig(), auth, dialer.dial, Hooks{})
	defer c.EndSession()

	_, err := c.Authenticate(context.Background(), "SV001", "150807")
	require.NoError(t, err)
	waitForState(t, c, StateConnected)

	assert.Equal(t, int64(-1), c.Snapshot().RoundTripMs)

	dialer.conn(0).push(t, models.EventPong, models.PingPayload{SentAt: time.Now().UnixMilli() - 40})
	require.Eventually(t, func() bool {
		return c.Snapshot().RoundTripMs >= 40
	}, waitTimeout, waitTick)
}

func TestReconnectLoop(t *testing.T) {
	auth := &fakeAuth{cred: testCredential()}
	dialer := &fakeDialer{}
	var states []ConnState
	var statesMu sync.Mutex
	c := NewController(testConfig(), auth, dialer.dial, Hooks{
		OnState: func(state ConnState) {
			statesMu.Lock()
			states = append(states, state)
			statesMu.Unlock()
		},
	})
	defer c.EndSession()

	_, err := c.Authenticate(context.Background(), "SV001", "150807")
	require.NoError(t, err)
	waitForState(t, c, StateConnected)
	connectAndJoinExisting(t, c, dialer.conn(0))

	dialer.conn(0).fail(io.EOF)

	// The loop runs disconnected -> reconnecting -> connecting without a
	// fresh credential. Wait for the redial before asserting: the state is
	// still "connected" until the read loop consumes the error, so waiting
	// on the state alone can return before the disconnect is processed.
	require.Eventually(t, func() bool {
		return dialer.callCount() == 2
	}, waitTimeout, waitTick)
	waitForState(t, c, StateConnected)
	assert.Equal(t, 2, dialer.callCount())
	assert.Equal(t, 1, auth.loginCount())

	statesMu.Lock()
	defer statesMu.Unlock()
	assert.Subset(t, states, []ConnState{StateDisconnected, StateReconnecting, StateConnecting})

	// Membership and viewer count were cleared by the disconnect.
	snap := c.Snapshot()
	assert.Nil(t, snap.Membership)
	assert.Equal(t, 0, snap.ViewerCount)
}

// connectAndJoinExisting joins room-42 on an already connected session.
func connectAndJoinExisting(t *testing.T, c *Controller, conn *fakeConn) *fakeConn {
	t.Helper()
	require.NoError(t, c.JoinRoom("room-42"))
	conn.push(t, models.EventJoinedRoom, models.JoinedRoomPayload{ViewerCount: 2})
	require.Eventually(t, func() bool {
		return c.Snapshot().Membership != nil
	}, waitTimeout, waitTick)
	return conn
}

func TestCredentialRejectionStopsReconnect(t *testing.T) {
	auth := &fakeAuth{cred: testCredential()}
	dialer := &fakeDialer{errs: []error{nil, &models.AuthRejectedError{Message: "expired"}}}
	c := NewController(testConfig(), auth, dialer.dial, Hooks{})
	defer c.EndSession()

	_, err := c.Authenticate(context.Background(), "SV001", "150807")
	require.NoError(t, err)
	waitForState(t, c, StateConnected)

	dialer.conn(0).fail(io.EOF)

	// The rejected redial clears the credential and parks the session.
	require.Eventually(t, func() bool {
		snap := c.Snapshot()
		return snap.State == StateDisconnected && snap.Credential == nil
	}, waitTimeout, waitTick)

	time.Sleep(3 * testConfig().ReconnectDelay)
	assert.Equal(t, 2, dialer.callCount())
	assert.Equal(t, StateDisconnected, c.Snapshot().State)
}

func TestEndSessionFreezesState(t *testing.T) {
	auth := &fakeAuth{cred: testCredential()}
	dialer := &fakeDialer{}
	c := NewController(testConfig(), auth, dialer.dial, Hooks{})

	conn := connectAndJoin(t, c, dialer, models.JoinedRoomPayload{ViewerCount: 4})
	c.ReportTyping(true)

	c.EndSession()

	snap := c.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Nil(t, snap.Credential)
	assert.Nil(t, snap.Membership)
	assert.Empty(t, snap.Transcript)
	assert.Equal(t, 0, snap.ViewerCount)
	assert.Equal(t, int64(-1), snap.RoundTripMs)

	emittedBefore := conn.countEmitted(models.EventTyping)

	// A delayed event from the stale handle must not resurrect state.
	conn.push(t, models.EventNewMessage, models.Message{ID: 99, Username: "Bob", Body: "late", Timestamp: "2026-08-30T11:00:00Z"})
	conn.push(t, models.EventUserJoined, models.PresencePayload{Username: "Bob", ViewerCount: 9})
	time.Sleep(3 * testConfig().TypingDebounce)

	snap = c.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.Transcript)
	assert.Equal(t, 0, snap.ViewerCount)
	// The pending typing-stop timer was cancelled with the session.
	assert.Equal(t, emittedBefore, conn.countEmitted(models.EventTyping))
}

func TestLeaveOrEndSessionLogsOut(t *testing.T) {
	auth := &fakeAuth{cred: testCredential()}
	dialer := &fakeDialer{}
	c := NewController(testConfig(), auth, dialer.dial, Hooks{})

	connectAndJoin(t, c, dialer, models.JoinedRoomPayload{})
	c.LeaveOrEndSession(context.Background())

	assert.Equal(t, 1, auth.logoutCalls)
	snap := c.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Nil(t, snap.Credential)
	// The teardown announced the room exit on the old handle.
	assert.Equal(t, 1, dialer.conn(0).countEmitted(models.EventLeaveRoom))
}

func TestJoinRoomErrorSurfacesNotice(t *testing.T) {
	auth := &fakeAuth{cred: testCredential()}
	dialer := &fakeDialer{}
	var notices []string
	var noticeMu sync.Mutex
	c := NewController(testConfig(), auth, dialer.dial, Hooks{
		OnNotice: func(text string) {
			noticeMu.Lock()
			notices = append(notices, text)
			noticeMu.Unlock()
		},
	})
	defer c.EndSession()

	_, err := c.Authenticate(context.Background(), "SV001", "150807")
	require.NoError(t, err)
	waitForState(t, c, StateConnected)

	require.NoError(t, c.JoinRoom("room-42"))
	dialer.conn(0).push(t, models.EventJoinRoomError, models.ErrorPayload{Message: "you are banned from chat"})

	require.Eventually(t, func() bool {
		noticeMu.Lock()
		defer noticeMu.Unlock()
		for _, notice := range notices {
			if notice == "Failed to join room: you are banned from chat" {
				return true
			}
		}
		return false
	}, waitTimeout, waitTick)

	// The failed join leaves the connection untouched.
	snap := c.Snapshot()
	assert.Equal(t, StateConnected, snap.State)
	assert.Nil(t, snap.Membership)
}

func TestPingSampling(t *testing.T) {
	auth := &fakeAuth{cred: testCredential()}
	dialer := &fakeDialer{}
	cfg := testConfig()
	cfg.PingInterval = 20 * time.Millisecond
	c := NewController(cfg, auth, dialer.dial, Hooks{})
	defer c.EndSession()

	_, err := c.Authenticate(context.Background(), "SV001", "150807")
	require.NoError(t, err)
	waitForState(t, c, StateConnected)

	conn := dialer.conn(0)
	require.Eventually(t, func() bool {
		return conn.countEmitted(models.EventPing) >= 2
	}, waitTimeout, waitTick)

	// Sampling stops on disconnect.
	conn.fail(io.EOF)
	require.Eventually(t, func() bool {
		state := c.Snapshot().State
		return state == StateReconnecting || state == StateDisconnected
	}, waitTimeout, waitTick)
	count := conn.countEmitted(models.EventPing)
	time.Sleep(5 * cfg.PingInterval)
	assert.LessOrEqual(t, conn.countEmitted(models.EventPing), count+1)
}

func TestReconnectAfterEndSessionDoesNothing(t *testing.T) {
	auth := &fakeAuth{cred: testCredential()}
	dialer := &fakeDialer{}
	c := NewController(testConfig(), auth, dialer.dial, Hooks{})

	_, err := c.Authenticate(context.Background(), "SV001", "150807")
	require.NoError(t, err)
	waitForState(t, c, StateConnected)

	dialer.conn(0).fail(io.EOF)
	waitForState(t, c, StateReconnecting)

	c.EndSession()
	time.Sleep(3 * testConfig().ReconnectDelay)

	assert.Equal(t, 1, dialer.callCount())
	assert.Equal(t, StateIdle, c.Snapshot().State)
}
