package models

import "encoding/json"

// Event names exchanged over the realtime channel.
const (
	EventJoinRoom      = "joinRoom"
	EventSendMessage   = "sendMessage"
	EventTyping        = "typing"
	EventUserTyping    = "userTyping"
	EventPing          = "ping"
	EventPong          = "pong"
	EventLeaveRoom     = "leaveRoom"
	EventJoinedRoom    = "joinedRoom"
	EventNewMessage    = "newMessage"
	EventUserJoined    = "userJoined"
	EventUserLeft      = "userLeft"
	EventJoinRoomError = "joinRoomError"
	EventError         = "error"
)

// Envelope frames every message on the realtime channel as a named event
// with a JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func NewEnvelope(event string, data interface{}) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: raw}, nil
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v interface{}) error {
	if len(e.Data) == 0 {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

type JoinRoomRequest struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type SendMessageRequest struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type TypingPayload struct {
	RoomID    string `json:"roomId,omitempty"`
	UserID    string `json:"userId,omitempty"`
	StudentID string `json:"studentId,omitempty"`
	Username  string `json:"username,omitempty"`
	IsTyping  bool   `json:"isTyping"`
}

// PingPayload carries the sender's clock in unix milliseconds; the server
// echoes it back unchanged in a pong so the client can compute round-trip
// time.
type PingPayload struct {
	SentAt int64 `json:"sentAt"`
}

type JoinedRoomPayload struct {
	RoomID      string    `json:"roomId,omitempty"`
	Messages    []Message `json:"messages"`
	ViewerCount int       `json:"viewerCount"`
}

// PresencePayload announces another participant joining or leaving.
type PresencePayload struct {
	Username    string `json:"username"`
	ViewerCount int    `json:"viewerCount"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
