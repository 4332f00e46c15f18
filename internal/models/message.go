package models

import "time"

// Message is a single transcript entry. Timestamps travel as RFC3339
// strings on the wire; IDs are server-assigned, client echoes use local
// unix-milli counters.
type Message struct {
	ID        int64  `json:"id,omitempty"`
	Username  string `json:"username"`
	Body      string `json:"message"`
	Timestamp string `json:"timestamp"`
	System    bool   `json:"isSystem,omitempty"`
}

func NewSystemNotice(text string) Message {
	return Message{
		ID:        time.Now().UnixMilli(),
		Username:  "System",
		Body:      text,
		Timestamp: time.Now().Format(time.RFC3339),
		System:    true,
	}
}
