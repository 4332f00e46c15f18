// Package buffer keeps each room's recent messages in a bounded buffer.
// It serves the joinedRoom snapshot and is periodically flushed to
// storage; the admin dashboard reads its stats.
package buffer

import (
	"context"

	"stream-chat/internal/database"
	"stream-chat/internal/models"
)

// StatsSnapshot is the payload of the admin buffer-stats endpoint.
type StatsSnapshot struct {
	Buffered int            `json:"buffered"`
	Capacity int            `json:"capacity"`
	Appended uint64         `json:"appended"`
	Flushed  uint64         `json:"flushed"`
	Dropped  uint64         `json:"dropped"`
	Rooms    map[string]int `json:"rooms"`
}

type Buffer interface {
	Append(ctx context.Context, roomID string, msg models.Message) error
	Recent(ctx context.Context, roomID string, limit int) ([]models.Message, error)
	// Flush archives everything buffered since the previous flush and
	// returns the number of messages written.
	Flush(ctx context.Context, store database.MessageRepository) (int, error)
	Stats(ctx context.Context) (StatsSnapshot, error)
}
