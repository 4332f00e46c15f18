package buffer

import (
	"context"
	"sync"

	"stream-chat/internal/database"
	"stream-chat/internal/models"
)

type roomBuffer struct {
	messages []models.Message
	// index of the first message not yet flushed to storage
	flushedTo int
}

// MemoryBuffer is the default per-room ring buffer.
type MemoryBuffer struct {
	mu       sync.Mutex
	capacity int
	rooms    map[string]*roomBuffer
	appended uint64
	flushed  uint64
	dropped  uint64
}

func NewMemoryBuffer(capacity int) *MemoryBuffer {
	if capacity <= 0 {
		capacity = 200
	}
	return &MemoryBuffer{
		capacity: capacity,
		rooms:    make(map[string]*roomBuffer),
	}
}

func (b *MemoryBuffer) Append(ctx context.Context, roomID string, msg models.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	room, ok := b.rooms[roomID]
	if !ok {
		room = &roomBuffer{}
		b.rooms[roomID] = room
	}

	if len(room.messages) == b.capacity {
		// Evict the oldest entry; count it as dropped if it never made
		// it to storage.
		room.messages = room.messages[1:]
		if room.flushedTo > 0 {
			room.flushedTo--
		} else {
			b.dropped++
		}
	}

	room.messages = append(room.messages, msg)
	b.appended++
	return nil
}

func (b *MemoryBuffer) Recent(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room, ok := b.rooms[roomID]
	if !ok {
		return nil, nil
	}

	messages := room.messages
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	out := make([]models.Message, len(messages))
	copy(out, messages)
	return out, nil
}

func (b *MemoryBuffer) Flush(ctx context.Context, store database.MessageRepository) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	total := 0
	for roomID, room := range b.rooms {
		if room.flushedTo >= len(room.messages) {
			continue
		}
		pending := room.messages[room.flushedTo:]
		if err := store.ArchiveMessages(ctx, roomID, pending); err != nil {
			return total, err
		}
		total += len(pending)
		b.flushed += uint64(len(pending))
		room.flushedTo = len(room.messages)
	}

	return total, nil
}

func (b *MemoryBuffer) Stats(ctx context.Context) (StatsSnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := StatsSnapshot{
		Capacity: b.capacity,
		Appended: b.appended,
		Flushed:  b.flushed,
		Dropped:  b.dropped,
		Rooms:    make(map[string]int, len(b.rooms)),
	}
	for roomID, room := range b.rooms {
		snap.Rooms[roomID] = len(room.messages)
		snap.Buffered += len(room.messages)
	}
	return snap, nil
}
