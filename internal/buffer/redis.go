package buffer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"stream-chat/internal/database"
	"stream-chat/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	recentKeyPrefix  = "chat:recent:"
	pendingKeyPrefix = "chat:pending:"
	roomSetKey       = "chat:rooms"
)

// RedisBuffer keeps the recent window in a trimmed list per room and the
// not-yet-archived messages in a companion pending list, so flushes
// survive process restarts.
type RedisBuffer struct {
	client   *redis.Client
	capacity int
	appended uint64
	flushed  uint64
	dropped  uint64
}

func NewRedisBuffer(client *redis.Client, capacity int) *RedisBuffer {
	if capacity <= 0 {
		capacity = 200
	}
	return &RedisBuffer{
		client:   client,
		capacity: capacity,
	}
}

func (b *RedisBuffer) Append(ctx context.Context, roomID string, msg models.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	pipe := b.client.TxPipeline()
	pipe.LPush(ctx, recentKeyPrefix+roomID, data)
	pipe.LTrim(ctx, recentKeyPrefix+roomID, 0, int64(b.capacity-1))
	pipe.RPush(ctx, pendingKeyPrefix+roomID, data)
	pipe.SAdd(ctx, roomSetKey, roomID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("buffer append: %w", err)
	}

	atomic.AddUint64(&b.appended, 1)
	return nil
}

func (b *RedisBuffer) Recent(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > b.capacity {
		limit = b.capacity
	}

	raw, err := b.client.LRange(ctx, recentKeyPrefix+roomID, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("buffer recent: %w", err)
	}

	// LPUSH stores newest first; the transcript wants oldest first.
	messages := make([]models.Message, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var msg models.Message
		if err := json.Unmarshal([]byte(raw[i]), &msg); err != nil {
			atomic.AddUint64(&b.dropped, 1)
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (b *RedisBuffer) Flush(ctx context.Context, store database.MessageRepository) (int, error) {
	rooms, err := b.client.SMembers(ctx, roomSetKey).Result()
	if err != nil {
		return 0, fmt.Errorf("buffer flush: %w", err)
	}

	total := 0
	for _, roomID := range rooms {
		raw, err := b.client.LRange(ctx, pendingKeyPrefix+roomID, 0, -1).Result()
		if err != nil {
			return total, err
		}
		if len(raw) == 0 {
			continue
		}

		messages := make([]models.Message, 0, len(raw))
		for _, item := range raw {
			var msg models.Message
			if err := json.Unmarshal([]byte(item), &msg); err != nil {
				atomic.AddUint64(&b.dropped, 1)
				continue
			}
			messages = append(messages, msg)
		}

		if err := store.ArchiveMessages(ctx, roomID, messages); err != nil {
			return total, err
		}

		// Drop exactly what was archived; anything pushed mid-flush
		// stays pending.
		if err := b.client.LTrim(ctx, pendingKeyPrefix+roomID, int64(len(raw)), -1).Err(); err != nil {
			return total, err
		}

		total += len(messages)
		atomic.AddUint64(&b.flushed, uint64(len(messages)))
	}

	return total, nil
}

func (b *RedisBuffer) Stats(ctx context.Context) (StatsSnapshot, error) {
	snap := StatsSnapshot{
		Capacity: b.capacity,
		Appended: atomic.LoadUint64(&b.appended),
		Flushed:  atomic.LoadUint64(&b.flushed),
		Dropped:  atomic.LoadUint64(&b.dropped),
		Rooms:    make(map[string]int),
	}

	rooms, err := b.client.SMembers(ctx, roomSetKey).Result()
	if err != nil {
		return snap, fmt.Errorf("buffer stats: %w", err)
	}

	for _, roomID := range rooms {
		size, err := b.client.LLen(ctx, recentKeyPrefix+roomID).Result()
		if err != nil {
			return snap, err
		}
		snap.Rooms[roomID] = int(size)
		snap.Buffered += int(size)
	}
	return snap, nil
}
