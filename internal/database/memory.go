package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"stream-chat/internal/models"

	"golang.org/x/crypto/bcrypt"
)

// MemoryDB is the storage backend used when no DATABASE_URL is configured.
// It keeps the same semantics as the Postgres implementation.
type MemoryDB struct {
	mu       sync.RWMutex
	users    map[string]*models.User
	archived map[string][]models.Message
	nextID   int64
	nextMsg  int64
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		users:    make(map[string]*models.User),
		archived: make(map[string][]models.Message),
		nextID:   1,
		nextMsg:  1,
	}
}

func (db *MemoryDB) Close() error {
	return nil
}

func (db *MemoryDB) CreateUser(ctx context.Context, studentID, birthDate, fullName, role string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(birthDate), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if existing, ok := db.users[studentID]; ok {
		existing.FullName = fullName
		copied := *existing
		return &copied, nil
	}

	user := &models.User{
		ID:         db.nextID,
		StudentID:  studentID,
		FullName:   fullName,
		SecretHash: string(hash),
		Role:       role,
		CreatedAt:  time.Now(),
	}
	db.nextID++
	db.users[studentID] = user

	copied := *user
	return &copied, nil
}

func (db *MemoryDB) GetUserByStudentID(ctx context.Context, studentID string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	user, ok := db.users[studentID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (db *MemoryDB) ListUsers(ctx context.Context, page, limit int) ([]*models.User, int, error) {
	if page < 1 {
		page = 1
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	all := db.sortedUsers()
	total := len(all)

	start := (page - 1) * limit
	if start >= total {
		return nil, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}

	return all[start:end], total, nil
}

func (db *MemoryDB) BannedUsers(ctx context.Context) ([]*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var banned []*models.User
	for _, user := range db.sortedUsers() {
		if user.Banned {
			banned = append(banned, user)
		}
	}
	return banned, nil
}

func (db *MemoryDB) BanUser(ctx context.Context, studentID, reason, bannedBy string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	user, ok := db.users[studentID]
	if !ok {
		return ErrNotFound
	}

	now := time.Now()
	user.Banned = true
	user.BanReason = reason
	user.BannedBy = bannedBy
	user.BannedAt = &now
	return nil
}

func (db *MemoryDB) UnbanUser(ctx context.Context, studentID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	user, ok := db.users[studentID]
	if !ok {
		return ErrNotFound
	}

	user.Banned = false
	user.BanReason = ""
	user.BannedBy = ""
	user.BannedAt = nil
	return nil
}

func (db *MemoryDB) CountUsers(ctx context.Context) (int, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.users), nil
}

func (db *MemoryDB) ArchiveMessages(ctx context.Context, roomID string, messages []models.Message) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, msg := range messages {
		msg.ID = db.nextMsg
		db.nextMsg++
		db.archived[roomID] = append(db.archived[roomID], msg)
	}
	return nil
}

func (db *MemoryDB) RecentMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	all := db.archived[roomID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}

	out := make([]models.Message, len(all))
	copy(out, all)
	return out, nil
}

func (db *MemoryDB) CountMessages(ctx context.Context) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var count int64
	for _, msgs := range db.archived {
		count += int64(len(msgs))
	}
	return count, nil
}

func (db *MemoryDB) sortedUsers() []*models.User {
	out := make([]*models.User, 0, len(db.users))
	for _, user := range db.users {
		copied := *user
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out
}
