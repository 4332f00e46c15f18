package database

import (
	"context"
	"errors"

	"stream-chat/internal/models"
)

var ErrNotFound = errors.New("not found")

type UserRepository interface {
	CreateUser(ctx context.Context, studentID, birthDate, fullName, role string) (*models.User, error)
	GetUserByStudentID(ctx context.Context, studentID string) (*models.User, error)
	ListUsers(ctx context.Context, page, limit int) ([]*models.User, int, error)
	BannedUsers(ctx context.Context) ([]*models.User, error)
	BanUser(ctx context.Context, studentID, reason, bannedBy string) error
	UnbanUser(ctx context.Context, studentID string) error
	CountUsers(ctx context.Context) (int, error)
}

type MessageRepository interface {
	ArchiveMessages(ctx context.Context, roomID string, messages []models.Message) error
	RecentMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error)
	CountMessages(ctx context.Context) (int64, error)
}

type Store interface {
	UserRepository
	MessageRepository
	Close() error
}
