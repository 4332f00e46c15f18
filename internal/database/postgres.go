package database

import (
	"context"
	"fmt"

	"stream-chat/internal/models"
	"stream-chat/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

type PostgresDB struct {
	pool *pgxpool.Pool
}

func NewPostgresDB(databaseURL string) (*PostgresDB, error) {
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database successfully")
	return &PostgresDB{pool: pool}, nil
}

func (db *PostgresDB) Close() error {
	db.pool.Close()
	return nil
}

// User Repository Implementation
func (db *PostgresDB) CreateUser(ctx context.Context, studentID, birthDate, fullName, role string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(birthDate), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash secret: %w", err)
	}

	query := `
		INSERT INTO users (student_id, full_name, secret_hash, role, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (student_id) DO UPDATE SET full_name = EXCLUDED.full_name
		RETURNING id, student_id, full_name, role, created_at`

	user := &models.User{SecretHash: string(hash)}
	err = db.pool.QueryRow(ctx, query, studentID, fullName, string(hash), role).Scan(
		&user.ID, &user.StudentID, &user.FullName, &user.Role, &user.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

func (db *PostgresDB) GetUserByStudentID(ctx context.Context, studentID string) (*models.User, error) {
	query := `
		SELECT id, student_id, full_name, secret_hash, role, banned,
		       COALESCE(ban_reason, ''), COALESCE(banned_by, ''), banned_at, created_at
		FROM users WHERE student_id = $1`

	user := &models.User{}
	err := db.pool.QueryRow(ctx, query, studentID).Scan(
		&user.ID, &user.StudentID, &user.FullName, &user.SecretHash, &user.Role,
		&user.Banned, &user.BanReason, &user.BannedBy, &user.BannedAt, &user.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (db *PostgresDB) ListUsers(ctx context.Context, page, limit int) ([]*models.User, int, error) {
	if page < 1 {
		page = 1
	}

	total, err := db.CountUsers(ctx)
	if err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, student_id, full_name, role, banned,
		       COALESCE(ban_reason, ''), COALESCE(banned_by, ''), banned_at, created_at
		FROM users
		ORDER BY student_id
		LIMIT $1 OFFSET $2`

	rows, err := db.pool.Query(ctx, query, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		if err := rows.Scan(&user.ID, &user.StudentID, &user.FullName, &user.Role,
			&user.Banned, &user.BanReason, &user.BannedBy, &user.BannedAt, &user.CreatedAt); err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}

	return users, total, nil
}

func (db *PostgresDB) BannedUsers(ctx context.Context) ([]*models.User, error) {
	query := `
		SELECT id, student_id, full_name, role, banned,
		       COALESCE(ban_reason, ''), COALESCE(banned_by, ''), banned_at, created_at
		FROM users
		WHERE banned = true
		ORDER BY banned_at DESC`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		if err := rows.Scan(&user.ID, &user.StudentID, &user.FullName, &user.Role,
			&user.Banned, &user.BanReason, &user.BannedBy, &user.BannedAt, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, nil
}

func (db *PostgresDB) BanUser(ctx context.Context, studentID, reason, bannedBy string) error {
	query := `
		UPDATE users
		SET banned = true, ban_reason = $2, banned_by = $3, banned_at = NOW()
		WHERE student_id = $1`

	tag, err := db.pool.Exec(ctx, query, studentID, reason, bannedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *PostgresDB) UnbanUser(ctx context.Context, studentID string) error {
	query := `
		UPDATE users
		SET banned = false, ban_reason = NULL, banned_by = NULL, banned_at = NULL
		WHERE student_id = $1`

	tag, err := db.pool.Exec(ctx, query, studentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *PostgresDB) CountUsers(ctx context.Context) (int, error) {
	var count int
	err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// Message Repository Implementation
func (db *PostgresDB) ArchiveMessages(ctx context.Context, roomID string, messages []models.Message) error {
	if len(messages) == 0 {
		return nil
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO messages (room_id, username, content, sent_at)
		VALUES ($1, $2, $3, $4)`
	for _, msg := range messages {
		if _, err := tx.Exec(ctx, query, roomID, msg.Username, msg.Body, msg.Timestamp); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (db *PostgresDB) RecentMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	query := `
		SELECT id, username, content, sent_at
		FROM messages
		WHERE room_id = $1
		ORDER BY sent_at DESC
		LIMIT $2`

	rows, err := db.pool.Query(ctx, query, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.Username, &msg.Body, &msg.Timestamp); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	// Reverse to show oldest first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (db *PostgresDB) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}
