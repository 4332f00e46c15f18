package models

import "time"

type User struct {
	ID         int64      `json:"id"`
	StudentID  string     `json:"studentId"`
	FullName   string     `json:"fullName"`
	Role       string     `json:"role,omitempty"`
	SecretHash string     `json:"-"`
	Banned     bool       `json:"banned"`
	BanReason  string     `json:"bannedReason,omitempty"`
	BannedBy   string     `json:"bannedBy,omitempty"`
	BannedAt   *time.Time `json:"bannedAt,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

const RoleAdmin = "admin"

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Credential is the authenticated identity returned by the auth service.
// AccessToken may be empty after a cookie-based session restore; the
// realtime handshake then relies on the shared cookie jar instead.
type Credential struct {
	StudentID   string
	FullName    string
	AccessToken string
}

type LoginRequest struct {
	StudentID string `json:"studentId"`
	BirthDate string `json:"birthDate"`
}

type LoginResponse struct {
	User        User   `json:"user"`
	AccessToken string `json:"access_token"`
}

type VerifyResponse struct {
	Valid bool  `json:"valid"`
	User  *User `json:"user,omitempty"`
}
