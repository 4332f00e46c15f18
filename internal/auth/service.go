package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stream-chat/internal/config"
	"stream-chat/internal/database"
	"stream-chat/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrBanned             = errors.New("account is banned")
)

// Service authenticates students and mints bearer tokens for the backend.
type Service struct {
	db  database.Store
	cfg *config.Config
}

func NewService(db database.Store, cfg *config.Config) *Service {
	return &Service{
		db:  db,
		cfg: cfg,
	}
}

func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	if req.StudentID == "" || len(req.BirthDate) != 6 {
		return nil, ErrInvalidCredentials
	}

	user, err := s.db.GetUserByStudentID(ctx, req.StudentID)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.SecretHash), []byte(req.BirthDate)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if user.Banned {
		return nil, ErrBanned
	}

	token, err := s.generateToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &models.LoginResponse{
		User:        *user,
		AccessToken: token,
	}, nil
}

func (s *Service) ValidateToken(tokenString string) (*jwt.MapClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.MapClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.cfg.JWT.Secret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}

func (s *Service) GetUserFromToken(ctx context.Context, tokenString string) (*models.User, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	studentID, ok := (*claims)["student_id"].(string)
	if !ok || studentID == "" {
		return nil, fmt.Errorf("invalid student ID in token")
	}

	return s.db.GetUserByStudentID(ctx, studentID)
}

func (s *Service) generateToken(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id":    user.ID,
		"student_id": user.StudentID,
		"full_name":  user.FullName,
		"role":       user.Role,
		"exp":        time.Now().Add(s.cfg.JWT.ExpiresIn).Unix(),
		"iat":        time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.cfg.JWT.Secret)
}
