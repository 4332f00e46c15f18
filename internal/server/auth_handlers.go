package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"stream-chat/internal/auth"
	"stream-chat/internal/models"
	"stream-chat/pkg/logger"
)

const sessionCookieName = "chat_session"

type AuthHandlers struct {
	authService *auth.Service
}

func NewAuthHandlers(authService *auth.Service) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
	}
}

func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	response, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		logger.Error("Login error for %s: %v", req.StudentID, err)
		if errors.Is(err, auth.ErrBanned) {
			writeError(w, http.StatusForbidden, "account is banned")
			return
		}
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    response.AccessToken,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, response)
}

func (h *AuthHandlers) Verify(w http.ResponseWriter, r *http.Request) {
	token := bearerOrCookieToken(r)
	if token == "" {
		writeJSON(w, http.StatusOK, models.VerifyResponse{Valid: false})
		return
	}

	user, err := h.authService.GetUserFromToken(r.Context(), token)
	if err != nil || user.Banned {
		writeJSON(w, http.StatusOK, models.VerifyResponse{Valid: false})
		return
	}

	writeJSON(w, http.StatusOK, models.VerifyResponse{Valid: true, User: user})
}

func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
	w.WriteHeader(http.StatusOK)
}

func bearerOrCookieToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorPayload{Message: message})
}
