package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"stream-chat/internal/auth"
	"stream-chat/internal/buffer"
	"stream-chat/internal/database"
	"stream-chat/internal/models"
	"stream-chat/pkg/logger"
)

// AdminHandlers serves the dashboard's REST surface under /admin.
type AdminHandlers struct {
	store       database.Store
	buf         buffer.Buffer
	hubs        *Manager
	authService *auth.Service
}

func NewAdminHandlers(store database.Store, buf buffer.Buffer, hubs *Manager, authService *auth.Service) *AdminHandlers {
	return &AdminHandlers{
		store:       store,
		buf:         buf,
		hubs:        hubs,
		authService: authService,
	}
}

// RequireAdmin wraps a handler with bearer-token admin authorization.
func (h *AdminHandlers) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerOrCookieToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing token")
			return
		}

		user, err := h.authService.GetUserFromToken(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		if !user.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}

		next(w, r)
	}
}

type DashboardStats struct {
	TotalUsers    int   `json:"totalUsers"`
	OnlineUsers   int   `json:"onlineUsers"`
	BannedUsers   int   `json:"bannedUsers"`
	TotalMessages int64 `json:"totalMessages"`
	ActiveRooms   int   `json:"activeRooms"`
}

func (h *AdminHandlers) GetDashboardStats(w http.ResponseWriter, r *http.Request) {
	total, err := h.store.CountUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count users")
		return
	}
	banned, err := h.store.BannedUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list banned users")
		return
	}
	archived, err := h.store.CountMessages(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count messages")
		return
	}

	writeJSON(w, http.StatusOK, DashboardStats{
		TotalUsers:    total,
		OnlineUsers:   len(h.hubs.OnlineUsers()),
		BannedUsers:   len(banned),
		TotalMessages: archived,
		ActiveRooms:   h.hubs.ActiveRooms(),
	})
}

type UserPage struct {
	Users      []*models.User `json:"users"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	TotalPages int            `json:"totalPages"`
}

func (h *AdminHandlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 200 {
		limit = 50
	}

	users, total, err := h.store.ListUsers(r.Context(), page, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []*models.User{}
	}

	totalPages := (total + limit - 1) / limit
	writeJSON(w, http.StatusOK, UserPage{
		Users:      users,
		Total:      total,
		Page:       page,
		TotalPages: totalPages,
	})
}

func (h *AdminHandlers) OnlineUsers(w http.ResponseWriter, r *http.Request) {
	online := h.hubs.OnlineUsers()
	if online == nil {
		online = []OnlineUser{}
	}
	writeJSON(w, http.StatusOK, online)
}

func (h *AdminHandlers) BannedUsers(w http.ResponseWriter, r *http.Request) {
	banned, err := h.store.BannedUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list banned users")
		return
	}
	if banned == nil {
		banned = []*models.User{}
	}
	writeJSON(w, http.StatusOK, banned)
}

type banRequest struct {
	UserID string `json:"userId"`
	Reason string `json:"reason"`
}

func (h *AdminHandlers) BanUser(w http.ResponseWriter, r *http.Request) {
	var req banRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	if req.Reason == "" {
		req.Reason = "violation of chat rules"
	}

	admin := h.requestActor(r)
	if err := h.store.BanUser(r.Context(), req.UserID, req.Reason, admin); err != nil {
		if err == database.ErrNotFound {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to ban user")
		return
	}

	logger.Info("User %s banned by %s: %s", req.UserID, admin, req.Reason)
	writeJSON(w, http.StatusOK, map[string]string{"status": "banned", "userId": req.UserID})
}

func (h *AdminHandlers) UnbanUser(w http.ResponseWriter, r *http.Request) {
	var req banRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	if err := h.store.UnbanUser(r.Context(), req.UserID); err != nil {
		if err == database.ErrNotFound {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to unban user")
		return
	}

	logger.Info("User %s unbanned by %s", req.UserID, h.requestActor(r))
	writeJSON(w, http.StatusOK, map[string]string{"status": "unbanned", "userId": req.UserID})
}

type userStatus struct {
	User   *models.User `json:"user"`
	Online bool         `json:"online"`
	RoomID string       `json:"roomId,omitempty"`
}

func (h *AdminHandlers) UserStatus(w http.ResponseWriter, r *http.Request) {
	studentID := r.URL.Query().Get("studentId")
	if studentID == "" {
		studentID = r.URL.Query().Get("userId")
	}
	if studentID == "" {
		writeError(w, http.StatusBadRequest, "userId or studentId is required")
		return
	}

	user, err := h.store.GetUserByStudentID(r.Context(), studentID)
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	status := userStatus{User: user}
	for _, online := range h.hubs.OnlineUsers() {
		if online.StudentID == user.StudentID {
			status.Online = true
			status.RoomID = online.RoomID
			break
		}
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *AdminHandlers) BufferStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.buf.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read buffer stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *AdminHandlers) FlushMessages(w http.ResponseWriter, r *http.Request) {
	flushed, err := h.buf.Flush(r.Context(), h.store)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "flush failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"flushed": flushed})
}

func (h *AdminHandlers) requestActor(r *http.Request) string {
	token := bearerOrCookieToken(r)
	if token == "" {
		return "unknown"
	}
	user, err := h.authService.GetUserFromToken(r.Context(), token)
	if err != nil {
		return "unknown"
	}
	return user.StudentID
}
