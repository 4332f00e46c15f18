package server

import "net/http"

// NewMux wires the full HTTP surface: auth, realtime socket and admin.
// Shared by the server entrypoint and the tests.
func NewMux(s *Server, authHandlers *AuthHandlers, adminHandlers *AdminHandlers) http.Handler {
	mux := http.NewServeMux()

	// Auth routes
	mux.HandleFunc("/auth/login", requireMethod(http.MethodPost, authHandlers.Login))
	mux.HandleFunc("/auth/verify", requireMethod(http.MethodGet, authHandlers.Verify))
	mux.HandleFunc("/auth/logout", requireMethod(http.MethodPost, authHandlers.Logout))

	// Realtime channel
	mux.HandleFunc("/socket", s.HandleWebSocket)

	// Admin routes
	mux.HandleFunc("/admin/dashboard/stats", adminHandlers.RequireAdmin(requireMethod(http.MethodGet, adminHandlers.GetDashboardStats)))
	mux.HandleFunc("/admin/users", adminHandlers.RequireAdmin(requireMethod(http.MethodGet, adminHandlers.ListUsers)))
	mux.HandleFunc("/admin/users/online", adminHandlers.RequireAdmin(requireMethod(http.MethodGet, adminHandlers.OnlineUsers)))
	mux.HandleFunc("/admin/users/banned", adminHandlers.RequireAdmin(requireMethod(http.MethodGet, adminHandlers.BannedUsers)))
	mux.HandleFunc("/admin/users/status", adminHandlers.RequireAdmin(requireMethod(http.MethodGet, adminHandlers.UserStatus)))
	mux.HandleFunc("/admin/users/ban", adminHandlers.RequireAdmin(requireMethod(http.MethodPost, adminHandlers.BanUser)))
	mux.HandleFunc("/admin/users/unban", adminHandlers.RequireAdmin(requireMethod(http.MethodPost, adminHandlers.UnbanUser)))
	mux.HandleFunc("/admin/buffer-stats", adminHandlers.RequireAdmin(requireMethod(http.MethodGet, adminHandlers.BufferStats)))
	mux.HandleFunc("/admin/flush-messages", adminHandlers.RequireAdmin(requireMethod(http.MethodPost, adminHandlers.FlushMessages)))

	return corsMiddleware(mux)
}

func requireMethod(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
