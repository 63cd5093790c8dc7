package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Middleware rejects requests whose key header is missing or wrong with
// 401 and a JSON error body.
func (g Guard) Middleware(next http.Handler) http.Handler {
	if !g.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.valid(r.Header.Get(g.header)) {
			slog.Warn("auth: rejected request", "path", r.URL.Path, "remote", r.RemoteAddr)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid api key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
