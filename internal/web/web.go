// Package web exposes the thin HTTP surface the page server consumes: the
// games registry as JSON. It never calls into the arena.
package web

import (
	"encoding/json"
	"net/http"

	"github.com/gamelobby/arena/internal/rules"
)

// GamesHandler serves the registered games for page rendering.
func GamesHandler(reg *rules.Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(reg.All())
	})
}
