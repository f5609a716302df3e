package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/usercheck/internal/httpserver/deps"
)

type readyzResponse struct {
	Ready           bool `json:"ready"`
	PlatformsLoaded int  `json:"platforms_loaded"`
}

// Readyz reports ready once the platform catalog holds at least one platform.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := d.Catalog.Len()
		status := http.StatusOK
		if n == 0 {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, readyzResponse{Ready: n > 0, PlatformsLoaded: n})
	}
}
