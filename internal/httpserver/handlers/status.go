package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/usercheck/internal/httpserver/deps"
)

// Status reports orchestrator metrics and health.
func Status(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Orchestrator.GetSystemStatus(r.Context()))
	}
}
