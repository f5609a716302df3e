package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/usercheck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/usercheck/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/usercheck/internal/httpserver/mw"
)

func init() { Register("check", registerCheck) }

// Both check endpoints share one limiter so a client cannot double its
// budget by alternating between them.
func registerCheck(r chi.Router, d deps.Deps) {
	limit := mw.RateLimit(mw.RateLimitConfig{
		Burst:           d.RateBurst,
		RefillPerSecond: d.RequestsPerSecond,
		MaxEntries:      10000,
		TrustProxy:      d.TrustProxy,
		Now:             d.TimeNow,
	})
	r.With(limit).Post("/check", handlers.Check(d))
	r.With(limit).Post("/batch-check", handlers.BatchCheck(d))
}
