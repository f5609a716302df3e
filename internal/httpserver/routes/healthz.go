package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/usercheck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/usercheck/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/usercheck/internal/httpserver/mw"
)

func init() { Register("probes", registerProbes) }

// liveness is public, readiness exposes the catalog size and stays internal
func registerProbes(r chi.Router, d deps.Deps) {
	r.Get("/healthz", handlers.Healthz(d))
	r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger)).Get("/readyz", handlers.Readyz(d))
}
