package routes

import (
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/usercheck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/usercheck/internal/logger"
)

// Registrar mounts one group of endpoints.
type Registrar func(r chi.Router, d deps.Deps)

var registry = map[string]Registrar{}

// Register a named route group. Called from init in each route file.
func Register(name string, reg Registrar) {
	if _, dup := registry[name]; dup {
		panic("routes: duplicate registrar " + name)
	}
	registry[name] = reg
}

// RegisterAll mounts every group in name order, so the router is
// identical across builds. Called once from server.NewRouter.
func RegisterAll(r chi.Router, d deps.Deps) []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		registry[name](r, d)
	}
	if d.Logger != nil {
		d.Logger.Debug("routes registered", logger.Strings("groups", names))
	}
	return names
}
