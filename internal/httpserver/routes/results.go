package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/usercheck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/usercheck/internal/httpserver/handlers"
)

func init() { Register("results", registerResults) }

func registerResults(r chi.Router, d deps.Deps) {
	r.Get("/results/{username}", handlers.Result(d))
	r.Get("/report/{username}", handlers.Report(d))
}
