package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/usercheck/internal/domain"
	"github.com/MrSnakeDoc/usercheck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/usercheck/internal/logger"
	"github.com/MrSnakeDoc/usercheck/internal/report"
	redisstore "github.com/MrSnakeDoc/usercheck/internal/store/redis"
)

const msgNoResult = "no result for username"

// latest looks the username up in the persistent store first, then in the
// in-memory history.
func latest(ctx context.Context, d deps.Deps, username string) (*domain.CheckResult, bool) {
	if d.Results != nil {
		res, err := d.Results.GetLatest(ctx, username)
		if err == nil {
			return res, true
		}
		if !errors.Is(err, redisstore.ErrNotFound) {
			d.Logger.Warn("result store lookup failed",
				logger.String("username", username),
				logger.Error(err))
		}
	}
	return d.Orchestrator.History().Latest(username)
}

// Result returns the latest result of a username.
func Result(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := strings.TrimSpace(chi.URLParam(r, "username"))
		if username == "" {
			writeError(w, http.StatusBadRequest, msgUsernameRequired)
			return
		}

		res, ok := latest(r.Context(), d, username)
		if !ok {
			writeError(w, http.StatusNotFound, msgNoResult)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// Report renders the latest result of a username as text (default), json or csv.
func Report(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := strings.TrimSpace(chi.URLParam(r, "username"))
		format := strings.ToLower(r.URL.Query().Get("format"))
		if format == "" {
			format = "text"
		}
		if format != "text" && format != "json" && format != "csv" {
			writeError(w, http.StatusBadRequest, "format must be one of text, json, csv")
			return
		}

		res, ok := latest(r.Context(), d, username)
		if !ok {
			writeError(w, http.StatusNotFound, msgNoResult)
			return
		}

		var (
			body        []byte
			contentType string
		)
		switch format {
		case "json":
			data, err := report.ExportJSON(res)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			body, contentType = data, "application/json"
		case "csv":
			data, err := report.ExportCSV([]*domain.CheckResult{res})
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			body, contentType = []byte(data), "text/csv; charset=utf-8"
			w.Header().Set("Content-Disposition", `attachment; filename="`+res.Request.Username+`.csv"`)
		default:
			body, contentType = []byte(report.DetailedReport(res)+"\n"), "text/plain; charset=utf-8"
		}

		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(body); err != nil {
			d.Logger.Debug("failed to write response", logger.Error(err))
		}
	}
}
