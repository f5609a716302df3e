package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/usercheck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/usercheck/internal/logger"
	"github.com/MrSnakeDoc/usercheck/internal/orchestrator"
)

const (
	msgUsernameRequired  = "Username is required"
	msgUsernamesRequired = "Usernames are required"
	msgInvalidBody       = "invalid request body"
)

type checkRequest struct {
	Username  string         `json:"username"`
	Platforms []string       `json:"platforms"`
	Priority  int            `json:"priority"`
	Context   map[string]any `json:"context"`
}

// Check runs one username check synchronously.
func Check(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req checkRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, msgInvalidBody)
			return
		}

		username := strings.TrimSpace(req.Username)
		if username == "" {
			writeError(w, http.StatusBadRequest, msgUsernameRequired)
			return
		}

		d.Logger.Info("check request",
			logger.String("username", username),
			logger.Int("platforms", len(req.Platforms)))

		res, err := d.Orchestrator.Check(r.Context(), orchestrator.Query{
			Username:  username,
			Platforms: req.Platforms,
			Priority:  req.Priority,
			Context:   req.Context,
		})
		if errors.Is(err, orchestrator.ErrEmptyUsername) {
			writeError(w, http.StatusBadRequest, msgUsernameRequired)
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, res)
	}
}

type batchRequest struct {
	Usernames     []string `json:"usernames"`
	Platforms     []string `json:"platforms"`
	Priority      int      `json:"priority"`
	MaxConcurrent int      `json:"max_concurrent"`
}

// BatchCheck checks several usernames and answers with a username -> result map.
func BatchCheck(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req batchRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, msgInvalidBody)
			return
		}

		usernames := make([]string, 0, len(req.Usernames))
		for _, u := range req.Usernames {
			if u = strings.TrimSpace(u); u != "" {
				usernames = append(usernames, u)
			}
		}
		if len(usernames) == 0 {
			writeError(w, http.StatusBadRequest, msgUsernamesRequired)
			return
		}
		if d.BatchMaxUsernames > 0 && len(usernames) > d.BatchMaxUsernames {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("too many usernames (max %d)", d.BatchMaxUsernames))
			return
		}

		d.Logger.Info("batch check request",
			logger.Int("usernames", len(usernames)),
			logger.Int("platforms", len(req.Platforms)))

		results := d.Orchestrator.BatchCheck(r.Context(), orchestrator.BatchQuery{
			Usernames:     usernames,
			Platforms:     req.Platforms,
			Priority:      req.Priority,
			MaxConcurrent: req.MaxConcurrent,
		})

		writeJSON(w, http.StatusOK, results)
	}
}
