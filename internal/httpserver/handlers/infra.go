package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/usercheck/internal/httpserver/deps"
)

const infraProbeTimeout = 2 * time.Second

type componentStatus struct {
	OK              bool   `json:"ok"`
	Enabled         bool   `json:"enabled"`
	PlatformsLoaded *int   `json:"platforms_loaded,omitempty"`
	ActiveRequests  *int   `json:"active_requests,omitempty"`
	LastReload      string `json:"last_reload,omitempty"`
	Source          string `json:"source,omitempty"`
	Impact          string `json:"impact,omitempty"`
	Error           string `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

// Infra reports the state of every component the checker depends on.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), infraProbeTimeout)
		defer cancel()

		platforms := d.Catalog.Len()
		lastReload := "never"
		if t := d.Catalog.LastReload(); !t.IsZero() {
			lastReload = t.Format("2006-01-02 15:04:05")
		}
		active := d.Orchestrator.History().ActiveCount()

		components := map[string]componentStatus{
			"catalog": {
				OK:              platforms > 0,
				Enabled:         true,
				PlatformsLoaded: &platforms,
				LastReload:      lastReload,
				Source:          d.CatalogSource,
			},
			"orchestrator": {
				OK:             true,
				Enabled:        true,
				ActiveRequests: &active,
			},
			"redis": checkRedis(ctx, d),
			"kafka": checkKafka(ctx, d),
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Mode:       determineMode(components),
			Components: components,
		})
	}
}

// determineMode is critical without platforms, degraded when an enabled
// optional component is down, and operational otherwise.
func determineMode(components map[string]componentStatus) string {
	if c, ok := components["catalog"]; ok && !c.OK {
		return "critical"
	}
	for _, name := range []string{"redis", "kafka"} {
		if c, ok := components[name]; ok && c.Enabled && !c.OK {
			return "degraded"
		}
	}
	return "operational"
}

func checkRedis(ctx context.Context, d deps.Deps) componentStatus {
	if d.RedisClient == nil {
		return componentStatus{OK: true, Enabled: false, Impact: "persistence-disabled"}
	}
	if err := d.RedisClient.Ping(ctx).Err(); err != nil {
		return componentStatus{OK: false, Enabled: true, Impact: "persistence-unavailable", Error: err.Error()}
	}
	return componentStatus{OK: true, Enabled: true, Impact: "persistence-enabled"}
}

func checkKafka(ctx context.Context, d deps.Deps) componentStatus {
	if d.Publisher == nil {
		return componentStatus{OK: true, Enabled: false, Impact: "publishing-disabled"}
	}
	if err := d.Publisher.HealthCheck(ctx); err != nil {
		return componentStatus{OK: false, Enabled: true, Impact: "publishing-unavailable", Error: err.Error()}
	}
	return componentStatus{OK: true, Enabled: true, Impact: "publishing-enabled"}
}
