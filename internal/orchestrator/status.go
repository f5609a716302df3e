package orchestrator

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/usercheck/internal/domain"
	"github.com/MrSnakeDoc/usercheck/internal/index"
)

const componentActive = "active"

// PlatformIntelligence summarizes the loaded catalog.
type PlatformIntelligence struct {
	TotalPlatforms  int      `json:"total_platforms"`
	PlatformsLoaded []string `json:"platforms_loaded"`
}

// SystemHealth grades the running system.
type SystemHealth struct {
	OverallHealth     string            `json:"overall_health"`
	PerformanceHealth string            `json:"performance_health"`
	SuccessRate       float64           `json:"success_rate"`
	ComponentHealth   map[string]string `json:"component_health"`
}

type SystemStatus struct {
	PerformanceMetrics   MetricsSnapshot       `json:"performance_metrics"`
	ActiveRequests       int                   `json:"active_requests"`
	ActiveChecks         []index.ActiveRequest `json:"active_checks,omitempty"`
	TotalChecksCompleted int                   `json:"total_checks_completed"`
	ComponentStatus      map[string]string     `json:"component_status"`
	PlatformIntelligence PlatformIntelligence  `json:"platform_intelligence"`
	SystemHealth         SystemHealth          `json:"system_health"`
	Timestamp            time.Time             `json:"timestamp"`
}

// GetSystemStatus reports metrics, activity and health. Components that
// can check their own health are probed with ctx.
func (o *Orchestrator) GetSystemStatus(ctx context.Context) SystemStatus {
	snap := o.metrics.Snapshot()
	rate := snap.SuccessRate()

	components := map[string]string{
		"normalizer":        componentActive,
		"platform_registry": componentActive,
	}
	health := map[string]string{}

	if o.proxies != nil {
		components["proxy_provider"] = componentActive
		probeHealth(ctx, "proxy_provider", o.proxies, health)
	}
	for _, s := range o.sinks {
		components[s.Name()] = componentActive
		probeHealth(ctx, s.Name(), s, health)
	}

	return SystemStatus{
		PerformanceMetrics:   snap,
		ActiveRequests:       o.history.ActiveCount(),
		ActiveChecks:         o.history.Active(),
		TotalChecksCompleted: o.history.Count(),
		ComponentStatus:      components,
		PlatformIntelligence: PlatformIntelligence{
			TotalPlatforms:  o.catalog.Len(),
			PlatformsLoaded: o.catalog.IDs(),
		},
		SystemHealth: SystemHealth{
			OverallHealth:     domain.OverallHealth(rate),
			PerformanceHealth: domain.GradePerformance(rate),
			SuccessRate:       rate,
			ComponentHealth:   health,
		},
		Timestamp: o.now(),
	}
}

func probeHealth(ctx context.Context, name string, c any, into map[string]string) {
	hc, ok := c.(HealthChecker)
	if !ok {
		return
	}
	if err := hc.HealthCheck(ctx); err != nil {
		into[name] = "error: " + err.Error()
		return
	}
	into[name] = domain.HealthHealthy
}
