package platforms

import (
	"context"
	"fmt"
	"sync"

	"github.com/MrSnakeDoc/usercheck/internal/domain"
)

// Params is the parameter bundle every probe of a request receives.
// The anti-detection fields are only set when the request risk is
// medium or high.
type Params struct {
	Platform       string           `json:"platform"`
	Username       string           `json:"username"` // normalized
	Strategy       string           `json:"strategy"`
	RiskLevel      domain.RiskLevel `json:"risk_level"`
	LeetConfidence float64          `json:"leet_confidence"`
	Variants       []string         `json:"variants,omitempty"`

	UseProxy            bool   `json:"use_proxy,omitempty"`
	EnableStealth       bool   `json:"enable_stealth,omitempty"`
	CaptchaSolving      bool   `json:"captcha_solving,omitempty"`
	FingerprintRotation bool   `json:"fingerprint_rotation,omitempty"`
	ProxyURL            string `json:"proxy,omitempty"`
}

// Probe checks one username on one platform.
type Probe interface {
	CheckUsername(ctx context.Context, username string, params Params) (domain.RawSignal, error)
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(ctx context.Context, username string, params Params) (domain.RawSignal, error)

func (f ProbeFunc) CheckUsername(ctx context.Context, username string, params Params) (domain.RawSignal, error) {
	return f(ctx, username, params)
}

// NoProbeError is reported for platforms without a registered probe.
const NoProbeError = "no probe registered for platform"

// fallbackProbe keeps unregistered platforms in the results.
var fallbackProbe = ProbeFunc(func(context.Context, string, Params) (domain.RawSignal, error) {
	return domain.RawSignal{
		Exists:     domain.ExistsUnknown,
		Confidence: 0.0,
		Method:     domain.MethodUnknown,
		Error:      NoProbeError,
	}, nil
})

// UnsupportedProbe reports a fixed reason without touching the network.
func UnsupportedProbe(reason string) Probe {
	return ProbeFunc(func(context.Context, string, Params) (domain.RawSignal, error) {
		return domain.RawSignal{
			Exists:     domain.ExistsUnknown,
			Confidence: 0.0,
			Method:     domain.MethodUnknown,
			Error:      reason,
		}, nil
	})
}

// Registry maps platform ids to probes.
type Registry struct {
	mu     sync.RWMutex
	probes map[string]Probe
}

func NewRegistry() *Registry {
	return &Registry{probes: make(map[string]Probe)}
}

type idleCloser interface {
	CloseIdleConnections()
}

// Register installs or replaces the probe for id. A replaced probe has its
// idle connections closed; requests still in flight on it finish normally.
func (r *Registry) Register(id string, p Probe) {
	r.mu.Lock()
	old := r.probes[id]
	r.probes[id] = p
	r.mu.Unlock()

	if c, ok := old.(idleCloser); ok && old != p {
		c.CloseIdleConnections()
	}
}

// Lookup returns the probe for id, or ErrUnknownPlatform.
func (r *Registry) Lookup(id string) (Probe, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.probes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, id)
	}
	return p, nil
}

// Resolve returns the probe for every id, substituting the fallback
// probe for unregistered platforms.
func (r *Registry) Resolve(ids []string) map[string]Probe {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Probe, len(ids))
	for _, id := range ids {
		if p, ok := r.probes[id]; ok {
			out[id] = p
			continue
		}
		out[id] = fallbackProbe
	}
	return out
}

func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.probes[id]
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.probes)
}

// RegisterCatalog installs a probe for every catalog platform. Platforms
// that need an authenticated session get an UnsupportedProbe.
func (r *Registry) RegisterCatalog(ps []Platform, opts HTTPOptions) {
	for _, p := range ps {
		if p.RequiresAuth {
			r.Register(p.ID, UnsupportedProbe("authentication required for "+p.Name))
			continue
		}
		r.Register(p.ID, NewHTTPProbe(p, opts))
	}
}
