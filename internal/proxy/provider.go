// Package proxy provides outbound proxies for elevated-risk checks.
package proxy

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// GeoConstraints narrows proxy selection. Empty fields match anything.
type GeoConstraints struct {
	Country string `json:"country,omitempty"`
}

// Proxy is one usable outbound proxy.
type Proxy struct {
	URL     string `json:"url"`
	Country string `json:"country,omitempty"`
}

// StaticProvider rotates over a fixed proxy list.
type StaticProvider struct {
	mu      sync.Mutex
	proxies []Proxy
	next    int
}

// NewStaticProvider parses entries like "http://10.0.0.1:3128#us". The
// optional fragment is the proxy country.
func NewStaticProvider(entries []string) (*StaticProvider, error) {
	proxies := make([]Proxy, 0, len(entries))
	for _, e := range entries {
		u, err := url.Parse(strings.TrimSpace(e))
		if err != nil {
			return nil, fmt.Errorf("invalid proxy %q: %w", e, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid proxy %q: scheme and host are required", e)
		}
		country := strings.ToLower(u.Fragment)
		u.Fragment = ""
		proxies = append(proxies, Proxy{URL: u.String(), Country: country})
	}
	return &StaticProvider{proxies: proxies}, nil
}

// Len returns the number of configured proxies.
func (p *StaticProvider) Len() int {
	return len(p.proxies)
}

// GetOptimalProxy returns the next proxy matching geo in round-robin
// order, or nil when none matches.
func (p *StaticProvider) GetOptimalProxy(ctx context.Context, geo GeoConstraints) (*Proxy, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.proxies)
	want := strings.ToLower(geo.Country)
	for i := 0; i < n; i++ {
		idx := (p.next + i) % n
		candidate := p.proxies[idx]
		if want != "" && candidate.Country != want {
			continue
		}
		p.next = (idx + 1) % n
		return &candidate, nil
	}
	return nil, nil
}
