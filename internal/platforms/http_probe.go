package platforms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/usercheck/internal/domain"
	"github.com/MrSnakeDoc/usercheck/internal/utils"
)

// DefaultUserAgent is sent when neither the catalog nor the options set one.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// maxBodyBytes bounds how much of a profile page is scanned for markers.
const maxBodyBytes = 1 << 20

// Confidence of each detection outcome
const (
	confidenceNotFoundStatus = 0.99
	confidenceNotFoundMarker = 0.95
	confidenceFoundMarker    = 0.98
	confidenceAPIFound       = 0.99
	confidenceNoMarker       = 0.90
	confidenceUnexpected     = 0.80
)

// HTTPOptions are the defaults shared by every HTTP probe.
type HTTPOptions struct {
	Timeout   time.Duration
	UserAgent string
	Transport http.RoundTripper // nil = shared default transport
}

// HTTPProbe checks a platform by fetching its profile URL and applying
// the catalog detection rules.
type HTTPProbe struct {
	platform  Platform
	timeout   time.Duration
	userAgent string
	client    *http.Client

	// one client per proxy URL so keep-alive connections are reused
	proxied sync.Map // string -> *http.Client
}

var defaultTransport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	MaxIdleConns:          100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
}

func NewHTTPProbe(p Platform, opts HTTPOptions) *HTTPProbe {
	timeout := opts.Timeout
	if p.Timeout > 0 {
		timeout = p.Timeout
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}

	transport := opts.Transport
	if transport == nil {
		transport = defaultTransport
	}

	return &HTTPProbe{
		platform:  p,
		timeout:   timeout,
		userAgent: ua,
		client:    newClient(transport, p.FollowRedirects),
	}
}

func newClient(transport http.RoundTripper, followRedirects bool) *http.Client {
	c := &http.Client{Transport: transport}
	if !followRedirects {
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return c
}

// clientFor returns a client routed through the proxy in params, if any.
func (h *HTTPProbe) clientFor(params Params) (*http.Client, error) {
	if params.ProxyURL == "" {
		return h.client, nil
	}
	if c, ok := h.proxied.Load(params.ProxyURL); ok {
		return c.(*http.Client), nil
	}
	proxyURL, err := url.Parse(params.ProxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url: %w", err)
	}
	base, ok := h.client.Transport.(*http.Transport)
	if !ok {
		return h.client, nil
	}
	t := base.Clone()
	t.Proxy = http.ProxyURL(proxyURL)
	c, loaded := h.proxied.LoadOrStore(params.ProxyURL, newClient(t, h.platform.FollowRedirects))
	if loaded {
		t.CloseIdleConnections()
	}
	return c.(*http.Client), nil
}

// CloseIdleConnections drops the idle connections of the proxied clients.
// The direct transport is shared between probes and is left alone.
func (h *HTTPProbe) CloseIdleConnections() {
	h.proxied.Range(func(_, c any) bool {
		c.(*http.Client).CloseIdleConnections()
		return true
	})
}

// CheckUsername fetches the profile page of username.
func (h *HTTPProbe) CheckUsername(ctx context.Context, username string, params Params) (domain.RawSignal, error) {
	target := strings.ReplaceAll(h.platform.CheckURL, "{username}", url.PathEscape(username))

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return domain.RawSignal{}, fmt.Errorf("failed to create request: %w", err)
	}
	h.setHeaders(req, params)

	client, err := h.clientFor(params)
	if err != nil {
		return domain.RawSignal{}, err
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.RawSignal{}, fmt.Errorf("connection timeout after %s", h.timeout)
		}
		return domain.RawSignal{}, fmt.Errorf("request failed: %w", err)
	}
	defer utils.Close(resp.Body)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.RawSignal{}, fmt.Errorf("connection timeout after %s", h.timeout)
		}
		return domain.RawSignal{}, fmt.Errorf("failed to read response: %w", err)
	}

	sig := h.detect(resp.StatusCode, string(body), username)
	sig.Metadata = map[string]any{
		"status_code": resp.StatusCode,
		"url":         target,
	}
	return sig, nil
}

func (h *HTTPProbe) setHeaders(req *http.Request, params Params) {
	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	if params.EnableStealth {
		req.Header.Set("Sec-Fetch-Dest", "document")
		req.Header.Set("Sec-Fetch-Mode", "navigate")
		req.Header.Set("Sec-Fetch-Site", "none")
		req.Header.Set("Upgrade-Insecure-Requests", "1")
		req.Header.Set("Cache-Control", "max-age=0")
	}

	// Catalog headers win over the defaults
	for k, v := range h.platform.Headers {
		req.Header.Set(k, v)
	}
}

// detect applies the detection rules in order: not-found status, blocking
// statuses, not-found markers, then found markers.
func (h *HTTPProbe) detect(status int, body, username string) domain.RawSignal {
	method := h.platform.Method
	if method != domain.MethodAPI {
		method = domain.MethodHTTP
	}

	sig := domain.RawSignal{Method: method}

	switch {
	case slices.Contains(h.platform.NotFoundStatus, status):
		sig.Exists = domain.ExistsFalse
		sig.Confidence = confidenceNotFoundStatus
		return sig
	case status == http.StatusTooManyRequests:
		sig.Error = fmt.Sprintf("rate limit exceeded (HTTP %d)", status)
		return sig
	case status == http.StatusForbidden:
		sig.Error = fmt.Sprintf("access denied (HTTP %d), captcha or block suspected", status)
		return sig
	case status >= 500:
		sig.Error = fmt.Sprintf("temporary server error (HTTP %d)", status)
		return sig
	}

	lower := strings.ToLower(body)
	if containsAny(lower, h.platform.NotFoundMarkers, username) {
		sig.Exists = domain.ExistsFalse
		sig.Confidence = confidenceNotFoundMarker
		sig.Note = "not found marker present"
		return sig
	}

	if status != http.StatusOK {
		sig.Exists = domain.ExistsFalse
		sig.Confidence = confidenceUnexpected
		sig.Note = fmt.Sprintf("unexpected status %d", status)
		return sig
	}

	sig.Exists = domain.ExistsTrue
	switch {
	case len(h.platform.FoundMarkers) == 0 && method == domain.MethodAPI:
		sig.Confidence = confidenceAPIFound
	case len(h.platform.FoundMarkers) == 0:
		sig.Confidence = confidenceFoundMarker
	case containsAny(lower, h.platform.FoundMarkers, username):
		sig.Confidence = confidenceFoundMarker
		sig.Note = "profile marker present"
	default:
		sig.Confidence = confidenceNoMarker
		sig.Note = "page served without profile markers"
	}
	return sig
}

// containsAny reports whether body (already lower-cased) contains a marker.
// Markers may reference {username}.
func containsAny(body string, markers []string, username string) bool {
	for _, m := range markers {
		m = strings.ToLower(strings.ReplaceAll(m, "{username}", username))
		if m != "" && strings.Contains(body, m) {
			return true
		}
	}
	return false
}
