package platforms

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrSnakeDoc/usercheck/internal/domain"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPProbeDetection(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		platform   Platform
		wantExists domain.Existence
		wantConf   float64
		wantErr    string
	}{
		{
			name:       "profile found without markers",
			status:     http.StatusOK,
			body:       "<html>hello</html>",
			wantExists: domain.ExistsTrue,
			wantConf:   confidenceFoundMarker,
		},
		{
			name:       "api profile found",
			status:     http.StatusOK,
			body:       `{"login":"john_doe"}`,
			platform:   Platform{Method: domain.MethodAPI},
			wantExists: domain.ExistsTrue,
			wantConf:   confidenceAPIFound,
		},
		{
			name:       "not found status",
			status:     http.StatusNotFound,
			wantExists: domain.ExistsFalse,
			wantConf:   confidenceNotFoundStatus,
		},
		{
			name:       "not found marker on a 200 page",
			status:     http.StatusOK,
			body:       "This account DOESN'T EXIST",
			platform:   Platform{NotFoundMarkers: []string{"doesn't exist"}},
			wantExists: domain.ExistsFalse,
			wantConf:   confidenceNotFoundMarker,
		},
		{
			name:       "found marker with username",
			status:     http.StatusOK,
			body:       `<a href="/u/john_doe">u/john_doe</a>`,
			platform:   Platform{FoundMarkers: []string{"u/{username}"}},
			wantExists: domain.ExistsTrue,
			wantConf:   confidenceFoundMarker,
		},
		{
			name:       "found marker missing",
			status:     http.StatusOK,
			body:       "<html>landing</html>",
			platform:   Platform{FoundMarkers: []string{"user-info"}},
			wantExists: domain.ExistsTrue,
			wantConf:   confidenceNoMarker,
		},
		{
			name:       "rate limited",
			status:     http.StatusTooManyRequests,
			wantExists: domain.ExistsUnknown,
			wantErr:    "rate limit",
		},
		{
			name:       "forbidden",
			status:     http.StatusForbidden,
			wantExists: domain.ExistsUnknown,
			wantErr:    "captcha",
		},
		{
			name:       "server error",
			status:     http.StatusBadGateway,
			wantExists: domain.ExistsUnknown,
			wantErr:    "temporary",
		},
		{
			name:       "unexpected status",
			status:     http.StatusGone,
			wantExists: domain.ExistsFalse,
			wantConf:   confidenceUnexpected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			p := tt.platform
			p.ID = "test"
			p.CheckURL = srv.URL + "/{username}"
			p.FollowRedirects = true
			if len(p.NotFoundStatus) == 0 {
				p.NotFoundStatus = []int{404}
			}

			sig, err := NewHTTPProbe(p, HTTPOptions{Timeout: time.Second}).CheckUsername(context.Background(), "john_doe", Params{})
			if err != nil {
				t.Fatalf("CheckUsername() error = %v", err)
			}
			if sig.Exists != tt.wantExists {
				t.Errorf("Exists = %v, want %v", sig.Exists, tt.wantExists)
			}
			if tt.wantErr == "" && sig.Confidence != tt.wantConf {
				t.Errorf("Confidence = %v, want %v", sig.Confidence, tt.wantConf)
			}
			if tt.wantErr != "" && !strings.Contains(sig.Error, tt.wantErr) {
				t.Errorf("Error = %q, want it to contain %q", sig.Error, tt.wantErr)
			}
			if sig.Metadata["status_code"] != tt.status {
				t.Errorf("status_code = %v, want %v", sig.Metadata["status_code"], tt.status)
			}
		})
	}
}

func TestHTTPProbeHeaders(t *testing.T) {
	var gotUA, gotAuth, gotPath, gotFetchMode string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAuth = r.Header.Get("Authorization")
		gotFetchMode = r.Header.Get("Sec-Fetch-Mode")
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	})

	p := Platform{
		ID:              "test",
		CheckURL:        srv.URL + "/users/{username}",
		Headers:         map[string]string{"Authorization": "Bearer token"},
		FollowRedirects: true,
	}
	probe := NewHTTPProbe(p, HTTPOptions{UserAgent: "usercheck-test"})

	if _, err := probe.CheckUsername(context.Background(), "john doe", Params{EnableStealth: true}); err != nil {
		t.Fatalf("CheckUsername() error = %v", err)
	}

	if gotUA != "usercheck-test" {
		t.Errorf("User-Agent = %q, want usercheck-test", gotUA)
	}
	if gotAuth != "Bearer token" {
		t.Errorf("Authorization = %q, want catalog header", gotAuth)
	}
	if gotFetchMode != "navigate" {
		t.Errorf("Sec-Fetch-Mode = %q, want stealth headers", gotFetchMode)
	}
	if gotPath != "/users/john doe" {
		t.Errorf("path = %q, want escaped username", gotPath)
	}
}

func TestHTTPProbeRedirectsDisabled(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Redirect(w, r, "/login", http.StatusFound)
	})

	p := Platform{ID: "reddit", CheckURL: srv.URL + "/user/{username}", NotFoundStatus: []int{404}}
	sig, err := NewHTTPProbe(p, HTTPOptions{}).CheckUsername(context.Background(), "john", Params{})
	if err != nil {
		t.Fatalf("CheckUsername() error = %v", err)
	}
	if sig.Metadata["status_code"] != http.StatusFound {
		t.Errorf("status_code = %v, want 302 (redirect not followed)", sig.Metadata["status_code"])
	}
	if sig.Exists != domain.ExistsFalse {
		t.Errorf("Exists = %v, want false", sig.Exists)
	}
}

func TestHTTPProbeTimeout(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	p := Platform{ID: "slow", CheckURL: srv.URL + "/{username}", Timeout: 50 * time.Millisecond}
	_, err := NewHTTPProbe(p, HTTPOptions{}).CheckUsername(context.Background(), "john", Params{})
	if err == nil {
		t.Fatal("CheckUsername() should fail on timeout")
	}
	if !strings.Contains(err.Error(), "timeout") {
		t.Errorf("error = %v, want it to mention timeout", err)
	}
}

func TestHTTPProbeInvalidProxy(t *testing.T) {
	p := Platform{ID: "test", CheckURL: "http://127.0.0.1/{username}"}
	_, err := NewHTTPProbe(p, HTTPOptions{}).CheckUsername(context.Background(), "john", Params{ProxyURL: "://bad"})
	if err == nil {
		t.Fatal("CheckUsername() should reject an invalid proxy url")
	}
}

func TestHTTPProbeReusesProxyClient(t *testing.T) {
	var opened atomic.Int32
	proxySrv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	proxySrv.Config.ConnState = func(_ net.Conn, state http.ConnState) {
		if state == http.StateNew {
			opened.Add(1)
		}
	}
	proxySrv.Start()
	t.Cleanup(proxySrv.Close)

	p := Platform{ID: "test", CheckURL: "http://profiles.invalid/{username}", NotFoundStatus: []int{http.StatusNotFound}}
	probe := NewHTTPProbe(p, HTTPOptions{Timeout: 2 * time.Second})
	t.Cleanup(probe.CloseIdleConnections)

	for i := 0; i < 5; i++ {
		sig, err := probe.CheckUsername(context.Background(), "john", Params{ProxyURL: proxySrv.URL})
		if err != nil {
			t.Fatalf("check %d: CheckUsername() error = %v", i, err)
		}
		if sig.Exists != domain.ExistsFalse {
			t.Fatalf("check %d: Exists = %v, want false from the proxy 404", i, sig.Exists)
		}
	}

	if got := opened.Load(); got != 1 {
		t.Errorf("proxy connections opened for 5 checks = %d, want 1", got)
	}
	a, _ := probe.clientFor(Params{ProxyURL: proxySrv.URL})
	b, _ := probe.clientFor(Params{ProxyURL: proxySrv.URL})
	if a != b {
		t.Error("clientFor() should return the cached client for the same proxy")
	}
	if a == probe.client {
		t.Error("proxied client should differ from the direct client")
	}
}
