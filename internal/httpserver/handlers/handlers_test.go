package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/usercheck/internal/domain"
	"github.com/MrSnakeDoc/usercheck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/usercheck/internal/logger"
	"github.com/MrSnakeDoc/usercheck/internal/normalizer"
	"github.com/MrSnakeDoc/usercheck/internal/orchestrator"
	"github.com/MrSnakeDoc/usercheck/internal/platforms"
	redisstore "github.com/MrSnakeDoc/usercheck/internal/store/redis"
)

func taken() platforms.Probe {
	return platforms.ProbeFunc(func(context.Context, string, platforms.Params) (domain.RawSignal, error) {
		return domain.RawSignal{Exists: domain.ExistsTrue, Confidence: 0.99, Method: domain.MethodAPI}, nil
	})
}

func newTestDeps(t *testing.T, catalog []platforms.Platform) deps.Deps {
	t.Helper()
	log := logger.New("error", false)
	cat := platforms.NewCatalog(catalog)
	reg := platforms.NewRegistry()
	for _, p := range catalog {
		reg.Register(p.ID, taken())
	}
	return deps.Deps{
		Logger:            log,
		StartTime:         time.Now().Add(-time.Minute),
		Version:           "test",
		BatchMaxUsernames: 3,
		Orchestrator:      orchestrator.New(cat, reg, normalizer.New(), log),
		Catalog:           cat,
		CatalogSource:     "embedded",
		ReloadTrigger:     make(chan struct{}, 1),
	}
}

var testCatalog = []platforms.Platform{
	{ID: "github", Difficulty: domain.DifficultyLow},
	{ID: "reddit", Difficulty: domain.DifficultyMedium},
}

func router(d deps.Deps) http.Handler {
	r := chi.NewRouter()
	r.Post("/check", Check(d))
	r.Post("/batch-check", BatchCheck(d))
	r.Get("/status", Status(d))
	r.Get("/results/{username}", Result(d))
	r.Get("/report/{username}", Report(d))
	r.Get("/healthz", Healthz(d))
	r.Get("/readyz", Readyz(d))
	r.Get("/infra", Infra(d))
	r.Post("/reload", Reload(d))
	return r
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var e errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("error body is not JSON: %v (%q)", err, w.Body.String())
	}
	return e.Error
}

func TestCheck(t *testing.T) {
	h := router(newTestDeps(t, testCatalog))

	w := do(h, http.MethodPost, "/check", `{"username":"john_doe","platforms":["github","reddit"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var res domain.CheckResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.State != domain.StateCompleted {
		t.Errorf("state = %q, want completed", res.State)
	}
	if res.Request.Username != "john_doe" || len(res.PlatformResults) != 2 {
		t.Errorf("unexpected result: %+v", res)
	}
	if !res.PlatformResults["github"].Exists.Bool() {
		t.Errorf("github should be taken")
	}
}

func TestCheckBadRequests(t *testing.T) {
	h := router(newTestDeps(t, testCatalog))

	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed", `{"username":`, msgInvalidBody},
		{"missing", `{}`, msgUsernameRequired},
		{"blank", `{"username":"   "}`, msgUsernameRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h, http.MethodPost, "/check", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			if got := decodeError(t, w); got != tt.want {
				t.Errorf("error = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBatchCheck(t *testing.T) {
	h := router(newTestDeps(t, testCatalog))

	w := do(h, http.MethodPost, "/batch-check", `{"usernames":["alice","bob"," "],"platforms":["github"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var got map[string]domain.CheckResult
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	for _, u := range []string{"alice", "bob"} {
		if got[u].State != domain.StateCompleted {
			t.Errorf("%s state = %q", u, got[u].State)
		}
	}

	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty", `{"usernames":[]}`, msgUsernamesRequired},
		{"blanks only", `{"usernames":["", " "]}`, msgUsernamesRequired},
		{"too many", `{"usernames":["a","b","c","d"]}`, "too many usernames (max 3)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h, http.MethodPost, "/batch-check", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			if got := decodeError(t, w); got != tt.want {
				t.Errorf("error = %q, want %q", got, tt.want)
			}
		})
	}
}

type fakeReader struct {
	res *domain.CheckResult
	err error
}

func (f fakeReader) GetLatest(context.Context, string) (*domain.CheckResult, error) {
	return f.res, f.err
}

func TestResult(t *testing.T) {
	d := newTestDeps(t, testCatalog)
	h := router(d)

	if w := do(h, http.MethodGet, "/results/john_doe", ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown username status = %d, want 404", w.Code)
	}

	do(h, http.MethodPost, "/check", `{"username":"john_doe","platforms":["github"]}`)
	w := do(h, http.MethodGet, "/results/john_doe", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	// A store miss falls back to the in-memory history.
	d.Results = fakeReader{err: redisstore.ErrNotFound}
	if w := do(router(d), http.MethodGet, "/results/john_doe", ""); w.Code != http.StatusOK {
		t.Errorf("store miss status = %d, want 200", w.Code)
	}

	stored := &domain.CheckResult{
		Request:         domain.CheckRequest{ID: "check_stored", Username: "jane"},
		State:           domain.StateCompleted,
		PlatformResults: map[string]*domain.PlatformResult{},
	}
	d.Results = fakeReader{res: stored}
	w = do(router(d), http.MethodGet, "/results/jane", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "check_stored") {
		t.Errorf("store hit: status = %d, body = %s", w.Code, w.Body.String())
	}

	d.Results = fakeReader{err: errors.New("connection refused")}
	if w := do(router(d), http.MethodGet, "/results/nobody", ""); w.Code != http.StatusNotFound {
		t.Errorf("store error with empty history status = %d, want 404", w.Code)
	}
}

func TestReport(t *testing.T) {
	h := router(newTestDeps(t, testCatalog))
	do(h, http.MethodPost, "/check", `{"username":"john_doe","platforms":["github","reddit"]}`)

	tests := []struct {
		format      string
		status      int
		contentType string
		contains    string
	}{
		{"", http.StatusOK, "text/plain; charset=utf-8", "USERNAME CHECK REPORT"},
		{"text", http.StatusOK, "text/plain; charset=utf-8", "PLATFORM RESULTS:"},
		{"json", http.StatusOK, "application/json", `"check_id"`},
		{"CSV", http.StatusOK, "text/csv; charset=utf-8", "Username,Platform,Available,Confidence,Method,Timestamp"},
		{"pdf", http.StatusBadRequest, "application/json", "format must be one of"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			path := "/report/john_doe"
			if tt.format != "" {
				path += "?format=" + tt.format
			}
			w := do(h, http.MethodGet, path, "")
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if ct := w.Header().Get("Content-Type"); ct != tt.contentType {
				t.Errorf("Content-Type = %q, want %q", ct, tt.contentType)
			}
			if !strings.Contains(w.Body.String(), tt.contains) {
				t.Errorf("body missing %q:\n%s", tt.contains, w.Body.String())
			}
		})
	}

	w := do(h, http.MethodGet, "/report/john_doe?format=csv", "")
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="john_doe.csv"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if w := do(h, http.MethodGet, "/report/nobody", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown username status = %d, want 404", w.Code)
	}
}

func TestStatus(t *testing.T) {
	h := router(newTestDeps(t, testCatalog))
	do(h, http.MethodPost, "/check", `{"username":"john_doe","platforms":["github"]}`)

	w := do(h, http.MethodGet, "/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var st orchestrator.SystemStatus
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.TotalChecksCompleted != 1 {
		t.Errorf("total checks = %d, want 1", st.TotalChecksCompleted)
	}
	if st.PlatformIntelligence.TotalPlatforms != 2 {
		t.Errorf("total platforms = %d, want 2", st.PlatformIntelligence.TotalPlatforms)
	}
}

func TestHealthzAndReadyz(t *testing.T) {
	d := newTestDeps(t, testCatalog)
	h := router(d)

	w := do(h, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("healthz: status = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(h, http.MethodGet, "/readyz", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"platforms_loaded":2`) {
		t.Errorf("readyz: status = %d, body = %s", w.Code, w.Body.String())
	}

	empty := newTestDeps(t, nil)
	if w := do(router(empty), http.MethodGet, "/readyz", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz with empty catalog = %d, want 503", w.Code)
	}
}

type fakePublisher struct{ err error }

func (p fakePublisher) HealthCheck(context.Context) error { return p.err }

func TestInfra(t *testing.T) {
	tests := []struct {
		name      string
		catalog   []platforms.Platform
		publisher orchestrator.HealthChecker
		want      string
	}{
		{"operational", testCatalog, nil, "operational"},
		{"kafka up", testCatalog, fakePublisher{}, "operational"},
		{"kafka down", testCatalog, fakePublisher{err: errors.New("no brokers")}, "degraded"},
		{"no platforms", nil, nil, "critical"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeps(t, tt.catalog)
			d.Publisher = tt.publisher
			w := do(router(d), http.MethodGet, "/infra", "")
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d", w.Code)
			}
			var got infraResponse
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.Mode != tt.want {
				t.Errorf("mode = %q, want %q", got.Mode, tt.want)
			}
			if got.Components["redis"].Enabled {
				t.Errorf("redis should be reported disabled")
			}
		})
	}
}

func TestReload(t *testing.T) {
	d := newTestDeps(t, testCatalog)
	h := router(d)

	if w := do(h, http.MethodPost, "/reload", ""); w.Code != http.StatusAccepted {
		t.Fatalf("first reload = %d, want 202", w.Code)
	}
	if w := do(h, http.MethodPost, "/reload", ""); w.Code != http.StatusTooManyRequests {
		t.Errorf("pending reload = %d, want 429", w.Code)
	}
	<-d.ReloadTrigger
	if w := do(h, http.MethodPost, "/reload", ""); w.Code != http.StatusAccepted {
		t.Errorf("reload after drain = %d, want 202", w.Code)
	}
}
