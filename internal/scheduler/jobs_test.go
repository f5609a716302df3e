package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrSnakeDoc/usercheck/internal/domain"
	"github.com/MrSnakeDoc/usercheck/internal/index"
	"github.com/MrSnakeDoc/usercheck/internal/logger"
	"github.com/MrSnakeDoc/usercheck/internal/platforms"
)

func resultAt(id, username string, at time.Time) *domain.CheckResult {
	return &domain.CheckResult{
		Request:     domain.CheckRequest{ID: id, Username: username},
		State:       domain.StateCompleted,
		CompletedAt: at,
	}
}

type fakePruner struct {
	cutoff time.Time
	n      int
	err    error
}

func (p *fakePruner) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	p.cutoff = cutoff
	return p.n, p.err
}

func TestHistoryCollector_Collect(t *testing.T) {
	log := logger.New("error", false)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	idx := index.NewMemoryIndex()
	idx.Append(resultAt("old", "alice", now.Add(-10*24*time.Hour)))
	idx.Append(resultAt("recent", "alice", now.Add(-2*24*time.Hour)))
	idx.Append(resultAt("fresh", "bob", now.Add(-time.Minute)))

	store := &fakePruner{n: 4}
	hc := NewHistoryCollector(store, idx, log, time.Hour, 7*24*time.Hour)
	hc.now = func() time.Time { return now }

	if err := hc.Collect(context.Background()); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	if idx.Count() != 2 {
		t.Errorf("Expected 2 results after collection, got %d", idx.Count())
	}
	if _, ok := idx.Get("old"); ok {
		t.Error("Old result was not removed")
	}
	if r, ok := idx.Latest("alice"); !ok || r.Request.ID != "recent" {
		t.Errorf("Latest(alice) = %v, want recent", r)
	}
	if want := now.Add(-7 * 24 * time.Hour); !store.cutoff.Equal(want) {
		t.Errorf("store cutoff = %v, want %v", store.cutoff, want)
	}
}

func TestHistoryCollector_StoreError(t *testing.T) {
	idx := index.NewMemoryIndex()
	idx.Append(resultAt("old", "alice", time.Now().Add(-48*time.Hour)))

	hc := NewHistoryCollector(&fakePruner{err: errors.New("redis down")}, idx, logger.New("error", false), time.Hour, time.Hour)
	if err := hc.Collect(context.Background()); err == nil {
		t.Fatal("expected store error")
	}
	if idx.Count() != 0 {
		t.Error("memory history should be pruned even when the store fails")
	}
}

func TestHistoryCollector_Disabled(t *testing.T) {
	idx := index.NewMemoryIndex()
	idx.Append(resultAt("ancient", "alice", time.Unix(0, 0)))

	store := &fakePruner{}
	hc := NewHistoryCollector(store, idx, logger.New("error", false), 0, 0)
	if hc.Enabled() {
		t.Fatal("zero retention should disable the collector")
	}
	if err := hc.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := hc.Collect(context.Background()); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if idx.Count() != 1 || !store.cutoff.IsZero() {
		t.Error("disabled collector must not delete anything")
	}
}

type fakeLister struct {
	since   time.Time
	results []*domain.CheckResult
	err     error
}

func (l *fakeLister) ListResults(_ context.Context, since time.Time) ([]*domain.CheckResult, error) {
	l.since = since
	return l.results, l.err
}

func TestRedisSyncer_Sync(t *testing.T) {
	now := time.Now()
	idx := index.NewMemoryIndex()
	idx.Append(resultAt("a", "alice", now.Add(-time.Minute)))

	store := &fakeLister{results: []*domain.CheckResult{
		resultAt("a", "alice", now.Add(-time.Minute)),
		resultAt("b", "bob", now.Add(-time.Hour)),
	}}

	rs := NewRedisSyncer(store, idx, logger.New("error", false), 0)
	if err := rs.Sync(context.Background()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if idx.Count() != 2 {
		t.Errorf("Count() = %d, want 2 (duplicate ids skipped)", idx.Count())
	}
	if !store.since.IsZero() {
		t.Errorf("without retention every result should be listed, since = %v", store.since)
	}

	store.err = errors.New("redis down")
	if err := rs.Sync(context.Background()); err == nil {
		t.Error("expected list error")
	}

	rs = NewRedisSyncer(store, idx, logger.New("error", false), time.Hour)
	store.err = nil
	_ = rs.Sync(context.Background())
	if store.since.IsZero() {
		t.Error("retention should bound the listed window")
	}
}

type fakeSource struct {
	ps  []platforms.Platform
	err error
}

func (s fakeSource) Source() string                      { return "test" }
func (s fakeSource) Load() ([]platforms.Platform, error) { return s.ps, s.err }

func TestCatalogReloader_Reload(t *testing.T) {
	log := logger.New("error", false)
	cat := platforms.NewCatalog(nil)
	reg := platforms.NewRegistry()

	src := fakeSource{ps: []platforms.Platform{
		{ID: "github", Name: "GitHub", CheckURL: "https://github.com/{username}"},
		{ID: "instagram", Name: "Instagram", RequiresAuth: true},
	}}
	cr := NewCatalogReloader(src, cat, reg, platforms.HTTPOptions{Timeout: time.Second}, log, time.Hour, make(chan struct{}, 1))

	if err := cr.Reload(context.Background()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if cat.Len() != 2 || !reg.Has("github") || !reg.Has("instagram") {
		t.Errorf("catalog = %v, registry has github=%v instagram=%v", cat.IDs(), reg.Has("github"), reg.Has("instagram"))
	}

	tests := []struct {
		name string
		src  fakeSource
	}{
		{"load error", fakeSource{err: errors.New("bad yaml")}},
		{"empty catalog", fakeSource{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cr := NewCatalogReloader(tt.src, cat, reg, platforms.HTTPOptions{}, log, time.Hour, nil)
			if err := cr.Reload(context.Background()); err == nil {
				t.Fatal("expected error")
			}
			if cat.Len() != 2 {
				t.Errorf("failed reload must keep the previous catalog, got %d platforms", cat.Len())
			}
		})
	}
}

type countingSource struct {
	ps []platforms.Platform
	n  atomic.Int32
}

func (s *countingSource) Source() string { return "counting" }

func (s *countingSource) Load() ([]platforms.Platform, error) {
	s.n.Add(1)
	return s.ps, nil
}

func (s *countingSource) calls() int { return int(s.n.Load()) }

func TestCatalogReloader_ManualTrigger(t *testing.T) {
	log := logger.New("error", false)
	cat := platforms.NewCatalog(nil)
	reg := platforms.NewRegistry()
	trigger := make(chan struct{}, 1)

	src := &countingSource{ps: []platforms.Platform{{ID: "github", Name: "GitHub", CheckURL: "https://github.com/{username}"}}}
	cr := NewCatalogReloader(src, cat, reg, platforms.HTTPOptions{}, log, time.Hour, trigger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := cr.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer cr.Stop()

	trigger <- struct{}{}
	deadline := time.Now().Add(2 * time.Second)
	for src.calls() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("manual trigger did not reload, loads = %d", src.calls())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
