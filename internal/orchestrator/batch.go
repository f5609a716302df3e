package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/MrSnakeDoc/usercheck/internal/domain"
	"github.com/MrSnakeDoc/usercheck/internal/logger"
)

// ProgressFunc is called once per finished username, in completion order.
type ProgressFunc func(done, total int, username string, result *domain.CheckResult)

// BatchQuery checks several usernames against the same platforms.
type BatchQuery struct {
	Usernames     []string
	Platforms     []string
	Priority      int
	MaxConcurrent int // <= 0 = configured default
	Progress      ProgressFunc
}

type batchItem struct {
	key    string
	result *domain.CheckResult
}

// BatchCheck runs one check per distinct username with at most
// MaxConcurrent checks in flight. Every username gets an entry; a username
// that could not be checked maps to a Failed result.
//
// Usernames are compared after trimming surrounding spaces. The map is keyed
// by the first spelling the caller passed, so " alice " stays " alice ".
func (o *Orchestrator) BatchCheck(ctx context.Context, q BatchQuery) map[string]*domain.CheckResult {
	usernames := dedupe(q.Usernames)
	results := make(map[string]*domain.CheckResult, len(usernames))
	if len(usernames) == 0 {
		return results
	}

	limit := q.MaxConcurrent
	if limit <= 0 {
		limit = o.batchMaxConcurrent
	}
	sem := semaphore.NewWeighted(int64(limit))

	o.log.Info("starting batch check",
		logger.Int("usernames", len(usernames)),
		logger.Int("max_concurrent", limit))

	items := make(chan batchItem)
	var wg sync.WaitGroup
	for _, u := range usernames {
		wg.Add(1)
		go func() {
			defer wg.Done()
			items <- batchItem{key: u, result: o.checkOne(ctx, sem, strings.TrimSpace(u), q)}
		}()
	}
	go func() {
		wg.Wait()
		close(items)
	}()

	total := len(usernames)
	done := 0
	for it := range items {
		results[it.key] = it.result
		done++
		o.log.Info("batch progress",
			logger.Int("completed", done),
			logger.Int("total", total),
			logger.Float64("percent", float64(done)/float64(total)*100))
		if q.Progress != nil {
			q.Progress(done, total, it.key, it.result)
		}
	}

	return results
}

func (o *Orchestrator) checkOne(ctx context.Context, sem *semaphore.Weighted, username string, q BatchQuery) *domain.CheckResult {
	if err := sem.Acquire(ctx, 1); err != nil {
		return o.rejected(username, q, fmt.Errorf("batch slot unavailable: %w", err))
	}
	defer sem.Release(1)

	res, err := o.Check(ctx, Query{Username: username, Platforms: q.Platforms, Priority: q.Priority})
	if err != nil {
		return o.rejected(username, q, err)
	}
	return res
}

// rejected builds the Failed entry of a username that never entered the
// lifecycle.
func (o *Orchestrator) rejected(username string, q BatchQuery, cause error) *domain.CheckResult {
	now := o.now()
	priority := q.Priority
	if priority <= 0 {
		priority = o.defaultPriority
	}
	req := domain.NewCheckRequest(o.newID(username, now), username, q.Platforms, priority, nil, now)
	return newFailedResult(req, cause, 0, now)
}

// dedupe drops usernames that repeat once trimmed, keeping the first
// spelling in first-seen order. Blank names are kept once so they surface
// as failures.
func dedupe(usernames []string) []string {
	seen := make(map[string]bool, len(usernames))
	out := make([]string, 0, len(usernames))
	for _, u := range usernames {
		k := strings.TrimSpace(u)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, u)
	}
	return out
}
