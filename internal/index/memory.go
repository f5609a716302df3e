package index

import (
	"sort"
	"sync"
	"time"

	"github.com/MrSnakeDoc/usercheck/internal/domain"
)

// ActiveRequest is a check currently running through the lifecycle.
type ActiveRequest struct {
	ID        string       `json:"check_id"`
	Username  string       `json:"username"`
	State     domain.State `json:"state"`
	StartedAt time.Time    `json:"started_at"`
}

// MemoryIndex holds the in-process check history and the active-request set.
// History is append-only; entries only leave through DeleteOlderThan.
type MemoryIndex struct {
	mu       sync.RWMutex
	history  []*domain.CheckResult
	byID     map[string]*domain.CheckResult // check ID -> most recent result with that ID
	latest   map[string]*domain.CheckResult // username -> most recent result
	active   map[string]*ActiveRequest      // internal token -> request
	lastSync time.Time                      // Timestamp of last restore from persistence
}

// NewMemoryIndex creates a new memory index
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		byID:   make(map[string]*domain.CheckResult),
		latest: make(map[string]*domain.CheckResult),
		active: make(map[string]*ActiveRequest),
	}
}

// Append records a finished check.
func (idx *MemoryIndex) Append(result *domain.CheckResult) {
	if result == nil {
		return
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.history = append(idx.history, result)
	idx.byID[result.Request.ID] = result
	idx.index(result)
}

// index updates the latest-by-username pointer. Caller holds the lock.
func (idx *MemoryIndex) index(result *domain.CheckResult) {
	cur, ok := idx.latest[result.Request.Username]
	if !ok || !result.CompletedAt.Before(cur.CompletedAt) {
		idx.latest[result.Request.Username] = result
	}
}

// Restore merges persisted results, skipping IDs already present, and
// keeps history ordered by completion time.
func (idx *MemoryIndex) Restore(results []*domain.CheckResult) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	added := 0
	for _, r := range results {
		if r == nil {
			continue
		}
		if _, ok := idx.byID[r.Request.ID]; ok {
			continue
		}
		idx.history = append(idx.history, r)
		idx.byID[r.Request.ID] = r
		idx.index(r)
		added++
	}

	if added > 0 {
		sort.SliceStable(idx.history, func(i, j int) bool {
			return idx.history[i].CompletedAt.Before(idx.history[j].CompletedAt)
		})
	}
	idx.lastSync = time.Now()
	return added
}

// Get retrieves a result by check ID
func (idx *MemoryIndex) Get(id string) (*domain.CheckResult, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	r, ok := idx.byID[id]
	return r, ok
}

// Latest returns the most recent result for username
func (idx *MemoryIndex) Latest(username string) (*domain.CheckResult, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	r, ok := idx.latest[username]
	return r, ok
}

// All returns the history in append order
func (idx *MemoryIndex) All() []*domain.CheckResult {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]*domain.CheckResult, len(idx.history))
	copy(out, idx.history)
	return out
}

// Count returns the number of results in the history
func (idx *MemoryIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.history)
}

// DeleteOlderThan evicts results completed before cutoff and returns how
// many were removed.
func (idx *MemoryIndex) DeleteOlderThan(cutoff time.Time) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	kept := idx.history[:0]
	removed := 0
	for _, r := range idx.history {
		if r.CompletedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	if removed == 0 {
		return 0
	}
	// clear the tail so evicted results can be collected
	for i := len(kept); i < len(idx.history); i++ {
		idx.history[i] = nil
	}
	idx.history = kept

	idx.byID = make(map[string]*domain.CheckResult, len(kept))
	idx.latest = make(map[string]*domain.CheckResult)
	for _, r := range kept {
		idx.byID[r.Request.ID] = r
		idx.index(r)
	}
	return removed
}

// GetLastSync returns the timestamp of the last restore
func (idx *MemoryIndex) GetLastSync() time.Time {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.lastSync
}

// ─────────────────────────────────────────────────────────────────
// Active requests
// ─────────────────────────────────────────────────────────────────

// Track adds a running request under an internal token
func (idx *MemoryIndex) Track(token string, req ActiveRequest) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.active[token] = &req
}

// SetState moves a tracked request to state
func (idx *MemoryIndex) SetState(token string, state domain.State) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if req, ok := idx.active[token]; ok {
		req.State = state
	}
}

// Untrack removes a request from the active set
func (idx *MemoryIndex) Untrack(token string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	delete(idx.active, token)
}

// ActiveCount returns the number of running requests
func (idx *MemoryIndex) ActiveCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.active)
}

// Active returns a snapshot of running requests, oldest first
func (idx *MemoryIndex) Active() []ActiveRequest {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]ActiveRequest, 0, len(idx.active))
	for _, req := range idx.active {
		out = append(out, *req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}
