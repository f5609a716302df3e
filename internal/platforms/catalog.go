package platforms

import (
	"errors"
	"sync"
	"time"

	"github.com/MrSnakeDoc/usercheck/internal/domain"
)

// ErrUnknownPlatform is returned for ids missing from the catalog or registry.
var ErrUnknownPlatform = errors.New("unknown platform")

// Strategies
const (
	StrategyHTTPBasic       = "http_basic"
	StrategyHTTPAdvanced    = "http_advanced"
	StrategyBrowserAdvanced = "browser_advanced"
)

// Platform is one catalog entry with its static intelligence and
// detection rules.
type Platform struct {
	ID            string
	Name          string
	Category      string
	CheckURL      string // contains a {username} placeholder
	Method        domain.Method
	Difficulty    domain.Difficulty
	RequiresAuth  bool
	Headers       map[string]string
	Timeout       time.Duration // 0 = probe default
	Strategy      string
	Mitigations   []string
	RetryAttempts int

	FollowRedirects bool
	NotFoundStatus  []int
	NotFoundMarkers []string
	FoundMarkers    []string
}

// Analysis is the static intelligence summary used by pre-processing.
func (p Platform) Analysis() domain.PlatformAnalysis {
	strategy := p.Strategy
	if strategy == "" {
		strategy = StrategyHTTPAdvanced
	}
	return domain.PlatformAnalysis{
		Difficulty:  p.Difficulty.OrMedium(),
		Strategy:    strategy,
		Mitigations: p.Mitigations,
	}
}

// Catalog is the thread-safe, reloadable set of known platforms.
// Insertion order is kept for "check everything" requests.
type Catalog struct {
	mu         sync.RWMutex
	order      []string
	byID       map[string]Platform
	lastReload time.Time
}

// NewCatalog creates a catalog holding ps.
func NewCatalog(ps []Platform) *Catalog {
	c := &Catalog{}
	c.Replace(ps)
	return c
}

// Replace swaps the whole catalog. Later duplicates of an id are ignored.
func (c *Catalog) Replace(ps []Platform) {
	order := make([]string, 0, len(ps))
	byID := make(map[string]Platform, len(ps))
	for _, p := range ps {
		if p.ID == "" {
			continue
		}
		if _, dup := byID[p.ID]; dup {
			continue
		}
		byID[p.ID] = p
		order = append(order, p.ID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = order
	c.byID = byID
	c.lastReload = time.Now()
}

// Get returns the entry for id or ErrUnknownPlatform.
func (c *Catalog) Get(id string) (Platform, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.byID[id]
	if !ok {
		return Platform{}, ErrUnknownPlatform
	}
	return p, nil
}

// IDs returns every platform id in catalog order.
func (c *Catalog) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

func (c *Catalog) All() []Platform {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Platform, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Difficulty satisfies domain.DifficultyFunc. Unknown platforms are medium.
func (c *Catalog) Difficulty(id string) domain.Difficulty {
	p, err := c.Get(id)
	if err != nil {
		return domain.DifficultyMedium
	}
	return p.Difficulty.OrMedium()
}

// Analysis returns the static intelligence for id. Platforms outside the
// catalog get medium difficulty and the advanced HTTP strategy.
func (c *Catalog) Analysis(id string) domain.PlatformAnalysis {
	p, err := c.Get(id)
	if err != nil {
		return domain.PlatformAnalysis{
			Difficulty: domain.DifficultyMedium,
			Strategy:   StrategyHTTPAdvanced,
		}
	}
	return p.Analysis()
}

func (c *Catalog) LastReload() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastReload
}
