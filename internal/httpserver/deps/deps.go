package deps

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/usercheck/internal/domain"
	"github.com/MrSnakeDoc/usercheck/internal/logger"
	"github.com/MrSnakeDoc/usercheck/internal/orchestrator"
	"github.com/MrSnakeDoc/usercheck/internal/platforms"
)

// ResultReader reads persisted results.
type ResultReader interface {
	GetLatest(ctx context.Context, username string) (*domain.CheckResult, error)
}

type Deps struct {
	Logger            logger.Logger
	StartTime         time.Time
	Version           string
	Commit            string
	BuildDate         string
	GoVersion         string
	TimeNow           func() time.Time           // for testing, defaults to time.Now
	AllowedHosts      []string                   // Host headers allowed to access the server
	AllowedCIDRS      []string                   // IPs allowed to access infra endpoints
	TrustProxy        bool                       // true if running behind a trusted reverse proxy (e.g., cloudflared)
	RequestsPerSecond float64                    // per-client refill rate on check endpoints
	RateBurst         int                        // per-client burst on check endpoints
	BatchMaxUsernames int                        // upper bound of one batch request (0 = unbounded)
	Orchestrator      *orchestrator.Orchestrator // check engine
	Catalog           *platforms.Catalog         // loaded platform catalog
	CatalogSource     string                     // "embedded" or the catalog file path
	Results           ResultReader               // nil when persistence is disabled
	RedisClient       *redis.Client              // nil when persistence is disabled
	Publisher         orchestrator.HealthChecker // nil when publishing is disabled
	ReloadTrigger     chan struct{}              // Channel to trigger manual catalog reload
}
