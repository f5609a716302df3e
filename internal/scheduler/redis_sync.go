package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/usercheck/internal/domain"
	"github.com/MrSnakeDoc/usercheck/internal/index"
	"github.com/MrSnakeDoc/usercheck/internal/logger"
)

// ResultLister lists persisted results. *redisstore.Store implements it.
type ResultLister interface {
	ListResults(ctx context.Context, since time.Time) ([]*domain.CheckResult, error)
}

// RedisSyncer restores the in-memory history from the result store on startup
type RedisSyncer struct {
	store     ResultLister
	index     *index.MemoryIndex
	logger    logger.Logger
	retention time.Duration
}

// NewRedisSyncer creates a new Redis syncer. With a retention window only
// results younger than it are restored.
func NewRedisSyncer(
	store ResultLister,
	idx *index.MemoryIndex,
	log logger.Logger,
	retention time.Duration,
) *RedisSyncer {
	return &RedisSyncer{
		store:     store,
		index:     idx,
		logger:    log,
		retention: retention,
	}
}

// Sync loads results from Redis into the memory history
func (rs *RedisSyncer) Sync(ctx context.Context) error {
	rs.logger.Info("syncing check history from redis to memory")

	var since time.Time
	if rs.retention > 0 {
		since = time.Now().Add(-rs.retention)
	}

	results, err := rs.store.ListResults(ctx, since)
	if err != nil {
		return err
	}

	if len(results) == 0 {
		rs.logger.Info("no results found in redis")
		return nil
	}

	restored := rs.index.Restore(results)

	rs.logger.Info("synced check history from redis",
		logger.Int("count", restored))

	return nil
}
