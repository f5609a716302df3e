package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/usercheck/internal/index"
	"github.com/MrSnakeDoc/usercheck/internal/logger"
)

// ResultPruner removes persisted results. *redisstore.Store implements it.
type ResultPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// HistoryCollector evicts check results older than the retention window
// from the in-memory history and, when configured, the result store.
type HistoryCollector struct {
	store     ResultPruner
	index     *index.MemoryIndex
	logger    logger.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
	stopCh    chan struct{}
}

// NewHistoryCollector creates a new history collector. A zero retention
// keeps every result and Start becomes a no-op.
func NewHistoryCollector(
	store ResultPruner,
	idx *index.MemoryIndex,
	log logger.Logger,
	interval time.Duration,
	retention time.Duration,
) *HistoryCollector {
	if interval <= 0 {
		interval = time.Hour
	}
	return &HistoryCollector{
		store:     store,
		index:     idx,
		logger:    log,
		interval:  interval,
		retention: retention,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// Enabled reports whether a retention window is configured.
func (hc *HistoryCollector) Enabled() bool { return hc.retention > 0 }

// Start begins the periodic collection process
func (hc *HistoryCollector) Start(ctx context.Context) error {
	if !hc.Enabled() {
		hc.logger.Info("history retention disabled, keeping every result")
		return nil
	}

	if err := hc.Collect(ctx); err != nil {
		hc.logger.Warn("initial history collection failed",
			logger.Error(err))
	}

	ticker := time.NewTicker(hc.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := hc.Collect(ctx); err != nil {
					hc.logger.Error("history collection failed",
						logger.Error(err))
				}
			case <-hc.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the collector
func (hc *HistoryCollector) Stop() {
	close(hc.stopCh)
}

// Collect removes results completed before now - retention. Store errors
// are returned after the memory history has been pruned.
func (hc *HistoryCollector) Collect(ctx context.Context) error {
	if !hc.Enabled() {
		return nil
	}
	cutoff := hc.now().Add(-hc.retention)

	removed := hc.index.DeleteOlderThan(cutoff)

	var (
		stored int
		err    error
	)
	if hc.store != nil {
		stored, err = hc.store.DeleteOlderThan(ctx, cutoff)
	}

	if removed > 0 || stored > 0 {
		hc.logger.Info("history collection completed",
			logger.Int("memory_deleted", removed),
			logger.Int("store_deleted", stored),
			logger.String("cutoff", cutoff.Format(time.RFC3339)))
	} else {
		hc.logger.Debug("no results to collect")
	}

	return err
}
