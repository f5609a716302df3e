package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/usercheck/internal/logger"
	"github.com/MrSnakeDoc/usercheck/internal/platforms"
)

// CatalogSource produces the platform list. *platforms.Loader implements it.
type CatalogSource interface {
	Source() string
	Load() ([]platforms.Platform, error)
}

// CatalogReloader periodically reloads the platform catalog and refreshes
// the probes registered for it.
type CatalogReloader struct {
	source        CatalogSource
	catalog       *platforms.Catalog
	registry      *platforms.Registry
	probeOpts     platforms.HTTPOptions
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewCatalogReloader creates a new catalog reloader
func NewCatalogReloader(
	source CatalogSource,
	catalog *platforms.Catalog,
	registry *platforms.Registry,
	probeOpts platforms.HTTPOptions,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *CatalogReloader {
	return &CatalogReloader{
		source:        source,
		catalog:       catalog,
		registry:      registry,
		probeOpts:     probeOpts,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start loads the catalog once, then keeps reloading it on every tick or
// manual trigger. A failed initial load is fatal, later failures keep the
// previous catalog.
func (cr *CatalogReloader) Start(ctx context.Context) error {
	if err := cr.Reload(ctx); err != nil {
		return fmt.Errorf("initial reload failed: %w", err)
	}

	ticker := time.NewTicker(cr.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := cr.Reload(ctx); err != nil {
					cr.logger.Error("failed to reload platform catalog",
						logger.Error(err))
				}
			case <-cr.manualTrigger:
				cr.logger.Info("manual reload triggered")
				if err := cr.Reload(ctx); err != nil {
					cr.logger.Error("failed to reload platform catalog",
						logger.Error(err))
				}
			case <-cr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reloader
func (cr *CatalogReloader) Stop() {
	close(cr.stopCh)
}

// Reload loads the catalog and swaps it in. Probes are registered before
// the swap so a new platform is never checked with the fallback probe.
func (cr *CatalogReloader) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cr.logger.Info("reloading platform catalog",
		logger.String("source", cr.source.Source()))

	ps, err := cr.source.Load()
	if err != nil {
		return fmt.Errorf("failed to load platforms: %w", err)
	}
	if len(ps) == 0 {
		return fmt.Errorf("catalog %s holds no platform", cr.source.Source())
	}

	before := cr.catalog.Len()
	cr.registry.RegisterCatalog(ps, cr.probeOpts)
	cr.catalog.Replace(ps)

	cr.logger.Info("platform catalog loaded",
		logger.Int("count", cr.catalog.Len()),
		logger.Int("previous", before))

	return nil
}
