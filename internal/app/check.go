package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/MrSnakeDoc/usercheck/internal/config"
	"github.com/MrSnakeDoc/usercheck/internal/domain"
	"github.com/MrSnakeDoc/usercheck/internal/logger"
	"github.com/MrSnakeDoc/usercheck/internal/orchestrator"
	"github.com/MrSnakeDoc/usercheck/internal/report"
	"github.com/MrSnakeDoc/usercheck/internal/scheduler"
)

// ErrCheckFailed is returned by RunCheck when at least one check ended in
// the failed state. The report has been written anyway.
var ErrCheckFailed = errors.New("one or more checks failed")

// CheckOptions drives a one-shot CLI check.
type CheckOptions struct {
	Usernames     []string
	Platforms     []string
	Priority      int
	MaxConcurrent int
	Format        string // text | json | csv
	NoColor       bool
	Out           io.Writer
}

// RunCheck loads the catalog, checks every username and writes the report
// to opts.Out. Nothing is persisted or published.
func RunCheck(ctx context.Context, cfg *config.Config, opts CheckOptions) error {
	format := strings.ToLower(opts.Format)
	if format == "" {
		format = "text"
	}
	if format != "text" && format != "json" && format != "csv" {
		return fmt.Errorf("unknown format %q (want text, json or csv)", opts.Format)
	}
	if len(opts.Usernames) == 0 {
		return orchestrator.ErrEmptyUsername
	}

	// the report goes to stdout, keep stderr for real problems
	level := "warn"
	if cfg.LogLevel == "debug" {
		level = "debug"
	}
	log := logger.New(level, cfg.PrettyLog)
	defer func() { _ = log.Sync() }()

	e, err := newEngine(cfg, log)
	if err != nil {
		return err
	}
	reloader := scheduler.NewCatalogReloader(e.loader, e.catalog, e.registry, e.probeOpts, log, cfg.ReloadInterval, nil)
	if err := reloader.Reload(ctx); err != nil {
		return fmt.Errorf("failed to load platform catalog: %w", err)
	}

	results, err := runChecks(ctx, e.orchestrator, opts)
	if err != nil {
		return err
	}

	if err := writeResults(opts.Out, results, format, !opts.NoColor && !color.NoColor); err != nil {
		return err
	}

	for _, r := range results {
		if r.State == domain.StateFailed {
			return ErrCheckFailed
		}
	}
	return nil
}

// runChecks returns one result per username, in argument order.
func runChecks(ctx context.Context, o *orchestrator.Orchestrator, opts CheckOptions) ([]*domain.CheckResult, error) {
	if len(opts.Usernames) == 1 {
		res, err := o.Check(ctx, orchestrator.Query{
			Username:  opts.Usernames[0],
			Platforms: opts.Platforms,
			Priority:  opts.Priority,
		})
		if err != nil {
			return nil, err
		}
		return []*domain.CheckResult{res}, nil
	}

	byName := o.BatchCheck(ctx, orchestrator.BatchQuery{
		Usernames:     opts.Usernames,
		Platforms:     opts.Platforms,
		Priority:      opts.Priority,
		MaxConcurrent: opts.MaxConcurrent,
	})
	results := make([]*domain.CheckResult, 0, len(byName))
	seen := make(map[string]bool, len(byName))
	for _, u := range opts.Usernames {
		k := strings.TrimSpace(u)
		if seen[k] {
			continue
		}
		seen[k] = true
		if r, ok := byName[u]; ok {
			results = append(results, r)
		}
	}
	return results, nil
}

func writeResults(w io.Writer, results []*domain.CheckResult, format string, colored bool) error {
	switch format {
	case "csv":
		out, err := report.ExportCSV(results)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	case "json":
		for _, r := range results {
			data, err := report.ExportJSON(r)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
				return err
			}
		}
		return nil
	default:
		for i, r := range results {
			if i > 0 {
				if _, err := io.WriteString(w, "\n"); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintln(w, report.Render(r, colored)); err != nil {
				return err
			}
		}
		return nil
	}
}
