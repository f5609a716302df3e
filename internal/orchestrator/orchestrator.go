// Package orchestrator drives a username check through its lifecycle:
// pre-processing, bounded concurrent probing, aggregation and bookkeeping.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"

	"github.com/MrSnakeDoc/usercheck/internal/domain"
	"github.com/MrSnakeDoc/usercheck/internal/index"
	"github.com/MrSnakeDoc/usercheck/internal/logger"
	"github.com/MrSnakeDoc/usercheck/internal/platforms"
	"github.com/MrSnakeDoc/usercheck/internal/proxy"
	"github.com/MrSnakeDoc/usercheck/internal/scheduler"
)

// ErrEmptyUsername rejects a request before it enters the lifecycle.
var ErrEmptyUsername = errors.New("username is required")

// FailedRecommendation is the only advice attached to a failed check.
const FailedRecommendation = "Retry with different parameters"

// multiPlatformHint is passed to the normalizer for requests spanning platforms.
const multiPlatformHint = "multi_platform"

const defaultSinkTimeout = 5 * time.Second

// Intelligence is the static per-platform knowledge.
type Intelligence interface {
	IDs() []string
	Len() int
	Analysis(id string) domain.PlatformAnalysis
	Difficulty(id string) domain.Difficulty
}

// ProbeResolver maps platform ids to probes.
type ProbeResolver interface {
	Resolve(ids []string) map[string]platforms.Probe
	Has(id string) bool
}

// Normalizer analyzes usernames for leet-speak.
type Normalizer interface {
	Process(username, platformHint string) (domain.UsernameAnalysis, error)
}

// ProxyProvider supplies proxies for elevated-risk checks. A nil proxy
// means none is available.
type ProxyProvider interface {
	GetOptimalProxy(ctx context.Context, geo proxy.GeoConstraints) (*proxy.Proxy, error)
}

// ResultSink receives every completed check.
type ResultSink interface {
	Name() string
	Save(ctx context.Context, result *domain.CheckResult) error
}

// HealthChecker is implemented by sinks that can report their health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Query is one check request as received from a caller.
type Query struct {
	Username  string
	Platforms []string       // empty = every catalog platform
	Priority  int            // <= 0 = configured default
	Context   map[string]any // free-form, carried on the request
}

type Orchestrator struct {
	catalog    Intelligence
	registry   ProbeResolver
	normalizer Normalizer
	proxies    ProxyProvider
	geo        proxy.GeoConstraints
	sinks      []ResultSink
	history    *index.MemoryIndex
	metrics    *Metrics
	newID      IDGenerator
	log        logger.Logger
	now        func() time.Time

	defaultPriority    int
	batchMaxConcurrent int
	sinkTimeout        time.Duration
}

type Option func(*Orchestrator)

// WithProxyProvider enables proxies for medium and high risk checks.
func WithProxyProvider(p ProxyProvider, geo proxy.GeoConstraints) Option {
	return func(o *Orchestrator) {
		o.proxies = p
		o.geo = geo
	}
}

func WithSinks(sinks ...ResultSink) Option {
	return func(o *Orchestrator) { o.sinks = append(o.sinks, sinks...) }
}

func WithHistory(h *index.MemoryIndex) Option {
	return func(o *Orchestrator) { o.history = h }
}

func WithIDGenerator(g IDGenerator) Option {
	return func(o *Orchestrator) { o.newID = g }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func WithDefaultPriority(p int) Option {
	return func(o *Orchestrator) { o.defaultPriority = domain.ClampPriority(p) }
}

func WithBatchMaxConcurrent(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.batchMaxConcurrent = n
		}
	}
}

func WithSinkTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.sinkTimeout = d
		}
	}
}

// New creates an orchestrator. A nil logger discards logs.
func New(catalog Intelligence, registry ProbeResolver, normalizer Normalizer, log logger.Logger, opts ...Option) *Orchestrator {
	if log == nil {
		log = logger.Nop()
	}
	o := &Orchestrator{
		catalog:            catalog,
		registry:           registry,
		normalizer:         normalizer,
		metrics:            NewMetrics(),
		newID:              LegacyID,
		log:                log,
		now:                time.Now,
		defaultPriority:    1,
		batchMaxConcurrent: 5,
		sinkTimeout:        defaultSinkTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.history == nil {
		o.history = index.NewMemoryIndex()
	}
	return o
}

// History exposes the in-memory check history.
func (o *Orchestrator) History() *index.MemoryIndex { return o.history }

// Metrics returns a copy of the performance counters.
func (o *Orchestrator) Metrics() MetricsSnapshot { return o.metrics.Snapshot() }

// CheckUsername checks username on platforms (all when empty) at priority
// (default when <= 0).
func (o *Orchestrator) CheckUsername(ctx context.Context, username string, platformIDs []string, priority int) (*domain.CheckResult, error) {
	return o.Check(ctx, Query{Username: username, Platforms: platformIDs, Priority: priority})
}

// Check runs one request through the lifecycle. Platform failures never
// surface as errors: the only error is an empty username.
func (o *Orchestrator) Check(ctx context.Context, q Query) (*domain.CheckResult, error) {
	if strings.TrimSpace(q.Username) == "" {
		return nil, ErrEmptyUsername
	}

	priority := q.Priority
	if priority <= 0 {
		priority = o.defaultPriority
	}
	ids := q.Platforms
	if len(ids) == 0 {
		ids = o.catalog.IDs()
	}

	start := o.now()
	req := domain.NewCheckRequest(o.newID(q.Username, start), q.Username, ids, priority, q.Context, start)

	// The display ID may collide, the token may not.
	token := uuid.NewString()
	o.history.Track(token, index.ActiveRequest{
		ID:        req.ID,
		Username:  req.Username,
		State:     domain.StateCreated,
		StartedAt: start,
	})
	defer o.history.Untrack(token)

	o.metrics.RecordStart()
	log := o.log.With(logger.String("check_id", req.ID))
	log.Info("starting check",
		logger.String("username", req.Username),
		logger.Int("platforms", len(req.Platforms)),
		logger.Int("priority", req.Priority))

	result, err := o.execute(ctx, token, req, start)
	if err != nil {
		o.metrics.RecordFailed()
		o.history.SetState(token, domain.StateFailed)
		log.Error("check failed", logger.Error(err))
		return newFailedResult(req, err, o.now().Sub(start), o.now()), nil
	}

	o.metrics.RecordCompleted(result.Stats.AverageConfidence, result.Stats.SuccessfulChecks)
	o.history.SetState(token, domain.StateCompleted)
	o.history.Append(result)
	log.Info("check completed",
		logger.Int("successful", result.Stats.SuccessfulChecks),
		logger.Int("failed", result.Stats.FailedChecks),
		logger.Float64("success_rate", result.Stats.SuccessRate),
		logger.Float64("execution_time", result.Stats.ExecutionTime))

	o.dispatch(ctx, result)
	return result, nil
}

// execute covers PreProcessing through Aggregating. Any error or panic
// before aggregation fails the whole request.
func (o *Orchestrator) execute(ctx context.Context, token string, req domain.CheckRequest, start time.Time) (*domain.CheckResult, error) {
	o.history.SetState(token, domain.StatePreProcessing)

	var (
		pre    *domain.PreAnalysis
		probes map[string]platforms.Probe
		err    error
	)
	if r := panics.Try(func() { pre, probes, err = o.preProcess(req) }); r != nil {
		return nil, fmt.Errorf("pre-processing panicked: %w", r.AsError())
	}
	if err != nil {
		return nil, err
	}

	o.history.SetState(token, domain.StateScheduling)
	results := o.schedule(ctx, req, pre, probes)

	o.history.SetState(token, domain.StateAggregating)
	completedAt := o.now()
	byPlatform := make(map[string]*domain.PlatformResult, len(results))
	for _, r := range results {
		byPlatform[r.Platform] = r
		o.metrics.RecordPlatform(r.Platform, r.ExecutionTime, r.Successful(), completedAt)
	}

	stats, recs := domain.Aggregate(results)
	elapsed := completedAt.Sub(start).Seconds()
	stats.ExecutionTime = elapsed

	return &domain.CheckResult{
		Request:         req,
		State:           domain.StateCompleted,
		PlatformResults: byPlatform,
		Stats:           stats,
		Recommendations: recs,
		Metadata: domain.Metadata{
			PreAnalysis:   pre,
			PostAnalysis:  domain.PostAnalyze(results, stats),
			ExecutionTime: elapsed,
		},
		CompletedAt: completedAt,
	}, nil
}

// preProcess analyzes the username, resolves platform intelligence and
// probes, and assesses risk.
func (o *Orchestrator) preProcess(req domain.CheckRequest) (*domain.PreAnalysis, map[string]platforms.Probe, error) {
	analysis, err := o.normalizer.Process(req.Username, multiPlatformHint)
	if err != nil {
		return nil, nil, fmt.Errorf("username analysis failed: %w", err)
	}

	intel := make(map[string]domain.PlatformAnalysis, len(req.Platforms))
	for _, p := range req.Platforms {
		a := o.catalog.Analysis(p)
		a.Difficulty = a.Difficulty.OrMedium()
		a.Registered = o.registry.Has(p)
		intel[p] = a
	}

	risk := domain.AssessRisk(req, analysis.LeetConfidence, o.catalog.Difficulty)

	pre := &domain.PreAnalysis{
		Username:                analysis,
		Platforms:               intel,
		Risk:                    risk,
		StrategyRecommendations: domain.StrategyRecommendations(req.Platforms, intel, risk.Level),
	}

	return pre, o.registry.Resolve(req.Platforms), nil
}

// schedule runs every probe under the priority admission cap and returns
// results in request order, substituting failures for errors and panics.
func (o *Orchestrator) schedule(ctx context.Context, req domain.CheckRequest, pre *domain.PreAnalysis, probes map[string]platforms.Probe) []*domain.PlatformResult {
	elapsed := make([]time.Duration, len(req.Platforms))
	tasks := make([]scheduler.Task[*domain.PlatformResult], len(req.Platforms))
	for i, p := range req.Platforms {
		tasks[i] = func(ctx context.Context) (*domain.PlatformResult, error) {
			started := time.Now()
			defer func() { elapsed[i] = time.Since(started) }()
			return o.probe(ctx, p, probes[p], req, pre, started)
		}
	}

	outcomes := scheduler.RunBounded(ctx, tasks, req.Priority, o.log)

	results := make([]*domain.PlatformResult, len(outcomes))
	for i, out := range outcomes {
		p := req.Platforms[i]
		if out.Err != nil || out.Value == nil {
			msg := "probe returned no result"
			if out.Err != nil {
				msg = out.Err.Error()
			}
			o.log.Warn("platform check failed",
				logger.String("check_id", req.ID),
				logger.String("platform", p),
				logger.String("error", msg))
			results[i] = domain.FailureResult(p, msg, pre.Platforms[p].Difficulty, elapsed[i])
			continue
		}
		results[i] = out.Value
	}
	return results
}

func (o *Orchestrator) probe(ctx context.Context, platform string, probe platforms.Probe, req domain.CheckRequest, pre *domain.PreAnalysis, started time.Time) (*domain.PlatformResult, error) {
	params, err := o.prepareParams(ctx, platform, pre)
	if err != nil {
		return nil, err
	}

	sig, err := probe.CheckUsername(ctx, req.Username, params)
	if err != nil {
		return nil, err
	}

	return domain.ShapeSignal(platform, sig, pre.Platforms[platform].Difficulty, time.Since(started)), nil
}

// prepareParams builds the probe parameters. Anti-detection parameters are
// attached only for medium and high risk.
func (o *Orchestrator) prepareParams(ctx context.Context, platform string, pre *domain.PreAnalysis) (platforms.Params, error) {
	params := platforms.Params{
		Platform:       platform,
		Username:       pre.Username.Normalized,
		Strategy:       pre.Platforms[platform].Strategy,
		RiskLevel:      pre.Risk.Level,
		LeetConfidence: pre.Username.LeetConfidence,
		Variants:       pre.Username.Variants,
	}

	if !pre.Risk.Level.Elevated() {
		return params, nil
	}

	params.UseProxy = true
	params.EnableStealth = true
	params.CaptchaSolving = true
	params.FingerprintRotation = true

	if o.proxies != nil {
		px, err := o.proxies.GetOptimalProxy(ctx, o.geo)
		if err != nil {
			return params, fmt.Errorf("proxy selection failed: %w", err)
		}
		if px != nil {
			params.ProxyURL = px.URL
		}
	}

	return params, nil
}

// dispatch hands a completed result to every sink. Sink failures are
// logged and never alter the result.
func (o *Orchestrator) dispatch(ctx context.Context, result *domain.CheckResult) {
	if len(o.sinks) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.sinkTimeout)
	defer cancel()

	for _, s := range o.sinks {
		if err := s.Save(ctx, result); err != nil {
			o.log.Warn("result sink failed",
				logger.String("sink", s.Name()),
				logger.String("check_id", result.Request.ID),
				logger.Error(err))
		}
	}
}

// newFailedResult is the degraded result of a request that failed before
// aggregation.
func newFailedResult(req domain.CheckRequest, cause error, elapsed time.Duration, at time.Time) *domain.CheckResult {
	msg := cause.Error()
	return &domain.CheckResult{
		Request:         req,
		State:           domain.StateFailed,
		PlatformResults: map[string]*domain.PlatformResult{},
		Stats: domain.OverallStats{
			Success:       false,
			Error:         msg,
			ExecutionTime: elapsed.Seconds(),
		},
		Recommendations: []string{FailedRecommendation},
		Metadata: domain.Metadata{
			ExecutionTime: elapsed.Seconds(),
			Error:         true,
			Exception:     msg,
		},
		CompletedAt: at,
	}
}
