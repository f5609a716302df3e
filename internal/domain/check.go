package domain

import (
	"fmt"
	"time"
)

// Existence is the tri-state verdict a probe reports for a username.
type Existence int

const (
	ExistsUnknown Existence = iota
	ExistsTrue
	ExistsFalse
)

// ExistenceOf converts a plain bool into a known verdict.
func ExistenceOf(b bool) Existence {
	if b {
		return ExistsTrue
	}
	return ExistsFalse
}

// Known reports whether the probe reached a verdict.
func (e Existence) Known() bool { return e == ExistsTrue || e == ExistsFalse }

// Bool collapses the verdict. Unknown is reported as false.
func (e Existence) Bool() bool { return e == ExistsTrue }

func (e Existence) String() string {
	switch e {
	case ExistsTrue:
		return "true"
	case ExistsFalse:
		return "false"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the verdict as true, false or null.
func (e Existence) MarshalJSON() ([]byte, error) {
	switch e {
	case ExistsTrue:
		return []byte("true"), nil
	case ExistsFalse:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

func (e *Existence) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "true":
		*e = ExistsTrue
	case "false":
		*e = ExistsFalse
	case "null", `"unknown"`:
		*e = ExistsUnknown
	default:
		return fmt.Errorf("invalid existence value: %s", data)
	}
	return nil
}

// Method tags how a probe reached its verdict.
type Method string

const (
	MethodHTTP      Method = "http"
	MethodAPI       Method = "api"
	MethodBrowser   Method = "browser"
	MethodMatrix    Method = "matrix-federation"
	MethodWebFinger Method = "webfinger"
	MethodUnknown   Method = "unknown"
)

// RawSignal is the unadjusted output of a single probe.
type RawSignal struct {
	Exists     Existence      `json:"exists"`
	Confidence float64        `json:"confidence"`
	Method     Method         `json:"method"`
	Error      string         `json:"error,omitempty"`
	Note       string         `json:"note,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"` // account age, karma, ...
}

// CheckRequest describes one username check. It is not mutated after creation.
type CheckRequest struct {
	ID        string         `json:"check_id"`
	Username  string         `json:"username"`
	Platforms []string       `json:"platforms"`
	Priority  int            `json:"priority"`
	Context   map[string]any `json:"context,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewCheckRequest builds a request, dropping duplicate platforms while
// keeping their first-seen order. Priority is clamped to [1,10].
func NewCheckRequest(id, username string, platforms []string, priority int, context map[string]any, now time.Time) CheckRequest {
	seen := make(map[string]bool, len(platforms))
	unique := make([]string, 0, len(platforms))
	for _, p := range platforms {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		unique = append(unique, p)
	}

	return CheckRequest{
		ID:        id,
		Username:  username,
		Platforms: unique,
		Priority:  ClampPriority(priority),
		Context:   context,
		CreatedAt: now,
	}
}

// ClampPriority keeps a priority within 1..10.
func ClampPriority(p int) int {
	switch {
	case p < 1:
		return 1
	case p > 10:
		return 10
	default:
		return p
	}
}

// PlatformResult is the shaped per-platform outcome folded into a CheckResult.
type PlatformResult struct {
	Platform      string         `json:"platform"`
	Exists        Existence      `json:"exists"`
	Confidence    float64        `json:"confidence"`
	Method        Method         `json:"method"`
	Error         string         `json:"error,omitempty"`
	NeedsRetry    bool           `json:"needs_retry"`
	ExecutionTime float64        `json:"execution_time"` // seconds
	Difficulty    Difficulty     `json:"difficulty,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Successful reports whether the probe produced a usable verdict.
// A confirmed absence counts as success.
func (r *PlatformResult) Successful() bool {
	return r.Error == "" && r.Exists.Known()
}

// FailureResult is the substitute recorded when a probe fails or panics.
// It carries the platform difficulty like any shaped result.
func FailureResult(platform, message string, difficulty Difficulty, elapsed time.Duration) *PlatformResult {
	r := &PlatformResult{
		Platform:      platform,
		Exists:        ExistsFalse,
		Confidence:    0.0,
		Method:        MethodUnknown,
		Error:         message,
		ExecutionTime: elapsed.Seconds(),
		Difficulty:    difficulty,
	}
	r.NeedsRetry = NeedsRetry(r)
	return r
}

// State is a step of the request lifecycle.
type State string

const (
	StateCreated       State = "created"
	StatePreProcessing State = "pre_processing"
	StateScheduling    State = "scheduling"
	StateAggregating   State = "aggregating"
	StateCompleted     State = "completed"
	StateFailed        State = "failed"
)

// OverallStats summarizes a batch of platform results.
type OverallStats struct {
	TotalPlatforms    int     `json:"total_platforms"`
	SuccessfulChecks  int     `json:"successful_checks"`
	FailedChecks      int     `json:"failed_checks"`
	SuccessRate       float64 `json:"success_rate"`
	AverageConfidence float64 `json:"average_confidence"`
	MaxConfidence     float64 `json:"max_confidence"`
	MinConfidence     float64 `json:"min_confidence"`
	ExecutionTime     float64 `json:"execution_time"` // seconds

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ─────────────────────────────
// Analysis snapshots
// ─────────────────────────────

// UsernameAnalysis is what the username normalizer reported.
type UsernameAnalysis struct {
	Original        string   `json:"original"`
	Normalized      string   `json:"normalized"`
	LeetConfidence  float64  `json:"leet_confidence"`
	Variants        []string `json:"variants,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// PlatformAnalysis is the static intelligence resolved for one platform.
type PlatformAnalysis struct {
	Difficulty  Difficulty `json:"difficulty"`
	Strategy    string     `json:"recommended_strategy"`
	Mitigations []string   `json:"mitigations,omitempty"`
	Registered  bool       `json:"registered"`
}

// PreAnalysis is the snapshot taken before scheduling.
type PreAnalysis struct {
	Username                UsernameAnalysis            `json:"username_analysis"`
	Platforms               map[string]PlatformAnalysis `json:"platform_analysis"`
	Risk                    RiskAssessment              `json:"risk_assessment"`
	StrategyRecommendations []string                    `json:"strategy_recommendations"`
}

// PlatformOutcome is the per-platform line of the post analysis.
type PlatformOutcome struct {
	Success    bool    `json:"success"`
	Confidence float64 `json:"confidence"`
	Method     Method  `json:"method"`
	NeedsRetry bool    `json:"needs_retry"`
}

// PostAnalysis is the snapshot taken after aggregation.
type PostAnalysis struct {
	SuccessfulChecks  int                        `json:"successful_checks"`
	FailedChecks      int                        `json:"failed_checks"`
	AverageConfidence float64                    `json:"average_confidence"`
	Platforms         map[string]PlatformOutcome `json:"platform_analysis"`
}

// Metadata carries the analysis snapshots, or the failure cause.
type Metadata struct {
	PreAnalysis   *PreAnalysis  `json:"pre_analysis,omitempty"`
	PostAnalysis  *PostAnalysis `json:"post_analysis,omitempty"`
	ExecutionTime float64       `json:"execution_time"`
	Error         bool          `json:"error,omitempty"`
	Exception     string        `json:"exception,omitempty"`
}

// CheckResult is the final, immutable outcome of one request.
type CheckResult struct {
	Request         CheckRequest               `json:"request"`
	State           State                      `json:"state"`
	PlatformResults map[string]*PlatformResult `json:"platform_results"`
	Stats           OverallStats               `json:"overall_stats"`
	Recommendations []string                   `json:"recommendations"`
	Metadata        Metadata                   `json:"metadata"`
	CompletedAt     time.Time                  `json:"completed_at"`
}

// Ordered returns platform results in request order. Platforms
// without a result are skipped.
func (c *CheckResult) Ordered() []*PlatformResult {
	out := make([]*PlatformResult, 0, len(c.PlatformResults))
	for _, p := range c.Request.Platforms {
		if r, ok := c.PlatformResults[p]; ok {
			out = append(out, r)
		}
	}
	return out
}
