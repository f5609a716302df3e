package orchestrator

import (
	"sync"
	"time"
)

// emaAlpha weights the latest probe duration in the moving average.
const emaAlpha = 0.1

// PlatformPerformance tracks one platform across checks.
type PlatformPerformance struct {
	TotalChecks      int       `json:"total_checks"`
	SuccessfulChecks int       `json:"successful_checks"`
	AverageTime      float64   `json:"average_time"` // seconds, moving average
	LastCheck        time.Time `json:"last_check"`
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	TotalChecks          int                            `json:"total_checks"`
	SuccessfulChecks     int                            `json:"successful_checks"`
	FailedChecks         int                            `json:"failed_checks"`
	AverageConfidence    float64                        `json:"average_confidence"`
	ComponentPerformance map[string]PlatformPerformance `json:"component_performance"`
}

// SuccessRate is successful/total, 0 before the first check.
func (s MetricsSnapshot) SuccessRate() float64 {
	if s.TotalChecks == 0 {
		return 0
	}
	return float64(s.SuccessfulChecks) / float64(s.TotalChecks)
}

// Metrics holds the cross-request counters. It is only updated at
// lifecycle transitions.
type Metrics struct {
	mu sync.Mutex
	s  MetricsSnapshot
}

func NewMetrics() *Metrics {
	return &Metrics{s: MetricsSnapshot{ComponentPerformance: make(map[string]PlatformPerformance)}}
}

// RecordStart counts a check entering the lifecycle.
func (m *Metrics) RecordStart() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s.TotalChecks++
}

// RecordCompleted counts a completed check. The running confidence is the
// two-term average of the previous value and the batch average, applied
// only when the batch had successful results.
func (m *Metrics) RecordCompleted(batchAverage float64, successful int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s.SuccessfulChecks++
	if successful > 0 {
		m.s.AverageConfidence = (m.s.AverageConfidence + batchAverage) / 2
	}
}

func (m *Metrics) RecordFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s.FailedChecks++
}

// RecordPlatform folds one probe outcome into the platform's performance.
func (m *Metrics) RecordPlatform(platform string, elapsed float64, success bool, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	perf := m.s.ComponentPerformance[platform]
	perf.TotalChecks++
	if success {
		perf.SuccessfulChecks++
	}
	perf.AverageTime = (1-emaAlpha)*perf.AverageTime + emaAlpha*elapsed
	perf.LastCheck = at
	m.s.ComponentPerformance[platform] = perf
}

// Snapshot copies the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.s
	out.ComponentPerformance = make(map[string]PlatformPerformance, len(m.s.ComponentPerformance))
	for k, v := range m.s.ComponentPerformance {
		out.ComponentPerformance[k] = v
	}
	return out
}
