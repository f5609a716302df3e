package domain

import "math"

// ConfidenceCaveatThreshold triggers the manual verification advice.
const ConfidenceCaveatThreshold = 0.7

// LowSuccessRateThreshold triggers the general recommendations.
const LowSuccessRateThreshold = 0.5

// ComputeStats summarizes results. Confidence figures only consider
// successful results and are all zero when there are none.
func ComputeStats(results []*PlatformResult) OverallStats {
	stats := OverallStats{
		TotalPlatforms: len(results),
		Success:        true,
	}

	var sum float64
	maxC, minC := 0.0, math.Inf(1)
	for _, r := range results {
		if !r.Successful() {
			stats.FailedChecks++
			continue
		}
		stats.SuccessfulChecks++
		sum += r.Confidence
		maxC = math.Max(maxC, r.Confidence)
		minC = math.Min(minC, r.Confidence)
	}

	if stats.TotalPlatforms > 0 {
		stats.SuccessRate = float64(stats.SuccessfulChecks) / float64(stats.TotalPlatforms)
	}
	if stats.SuccessfulChecks > 0 {
		stats.AverageConfidence = sum / float64(stats.SuccessfulChecks)
		stats.MaxConfidence = maxC
		stats.MinConfidence = minC
	}

	return stats
}

// BatchConfidence is the mean confidence of every result, failed entries
// counting as zero.
func BatchConfidence(results []*PlatformResult) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		sum += r.Confidence
	}
	return sum / float64(len(results))
}

// Recommend builds the ordered recommendation list: general advice, then
// per-platform retries in result order, then the confidence caveat.
func Recommend(results []*PlatformResult, stats OverallStats) []string {
	recs := make([]string, 0, 4)

	if stats.SuccessRate < LowSuccessRateThreshold {
		recs = append(recs,
			"Consider using higher-quality proxies",
			"Increase delay between requests",
			"Try alternative checking strategies for failed platforms",
		)
	}

	for _, r := range results {
		if NeedsRetry(r) {
			recs = append(recs, "Retry "+r.Platform+" with different parameters")
		}
	}

	if BatchConfidence(results) < ConfidenceCaveatThreshold {
		recs = append(recs, "Results have low confidence - consider manual verification")
	}

	return recs
}

// Aggregate combines ComputeStats and Recommend.
func Aggregate(results []*PlatformResult) (OverallStats, []string) {
	stats := ComputeStats(results)
	return stats, Recommend(results, stats)
}

// PostAnalyze builds the post-analysis snapshot.
func PostAnalyze(results []*PlatformResult, stats OverallStats) *PostAnalysis {
	post := &PostAnalysis{
		SuccessfulChecks:  stats.SuccessfulChecks,
		FailedChecks:      stats.FailedChecks,
		AverageConfidence: stats.AverageConfidence,
		Platforms:         make(map[string]PlatformOutcome, len(results)),
	}
	for _, r := range results {
		post.Platforms[r.Platform] = PlatformOutcome{
			Success:    r.Successful(),
			Confidence: r.Confidence,
			Method:     r.Method,
			NeedsRetry: r.NeedsRetry,
		}
	}
	return post
}
