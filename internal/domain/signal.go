package domain

import (
	"math"
	"strings"
	"time"
)

// RetryKeywords are matched case-insensitively against probe errors.
// The set is part of the behavioral contract with existing probes.
var RetryKeywords = []string{"timeout", "rate limit", "temporary", "captcha"}

// RetryConfidenceThreshold marks an error-free verdict as too weak to keep.
const RetryConfidenceThreshold = 0.5

// AdjustConfidence applies the difficulty multiplier and clamps to [0,1].
func AdjustConfidence(base float64, d Difficulty) float64 {
	if math.IsNaN(base) || base < 0 {
		base = 0
	}
	return math.Min(base*d.ConfidenceMultiplier(), 1.0)
}

// ShapeSignal turns a probe's raw signal into a PlatformResult.
func ShapeSignal(platform string, sig RawSignal, d Difficulty, elapsed time.Duration) *PlatformResult {
	method := sig.Method
	if method == "" {
		method = MethodUnknown
	}

	var meta map[string]any
	if len(sig.Metadata) > 0 || sig.Note != "" {
		meta = make(map[string]any, len(sig.Metadata)+1)
		for k, v := range sig.Metadata {
			meta[k] = v
		}
		if sig.Note != "" {
			meta["note"] = sig.Note
		}
	}

	r := &PlatformResult{
		Platform:      platform,
		Exists:        sig.Exists,
		Confidence:    AdjustConfidence(sig.Confidence, d),
		Method:        method,
		Error:         sig.Error,
		ExecutionTime: elapsed.Seconds(),
		Difficulty:    d.OrMedium(),
		Metadata:      meta,
	}
	r.NeedsRetry = NeedsRetry(r)
	return r
}

// NeedsRetry recommends a retry for unsuccessful results that are either
// error-free but weak, or failed with a transient-looking error.
func NeedsRetry(r *PlatformResult) bool {
	if r == nil || r.Successful() {
		return false
	}

	if r.Confidence < RetryConfidenceThreshold && r.Error == "" {
		return true
	}

	msg := strings.ToLower(r.Error)
	for _, kw := range RetryKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}

	return false
}
