package domain

const (
	// Risk weights
	RiskWeightLeetUsername = 0.3
	RiskWeightHardPlatform = 0.4 // per high/very_high platform, uncapped
	RiskWeightHighVolume   = 0.2

	// Factor triggers
	RiskLeetThreshold   = 0.7
	RiskVolumeThreshold = 10

	// Level thresholds (strictly greater than)
	RiskHighThreshold   = 0.7
	RiskMediumThreshold = 0.3
)

// Risk factor names
const (
	FactorLeetUsername      = "leet_username"
	FactorHighRiskPlatforms = "high_risk_platforms"
	FactorHighVolume        = "high_volume"
)

// RiskLevel buckets a risk score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Elevated reports whether anti-detection parameters should be attached.
func (l RiskLevel) Elevated() bool {
	return l == RiskMedium || l == RiskHigh
}

// RiskFactor is one weighted contribution to a risk score.
type RiskFactor struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// RiskAssessment is computed once per request during pre-processing.
type RiskAssessment struct {
	Score       float64      `json:"risk_score"`
	Level       RiskLevel    `json:"risk_level"`
	Factors     []RiskFactor `json:"risk_factors"`
	Precautions []string     `json:"recommended_precautions"`
}

// AssessRisk sums the weighted contributions of username complexity,
// hard platforms and request volume. It never fails: platforms without
// difficulty data are treated as medium.
func AssessRisk(req CheckRequest, leetConfidence float64, difficulty DifficultyFunc) RiskAssessment {
	factors := make([]RiskFactor, 0, 3)

	if leetConfidence > RiskLeetThreshold {
		factors = append(factors, RiskFactor{Name: FactorLeetUsername, Weight: RiskWeightLeetUsername})
	}

	hard := 0
	for _, p := range req.Platforms {
		var d Difficulty
		if difficulty != nil {
			d = difficulty(p)
		}
		if d.OrMedium().Hard() {
			hard++
		}
	}
	if hard > 0 {
		factors = append(factors, RiskFactor{Name: FactorHighRiskPlatforms, Weight: RiskWeightHardPlatform * float64(hard)})
	}

	if len(req.Platforms) > RiskVolumeThreshold {
		factors = append(factors, RiskFactor{Name: FactorHighVolume, Weight: RiskWeightHighVolume})
	}

	var score float64
	for _, f := range factors {
		score += f.Weight
	}

	return RiskAssessment{
		Score:       score,
		Level:       RiskLevelFor(score),
		Factors:     factors,
		Precautions: Precautions(score),
	}
}

// RiskLevelFor is non-decreasing in score.
func RiskLevelFor(score float64) RiskLevel {
	switch {
	case score > RiskHighThreshold:
		return RiskHigh
	case score > RiskMediumThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Precautions returns the fixed tactic list for the score's bucket.
func Precautions(score float64) []string {
	switch RiskLevelFor(score) {
	case RiskHigh:
		return []string{
			"Use residential proxies",
			"Enable full stealth mode",
			"Implement aggressive delays",
			"Use browser automation for all checks",
		}
	case RiskMedium:
		return []string{
			"Rotate proxies between platforms",
			"Use moderate delays",
			"Enable basic stealth features",
		}
	default:
		return []string{
			"Standard checking parameters",
			"Minimal delays acceptable",
		}
	}
}

// StrategyRecommendations lists the per-platform strategy in request
// order, plus evasion hints when the risk is high.
func StrategyRecommendations(platforms []string, analysis map[string]PlatformAnalysis, level RiskLevel) []string {
	recs := make([]string, 0, len(platforms)+3)
	for _, p := range platforms {
		a, ok := analysis[p]
		if !ok {
			continue
		}
		recs = append(recs, p+": Use "+a.Strategy+" strategy")
	}

	if level == RiskHigh {
		recs = append(recs,
			"Enable sandbox detection and evasion",
			"Use ML-based detection evasion",
			"Implement advanced proxy rotation",
		)
	}

	return recs
}
