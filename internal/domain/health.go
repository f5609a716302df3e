package domain

// Health grades
const (
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"

	PerformanceExcellent = "excellent"
	PerformanceGood      = "good"
	PerformanceFair      = "fair"
	PerformancePoor      = "poor"
)

// GradePerformance maps a check success rate onto a performance grade.
func GradePerformance(successRate float64) string {
	switch {
	case successRate > 0.8:
		return PerformanceExcellent
	case successRate > 0.6:
		return PerformanceGood
	case successRate > 0.4:
		return PerformanceFair
	default:
		return PerformancePoor
	}
}

// OverallHealth is healthy above a 60% success rate.
func OverallHealth(successRate float64) string {
	if successRate > 0.6 {
		return HealthHealthy
	}
	return HealthDegraded
}
