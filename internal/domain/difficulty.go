package domain

import "strings"

// Difficulty is the static probing difficulty tag of a platform.
type Difficulty string

const (
	DifficultyLow      Difficulty = "low"
	DifficultyMedium   Difficulty = "medium"
	DifficultyHigh     Difficulty = "high"
	DifficultyVeryHigh Difficulty = "very_high"
)

// DifficultyFunc resolves a platform's difficulty. An empty return means
// the platform has no difficulty data.
type DifficultyFunc func(platform string) Difficulty

// ParseDifficulty accepts both the canonical tags and the legacy
// easy/medium/hard/extreme scale. Anything else is medium.
func ParseDifficulty(s string) Difficulty {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "easy":
		return DifficultyLow
	case "high", "hard":
		return DifficultyHigh
	case "very_high", "very-high", "extreme":
		return DifficultyVeryHigh
	default:
		return DifficultyMedium
	}
}

// OrMedium substitutes the default for missing difficulty data.
func (d Difficulty) OrMedium() Difficulty {
	switch d {
	case DifficultyLow, DifficultyMedium, DifficultyHigh, DifficultyVeryHigh:
		return d
	default:
		return DifficultyMedium
	}
}

// Hard reports whether the tag counts toward platform risk.
func (d Difficulty) Hard() bool {
	return d == DifficultyHigh || d == DifficultyVeryHigh
}

// ConfidenceMultiplier discounts signals from harder platforms.
func (d Difficulty) ConfidenceMultiplier() float64 {
	switch d.OrMedium() {
	case DifficultyLow:
		return 1.1
	case DifficultyHigh:
		return 0.9
	case DifficultyVeryHigh:
		return 0.8
	default:
		return 1.0
	}
}
