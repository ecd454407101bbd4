// Package mathutil holds the small numeric helpers shared by scoring
// and pagination code.
package mathutil

// Clamp01 clamps a score to the unit interval. Fusion weights assume
// every component score is already in [0, 1].
func Clamp01(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}

// ClampInt clamps an integer to [min, max].
func ClampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// ClampLimit normalizes a requested result count: non-positive falls
// back to defaultVal, anything above maxVal is capped.
func ClampLimit(limit, defaultVal, maxVal int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit > maxVal {
		return maxVal
	}
	return limit
}
