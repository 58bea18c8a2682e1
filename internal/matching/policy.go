package matching

import "math"

// Policy decides whether a candidate is confident enough to present.
// It holds no state; the threshold is supplied per call.
type Policy struct{}

// Accepts reports score >= threshold. NaN scores are never accepted.
func (Policy) Accepts(score, threshold float64) bool {
	if math.IsNaN(score) {
		return false
	}
	return score >= threshold
}
