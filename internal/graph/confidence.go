package graph

import "math"

// DeriveConfidence aggregates evidence into a relationship confidence.
// Each item contributes its own confidence scaled by the quality weight of its
// study type; the result is the mean of those contributions over all items,
// clamped to [0,1]. A single item therefore yields weight*confidence, and
// upgrading any item to a higher-weight study type never lowers the result.
func DeriveConfidence(evidence []Evidence) (float64, error) {
	if len(evidence) == 0 {
		return 0, invalid("evidence", "at least one evidence item is required")
	}
	var sum float64
	for _, ev := range evidence {
		sum += ev.Confidence * ev.Weight()
	}
	return clamp01(sum / float64(len(evidence))), nil
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
