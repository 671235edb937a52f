// Package scoring reweights classification probabilities with per-image theme
// affinity and exposes the ranking diagnostics used in responses.
package scoring

import "sort"

const epsilon = 1e-12

// LabelScore is one ranked entry of a score map.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// AdjustedScore boosts a single score by the affinity weight scaled with alpha.
func AdjustedScore(score, affinityWeight, alpha float64) float64 {
	return score * (1 + affinityWeight*alpha)
}

// Apply boosts every label by the same affinity factor, clamps negatives to
// zero and renormalizes. A total at or below 1e-12 yields all-zero scores.
//
// The boost is uniform across labels, so after renormalization the ranking and
// the normalized values match the input distribution.
func Apply(base map[string]float64, affinityWeight, alpha float64) map[string]float64 {
	if len(base) == 0 {
		return map[string]float64{}
	}

	boosted := make(map[string]float64, len(base))
	var total float64
	for label, score := range base {
		v := AdjustedScore(score, affinityWeight, alpha)
		if v < 0 {
			v = 0
		}
		boosted[label] = v
		total += v
	}

	if total <= epsilon {
		for label := range boosted {
			boosted[label] = 0
		}
		return boosted
	}

	for label, v := range boosted {
		boosted[label] = v / total
	}
	return boosted
}

// TopK returns the k highest scores ordered by score desc, then label asc.
// k below 1 is treated as 1.
func TopK(scores map[string]float64, k int) []LabelScore {
	if k < 1 {
		k = 1
	}
	items := make([]LabelScore, 0, len(scores))
	for label, score := range scores {
		items = append(items, LabelScore{Label: label, Score: score})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].Label < items[j].Label
	})
	if len(items) > k {
		items = items[:k]
	}
	return items
}

// ConfidenceMargin is the gap between the first two entries. A single entry
// returns its own score and an empty list returns 0.
func ConfidenceMargin(ordered []LabelScore) float64 {
	switch len(ordered) {
	case 0:
		return 0
	case 1:
		return ordered[0].Score
	default:
		return ordered[0].Score - ordered[1].Score
	}
}
