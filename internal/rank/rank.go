// Package rank selects the final candidate list and builds the coarse
// visualization series shown alongside it.
package rank

import (
	"sort"

	"github.com/five82/seamloop/internal/search"
)

// Top returns the k best candidates by score, stable for equal scores.
// The input slice is not modified.
func Top(cands []search.Candidate, k int) []search.Candidate {
	sorted := make([]search.Candidate, len(cands))
	copy(sorted, cands)
	sort.SliceStable(sorted, func(a, b int) bool {
		return sorted[a].Score > sorted[b].Score
	})
	if k >= 0 && len(sorted) > k {
		sorted = sorted[:k]
	}
	return sorted
}

// Heatmap splits durationMs into buckets and reports, per bucket, the highest
// score among kept candidates whose span contains the bucket's center, or
// filler when none does. It is for display only.
func Heatmap(kept []search.Candidate, durationMs float64, buckets int, filler float64) []float64 {
	if buckets <= 0 {
		return nil
	}
	out := make([]float64, buckets)
	width := durationMs / float64(buckets)

	for b := range out {
		center := (float64(b) + 0.5) * width
		best := -1.0
		for _, c := range kept {
			if center >= c.StartMs && center <= c.EndMs && c.Score > best {
				best = c.Score
			}
		}
		if best < 0 {
			best = filler
		}
		out[b] = best
	}
	return out
}
