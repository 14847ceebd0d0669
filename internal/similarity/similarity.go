// Package similarity holds the numeric kernels behind loop scoring: a
// whole-frame SSIM estimate, histogram distance, flow-field reduction and the
// weighted composite score.
package similarity

import "math"

// SSIM stabilizers for 8-bit intensity: (0.01·255)² and (0.03·255)².
const (
	C1 = 6.5025
	C2 = 58.5225
)

// Clamp01 limits v to [0,1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	switch {
	case v != v, v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// GlobalSSIM estimates structural similarity from whole-frame mean, variance
// and covariance of two equally sized intensity buffers. It is a single global
// value, not a windowed map. The result is clamped to [0,1]; mismatched or
// empty buffers score 0.
func GlobalSSIM(a, b []byte) float64 {
	n := len(a)
	if n == 0 || n != len(b) {
		return 0
	}

	var sumA, sumB float64
	for i := 0; i < n; i++ {
		sumA += float64(a[i])
		sumB += float64(b[i])
	}
	meanA := sumA / float64(n)
	meanB := sumB / float64(n)

	var varA, varB, cov float64
	for i := 0; i < n; i++ {
		da := float64(a[i]) - meanA
		db := float64(b[i]) - meanB
		varA += da * da
		varB += db * db
		cov += da * db
	}
	varA /= float64(n)
	varB /= float64(n)
	cov /= float64(n)

	num := (2*meanA*meanB + C1) * (2*cov + C2)
	den := (meanA*meanA + meanB*meanB + C1) * (varA + varB + C2)
	return Clamp01(num / den)
}

// Bhattacharyya returns the Bhattacharyya distance between two histograms in
// [0,1], 0 for identical distributions. It follows the OpenCV HISTCMP_BHATTACHARYYA
// formulation, so histograms need not be normalized.
func Bhattacharyya(h1, h2 []float32) float64 {
	n := len(h1)
	if n == 0 || n != len(h2) {
		return 1
	}

	var s1, s2, bc float64
	for i := 0; i < n; i++ {
		a := float64(h1[i])
		b := float64(h2[i])
		s1 += a
		s2 += b
		bc += math.Sqrt(a * b)
	}
	if s1 <= 0 || s2 <= 0 {
		return 1
	}

	norm := 1 / math.Sqrt(s1*s2)
	return math.Sqrt(math.Max(1-bc*norm, 0))
}

// FlowError reduces an interleaved (dx, dy) flow field over a w×h frame to the
// L2 norm of the field divided by the pixel count.
func FlowError(flow []float32, w, h int) float64 {
	if w <= 0 || h <= 0 {
		return 0
	}
	var sum float64
	for i := 0; i+1 < len(flow); i += 2 {
		dx := float64(flow[i])
		dy := float64(flow[i+1])
		sum += dx*dx + dy*dy
	}
	return math.Sqrt(sum) / float64(w*h)
}

// FlowScore maps a flow error onto [0,1]: 1 - min(1, flowError·scale).
func FlowScore(flowError, scale float64) float64 {
	return 1 - math.Min(1, math.Max(flowError, 0)*scale)
}

// Subscores are the per-pair measurements a candidate carries.
type Subscores struct {
	SSIM           float64 `json:"ssim"`
	HistSimilarity float64 `json:"histSimilarity"`
	FlowError      float64 `json:"flowError"`
}

// Weights are the composite score coefficients.
type Weights struct {
	SSIM      float64
	Hist      float64
	Flow      float64
	FlowScale float64
}

// DefaultWeights returns 0.5/0.3/0.2 with a flow scale of 2.
func DefaultWeights() Weights {
	return Weights{SSIM: 0.5, Hist: 0.3, Flow: 0.2, FlowScale: 2}
}

// Score combines subscores into a composite in [0,1]. Each term is clamped to
// [0,1] before weighting.
func (w Weights) Score(s Subscores) float64 {
	score := w.SSIM*Clamp01(s.SSIM) +
		w.Hist*Clamp01(s.HistSimilarity) +
		w.Flow*Clamp01(FlowScore(s.FlowError, w.FlowScale))
	return Clamp01(score)
}
