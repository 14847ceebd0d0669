// Package search scans frame pairs within a bounded offset window and scores
// each pair's loopability.
package search

import (
	"context"
	"math"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/five82/seamloop/internal/errors"
	"github.com/five82/seamloop/internal/similarity"
)

// Candidate is a scored loop from StartMs to EndMs.
type Candidate struct {
	StartMs    float64              `json:"startMs"`
	EndMs      float64              `json:"endMs"`
	Score      float64              `json:"score"`
	StartFrame int                  `json:"startFrame"`
	EndFrame   int                  `json:"endFrame"`
	Subscores  similarity.Subscores `json:"subscores"`
}

// DurationMs returns the loop length.
func (c Candidate) DurationMs() float64 {
	return c.EndMs - c.StartMs
}

// Comparator measures the similarity of two frames by index.
// *features.FeatureSet implements it.
type Comparator interface {
	Len() int
	Compare(i, j int) (similarity.Subscores, error)
}

// Params bounds and scores the search.
type Params struct {
	FPS            uint32
	MinLoopMs      float64
	MaxLoopMs      float64
	PruneThreshold float64
	Weights        similarity.Weights
	Workers        int
}

// ProgressFunc receives the number of completed rows out of total. Calls are
// serialized and done is strictly increasing.
type ProgressFunc func(done, total int)

// Result is the output of a scan: candidates in score-descending order plus
// pair bookkeeping.
type Result struct {
	Candidates []Candidate
	Pairs      int
	MinDist    int
	MaxDist    int
}

// FrameBounds converts loop-length bounds to frame-distance bounds at fps.
func FrameBounds(minMs, maxMs float64, fps uint32) (minDist, maxDist int) {
	minDist = int(math.Floor(minMs * float64(fps) / 1000))
	maxDist = int(math.Floor(maxMs * float64(fps) / 1000))
	return max(minDist, 1), maxDist
}

// PairCount returns how many (i, j) pairs Run visits for n frames.
func PairCount(n, minDist, maxDist int) int {
	total := 0
	for i := 0; i < n-minDist; i++ {
		total += rowWidth(i, n, minDist, maxDist)
	}
	return total
}

// rowHi is the last j visited for row i; the upper bound is exclusive.
func rowHi(i, n, maxDist int) int {
	return min(i+maxDist, n) - 1
}

func rowWidth(i, n, minDist, maxDist int) int {
	hi := rowHi(i, n, maxDist)
	return max(hi-(i+minDist)+1, 0)
}

// Run scores every pair i < N-minDist, i+minDist ≤ j < min(i+maxDist, N),
// keeping pairs whose loop length lies within the ms bounds and whose score
// exceeds the prune threshold. Rows run in parallel; cancellation is checked
// before every pair. The result is stably sorted by score descending.
func Run(ctx context.Context, cmp Comparator, p Params, onProgress ProgressFunc) (*Result, error) {
	n := cmp.Len()
	minDist, maxDist := FrameBounds(p.MinLoopMs, p.MaxLoopMs, p.FPS)
	res := &Result{MinDist: minDist, MaxDist: maxDist}

	rows := n - minDist
	if rows <= 0 || maxDist < minDist {
		return res, nil
	}

	perRow := make([][]Candidate, rows)
	pairs := make([]int, rows)

	var progressMu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.Workers, 1))

	for i := 0; i < rows; i++ {
		i := i
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			found, visited, err := scanRow(gctx, cmp, p, i, n, minDist, maxDist)
			if err != nil {
				return err
			}
			perRow[i] = found
			pairs[i] = visited

			if onProgress != nil {
				progressMu.Lock()
				done++
				onProgress(done, rows)
				progressMu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewCancelledError()
		}
		if _, ok := errors.KindOf(err); ok {
			return nil, err
		}
		return nil, errors.NewAnalysisError("candidate search failed", err)
	}

	for i := range perRow {
		res.Candidates = append(res.Candidates, perRow[i]...)
		res.Pairs += pairs[i]
	}
	sort.SliceStable(res.Candidates, func(a, b int) bool {
		return res.Candidates[a].Score > res.Candidates[b].Score
	})
	return res, nil
}

func scanRow(ctx context.Context, cmp Comparator, p Params, i, n, minDist, maxDist int) ([]Candidate, int, error) {
	var found []Candidate
	visited := 0
	fps := float64(p.FPS)
	hi := rowHi(i, n, maxDist)

	for j := i + minDist; j <= hi; j++ {
		if err := ctx.Err(); err != nil {
			return nil, visited, err
		}

		startMs := float64(i) * 1000 / fps
		endMs := float64(j) * 1000 / fps
		if d := float64(j-i) * 1000 / fps; d < p.MinLoopMs-1e-9 || d > p.MaxLoopMs+1e-9 {
			continue
		}

		sub, err := cmp.Compare(i, j)
		if err != nil {
			return nil, visited, err
		}
		visited++

		sub.SSIM = similarity.Clamp01(sub.SSIM)
		sub.HistSimilarity = similarity.Clamp01(sub.HistSimilarity)
		score := p.Weights.Score(sub)
		if score > p.PruneThreshold {
			found = append(found, Candidate{
				StartMs:    startMs,
				EndMs:      endMs,
				Score:      score,
				StartFrame: i,
				EndFrame:   j,
				Subscores:  sub,
			})
		}
	}
	return found, visited, nil
}
