package search

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/five82/seamloop/internal/errors"
	"github.com/five82/seamloop/internal/similarity"
)

// funcComparator scores pairs with a function over frame indices.
type funcComparator struct {
	n     int
	fn    func(i, j int) (similarity.Subscores, error)
	calls atomic.Int64
}

func (c *funcComparator) Len() int { return c.n }

func (c *funcComparator) Compare(i, j int) (similarity.Subscores, error) {
	c.calls.Add(1)
	return c.fn(i, j)
}

func defaultParams() Params {
	return Params{
		FPS:            12,
		MinLoopMs:      1500,
		MaxLoopMs:      8000,
		PruneThreshold: 0.6,
		Weights:        similarity.DefaultWeights(),
		Workers:        4,
	}
}

// periodic scores pairs whose distance is a multiple of 24 frames as
// near-identical and everything else as poor.
func periodic(i, j int) (similarity.Subscores, error) {
	if (j-i)%24 == 0 {
		return similarity.Subscores{SSIM: 0.95 - float64(i)/1000, HistSimilarity: 0.9, FlowError: 0.01}, nil
	}
	return similarity.Subscores{SSIM: 0.3, HistSimilarity: 0.4, FlowError: 0.8}, nil
}

func TestFrameBounds(t *testing.T) {
	minDist, maxDist := FrameBounds(1500, 8000, 12)
	if minDist != 18 || maxDist != 96 {
		t.Errorf("FrameBounds() = %d, %d; want 18, 96", minDist, maxDist)
	}
}

func TestRun_TenSecondScenario(t *testing.T) {
	cmp := &funcComparator{n: 120, fn: periodic}
	p := defaultParams()

	res, err := Run(context.Background(), cmp, p, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.MinDist != 18 || res.MaxDist != 96 {
		t.Errorf("bounds = %d/%d, want 18/96", res.MinDist, res.MaxDist)
	}
	if res.Pairs > (120-18)*78 {
		t.Errorf("evaluated %d pairs, more than %d", res.Pairs, (120-18)*78)
	}
	if res.Pairs != PairCount(120, 18, 96) || int(cmp.calls.Load()) != res.Pairs {
		t.Errorf("pairs = %d, calls = %d, PairCount = %d", res.Pairs, cmp.calls.Load(), PairCount(120, 18, 96))
	}
	if len(res.Candidates) == 0 {
		t.Fatal("expected candidates from periodic source")
	}

	for k, c := range res.Candidates {
		if d := c.DurationMs(); d < p.MinLoopMs-1e-6 || d > p.MaxLoopMs+1e-6 {
			t.Errorf("candidate %d duration %v outside [%v,%v]", k, d, p.MinLoopMs, p.MaxLoopMs)
		}
		if c.Score < 0 || c.Score > 1 {
			t.Errorf("candidate %d score %v out of range", k, c.Score)
		}
		if c.Score <= p.PruneThreshold {
			t.Errorf("candidate %d score %v not above threshold", k, c.Score)
		}
		if k > 0 && c.Score > res.Candidates[k-1].Score {
			t.Errorf("candidates not sorted at %d", k)
		}
	}
}

func TestRun_BoundsNotAlignedToFrames(t *testing.T) {
	// 1550ms is 18.6 frames at 12fps; an 18-frame (1500ms) loop must not pass.
	p := defaultParams()
	p.MinLoopMs = 1550
	p.PruneThreshold = 0

	cmp := &funcComparator{n: 60, fn: func(i, j int) (similarity.Subscores, error) {
		return similarity.Subscores{SSIM: 1, HistSimilarity: 1}, nil
	}}
	res, err := Run(context.Background(), cmp, p, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, c := range res.Candidates {
		if c.DurationMs() < p.MinLoopMs-1e-6 {
			t.Fatalf("candidate %+v shorter than %v", c, p.MinLoopMs)
		}
	}
}

func TestRun_EmptyResult(t *testing.T) {
	cmp := &funcComparator{n: 120, fn: func(i, j int) (similarity.Subscores, error) {
		return similarity.Subscores{SSIM: 0.1, HistSimilarity: 0.1, FlowError: 1}, nil
	}}

	res, err := Run(context.Background(), cmp, defaultParams(), nil)
	if err != nil {
		t.Fatalf("Run() error = %v, want nil for empty result", err)
	}
	if len(res.Candidates) != 0 {
		t.Errorf("expected no candidates, got %d", len(res.Candidates))
	}
}

func TestRun_IdentityScoresOne(t *testing.T) {
	cmp := &funcComparator{n: 48, fn: func(i, j int) (similarity.Subscores, error) {
		if i == 2 && j == 30 {
			return similarity.Subscores{SSIM: 1, HistSimilarity: 1, FlowError: 0}, nil
		}
		return similarity.Subscores{SSIM: 0.7, HistSimilarity: 0.7, FlowError: 0.1}, nil
	}}

	res, err := Run(context.Background(), cmp, defaultParams(), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	top := res.Candidates[0]
	if top.StartFrame != 2 || top.EndFrame != 30 || math.Abs(top.Score-1) > 1e-12 {
		t.Errorf("top candidate = %+v, want (2,30) with score 1", top)
	}
}

func TestRun_SourceShorterThanMinLoop(t *testing.T) {
	cmp := &funcComparator{n: 10, fn: periodic}
	res, err := Run(context.Background(), cmp, defaultParams(), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.Candidates) != 0 || res.Pairs != 0 || cmp.calls.Load() != 0 {
		t.Errorf("expected no work, got %+v", res)
	}
}

func TestRun_DeterministicAcrossWorkers(t *testing.T) {
	var results [][]Candidate
	for _, workers := range []int{1, 3, 16} {
		p := defaultParams()
		p.Workers = workers
		res, err := Run(context.Background(), &funcComparator{n: 120, fn: periodic}, p, nil)
		if err != nil {
			t.Fatal(err)
		}
		results = append(results, res.Candidates)
	}
	for k := 1; k < len(results); k++ {
		if !reflect.DeepEqual(results[0], results[k]) {
			t.Errorf("result %d differs from single-worker result", k)
		}
	}
}

func TestRun_Progress(t *testing.T) {
	var seen []int
	total := 0
	_, err := Run(context.Background(), &funcComparator{n: 120, fn: periodic}, defaultParams(), func(done, tot int) {
		seen = append(seen, done)
		total = tot
	})
	if err != nil {
		t.Fatal(err)
	}

	if total != 120-18 || len(seen) != total {
		t.Fatalf("progress calls = %d, total = %d", len(seen), total)
	}
	for k := 1; k < len(seen); k++ {
		if seen[k] <= seen[k-1] {
			t.Fatalf("progress not increasing at %d: %v", k, seen[k-1:k+1])
		}
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cmp := &funcComparator{n: 120}
	cmp.fn = func(i, j int) (similarity.Subscores, error) {
		if cmp.calls.Load() >= 50 {
			cancel()
		}
		return periodic(i, j)
	}

	_, err := Run(ctx, cmp, defaultParams(), nil)
	if !errors.IsCancelled(err) {
		t.Fatalf("expected cancelled error, got %v", err)
	}
	if calls := cmp.calls.Load(); calls >= int64(PairCount(120, 18, 96)) {
		t.Errorf("cancellation did not bound work: %d calls", calls)
	}
}

func TestRun_ComparatorError(t *testing.T) {
	cmp := &funcComparator{n: 120, fn: func(i, j int) (similarity.Subscores, error) {
		if i == 7 {
			return similarity.Subscores{}, errors.NewAnalysisError(fmt.Sprintf("flow (%d,%d)", i, j), nil)
		}
		return periodic(i, j)
	}}

	_, err := Run(context.Background(), cmp, defaultParams(), nil)
	if !errors.IsKind(err, errors.KindAnalysis) {
		t.Errorf("expected analysis error, got %v", err)
	}
}

func TestRun_MaxDistIsExclusive(t *testing.T) {
	cmp := &funcComparator{n: 120, fn: func(i, j int) (similarity.Subscores, error) {
		return similarity.Subscores{SSIM: 1, HistSimilarity: 1}, nil
	}}

	res, err := Run(context.Background(), cmp, defaultParams(), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	longest := 0
	for _, c := range res.Candidates {
		longest = max(longest, c.EndFrame-c.StartFrame)
		if c.EndFrame-c.StartFrame < res.MinDist {
			t.Errorf("pair (%d,%d) shorter than minDist %d", c.StartFrame, c.EndFrame, res.MinDist)
		}
	}
	if longest != res.MaxDist-1 {
		t.Errorf("longest pair distance = %d, want %d", longest, res.MaxDist-1)
	}
	if len(res.Candidates) != PairCount(120, 18, 96) {
		t.Errorf("kept %d candidates, want %d", len(res.Candidates), PairCount(120, 18, 96))
	}
}

func TestPairCount(t *testing.T) {
	// Rows 0..24 are full (78 pairs); rows 25..101 shrink to 1.
	if got := PairCount(120, 18, 96); got != 25*78+77*78/2 {
		t.Errorf("PairCount() = %d, want %d", got, 25*78+77*78/2)
	}
	if got := PairCount(120, 18, 96); got != 4953 {
		t.Errorf("PairCount() = %d, want 4953", got)
	}
	if got := PairCount(10, 18, 96); got != 0 {
		t.Errorf("PairCount(short) = %d, want 0", got)
	}
}
