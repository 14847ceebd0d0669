package analysis

import (
	"context"
	"math"
	"testing"

	"github.com/five82/seamloop/internal/config"
	"github.com/five82/seamloop/internal/errors"
	"github.com/five82/seamloop/internal/features"
	"github.com/five82/seamloop/internal/ffprobe"
	"github.com/five82/seamloop/internal/logging"
	"github.com/five82/seamloop/internal/reporter"
	"github.com/five82/seamloop/internal/sampler"
	"github.com/five82/seamloop/internal/search"
	"github.com/five82/seamloop/internal/similarity"
)

// periodic scores frames identical when their distance is a multiple of period.
type periodic struct {
	n      int
	period int
}

func (p periodic) Len() int { return p.n }

func (p periodic) Compare(i, j int) (similarity.Subscores, error) {
	if (j-i)%p.period == 0 {
		return similarity.Subscores{SSIM: 1, HistSimilarity: 1, FlowError: 0}, nil
	}
	return similarity.Subscores{SSIM: 0.2, HistSimilarity: 0.3, FlowError: 1}, nil
}

type recorder struct {
	reporter.NullReporter
	percents []float64
	summary  *reporter.AnalysisSummary
	verbose  []string
}

func (r *recorder) Verbose(m string) { r.verbose = append(r.verbose, m) }

func (r *recorder) StageProgress(u reporter.StageProgress) {
	r.percents = append(r.percents, u.Percent)
}

func (r *recorder) AnalysisComplete(s reporter.AnalysisSummary) {
	r.summary = &s
}

type harness struct {
	analyzer *Analyzer
	arena    *features.Arena
	sampled  bool
	plan     sampler.Plan
}

func newHarness(t *testing.T, info ffprobe.VideoInfo, sampleErr error) *harness {
	t.Helper()
	cfg := config.NewConfig().Analysis
	cfg.Workers = 4

	h := &harness{}
	a := New(nil, cfg, logging.Nop())
	a.probe = func(ctx context.Context, path string) (*ffprobe.VideoInfo, error) {
		v := info
		return &v, nil
	}
	a.newArena = func() *features.Arena {
		h.arena = features.NewArena()
		return h.arena
	}
	a.sample = func(ctx context.Context, path string, plan sampler.Plan, arena *features.Arena, opts sampler.Options) (search.Comparator, error) {
		h.sampled = true
		h.plan = plan
		if sampleErr != nil {
			return nil, sampleErr
		}
		for i := 1; i <= plan.Frames; i++ {
			opts.OnFrame(i, plan.Frames)
		}
		return periodic{n: plan.Frames, period: 36}, nil
	}
	h.analyzer = a
	return h
}

var tenSeconds = ffprobe.VideoInfo{Width: 1280, Height: 720, DurationMs: 10000, FrameRate: 30}

func TestRun_PeriodicSource(t *testing.T) {
	h := newHarness(t, tenSeconds, nil)
	rec := &recorder{}

	res, err := h.analyzer.Run(context.Background(), Request{Path: "clip.mp4"}, rec)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.Frames != 120 {
		t.Errorf("Frames = %d, want 120", res.Frames)
	}
	if res.Pairs != 4953 {
		t.Errorf("Pairs = %d, want 4953", res.Pairs)
	}
	if len(rec.verbose) != 1 || rec.verbose[0] != "sampling filter: fps=12,scale=320:180,tpad=stop_mode=clone:stop=-1" {
		t.Errorf("verbose = %q", rec.verbose)
	}
	if len(res.Candidates) != 10 {
		t.Fatalf("kept %d candidates, want 10", len(res.Candidates))
	}
	best, ok := res.Best()
	if !ok || best.StartMs != 0 || math.Abs(best.EndMs-3000) > 1e-6 || best.Score < 1-1e-9 {
		t.Errorf("Best() = %+v", best)
	}
	for _, c := range res.Candidates {
		if d := c.DurationMs(); d < 1500-1e-6 || d > 8000+1e-6 {
			t.Errorf("candidate %+v outside loop bounds", c)
		}
	}
	if res.VideoDimensions != (Dimensions{Width: 1280, Height: 720}) {
		t.Errorf("VideoDimensions = %+v", res.VideoDimensions)
	}
	if math.Abs(res.FrameIntervalMs-1000.0/12) > 1e-9 {
		t.Errorf("FrameIntervalMs = %v", res.FrameIntervalMs)
	}
	if len(res.Heatmap) != 100 {
		t.Errorf("heatmap has %d buckets, want 100", len(res.Heatmap))
	}
	if h.plan.Width != 320 || h.plan.Height != 180 {
		t.Errorf("sampling plan %dx%d, want 320x180", h.plan.Width, h.plan.Height)
	}
	if !h.arena.Closed() {
		t.Error("arena not released after success")
	}
	if rec.summary == nil || len(rec.summary.Candidates) != 10 || rec.summary.Candidates[0].Rank != 1 {
		t.Errorf("summary not reported: %+v", rec.summary)
	}
}

func TestRun_ProgressIsMonotonic(t *testing.T) {
	h := newHarness(t, tenSeconds, nil)
	rec := &recorder{}

	if _, err := h.analyzer.Run(context.Background(), Request{Path: "clip.mp4"}, rec); err != nil {
		t.Fatal(err)
	}
	if len(rec.percents) < 4 {
		t.Fatalf("expected checkpoints for every stage, got %v", rec.percents)
	}
	for i := 1; i < len(rec.percents); i++ {
		if rec.percents[i] < rec.percents[i-1] {
			t.Fatalf("progress went backwards: %v", rec.percents)
		}
	}
	if last := rec.percents[len(rec.percents)-1]; last > 100 {
		t.Errorf("progress above 100: %v", last)
	}
}

func TestRun_MaxLoopClampedToDuration(t *testing.T) {
	info := tenSeconds
	info.DurationMs = 5000
	h := newHarness(t, info, nil)

	res, err := h.analyzer.Run(context.Background(), Request{Path: "short.mp4", MaxLoopMs: 8000}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if want := search.PairCount(60, 18, 60); res.Pairs != want {
		t.Errorf("Pairs = %d, want %d", res.Pairs, want)
	}
	for _, c := range res.Candidates {
		if c.DurationMs() > 5000 {
			t.Errorf("candidate %+v longer than source", c)
		}
	}
}

func TestRun_RequestDurationOverridesProbe(t *testing.T) {
	h := newHarness(t, tenSeconds, nil)

	res, err := h.analyzer.Run(context.Background(), Request{Path: "clip.mp4", DurationMs: 4000}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Frames != 48 || res.DurationMs != 4000 {
		t.Errorf("Frames = %d DurationMs = %v, want 48 and 4000", res.Frames, res.DurationMs)
	}
}

func TestRun_RequestDurationClampedToSource(t *testing.T) {
	info := tenSeconds
	info.DurationMs = 3000
	h := newHarness(t, info, nil)

	res, err := h.analyzer.Run(context.Background(), Request{Path: "clip.mp4", DurationMs: 9000}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if h.plan.Frames != 36 || res.Frames != 36 {
		t.Errorf("sampled %d frames (result %d), want 36", h.plan.Frames, res.Frames)
	}
	if res.DurationMs != 3000 {
		t.Errorf("DurationMs = %v, want 3000", res.DurationMs)
	}
	for _, c := range res.Candidates {
		if c.EndMs > 3000 {
			t.Errorf("candidate %+v ends past the source", c)
		}
	}
}

func TestRun_SourceShorterThanMinLoop(t *testing.T) {
	info := tenSeconds
	info.DurationMs = 1000
	h := newHarness(t, info, nil)

	res, err := h.analyzer.Run(context.Background(), Request{Path: "blip.mp4"}, nil)
	if err != nil {
		t.Fatalf("short source should yield an empty result, got %v", err)
	}
	if len(res.Candidates) != 0 || res.Candidates == nil {
		t.Errorf("expected empty non-nil candidates, got %v", res.Candidates)
	}
	for _, v := range res.Heatmap {
		if v != config.DefaultHeatmapFiller {
			t.Fatalf("empty result heatmap should be filler, got %v", v)
		}
	}
}

func TestRun_SampleErrorReleasesArena(t *testing.T) {
	h := newHarness(t, tenSeconds, errors.NewDecodeError("truncated stream", nil))

	_, err := h.analyzer.Run(context.Background(), Request{Path: "bad.mp4"}, nil)
	if !errors.IsKind(err, errors.KindDecode) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if !h.arena.Closed() {
		t.Error("arena not released after sampling failure")
	}
}

func TestRun_ProbeErrorSkipsSampling(t *testing.T) {
	h := newHarness(t, tenSeconds, nil)
	h.analyzer.probe = func(ctx context.Context, path string) (*ffprobe.VideoInfo, error) {
		return nil, errors.NewDecodeError("no video stream", nil)
	}

	if _, err := h.analyzer.Run(context.Background(), Request{Path: "audio.m4a"}, nil); !errors.IsKind(err, errors.KindDecode) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if h.sampled {
		t.Error("sampler ran after probe failure")
	}
}

func TestRun_Cancelled(t *testing.T) {
	h := newHarness(t, tenSeconds, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.analyzer.Run(ctx, Request{Path: "clip.mp4"}, nil)
	if !errors.IsCancelled(err) {
		t.Fatalf("expected cancelled error, got %v", err)
	}
	if !h.arena.Closed() {
		t.Error("arena not released after cancellation")
	}
}
