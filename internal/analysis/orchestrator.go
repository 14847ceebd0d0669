// Package analysis orchestrates loop discovery for one source video:
// probe, sample, score every bounded pair, then rank.
package analysis

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/five82/seamloop/internal/config"
	"github.com/five82/seamloop/internal/errors"
	"github.com/five82/seamloop/internal/features"
	"github.com/five82/seamloop/internal/ffprobe"
	"github.com/five82/seamloop/internal/rank"
	"github.com/five82/seamloop/internal/reporter"
	"github.com/five82/seamloop/internal/sampler"
	"github.com/five82/seamloop/internal/search"
	"github.com/five82/seamloop/internal/similarity"
	"github.com/five82/seamloop/internal/util"
)

// Stage names reported through StageProgress.
const (
	StageProbe    = "probe"
	StageSampling = "sampling"
	StageScoring  = "scoring"
	StageRanking  = "ranking"
)

// Overall percent at which each stage begins.
const (
	probeStart    = 0
	samplingStart = 5
	scoringStart  = 40
	rankingStart  = 95
)

// Request describes one analysis job.
type Request struct {
	Path string
	// DurationMs overrides the probed duration when positive. It can only
	// shorten a known duration.
	DurationMs float64
	MinLoopMs  float64
	MaxLoopMs  float64
}

// Dimensions is a frame size in pixels.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Result is the outcome of a completed analysis.
type Result struct {
	Candidates      []search.Candidate `json:"candidates"`
	Heatmap         []float64          `json:"heatmap"`
	VideoDimensions Dimensions         `json:"videoDimensions"`
	FrameIntervalMs float64            `json:"frameIntervalMs"`
	DurationMs      float64            `json:"durationMs"`
	Frames          int                `json:"frames"`
	Pairs           int                `json:"pairs"`
	Elapsed         time.Duration      `json:"-"`
}

// Best returns the highest-ranked candidate.
func (r *Result) Best() (search.Candidate, bool) {
	if r == nil || len(r.Candidates) == 0 {
		return search.Candidate{}, false
	}
	return r.Candidates[0], true
}

type probeFunc func(ctx context.Context, path string) (*ffprobe.VideoInfo, error)

type sampleFunc func(ctx context.Context, path string, plan sampler.Plan, arena *features.Arena, opts sampler.Options) (search.Comparator, error)

// Analyzer runs analysis jobs with fixed settings.
type Analyzer struct {
	cfg    config.AnalysisConfig
	logger zerolog.Logger

	probe    probeFunc
	sample   sampleFunc
	newArena func() *features.Arena
}

// New creates an analyzer that decodes frames through source.
func New(source sampler.FrameSource, cfg config.AnalysisConfig, logger zerolog.Logger) *Analyzer {
	s := sampler.New(source, logger)
	return &Analyzer{
		cfg:    cfg,
		logger: logger.With().Str("component", "analysis").Logger(),
		probe:  ffprobe.Probe,
		sample: func(ctx context.Context, path string, plan sampler.Plan, arena *features.Arena, opts sampler.Options) (search.Comparator, error) {
			set, err := s.Sample(ctx, path, plan, arena, opts)
			if err != nil {
				return nil, err
			}
			return set, nil
		},
		newArena: features.NewArena,
	}
}

// Run analyzes req.Path. Progress and results are reported through rep; the
// frame arena is released on every return path.
func (a *Analyzer) Run(ctx context.Context, req Request, rep reporter.Reporter) (*Result, error) {
	if rep == nil {
		rep = reporter.NullReporter{}
	}
	start := time.Now()

	rep.StageProgress(reporter.StageProgress{Stage: StageProbe, Percent: probeStart, Message: "Probing source"})
	info, err := a.probe(ctx, req.Path)
	if err != nil {
		return nil, err
	}

	durationMs := info.DurationMs
	if req.DurationMs > 0 {
		durationMs = req.DurationMs
		if info.DurationMs > 0 && durationMs > info.DurationMs {
			a.logger.Debug().
				Float64("requested_ms", req.DurationMs).
				Float64("probed_ms", info.DurationMs).
				Msg("requested duration exceeds source; using probed duration")
			durationMs = info.DurationMs
		}
	}
	minLoop, maxLoop := a.loopBounds(req, durationMs)

	plan, err := sampler.NewPlan(durationMs, a.cfg.FPS, int(a.cfg.Width), info.Width, info.Height)
	if err != nil {
		return nil, err
	}

	rep.Initialization(reporter.InitializationSummary{
		InputFile:  util.GetFilename(req.Path),
		Duration:   util.FormatMs(durationMs),
		Resolution: fmt.Sprintf("%dx%d", info.Width, info.Height),
		Sampling:   fmt.Sprintf("%d frames at %dfps, %dx%d", plan.Frames, plan.FPS, plan.Width, plan.Height),
		LoopBounds: fmt.Sprintf("%s - %s", util.FormatMs(minLoop), util.FormatMs(maxLoop)),
	})

	rep.Verbose("sampling filter: " + plan.StreamSpec().Filter())

	arena := a.newArena()
	defer func() {
		if err := arena.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to release frame arena")
		}
	}()

	rep.StageProgress(reporter.StageProgress{Stage: StageSampling, Percent: samplingStart, Message: "Extracting frames"})
	lastPct := -1
	cmp, err := a.sample(ctx, req.Path, plan, arena, sampler.Options{
		Bins:        a.cfg.HistBins,
		MemFraction: a.cfg.MemFraction,
		OnFrame: func(done, total int) {
			pct := scale(done, total, samplingStart, scoringStart)
			if int(pct) == lastPct {
				return
			}
			lastPct = int(pct)
			rep.StageProgress(reporter.StageProgress{
				Stage:   StageSampling,
				Percent: pct,
				Message: fmt.Sprintf("Frame %d/%d", done, total),
			})
		},
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelledError()
	}

	minDist, maxDist := search.FrameBounds(minLoop, maxLoop, plan.FPS)
	totalPairs := search.PairCount(cmp.Len(), minDist, maxDist)
	rep.StageProgress(reporter.StageProgress{
		Stage:   StageScoring,
		Percent: scoringStart,
		Message: fmt.Sprintf("Scoring %s frame pairs", util.FormatCount(int64(totalPairs))),
	})

	scoreStart := time.Now()
	lastPct = -1
	res, err := search.Run(ctx, cmp, search.Params{
		FPS:            plan.FPS,
		MinLoopMs:      minLoop,
		MaxLoopMs:      maxLoop,
		PruneThreshold: a.cfg.PruneThreshold,
		Weights:        a.weights(),
		Workers:        a.cfg.Workers,
	}, func(done, total int) {
		pct := scale(done, total, scoringStart, rankingStart)
		if int(pct) == lastPct {
			return
		}
		lastPct = int(pct)
		update := reporter.StageProgress{
			Stage:   StageScoring,
			Percent: pct,
			Message: fmt.Sprintf("Row %d/%d", done, total),
		}
		if elapsed := time.Since(scoreStart); done > 0 {
			eta := time.Duration(float64(elapsed) / float64(done) * float64(total-done))
			update.ETA = &eta
		}
		rep.StageProgress(update)
	})
	if err != nil {
		return nil, err
	}

	rep.StageProgress(reporter.StageProgress{Stage: StageRanking, Percent: rankingStart, Message: "Ranking candidates"})
	kept := rank.Top(res.Candidates, a.cfg.TopK)
	result := &Result{
		Candidates:      kept,
		Heatmap:         rank.Heatmap(kept, durationMs, a.cfg.HeatmapBuckets, a.cfg.HeatmapFiller),
		VideoDimensions: Dimensions{Width: info.Width, Height: info.Height},
		FrameIntervalMs: plan.FrameIntervalMs(),
		DurationMs:      durationMs,
		Frames:          cmp.Len(),
		Pairs:           res.Pairs,
		Elapsed:         time.Since(start),
	}
	if result.Candidates == nil {
		result.Candidates = []search.Candidate{}
	}

	a.logger.Info().
		Str("input", req.Path).
		Int("frames", result.Frames).
		Int("pairs", result.Pairs).
		Int("above_threshold", len(res.Candidates)).
		Int("kept", len(kept)).
		Dur("elapsed", result.Elapsed).
		Msg("analysis complete")

	rep.AnalysisComplete(summarize(req.Path, result))
	return result, nil
}

// loopBounds applies defaults and clamps the longest loop to the source.
func (a *Analyzer) loopBounds(req Request, durationMs float64) (float64, float64) {
	minLoop := req.MinLoopMs
	if minLoop <= 0 {
		minLoop = a.cfg.MinLoopMs
	}
	maxLoop := req.MaxLoopMs
	if maxLoop <= 0 {
		maxLoop = a.cfg.MaxLoopMs
	}
	return minLoop, math.Min(maxLoop, durationMs)
}

func (a *Analyzer) weights() similarity.Weights {
	return similarity.Weights{
		SSIM:      a.cfg.WeightSSIM,
		Hist:      a.cfg.WeightHist,
		Flow:      a.cfg.WeightFlow,
		FlowScale: a.cfg.FlowScale,
	}
}

// scale maps done/total onto [from, to].
func scale(done, total int, from, to float64) float64 {
	if total <= 0 {
		return to
	}
	return from + (to-from)*float64(done)/float64(total)
}

func summarize(path string, r *Result) reporter.AnalysisSummary {
	rows := make([]reporter.CandidateRow, len(r.Candidates))
	for i, c := range r.Candidates {
		rows[i] = reporter.CandidateRow{
			Rank:    i + 1,
			StartMs: c.StartMs,
			EndMs:   c.EndMs,
			Score:   c.Score,
		}
	}
	return reporter.AnalysisSummary{
		InputFile:  util.GetFilename(path),
		Candidates: rows,
		Frames:     r.Frames,
		Pairs:      r.Pairs,
		Elapsed:    r.Elapsed,
	}
}
