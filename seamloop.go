// Package seamloop finds seamless loop points in short videos and renders
// the chosen loop with a smoothed seam.
//
// Basic usage:
//
//	client, err := seamloop.New(
//	    seamloop.WithPreset(seamloop.PresetBalanced),
//	    seamloop.WithLoopBounds(1500, 6000),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := client.Analyze(ctx, "clip.mp4", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	best, _ := result.Best()
//	loop, err := client.Render(ctx, "clip.mp4", best, client.RenderOptions(), nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("loop.mp4", loop.Buffer, 0o644)
package seamloop

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/five82/seamloop/internal/analysis"
	"github.com/five82/seamloop/internal/config"
	"github.com/five82/seamloop/internal/ffmpeg"
	"github.com/five82/seamloop/internal/ffprobe"
	"github.com/five82/seamloop/internal/jobs"
	"github.com/five82/seamloop/internal/render"
	"github.com/five82/seamloop/internal/reporter"
	"github.com/five82/seamloop/internal/search"
	"github.com/five82/seamloop/internal/seam"
	"github.com/five82/seamloop/internal/util"
	"github.com/five82/seamloop/internal/validation"
)

// Re-exported types.
type (
	Preset         = config.Preset
	Candidate      = search.Candidate
	AnalysisResult = analysis.Result
	RenderResult   = render.Result
	RenderOptions  = seam.Options
	Mode           = seam.Mode
	Format         = seam.Format
	Resolution     = seam.Resolution
	Reporter       = reporter.Reporter
)

const (
	PresetQuick    = config.PresetQuick
	PresetBalanced = config.PresetBalanced
	PresetThorough = config.PresetThorough

	ModeCut       = seam.ModeCut
	ModeCrossfade = seam.ModeCrossfade
	ModePingPong  = seam.ModePingPong
	ModeFlowMorph = seam.ModeFlowMorph

	FormatMP4  = seam.FormatMP4
	FormatWebM = seam.FormatWebM
	FormatGIF  = seam.FormatGIF
)

// ParsePreset converts a preset string to a Preset value.
// Valid values are "quick", "balanced" and "thorough" (case-insensitive).
func ParsePreset(s string) (Preset, error) {
	return config.ParsePreset(s)
}

// ParseMode converts a render mode name.
func ParseMode(s string) (Mode, error) {
	return seam.ParseMode(s)
}

// ParseFormat converts an output format name.
func ParseFormat(s string) (Format, error) {
	return seam.ParseFormat(s)
}

// Client runs analyses and renders.
type Client struct {
	config   *config.Config
	logger   zerolog.Logger
	engines  jobs.EngineFactory
	validate validation.Prober
}

// Option configures the client.
type Option func(*Client)

// New creates a Client with the given options.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		config: config.NewConfig(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.config.Validate(); err != nil {
		return nil, err
	}
	if c.engines == nil {
		c.engines = jobs.FFmpegEngines(c.logger, c.config.Threads)
	}
	return c, nil
}

// WithConfig replaces the whole configuration, e.g. one read by config.Load.
// Options after it still apply.
func WithConfig(cfg *config.Config) Option {
	return func(c *Client) {
		cp := *cfg
		c.config = &cp
	}
}

// WithPreset applies an analysis preset.
func WithPreset(p Preset) Option {
	return func(c *Client) {
		c.config.ApplyPreset(p)
	}
}

// WithLoopBounds sets the shortest and longest loop considered.
func WithLoopBounds(minMs, maxMs float64) Option {
	return func(c *Client) {
		c.config.Analysis.MinLoopMs = minMs
		c.config.Analysis.MaxLoopMs = maxMs
	}
}

// WithTopK sets how many candidates are kept.
func WithTopK(k int) Option {
	return func(c *Client) {
		c.config.Analysis.TopK = k
	}
}

// WithWeights sets the composite score weights. They must sum to 1.
// A zero flow weight gives the two-term SSIM/histogram score.
func WithWeights(ssim, hist, flow float64) Option {
	return func(c *Client) {
		c.config.Analysis.WeightSSIM = ssim
		c.config.Analysis.WeightHist = hist
		c.config.Analysis.WeightFlow = flow
	}
}

// WithCrossfade sets the default seam transition length.
func WithCrossfade(ms float64) Option {
	return func(c *Client) {
		c.config.Render.CrossfadeMs = ms
	}
}

// WithTempDir sets where render scratch files go.
func WithTempDir(dir string) Option {
	return func(c *Client) {
		c.config.TempDir = dir
	}
}

// WithValidation probes every rendered loop with ffprobe and fails renders
// whose codec, duration, size or audio do not match the plan.
func WithValidation() Option {
	return func(c *Client) {
		c.validate = ffprobe.Probe
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// Config returns a copy of the effective configuration.
func (c *Client) Config() config.Config {
	return *c.config
}

// RenderOptions returns the configured render defaults: crossfade to mp4.
func (c *Client) RenderOptions() RenderOptions {
	return seam.OptionsFromConfig(c.config.Render)
}

// Analyze ranks loop candidates in input. A nil reporter discards events.
func (c *Client) Analyze(ctx context.Context, input string, rep Reporter) (*AnalysisResult, error) {
	eng, err := c.engines()
	if err != nil {
		return nil, err
	}
	defer func() { _ = eng.Close() }()

	return analysis.New(eng, c.config.Analysis, c.logger).Run(ctx, analysis.Request{Path: input}, rep)
}

// Render encodes candidate from input. The plan is validated before any
// engine is started. A nil reporter discards events.
func (c *Client) Render(ctx context.Context, input string, candidate Candidate, opts RenderOptions, rep Reporter) (*RenderResult, error) {
	if rep == nil {
		rep = reporter.NullReporter{}
	}

	plan, err := seam.NewPlan(candidate, opts)
	if err != nil {
		return nil, err
	}

	eng, err := c.engines()
	if err != nil {
		return nil, err
	}
	defer func() { _ = eng.Close() }()

	rep.RenderConfig(RenderSummary(plan))
	rep.Verbose("filter_complex: " + plan.FilterComplex())
	rep.RenderStarted()

	r := render.New(eng, c.config.GetTempDir(), c.logger)
	if c.validate != nil {
		r.WithValidation(c.validate)
	}

	start := time.Now()
	res, err := r.Render(ctx, input, plan, func(pct float64) {
		rep.RenderProgress(reporter.ProgressSnapshot{Percent: pct, ETA: eta(start, pct)})
	})
	if err != nil {
		return nil, err
	}

	rep.RenderComplete(reporter.RenderOutcome{
		InputFile:  util.GetFilename(input),
		Size:       uint64(len(res.Buffer)),
		DurationMs: res.DurationMs,
		MimeType:   res.MimeType,
		TotalTime:  time.Since(start),
	})
	return res, nil
}

// RenderSummary describes plan for reporters.
func RenderSummary(plan *seam.Plan) reporter.RenderConfigSummary {
	s := reporter.RenderConfigSummary{
		Mode:    string(plan.Options.Mode),
		Format:  string(plan.Options.Format),
		Loop:    fmt.Sprintf("%s - %s", util.FormatMs(plan.Candidate.StartMs), util.FormatMs(plan.Candidate.EndMs)),
		Encoder: plan.Encoder(),
		Quality: plan.Quality(),
		Filter:  plan.FilterComplex(),
	}
	if plan.Options.Mode == seam.ModeCrossfade || plan.Options.Mode == seam.ModeFlowMorph {
		s.Crossfade = util.FormatMs(plan.Options.CrossfadeMs)
	}
	return s
}

func eta(start time.Time, pct float64) time.Duration {
	if pct <= 0 {
		return 0
	}
	elapsed := time.Since(start)
	return time.Duration(float64(elapsed) * (100 - pct) / pct)
}

var _ jobs.Engine = (*ffmpeg.Executor)(nil)
