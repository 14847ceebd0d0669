// Package render executes seam plans through the transcoding engine and
// returns the encoded clip in memory.
package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	coreerrors "github.com/five82/seamloop/internal/errors"
	"github.com/five82/seamloop/internal/ffmpeg"
	"github.com/five82/seamloop/internal/search"
	"github.com/five82/seamloop/internal/seam"
	"github.com/five82/seamloop/internal/util"
	"github.com/five82/seamloop/internal/validation"
)

// TempPrefix names the per-render scratch directories.
const TempPrefix = "seamloop_render"

// Executor runs one ffmpeg invocation. *ffmpeg.Executor satisfies it.
type Executor interface {
	Run(ctx context.Context, args []string, durationSecs float64, cb ffmpeg.ProgressCallback) error
}

// ProgressFunc receives render completion in percent.
type ProgressFunc func(percent float64)

// Result is an encoded loop clip.
type Result struct {
	Buffer     []byte
	MimeType   string
	DurationMs float64
	// Validation is set when the renderer validates output.
	Validation *validation.Result
}

// Renderer renders plans into job-scoped temp directories.
type Renderer struct {
	exec    Executor
	logger  zerolog.Logger
	tempDir string
	probe   validation.Prober
}

// New creates a renderer writing intermediates under tempDir.
func New(exec Executor, tempDir string, logger zerolog.Logger) *Renderer {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Renderer{
		exec:    exec,
		logger:  logger.With().Str("component", "render").Logger(),
		tempDir: tempDir,
	}
}

// WithValidation probes every rendered loop with probe and rejects output
// that does not match its plan.
func (r *Renderer) WithValidation(probe validation.Prober) *Renderer {
	r.probe = probe
	return r
}

// RenderCandidate plans and renders c. Configuration errors are returned
// before the engine is touched.
func (r *Renderer) RenderCandidate(ctx context.Context, source string, c search.Candidate, opts seam.Options, onProgress ProgressFunc) (*Result, error) {
	plan, err := seam.NewPlan(c, opts)
	if err != nil {
		return nil, err
	}
	return r.Render(ctx, source, plan, onProgress)
}

// Render runs plan against source. Engine failures become EncodeErrors;
// there is no fallback to a simpler mode.
func (r *Renderer) Render(ctx context.Context, source string, plan *seam.Plan, onProgress ProgressFunc) (*Result, error) {
	if plan == nil {
		return nil, coreerrors.NewRenderConfigError("no render plan")
	}
	if err := ctx.Err(); err != nil {
		return nil, coreerrors.NewCancelledError()
	}

	if err := util.EnsureDirectoryWritable(r.tempDir); err != nil {
		return nil, coreerrors.NewIOError(fmt.Sprintf("render temp dir %s is unusable", r.tempDir), err)
	}
	util.CheckDiskSpace(r.tempDir, func(format string, args ...any) {
		r.logger.Warn().Msgf(format, args...)
	})

	dir, err := util.CreateTempDir(r.tempDir, TempPrefix)
	if err != nil {
		return nil, coreerrors.NewIOError("failed to create render directory", err)
	}
	defer func() {
		if err := dir.Cleanup(); err != nil {
			r.logger.Warn().Err(err).Str("dir", dir.Path()).Msg("failed to remove render directory")
		}
	}()

	output := filepath.Join(dir.Path(), "loop"+plan.Extension())
	expected := plan.ExpectedDurationMs()
	r.logger.Info().
		Str("plan", plan.String()).
		Float64("expected_ms", expected).
		Msg("rendering loop")

	var last float64
	err = r.exec.Run(ctx, plan.Args(source, output), expected/1000, func(p ffmpeg.Progress) {
		if onProgress == nil || p.Percent <= last {
			return
		}
		last = min(p.Percent, 100)
		onProgress(last)
	})
	if err != nil {
		if coreerrors.IsCancelled(err) {
			return nil, err
		}
		return nil, coreerrors.NewEncodeError(fmt.Sprintf("%s render failed", plan.Options.Mode), err)
	}

	buf, err := os.ReadFile(output)
	if err != nil {
		return nil, coreerrors.NewEncodeError("render produced no output", err)
	}
	if len(buf) == 0 {
		return nil, coreerrors.NewEncodeError("render produced an empty file", nil)
	}

	res := &Result{Buffer: buf, MimeType: plan.MimeType(), DurationMs: expected}
	if r.probe != nil {
		v, err := validation.ValidateLoop(ctx, r.probe, output, Expectation(plan))
		if err != nil {
			return nil, coreerrors.NewEncodeError("cannot validate rendered loop", err)
		}
		for _, step := range v.Steps {
			r.logger.Debug().Str("check", step.Name).Bool("passed", step.Passed).Msg(step.Details)
		}
		if !v.IsValid() {
			return nil, coreerrors.NewEncodeError("rendered loop failed validation: "+v.String(), nil)
		}
		res.Validation = v
	}

	r.logger.Info().
		Str("size", util.FormatBytes(uint64(len(buf)))).
		Str("mime", plan.MimeType()).
		Msg("render complete")

	return res, nil
}

// Expectation derives the checks a plan's output must pass.
func Expectation(plan *seam.Plan) validation.Expect {
	o := plan.Options
	exp := validation.Expect{
		DurationMs: plan.ExpectedDurationMs(),
		Encoder:    plan.Encoder(),
	}
	switch {
	case o.Format == seam.FormatGIF:
		exp.FPS = o.GIFFPS
		exp.Width = o.GIFWidth
	default:
		exp.PixFmt = "yuv420p"
		if o.Mode != seam.ModeCut {
			exp.FPS = o.RenderFPS
		}
		if o.Resolution.Width > 0 && o.Resolution.Height > 0 {
			exp.Width, exp.Height = o.Resolution.Width&^1, o.Resolution.Height&^1
		}
	}
	return exp
}
