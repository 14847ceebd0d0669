// Package sampler extracts a fixed-rate sequence of downscaled frames from a
// source video into an arena-backed feature set.
package sampler

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/five82/seamloop/internal/errors"
	"github.com/five82/seamloop/internal/features"
	"github.com/five82/seamloop/internal/ffmpeg"
	"github.com/five82/seamloop/internal/util"
)

// Plan is the sampling geometry for one source.
type Plan struct {
	Frames int
	FPS    uint32
	Width  int
	Height int
}

// FrameIntervalMs is the time between consecutive sampled frames.
func (p Plan) FrameIntervalMs() float64 {
	return 1000 / float64(p.FPS)
}

// TimestampMs returns the presentation time of sampled frame index.
func (p Plan) TimestampMs(index int) float64 {
	return float64(index) * 1000 / float64(p.FPS)
}

// BytesPerFrame estimates resident memory per frame: the transient bgr
// buffer plus the retained luma plane.
func (p Plan) BytesPerFrame() uint64 {
	return uint64(p.Width * p.Height * (3 + 1))
}

// StreamSpec converts the plan to an engine frame stream request.
func (p Plan) StreamSpec() ffmpeg.FrameStreamSpec {
	return ffmpeg.FrameStreamSpec{FPS: p.FPS, Width: p.Width, Height: p.Height, Frames: p.Frames}
}

// NewPlan computes N = floor(durationMs/1000·fps) and an aspect-preserving
// even height for the given analysis width.
func NewPlan(durationMs float64, fps uint32, width, srcW, srcH int) (Plan, error) {
	if durationMs <= 0 {
		return Plan{}, errors.NewDecodeError("source has zero duration", nil)
	}
	if srcW <= 0 || srcH <= 0 {
		return Plan{}, errors.NewDecodeError(fmt.Sprintf("source dimensions unknown (%dx%d)", srcW, srcH), nil)
	}
	if fps == 0 || width <= 0 {
		return Plan{}, errors.NewConfigError(fmt.Sprintf("invalid sampling %dfps at %dpx", fps, width))
	}

	frames := int(math.Floor(durationMs / 1000 * float64(fps)))
	if frames == 0 {
		return Plan{}, errors.NewDecodeError(fmt.Sprintf("source too short to sample: %.0fms at %dfps", durationMs, fps), nil)
	}

	return Plan{
		Frames: frames,
		FPS:    fps,
		Width:  evenAtLeast2(width),
		Height: evenAtLeast2(int(math.Round(float64(width) * float64(srcH) / float64(srcW)))),
	}, nil
}

func evenAtLeast2(v int) int {
	v -= v % 2
	return max(v, 2)
}

// FrameSource streams raw frames. *ffmpeg.Executor implements it.
type FrameSource interface {
	StreamFrames(ctx context.Context, path string, spec ffmpeg.FrameStreamSpec, fn ffmpeg.FrameFunc) error
}

// Options configures Sample.
type Options struct {
	Bins        int
	MemFraction float64
	// OnFrame is called after each frame is extracted.
	OnFrame func(done, total int)
}

// Sampler drives frame extraction into a feature set.
type Sampler struct {
	source FrameSource
	logger zerolog.Logger
	// budget is replaceable in tests.
	budget func(frameBytes uint64, frames int, fraction float64) util.MemoryBudget
}

// New creates a sampler reading from source.
func New(source FrameSource, logger zerolog.Logger) *Sampler {
	return &Sampler{
		source: source,
		logger: logger.With().Str("component", "sampler").Logger(),
		budget: util.FrameMemoryBudget,
	}
}

// Sample decodes plan.Frames frames from path, extracting features into
// arena-owned storage. On any error the caller still owns and must close arena.
func (s *Sampler) Sample(ctx context.Context, path string, plan Plan, arena *features.Arena, opts Options) (*features.FeatureSet, error) {
	if b := s.budget(plan.BytesPerFrame(), plan.Frames, opts.MemFraction); !b.Fits() {
		return nil, errors.NewAnalysisError(fmt.Sprintf(
			"frame set needs %s but only %s is usable; lower analysis fps or width",
			util.FormatBytes(b.Required), util.FormatBytes(b.Usable)), nil)
	}

	s.logger.Debug().
		Int("frames", plan.Frames).
		Uint32("fps", plan.FPS).
		Int("width", plan.Width).
		Int("height", plan.Height).
		Msg("sampling frames")

	extractor := features.NewExtractor(arena, plan.Width, plan.Height, opts.Bins)
	set := &features.FeatureSet{
		Frames: make([]features.SampledFrame, 0, plan.Frames),
		Width:  plan.Width,
		Height: plan.Height,
		FPS:    plan.FPS,
	}

	err := s.source.StreamFrames(ctx, path, plan.StreamSpec(), func(index int, bgr []byte) error {
		if err := ctx.Err(); err != nil {
			return errors.NewCancelledError()
		}
		frame, err := extractor.Extract(bgr, index, plan.TimestampMs(index))
		if err != nil {
			return err
		}
		set.Frames = append(set.Frames, frame)
		if opts.OnFrame != nil {
			opts.OnFrame(len(set.Frames), plan.Frames)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if set.Len() != plan.Frames {
		return nil, errors.NewDecodeError(fmt.Sprintf("sampled %d of %d frames", set.Len(), plan.Frames), nil)
	}
	return set, nil
}
