package validation

import (
	"context"
	"fmt"
	"math"

	"github.com/five82/seamloop/internal/ffprobe"
)

// minDurationToleranceMs is the smallest allowed duration difference.
const minDurationToleranceMs = 100.0

// Prober reads stream properties. ffprobe.Probe satisfies it.
type Prober func(ctx context.Context, path string) (*ffprobe.VideoInfo, error)

// Expect describes what a rendered loop should look like. Zero fields are
// not checked.
type Expect struct {
	DurationMs float64
	// FPS widens the duration tolerance to two output frames.
	FPS     int
	Encoder string
	Width   int
	Height  int
	PixFmt  string
}

// CodecFor maps an ffmpeg encoder to the codec name ffprobe reports.
func CodecFor(encoder string) string {
	switch encoder {
	case "libx264":
		return "h264"
	case "libvpx-vp9":
		return "vp9"
	default:
		return encoder
	}
}

// ValidateLoop probes path and checks it against exp. Loops never carry audio.
func ValidateLoop(ctx context.Context, probe Prober, path string, exp Expect) (*Result, error) {
	info, err := probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to probe rendered loop: %w", err)
	}

	r := &Result{}
	if exp.Encoder != "" {
		want := CodecFor(exp.Encoder)
		r.add("Video codec", info.CodecName == want, codecDetails(info.CodecName, want))
	}
	if exp.DurationMs > 0 {
		r.add(validateDuration(info.DurationMs, exp.DurationMs, exp.FPS))
	}
	if exp.Width > 0 || exp.Height > 0 {
		r.add(validateDimensions(info.Width, info.Height, exp.Width, exp.Height))
	}
	if exp.PixFmt != "" {
		r.add("Pixel format", info.PixFmt == exp.PixFmt, fmt.Sprintf("got %s, expected %s", info.PixFmt, exp.PixFmt))
	}
	if info.HasAudio {
		r.add("Audio", false, "audio stream present in loop output")
	} else {
		r.add("Audio", true, "no audio")
	}
	return r, nil
}

func codecDetails(got, want string) string {
	if got == want {
		return got
	}
	if got == "" {
		return "unknown codec, expected " + want
	}
	return fmt.Sprintf("expected %s, got %s", want, got)
}

// validateDuration allows two output frames of slack, at least minDurationToleranceMs.
func validateDuration(actual, expected float64, fps int) (string, bool, string) {
	tolerance := minDurationToleranceMs
	if fps > 0 {
		tolerance = math.Max(tolerance, 2000/float64(fps))
	}
	diff := math.Abs(actual - expected)
	if diff <= tolerance {
		return "Loop duration", true, fmt.Sprintf("%.0fms (expected %.0fms)", actual, expected)
	}
	return "Loop duration", false, fmt.Sprintf("got %.0fms, expected %.0fms (diff %.0fms, tolerance %.0fms)",
		actual, expected, diff, tolerance)
}

// validateDimensions checks the set axes only.
func validateDimensions(w, h, wantW, wantH int) (string, bool, string) {
	ok := (wantW <= 0 || w == wantW) && (wantH <= 0 || h == wantH)
	if ok {
		return "Dimensions", true, fmt.Sprintf("%dx%d", w, h)
	}
	return "Dimensions", false, fmt.Sprintf("got %dx%d, expected %s", w, h, dims(wantW, wantH))
}

func dims(w, h int) string {
	ws, hs := "auto", "auto"
	if w > 0 {
		ws = fmt.Sprint(w)
	}
	if h > 0 {
		hs = fmt.Sprint(h)
	}
	return ws + "x" + hs
}
