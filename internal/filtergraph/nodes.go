package filtergraph

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Node is one filter in a graph. The set of nodes is closed.
type Node interface {
	// Inputs is the number of streams the node consumes.
	Inputs() int
	// Outputs is the number of streams the node produces.
	Outputs() int
	// Filter renders the node in ffmpeg filter syntax.
	Filter() string
	// duration maps input durations to the output duration.
	duration(in []float64) float64
}

// seconds renders a millisecond value as ffmpeg seconds, rounded to the microsecond.
func seconds(ms float64) string {
	return strconv.FormatFloat(math.Round(ms*1000)/1e6, 'f', -1, 64)
}

// Trim keeps [StartMs, EndMs) or, when DurationMs is set, DurationMs from
// StartMs. Timestamps are reset so the kept range starts at zero.
type Trim struct {
	StartMs    float64
	EndMs      float64
	DurationMs float64
}

func (Trim) Inputs() int  { return 1 }
func (Trim) Outputs() int { return 1 }
func (t Trim) Filter() string {
	parts := []string{"start=" + seconds(t.StartMs)}
	if t.EndMs > 0 {
		parts = append(parts, "end="+seconds(t.EndMs))
	}
	if t.DurationMs > 0 {
		parts = append(parts, "duration="+seconds(t.DurationMs))
	}
	return "trim=" + strings.Join(parts, ":") + ",setpts=PTS-STARTPTS"
}
func (t Trim) duration(in []float64) float64 {
	avail := in[0]
	if t.EndMs > 0 {
		avail = math.Min(avail, t.EndMs)
	}
	d := avail - t.StartMs
	if t.DurationMs > 0 {
		d = math.Min(d, t.DurationMs)
	}
	return math.Max(d, 0)
}

// Split duplicates one stream into N.
type Split struct {
	N int
}

func (Split) Inputs() int    { return 1 }
func (s Split) Outputs() int { return s.N }
func (s Split) Filter() string {
	return fmt.Sprintf("split=%d", s.N)
}
func (Split) duration(in []float64) float64 { return in[0] }

// Blend dissolves the first input into the second over DurationMs, starting
// OffsetMs into the first.
type Blend struct {
	DurationMs float64
	OffsetMs   float64
}

func (Blend) Inputs() int  { return 2 }
func (Blend) Outputs() int { return 1 }
func (b Blend) Filter() string {
	return fmt.Sprintf("xfade=transition=fade:duration=%s:offset=%s", seconds(b.DurationMs), seconds(b.OffsetMs))
}
func (b Blend) duration(in []float64) float64 {
	// The second input starts at OffsetMs and plays to its end.
	return math.Min(in[0], b.OffsetMs) + in[1]
}

// Concat joins N video streams end to end.
type Concat struct {
	N int
}

func (c Concat) Inputs() int { return c.N }
func (Concat) Outputs() int  { return 1 }
func (c Concat) Filter() string {
	return fmt.Sprintf("concat=n=%d:v=1:a=0", c.N)
}
func (Concat) duration(in []float64) float64 {
	var total float64
	for _, d := range in {
		total += d
	}
	return total
}

// Reverse plays a stream backwards.
type Reverse struct{}

func (Reverse) Inputs() int    { return 1 }
func (Reverse) Outputs() int   { return 1 }
func (Reverse) Filter() string { return "reverse" }

func (Reverse) duration(in []float64) float64 { return in[0] }

// Interpolate synthesizes frames at FPS with motion-compensated interpolation.
type Interpolate struct {
	FPS int
}

func (Interpolate) Inputs() int  { return 1 }
func (Interpolate) Outputs() int { return 1 }
func (i Interpolate) Filter() string {
	return fmt.Sprintf("minterpolate=fps=%d:mi_mode=mci:mc_mode=aobmc:me_mode=bidir:vsbmc=1", i.FPS)
}
func (Interpolate) duration(in []float64) float64 { return in[0] }

// FPS resamples a stream to a constant frame rate.
type FPS struct {
	Rate int
}

func (FPS) Inputs() int  { return 1 }
func (FPS) Outputs() int { return 1 }
func (f FPS) Filter() string {
	return fmt.Sprintf("fps=%d", f.Rate)
}
func (FPS) duration(in []float64) float64 { return in[0] }

// Scale resizes a stream. A non-positive dimension keeps the aspect ratio
// (-1 as given, or -2 to keep it even).
type Scale struct {
	Width  int
	Height int
	Flags  string
}

func (Scale) Inputs() int  { return 1 }
func (Scale) Outputs() int { return 1 }
func (s Scale) Filter() string {
	f := fmt.Sprintf("scale=%d:%d", dim(s.Width), dim(s.Height))
	if s.Flags != "" {
		f += ":flags=" + s.Flags
	}
	return f
}
func (Scale) duration(in []float64) float64 { return in[0] }

func dim(v int) int {
	if v > 0 || v == -1 || v == -2 {
		return v
	}
	return -1
}

// PaletteGen computes an optimized 256-color palette.
type PaletteGen struct{}

func (PaletteGen) Inputs() int    { return 1 }
func (PaletteGen) Outputs() int   { return 1 }
func (PaletteGen) Filter() string { return "palettegen=stats_mode=diff" }
func (PaletteGen) duration(in []float64) float64 {
	// A single palette frame.
	return 0
}

// PaletteUse quantizes the first input with the palette from the second.
type PaletteUse struct{}

func (PaletteUse) Inputs() int    { return 2 }
func (PaletteUse) Outputs() int   { return 1 }
func (PaletteUse) Filter() string { return "paletteuse" }

func (PaletteUse) duration(in []float64) float64 { return in[0] }
