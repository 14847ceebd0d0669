// Package seam plans how a chosen loop candidate is rendered into a
// repeating clip. A Plan is built once per render job and never mutated.
package seam

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/five82/seamloop/internal/config"
	coreerrors "github.com/five82/seamloop/internal/errors"
	"github.com/five82/seamloop/internal/ffmpeg"
	"github.com/five82/seamloop/internal/filtergraph"
	"github.com/five82/seamloop/internal/search"
)

// Mode selects the seam-smoothing strategy.
type Mode string

const (
	ModeCut       Mode = "cut"
	ModeCrossfade Mode = "crossfade"
	ModePingPong  Mode = "pingpong"
	ModeFlowMorph Mode = "flowmorph"
)

// ParseMode parses a render mode name. "ping-pong" and "flow-morph" are accepted.
func ParseMode(s string) (Mode, error) {
	switch strings.ReplaceAll(strings.ToLower(s), "-", "") {
	case "cut":
		return ModeCut, nil
	case "crossfade":
		return ModeCrossfade, nil
	case "pingpong":
		return ModePingPong, nil
	case "flowmorph":
		return ModeFlowMorph, nil
	default:
		return "", coreerrors.NewRenderConfigError(fmt.Sprintf("unknown render mode %q, valid options: cut, crossfade, pingpong, flowmorph", s))
	}
}

// blends reports whether the mode needs a crossfade duration.
func (m Mode) blends() bool {
	return m == ModeCrossfade || m == ModeFlowMorph
}

// Format is the output container.
type Format string

const (
	FormatMP4  Format = "mp4"
	FormatWebM Format = "webm"
	FormatGIF  Format = "gif"
)

// ParseFormat parses an output format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.TrimPrefix(strings.ToLower(s), ".")); f {
	case FormatMP4, FormatWebM, FormatGIF:
		return f, nil
	default:
		return "", coreerrors.NewRenderConfigError(fmt.Sprintf("unknown output format %q, valid options: mp4, webm, gif", s))
	}
}

// MimeType returns the media type of encoded output.
func (f Format) MimeType() string {
	switch f {
	case FormatWebM:
		return "video/webm"
	case FormatGIF:
		return "image/gif"
	default:
		return "video/mp4"
	}
}

// Resolution is an output frame size. A zero value keeps the source size.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// IsZero reports whether no resolution is set.
func (r Resolution) IsZero() bool {
	return r.Width <= 0 && r.Height <= 0
}

// Options controls a render.
type Options struct {
	Mode        Mode
	CrossfadeMs float64
	Format      Format
	Resolution  Resolution
	RenderFPS   int
	GIFFPS      int
	GIFWidth    int
	Preset      string
	CRF         uint8
	VP9CRF      uint8
}

// DefaultOptions returns crossfade mp4 options from the render defaults.
func DefaultOptions() Options {
	return OptionsFromConfig(config.NewConfig().Render)
}

// OptionsFromConfig builds crossfade mp4 options from render settings.
func OptionsFromConfig(rc config.RenderConfig) Options {
	return Options{
		Mode:        ModeCrossfade,
		CrossfadeMs: rc.CrossfadeMs,
		Format:      FormatMP4,
		RenderFPS:   rc.FPS,
		GIFFPS:      rc.GIFFPS,
		GIFWidth:    rc.GIFWidth,
		Preset:      rc.X264Preset,
		CRF:         rc.CRF,
		VP9CRF:      rc.VP9CRF,
	}
}

// Plan is a validated render pipeline for one candidate.
type Plan struct {
	Candidate search.Candidate
	Options   Options

	graph  *filtergraph.Graph
	out    filtergraph.Stream
	filter string
}

// NewPlan validates the candidate against opts and builds the filter graph.
// Every failure is a RenderConfigError.
func NewPlan(c search.Candidate, opts Options) (*Plan, error) {
	if err := validate(c, opts); err != nil {
		return nil, err
	}

	p := &Plan{Candidate: c, Options: opts, graph: filtergraph.New()}
	p.out = p.build()

	filter, err := p.graph.Serialize(p.out)
	if err != nil {
		return nil, coreerrors.NewRenderConfigError(fmt.Sprintf("invalid %s filter graph: %v", opts.Mode, err))
	}
	p.filter = filter
	return p, nil
}

func validate(c search.Candidate, opts Options) error {
	loop := c.DurationMs()
	if c.StartMs < 0 || loop <= 0 {
		return coreerrors.NewRenderConfigError(fmt.Sprintf("loop %.0f-%.0fms has no duration", c.StartMs, c.EndMs))
	}

	switch opts.Mode {
	case ModeCut, ModePingPong:
	case ModeCrossfade, ModeFlowMorph:
		if opts.CrossfadeMs <= 0 {
			return coreerrors.NewRenderConfigError(fmt.Sprintf("%s needs a positive crossfade, got %gms", opts.Mode, opts.CrossfadeMs))
		}
		if opts.CrossfadeMs >= loop {
			return coreerrors.NewRenderConfigError(fmt.Sprintf("crossfade %gms must be shorter than loop %gms", opts.CrossfadeMs, loop))
		}
		if opts.RenderFPS <= 0 {
			return coreerrors.NewRenderConfigError(fmt.Sprintf("render fps must be positive, got %d", opts.RenderFPS))
		}
	default:
		return coreerrors.NewRenderConfigError(fmt.Sprintf("unknown render mode %q", opts.Mode))
	}

	switch opts.Format {
	case FormatMP4:
		if opts.CRF > config.MaxCRF {
			return coreerrors.NewRenderConfigError(fmt.Sprintf("crf must be 0-%d, got %d", config.MaxCRF, opts.CRF))
		}
	case FormatWebM:
		if opts.VP9CRF > config.MaxCRF {
			return coreerrors.NewRenderConfigError(fmt.Sprintf("vp9 crf must be 0-%d, got %d", config.MaxCRF, opts.VP9CRF))
		}
	case FormatGIF:
		if opts.GIFFPS <= 0 || opts.GIFWidth <= 0 {
			return coreerrors.NewRenderConfigError(fmt.Sprintf("gif fps and width must be positive, got %d/%d", opts.GIFFPS, opts.GIFWidth))
		}
	default:
		return coreerrors.NewRenderConfigError(fmt.Sprintf("unknown output format %q", opts.Format))
	}
	return nil
}

func (p *Plan) build() filtergraph.Stream {
	g := p.graph
	c := p.Candidate
	loop := c.DurationMs()
	xf := p.Options.CrossfadeMs

	var out filtergraph.Stream
	switch p.Options.Mode {
	case ModeCut:
		out = g.Then(filtergraph.Trim{StartMs: c.StartMs, EndMs: c.EndMs}, g.Source(0))

	case ModeCrossfade:
		// The segment dissolves into its own head; the trailing copy of the
		// head is trimmed so the output repeats with period loop.
		seg := g.Then(filtergraph.Trim{StartMs: c.StartMs, EndMs: c.EndMs}, g.Source(0))
		seg = g.Then(filtergraph.FPS{Rate: p.Options.RenderFPS}, seg)
		parts := g.Apply(filtergraph.Split{N: 2}, seg)
		blended := g.Then(filtergraph.Blend{DurationMs: xf, OffsetMs: loop - xf}, parts[0], parts[1])
		out = g.Then(filtergraph.Trim{DurationMs: loop}, blended)

	case ModePingPong:
		seg := g.Then(filtergraph.Trim{StartMs: c.StartMs, EndMs: c.EndMs}, g.Source(0))
		parts := g.Apply(filtergraph.Split{N: 2}, seg)
		back := g.Then(filtergraph.Reverse{}, parts[1])
		out = g.Then(filtergraph.Concat{N: 2}, parts[0], back)

	case ModeFlowMorph:
		// Tail and head are joined, interpolated, and the centre crossfade
		// window is kept so the transition straddles the seam symmetrically.
		seg := g.Then(filtergraph.Trim{StartMs: c.StartMs, EndMs: c.EndMs}, g.Source(0))
		seg = g.Then(filtergraph.FPS{Rate: p.Options.RenderFPS}, seg)
		parts := g.Apply(filtergraph.Split{N: 3}, seg)
		body := g.Then(filtergraph.Trim{EndMs: loop - xf}, parts[0])
		tail := g.Then(filtergraph.Trim{StartMs: loop - xf, EndMs: loop}, parts[1])
		head := g.Then(filtergraph.Trim{EndMs: xf}, parts[2])
		bridge := g.Then(filtergraph.Concat{N: 2}, tail, head)
		bridge = g.Then(filtergraph.Interpolate{FPS: p.Options.RenderFPS}, bridge)
		bridge = g.Then(filtergraph.Trim{StartMs: xf / 2, DurationMs: xf}, bridge)
		out = g.Then(filtergraph.Concat{N: 2}, body, bridge)
	}

	if p.Options.Format == FormatGIF {
		return p.paletteTail(out)
	}
	if r := p.Options.Resolution; !r.IsZero() {
		out = g.Then(filtergraph.Scale{Width: evenOrAuto(r.Width), Height: evenOrAuto(r.Height)}, out)
	}
	return out
}

// paletteTail quantizes out to a single optimized GIF palette.
func (p *Plan) paletteTail(out filtergraph.Stream) filtergraph.Stream {
	g := p.graph
	out = g.Then(filtergraph.FPS{Rate: p.Options.GIFFPS}, out)
	out = g.Then(filtergraph.Scale{Width: p.Options.GIFWidth, Height: -1, Flags: "lanczos"}, out)
	parts := g.Apply(filtergraph.Split{N: 2}, out)
	palette := g.Then(filtergraph.PaletteGen{}, parts[0])
	return g.Then(filtergraph.PaletteUse{}, parts[1], palette)
}

// evenOrAuto keeps yuv420p-compatible dimensions.
func evenOrAuto(v int) int {
	if v <= 0 {
		return -2
	}
	return v &^ 1
}

// LoopDurationMs is the candidate's loop length.
func (p *Plan) LoopDurationMs() float64 {
	return p.Candidate.DurationMs()
}

// ExpectedDurationMs evaluates the output length from the graph structure:
// loop length for cut, crossfade and flow-morph, twice that for ping-pong.
func (p *Plan) ExpectedDurationMs() float64 {
	d, err := p.graph.DurationMs(p.out, math.Inf(1))
	if err != nil {
		return 0
	}
	return d
}

// FilterComplex returns the serialized filter graph.
func (p *Plan) FilterComplex() string {
	return p.filter
}

// Graph returns the node graph and its output stream.
func (p *Plan) Graph() (*filtergraph.Graph, filtergraph.Stream) {
	return p.graph, p.out
}

// MimeType returns the media type of the rendered buffer.
func (p *Plan) MimeType() string {
	return p.Options.Format.MimeType()
}

// Extension returns the output file extension including the dot.
func (p *Plan) Extension() string {
	return "." + string(p.Options.Format)
}

// Args returns the ffmpeg arguments rendering input to output. Audio is
// always stripped.
func (p *Plan) Args(input, output string) []string {
	b := ffmpeg.NewArgsBuilder().
		Input(input).
		FilterComplex(p.filter).
		Map(p.out.Label()).
		NoAudio()

	switch p.Options.Format {
	case FormatMP4:
		preset := p.Options.Preset
		if preset == "" {
			preset = config.DefaultX264Preset
		}
		b.Codec(p.Encoder()).
			AddParam("-preset", preset).
			CRF(p.Options.CRF).
			AddParam("-pix_fmt", "yuv420p").
			AddParam("-movflags", "+faststart")
	case FormatWebM:
		b.Codec(p.Encoder()).
			AddParam("-b:v", "0").
			CRF(p.Options.VP9CRF).
			AddParam("-pix_fmt", "yuv420p")
	case FormatGIF:
		b.AddParam("-loop", "0")
	}

	return b.Output(output).Build()
}

// Encoder names the ffmpeg encoder for the output format.
func (p *Plan) Encoder() string {
	switch p.Options.Format {
	case FormatWebM:
		return "libvpx-vp9"
	case FormatGIF:
		return "gif"
	default:
		return "libx264"
	}
}

// Quality describes the encoder quality setting.
func (p *Plan) Quality() string {
	switch p.Options.Format {
	case FormatWebM:
		return fmt.Sprintf("CRF %d", p.Options.VP9CRF)
	case FormatGIF:
		return fmt.Sprintf("%d fps, %dpx palette", p.Options.GIFFPS, p.Options.GIFWidth)
	default:
		return fmt.Sprintf("CRF %d (%s)", p.Options.CRF, p.Options.Preset)
	}
}

// String summarizes the plan for logs.
func (p *Plan) String() string {
	s := fmt.Sprintf("%s %s %.0f-%.0fms", p.Options.Mode, p.Options.Format, p.Candidate.StartMs, p.Candidate.EndMs)
	if p.Options.Mode.blends() {
		s += " xfade=" + strconv.FormatFloat(p.Options.CrossfadeMs, 'f', -1, 64) + "ms"
	}
	return s
}
