package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/five82/seamloop"
	"github.com/five82/seamloop/internal/protocol"
	"github.com/five82/seamloop/internal/store"
	"github.com/five82/seamloop/internal/util"
)

type renderArgs struct {
	startMs     float64
	endMs       float64
	jobID       string
	rank        int
	mode        string
	format      string
	crossfadeMs float64
	width       int
	height      int
	output      string
	noHistory   bool
	noValidate  bool
}

func newRenderCmd() *cobra.Command {
	var ra renderArgs
	cmd := &cobra.Command{
		Use:   "render <video>",
		Short: "Render a loop with a smoothed seam",
		Long: `Render a loop with a smoothed seam.

The loop is chosen by --start/--end, by --job (a stored analysis) and --rank,
or, when neither is given, by analyzing the video and taking the best candidate.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, cur, args[0], ra)
		},
	}

	f := cmd.Flags()
	f.Float64Var(&ra.startMs, "start", 0, "loop start in ms")
	f.Float64Var(&ra.endMs, "end", 0, "loop end in ms")
	f.StringVar(&ra.jobID, "job", "", "pick the candidate from a stored analysis job")
	f.IntVar(&ra.rank, "rank", 1, "candidate rank within --job")
	f.StringVarP(&ra.mode, "mode", "m", string(seamloop.ModeCrossfade), "seam mode (cut, crossfade, pingpong, flowmorph)")
	f.StringVarP(&ra.format, "format", "f", "", "output format (mp4, webm, gif; default: from --output or mp4)")
	f.Float64Var(&ra.crossfadeMs, "crossfade", 0, "transition length in ms (default: config)")
	f.IntVar(&ra.width, "width", 0, "output width (0 keeps the source size)")
	f.IntVar(&ra.height, "height", 0, "output height (0 keeps the aspect ratio)")
	f.StringVarP(&ra.output, "output", "o", "", "output directory or file name (default: current directory)")
	f.BoolVar(&ra.noHistory, "no-history", false, "do not record the job in the history database")
	f.BoolVar(&ra.noValidate, "no-validate", false, "skip probing the rendered loop")
	return cmd
}

func runRender(cmd *cobra.Command, a *app, input string, ra renderArgs) error {
	ctx := cmd.Context()
	if !util.IsVideoFile(input) {
		return a.fail("No input", fmt.Errorf("%s is not a supported video file", input), "")
	}

	out := util.OutputPathInfo{OutputDir: "."}
	if ra.output != "" {
		var err error
		if out, err = util.ResolveOutputArg(ra.output); err != nil {
			return a.fail("Invalid output", err, "Use a directory or a .mp4, .webm or .gif file name")
		}
	}

	var copts []seamloop.Option
	if !ra.noValidate {
		copts = append(copts, seamloop.WithValidation())
	}
	client, err := a.client(copts...)
	if err != nil {
		return a.fail("Invalid options", err, "")
	}

	opts := client.RenderOptions()
	if opts.Mode, err = seamloop.ParseMode(ra.mode); err != nil {
		return a.fail("Invalid mode", err, "")
	}
	format := ra.format
	if format == "" {
		format = out.Format
	}
	if format != "" {
		if opts.Format, err = seamloop.ParseFormat(format); err != nil {
			return a.fail("Invalid format", err, "")
		}
	}
	if ra.crossfadeMs > 0 {
		opts.CrossfadeMs = ra.crossfadeMs
	}
	opts.Resolution = seamloop.Resolution{Width: ra.width, Height: ra.height}

	var st *store.Store
	if !ra.noHistory || ra.jobID != "" {
		if st = a.openStore(); st != nil {
			defer func() { _ = st.Close() }()
		}
	}

	candidate, err := selectCandidate(cmd, a, client, st, input, ra)
	if err != nil {
		return err
	}

	id := protocol.NewJobID()
	record := st != nil && !ra.noHistory
	if record {
		st.JobStarted(id, protocol.KindRender, input)
	}

	res, err := client.Render(ctx, input, candidate, opts, a.rep)
	if err != nil {
		if record {
			st.JobFinished(protocol.NewError(protocol.KindRender, id, err))
		}
		return a.fail("Render failed", err, "Try --mode cut or a shorter --crossfade")
	}
	if record {
		st.JobFinished(protocol.RenderResult{
			Header:   protocol.Header{ID: id, Kind: protocol.KindRender},
			Buffer:   res.Buffer,
			MimeType: res.MimeType,
		})
	}

	name := out.FilenameOverride
	if name == "" {
		name = util.LoopFilename(input, candidate.StartMs, candidate.EndMs, string(opts.Mode), string(opts.Format))
	}
	if err := util.EnsureDirectory(out.OutputDir); err != nil {
		return a.fail("Write failed", err, "")
	}
	path := filepath.Join(out.OutputDir, name)
	if err := os.WriteFile(path, res.Buffer, 0644); err != nil {
		return a.fail("Write failed", err, "")
	}

	a.logger.Info().Str("path", path).Int("bytes", len(res.Buffer)).Msg("loop written")
	a.rep.OperationComplete(fmt.Sprintf("Loop written to %s (%s)", path, util.FormatBytes(uint64(len(res.Buffer)))))
	return nil
}

// selectCandidate resolves the loop to render: explicit bounds, a stored
// job's ranked candidate, or the best candidate of a fresh analysis.
func selectCandidate(cmd *cobra.Command, a *app, client *seamloop.Client, st *store.Store, input string, ra renderArgs) (seamloop.Candidate, error) {
	switch {
	case ra.endMs > 0:
		return seamloop.Candidate{StartMs: ra.startMs, EndMs: ra.endMs}, nil
	case ra.jobID != "":
		if st == nil {
			return seamloop.Candidate{}, a.fail("No history", fmt.Errorf("cannot read job %s", ra.jobID), "")
		}
		cands, err := st.Candidates(ra.jobID)
		if err != nil {
			return seamloop.Candidate{}, a.fail("Unknown job", err, "List jobs with 'seamloop history'")
		}
		if ra.rank < 1 || ra.rank > len(cands) {
			return seamloop.Candidate{}, a.fail("Unknown candidate",
				fmt.Errorf("job %s has %d candidates, rank %d requested", ra.jobID, len(cands), ra.rank), "")
		}
		return cands[ra.rank-1], nil
	default:
		res, err := client.Analyze(cmd.Context(), input, a.rep)
		if err != nil {
			return seamloop.Candidate{}, a.fail("Analysis failed", err, "")
		}
		best, ok := res.Best()
		if !ok {
			return seamloop.Candidate{}, a.fail("No loop found",
				fmt.Errorf("no candidate scored above the prune threshold"), "Lower analysis.prune_threshold or widen the loop bounds")
		}
		return best, nil
	}
}
