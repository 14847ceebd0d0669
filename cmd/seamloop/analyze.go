package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/five82/seamloop"
	"github.com/five82/seamloop/internal/discovery"
	"github.com/five82/seamloop/internal/protocol"
	"github.com/five82/seamloop/internal/store"
	"github.com/five82/seamloop/internal/util"
)

type analyzeArgs struct {
	minLoopMs float64
	maxLoopMs float64
	topK      int
	outDir    string
	noHistory bool
}

func newAnalyzeCmd() *cobra.Command {
	var aa analyzeArgs
	cmd := &cobra.Command{
		Use:   "analyze <video|directory>",
		Short: "Rank loop candidates in a video or every video in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, cur, args[0], aa)
		},
	}

	f := cmd.Flags()
	f.Float64Var(&aa.minLoopMs, "min-loop", 0, "shortest loop in ms (default: config)")
	f.Float64Var(&aa.maxLoopMs, "max-loop", 0, "longest loop in ms (default: config)")
	f.IntVar(&aa.topK, "top", 0, "number of candidates to keep (default: config)")
	f.StringVarP(&aa.outDir, "output", "o", "", "directory to write <video>.loops.json results into")
	f.BoolVar(&aa.noHistory, "no-history", false, "do not record the job in the history database")
	return cmd
}

func runAnalyze(cmd *cobra.Command, a *app, input string, aa analyzeArgs) error {
	found, err := discovery.FindVideos(input, a.logger)
	if err != nil {
		return a.fail("No input", err, "Pass a video file or a directory containing videos")
	}

	var opts []seamloop.Option
	if aa.minLoopMs > 0 || aa.maxLoopMs > 0 {
		minMs, maxMs := a.cfg.Analysis.MinLoopMs, a.cfg.Analysis.MaxLoopMs
		if aa.minLoopMs > 0 {
			minMs = aa.minLoopMs
		}
		if aa.maxLoopMs > 0 {
			maxMs = aa.maxLoopMs
		}
		opts = append(opts, seamloop.WithLoopBounds(minMs, maxMs))
	}
	if aa.topK > 0 {
		opts = append(opts, seamloop.WithTopK(aa.topK))
	}
	client, err := a.client(opts...)
	if err != nil {
		return a.fail("Invalid options", err, "")
	}

	var st *store.Store
	if !aa.noHistory {
		if st = a.openStore(); st != nil {
			defer func() { _ = st.Close() }()
		}
	}

	a.reportHardware()

	failed := 0
	for _, file := range found.Files {
		id := protocol.NewJobID()
		if st != nil {
			st.JobStarted(id, protocol.KindAnalysis, file)
		}

		res, err := client.Analyze(cmd.Context(), file, a.rep)
		if err != nil {
			if st != nil {
				st.JobFinished(protocol.NewError(protocol.KindAnalysis, id, err))
			}
			if cmd.Context().Err() != nil {
				return err
			}
			failed++
			_ = a.fail("Analysis failed", err, "Check that the file is a decodable video")
			continue
		}
		if st != nil {
			st.JobFinished(protocol.NewAnalysisResult(id, res))
		}

		if aa.outDir != "" {
			path, err := writeResult(aa.outDir, file, res)
			if err != nil {
				return a.fail("Write failed", err, "")
			}
			a.logger.Info().Str("path", path).Msg("analysis result written")
		}
		if best, ok := res.Best(); ok {
			a.rep.OperationComplete(fmt.Sprintf("%s: best loop %s - %s, score %.3f (job %s)",
				util.GetFilename(file), util.FormatMs(best.StartMs), util.FormatMs(best.EndMs), best.Score, id))
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d analyses failed", failed, len(found.Files))
	}
	return nil
}

func writeResult(dir, input string, res *seamloop.AnalysisResult) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, filepath.Base(input)+".loops.json")
	return path, os.WriteFile(path, data, 0644)
}
