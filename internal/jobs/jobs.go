package jobs

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/five82/seamloop/internal/analysis"
	"github.com/five82/seamloop/internal/config"
	"github.com/five82/seamloop/internal/protocol"
	"github.com/five82/seamloop/internal/render"
	"github.com/five82/seamloop/internal/reporter"
	"github.com/five82/seamloop/internal/seam"
)

// stageReporter forwards analysis stage progress to a job sink.
type stageReporter struct {
	reporter.NullReporter
	progress ProgressFunc
}

func (r stageReporter) StageProgress(u reporter.StageProgress) {
	r.progress(u.Percent, u.Message)
}

// Analyzer runs one analysis. *analysis.Analyzer implements it.
type Analyzer interface {
	Run(ctx context.Context, req analysis.Request, rep reporter.Reporter) (*analysis.Result, error)
}

// AnalysisJob builds a job that runs req with cfg.
func AnalysisJob(req protocol.AnalyzeRequest, cfg config.AnalysisConfig, logger zerolog.Logger) Job {
	return analysisJob(req, func(eng Engine) Analyzer {
		return analysis.New(eng, cfg, logger)
	})
}

func analysisJob(req protocol.AnalyzeRequest, newAnalyzer func(Engine) Analyzer) Job {
	return Job{
		ID:       req.JobID,
		VideoRef: req.VideoRef,
		Run: func(ctx context.Context, eng Engine, progress ProgressFunc) (protocol.Notification, error) {
			res, err := newAnalyzer(eng).Run(ctx, analysis.Request{
				Path:       req.VideoRef,
				DurationMs: req.DurationMs,
				MinLoopMs:  req.Options.MinLoopMs,
				MaxLoopMs:  req.Options.MaxLoopMs,
			}, stageReporter{progress: progress})
			if err != nil {
				return nil, err
			}
			progress(100, "Analysis complete")
			return protocol.NewAnalysisResult(req.JobID, res), nil
		},
	}
}

// RenderJob builds a job that renders req over defaults. An invalid plan
// fails before the engine runs.
func RenderJob(req protocol.RenderRequest, defaults seam.Options, tempDir string, logger zerolog.Logger) Job {
	return Job{
		ID:       req.JobID,
		VideoRef: req.VideoRef,
		Run: func(ctx context.Context, eng Engine, progress ProgressFunc) (protocol.Notification, error) {
			opts, err := req.Plan.Options(defaults)
			if err != nil {
				return nil, err
			}
			plan, err := seam.NewPlan(req.Plan.Candidate, opts)
			if err != nil {
				return nil, err
			}

			progress(0, "Rendering "+plan.String())
			res, err := render.New(eng, tempDir, logger).Render(ctx, req.VideoRef, plan, func(pct float64) {
				progress(pct, "Encoding")
			})
			if err != nil {
				return nil, err
			}
			progress(100, "Render complete")
			return protocol.RenderResult{Buffer: res.Buffer, MimeType: res.MimeType}, nil
		},
	}
}
