package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// JSONReporter outputs NDJSON events for machine consumers.
type JSONReporter struct {
	writer             io.Writer
	mu                 sync.Mutex
	lastProgressBucket int
	lastProgressTime   time.Time
}

// NewJSONReporter creates a new JSON reporter that writes to stdout.
func NewJSONReporter() *JSONReporter {
	return NewJSONReporterWithWriter(os.Stdout)
}

// NewJSONReporterWithWriter creates a JSON reporter with a custom writer.
func NewJSONReporterWithWriter(w io.Writer) *JSONReporter {
	return &JSONReporter{
		writer:             w,
		lastProgressBucket: -1,
	}
}

func (r *JSONReporter) timestamp() int64 {
	return time.Now().Unix()
}

func (r *JSONReporter) write(v map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v["timestamp"] = r.timestamp()
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintln(r.writer, string(data))
}

// shouldEmit throttles progress to one event per percent bucket or every
// five seconds, always letting the tail through.
func (r *JSONReporter) shouldEmit(percent float64) bool {
	const minInterval = 5 * time.Second

	bucket := int(percent)
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	intervalElapsed := r.lastProgressTime.IsZero() || now.Sub(r.lastProgressTime) >= minInterval
	if bucket <= r.lastProgressBucket && !intervalElapsed && percent < 99.0 {
		return false
	}
	if bucket > r.lastProgressBucket {
		r.lastProgressBucket = bucket
	}
	r.lastProgressTime = now
	return true
}

func (r *JSONReporter) resetProgress() {
	r.mu.Lock()
	r.lastProgressBucket = -1
	r.lastProgressTime = time.Time{}
	r.mu.Unlock()
}

func (r *JSONReporter) Hardware(summary HardwareSummary) {
	r.write(map[string]any{
		"type":     "hardware",
		"hostname": summary.Hostname,
		"cores":    summary.Cores,
		"memory":   summary.Memory,
	})
}

func (r *JSONReporter) Initialization(summary InitializationSummary) {
	r.resetProgress()
	r.write(map[string]any{
		"type":        "initialization",
		"input_file":  summary.InputFile,
		"duration":    summary.Duration,
		"resolution":  summary.Resolution,
		"sampling":    summary.Sampling,
		"loop_bounds": summary.LoopBounds,
	})
}

func (r *JSONReporter) StageProgress(update StageProgress) {
	if !r.shouldEmit(update.Percent) {
		return
	}
	event := map[string]any{
		"type":    "stage_progress",
		"stage":   update.Stage,
		"percent": update.Percent,
		"message": update.Message,
	}
	if update.ETA != nil {
		event["eta_seconds"] = int64(update.ETA.Seconds())
	}
	r.write(event)
}

func (r *JSONReporter) AnalysisComplete(summary AnalysisSummary) {
	candidates := make([]map[string]any, len(summary.Candidates))
	for i, c := range summary.Candidates {
		candidates[i] = map[string]any{
			"rank":     c.Rank,
			"start_ms": c.StartMs,
			"end_ms":   c.EndMs,
			"score":    c.Score,
		}
	}
	r.write(map[string]any{
		"type":             "analysis_complete",
		"input_file":       summary.InputFile,
		"candidates":       candidates,
		"frames":           summary.Frames,
		"pairs":            summary.Pairs,
		"duration_seconds": summary.Elapsed.Seconds(),
	})
}

func (r *JSONReporter) RenderConfig(summary RenderConfigSummary) {
	r.write(map[string]any{
		"type":      "render_config",
		"mode":      summary.Mode,
		"format":    summary.Format,
		"loop":      summary.Loop,
		"crossfade": summary.Crossfade,
		"encoder":   summary.Encoder,
		"quality":   summary.Quality,
		"filter":    summary.Filter,
	})
}

func (r *JSONReporter) RenderStarted() {
	r.resetProgress()
	r.write(map[string]any{"type": "render_started"})
}

func (r *JSONReporter) RenderProgress(progress ProgressSnapshot) {
	if !r.shouldEmit(progress.Percent) {
		return
	}
	r.write(map[string]any{
		"type":        "render_progress",
		"stage":       "render",
		"percent":     progress.Percent,
		"speed":       progress.Speed,
		"fps":         progress.FPS,
		"eta_seconds": int64(progress.ETA.Seconds()),
	})
}

func (r *JSONReporter) RenderComplete(summary RenderOutcome) {
	r.write(map[string]any{
		"type":             "render_complete",
		"input_file":       summary.InputFile,
		"output_file":      summary.OutputFile,
		"output_path":      summary.OutputPath,
		"size":             summary.Size,
		"loop_ms":          summary.DurationMs,
		"mime_type":        summary.MimeType,
		"duration_seconds": summary.TotalTime.Seconds(),
	})
}

func (r *JSONReporter) Warning(message string) {
	r.write(map[string]any{
		"type":    "warning",
		"message": message,
	})
}

func (r *JSONReporter) Error(err ReporterError) {
	r.write(map[string]any{
		"type":       "error",
		"title":      err.Title,
		"message":    err.Message,
		"context":    err.Context,
		"suggestion": err.Suggestion,
	})
}

func (r *JSONReporter) OperationComplete(message string) {
	r.write(map[string]any{
		"type":    "operation_complete",
		"message": message,
	})
}

// Verbose messages are terminal-only.
func (r *JSONReporter) Verbose(string) {}
