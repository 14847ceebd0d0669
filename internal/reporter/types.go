// Package reporter provides progress reporting interfaces and implementations.
package reporter

import "time"

// HardwareSummary contains hardware information.
type HardwareSummary struct {
	Hostname string
	Cores    string
	Memory   string
}

// InitializationSummary describes the source before analysis.
type InitializationSummary struct {
	InputFile  string
	Duration   string
	Resolution string
	Sampling   string
	LoopBounds string
}

// StageProgress represents a generic stage update. Percent is overall job
// completion in [0, 100].
type StageProgress struct {
	Stage   string
	Percent float64
	Message string
	ETA     *time.Duration
}

// CandidateRow is one ranked loop.
type CandidateRow struct {
	Rank    int
	StartMs float64
	EndMs   float64
	Score   float64
}

// AnalysisSummary contains the ranked result of an analysis.
type AnalysisSummary struct {
	InputFile  string
	Candidates []CandidateRow
	Frames     int
	Pairs      int
	Elapsed    time.Duration
}

// RenderConfigSummary contains render settings.
type RenderConfigSummary struct {
	Mode      string
	Format    string
	Loop      string
	Crossfade string
	Encoder   string
	Quality   string
	Filter    string
}

// ProgressSnapshot contains render progress information.
type ProgressSnapshot struct {
	Percent float64
	Speed   float32
	FPS     float32
	ETA     time.Duration
}

// RenderOutcome contains final render results.
type RenderOutcome struct {
	InputFile  string
	OutputFile string
	OutputPath string
	Size       uint64
	DurationMs float64
	MimeType   string
	TotalTime  time.Duration
}

// ReporterError contains error information.
type ReporterError struct {
	Title      string
	Message    string
	Context    string
	Suggestion string
}
