package reporter

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/five82/seamloop/internal/util"
)

// TerminalReporter outputs human-friendly text to the terminal.
type TerminalReporter struct {
	mu         sync.Mutex
	out        io.Writer
	errOut     io.Writer
	progress   *progressbar.ProgressBar
	maxPercent float64
	lastStage  string
	verbose    bool
	cyan       *color.Color
	green      *color.Color
	yellow     *color.Color
	red        *color.Color
	magenta    *color.Color
	bold       *color.Color
	faint      *color.Color
}

// NewTerminalReporter creates a terminal reporter on stdout and stderr.
func NewTerminalReporter(verbose bool) *TerminalReporter {
	return NewTerminalReporterWithWriter(os.Stdout, os.Stderr, verbose)
}

// NewTerminalReporterWithWriter creates a terminal reporter with custom writers.
func NewTerminalReporterWithWriter(out, errOut io.Writer, verbose bool) *TerminalReporter {
	return &TerminalReporter{
		out:     out,
		errOut:  errOut,
		verbose: verbose,
		cyan:    color.New(color.FgCyan, color.Bold),
		green:   color.New(color.FgGreen),
		yellow:  color.New(color.FgYellow, color.Bold),
		red:     color.New(color.FgRed, color.Bold),
		magenta: color.New(color.FgMagenta),
		bold:    color.New(color.Bold),
		faint:   color.New(color.Faint),
	}
}

func (r *TerminalReporter) finishProgress() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.progress != nil {
		_ = r.progress.Finish()
		r.progress = nil
	}
	r.maxPercent = 0
}

func (r *TerminalReporter) section(title string) {
	_, _ = fmt.Fprintln(r.out)
	_, _ = r.cyan.Fprintln(r.out, title)
}

// printLabel prints a bold label with fixed width padding followed by a value.
// Width is applied to the plain text before styling to keep alignment.
func (r *TerminalReporter) printLabel(width int, label, value string) {
	paddedLabel := fmt.Sprintf("%-*s", width, label)
	_, _ = fmt.Fprintf(r.out, "  %s %s\n", r.bold.Sprint(paddedLabel), value)
}

func (r *TerminalReporter) Hardware(summary HardwareSummary) {
	r.section("HARDWARE")
	r.printLabel(10, "Hostname:", summary.Hostname)
	r.printLabel(10, "Cores:", summary.Cores)
	if summary.Memory != "" {
		r.printLabel(10, "Memory:", summary.Memory)
	}
}

func (r *TerminalReporter) Initialization(summary InitializationSummary) {
	r.section("VIDEO")
	r.printLabel(11, "File:", summary.InputFile)
	r.printLabel(11, "Duration:", summary.Duration)
	r.printLabel(11, "Resolution:", summary.Resolution)
	r.printLabel(11, "Sampling:", summary.Sampling)
	r.printLabel(11, "Loop:", summary.LoopBounds)
}

// StageProgress prints a header on stage changes and drives a progress bar
// within a stage. Percent never moves backwards.
func (r *TerminalReporter) StageProgress(update StageProgress) {
	r.mu.Lock()
	changed := r.lastStage != update.Stage
	r.mu.Unlock()

	if changed {
		r.finishProgress()
		r.section(strings.ToUpper(update.Stage))
		_, _ = fmt.Fprintf(r.out, "  %s %s\n", r.magenta.Sprint("›"), update.Message)

		r.mu.Lock()
		r.lastStage = update.Stage
		r.progress = r.newBar(update.Stage)
		r.mu.Unlock()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.progress == nil {
		return
	}
	pct := clampPercent(update.Percent)
	if pct >= r.maxPercent {
		r.maxPercent = pct
		_ = r.progress.Set64(int64(pct))
	}
	desc := update.Message
	if update.ETA != nil {
		desc += ", eta " + util.FormatDuration(update.ETA.Seconds())
	}
	r.progress.Describe(desc)
}

func (r *TerminalReporter) newBar(label string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(
		100,
		progressbar.OptionSetDescription(""),
		progressbar.OptionSetWidth(40),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWriter(r.errOut),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionShowDescriptionAtLineEnd(),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      capitalize(label) + " [",
			BarEnd:        "]",
		}),
	)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func clampPercent(p float64) float64 {
	return min(max(p, 0), 100)
}

func (r *TerminalReporter) AnalysisComplete(summary AnalysisSummary) {
	r.finishProgress()
	r.mu.Lock()
	r.lastStage = ""
	r.mu.Unlock()

	r.section("CANDIDATES")
	if len(summary.Candidates) == 0 {
		_, _ = fmt.Fprintf(r.out, "  %s\n", r.yellow.Sprint("No loop scored above the threshold"))
	}
	for _, c := range summary.Candidates {
		score := fmt.Sprintf("%.3f", c.Score)
		if c.Rank == 1 {
			score = r.green.Add(color.Bold).Sprint(score)
		}
		_, _ = fmt.Fprintf(r.out, "  %2d. %8s -> %-8s %s  %s\n",
			c.Rank,
			util.FormatMs(c.StartMs),
			util.FormatMs(c.EndMs),
			r.faint.Sprintf("(%s)", util.FormatMs(c.EndMs-c.StartMs)),
			score)
	}
	_, _ = fmt.Fprintf(r.out, "  %s %s frames, %s pairs in %s\n",
		r.bold.Sprint("Scanned:"),
		util.FormatCount(int64(summary.Frames)),
		util.FormatCount(int64(summary.Pairs)),
		util.FormatDuration(summary.Elapsed.Seconds()))
}

func (r *TerminalReporter) RenderConfig(summary RenderConfigSummary) {
	r.section("RENDER")
	const w = 10
	r.printLabel(w, "Mode:", summary.Mode)
	r.printLabel(w, "Format:", summary.Format)
	r.printLabel(w, "Loop:", summary.Loop)
	if summary.Crossfade != "" {
		r.printLabel(w, "Crossfade:", summary.Crossfade)
	}
	r.printLabel(w, "Encoder:", summary.Encoder)
	if summary.Quality != "" {
		r.printLabel(w, "Quality:", summary.Quality)
	}
	if r.verbose && summary.Filter != "" {
		r.printLabel(w, "Filter:", r.faint.Sprint(summary.Filter))
	}
}

func (r *TerminalReporter) RenderStarted() {
	r.finishProgress()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastStage = "render"
	r.progress = r.newBar("render")
}

func (r *TerminalReporter) RenderProgress(progress ProgressSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.progress == nil {
		return
	}
	pct := clampPercent(progress.Percent)
	if pct >= r.maxPercent {
		r.maxPercent = pct
		_ = r.progress.Set64(int64(pct))
	}
	r.progress.Describe(fmt.Sprintf("speed %.1fx, fps %.1f, eta %s",
		progress.Speed, progress.FPS, util.FormatDuration(progress.ETA.Seconds())))
}

func (r *TerminalReporter) RenderComplete(summary RenderOutcome) {
	r.finishProgress()

	r.section("RESULTS")
	_, _ = fmt.Fprintf(r.out, "  %s %s\n", r.bold.Sprint("Output:"), r.bold.Sprint(summary.OutputFile))
	r.printLabel(9, "Size:", util.FormatBytes(summary.Size))
	r.printLabel(9, "Length:", util.FormatMs(summary.DurationMs))
	r.printLabel(9, "Type:", summary.MimeType)
	r.printLabel(9, "Time:", util.FormatDuration(summary.TotalTime.Seconds()))
	_, _ = fmt.Fprintf(r.out, "  %s %s\n", r.bold.Sprint("Saved to"), r.green.Sprint(summary.OutputPath))
}

func (r *TerminalReporter) Warning(message string) {
	_, _ = fmt.Fprintln(r.out)
	_, _ = r.yellow.Fprintf(r.out, "WARN: %s\n", message)
}

func (r *TerminalReporter) Error(err ReporterError) {
	r.finishProgress()
	_, _ = fmt.Fprintln(r.errOut)
	_, _ = r.red.Fprintf(r.errOut, "ERROR %s\n", err.Title)
	_, _ = fmt.Fprintf(r.errOut, "  %s\n", err.Message)
	if err.Context != "" {
		_, _ = fmt.Fprintf(r.errOut, "  Context: %s\n", err.Context)
	}
	if err.Suggestion != "" {
		_, _ = fmt.Fprintf(r.errOut, "  Suggestion: %s\n", err.Suggestion)
	}
}

func (r *TerminalReporter) OperationComplete(message string) {
	_, _ = fmt.Fprintln(r.out)
	_, _ = fmt.Fprintf(r.out, "%s %s\n", r.green.Add(color.Bold).Sprint("✓"), r.bold.Sprint(message))
}

func (r *TerminalReporter) Verbose(message string) {
	if !r.verbose {
		return
	}
	_, _ = fmt.Fprintf(r.out, "  %s\n", r.faint.Sprint(message))
}
