package reporter

// Reporter defines the interface for progress reporting.
type Reporter interface {
	Hardware(summary HardwareSummary)
	Initialization(summary InitializationSummary)
	StageProgress(update StageProgress)
	AnalysisComplete(summary AnalysisSummary)
	RenderConfig(summary RenderConfigSummary)
	RenderStarted()
	RenderProgress(progress ProgressSnapshot)
	RenderComplete(summary RenderOutcome)
	Warning(message string)
	Error(err ReporterError)
	OperationComplete(message string)
	Verbose(message string)
}

// NullReporter is a no-op reporter that discards all updates.
type NullReporter struct{}

func (NullReporter) Hardware(HardwareSummary)             {}
func (NullReporter) Initialization(InitializationSummary) {}
func (NullReporter) StageProgress(StageProgress)          {}
func (NullReporter) AnalysisComplete(AnalysisSummary)     {}
func (NullReporter) RenderConfig(RenderConfigSummary)     {}
func (NullReporter) RenderStarted()                       {}
func (NullReporter) RenderProgress(ProgressSnapshot)      {}
func (NullReporter) RenderComplete(RenderOutcome)         {}
func (NullReporter) Warning(string)                       {}
func (NullReporter) Error(ReporterError)                  {}
func (NullReporter) OperationComplete(string)             {}
func (NullReporter) Verbose(string)                       {}
