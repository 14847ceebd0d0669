package reporter

// CompositeReporter fans out events to multiple reporters.
type CompositeReporter struct {
	reporters []Reporter
}

// NewCompositeReporter creates a composite reporter.
func NewCompositeReporter(reporters ...Reporter) *CompositeReporter {
	return &CompositeReporter{reporters: reporters}
}

func (c *CompositeReporter) Hardware(summary HardwareSummary) {
	for _, r := range c.reporters {
		r.Hardware(summary)
	}
}

func (c *CompositeReporter) Initialization(summary InitializationSummary) {
	for _, r := range c.reporters {
		r.Initialization(summary)
	}
}

func (c *CompositeReporter) StageProgress(update StageProgress) {
	for _, r := range c.reporters {
		r.StageProgress(update)
	}
}

func (c *CompositeReporter) AnalysisComplete(summary AnalysisSummary) {
	for _, r := range c.reporters {
		r.AnalysisComplete(summary)
	}
}

func (c *CompositeReporter) RenderConfig(summary RenderConfigSummary) {
	for _, r := range c.reporters {
		r.RenderConfig(summary)
	}
}

func (c *CompositeReporter) RenderStarted() {
	for _, r := range c.reporters {
		r.RenderStarted()
	}
}

func (c *CompositeReporter) RenderProgress(progress ProgressSnapshot) {
	for _, r := range c.reporters {
		r.RenderProgress(progress)
	}
}

func (c *CompositeReporter) RenderComplete(summary RenderOutcome) {
	for _, r := range c.reporters {
		r.RenderComplete(summary)
	}
}

func (c *CompositeReporter) Warning(message string) {
	for _, r := range c.reporters {
		r.Warning(message)
	}
}

func (c *CompositeReporter) Error(err ReporterError) {
	for _, r := range c.reporters {
		r.Error(err)
	}
}

func (c *CompositeReporter) OperationComplete(message string) {
	for _, r := range c.reporters {
		r.OperationComplete(message)
	}
}

func (c *CompositeReporter) Verbose(message string) {
	for _, r := range c.reporters {
		r.Verbose(message)
	}
}
