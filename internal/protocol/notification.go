// Package protocol defines the job request and notification messages that
// cross the boundary between callers and worker contexts.
package protocol

import (
	"fmt"

	"github.com/five82/seamloop/internal/analysis"
)

// JobKind distinguishes the two independent job streams.
type JobKind string

const (
	KindAnalysis JobKind = "analysis"
	KindRender   JobKind = "render"
)

// Header identifies the job a notification belongs to.
type Header struct {
	ID   string  `json:"-"`
	Kind JobKind `json:"-"`
}

// JobID returns the originating job id, or "" when the job had none.
func (h Header) JobID() string { return h.ID }

// JobKind returns the job stream.
func (h Header) JobKind() JobKind { return h.Kind }

// Notification is a message from a worker context. The set of variants is
// closed: Progress, AnalysisResult, RenderResult, Error and Log.
type Notification interface {
	JobID() string
	JobKind() JobKind
	notification()
}

// Progress reports overall job completion in percent.
type Progress struct {
	Header
	Percent float64 `json:"progress"`
	Message string  `json:"message"`
}

// AnalysisResult is the terminal success message of an analysis job.
type AnalysisResult struct {
	Header
	Result analysis.Result
}

// RenderResult is the terminal success message of a render job.
type RenderResult struct {
	Header
	Buffer   []byte `json:"buffer"`
	MimeType string `json:"mimeType"`
}

// Error is the terminal failure message of any job.
type Error struct {
	Header
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Log carries a diagnostic line. It is never terminal.
type Log struct {
	Header
	Level   string `json:"level"`
	Message string `json:"message"`
}

func (Progress) notification()       {}
func (AnalysisResult) notification() {}
func (RenderResult) notification()   {}
func (Error) notification()          {}
func (Log) notification()            {}

// Visitor handles each notification variant.
type Visitor interface {
	VisitProgress(Progress)
	VisitAnalysisResult(AnalysisResult)
	VisitRenderResult(RenderResult)
	VisitError(Error)
	VisitLog(Log)
}

// Dispatch calls the Visitor method matching n's variant.
func Dispatch(n Notification, v Visitor) {
	switch m := n.(type) {
	case Progress:
		v.VisitProgress(m)
	case AnalysisResult:
		v.VisitAnalysisResult(m)
	case RenderResult:
		v.VisitRenderResult(m)
	case Error:
		v.VisitError(m)
	case Log:
		v.VisitLog(m)
	default:
		panic(fmt.Sprintf("protocol: unknown notification %T", n))
	}
}

// IsTerminal reports whether n ends its job.
func IsTerminal(n Notification) bool {
	switch n.(type) {
	case AnalysisResult, RenderResult, Error:
		return true
	default:
		return false
	}
}

// VisitorFuncs adapts optional functions to a Visitor. Nil fields ignore
// their variant.
type VisitorFuncs struct {
	Progress       func(Progress)
	AnalysisResult func(AnalysisResult)
	RenderResult   func(RenderResult)
	Error          func(Error)
	Log            func(Log)
}

var _ Visitor = VisitorFuncs{}

func (f VisitorFuncs) VisitProgress(m Progress) {
	if f.Progress != nil {
		f.Progress(m)
	}
}

func (f VisitorFuncs) VisitAnalysisResult(m AnalysisResult) {
	if f.AnalysisResult != nil {
		f.AnalysisResult(m)
	}
}

func (f VisitorFuncs) VisitRenderResult(m RenderResult) {
	if f.RenderResult != nil {
		f.RenderResult(m)
	}
}

func (f VisitorFuncs) VisitError(m Error) {
	if f.Error != nil {
		f.Error(m)
	}
}

func (f VisitorFuncs) VisitLog(m Log) {
	if f.Log != nil {
		f.Log(m)
	}
}
