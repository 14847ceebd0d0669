package protocol

import (
	"github.com/google/uuid"

	"github.com/five82/seamloop/internal/search"
	"github.com/five82/seamloop/internal/seam"
)

// NewJobID returns a fresh random job id.
func NewJobID() string {
	return uuid.NewString()
}

// Request is a job submission. Variants are AnalyzeRequest, RenderRequest
// and CancelRequest.
type Request interface {
	request()
}

// AnalyzeOptions bounds the loop lengths searched. Zero values use defaults.
type AnalyzeOptions struct {
	MinLoopMs float64 `json:"minLoopMs,omitempty"`
	MaxLoopMs float64 `json:"maxLoopMs,omitempty"`
}

// AnalyzeRequest submits an analysis job.
type AnalyzeRequest struct {
	JobID      string         `json:"jobId,omitempty"`
	VideoRef   string         `json:"videoRef"`
	DurationMs float64        `json:"durationMs,omitempty"`
	Options    AnalyzeOptions `json:"options"`
}

// RenderSpec is the wire form of a render plan.
type RenderSpec struct {
	Candidate   search.Candidate `json:"candidate"`
	Mode        string           `json:"mode"`
	CrossfadeMs float64          `json:"crossfadeMs,omitempty"`
	Format      string           `json:"format"`
	Resolution  seam.Resolution  `json:"resolution"`
}

// Options resolves the wire fields over defaults.
func (s RenderSpec) Options(defaults seam.Options) (seam.Options, error) {
	opts := defaults
	if s.Mode != "" {
		mode, err := seam.ParseMode(s.Mode)
		if err != nil {
			return seam.Options{}, err
		}
		opts.Mode = mode
	}
	if s.Format != "" {
		format, err := seam.ParseFormat(s.Format)
		if err != nil {
			return seam.Options{}, err
		}
		opts.Format = format
	}
	if s.CrossfadeMs > 0 {
		opts.CrossfadeMs = s.CrossfadeMs
	}
	if !s.Resolution.IsZero() {
		opts.Resolution = s.Resolution
	}
	return opts, nil
}

// RenderRequest submits a render job.
type RenderRequest struct {
	JobID    string     `json:"jobId,omitempty"`
	VideoRef string     `json:"videoRef"`
	Plan     RenderSpec `json:"plan"`
}

// CancelRequest cancels the running job of Kind.
type CancelRequest struct {
	Kind JobKind `json:"kind"`
}

func (AnalyzeRequest) request() {}
func (RenderRequest) request()  {}
func (CancelRequest) request()  {}
