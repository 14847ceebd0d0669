package jobs

import (
	"sync"

	"github.com/five82/seamloop/internal/protocol"
)

// jobSink stamps notifications with their job and enforces ordering:
// progress is clamped to [0,100] and never decreases, exactly one terminal
// message is delivered, and nothing follows it.
type jobSink struct {
	kind protocol.JobKind
	id   string
	out  Sink
	hook Hook

	mu       sync.Mutex
	last     float64
	sent     bool
	finished bool
}

func newJobSink(kind protocol.JobKind, id string, out Sink, hook Hook) *jobSink {
	return &jobSink{kind: kind, id: id, out: out, hook: hook}
}

func (s *jobSink) header() protocol.Header {
	return protocol.Header{ID: s.id, Kind: s.kind}
}

func (s *jobSink) progress(percent float64, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	percent = min(max(percent, 0), 100)
	if s.sent && percent < s.last {
		percent = s.last
	}
	s.last, s.sent = percent, true
	s.out(protocol.Progress{Header: s.header(), Percent: percent, Message: message})
}

func (s *jobSink) finish(n protocol.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.finished = true
	n = restamp(n, s.header())
	s.out(n)
	if s.hook != nil {
		s.hook.JobFinished(n)
	}
}

func (s *jobSink) fail(err error) {
	s.finish(protocol.NewError(s.kind, s.id, err))
}

// restamp sets the header of a terminal notification to the job's.
func restamp(n protocol.Notification, h protocol.Header) protocol.Notification {
	switch m := n.(type) {
	case protocol.AnalysisResult:
		m.Header = h
		return m
	case protocol.RenderResult:
		m.Header = h
		return m
	case protocol.Error:
		m.Header = h
		return m
	default:
		return n
	}
}
