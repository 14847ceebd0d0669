package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/five82/seamloop/internal/analysis"
	"github.com/five82/seamloop/internal/errors"
)

// Envelope type tags.
const (
	TypeProgress = "progress"
	TypeResult   = "result"
	TypeError    = "error"
	TypeLog      = "log"

	TypeAnalyze = "analyze"
	TypeRender  = "render"
	TypeCancel  = "cancel"
)

// Envelope is the JSON frame carrying one message.
type Envelope struct {
	Type    string          `json:"type"`
	Kind    JobKind         `json:"kind,omitempty"`
	JobID   string          `json:"jobId,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

type encoder struct {
	env     Envelope
	payload any
}

var _ Visitor = (*encoder)(nil)

func (e *encoder) VisitProgress(m Progress) {
	e.env.Type, e.payload = TypeProgress, m
}

func (e *encoder) VisitAnalysisResult(m AnalysisResult) {
	e.env.Type, e.payload = TypeResult, m.Result
}

func (e *encoder) VisitRenderResult(m RenderResult) {
	e.env.Type, e.payload = TypeResult, m
}

func (e *encoder) VisitError(m Error) {
	e.env.Type, e.payload = TypeError, m
}

func (e *encoder) VisitLog(m Log) {
	e.env.Type, e.payload = TypeLog, m
}

// Encode renders n as a JSON envelope.
func Encode(n Notification) ([]byte, error) {
	enc := &encoder{env: Envelope{Kind: n.JobKind(), JobID: n.JobID()}}
	Dispatch(n, enc)

	payload, err := json.Marshal(enc.payload)
	if err != nil {
		return nil, errors.NewProtocolError("failed to encode "+enc.env.Type, err)
	}
	enc.env.Payload = payload
	return json.Marshal(enc.env)
}

// Decode parses a notification envelope.
func Decode(data []byte) (Notification, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.NewProtocolError("malformed envelope", err)
	}
	h := Header{ID: env.JobID, Kind: env.Kind}
	if h.Kind != KindAnalysis && h.Kind != KindRender {
		return nil, errors.NewProtocolError(fmt.Sprintf("unknown job kind %q", env.Kind), nil)
	}

	var (
		n   Notification
		err error
	)
	switch env.Type {
	case TypeProgress:
		m := Progress{Header: h}
		err = unmarshalPayload(env, &m)
		n = m
	case TypeResult:
		if h.Kind == KindAnalysis {
			m := AnalysisResult{Header: h}
			err = unmarshalPayload(env, &m.Result)
			n = m
		} else {
			m := RenderResult{Header: h}
			err = unmarshalPayload(env, &m)
			n = m
		}
	case TypeError:
		m := Error{Header: h}
		err = unmarshalPayload(env, &m)
		n = m
	case TypeLog:
		m := Log{Header: h}
		err = unmarshalPayload(env, &m)
		n = m
	default:
		return nil, errors.NewProtocolError(fmt.Sprintf("unknown notification type %q", env.Type), nil)
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

// DecodeRequest parses a request envelope.
func DecodeRequest(data []byte) (Request, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.NewProtocolError("malformed envelope", err)
	}

	switch env.Type {
	case TypeAnalyze:
		var r AnalyzeRequest
		if err := unmarshalPayload(env, &r); err != nil {
			return nil, err
		}
		if r.JobID == "" {
			r.JobID = env.JobID
		}
		if r.VideoRef == "" {
			return nil, errors.NewProtocolError("analyze request has no videoRef", nil)
		}
		return r, nil
	case TypeRender:
		var r RenderRequest
		if err := unmarshalPayload(env, &r); err != nil {
			return nil, err
		}
		if r.JobID == "" {
			r.JobID = env.JobID
		}
		if r.VideoRef == "" {
			return nil, errors.NewProtocolError("render request has no videoRef", nil)
		}
		return r, nil
	case TypeCancel:
		kind := env.Kind
		if kind != KindAnalysis && kind != KindRender {
			return nil, errors.NewProtocolError(fmt.Sprintf("cannot cancel job kind %q", kind), nil)
		}
		return CancelRequest{Kind: kind}, nil
	default:
		return nil, errors.NewProtocolError(fmt.Sprintf("unknown request type %q", env.Type), nil)
	}
}

// EncodeRequest renders r as a JSON envelope.
func EncodeRequest(r Request) ([]byte, error) {
	env := Envelope{}
	var payload any
	switch m := r.(type) {
	case AnalyzeRequest:
		env.Type, env.Kind, env.JobID, payload = TypeAnalyze, KindAnalysis, m.JobID, m
	case RenderRequest:
		env.Type, env.Kind, env.JobID, payload = TypeRender, KindRender, m.JobID, m
	case CancelRequest:
		env.Type, env.Kind, payload = TypeCancel, m.Kind, struct{}{}
	default:
		panic(fmt.Sprintf("protocol: unknown request %T", r))
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.NewProtocolError("failed to encode "+env.Type, err)
	}
	env.Payload = data
	return json.Marshal(env)
}

func unmarshalPayload(env Envelope, v any) error {
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return errors.NewProtocolError(fmt.Sprintf("malformed %s payload", env.Type), err)
	}
	return nil
}

// NewAnalysisResult wraps a completed analysis.
func NewAnalysisResult(id string, r *analysis.Result) AnalysisResult {
	return AnalysisResult{Header: Header{ID: id, Kind: KindAnalysis}, Result: *r}
}

// NewError builds an Error notification from err, tagging it with the error
// kind when known.
func NewError(kind JobKind, id string, err error) Error {
	m := Error{Header: Header{ID: id, Kind: kind}, Message: err.Error()}
	if k, ok := errors.KindOf(err); ok {
		m.Code = k.String()
	}
	return m
}
