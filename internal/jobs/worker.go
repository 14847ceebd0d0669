// Package jobs runs analysis and render jobs in isolated worker contexts.
// Each worker runs one job at a time; submitting a new job cancels the one
// in flight.
package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/five82/seamloop/internal/errors"
	"github.com/five82/seamloop/internal/ffmpeg"
	"github.com/five82/seamloop/internal/protocol"
	"github.com/five82/seamloop/internal/render"
	"github.com/five82/seamloop/internal/sampler"
)

// Engine is a transcoding handle owned by one job.
type Engine interface {
	sampler.FrameSource
	render.Executor
	Close() error
}

// EngineFactory opens a fresh engine handle.
type EngineFactory func() (Engine, error)

// FFmpegEngines returns a factory of ffmpeg executors.
func FFmpegEngines(logger zerolog.Logger, threads int) EngineFactory {
	return func() (Engine, error) {
		e, err := ffmpeg.NewExecutor(logger, threads)
		if err != nil {
			return nil, err
		}
		return e, nil
	}
}

// Sink receives notifications leaving a worker.
type Sink func(protocol.Notification)

// Hook observes job lifecycles, e.g. for persistence.
type Hook interface {
	JobStarted(id string, kind protocol.JobKind, videoRef string)
	JobFinished(n protocol.Notification)
}

// ProgressFunc reports overall job percent with a status message.
type ProgressFunc func(percent float64, message string)

// Job is a unit of work for a Worker. Run returns the terminal success
// notification or an error.
type Job struct {
	ID       string
	VideoRef string
	Run      func(ctx context.Context, eng Engine, progress ProgressFunc) (protocol.Notification, error)
}

// Worker owns one job context at a time.
type Worker struct {
	kind    protocol.JobKind
	factory EngineFactory
	sink    Sink
	hook    Hook
	tracker *protocol.Tracker
	logger  zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the worker logger.
func WithLogger(l zerolog.Logger) Option {
	return func(w *Worker) { w.logger = l }
}

// WithHook attaches a lifecycle hook.
func WithHook(h Hook) Option {
	return func(w *Worker) { w.hook = h }
}

// WithTracker marks each submitted job current in t.
func WithTracker(t *protocol.Tracker) Option {
	return func(w *Worker) { w.tracker = t }
}

// NewWorker creates a worker for kind delivering to sink.
func NewWorker(kind protocol.JobKind, factory EngineFactory, sink Sink, opts ...Option) *Worker {
	w := &Worker{
		kind:    kind,
		factory: factory,
		sink:    sink,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With().Str("component", "worker").Str("kind", string(kind)).Logger()
	return w
}

// Submit cancels any running job and queues job behind it. It returns the
// job id, generating one when job.ID is empty.
func (w *Worker) Submit(job Job) (string, error) {
	if job.ID == "" {
		job.ID = protocol.NewJobID()
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return "", errors.NewIOError(fmt.Sprintf("%s worker is closed", w.kind), nil)
	}
	if w.cancel != nil {
		w.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	prev := w.done
	done := make(chan struct{})
	w.cancel, w.done = cancel, done
	if w.tracker != nil {
		w.tracker.Begin(w.kind, job.ID)
	}
	w.mu.Unlock()

	go w.run(ctx, cancel, prev, done, job)
	return job.ID, nil
}

// Cancel cancels the running job, if any. Its terminal message is an error.
func (w *Worker) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
	}
}

// Wait blocks until the most recently submitted job has finished.
func (w *Worker) Wait() {
	w.mu.Lock()
	done := w.done
	w.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Close cancels the running job, waits for it and rejects further submits.
func (w *Worker) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.Cancel()
	w.Wait()
}

func (w *Worker) run(ctx context.Context, cancel context.CancelFunc, prev <-chan struct{}, done chan<- struct{}, job Job) {
	defer close(done)
	defer cancel()

	// One job per context: the superseded job drains first.
	if prev != nil {
		<-prev
	}

	out := newJobSink(w.kind, job.ID, w.sink, w.hook)
	log := w.logger.With().Str("job", job.ID).Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("job panicked")
			out.fail(w.internalError(fmt.Sprintf("internal error: %v", r)))
		}
	}()

	if w.hook != nil {
		w.hook.JobStarted(job.ID, w.kind, job.VideoRef)
	}
	if ctx.Err() != nil {
		out.fail(errors.NewCancelledError())
		return
	}

	eng, err := w.factory()
	if err != nil {
		out.fail(err)
		return
	}
	defer func() {
		if err := eng.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close engine")
		}
	}()

	log.Info().Str("video", job.VideoRef).Msg("job started")
	n, err := job.Run(ctx, eng, out.progress)
	switch {
	case err != nil && ctx.Err() != nil:
		log.Info().Msg("job cancelled")
		out.fail(errors.NewCancelledError())
	case err != nil:
		log.Error().Err(err).Msg("job failed")
		out.fail(err)
	case n == nil || !protocol.IsTerminal(n):
		out.fail(w.internalError("job finished without a result"))
	default:
		log.Info().Msg("job finished")
		out.finish(n)
	}
}

func (w *Worker) internalError(msg string) error {
	if w.kind == protocol.KindRender {
		return errors.NewEncodeError(msg, nil)
	}
	return errors.NewAnalysisError(msg, nil)
}
