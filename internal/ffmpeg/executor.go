package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/five82/seamloop/internal/errors"
)

// stderrTailLimit bounds how much ffmpeg stderr is kept for error messages.
const stderrTailLimit = 4096

// Executor runs ffmpeg. One Executor is an engine handle owned by a single
// worker context; Close marks it unusable.
type Executor struct {
	logger     zerolog.Logger
	ffmpegPath string
	threads    int
	closed     atomic.Bool
}

// NewExecutor looks up ffmpeg on PATH and returns an executor for it.
func NewExecutor(logger zerolog.Logger, threads int) (*Executor, error) {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, errors.NewCommandStartError("ffmpeg", err)
	}
	return &Executor{
		logger:     logger.With().Str("component", "ffmpeg").Logger(),
		ffmpegPath: path,
		threads:    threads,
	}, nil
}

// Close releases the handle. Further calls fail.
func (e *Executor) Close() error {
	e.closed.Store(true)
	return nil
}

func (e *Executor) baseArgs() []string {
	args := []string{"-y", "-hide_banner", "-nostdin"}
	if e.threads > 0 {
		args = append(args, "-threads", fmt.Sprintf("%d", e.threads))
	}
	return args
}

// Run executes ffmpeg with args, reporting progress against durationSecs.
// Failures are returned as command errors; cancellation as a cancelled error.
func (e *Executor) Run(ctx context.Context, args []string, durationSecs float64, callback ProgressCallback) error {
	if e.closed.Load() {
		return errors.NewIOError("ffmpeg executor used after close", nil)
	}

	fullArgs := append(e.baseArgs(), args...)
	e.logger.Debug().Strs("args", fullArgs).Msg("executing ffmpeg")

	cmd := exec.CommandContext(ctx, e.ffmpegPath, fullArgs...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return errors.NewCommandStartError("ffmpeg", err)
	}

	if err := cmd.Start(); err != nil {
		return errors.NewCommandStartError("ffmpeg", err)
	}

	tail := newTailBuffer(stderrTailLimit)
	parseProgress(stderr, tail, durationSecs, callback, func(line string) {
		e.logger.Debug().Str("stderr", line).Msg("ffmpeg")
	})

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return errors.NewCancelledError()
		}
		return errors.WrapExecError("ffmpeg", err, lastLine(tail.String()))
	}

	e.logger.Debug().Msg("ffmpeg execution completed")
	return nil
}

// FrameStreamSpec describes a fixed-rate raw frame extraction.
type FrameStreamSpec struct {
	FPS    uint32
	Width  int
	Height int
	Frames int
}

// FrameBytes is the size of one bgr24 frame.
func (s FrameStreamSpec) FrameBytes() int {
	return s.Width * s.Height * 3
}

// Filter returns the -vf chain. Clone padding at the end plus -frames:v
// guarantees exactly Frames frames even when the source ends early.
func (s FrameStreamSpec) Filter() string {
	return NewVideoFilterChain().
		AddFilter(fmt.Sprintf("fps=%d", s.FPS)).
		AddFilter(fmt.Sprintf("scale=%d:%d", s.Width, s.Height)).
		AddFilter("tpad=stop_mode=clone:stop=-1").
		Build()
}

// Args returns the full argument list reading path to raw frames on stdout.
func (s FrameStreamSpec) Args(path string) []string {
	return []string{
		"-i", path,
		"-an",
		"-vf", s.Filter(),
		"-frames:v", fmt.Sprintf("%d", s.Frames),
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"pipe:1",
	}
}

// FrameFunc receives each decoded frame in presentation order. The slice is
// reused between calls and must be copied if retained.
type FrameFunc func(index int, bgr []byte) error

// StreamFrames decodes spec.Frames frames from path and passes each to fn.
func (e *Executor) StreamFrames(ctx context.Context, path string, spec FrameStreamSpec, fn FrameFunc) error {
	if e.closed.Load() {
		return errors.NewIOError("ffmpeg executor used after close", nil)
	}
	if spec.Frames <= 0 || spec.FrameBytes() <= 0 {
		return errors.NewDecodeError(fmt.Sprintf("nothing to sample from %s", path), nil)
	}

	fullArgs := append(e.baseArgs(), spec.Args(path)...)
	e.logger.Debug().Strs("args", fullArgs).Int("frames", spec.Frames).Msg("streaming frames")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.ffmpegPath, fullArgs...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.NewCommandStartError("ffmpeg", err)
	}
	tail := newTailBuffer(stderrTailLimit)
	cmd.Stderr = tail

	if err := cmd.Start(); err != nil {
		return errors.NewCommandStartError("ffmpeg", err)
	}

	reader := bufio.NewReaderSize(stdout, spec.FrameBytes())
	frame := make([]byte, spec.FrameBytes())
	count := 0
	var streamErr error
	for count < spec.Frames {
		if _, err := io.ReadFull(reader, frame); err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				streamErr = errors.NewIOError("reading frame stream", err)
			}
			break
		}
		if err := fn(count, frame); err != nil {
			streamErr = err
			cancel()
			break
		}
		count++
	}

	// Drain so ffmpeg can exit if it produced more than we asked for.
	_, _ = io.Copy(io.Discard, stdout)
	waitErr := cmd.Wait()

	if streamErr != nil {
		return streamErr
	}
	if ctx.Err() != nil {
		return errors.NewCancelledError()
	}
	if waitErr != nil {
		return errors.NewDecodeError(fmt.Sprintf("cannot decode %s", path),
			errors.WrapExecError("ffmpeg", waitErr, lastLine(tail.String())))
	}
	if count < spec.Frames {
		return errors.NewDecodeError(fmt.Sprintf("decoded %d of %d frames from %s", count, spec.Frames, path), nil)
	}
	return nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return len(p), nil
}

func (t *tailBuffer) WriteByte(c byte) error {
	_, err := t.Write([]byte{c})
	return err
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}

// lastLine returns the last non-empty line, which is where ffmpeg puts the
// fatal message.
func lastLine(s string) string {
	lines := strings.FieldsFunc(s, func(r rune) bool { return r == '\n' || r == '\r' })
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
