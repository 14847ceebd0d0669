package render

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	coreerrors "github.com/five82/seamloop/internal/errors"
	"github.com/five82/seamloop/internal/ffmpeg"
	"github.com/five82/seamloop/internal/ffprobe"
	"github.com/five82/seamloop/internal/logging"
	"github.com/five82/seamloop/internal/search"
	"github.com/five82/seamloop/internal/seam"
)

type fakeExecutor struct {
	calls   int
	args    []string
	write   []byte
	err     error
	percent []float64
}

func (f *fakeExecutor) Run(ctx context.Context, args []string, durationSecs float64, cb ffmpeg.ProgressCallback) error {
	f.calls++
	f.args = args
	for _, p := range f.percent {
		cb(ffmpeg.Progress{Percent: p})
	}
	if f.err != nil {
		return f.err
	}
	if f.write != nil {
		return os.WriteFile(args[len(args)-1], f.write, 0644)
	}
	return nil
}

func loop(startMs, endMs float64) search.Candidate {
	return search.Candidate{StartMs: startMs, EndMs: endMs, Score: 0.8}
}

func TestRenderCandidate_InvalidConfigSkipsEngine(t *testing.T) {
	exec := &fakeExecutor{}
	r := New(exec, t.TempDir(), logging.Nop())

	opts := seam.DefaultOptions()
	opts.Mode = seam.ModeCrossfade
	opts.CrossfadeMs = 4000

	_, err := r.RenderCandidate(context.Background(), "in.mp4", loop(1000, 5000), opts, nil)
	if !coreerrors.IsKind(err, coreerrors.KindRenderConfig) {
		t.Fatalf("expected RenderConfigError, got %v", err)
	}
	if exec.calls != 0 {
		t.Errorf("engine invoked %d times for an invalid config", exec.calls)
	}
}

func TestRender_ReturnsBuffer(t *testing.T) {
	tmp := t.TempDir()
	exec := &fakeExecutor{write: []byte("GIF89a"), percent: []float64{10, 5, 60, 130}}
	r := New(exec, tmp, logging.Nop())

	opts := seam.DefaultOptions()
	opts.Mode = seam.ModePingPong
	opts.Format = seam.FormatGIF

	var seen []float64
	res, err := r.RenderCandidate(context.Background(), "in.mp4", loop(0, 2000), opts, func(p float64) {
		seen = append(seen, p)
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if string(res.Buffer) != "GIF89a" || res.MimeType != "image/gif" {
		t.Errorf("unexpected result %q %s", res.Buffer, res.MimeType)
	}
	if res.DurationMs != 4000 {
		t.Errorf("DurationMs = %v, want 4000", res.DurationMs)
	}

	want := []float64{10, 60, 100}
	if len(seen) != len(want) {
		t.Fatalf("progress = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("progress = %v, want %v", seen, want)
		}
	}

	entries, _ := os.ReadDir(tmp)
	if len(entries) != 0 {
		t.Errorf("render directory not removed: %v", entries)
	}
}

func TestRender_EngineFailure(t *testing.T) {
	exec := &fakeExecutor{err: coreerrors.NewCommandFailedError("ffmpeg", 1, "Invalid argument")}
	r := New(exec, t.TempDir(), logging.Nop())

	_, err := r.RenderCandidate(context.Background(), "in.mp4", loop(0, 2000), seam.DefaultOptions(), nil)
	if !coreerrors.IsKind(err, coreerrors.KindEncode) {
		t.Fatalf("expected EncodeError, got %v", err)
	}
	var cmdErr *coreerrors.CommandError
	if !errors.As(err, &cmdErr) {
		t.Error("EncodeError should wrap the command failure")
	}
	if exec.calls != 1 {
		t.Errorf("expected a single attempt, got %d", exec.calls)
	}
}

func TestRender_EmptyOutput(t *testing.T) {
	exec := &fakeExecutor{write: []byte{}}
	r := New(exec, t.TempDir(), logging.Nop())

	_, err := r.RenderCandidate(context.Background(), "in.mp4", loop(0, 2000), seam.DefaultOptions(), nil)
	if !coreerrors.IsKind(err, coreerrors.KindEncode) {
		t.Errorf("expected EncodeError, got %v", err)
	}
}

func TestRender_Cancelled(t *testing.T) {
	exec := &fakeExecutor{}
	r := New(exec, t.TempDir(), logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	plan, err := seam.NewPlan(loop(0, 2000), seam.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Render(ctx, "in.mp4", plan, nil); !coreerrors.IsCancelled(err) {
		t.Errorf("expected cancelled error, got %v", err)
	}
	if exec.calls != 0 {
		t.Error("engine should not run after cancellation")
	}
}

func TestRender_OutputPathInsideTempDir(t *testing.T) {
	tmp := t.TempDir()
	exec := &fakeExecutor{write: []byte("x")}
	r := New(exec, tmp, logging.Nop())

	if _, err := r.RenderCandidate(context.Background(), "in.mp4", loop(0, 2000), seam.DefaultOptions(), nil); err != nil {
		t.Fatal(err)
	}
	out := exec.args[len(exec.args)-1]
	if rel, err := filepath.Rel(tmp, out); err != nil || filepath.IsAbs(rel) || rel[:2] == ".." {
		t.Errorf("output %s not under %s", out, tmp)
	}
	if filepath.Ext(out) != ".mp4" {
		t.Errorf("output extension = %s", filepath.Ext(out))
	}
}

func TestRender_TempDirUnusable(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	exec := &fakeExecutor{write: []byte("x")}
	r := New(exec, blocker, logging.Nop())

	_, err := r.RenderCandidate(context.Background(), "in.mp4", loop(0, 2000), seam.DefaultOptions(), nil)
	if !coreerrors.IsKind(err, coreerrors.KindIO) {
		t.Fatalf("expected IOError, got %v", err)
	}
	if exec.calls != 0 {
		t.Error("engine should not run without a scratch directory")
	}
}

func TestRender_CreatesMissingTempDir(t *testing.T) {
	tmp := filepath.Join(t.TempDir(), "seamloop", "tmp")
	r := New(&fakeExecutor{write: []byte("x")}, tmp, logging.Nop())

	if _, err := r.RenderCandidate(context.Background(), "in.mp4", loop(0, 2000), seam.DefaultOptions(), nil); err != nil {
		t.Fatalf("RenderCandidate() error = %v", err)
	}
	entries, err := os.ReadDir(tmp)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("scratch entries left behind: %d", len(entries))
	}
}

func TestRender_Validation(t *testing.T) {
	tests := []struct {
		name    string
		info    ffprobe.VideoInfo
		wantErr bool
	}{
		{
			name: "matching output",
			info: ffprobe.VideoInfo{DurationMs: 3990, CodecName: "h264", PixFmt: "yuv420p", Width: 640, Height: 360},
		},
		{
			name:    "truncated output",
			info:    ffprobe.VideoInfo{DurationMs: 2500, CodecName: "h264", PixFmt: "yuv420p"},
			wantErr: true,
		},
		{
			name:    "audio leaked",
			info:    ffprobe.VideoInfo{DurationMs: 4000, CodecName: "h264", PixFmt: "yuv420p", HasAudio: true},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var probed string
			probe := func(ctx context.Context, path string) (*ffprobe.VideoInfo, error) {
				probed = path
				info := tt.info
				return &info, nil
			}
			r := New(&fakeExecutor{write: []byte("mp4")}, t.TempDir(), logging.Nop()).WithValidation(probe)

			res, err := r.RenderCandidate(context.Background(), "in.mp4", loop(1000, 5000), seam.DefaultOptions(), nil)
			if filepath.Base(probed) != "loop.mp4" {
				t.Errorf("probed %q, want the rendered file", probed)
			}
			if tt.wantErr {
				if !coreerrors.IsKind(err, coreerrors.KindEncode) {
					t.Fatalf("expected EncodeError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			if res.Validation == nil || !res.Validation.IsValid() {
				t.Errorf("Validation = %+v", res.Validation)
			}
		})
	}
}

func TestExpectation(t *testing.T) {
	opts := seam.DefaultOptions()
	opts.Resolution = seam.Resolution{Width: 1279, Height: 721}
	plan, err := seam.NewPlan(loop(0, 3000), opts)
	if err != nil {
		t.Fatal(err)
	}
	exp := Expectation(plan)
	if exp.Width != 1278 || exp.Height != 720 || exp.FPS != 30 || exp.Encoder != "libx264" || exp.DurationMs != 3000 {
		t.Errorf("Expectation() = %+v", exp)
	}

	opts.Format = seam.FormatGIF
	plan, err = seam.NewPlan(loop(0, 3000), opts)
	if err != nil {
		t.Fatal(err)
	}
	exp = Expectation(plan)
	if exp.Width != 512 || exp.Height != 0 || exp.FPS != 15 || exp.PixFmt != "" {
		t.Errorf("gif Expectation() = %+v", exp)
	}
}
