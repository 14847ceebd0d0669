package ffmpeg

import (
	"context"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/five82/seamloop/internal/errors"
	"github.com/five82/seamloop/internal/logging"
)

func TestArgsBuilder(t *testing.T) {
	got := NewArgsBuilder().
		Input("in.mp4").
		FilterComplex("[0:v]trim=start=1:end=5,setpts=PTS-STARTPTS[out]").
		Map("[out]").
		NoAudio().
		Codec("libx264").
		AddParam("-preset", "fast").
		CRF(20).
		Output("out.mp4").
		Build()

	want := []string{
		"-i", "in.mp4",
		"-filter_complex", "[0:v]trim=start=1:end=5,setpts=PTS-STARTPTS[out]",
		"-map", "[out]",
		"-an",
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "20",
		"out.mp4",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Build() =\n%v\nwant\n%v", got, want)
	}
}

func TestVideoFilterChain(t *testing.T) {
	chain := NewVideoFilterChain()
	if !chain.IsEmpty() || chain.Build() != "" {
		t.Error("new chain should be empty")
	}
	chain.AddFilter("fps=12").AddFilter("").AddFilter("scale=320:180")
	if got := chain.Build(); got != "fps=12,scale=320:180" {
		t.Errorf("Build() = %q", got)
	}
}

func TestFrameStreamSpec(t *testing.T) {
	spec := FrameStreamSpec{FPS: 12, Width: 320, Height: 180, Frames: 120}

	if spec.FrameBytes() != 320*180*3 {
		t.Errorf("FrameBytes() = %d", spec.FrameBytes())
	}
	if got := spec.Filter(); got != "fps=12,scale=320:180,tpad=stop_mode=clone:stop=-1" {
		t.Errorf("Filter() = %q", got)
	}

	args := strings.Join(spec.Args("clip.mp4"), " ")
	for _, want := range []string{"-i clip.mp4", "-frames:v 120", "-f rawvideo", "-pix_fmt bgr24", "pipe:1", "-an"} {
		if !strings.Contains(args, want) {
			t.Errorf("Args() %q missing %q", args, want)
		}
	}
}

func TestParseProgressLine(t *testing.T) {
	line := "frame=  60 fps= 30 q=28.0 size=     256kB time=00:00:02.00 bitrate= 1048.6kbits/s speed=2.00x"
	p := parseProgressLine(line, 4.0)

	if p.CurrentFrame != 60 {
		t.Errorf("CurrentFrame = %d, want 60", p.CurrentFrame)
	}
	if p.FPS != 30 {
		t.Errorf("FPS = %v, want 30", p.FPS)
	}
	if p.Percent != 50 {
		t.Errorf("Percent = %v, want 50", p.Percent)
	}
	if p.Speed != 2 {
		t.Errorf("Speed = %v, want 2", p.Speed)
	}
	if p.ETA != time.Second {
		t.Errorf("ETA = %v, want 1s", p.ETA)
	}
}

func TestParseProgressLine_ClampsPercent(t *testing.T) {
	p := parseProgressLine("frame=999 fps=0.0 time=00:00:09.00 speed=1x", 8.0)
	if p.Percent != 100 {
		t.Errorf("Percent = %v, want 100", p.Percent)
	}
}

func TestParseProgress(t *testing.T) {
	input := "Input #0, mov\n" +
		"frame=  10 fps=0.0 time=00:00:01.00 speed=1x\r" +
		"frame=  20 fps=0.0 time=00:00:02.00 speed=1x\r" +
		"[out#0] muxing overhead\n"

	var updates []float64
	var logged []string
	sink := newTailBuffer(1024)
	parseProgress(strings.NewReader(input), sink, 4.0,
		func(p Progress) { updates = append(updates, p.Percent) },
		func(line string) { logged = append(logged, line) })

	if !reflect.DeepEqual(updates, []float64{25, 50}) {
		t.Errorf("updates = %v, want [25 50]", updates)
	}
	if len(logged) != 2 {
		t.Errorf("logged = %q, want two plain lines", logged)
	}
	if sink.String() != input {
		t.Error("sink should receive all stderr bytes")
	}
}

func TestTailBuffer(t *testing.T) {
	tb := newTailBuffer(8)
	_, _ = tb.Write([]byte("0123456789"))
	if got := tb.String(); got != "23456789" {
		t.Errorf("tail = %q", got)
	}
}

func TestLastLine(t *testing.T) {
	got := lastLine("frame=1\rsome info\nError opening input\n\n")
	if got != "Error opening input" {
		t.Errorf("lastLine() = %q", got)
	}
}

func TestExecutorClosed(t *testing.T) {
	e := &Executor{logger: logging.Nop()}
	_ = e.Close()
	if err := e.Run(context.Background(), []string{"-version"}, 0, nil); err == nil {
		t.Error("Run after Close should fail")
	}
}

func TestStreamFrames_Synthetic(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	e, err := NewExecutor(logging.Nop(), 1)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	src := filepath.Join(t.TempDir(), "src.mp4")
	gen := []string{"-f", "lavfi", "-i", "testsrc=size=160x120:rate=25:duration=1", "-pix_fmt", "yuv420p", src}
	if err := e.Run(context.Background(), gen, 1, nil); err != nil {
		t.Fatalf("generating source: %v", err)
	}

	// Ask for more frames than a 1s source holds at 12fps; clone padding fills the rest.
	spec := FrameStreamSpec{FPS: 12, Width: 64, Height: 48, Frames: 15}
	var indices []int
	err = e.StreamFrames(context.Background(), src, spec, func(i int, bgr []byte) error {
		if len(bgr) != spec.FrameBytes() {
			t.Errorf("frame %d has %d bytes", i, len(bgr))
		}
		indices = append(indices, i)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamFrames() error = %v", err)
	}
	if len(indices) != 15 {
		t.Errorf("got %d frames, want 15", len(indices))
	}
}

func TestStreamFrames_Unreadable(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	e, err := NewExecutor(logging.Nop(), 0)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	spec := FrameStreamSpec{FPS: 12, Width: 64, Height: 48, Frames: 3}
	err = e.StreamFrames(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"), spec,
		func(int, []byte) error { return nil })
	if !errors.IsKind(err, errors.KindDecode) {
		t.Errorf("expected decode error, got %v", err)
	}
}
