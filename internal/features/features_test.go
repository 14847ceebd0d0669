package features

import (
	"math"
	"testing"

	"github.com/five82/seamloop/internal/errors"
	"github.com/five82/seamloop/internal/similarity"
)

const (
	testW = 64
	testH = 48
)

// gradientFrame renders a horizontal gradient shifted by dx pixels with the
// given blue/red tint.
func gradientFrame(dx int, tint byte) []byte {
	buf := make([]byte, testW*testH*3)
	for y := 0; y < testH; y++ {
		for x := 0; x < testW; x++ {
			v := byte(((x + dx) * 4) % 256)
			o := (y*testW + x) * 3
			buf[o] = tint
			buf[o+1] = v
			buf[o+2] = byte((y * 5) % 256)
		}
	}
	return buf
}

func buildSet(t *testing.T, arena *Arena, frames ...[]byte) *FeatureSet {
	t.Helper()
	ex := NewExtractor(arena, testW, testH, 32)
	fs := &FeatureSet{Width: testW, Height: testH, FPS: 12}
	for i, bgr := range frames {
		f, err := ex.Extract(bgr, i, float64(i)*1000/12)
		if err != nil {
			t.Fatalf("Extract(%d) error = %v", i, err)
		}
		fs.Frames = append(fs.Frames, f)
	}
	return fs
}

func TestExtract(t *testing.T) {
	arena := NewArena()
	defer arena.Close()

	fs := buildSet(t, arena, gradientFrame(0, 30))
	f := fs.Frames[0]

	if len(f.LumaBytes) != testW*testH {
		t.Errorf("luma has %d bytes, want %d", len(f.LumaBytes), testW*testH)
	}
	if len(f.Hist) != 32*32 {
		t.Fatalf("hist has %d bins, want 1024", len(f.Hist))
	}
	var sum float64
	for _, v := range f.Hist {
		if v < 0 || v > 1 {
			t.Fatalf("hist value %v out of [0,1]", v)
		}
		sum += float64(v)
	}
	if math.Abs(sum-1) > 1e-4 {
		t.Errorf("hist sums to %v, want 1", sum)
	}
	if arena.Len() != 1 {
		t.Errorf("arena holds %d mats, want 1", arena.Len())
	}
}

func TestExtract_WrongSize(t *testing.T) {
	arena := NewArena()
	defer arena.Close()

	ex := NewExtractor(arena, testW, testH, 32)
	_, err := ex.Extract(make([]byte, 10), 0, 0)
	if !errors.IsKind(err, errors.KindAnalysis) {
		t.Errorf("expected analysis error, got %v", err)
	}
}

func TestCompare_IdenticalFrames(t *testing.T) {
	arena := NewArena()
	defer arena.Close()

	frame := gradientFrame(3, 80)
	fs := buildSet(t, arena, frame, frame)

	s, err := fs.Compare(0, 1)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if math.Abs(s.SSIM-1) > 1e-9 {
		t.Errorf("SSIM = %v, want 1", s.SSIM)
	}
	if math.Abs(s.HistSimilarity-1) > 1e-6 {
		t.Errorf("HistSimilarity = %v, want 1", s.HistSimilarity)
	}
	if s.FlowError != 0 {
		t.Errorf("FlowError = %v, want 0", s.FlowError)
	}
	if score := similarity.DefaultWeights().Score(s); math.Abs(score-1) > 1e-6 {
		t.Errorf("score = %v, want 1", score)
	}
}

func TestCompare_DifferentFrames(t *testing.T) {
	arena := NewArena()
	defer arena.Close()

	fs := buildSet(t, arena, gradientFrame(0, 30), gradientFrame(6, 200))

	s, err := fs.Compare(0, 1)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if s.SSIM < 0 || s.SSIM > 1 || s.HistSimilarity < 0 || s.HistSimilarity > 1 {
		t.Errorf("subscores out of range: %+v", s)
	}
	if s.HistSimilarity >= 1-1e-6 {
		t.Errorf("different tints should not have identical histograms: %+v", s)
	}
	if s.FlowError <= 0 {
		t.Errorf("shifted frames should have motion: %+v", s)
	}
}

func TestCompare_OutOfRange(t *testing.T) {
	arena := NewArena()
	defer arena.Close()

	fs := buildSet(t, arena, gradientFrame(0, 0))
	if _, err := fs.Compare(0, 5); !errors.IsKind(err, errors.KindAnalysis) {
		t.Errorf("expected analysis error, got %v", err)
	}
}

func TestArenaClose(t *testing.T) {
	arena := NewArena()
	_ = arena.NewMat()
	_ = arena.NewMat()

	if arena.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", arena.Len())
	}
	if err := arena.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if arena.Len() != 0 || !arena.Closed() {
		t.Error("arena should be empty and closed")
	}
	if err := arena.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	_ = arena.NewMat()
	if arena.Len() != 0 {
		t.Error("tracking into a closed arena should release immediately")
	}
}
