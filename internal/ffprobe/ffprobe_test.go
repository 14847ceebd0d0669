package ffprobe

import (
	"context"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/five82/seamloop/internal/errors"
)

// loadTestData loads a JSON fixture from the testdata directory.
func loadTestData(t *testing.T, filename string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", filename))
	if err != nil {
		t.Fatalf("failed to load test data %s: %v", filename, err)
	}
	return data
}

func probeFixture(t *testing.T, filename string) (*VideoInfo, error) {
	t.Helper()
	probe, err := parseFFprobeOutput(loadTestData(t, filename))
	if err != nil {
		t.Fatalf("parseFFprobeOutput() error = %v", err)
	}
	return videoInfoFromProbe(probe, filename)
}

func TestVideoInfo_720p(t *testing.T) {
	info, err := probeFixture(t, "clip_720p.json")
	if err != nil {
		t.Fatalf("videoInfoFromProbe() error = %v", err)
	}

	if info.Width != 1280 || info.Height != 720 {
		t.Errorf("dimensions = %dx%d, want 1280x720", info.Width, info.Height)
	}
	if info.DurationMs != 10000 {
		t.Errorf("DurationMs = %v, want 10000 (format duration wins)", info.DurationMs)
	}
	if math.Abs(info.FrameRate-29.97) > 0.01 {
		t.Errorf("FrameRate = %v, want ~29.97", info.FrameRate)
	}
	if !info.HasAudio {
		t.Error("HasAudio should be true")
	}
	if info.IsHDR {
		t.Error("bt709 source is not HDR")
	}
}

func TestVideoInfo_StreamDurationFallback(t *testing.T) {
	info, err := probeFixture(t, "clip_hdr_silent.json")
	if err != nil {
		t.Fatalf("videoInfoFromProbe() error = %v", err)
	}

	if info.DurationMs != 6500 {
		t.Errorf("DurationMs = %v, want 6500 from stream duration", info.DurationMs)
	}
	if info.FrameRate != 24 {
		t.Errorf("FrameRate = %v, want 24 from r_frame_rate", info.FrameRate)
	}
	if info.HasAudio {
		t.Error("HasAudio should be false")
	}
	if !info.IsHDR {
		t.Error("bt2020/PQ source should be detected as HDR")
	}
}

func TestVideoInfo_DecodeErrors(t *testing.T) {
	tests := []string{"audio_only.json", "zero_duration.json", "no_dimensions.json"}

	for _, fixture := range tests {
		t.Run(fixture, func(t *testing.T) {
			_, err := probeFixture(t, fixture)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !errors.IsKind(err, errors.KindDecode) {
				t.Errorf("expected decode error, got %v", err)
			}
		})
	}
}

func TestParseFFprobeOutput_Invalid(t *testing.T) {
	if _, err := parseFFprobeOutput([]byte("{not json")); err == nil {
		t.Error("expected parse error")
	}
}

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"30/1", 30},
		{"0/0", 0},
		{"25", 25},
		{"", 0},
		{"x/y", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseFrameRate(tt.in); got != tt.want {
				t.Errorf("parseFrameRate(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestProbe_MissingFile(t *testing.T) {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not installed")
	}

	_, err := Probe(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"))
	if !errors.IsKind(err, errors.KindDecode) {
		t.Errorf("expected decode error for missing file, got %v", err)
	}
}
