package rank

import (
	"reflect"
	"testing"

	"github.com/five82/seamloop/internal/search"
)

func cand(start, end, score float64) search.Candidate {
	return search.Candidate{StartMs: start, EndMs: end, Score: score}
}

func TestTop(t *testing.T) {
	in := []search.Candidate{
		cand(0, 2000, 0.7),
		cand(100, 2100, 0.9),
		cand(200, 2200, 0.7),
		cand(300, 2300, 0.8),
	}

	tests := []struct {
		name   string
		k      int
		starts []float64
	}{
		{"keep two", 2, []float64{100, 300}},
		{"stable ties", 4, []float64{100, 300, 0, 200}},
		{"k beyond length", 10, []float64{100, 300, 0, 200}},
		{"k zero", 0, []float64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Top(in, tt.k)
			starts := make([]float64, len(got))
			for i, c := range got {
				starts[i] = c.StartMs
			}
			if !reflect.DeepEqual(starts, tt.starts) {
				t.Errorf("Top(k=%d) starts = %v, want %v", tt.k, starts, tt.starts)
			}
		})
	}

	if in[0].StartMs != 0 || in[1].StartMs != 100 {
		t.Error("Top must not reorder its input")
	}
}

func TestTop_Empty(t *testing.T) {
	if got := Top(nil, 10); len(got) != 0 {
		t.Errorf("Top(nil) = %v, want empty", got)
	}
}

func TestHeatmap(t *testing.T) {
	kept := []search.Candidate{
		cand(0, 4000, 0.8),
		cand(2000, 6000, 0.9),
	}

	got := Heatmap(kept, 10000, 10, 0.05)
	// Bucket centers: 500, 1500, ..., 9500.
	want := []float64{0.8, 0.8, 0.9, 0.9, 0.9, 0.9, 0.05, 0.05, 0.05, 0.05}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Heatmap() = %v, want %v", got, want)
	}
}

func TestHeatmap_NoCandidates(t *testing.T) {
	got := Heatmap(nil, 10000, 100, 0.05)
	if len(got) != 100 {
		t.Fatalf("len = %d, want 100", len(got))
	}
	for i, v := range got {
		if v != 0.05 {
			t.Fatalf("bucket %d = %v, want filler", i, v)
		}
	}
}

func TestHeatmap_Deterministic(t *testing.T) {
	kept := []search.Candidate{cand(1500, 5500, 0.75)}
	a := Heatmap(kept, 8000, 100, 0.05)
	b := Heatmap(kept, 8000, 100, 0.05)
	if !reflect.DeepEqual(a, b) {
		t.Error("Heatmap should be deterministic")
	}
}
