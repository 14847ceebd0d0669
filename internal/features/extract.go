package features

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/five82/seamloop/internal/errors"
)

// Hue and saturation ranges in OpenCV's 8-bit HSV.
var histRanges = []float64{0, 180, 0, 256}

// SampledFrame holds the cached descriptors of one analysis frame.
type SampledFrame struct {
	Index       int
	TimestampMs float64
	// Luma is the arena-owned grayscale Mat used for optical flow.
	Luma gocv.Mat
	// LumaBytes is a Go copy of Luma for the global SSIM estimate.
	LumaBytes []byte
	// Hist is the bins×bins hue/saturation histogram, summing to 1.
	Hist []float32
}

// Extractor turns raw bgr24 frames into SampledFrames.
type Extractor struct {
	arena  *Arena
	width  int
	height int
	bins   int
}

// NewExtractor creates an extractor for width×height frames whose luma Mats
// live in arena.
func NewExtractor(arena *Arena, width, height, bins int) *Extractor {
	return &Extractor{arena: arena, width: width, height: height, bins: bins}
}

// Extract computes the intensity buffer and color histogram of one frame.
// bgr is not retained.
func (e *Extractor) Extract(bgr []byte, index int, timestampMs float64) (SampledFrame, error) {
	if len(bgr) != e.width*e.height*3 {
		return SampledFrame{}, errors.NewAnalysisError(
			fmt.Sprintf("frame %d has %d bytes, want %d", index, len(bgr), e.width*e.height*3), nil)
	}

	src, err := gocv.NewMatFromBytes(e.height, e.width, gocv.MatTypeCV8UC3, bgr)
	if err != nil {
		return SampledFrame{}, errors.NewAnalysisError(fmt.Sprintf("wrapping frame %d", index), err)
	}
	defer src.Close()

	luma := e.arena.NewMat()
	gocv.CvtColor(src, &luma, gocv.ColorBGRToGray)
	if luma.Empty() {
		return SampledFrame{}, errors.NewAnalysisError(fmt.Sprintf("grayscale conversion of frame %d failed", index), nil)
	}

	hist, err := hueSatHistogram(src, e.bins)
	if err != nil {
		return SampledFrame{}, errors.NewAnalysisError(fmt.Sprintf("histogram of frame %d", index), err)
	}

	return SampledFrame{
		Index:       index,
		TimestampMs: timestampMs,
		Luma:        luma,
		LumaBytes:   luma.ToBytes(),
		Hist:        hist,
	}, nil
}

// hueSatHistogram computes an L1-normalized 2D hue/saturation histogram.
func hueSatHistogram(bgr gocv.Mat, bins int) ([]float32, error) {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(bgr, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	defer mask.Close()
	hist := gocv.NewMat()
	defer hist.Close()

	gocv.CalcHist([]gocv.Mat{hsv}, []int{0, 1}, mask, &hist, []int{bins, bins}, histRanges, false)
	gocv.Normalize(hist, &hist, 1, 0, gocv.NormL1)

	data, err := hist.DataPtrFloat32()
	if err != nil {
		return nil, err
	}
	if len(data) != bins*bins {
		return nil, fmt.Errorf("histogram has %d bins, want %d", len(data), bins*bins)
	}
	return append([]float32(nil), data...), nil
}
