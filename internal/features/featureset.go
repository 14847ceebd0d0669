package features

import (
	"bytes"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/five82/seamloop/internal/errors"
	"github.com/five82/seamloop/internal/similarity"
)

// Farneback parameters.
const (
	flowPyrScale   = 0.5
	flowLevels     = 3
	flowWinSize    = 15
	flowIterations = 3
	flowPolyN      = 5
	flowPolySigma  = 1.2
)

// FeatureSet is the ordered frame sequence of one analysis job. Frames are
// immutable once sampled; Compare is safe for concurrent use.
type FeatureSet struct {
	Frames []SampledFrame
	Width  int
	Height int
	FPS    uint32
}

// Len returns the number of frames.
func (fs *FeatureSet) Len() int {
	return len(fs.Frames)
}

// Compare scores frames i and j: global SSIM of their intensity buffers,
// 1 - Bhattacharyya distance of their histograms, and mean optical flow.
func (fs *FeatureSet) Compare(i, j int) (similarity.Subscores, error) {
	if i < 0 || j < 0 || i >= len(fs.Frames) || j >= len(fs.Frames) {
		return similarity.Subscores{}, errors.NewAnalysisError(
			fmt.Sprintf("frame pair (%d,%d) out of range [0,%d)", i, j, len(fs.Frames)), nil)
	}
	a := &fs.Frames[i]
	b := &fs.Frames[j]

	flowErr, err := fs.flowError(a, b)
	if err != nil {
		return similarity.Subscores{}, errors.NewAnalysisError(fmt.Sprintf("optical flow (%d,%d)", i, j), err)
	}

	return similarity.Subscores{
		SSIM:           similarity.GlobalSSIM(a.LumaBytes, b.LumaBytes),
		HistSimilarity: similarity.Clamp01(1 - similarity.Bhattacharyya(a.Hist, b.Hist)),
		FlowError:      flowErr,
	}, nil
}

func (fs *FeatureSet) flowError(a, b *SampledFrame) (float64, error) {
	if bytes.Equal(a.LumaBytes, b.LumaBytes) {
		return 0, nil
	}

	flow := gocv.NewMat()
	defer flow.Close()
	gocv.CalcOpticalFlowFarneback(a.Luma, b.Luma, &flow,
		flowPyrScale, flowLevels, flowWinSize, flowIterations, flowPolyN, flowPolySigma, 0)

	data, err := flow.DataPtrFloat32()
	if err != nil {
		return 0, err
	}
	return similarity.FlowError(data, fs.Width, fs.Height), nil
}
