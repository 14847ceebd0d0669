// Package features computes per-frame descriptors with OpenCV and compares
// frame pairs for loop scoring.
package features

import (
	"sync"

	"gocv.io/x/gocv"
)

// Arena owns every native Mat allocated for one analysis job. Close releases
// them all at once, so no per-frame release is needed on any exit path.
type Arena struct {
	mu     sync.Mutex
	mats   []gocv.Mat
	closed bool
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// NewMat allocates an empty Mat owned by the arena.
func (a *Arena) NewMat() gocv.Mat {
	return a.Track(gocv.NewMat())
}

// Track hands ownership of m to the arena. Tracking into a closed arena
// releases m immediately.
func (a *Arena) Track(m gocv.Mat) gocv.Mat {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		_ = m.Close()
		return m
	}
	a.mats = append(a.mats, m)
	return m
}

// Len returns the number of live Mats.
func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.mats)
}

// Closed reports whether Close has run.
func (a *Arena) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// Close releases every Mat. It is safe to call more than once.
func (a *Arena) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	for i := range a.mats {
		_ = a.mats[i].Close()
	}
	a.mats = nil
	a.closed = true
	return nil
}
