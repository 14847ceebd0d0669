package config

import "errors"

// Sentinel errors for configuration validation.
var (
	// ErrInvalidPreset indicates an unknown preset name was provided.
	ErrInvalidPreset = errors.New("invalid preset")

	// ErrInvalidSampling indicates a non-positive analysis frame rate or width.
	ErrInvalidSampling = errors.New("analysis sampling out of range")

	// ErrInvalidLoopBounds indicates min/max loop lengths that cannot bound a search.
	ErrInvalidLoopBounds = errors.New("loop bounds invalid")

	// ErrInvalidThreshold indicates a prune threshold outside [0,1].
	ErrInvalidThreshold = errors.New("prune threshold out of range")

	// ErrInvalidWeights indicates negative score weights or weights not summing to 1.
	ErrInvalidWeights = errors.New("score weights invalid")

	// ErrInvalidRanking indicates a non-positive top-K or heatmap bucket count.
	ErrInvalidRanking = errors.New("ranking configuration invalid")

	// ErrInvalidRender indicates invalid default render settings.
	ErrInvalidRender = errors.New("render configuration invalid")
)
