// Package config provides configuration types and defaults for seamloop.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default constants
const (
	// DefaultAnalysisFPS is the frame rate frames are sampled at for analysis.
	DefaultAnalysisFPS uint32 = 12

	// DefaultAnalysisWidth is the width sampled frames are scaled to (aspect preserved).
	DefaultAnalysisWidth uint32 = 320

	// DefaultMinLoopMs is the shortest loop considered.
	DefaultMinLoopMs float64 = 1500

	// DefaultMaxLoopMs is the longest loop considered.
	DefaultMaxLoopMs float64 = 8000

	// DefaultPruneThreshold discards pairs scoring at or below it.
	DefaultPruneThreshold float64 = 0.6

	// DefaultTopK is the number of candidates kept after ranking.
	DefaultTopK = 10

	// DefaultHeatmapBuckets is the resolution of the visualization series.
	DefaultHeatmapBuckets = 100

	// DefaultHeatmapFiller is reported for buckets no kept candidate covers.
	DefaultHeatmapFiller float64 = 0.05

	// Composite score weights.
	DefaultWeightSSIM  float64 = 0.5
	DefaultWeightHist  float64 = 0.3
	DefaultWeightFlow  float64 = 0.2
	DefaultFlowScale   float64 = 2.0
	DefaultHistBins            = 32
	DefaultMemFraction float64 = 0.7

	// DefaultCrossfadeMs is the seam transition length for crossfade and flow-morph.
	DefaultCrossfadeMs float64 = 200

	// DefaultRenderFPS is the output frame rate for blended and reversed renders.
	DefaultRenderFPS = 30

	// GIF export settings.
	DefaultGIFFPS   = 15
	DefaultGIFWidth = 512

	// DefaultX264Preset is the libx264 preset used for mp4 output.
	DefaultX264Preset = "fast"

	// DefaultCRF is the libx264 quality for mp4 output.
	DefaultCRF uint8 = 20

	// DefaultVP9CRF is the libvpx-vp9 quality for webm output.
	DefaultVP9CRF uint8 = 32

	// MaxCRF is the maximum valid CRF value.
	MaxCRF uint8 = 63

	// DefaultListenAddr is the websocket server address.
	DefaultListenAddr = "localhost:8787"

	// DefaultDBFile is the job history database filename.
	DefaultDBFile = "seamloop.sqlite3"
)

// Preset represents a seamloop analysis preset grouping.
type Preset string

const (
	PresetQuick    Preset = "quick"
	PresetBalanced Preset = "balanced"
	PresetThorough Preset = "thorough"
)

// ParsePreset parses a string into a Preset.
func ParsePreset(s string) (Preset, error) {
	switch strings.ToLower(s) {
	case "quick":
		return PresetQuick, nil
	case "balanced":
		return PresetBalanced, nil
	case "thorough":
		return PresetThorough, nil
	default:
		return "", fmt.Errorf("%w: '%s', valid options: quick, balanced, thorough", ErrInvalidPreset, s)
	}
}

// String returns the string representation of the preset.
func (p Preset) String() string {
	return string(p)
}

// PresetValues contains bundled parameter values for a preset.
type PresetValues struct {
	AnalysisFPS   uint32
	AnalysisWidth uint32
	X264Preset    string
}

// GetPresetValues returns the values for a given preset.
func GetPresetValues(p Preset) PresetValues {
	switch p {
	case PresetQuick:
		return PresetValues{AnalysisFPS: 8, AnalysisWidth: 240, X264Preset: "veryfast"}
	case PresetThorough:
		return PresetValues{AnalysisFPS: 15, AnalysisWidth: 480, X264Preset: "medium"}
	default:
		return PresetValues{AnalysisFPS: DefaultAnalysisFPS, AnalysisWidth: DefaultAnalysisWidth, X264Preset: DefaultX264Preset}
	}
}

// AnalysisConfig holds frame sampling and scoring settings.
type AnalysisConfig struct {
	FPS            uint32  `yaml:"fps"`
	Width          uint32  `yaml:"width"`
	MinLoopMs      float64 `yaml:"min_loop_ms"`
	MaxLoopMs      float64 `yaml:"max_loop_ms"`
	PruneThreshold float64 `yaml:"prune_threshold"`
	TopK           int     `yaml:"top_k"`
	HeatmapBuckets int     `yaml:"heatmap_buckets"`
	HeatmapFiller  float64 `yaml:"heatmap_filler"`
	WeightSSIM     float64 `yaml:"weight_ssim"`
	WeightHist     float64 `yaml:"weight_hist"`
	WeightFlow     float64 `yaml:"weight_flow"`
	FlowScale      float64 `yaml:"flow_scale"`
	HistBins       int     `yaml:"hist_bins"`
	Workers        int     `yaml:"workers"`
	MemFraction    float64 `yaml:"memory_fraction"`
}

// RenderConfig holds default seam render settings.
type RenderConfig struct {
	CrossfadeMs float64 `yaml:"crossfade_ms"`
	FPS         int     `yaml:"fps"`
	GIFFPS      int     `yaml:"gif_fps"`
	GIFWidth    int     `yaml:"gif_width"`
	X264Preset  string  `yaml:"x264_preset"`
	CRF         uint8   `yaml:"crf"`
	VP9CRF      uint8   `yaml:"vp9_crf"`
}

// Config holds all configuration for analysis, rendering and serving.
type Config struct {
	LogDir     string `yaml:"log_dir"`
	TempDir    string `yaml:"temp_dir"`
	DBPath     string `yaml:"db_path"`
	ListenAddr string `yaml:"listen_addr"`
	Threads    int    `yaml:"ffmpeg_threads"`

	Analysis AnalysisConfig `yaml:"analysis"`
	Render   RenderConfig   `yaml:"render"`

	// Selected preset (optional)
	LoopPreset *Preset `yaml:"-"`
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		DBPath:     DefaultDBFile,
		ListenAddr: DefaultListenAddr,
		Analysis: AnalysisConfig{
			FPS:            DefaultAnalysisFPS,
			Width:          DefaultAnalysisWidth,
			MinLoopMs:      DefaultMinLoopMs,
			MaxLoopMs:      DefaultMaxLoopMs,
			PruneThreshold: DefaultPruneThreshold,
			TopK:           DefaultTopK,
			HeatmapBuckets: DefaultHeatmapBuckets,
			HeatmapFiller:  DefaultHeatmapFiller,
			WeightSSIM:     DefaultWeightSSIM,
			WeightHist:     DefaultWeightHist,
			WeightFlow:     DefaultWeightFlow,
			FlowScale:      DefaultFlowScale,
			HistBins:       DefaultHistBins,
			Workers:        runtime.NumCPU(),
			MemFraction:    DefaultMemFraction,
		},
		Render: RenderConfig{
			CrossfadeMs: DefaultCrossfadeMs,
			FPS:         DefaultRenderFPS,
			GIFFPS:      DefaultGIFFPS,
			GIFWidth:    DefaultGIFWidth,
			X264Preset:  DefaultX264Preset,
			CRF:         DefaultCRF,
			VP9CRF:      DefaultVP9CRF,
		},
	}
}

// ApplyPreset applies the given preset to the config.
func (c *Config) ApplyPreset(p Preset) {
	values := GetPresetValues(p)
	c.LoopPreset = &p
	c.Analysis.FPS = values.AnalysisFPS
	c.Analysis.Width = values.AnalysisWidth
	c.Render.X264Preset = values.X264Preset
}

// Load reads a YAML configuration file over the defaults. An empty path
// searches the standard locations; a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		path = findConfigFile()
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func findConfigFile() string {
	candidates := []string{"./seamloop.yaml", "./seamloop.yml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "seamloop", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	a := c.Analysis
	if a.FPS == 0 || a.Width == 0 {
		return fmt.Errorf("%w: fps=%d width=%d", ErrInvalidSampling, a.FPS, a.Width)
	}
	if a.MinLoopMs <= 0 || a.MaxLoopMs < a.MinLoopMs {
		return fmt.Errorf("%w: min=%.0fms max=%.0fms", ErrInvalidLoopBounds, a.MinLoopMs, a.MaxLoopMs)
	}
	if a.PruneThreshold < 0 || a.PruneThreshold > 1 {
		return fmt.Errorf("%w: got %g", ErrInvalidThreshold, a.PruneThreshold)
	}
	if a.WeightSSIM < 0 || a.WeightHist < 0 || a.WeightFlow < 0 {
		return fmt.Errorf("%w: weights must be non-negative", ErrInvalidWeights)
	}
	if sum := a.WeightSSIM + a.WeightHist + a.WeightFlow; math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("%w: weights sum to %g, want 1", ErrInvalidWeights, sum)
	}
	if a.TopK < 1 || a.HeatmapBuckets < 1 || a.HistBins < 2 {
		return fmt.Errorf("%w: top_k=%d buckets=%d bins=%d", ErrInvalidRanking, a.TopK, a.HeatmapBuckets, a.HistBins)
	}

	r := c.Render
	if r.CrossfadeMs < 0 {
		return fmt.Errorf("%w: crossfade must be non-negative, got %g", ErrInvalidRender, r.CrossfadeMs)
	}
	if r.FPS <= 0 || r.GIFFPS <= 0 || r.GIFWidth <= 0 {
		return fmt.Errorf("%w: fps=%d gif_fps=%d gif_width=%d", ErrInvalidRender, r.FPS, r.GIFFPS, r.GIFWidth)
	}
	if r.CRF > MaxCRF || r.VP9CRF > MaxCRF {
		return fmt.Errorf("%w: crf must be 0-%d", ErrInvalidRender, MaxCRF)
	}

	return nil
}

// GetTempDir returns the temp directory, falling back to the OS default.
func (c *Config) GetTempDir() string {
	if c.TempDir != "" {
		return c.TempDir
	}
	return os.TempDir()
}
