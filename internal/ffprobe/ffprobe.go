// Package ffprobe extracts source video properties using ffprobe.
package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/five82/seamloop/internal/errors"
)

// VideoInfo contains the properties analysis and rendering need from a source.
type VideoInfo struct {
	Width      int
	Height     int
	DurationMs float64
	FrameRate  float64
	CodecName  string
	PixFmt     string
	HasAudio   bool
	IsHDR      bool
}

// ffprobeOutput represents the JSON output from ffprobe.
type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Duration   string `json:"duration"`
	FormatName string `json:"format_name"`
}

type ffprobeStream struct {
	CodecType      string `json:"codec_type"`
	CodecName      string `json:"codec_name"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	Duration       string `json:"duration"`
	AvgFrameRate   string `json:"avg_frame_rate"`
	RFrameRate     string `json:"r_frame_rate"`
	PixFmt         string `json:"pix_fmt"`
	ColorPrimaries string `json:"color_primaries"`
	ColorTransfer  string `json:"color_transfer"`
	ColorSpace     string `json:"color_space"`
}

// Probe runs ffprobe on path. Unreadable sources, sources without a video
// stream, zero duration and unknown dimensions all yield a decode error.
func Probe(ctx context.Context, path string) (*VideoInfo, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewCancelledError()
		}
		return nil, errors.NewDecodeError(fmt.Sprintf("cannot probe %s", path),
			errors.WrapExecError("ffprobe", err, strings.TrimSpace(stderr.String())))
	}

	probe, err := parseFFprobeOutput(output)
	if err != nil {
		return nil, errors.NewDecodeError(fmt.Sprintf("cannot probe %s", path), err)
	}

	return videoInfoFromProbe(probe, path)
}

func parseFFprobeOutput(data []byte) (*ffprobeOutput, error) {
	var result ffprobeOutput
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	return &result, nil
}

func videoInfoFromProbe(probe *ffprobeOutput, path string) (*VideoInfo, error) {
	var video *ffprobeStream
	hasAudio := false
	for i := range probe.Streams {
		switch probe.Streams[i].CodecType {
		case "video":
			if video == nil {
				video = &probe.Streams[i]
			}
		case "audio":
			hasAudio = true
		}
	}

	if video == nil {
		return nil, errors.NewDecodeError(fmt.Sprintf("no video stream found in %s", path), nil)
	}
	if video.Width <= 0 || video.Height <= 0 {
		return nil, errors.NewDecodeError(fmt.Sprintf("invalid dimensions in %s: %dx%d", path, video.Width, video.Height), nil)
	}

	durationSecs := parseSeconds(probe.Format.Duration)
	if durationSecs <= 0 {
		durationSecs = parseSeconds(video.Duration)
	}
	if durationSecs <= 0 {
		return nil, errors.NewDecodeError(fmt.Sprintf("zero or unknown duration in %s", path), nil)
	}

	fps := parseFrameRate(video.AvgFrameRate)
	if fps <= 0 {
		fps = parseFrameRate(video.RFrameRate)
	}

	return &VideoInfo{
		Width:      video.Width,
		Height:     video.Height,
		DurationMs: durationSecs * 1000,
		FrameRate:  fps,
		CodecName:  video.CodecName,
		PixFmt:     video.PixFmt,
		HasAudio:   hasAudio,
		IsHDR:      detectHDR(video.ColorPrimaries, video.ColorTransfer, video.ColorSpace),
	}, nil
}

func parseSeconds(s string) float64 {
	if s == "" || s == "N/A" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseFrameRate parses ffprobe rationals such as "30000/1001".
func parseFrameRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return parseSeconds(s)
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

// detectHDR determines if content is HDR based on color metadata.
func detectHDR(primaries, transfer, matrix string) bool {
	if containsCI(primaries, "bt2020") || containsCI(primaries, "bt2100") {
		return true
	}
	if containsCI(transfer, "smpte2084") || containsCI(transfer, "arib-std-b67") {
		return true
	}
	return containsCI(matrix, "bt2020")
}

func containsCI(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
