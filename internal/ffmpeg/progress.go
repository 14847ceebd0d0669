package ffmpeg

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/five82/seamloop/internal/util"
)

// Progress represents ffmpeg progress information.
type Progress struct {
	CurrentFrame uint64
	Percent      float64
	Speed        float32
	FPS          float32
	ETA          time.Duration
	ElapsedSecs  float64
}

// ProgressCallback is called with progress updates while ffmpeg runs.
type ProgressCallback func(Progress)

var timeRegex = regexp.MustCompile(`time=(\d{2}:\d{2}:\d{2}\.?\d*)`)

// parseProgress reads ffmpeg stderr into sink, calling callback for stats
// lines and logLine for everything else.
func parseProgress(stderr io.Reader, sink io.ByteWriter, duration float64, callback ProgressCallback, logLine func(string)) {
	reader := bufio.NewReader(stderr)
	var lineBuf strings.Builder

	flush := func() {
		line := lineBuf.String()
		lineBuf.Reset()
		if line == "" {
			return
		}
		if strings.Contains(line, "frame=") && strings.Contains(line, "time=") {
			if callback != nil {
				callback(*parseProgressLine(line, duration))
			}
			return
		}
		if logLine != nil {
			logLine(line)
		}
	}

	for {
		b, err := reader.ReadByte()
		if err != nil {
			flush()
			return
		}
		_ = sink.WriteByte(b)

		// Stats lines end with \r, log lines with \n.
		if b == '\r' || b == '\n' {
			flush()
		} else {
			lineBuf.WriteByte(b)
		}
	}
}

// parseProgressLine extracts progress information from an ffmpeg stats line.
func parseProgressLine(line string, duration float64) *Progress {
	var elapsedSecs float64
	if matches := timeRegex.FindStringSubmatch(line); len(matches) >= 2 {
		if secs, ok := util.ParseFFmpegTime(matches[1]); ok {
			elapsedSecs = secs
		}
	}

	var frame uint64
	if v := fieldValue(line, "frame="); v != "" {
		if f, err := strconv.ParseUint(v, 10, 64); err == nil {
			frame = f
		}
	}

	var fps float32
	if v := fieldValue(line, "fps="); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			fps = float32(f)
		}
	}

	var speed float32
	if v := strings.TrimSuffix(fieldValue(line, "speed="), "x"); v != "" {
		if s, err := strconv.ParseFloat(v, 32); err == nil {
			speed = float32(s)
		}
	}

	var percent float64
	if duration > 0 {
		percent = min(elapsedSecs/duration*100, 100)
	}

	var eta time.Duration
	if speed > 0 && duration > 0 && elapsedSecs < duration {
		eta = time.Duration((duration - elapsedSecs) / float64(speed) * float64(time.Second))
	}

	return &Progress{
		CurrentFrame: frame,
		Percent:      percent,
		Speed:        speed,
		FPS:          fps,
		ETA:          eta,
		ElapsedSecs:  elapsedSecs,
	}
}

// fieldValue returns the whitespace-delimited value following key.
func fieldValue(line, key string) string {
	idx := strings.Index(line, key)
	if idx < 0 {
		return ""
	}
	remaining := strings.TrimLeft(line[idx+len(key):], " ")
	if end := strings.IndexAny(remaining, " \t\r\n"); end >= 0 {
		remaining = remaining[:end]
	}
	return remaining
}
