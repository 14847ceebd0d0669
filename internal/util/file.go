package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// VideoExtensions is the list of supported source video file extensions.
var VideoExtensions = map[string]bool{
	".mkv":  true,
	".ts":   true,
	".avi":  true,
	".mp4":  true,
	".m4v":  true,
	".mov":  true,
	".webm": true,
	".ogv":  true,
	".gif":  true,
}

// OutputExtensions maps render output extensions to their format names.
var OutputExtensions = map[string]string{
	".mp4":  "mp4",
	".webm": "webm",
	".gif":  "gif",
}

// IsVideoFile checks if the given path is a readable video file.
func IsVideoFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}

	ext := strings.ToLower(filepath.Ext(path))
	return VideoExtensions[ext]
}

// GetFilename returns the final path element.
func GetFilename(path string) string {
	return filepath.Base(path)
}

// GetFileStem returns the filename without extension.
func GetFileStem(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext)
}

// EnsureDirectory creates a directory if it doesn't exist.
func EnsureDirectory(path string) error {
	return os.MkdirAll(path, 0755)
}

// LoopFilename builds the default output name for a rendered loop,
// e.g. "beach_loop_1250-5000_crossfade.mp4".
func LoopFilename(inputPath string, startMs, endMs float64, mode, format string) string {
	return fmt.Sprintf("%s_loop_%.0f-%.0f_%s.%s", GetFileStem(inputPath), startMs, endMs, mode, format)
}

// OutputPathInfo contains resolved output path information.
type OutputPathInfo struct {
	// OutputDir is the directory where the rendered loop is written.
	OutputDir string
	// FilenameOverride is set when the user names the output file directly.
	FilenameOverride string
	// Format is the container implied by FilenameOverride's extension.
	Format string
}

// ResolveOutputArg resolves the output argument into a directory and optional
// filename. An argument with a known output extension is a filename; anything
// else is a directory.
func ResolveOutputArg(outputPath string) (OutputPathInfo, error) {
	ext := strings.ToLower(filepath.Ext(outputPath))
	if ext == "" {
		return OutputPathInfo{OutputDir: outputPath}, nil
	}

	format, ok := OutputExtensions[ext]
	if !ok {
		return OutputPathInfo{}, fmt.Errorf("unsupported output extension %q: %w", ext, os.ErrInvalid)
	}

	return OutputPathInfo{
		OutputDir:        filepath.Dir(outputPath),
		FilenameOverride: filepath.Base(outputPath),
		Format:           format,
	}, nil
}
