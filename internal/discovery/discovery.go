// Package discovery resolves analyze inputs into source video files.
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/five82/seamloop/internal/errors"
	"github.com/five82/seamloop/internal/util"
)

// Result lists the videos found under an input path.
type Result struct {
	Files        []string
	SkippedCount int
}

// FindVideos resolves path into source videos. A file must itself be a
// video; a directory yields its non-hidden video files sorted by name.
// Subdirectories are not searched.
func FindVideos(path string, logger zerolog.Logger) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.NewIOError(fmt.Sprintf("input does not exist: %s", path), err)
	}
	if !info.IsDir() {
		if !util.IsVideoFile(path) {
			return nil, errors.NewDecodeError(fmt.Sprintf("%s is not a supported video file", path), nil)
		}
		return &Result{Files: []string{path}}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, errors.NewIOError(fmt.Sprintf("cannot read directory %s", path), err)
	}

	result := &Result{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		full := filepath.Join(path, name)
		if util.IsVideoFile(full) {
			result.Files = append(result.Files, full)
		} else {
			result.SkippedCount++
		}
	}

	if len(result.Files) == 0 {
		return nil, errors.NewDecodeError(fmt.Sprintf("no video files found in %s", path), nil)
	}

	sort.Slice(result.Files, func(i, j int) bool {
		return strings.ToLower(filepath.Base(result.Files[i])) < strings.ToLower(filepath.Base(result.Files[j]))
	})

	logFound(result, logger)
	return result, nil
}

// logFound logs the first 5 files plus a count.
func logFound(r *Result, logger zerolog.Logger) {
	logger.Info().Int("videos", len(r.Files)).Int("skipped", r.SkippedCount).Msg("discovered source videos")
	for _, f := range r.Files[:min(5, len(r.Files))] {
		logger.Debug().Str("file", filepath.Base(f)).Msg("found")
	}
	if len(r.Files) > 5 {
		logger.Debug().Msgf("... and %d more", len(r.Files)-5)
	}
}
