// Package logging provides run-log and console logging for seamloop.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a zerolog logger bound to a timestamped run-log file.
type Logger struct {
	zerolog.Logger
	file     *os.File
	filePath string
}

// Setup creates a logger that writes JSON lines to a timestamped log file
// in logDir. With noLog set it returns a logger that discards everything.
func Setup(logDir string, verbose, noLog bool) (*Logger, error) {
	if noLog {
		return &Logger{Logger: zerolog.Nop()}, nil
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
	}

	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("seamloop_run_%s.log", timestamp)
	filePath := filepath.Join(logDir, filename)

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file %s: %w", filePath, err)
	}

	l := &Logger{
		Logger:   zerolog.New(file).Level(levelFor(verbose)).With().Timestamp().Logger(),
		file:     file,
		filePath: filePath,
	}

	l.Info().Msg("seamloop starting")
	if verbose {
		l.Info().Msg("debug level logging enabled")
	}
	l.Info().Str("path", filePath).Msg("log file opened")

	return l, nil
}

// Close closes the log file.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// FilePath returns the path to the log file, or "" when file logging is off.
func (l *Logger) FilePath() string {
	if l == nil {
		return ""
	}
	return l.filePath
}

// Writer returns the underlying log file, or io.Discard.
func (l *Logger) Writer() io.Writer {
	if l == nil || l.file == nil {
		return io.Discard
	}
	return l.file
}

// Console returns a human-readable logger writing to w.
func Console(w io.Writer, verbose bool) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
	}
	return zerolog.New(output).Level(levelFor(verbose)).With().Timestamp().Logger()
}

// Tee returns a logger writing to every given writer.
func Tee(verbose bool, writers ...io.Writer) zerolog.Logger {
	if len(writers) == 0 {
		return zerolog.Nop()
	}
	multi := zerolog.MultiLevelWriter(writers...)
	return zerolog.New(multi).Level(levelFor(verbose)).With().Timestamp().Logger()
}

// WithComponent tags a logger with a component field.
func WithComponent(l zerolog.Logger, component string) zerolog.Logger {
	return l.With().Str("component", component).Logger()
}

// Nop returns a logger that discards all output.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

func levelFor(verbose bool) zerolog.Level {
	if verbose {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}
