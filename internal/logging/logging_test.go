package logging

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestSetupWritesRunLog(t *testing.T) {
	dir := t.TempDir()
	l, err := Setup(dir, true, false)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	l.Debug().Int("frames", 120).Msg("sampled")
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if !strings.HasPrefix(l.FilePath(), dir) || !strings.Contains(l.FilePath(), "seamloop_run_") {
		t.Errorf("unexpected log path %q", l.FilePath())
	}

	data, err := os.ReadFile(l.FilePath())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"frames":120`) {
		t.Errorf("debug event missing from log: %s", data)
	}
}

func TestSetupNoLog(t *testing.T) {
	l, err := Setup(t.TempDir(), false, true)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if l.FilePath() != "" {
		t.Errorf("expected no file path, got %q", l.FilePath())
	}
	l.Info().Msg("discarded")
	if err := l.Close(); err != nil {
		t.Errorf("Close() on disabled logger = %v", err)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	if l.FilePath() != "" || l.Close() != nil || l.Writer() == nil {
		t.Error("nil logger helpers should be no-ops")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := Tee(false, &buf)
	l.Debug().Msg("hidden")
	l.Info().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug output should be filtered when not verbose")
	}
	if !strings.Contains(out, "shown") {
		t.Error("info output missing")
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := WithComponent(Tee(false, &buf), "search")
	l.Info().Msg("pairs scored")
	if !strings.Contains(buf.String(), `"component":"search"`) {
		t.Errorf("component field missing: %s", buf.String())
	}
}
