package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/five82/seamloop/internal/analysis"
	"github.com/five82/seamloop/internal/logging"
	"github.com/five82/seamloop/internal/protocol"
	"github.com/five82/seamloop/internal/search"
	"github.com/five82/seamloop/internal/store"
)

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if got := out.String(); got != "seamloop version "+appVersion+"\n" {
		t.Errorf("version output = %q", got)
	}
}

func TestSetupRejectsUnknownPreset(t *testing.T) {
	_, err := setup(globalArgs{preset: "grain", noLog: true})
	if err == nil {
		t.Fatal("expected an error for an unknown preset")
	}
}

func TestListJobs(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "h.sqlite3"), logging.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	ok := protocol.NewJobID()
	st.JobStarted(ok, protocol.KindAnalysis, "/clips/beach.mp4")
	st.JobFinished(protocol.NewAnalysisResult(ok, &analysis.Result{
		Candidates:      []search.Candidate{{StartMs: 1000, EndMs: 4000, Score: 0.9}},
		VideoDimensions: analysis.Dimensions{Width: 640, Height: 360},
		DurationMs:      10000,
		Pairs:           4953,
	}))
	bad := protocol.NewJobID()
	st.JobStarted(bad, protocol.KindRender, "/clips/city.mp4")
	st.JobFinished(protocol.Error{Header: protocol.Header{ID: bad, Kind: protocol.KindRender}, Message: "Encode error: boom"})

	jobs, err := st.ListJobs("", 0)
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	if err := listJobs(&out, jobs, time.Now()); err != nil {
		t.Fatal(err)
	}
	text := out.String()
	for _, want := range []string{"beach.mp4", "640x360", "4,953 pairs", "city.mp4", "Encode error: boom", "failed"} {
		if !strings.Contains(text, want) {
			t.Errorf("listing missing %q:\n%s", want, text)
		}
	}

	out.Reset()
	if err := showJob(&out, st, ok); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "RANK") || !strings.Contains(out.String(), "0.900") {
		t.Errorf("job detail:\n%s", out.String())
	}
}

func TestListJobsEmpty(t *testing.T) {
	var out bytes.Buffer
	if err := listJobs(&out, nil, time.Now()); err != nil {
		t.Fatal(err)
	}
	if out.String() != "No jobs recorded.\n" {
		t.Errorf("got %q", out.String())
	}
}
