package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/five82/seamloop/internal/protocol"
	"github.com/five82/seamloop/internal/store"
	"github.com/five82/seamloop/internal/util"
)

func newHistoryCmd() *cobra.Command {
	var (
		limit int
		kind  string
	)
	cmd := &cobra.Command{
		Use:   "history [job-id]",
		Short: "List recorded jobs, or show one job's candidates",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := cur
			st, err := store.Open(a.cfg.DBPath, a.logger)
			if err != nil {
				return a.fail("History unavailable", err, "Check db_path in the config file")
			}
			defer func() { _ = st.Close() }()

			w := cmd.OutOrStdout()
			if len(args) == 1 {
				return showJob(w, st, args[0])
			}

			var k protocol.JobKind
			switch kind {
			case "":
			case string(protocol.KindAnalysis), string(protocol.KindRender):
				k = protocol.JobKind(kind)
			default:
				return fmt.Errorf("unknown job kind %q, valid options: analysis, render", kind)
			}
			jobs, err := st.ListJobs(k, limit)
			if err != nil {
				return err
			}
			return listJobs(w, jobs, time.Now())
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum jobs to list (0 for all)")
	cmd.Flags().StringVar(&kind, "kind", "", "only list analysis or render jobs")
	return cmd
}

func listJobs(w io.Writer, jobs []store.Job, now time.Time) error {
	if len(jobs) == 0 {
		_, err := fmt.Fprintln(w, "No jobs recorded.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB\tKIND\tSTATUS\tVIDEO\tSTARTED\tDETAIL")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			j.ID, j.Kind, j.Status, util.GetFilename(j.VideoRef),
			humanize.RelTime(j.CreatedAt, now, "ago", "from now"), detail(j))
	}
	return tw.Flush()
}

func detail(j store.Job) string {
	switch {
	case j.Status == store.StatusFailed:
		return j.Error
	case j.Status != store.StatusSucceeded:
		return ""
	case j.Kind == string(protocol.KindRender):
		return fmt.Sprintf("%s, %s", j.MimeType, humanize.Bytes(uint64(j.OutputBytes)))
	default:
		return fmt.Sprintf("%dx%d, %s, %s pairs", j.Width, j.Height,
			util.FormatMs(j.DurationMs), humanize.Comma(int64(j.Pairs)))
	}
}

func showJob(w io.Writer, st *store.Store, id string) error {
	job, err := st.GetJob(id)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Job:     %s\nKind:    %s\nVideo:   %s\nStatus:  %s\n", job.ID, job.Kind, job.VideoRef, job.Status)
	if d := detail(*job); d != "" {
		fmt.Fprintf(w, "Detail:  %s\n", d)
	}
	if job.FinishedAt != nil {
		fmt.Fprintf(w, "Took:    %s\n", util.FormatDuration(job.FinishedAt.Sub(job.CreatedAt).Seconds()))
	}
	if job.Kind != string(protocol.KindAnalysis) {
		return nil
	}

	cands, err := st.Candidates(id)
	if err != nil {
		return err
	}
	if len(cands) == 0 {
		_, err := fmt.Fprintln(w, "\nNo candidates.")
		return err
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSTART\tEND\tSCORE\tSSIM\tHIST\tFLOW")
	for i, c := range cands {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.3f\t%.3f\t%.3f\t%.3f\n", i+1,
			util.FormatMs(c.StartMs), util.FormatMs(c.EndMs), c.Score,
			c.Subscores.SSIM, c.Subscores.HistSimilarity, c.Subscores.FlowError)
	}
	return tw.Flush()
}
