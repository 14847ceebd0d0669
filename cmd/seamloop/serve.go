package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/five82/seamloop/internal/render"
	"github.com/five82/seamloop/internal/server"
	"github.com/five82/seamloop/internal/util"
)

// Render directories older than this were left by a crashed server.
const staleTempAge = 6 * time.Hour

func newServeCmd() *cobra.Command {
	var (
		addr      string
		noHistory bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the job protocol over a websocket at /ws",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := cur
			if addr == "" {
				addr = a.cfg.ListenAddr
			}

			opts := []server.Option{server.WithLogger(a.logger)}
			if !noHistory {
				if st := a.openStore(); st != nil {
					defer func() { _ = st.Close() }()
					opts = append(opts, server.WithHook(st))
				}
			}

			removed, err := util.CleanupStaleTempFiles(a.cfg.GetTempDir(), render.TempPrefix, staleTempAge)
			if err != nil {
				a.logger.Warn().Err(err).Msg("failed to clean stale render directories")
			} else if removed > 0 {
				a.logger.Info().Int("removed", removed).Msg("cleaned stale render directories")
			}

			a.reportHardware()
			a.rep.OperationComplete(fmt.Sprintf("Listening on ws://%s/ws", addr))
			return server.New(a.cfg, opts...).ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: config listen_addr)")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record jobs in the history database")
	return cmd
}
