package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sdibella/simwatch/internal/dashboard"
	"github.com/sdibella/simwatch/internal/session"
	"github.com/sdibella/simwatch/internal/simapi"
)

func newServeCmd(ro *rootOptions) *cobra.Command {
	var (
		addr string
		id   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard API for an observed simulation",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = ro.cfg.DashboardAddr()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts, closeJournal, err := ro.sessionOptions()
			if err != nil {
				return err
			}
			defer closeJournal()

			obs := session.NewObserver(opts)
			defer obs.Close()

			if id != "" {
				if err := simapi.ValidateID(id); err != nil {
					return err
				}
				obs.Observe(ctx, id)
			}

			srv, err := dashboard.NewServer(obs)
			if err != nil {
				return err
			}
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default DASHBOARD_HOST:DASHBOARD_PORT)")
	cmd.Flags().StringVar(&id, "id", "", "simulation to observe on start")
	return cmd
}
