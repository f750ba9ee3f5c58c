package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/sdibella/simwatch/internal/session"
	"github.com/sdibella/simwatch/internal/simapi"
)

func newWatchCmd(ro *rootOptions) *cobra.Command {
	var (
		speed    float64
		interval time.Duration
		follow   bool
	)

	cmd := &cobra.Command{
		Use:   "watch <simulation-id>",
		Short: "Follow a simulation and print its progress until it stops",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if err := simapi.ValidateID(id); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			opts, closeJournal, err := ro.sessionOptions()
			if err != nil {
				return err
			}
			defer closeJournal()

			out := cmd.OutOrStdout()
			every := rate.Sometimes{Interval: interval}
			setSpeed := cmd.Flags().Changed("speed")

			var (
				s    *session.Session
				once sync.Once
				last session.View
			)
			opts.OnUpdate = func(v session.View) {
				last = v
				every.Do(func() { printProgress(out, v) })
				// Sent once the feed is open; earlier it would be dropped.
				if setSpeed && v.Connected {
					// OnUpdate runs on the session loop; commands must not block it.
					once.Do(func() {
						go func() {
							if err := s.SetSpeed(ctx, speed); err != nil && ctx.Err() == nil {
								slog.Warn("set speed failed", "err", err)
							}
						}()
					})
				}
				if v.State.Status.Terminal() && !follow {
					cancel()
				}
			}
			s = session.New(id, opts)

			err = s.Run(ctx)
			if errors.Is(err, session.ErrUnresolved) {
				return err
			}
			if last.SessionID != "" {
				printView(out, last)
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&speed, "speed", 1, "set playback speed on start (clamped to 1..50)")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "minimum time between progress lines")
	cmd.Flags().BoolVar(&follow, "follow", false, "keep running after the simulation stops")
	return cmd
}
