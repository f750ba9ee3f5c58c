package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sdibella/simwatch/internal/config"
	"github.com/sdibella/simwatch/internal/feed"
	"github.com/sdibella/simwatch/internal/journal"
	"github.com/sdibella/simwatch/internal/session"
	"github.com/sdibella/simwatch/internal/simapi"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type rootOptions struct {
	configPath string
	debug      bool

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	ro := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "simwatch",
		Short:         "Observe remote trading simulations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&ro.configPath, "config", "", "YAML config file (overrides SIMWATCH_CONFIG)")
	cmd.PersistentFlags().BoolVar(&ro.debug, "debug", false, "enable debug logging")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if ro.configPath != "" {
			os.Setenv("SIMWATCH_CONFIG", ro.configPath)
		}
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		ro.cfg = cfg

		level := parseLevel(cfg.LogLevel)
		if ro.debug {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	}

	cmd.AddCommand(
		newWatchCmd(ro),
		newServeCmd(ro),
		newListCmd(ro),
		newStopCmd(ro),
		newDeleteCmd(ro),
		newReplayCmd(ro),
	)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "simwatch %s\n", version)
		},
	})

	return cmd
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func (ro *rootOptions) client() *simapi.Client {
	return simapi.NewClient(ro.cfg.APIURL,
		simapi.WithHTTPClient(&http.Client{Timeout: ro.cfg.HTTPTimeout}),
		simapi.WithRateLimit(ro.cfg.RequestsPerSec, ro.cfg.RequestBurst),
	)
}

// sessionOptions wires the server client, the WebSocket feed and, when a
// journal path is configured, a recorder. The returned close func releases
// the recorder.
func (ro *rootOptions) sessionOptions() (session.Options, func(), error) {
	opts := session.Options{
		Source:     ro.client(),
		Transport:  &feed.WSTransport{ReadTimeout: ro.cfg.ReadTimeout},
		FeedURL:    ro.cfg.FeedURL,
		RetryDelay: ro.cfg.ReconnectDelay,
	}
	if ro.cfg.JournalPath == "" {
		return opts, func() {}, nil
	}

	rec, err := journal.Open(ro.cfg.JournalFormat, ro.cfg.JournalPath)
	if err != nil {
		return opts, nil, fmt.Errorf("journal init failed: %w", err)
	}
	slog.Info("journal opened", "path", ro.cfg.JournalPath, "format", ro.cfg.JournalFormat)
	opts.Recorder = rec
	return opts, func() {
		if err := rec.Close(); err != nil {
			slog.Error("failed to close journal", "err", err)
		}
	}, nil
}
