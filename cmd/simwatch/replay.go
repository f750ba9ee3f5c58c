package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sdibella/simwatch/internal/journal"
	"github.com/sdibella/simwatch/internal/metrics"
)

func newReplayCmd(ro *rootOptions) *cobra.Command {
	var (
		format    string
		sessionID string
	)

	cmd := &cobra.Command{
		Use:   "replay <journal>",
		Short: "Rebuild recorded sessions from a journal and print their metrics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if format == "" {
				format = formatFromPath(path)
			}

			replays, err := loadReplays(cmd, format, path, sessionID)
			if err != nil {
				return err
			}
			if len(replays) == 0 {
				return fmt.Errorf("no sessions in %s", path)
			}
			for _, r := range replays {
				printReplay(cmd.OutOrStdout(), r)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "journal format: jsonl|sqlite (default from file extension)")
	cmd.Flags().StringVar(&sessionID, "session", "", "only this session (sqlite default: most recent)")
	return cmd
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return "sqlite"
	}
	return "jsonl"
}

func loadReplays(cmd *cobra.Command, format, path, sessionID string) ([]*journal.Replay, error) {
	switch format {
	case "sqlite":
		db, err := journal.NewSQLite(path)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		r, err := db.Load(cmd.Context(), sessionID)
		if err != nil {
			return nil, err
		}
		return []*journal.Replay{r}, nil

	case "jsonl":
		all, err := journal.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if sessionID == "" {
			return all, nil
		}
		for _, r := range all {
			if r.SessionID == sessionID {
				return []*journal.Replay{r}, nil
			}
		}
		return nil, fmt.Errorf("session %s not in %s", sessionID, path)

	default:
		return nil, fmt.Errorf("unknown journal format %q", format)
	}
}

func printReplay(w io.Writer, r *journal.Replay) {
	fmt.Fprintf(w, "session %s  simulation %s (%s, %s)\n", r.SessionID, r.SimulationID, r.Origin, r.Status)
	fmt.Fprintf(w, "samples %d  trades %d  initial %.2f\n", len(r.Series), len(r.Trades), r.InitialCash)
	printMetrics(w, metrics.Compute(r.Series, r.Trades, r.InitialCash))
	fmt.Fprintln(w)
}
