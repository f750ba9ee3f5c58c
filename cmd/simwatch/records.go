package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sdibella/simwatch/internal/simapi"
)

func newListCmd(ro *rootOptions) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List simulations known to the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sims, err := ro.client().List(cmd.Context(), limit, offset)
			if err != nil {
				return fmt.Errorf("list simulations: %w", err)
			}
			printSummaries(cmd.OutOrStdout(), sims)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	return cmd
}

func newStopCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <simulation-id>",
		Short: "Stop a running simulation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := simapi.ValidateID(args[0]); err != nil {
				return err
			}
			if err := ro.client().Stop(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("stop %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stopped %s\n", args[0])
			return nil
		},
	}
}

func newDeleteCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <simulation-id>",
		Short: "Delete a simulation record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := simapi.ValidateID(args[0]); err != nil {
				return err
			}
			if err := ro.client().Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("delete %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}
