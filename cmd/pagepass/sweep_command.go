package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pagepass/internal/ipc"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire stale offers now instead of waiting for the schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				report, err := client.Sweep()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Checked %d offers: %d passed, %d escalated, %d skipped, %d failed\n",
					report.Checked, report.Passed, report.Escalated, report.Skipped, report.Failed)
				return nil
			})
		},
	}
}
