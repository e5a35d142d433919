package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"pagepass/internal/api"
	"pagepass/internal/ipc"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var bookID int64
	var user string
	var types []string
	var limit int
	var asJSON bool

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show the circulation audit ledger, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := ipc.HistoryRequest{BookID: bookID, UserID: user, Types: normalizeTypes(types), Limit: limit}
			return ctx.withClient(func(client *ipc.Client) error {
				events, err := client.History(req)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.ListResponse[api.HistoryEvent]{Items: events})
				}
				if len(events) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No history yet")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(historyColumns, buildHistoryRows(events), false))
				return nil
			})
		},
	}
	historyCmd.Flags().Int64Var(&bookID, "book", 0, "Only events for this book")
	historyCmd.Flags().StringVar(&user, "user", "", "Only events for this user")
	historyCmd.Flags().StringSliceVarP(&types, "type", "t", nil, "Only these event types")
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum events to show (default 100)")
	historyCmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Count ledger events by type",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := ipc.HistoryRequest{BookID: bookID, UserID: user}
			return ctx.withClient(func(client *ipc.Client) error {
				counts, err := client.HistoryStats(req)
				if err != nil {
					return err
				}
				if len(counts) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No history yet")
					return nil
				}
				rows := make([][]string, 0, len(counts))
				for _, c := range counts {
					rows = append(rows, []string{c.Type, strconv.Itoa(c.Count)})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]column{col("Event"), numCol("Count")}, rows, false))
				return nil
			})
		},
	}
	historyCmd.AddCommand(statsCmd)
	return historyCmd
}
