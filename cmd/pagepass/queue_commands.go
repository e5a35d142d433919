package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pagepass/internal/api"
	"pagepass/internal/ipc"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Join, leave, and inspect book waitlists",
	}

	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueMineCommand(ctx))
	queueCmd.AddCommand(bookAction(ctx, "join", "Join a book's waitlist",
		func(cmd *cobra.Command, client *ipc.Client, user string, bookID int64) error {
			joined, err := client.JoinQueue(user, bookID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "You are number %d in line for book %d\n", joined.Position, joined.BookID)
			return nil
		}))
	queueCmd.AddCommand(bookAction(ctx, "leave", "Leave a book's waitlist",
		func(cmd *cobra.Command, client *ipc.Client, user string, bookID int64) error {
			if err := client.LeaveQueue(user, bookID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Left the waitlist for book %d\n", bookID)
			return nil
		}))
	queueCmd.AddCommand(newQueuePassCommand(ctx))

	return queueCmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <book-id>",
		Short: "Show a book's waitlist in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBookID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				entries, err := client.Queue(id)
				if err != nil {
					return err
				}
				return printQueue(cmd, entries, asJSON, "Nobody is waiting")
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newQueueMineCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "mine",
		Short: "Show every waitlist you are in",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withUserClient(func(client *ipc.Client, user string) error {
				entries, err := client.Waitlists(user)
				if err != nil {
					return err
				}
				return printQueue(cmd, entries, asJSON, "You are not waiting for any books")
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newQueuePassCommand(ctx *commandContext) *cobra.Command {
	var reason string
	cmd := bookAction(ctx, "pass", "Decline the current offer and keep your place for now",
		func(cmd *cobra.Command, client *ipc.Client, user string, bookID int64) error {
			result, err := client.Pass(user, bookID, reason)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if result.Escalated {
				fmt.Fprintf(out, "Passed %d times in a row; you moved to position %d", result.PassCount, result.Position)
				if result.PromotedUserID != "" {
					fmt.Fprintf(out, " and %s is up next", result.PromotedUserID)
				}
				fmt.Fprintln(out)
				return nil
			}
			fmt.Fprintf(out, "Pass recorded (%d so far); you stay at position %d\n", result.PassCount, result.Position)
			return nil
		})
	cmd.Flags().StringVar(&reason, "reason", "", "Why you are passing")
	return cmd
}

func printQueue(cmd *cobra.Command, entries []api.QueueEntry, asJSON bool, empty string) error {
	if asJSON {
		return writeJSON(cmd, api.ListResponse[api.QueueEntry]{Items: entries})
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), empty)
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), renderTable(queueColumns, buildQueueRows(entries), false))
	return nil
}

func normalizeTypes(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}
