package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pagepass/internal/api"
	"pagepass/internal/faults"
	"pagepass/internal/ipc"
)

func newLendingCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newBorrowCommand(ctx),
		newReadyCommand(ctx),
		newHandoffsCommand(ctx),
		newConfirmCommand(ctx),
		newConfirmWithCommand(ctx),
	}
}

func newBorrowCommand(ctx *commandContext) *cobra.Command {
	return bookAction(ctx, "borrow", "Request an available book from its owner",
		func(cmd *cobra.Command, client *ipc.Client, user string, bookID int64) error {
			h, err := client.Borrow(user, bookID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Handoff %s opened with %s\n", h.ID, h.GiverID)
			fmt.Fprintln(out, "Confirm as receiver once you have the book in hand.")
			return nil
		})
}

func newReadyCommand(ctx *commandContext) *cobra.Command {
	return bookAction(ctx, "ready", "Mark a book you hold as ready to pass on",
		func(cmd *cobra.Command, client *ipc.Client, user string, bookID int64) error {
			ready, err := client.Ready(user, bookID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Handoff %s opened: pass the book to %s (%s)\n",
				ready.Handoff.ID, ready.RecipientID, strings.ReplaceAll(ready.Reason, "_", " "))
			return nil
		})
}

func newHandoffsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "handoffs",
		Short: "List your open handoffs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withUserClient(func(client *ipc.Client, user string) error {
				handoffs, err := client.OpenHandoffs(user)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.ListResponse[api.Handoff]{Items: handoffs})
				}
				if len(handoffs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No open handoffs")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(handoffColumns, buildHandoffRows(handoffs, user), false))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newConfirmCommand(ctx *commandContext) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "confirm <handoff-id> [handoff-id...]",
		Short: "Confirm your side of one or more handoffs",
		Long: "Confirm your side of one or more handoffs. Without --role the role is " +
			"taken from the handoff. Several ids are confirmed independently; one " +
			"failure does not stop the others.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withUserClient(func(client *ipc.Client, user string) error {
				items, err := resolveConfirmItems(client, user, args, role)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(items) == 1 {
					result, err := client.Confirm(user, items[0].HandoffID, items[0].Role)
					if err != nil {
						return err
					}
					fmt.Fprintln(out, describeConfirm(result))
					return nil
				}
				summary, err := client.ConfirmBatch(user, items)
				if err != nil {
					return err
				}
				printBatchSummary(cmd, summary)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&role, "role", "r", "", "Role to confirm as (giver or receiver)")
	return cmd
}

// resolveConfirmItems pairs each handoff id with a role. An explicit role
// applies to every id; otherwise the role still awaiting user is used.
func resolveConfirmItems(client *ipc.Client, user string, ids []string, role string) ([]api.BatchConfirmItem, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	items := make([]api.BatchConfirmItem, 0, len(ids))
	if role != "" {
		for _, id := range ids {
			items = append(items, api.BatchConfirmItem{HandoffID: strings.TrimSpace(id), Role: role})
		}
		return items, nil
	}

	open, err := client.OpenHandoffs(user)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]api.Handoff, len(open))
	for _, h := range open {
		byID[h.ID] = h
	}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		h, ok := byID[id]
		if !ok {
			return nil, faults.Wrap(faults.ErrNotFound, "confirm", fmt.Sprintf("no open handoff %s involving %s; pass --role to confirm anyway", id, user))
		}
		awaiting := h.AwaitingRole(user)
		if awaiting == "" {
			return nil, faults.Wrap(faults.ErrAlreadyConfirmed, "confirm", fmt.Sprintf("you already confirmed handoff %s", id))
		}
		items = append(items, api.BatchConfirmItem{HandoffID: id, Role: awaiting})
	}
	return items, nil
}

func newConfirmWithCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm-with <user>",
		Short: "Confirm every open handoff between you and another user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withUserClient(func(client *ipc.Client, user string) error {
				summary, err := client.ConfirmWith(user, args[0])
				if err != nil {
					return err
				}
				if len(summary.Items) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "Nothing to confirm with %s\n", args[0])
					return nil
				}
				printBatchSummary(cmd, summary)
				return nil
			})
		},
	}
}

func printBatchSummary(cmd *cobra.Command, summary api.BatchSummary) {
	out := cmd.OutOrStdout()
	fmt.Fprint(out, renderTable(batchColumns, buildBatchRows(summary), shouldColorize(out)))
	fmt.Fprintf(out, "%d closed, %d waiting, %d failed\n", summary.ClosedCount, summary.WaitingCount, summary.FailedCount)
}
