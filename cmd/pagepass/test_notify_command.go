package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pagepass/internal/ipc"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification to the acting user's topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withUserClient(func(client *ipc.Client, user string) error {
				resp, err := client.TestNotification(user)
				if err != nil {
					return err
				}
				switch {
				case resp.Message != "":
					fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				case resp.Sent:
					fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
				default:
					fmt.Fprintln(cmd.OutOrStdout(), "Notification not sent")
				}
				return nil
			})
		},
	}
}
