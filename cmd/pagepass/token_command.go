package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pagepass/internal/identity"
)

func newTokenCommand(ctx *commandContext) *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Manage HTTP API bearer tokens",
	}

	var ttl time.Duration
	mintCmd := &cobra.Command{
		Use:   "mint [user]",
		Short: "Sign a bearer token for a user (defaults to the acting user)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			user := ""
			if len(args) == 1 {
				user = args[0]
			} else if user, err = ctx.user(); err != nil {
				return err
			}
			token, err := identity.NewIssuer(cfg).Mint(user, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	mintCmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to identity.token_ttl_hours)")
	tokenCmd.AddCommand(mintCmd)
	return tokenCmd
}
