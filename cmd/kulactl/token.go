package main

import (
	"fmt"

	"github.com/kulapay/kulapay-backend/pkg/jwt"
	"github.com/spf13/cobra"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token [subject]",
		Short: "Issue an admin API token signed with the configured JWT secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			role, _ := cmd.Flags().GetString("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if ttl <= 0 {
				ttl = cfg.JWT.ExpiresIn
			}

			tokens, err := jwt.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer, ttl)
			if err != nil {
				return err
			}
			token, err := tokens.Issue(args[0], role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringP("role", "r", "admin", "Role claim")
	cmd.Flags().Duration("ttl", 0, "Token lifetime (defaults to JWT.ExpiresIn)")
	return cmd
}
