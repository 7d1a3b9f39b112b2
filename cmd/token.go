package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"zapstack-backend/middlewares"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a dashboard token for a project owner",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		if owner == "" {
			return errors.New("--owner is required")
		}

		token, err := middlewares.GenerateJWT([]byte(cfg.JWTSecret), owner, ttl)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
		return err
	},
}

func init() {
	tokenCmd.Flags().String("owner", "", "owner user id (token subject)")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
}
