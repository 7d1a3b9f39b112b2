package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"zapstack-backend/payments"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Print a new project zap key",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := payments.GenerateKey()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), key)
		return err
	},
}
