package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"zapstack-backend/database"
	"zapstack-backend/payments"
)

// purgeNoncesCmd is meant for cron, e.g. `0 0 * * * zapstack purge-nonces`.
var purgeNoncesCmd = &cobra.Command{
	Use:   "purge-nonces",
	Short: "Delete nonces older than the retention window once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		guard := payments.NewReplayGuard(database.NewNonceRepository(db), cfg.NonceRetention)

		n, err := guard.Purge(cmd.Context())
		if err != nil {
			return err
		}
		log.Info().Int64("deleted", n).Dur("retention", cfg.NonceRetention).Msg("nonce cleanup done")
		return nil
	},
}
