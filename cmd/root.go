package cmd

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"zapstack-backend/config"
	"zapstack-backend/logging"
)

var (
	envFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "zapstack",
	Short: "ZapStack payment gateway",
	Long: `ZapStack lets projects take M-Pesa STK payments through one endpoint
without handing Daraja credentials to client code.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var files []string
		if envFile != "" {
			files = append(files, envFile)
		}
		loaded, err := config.Load(files...)
		if err != nil {
			return err
		}
		cfg = loaded
		logging.Init(cfg.LogLevel, cfg.LogFormat, os.Stderr)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execution failed")
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env)")

	rootCmd.AddCommand(serveCmd, purgeNoncesCmd, keygenCmd, tokenCmd)

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
}
