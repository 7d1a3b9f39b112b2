package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"zapstack-backend/routes"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the payment gateway API and its background workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		db, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		svc := buildServices(cfg, db)
		app := routes.NewApp(routeOptions(cfg), svc.handlers)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = log.Logger.WithContext(ctx)

		var workers sync.WaitGroup
		workers.Add(2)
		go func() {
			defer workers.Done()
			svc.retries.Run(ctx)
		}()
		go func() {
			defer workers.Done()
			svc.guard.RunPurger(ctx, cfg.NoncePurgeInterval)
		}()

		listenErr := make(chan error, 1)
		go func() {
			log.Info().Msgf("API server listening on port %s", cfg.Port)
			listenErr <- app.Listen(":" + cfg.Port)
		}()

		select {
		case err = <-listenErr:
			stop()
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			err = app.ShutdownWithTimeout(shutdownTimeout)
		}
		workers.Wait()

		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		log.Info().Msg("server exited")
		return nil
	},
}
