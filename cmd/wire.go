package cmd

import (
	"net/http"

	"gorm.io/gorm"

	"zapstack-backend/config"
	"zapstack-backend/controllers"
	"zapstack-backend/database"
	"zapstack-backend/payments"
	"zapstack-backend/routes"
)

// services is the explicitly owned set of process-wide state: one token cache,
// one result cache and one retry queue, shared by reference.
type services struct {
	guard    *payments.ReplayGuard
	retries  *payments.RetryQueue
	handlers routes.Handlers
}

func openDatabase(c *config.Config) (*gorm.DB, error) {
	db, err := database.Connect(c.Database)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func buildServices(c *config.Config, db *gorm.DB) *services {
	projects := database.NewProjectRepository(db)
	nonces := database.NewNonceRepository(db)
	logs := database.NewLogRepository(db)

	daraja := payments.NewDarajaClient(
		&http.Client{Timeout: c.ProviderTimeout},
		c.DarajaSandboxURL,
		c.DarajaProductionURL,
	)
	sender := payments.NewWebhookSender(&http.Client{Timeout: c.WebhookTimeout})

	tokens := payments.NewTokenCache(daraja, c.TokenTTL)
	guard := payments.NewReplayGuard(nonces, c.NonceRetention)
	results := payments.NewResultCache(c.ResultTTL)
	retries := payments.NewRetryQueue(sender, payments.RetryOptions{
		Interval:    c.RetryInterval,
		MaxAttempts: c.RetryMaxAttempts,
		Capacity:    c.RetryCapacity,
	})

	initiator := payments.NewInitiator(payments.InitiatorDeps{
		Projects: projects,
		Tokens:   tokens,
		Guard:    guard,
		Provider: daraja,
		Logs:     logs,
	})
	correlator := payments.NewCorrelator(payments.CorrelatorDeps{
		Initiations: logs,
		Logs:        logs,
		Results:     results,
		Sender:      sender,
		Retries:     retries,
	})

	return &services{
		guard:   guard,
		retries: retries,
		handlers: routes.Handlers{
			Payments:  &controllers.PaymentController{Initiator: initiator},
			Callbacks: &controllers.CallbackController{Correlator: correlator},
			Responses: &controllers.ResponseController{Projects: projects, Results: results},
			Logs:      &controllers.LogsController{Projects: projects, Logs: logs},
		},
	}
}

func routeOptions(c *config.Config) routes.Options {
	return routes.Options{
		BodyLimitBytes:         c.BodyLimitBytes,
		AllowedOrigins:         c.AllowedOrigins,
		ProxyHeader:            c.ProxyHeader,
		RateLimitMax:           c.RateLimitMax,
		RateLimitWindow:        c.RateLimitWindow,
		PaymentRateLimitMax:    c.PaymentRateLimitMax,
		PaymentRateLimitWindow: c.PaymentRateLimitWindow,
		JWTSecret:              []byte(c.JWTSecret),
	}
}
