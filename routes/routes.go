package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"zapstack-backend/controllers"
	"zapstack-backend/middlewares"
)

// Options holds the HTTP-level knobs of the app.
type Options struct {
	BodyLimitBytes         int
	AllowedOrigins         string
	ProxyHeader            string
	RateLimitMax           int
	RateLimitWindow        time.Duration
	PaymentRateLimitMax    int
	PaymentRateLimitWindow time.Duration
	JWTSecret              []byte
}

type Handlers struct {
	Payments  *controllers.PaymentController
	Callbacks *controllers.CallbackController
	Responses *controllers.ResponseController
	Logs      *controllers.LogsController
}

// NewApp builds the Fiber app with the global middleware stack and all routes.
func NewApp(opts Options, h Handlers) *fiber.App {
	// ---- Fiber app with global error handler + body limit
	app := fiber.New(fiber.Config{
		ErrorHandler:          middlewares.ErrorHandler,
		BodyLimit:             opts.BodyLimitBytes,
		ProxyHeader:           opts.ProxyHeader,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middlewares.RequestLogger())

	// ---- CORS
	allowedOrigins := opts.AllowedOrigins
	if allowedOrigins == "" {
		allowedOrigins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowCredentials: false, // Bearer tokens and zap keys, not cookies
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Zap-Key",
	}))

	// ---- Global rate limiter (applies to all routes)
	if opts.RateLimitMax > 0 {
		app.Use(middlewares.GlobalLimiter(opts.RateLimitMax, opts.RateLimitWindow))
	}

	Register(app, opts, h)
	return app
}

// Register wires all HTTP routes.
func Register(app *fiber.App, opts Options, h Handlers) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	// Tenant clients (x-zap-key)
	api.Post("/initiate/payments/mpesa",
		middlewares.PaymentLimiter(opts.PaymentRateLimitMax, opts.PaymentRateLimitWindow),
		h.Payments.InitiatePayment)
	api.Get("/mpesa/response", h.Responses.GetResponse)

	// Provider callbacks
	api.Post("/webhooks/mpesa", h.Callbacks.MpesaCallback)

	// Dashboard (JWT auth)
	protected := api.Group("/projects")
	protected.Use(middlewares.IsAuthenticatedHeader(opts.JWTSecret))
	protected.Get("/:id/logs", h.Logs.GetProjectLogs)
}
