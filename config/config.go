package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"zapstack-backend/database"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is everything the server and the maintenance commands read from the
// environment (optionally seeded from a .env file).
type Config struct {
	Port           string
	BodyLimitBytes int
	AllowedOrigins string
	ProxyHeader    string

	Database database.Options

	RateLimitMax           int
	RateLimitWindow        time.Duration
	PaymentRateLimitMax    int
	PaymentRateLimitWindow time.Duration

	JWTSecret string

	DarajaSandboxURL    string
	DarajaProductionURL string
	ProviderTimeout     time.Duration
	WebhookTimeout      time.Duration

	TokenTTL  time.Duration
	ResultTTL time.Duration

	RetryInterval    time.Duration
	RetryMaxAttempts int
	RetryCapacity    int

	NonceRetention     time.Duration
	NoncePurgeInterval time.Duration

	LogLevel  string
	LogFormat string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("body_limit_mb", 4)
	v.SetDefault("allowed_origins", "*")
	v.SetDefault("proxy_header", "")

	v.SetDefault("db_host", "db")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_sslmode", "disable")
	v.SetDefault("db_timezone", "Africa/Nairobi")

	v.SetDefault("rate_limit_max", 60)
	v.SetDefault("rate_limit_window_seconds", 60)
	v.SetDefault("payment_rate_limit_max", 10)
	v.SetDefault("payment_rate_limit_window_seconds", 60)

	v.SetDefault("daraja_sandbox_url", "https://sandbox.safaricom.co.ke")
	v.SetDefault("daraja_production_url", "https://api.safaricom.co.ke")
	v.SetDefault("provider_timeout", "15s")
	v.SetDefault("webhook_timeout", "10s")

	v.SetDefault("token_ttl", "3500s")
	v.SetDefault("result_ttl", "10m")

	v.SetDefault("retry_interval", "60s")
	v.SetDefault("retry_max_attempts", 5)
	v.SetDefault("retry_capacity", 1000)

	v.SetDefault("nonce_retention", "24h")
	v.SetDefault("nonce_purge_interval", "1h")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
}

// Load reads .env (if present) into the process environment and then resolves
// every setting through viper. Keys are the upper-cased names, e.g. DB_HOST.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Port:           v.GetString("port"),
		BodyLimitBytes: v.GetInt("body_limit_bytes"),
		AllowedOrigins: v.GetString("allowed_origins"),
		ProxyHeader:    v.GetString("proxy_header"),

		Database: database.Options{
			Host:     v.GetString("db_host"),
			Port:     v.GetInt("db_port"),
			User:     v.GetString("db_user"),
			Password: v.GetString("db_password"),
			Name:     v.GetString("db_name"),
			SSLMode:  v.GetString("db_sslmode"),
			TimeZone: v.GetString("db_timezone"),
		},

		RateLimitMax:           v.GetInt("rate_limit_max"),
		RateLimitWindow:        time.Duration(v.GetInt("rate_limit_window_seconds")) * time.Second,
		PaymentRateLimitMax:    v.GetInt("payment_rate_limit_max"),
		PaymentRateLimitWindow: time.Duration(v.GetInt("payment_rate_limit_window_seconds")) * time.Second,

		JWTSecret: v.GetString("jwt_secret_key"),

		DarajaSandboxURL:    v.GetString("daraja_sandbox_url"),
		DarajaProductionURL: v.GetString("daraja_production_url"),
		ProviderTimeout:     v.GetDuration("provider_timeout"),
		WebhookTimeout:      v.GetDuration("webhook_timeout"),

		TokenTTL:  v.GetDuration("token_ttl"),
		ResultTTL: v.GetDuration("result_ttl"),

		RetryInterval:    v.GetDuration("retry_interval"),
		RetryMaxAttempts: v.GetInt("retry_max_attempts"),
		RetryCapacity:    v.GetInt("retry_capacity"),

		NonceRetention:     v.GetDuration("nonce_retention"),
		NoncePurgeInterval: v.GetDuration("nonce_purge_interval"),

		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),
	}
	// Fiber default BodyLimit is 4 MiB; BODY_LIMIT_BYTES wins over BODY_LIMIT_MB.
	if cfg.BodyLimitBytes <= 0 {
		cfg.BodyLimitBytes = v.GetInt("body_limit_mb") * 1024 * 1024
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = v.GetString("jwt_secret")
	}
	return cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Database.User == "" || c.Database.Name == "" {
		return errors.New("DB_USER and DB_NAME are required")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT secret not configured (set JWT_SECRET_KEY or JWT_SECRET)")
	}
	if c.ProviderTimeout <= 0 || c.WebhookTimeout <= 0 {
		return errors.New("PROVIDER_TIMEOUT and WEBHOOK_TIMEOUT must be positive")
	}
	return nil
}
