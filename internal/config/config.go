package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	AppURL      string
	FrontendURL string

	PaymentMode          string
	PaymentWebhookSecret string

	StripeSecretKey     string
	StripeWebhookSecret string

	SSLCommerzStoreID       string
	SSLCommerzStorePassword string
	SSLCommerzSandbox       bool
	// SSLCommerzBaseURL overrides the sandbox/live endpoint; used to point
	// the adapter at a local stand-in.
	SSLCommerzBaseURL string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
}

// Module provides the configuration to the fx graph.
var Module = fx.Options(
	fx.Provide(Load),
	fx.Provide(NewPricingConfigHolder),
)

const (
	// PaymentModeMock routes every checkout through the in-process gateway.
	PaymentModeMock = "mock"
	// PaymentModeLive routes checkouts through the configured live gateway.
	PaymentModeLive = "live"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	appURL := strings.TrimRight(getenv("APP_URL", "http://localhost:8080"), "/")
	frontendURL := strings.TrimRight(getenv("FRONTEND_URL", appURL), "/")

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "dirhub"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),

		AppURL:      appURL,
		FrontendURL: frontendURL,

		PaymentMode:          normalizePaymentMode(getenv("PAYMENT_MODE", PaymentModeMock)),
		PaymentWebhookSecret: strings.TrimSpace(getenv("PAYMENT_WEBHOOK_SECRET", "")),

		StripeSecretKey:     strings.TrimSpace(getenv("STRIPE_SECRET_KEY", "")),
		StripeWebhookSecret: strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),

		SSLCommerzStoreID:       strings.TrimSpace(getenv("SSLCOMMERZ_STORE_ID", "")),
		SSLCommerzStorePassword: strings.TrimSpace(getenv("SSLCOMMERZ_STORE_PASSWORD", "")),
		SSLCommerzSandbox:       getenvBool("SSLCOMMERZ_SANDBOX", true),
		SSLCommerzBaseURL:       strings.TrimSpace(getenv("SSLCOMMERZ_BASE_URL", "")),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "dirhub"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),
	}

	return cfg
}

// IsDevelopment reports whether the deployment is a development environment.
// Security relaxations (webhook signature bypass) are only legal when true.
func (c Config) IsDevelopment() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	switch env {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func normalizePaymentMode(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case PaymentModeLive:
		return PaymentModeLive
	default:
		return PaymentModeMock
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
