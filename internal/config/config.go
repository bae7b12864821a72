package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"time"
)

// StripeConfig holds the Stripe API credentials. WebhookSecret signs
// webhook deliveries; APIBase is overridable for tests.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	APIBase       string
}

// PayPalConfig holds the PayPal REST credentials. WebhookID identifies
// the webhook registration used when verifying delivery signatures.
type PayPalConfig struct {
	ClientID     string
	ClientSecret string
	WebhookID    string
	APIBase      string
}

// OpenRouterConfig holds the chatbot proxy settings.
type OpenRouterConfig struct {
	APIKey     string
	Model      string
	APIURL     string
	HistoryTTL time.Duration
	MaxTokens  int
}

// Config holds all runtime configuration values. Required variables are
// enforced by must() and missing values cause the program to exit with a
// fatal log message; processor credentials are optional so a development
// instance can boot without them.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	FrontendURL    string // allowed CORS origin for the storefront
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	JWTSecret      string // secret used to sign claim tokens
	AccessTTLMin   int    // claim token time-to-live in minutes
	RefreshTTLDays int    // refresh credential time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing

	Stripe     StripeConfig
	PayPal     PayPalConfig
	OpenRouter OpenRouterConfig
}

// IsProd reports whether cookies must carry the Secure flag.
func (c Config) IsProd() bool { return c.Env == "prod" || c.Env == "production" }

// AccessTTL returns the claim lifetime as a duration.
func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTTLMin) * time.Minute
}

// RefreshTTL returns the refresh credential lifetime as a duration.
func (c Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTTLDays) * 24 * time.Hour
}

// Load reads configuration values from environment variables and returns
// a Config.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		FrontendURL:    getenv("FRONTEND_URL", "http://localhost:3000"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),
		Stripe: StripeConfig{
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			APIBase:       os.Getenv("STRIPE_API_BASE"),
		},
		PayPal: PayPalConfig{
			ClientID:     os.Getenv("PAYPAL_CLIENT_ID"),
			ClientSecret: os.Getenv("PAYPAL_CLIENT_SECRET"),
			WebhookID:    os.Getenv("PAYPAL_WEBHOOK_ID"),
			APIBase:      os.Getenv("PAYPAL_API_BASE"),
		},
		OpenRouter: OpenRouterConfig{
			APIKey:     os.Getenv("OPENROUTER_API_KEY"),
			Model:      getenv("OPENROUTER_MODEL", "x-ai/grok-4.1-fast:free"),
			APIURL:     getenv("OPENROUTER_API_URL", "https://openrouter.ai/api/v1/chat/completions"),
			HistoryTTL: envDur("CHAT_HISTORY_TTL", 24*time.Hour),
			MaxTokens:  envInt("CHAT_MAX_TOKENS", 150),
		},
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
