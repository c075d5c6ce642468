package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (APPETIT_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (APPETIT_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	NumberPrefix string `default:"APT" usage:"Prefix for generated order numbers" flag:"number-prefix"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (APPETIT_API_KEY_PEPPER)" flag:"api-key-pepper"`
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
	Hours        HoursConfig
	Notify       NotifyConfig
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// HoursConfig pins the business timezone for the opening-hours gate.
type HoursConfig struct {
	TZOffsetHours int `default:"6" usage:"Business timezone offset from UTC in hours" flag:"tz-offset-hours"`
}

// NotifyConfig configures the post-checkout side-effect senders. Any empty
// credential disables its target; the dispatcher reports it as skipped.
type NotifyConfig struct {
	ResendAPIKey       string `usage:"Resend API key for order emails" flag:"resend-api-key"`
	FromEmail          string `default:"orders@appetit.example" usage:"Sender address for order emails" flag:"from-email"`
	FromName           string `default:"Appetit" usage:"Sender name for order emails" flag:"from-name"`
	FCMCredentialsFile string `usage:"Path to the Firebase service account JSON" flag:"fcm-credentials-file"`
	GA4APISecret       string `usage:"GA4 Measurement Protocol API secret" flag:"ga4-api-secret"`
	GA4WebStreamID     string `usage:"GA4 measurement ID for the web stream" flag:"ga4-web-stream-id"`
	GA4AppStreamID     string `usage:"GA4 measurement ID for the app stream" flag:"ga4-app-stream-id"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "APPETIT",
		Files:     []string{"config.yaml", "/etc/appetit/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set APPETIT_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (Railway, Render, etc.) that use standard names like DATABASE_URL and
// PORT to the application's APPETIT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
