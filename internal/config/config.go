package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"

	AuthProviderJWKS     = "jwks"
	AuthProviderSupabase = "supabase"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	MongoDBURI          string `envconfig:"MONGODB_URI" required:"true"`
	MongoDBPassword     string `envconfig:"MONGODB_PASSWORD"`
	DBName              string `envconfig:"DB_NAME" default:"tourbook"`
	MongoDBTransactions bool   `envconfig:"MONGODB_TRANSACTIONS" default:"true"`

	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	PaymentCurrency     string `envconfig:"PAYMENT_CURRENCY" default:"usd"`
	RefundViaGateway    bool   `envconfig:"REFUND_VIA_GATEWAY" default:"false"`

	AuthProvider    string `envconfig:"AUTH_PROVIDER" default:"jwks"`
	AuthJWKSURL     string `envconfig:"AUTH_JWKS_URL"`
	AuthIssuer      string `envconfig:"AUTH_ISSUER"`
	AuthAudience    string `envconfig:"AUTH_AUDIENCE"`
	SupabaseURL     string `envconfig:"SUPABASE_URL"`
	SupabaseAnonKey string `envconfig:"SUPABASE_URL_ANON_KEY"`

	RedisURL     string `envconfig:"REDIS_URL"`
	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"tourbook.events"`

	CloudinaryCloudName string `envconfig:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryAPIKey    string `envconfig:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret string `envconfig:"CLOUDINARY_API_SECRET"`

	CORSOrigins    []string      `envconfig:"CORS_ORIGINS" default:"http://localhost:5173"`
	StatsCacheTTL  time.Duration `envconfig:"STATS_CACHE_TTL" default:"5m"`
	IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`
}

// LoadConfig reads optional .env.local / .env files, then the environment.
// Variables already set in the environment win over file values.
func LoadConfig() (*Config, error) {
	for _, f := range []string{".env.local", ".env"} {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	c.AuthProvider = strings.ToLower(strings.TrimSpace(c.AuthProvider))
	c.PaymentCurrency = strings.ToLower(strings.TrimSpace(c.PaymentCurrency))
	origins := c.CORSOrigins[:0]
	for _, o := range c.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.CORSOrigins = origins
}

// Validate checks the settings whose requirements depend on other settings.
func (c *Config) Validate() error {
	var err error
	switch c.Environment {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		err = multierr.Append(err, fmt.Errorf("ENVIRONMENT must be development, production or test, got %q", c.Environment))
	}
	if _, lvlErr := zerolog.ParseLevel(c.LogLevel); lvlErr != nil {
		err = multierr.Append(err, fmt.Errorf("LOG_LEVEL: %w", lvlErr))
	}
	if strings.TrimSpace(c.MongoDBURI) == "" {
		err = multierr.Append(err, errors.New("MONGODB_URI is required"))
	}
	if strings.Contains(c.MongoDBURI, "<password>") && c.MongoDBPassword == "" {
		err = multierr.Append(err, errors.New("MONGODB_PASSWORD is required when MONGODB_URI contains <password>"))
	}

	switch c.AuthProvider {
	case AuthProviderJWKS:
		if c.AuthJWKSURL == "" {
			err = multierr.Append(err, errors.New("AUTH_JWKS_URL is required for the jwks auth provider"))
		}
	case AuthProviderSupabase:
		if c.SupabaseURL == "" || c.SupabaseAnonKey == "" {
			err = multierr.Append(err, errors.New("SUPABASE_URL and SUPABASE_URL_ANON_KEY are required for the supabase auth provider"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("AUTH_PROVIDER must be jwks or supabase, got %q", c.AuthProvider))
	}

	if c.StripeSecretKey != "" && c.StripeWebhookSecret == "" && c.IsProduction() {
		err = multierr.Append(err, errors.New("STRIPE_WEBHOOK_SECRET is required in production when Stripe is enabled"))
	}
	if len(c.PaymentCurrency) != 3 {
		err = multierr.Append(err, fmt.Errorf("PAYMENT_CURRENCY must be a 3-letter ISO code, got %q", c.PaymentCurrency))
	}
	if len(c.CORSOrigins) == 0 {
		err = multierr.Append(err, errors.New("CORS_ORIGINS must list at least one origin"))
	}
	if c.IdempotencyTTL <= 0 {
		err = multierr.Append(err, errors.New("IDEMPOTENCY_TTL must be positive"))
	}
	if c.StatsCacheTTL < 0 {
		err = multierr.Append(err, errors.New("STATS_CACHE_TTL must not be negative"))
	}
	return err
}

func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

func (c *Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// MongoURI substitutes MONGODB_PASSWORD into a URI copied from the Atlas UI.
func (c *Config) MongoURI() string {
	return strings.Replace(c.MongoDBURI, "<password>", c.MongoDBPassword, 1)
}
