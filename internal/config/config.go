package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"

	BlobMemory = "memory"
	BlobS3     = "s3"
)

type Config struct {
	Port              string        `mapstructure:"PORT"`
	Env               string        `mapstructure:"ENV"`
	StoreDriver       string        `mapstructure:"STORE_DRIVER"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	DBMaxConns        int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns        int32         `mapstructure:"DB_MIN_CONNS"`
	MongoURI          string        `mapstructure:"MONGO_URI"`
	MongoDatabase     string        `mapstructure:"MONGO_DATABASE"`
	RedisURL          string        `mapstructure:"REDIS_URL"`
	AuthIssuer        string        `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL       string        `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience      string        `mapstructure:"AUTH_AUDIENCE"`
	AuthDevSigningKey string        `mapstructure:"AUTH_DEV_SIGNING_KEY"`
	CORSOrigins       []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS      float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst    int           `mapstructure:"RATE_LIMIT_BURST"`
	BodyLimit         string        `mapstructure:"BODY_LIMIT"`
	RequestTimeout    time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	AppTimezone       string        `mapstructure:"APP_TIMEZONE"`
	OpenAIAPIKey      string        `mapstructure:"OPENAI_API_KEY"`
	OpenAIModel       string        `mapstructure:"OPENAI_MODEL"`
	OpenAIBaseURL     string        `mapstructure:"OPENAI_BASE_URL"`
	BlobBackend       string        `mapstructure:"BLOB_BACKEND"`
	S3Bucket          string        `mapstructure:"S3_BUCKET"`
	AWSRegion         string        `mapstructure:"AWS_REGION"`
	SendGridAPIKey    string        `mapstructure:"SENDGRID_API_KEY"`
	NotifyFromEmail   string        `mapstructure:"NOTIFY_FROM_EMAIL"`
	NotifyFromName    string        `mapstructure:"NOTIFY_FROM_NAME"`
}

var envKeys = []string{
	"PORT", "ENV", "STORE_DRIVER", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"MONGO_URI", "MONGO_DATABASE", "REDIS_URL",
	"AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "AUTH_DEV_SIGNING_KEY",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "BODY_LIMIT", "REQUEST_TIMEOUT",
	"APP_TIMEZONE", "OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_BASE_URL",
	"BLOB_BACKEND", "S3_BUCKET", "AWS_REGION",
	"SENDGRID_API_KEY", "NOTIFY_FROM_EMAIL", "NOTIFY_FROM_NAME",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE_DRIVER", DriverPostgres)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("MONGO_DATABASE", "careline")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("BODY_LIMIT", "12M")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("APP_TIMEZONE", "UTC")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("BLOB_BACKEND", BlobMemory)
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("NOTIFY_FROM_NAME", "Careline")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	cfg.BlobBackend = strings.ToLower(strings.TrimSpace(cfg.BlobBackend))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active; unauthenticated requests get admin access.")
		log.Println("WARNING: Set ENV=production and configure AUTH_ISSUER for production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Location resolves APP_TIMEZONE, the zone appointment times are displayed in.
func (c *Config) Location() (*time.Location, error) {
	if c.AppTimezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.AppTimezone)
	if err != nil {
		return nil, fmt.Errorf("APP_TIMEZONE %q: %w", c.AppTimezone, err)
	}
	return loc, nil
}

// Validate checks driver-specific and production requirements.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is %q", DriverPostgres)
		}
	case DriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when STORE_DRIVER is %q", DriverMongo)
		}
	case DriverMemory:
		if c.IsProduction() {
			return fmt.Errorf("STORE_DRIVER %q is not allowed in production", DriverMemory)
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q, %q or %q, got %q", DriverPostgres, DriverMongo, DriverMemory, c.StoreDriver)
	}

	switch c.BlobBackend {
	case BlobMemory:
	case BlobS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when BLOB_BACKEND is %q", BlobS3)
		}
	default:
		return fmt.Errorf("BLOB_BACKEND must be %q or %q, got %q", BlobMemory, BlobS3, c.BlobBackend)
	}

	if !c.IsDev() && c.AuthIssuer == "" && c.AuthDevSigningKey == "" {
		return fmt.Errorf(
			"AUTH_ISSUER must be set outside development (current ENV=%q). "+
				"Refusing to start without authentication configuration", c.Env)
	}
	if c.IsProduction() && c.AuthDevSigningKey != "" {
		return fmt.Errorf("AUTH_DEV_SIGNING_KEY must not be used in production")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
