package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
)

type Config struct {
	Port                 string   `mapstructure:"PORT"`
	Env                  string   `mapstructure:"ENV"`
	StoreDriver          string   `mapstructure:"STORE_DRIVER"`
	DatabaseURL          string   `mapstructure:"DATABASE_URL"`
	DBMaxConns           int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns           int32    `mapstructure:"DB_MIN_CONNS"`
	MongoURI             string   `mapstructure:"MONGODB_URI"`
	MongoDatabase        string   `mapstructure:"MONGODB_DATABASE"`
	CORSOrigins          []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS         float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst       int      `mapstructure:"RATE_LIMIT_BURST"`
	BodyLimit            string   `mapstructure:"BODY_LIMIT"`
	AuthIssuer           string   `mapstructure:"AUTH_ISSUER"`
	AuthAudience         string   `mapstructure:"AUTH_AUDIENCE"`
	AuthJWKSURL          string   `mapstructure:"AUTH_JWKS_URL"`
	AuthSigningKey       string   `mapstructure:"AUTH_SIGNING_KEY"`
	AMQPURL              string   `mapstructure:"AMQP_URL"`
	IngestWorkers        int      `mapstructure:"INGEST_WORKERS"`
	ShutdownGraceSeconds int      `mapstructure:"SHUTDOWN_GRACE_SECONDS"`
	SeedSampleData       bool     `mapstructure:"SEED_SAMPLE_DATA"`
}

var envKeys = []string{
	"PORT", "ENV", "STORE_DRIVER",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"MONGODB_URI", "MONGODB_DATABASE",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "BODY_LIMIT",
	"AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_JWKS_URL", "AUTH_SIGNING_KEY",
	"AMQP_URL", "INGEST_WORKERS", "SHUTDOWN_GRACE_SECONDS", "SEED_SAMPLE_DATA",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "5000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("MONGODB_DATABASE", "ayush_terminology")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("BODY_LIMIT", "50M")
	v.SetDefault("INGEST_WORKERS", 8)
	v.SetDefault("SHUTDOWN_GRACE_SECONDS", 15)
	v.SetDefault("SEED_SAMPLE_DATA", false)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.IsDev() {
		log.Println("WARNING: running in DEVELOPMENT mode, DevAuthMiddleware grants admin to anonymous requests")
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

// Validate checks that the selected store driver has its connection settings
// and that non-development deployments can authenticate tokens.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is %q", StoreDriverPostgres)
		}
	case StoreDriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGODB_URI is required when STORE_DRIVER is %q", StoreDriverMongo)
		}
		if c.MongoDatabase == "" {
			return fmt.Errorf("MONGODB_DATABASE is required when STORE_DRIVER is %q", StoreDriverMongo)
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMongo, c.StoreDriver)
	}

	if !c.IsDev() && c.AuthSigningKey == "" && c.AuthJWKSURL == "" && c.AuthIssuer == "" {
		return fmt.Errorf("one of AUTH_SIGNING_KEY, AUTH_JWKS_URL or AUTH_ISSUER is required when ENV=%q", c.Env)
	}

	if c.IngestWorkers <= 0 {
		return fmt.Errorf("INGEST_WORKERS must be positive, got %d", c.IngestWorkers)
	}
	if c.ShutdownGraceSeconds < 0 {
		return fmt.Errorf("SHUTDOWN_GRACE_SECONDS must not be negative, got %d", c.ShutdownGraceSeconds)
	}

	return nil
}
