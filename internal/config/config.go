package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	LogLevel    string   `mapstructure:"LOG_LEVEL"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`
	JWTSecret   string   `mapstructure:"JWT_SECRET"`

	// National Health Information Exchange connectivity.
	NHIEMode           string        `mapstructure:"NHIE_MODE"`
	NHIEBaseURL        string        `mapstructure:"NHIE_BASE_URL"`
	NHIEOAuthEnabled   bool          `mapstructure:"NHIE_OAUTH_ENABLED"`
	NHIEOAuthTokenURL  string        `mapstructure:"NHIE_OAUTH_TOKEN_URL"`
	NHIEOAuthClientID  string        `mapstructure:"NHIE_OAUTH_CLIENT_ID"`
	NHIEOAuthSecret    string        `mapstructure:"NHIE_OAUTH_CLIENT_SECRET"`
	NHIEConnectTimeout time.Duration `mapstructure:"NHIE_CONNECT_TIMEOUT"`
	NHIEReadTimeout    time.Duration `mapstructure:"NHIE_READ_TIMEOUT"`

	// Retry scheduler. SyncEnabled is the kill switch: when false the
	// scheduler stays idle and failed submissions wait in the log.
	SyncEnabled       bool          `mapstructure:"NHIE_SYNC_ENABLED"`
	RetryTickInterval time.Duration `mapstructure:"NHIE_RETRY_TICK_INTERVAL"`
	RetryBatchSize    int           `mapstructure:"NHIE_RETRY_BATCH_SIZE"`
	RetryMaxAttempts  int           `mapstructure:"NHIE_RETRY_MAX_ATTEMPTS"`
	RetryInitialDelay time.Duration `mapstructure:"NHIE_RETRY_INITIAL_DELAY"`
	RetryGrowthFactor float64       `mapstructure:"NHIE_RETRY_GROWTH_FACTOR"`
	RetryMaxDelay     time.Duration `mapstructure:"NHIE_RETRY_MAX_DELAY"`

	CoverageTTL time.Duration `mapstructure:"NHIE_COVERAGE_TTL"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("NHIE_MODE", "mock")
	v.SetDefault("NHIE_OAUTH_ENABLED", false)
	v.SetDefault("NHIE_CONNECT_TIMEOUT", "30s")
	v.SetDefault("NHIE_READ_TIMEOUT", "60s")
	v.SetDefault("NHIE_SYNC_ENABLED", true)
	v.SetDefault("NHIE_RETRY_TICK_INTERVAL", "60s")
	v.SetDefault("NHIE_RETRY_BATCH_SIZE", 10)
	v.SetDefault("NHIE_RETRY_MAX_ATTEMPTS", 8)
	v.SetDefault("NHIE_RETRY_INITIAL_DELAY", "5s")
	v.SetDefault("NHIE_RETRY_GROWTH_FACTOR", 6.0)
	v.SetDefault("NHIE_RETRY_MAX_DELAY", "1h")
	v.SetDefault("NHIE_COVERAGE_TTL", "24h")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("LOG_LEVEL")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("NHIE_MODE")
	v.BindEnv("NHIE_BASE_URL")
	v.BindEnv("NHIE_OAUTH_ENABLED")
	v.BindEnv("NHIE_OAUTH_TOKEN_URL")
	v.BindEnv("NHIE_OAUTH_CLIENT_ID")
	v.BindEnv("NHIE_OAUTH_CLIENT_SECRET")
	v.BindEnv("NHIE_CONNECT_TIMEOUT")
	v.BindEnv("NHIE_READ_TIMEOUT")
	v.BindEnv("NHIE_SYNC_ENABLED")
	v.BindEnv("NHIE_RETRY_TICK_INTERVAL")
	v.BindEnv("NHIE_RETRY_BATCH_SIZE")
	v.BindEnv("NHIE_RETRY_MAX_ATTEMPTS")
	v.BindEnv("NHIE_RETRY_INITIAL_DELAY")
	v.BindEnv("NHIE_RETRY_GROWTH_FACTOR")
	v.BindEnv("NHIE_RETRY_MAX_DELAY")
	v.BindEnv("NHIE_COVERAGE_TTL")

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

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active — all requests get admin access.")
		log.Println("WARNING: Do NOT use this configuration in production.")
		log.Println("WARNING: Set ENV=production and configure JWT_SECRET for production.")
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

// Validate checks that the configuration is safe to run. Outside development
// a JWT secret is mandatory, and OAuth credentials must be complete whenever
// the exchange requires them. Production refuses the mock endpoint.
func (c *Config) Validate() error {
	if !c.IsDev() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when ENV=%q. Refusing to start without authentication configuration", c.Env)
	}

	switch c.NHIEMode {
	case "mock", "sandbox", "production", "":
	default:
		if c.NHIEBaseURL == "" {
			log.Printf("WARNING: unknown NHIE_MODE %q, mock endpoint will be used", c.NHIEMode)
		}
	}
	if c.IsProduction() && c.NHIEMode == "mock" && c.NHIEBaseURL == "" {
		return fmt.Errorf("NHIE_MODE=mock is not allowed in production; set NHIE_MODE=production or NHIE_BASE_URL")
	}

	if c.NHIEOAuthEnabled {
		if c.NHIEOAuthTokenURL == "" {
			return fmt.Errorf("NHIE_OAUTH_TOKEN_URL is required when NHIE_OAUTH_ENABLED is true")
		}
		if c.NHIEOAuthClientID == "" || c.NHIEOAuthSecret == "" {
			return fmt.Errorf("NHIE_OAUTH_CLIENT_ID and NHIE_OAUTH_CLIENT_SECRET are required when NHIE_OAUTH_ENABLED is true")
		}
	}

	if c.RetryGrowthFactor < 1 {
		return fmt.Errorf("NHIE_RETRY_GROWTH_FACTOR must be >= 1, got %v", c.RetryGrowthFactor)
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("NHIE_RETRY_MAX_ATTEMPTS must be >= 1, got %d", c.RetryMaxAttempts)
	}

	return nil
}
