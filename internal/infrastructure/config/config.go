package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Store    StoreConfig
	Verify   VerifyConfig
	IAP      IAPConfig
	Worker   WorkerConfig
	Sentry   SentryConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds Postgres configuration
type DatabaseConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL          string
	Password     string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret    string
	AccessTTL time.Duration
	Issuer    string
}

// StoreConfig selects and configures the storefront provider. Provider is
// "generic" or "onestore"; the choice is made here, at configuration time,
// never by compile-time branching.
type StoreConfig struct {
	Provider          string
	ProductIDs        []string
	OneStorePublicKey string
}

// VerifyConfig holds the backend receipt-verification endpoint settings.
type VerifyConfig struct {
	Endpoint string
	Timeout  time.Duration
}

// IAPConfig holds store-side verification credentials for the charge
// endpoints.
type IAPConfig struct {
	AppleSharedSecret string
	GoogleKeyJSON     string
	IsProduction      bool
}

// WorkerConfig holds the background sweep settings. SweepUserID is the
// account the scheduled sweep verifies on behalf of; the scheduled entry is
// only registered when it is set.
type WorkerConfig struct {
	SweepUserID string
	SweepCron   string
	Concurrency int
}

// SentryConfig holds Sentry configuration
type SentryConfig struct {
	DSN         string
	Environment string
	Release     string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// .env file is optional for production (env vars are used)
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server_port", 8080)
	viper.SetDefault("server_read_timeout", 10*time.Second)
	viper.SetDefault("server_write_timeout", 10*time.Second)
	viper.SetDefault("server_shutdown_timeout", 30*time.Second)

	// JWT defaults
	viper.SetDefault("jwt_access_ttl", 15*time.Minute)
	viper.SetDefault("jwt_issuer", "iap-reconciler")

	// Redis defaults
	viper.SetDefault("redis_pool_size", 10)
	viper.SetDefault("redis_min_idle_conns", 3)
	viper.SetDefault("redis_dial_timeout", 5*time.Second)
	viper.SetDefault("redis_read_timeout", 3*time.Second)
	viper.SetDefault("redis_write_timeout", 3*time.Second)

	// Database defaults
	viper.SetDefault("database_max_conns", 10)
	viper.SetDefault("database_min_conns", 2)
	viper.SetDefault("database_max_conn_lifetime", time.Hour)

	// Storefront defaults
	viper.SetDefault("store_provider", "generic")

	// Verification defaults
	viper.SetDefault("verify_timeout", 15*time.Second)

	// Worker defaults
	viper.SetDefault("worker_sweep_cron", "*/10 * * * *")
	viper.SetDefault("worker_concurrency", 5)
}

func validate(cfg *Config) error {
	if cfg.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if cfg.Verify.Endpoint == "" {
		return fmt.Errorf("VERIFY_ENDPOINT is required")
	}
	switch cfg.Store.Provider {
	case "generic", "onestore":
	default:
		return fmt.Errorf("STORE_PROVIDER must be \"generic\" or \"onestore\", got %q", cfg.Store.Provider)
	}
	return nil
}
