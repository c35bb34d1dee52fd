package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Server     ServerConfig
	Ledger     LedgerConfig
	SelfHosted bool
	DevMode    bool
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string //nolint:gosec // G117: DB connection config
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// JWTConfig holds API authentication settings.
type JWTConfig struct {
	Secret string //nolint:gosec // G117: JWT signing secret config
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
	// RateLimitPerSec and RateLimitBurst bound each tenant's request rate.
	RateLimitPerSec float64
	RateLimitBurst  int
}

// LedgerConfig holds the audit ledger's cryptographic and tuning settings.
type LedgerConfig struct {
	// SigningSecret is the master secret the signing key is derived from.
	// Ignored when VaultKey is set.
	SigningSecret string //nolint:gosec // G117: ledger signing secret config
	// VaultKey is the 32-byte key-encryption key unlocking the master
	// secret stored encrypted in the database. When set, the master secret
	// is resolved from storage instead of the environment.
	VaultKey string //nolint:gosec // G117: vault KEK config
	// KeyName is the derivation label of the ledger signing key.
	KeyName            string
	CheckpointInterval int64
	AppendRetries      int
	ExportPageSize     int
	VerifySampleLimit  int
}

// Load reads configuration from environment variables.
// Defaults are safe for local development only. In production,
// sensitive values (JWT secret, signing secret, DB password) must be set
// explicitly.
func Load() (*Config, error) {
	dbPort, err := getEnvInt("CARETRAIL_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("CARETRAIL_DB_MAX_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("CARETRAIL_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readTimeout, err := getEnvDuration("CARETRAIL_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("CARETRAIL_SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	rateLimitPerSec, err := getEnvFloat("CARETRAIL_RATE_LIMIT_RPS", 100)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	rateLimitBurst, err := getEnvInt("CARETRAIL_RATE_LIMIT_BURST", 200)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	checkpointInterval, err := getEnvInt("CARETRAIL_CHECKPOINT_INTERVAL", 100)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	appendRetries, err := getEnvInt("CARETRAIL_APPEND_RETRIES", 5)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	exportPageSize, err := getEnvInt("CARETRAIL_EXPORT_PAGE_SIZE", 500)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	verifySampleLimit, err := getEnvInt("CARETRAIL_VERIFY_SAMPLE_LIMIT", 100)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	selfHosted, err := getEnvBool("CARETRAIL_SELF_HOSTED", false)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	devMode, err := getEnvBool("CARETRAIL_DEV", false)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	corsOrigins := getEnvList("CARETRAIL_CORS_ORIGINS", []string{"http://localhost:5173"})

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("CARETRAIL_DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("CARETRAIL_DB_USER", "caretrail"),
			Password: getEnv("CARETRAIL_DB_PASSWORD", ""),
			DBName:   getEnv("CARETRAIL_DB_NAME", "caretrail_dev"),
			SSLMode:  getEnv("CARETRAIL_DB_SSLMODE", "disable"),
			MaxConns: dbMaxConns,
		},
		Redis: RedisConfig{
			Addr:     getEnv("CARETRAIL_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("CARETRAIL_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret: getEnv("CARETRAIL_JWT_SECRET", ""),
		},
		Server: ServerConfig{
			Addr:            getEnv("CARETRAIL_SERVER_ADDR", ":8080"),
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			CORSOrigins:     corsOrigins,
			RateLimitPerSec: rateLimitPerSec,
			RateLimitBurst:  rateLimitBurst,
		},
		Ledger: LedgerConfig{
			SigningSecret:      getEnv("CARETRAIL_AUDIT_SIGNING_KEY", ""),
			VaultKey:           getEnv("CARETRAIL_VAULT_KEY", ""),
			KeyName:            getEnv("CARETRAIL_AUDIT_KEY_NAME", "AUDIT_SIGNING_KEY"),
			CheckpointInterval: int64(checkpointInterval),
			AppendRetries:      appendRetries,
			ExportPageSize:     exportPageSize,
			VerifySampleLimit:  verifySampleLimit,
		},
		SelfHosted: selfHosted,
		DevMode:    devMode,
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	// JWT and ledger signing secrets are required (no insecure default)
	// outside dev mode.
	if !c.DevMode {
		if c.JWT.Secret == "" {
			return errors.New("CARETRAIL_JWT_SECRET is required")
		}
		if len(c.JWT.Secret) < 32 {
			return errors.New("CARETRAIL_JWT_SECRET must be at least 32 characters")
		}
		if c.Ledger.VaultKey == "" {
			if c.Ledger.SigningSecret == "" {
				return errors.New("CARETRAIL_AUDIT_SIGNING_KEY or CARETRAIL_VAULT_KEY is required")
			}
			if len(c.Ledger.SigningSecret) < 32 {
				return errors.New("CARETRAIL_AUDIT_SIGNING_KEY must be at least 32 characters")
			}
		}
	}
	if c.Ledger.VaultKey != "" && len(c.Ledger.VaultKey) != 32 {
		return errors.New("CARETRAIL_VAULT_KEY must be exactly 32 bytes")
	}

	// DB SSL mode warning for non-self-hosted deployments.
	if c.Database.SSLMode == "disable" && !c.SelfHosted && !c.DevMode {
		log.Warn().Msg("CARETRAIL_DB_SSLMODE=disable is insecure for production; set to 'require' or 'verify-full'")
	}

	// Bounds checks.
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("CARETRAIL_DB_PORT must be 1-65535, got %d", c.Database.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("CARETRAIL_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("CARETRAIL_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("CARETRAIL_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Server.RateLimitPerSec <= 0 {
		return fmt.Errorf("CARETRAIL_RATE_LIMIT_RPS must be positive, got %g", c.Server.RateLimitPerSec)
	}
	if c.Server.RateLimitBurst < 1 {
		return fmt.Errorf("CARETRAIL_RATE_LIMIT_BURST must be >= 1, got %d", c.Server.RateLimitBurst)
	}
	if c.Ledger.CheckpointInterval < 1 {
		return fmt.Errorf("CARETRAIL_CHECKPOINT_INTERVAL must be >= 1, got %d", c.Ledger.CheckpointInterval)
	}
	if c.Ledger.AppendRetries < 1 {
		return fmt.Errorf("CARETRAIL_APPEND_RETRIES must be >= 1, got %d", c.Ledger.AppendRetries)
	}
	if c.Ledger.ExportPageSize < 1 {
		return fmt.Errorf("CARETRAIL_EXPORT_PAGE_SIZE must be >= 1, got %d", c.Ledger.ExportPageSize)
	}
	if c.Ledger.VerifySampleLimit < 1 {
		return fmt.Errorf("CARETRAIL_VERIFY_SAMPLE_LIMIT must be >= 1, got %d", c.Ledger.VerifySampleLimit)
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
