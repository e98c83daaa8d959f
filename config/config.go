package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is the full application configuration surface.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Pricing  PricingConfig
}

// ServerConfig holds HTTP server options.
type ServerConfig struct {
	Port string
}

// DatabaseConfig holds PostgreSQL connection options.
type DatabaseConfig struct {
	URL string
}

// AuthConfig holds token signing options.
type AuthConfig struct {
	JWTSecret string
}

// PricingConfig carries the booking fee and commission policy constants.
// Amounts are integers in the currency's smallest practical unit.
type PricingConfig struct {
	ChickFlatFee          int64
	ChickFlatMaxQty       int
	CommissionLowMax      int64
	CommissionLowAmount   int64
	CommissionMidMax      int64
	CommissionMidAmount   int64
	CommissionRatePercent int64
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("config: load env file %s: %w", envFile, err)
			}
		}
	} else {
		// A missing .env is fine when configuration comes from the environment.
		_ = godotenv.Load()
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
		},
		Pricing: PricingConfig{
			ChickFlatFee:          getenvInt64("PRICING_CHICK_FLAT_FEE", 300),
			ChickFlatMaxQty:       int(getenvInt64("PRICING_CHICK_FLAT_MAX_QTY", 8)),
			CommissionLowMax:      getenvInt64("PRICING_COMMISSION_LOW_MAX", 500),
			CommissionLowAmount:   getenvInt64("PRICING_COMMISSION_LOW_AMOUNT", 200),
			CommissionMidMax:      getenvInt64("PRICING_COMMISSION_MID_MAX", 1000),
			CommissionMidAmount:   getenvInt64("PRICING_COMMISSION_MID_AMOUNT", 350),
			CommissionRatePercent: getenvInt64("PRICING_COMMISSION_RATE_PERCENT", 10),
		},
	}

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("config: DATABASE_URL is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("config: JWT_SECRET is required")
	}

	return cfg, nil
}

func getenvWithDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
