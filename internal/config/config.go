package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/fifoledger/internal/domain"
)

// Config holds all runtime configuration for the ledger server.
type Config struct {
	Port            int               `envconfig:"PORT" default:"8080"`
	LogLevel        string            `envconfig:"LOG_LEVEL" default:"info"`
	ReadTimeout     time.Duration     `envconfig:"READ_TIMEOUT" default:"5s"`
	WriteTimeout    time.Duration     `envconfig:"WRITE_TIMEOUT" default:"10s"`
	IdleTimeout     time.Duration     `envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration     `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	EnableReset     bool              `envconfig:"ENABLE_RESET" default:"false"`
	RawPrices       map[string]string `envconfig:"PRICES"`

	// Prices seeds the price book, parsed from PRICES ("BTC:43000,ETH:2100").
	Prices map[string]decimal.Decimal `ignored:"true"`
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. Variables from envFiles are loaded first without
// overriding the environment; with no envFiles a .env in the working
// directory is used when present.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid PORT: %d, must be between 1 and 65535", cfg.Port)
	}
	if !isValidLogLevel(cfg.LogLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", cfg.LogLevel)
	}

	prices, err := parsePrices(cfg.RawPrices)
	if err != nil {
		return nil, fmt.Errorf("invalid PRICES: %w", err)
	}
	cfg.Prices = prices

	return &cfg, nil
}

func parsePrices(raw map[string]string) (map[string]decimal.Decimal, error) {
	prices := make(map[string]decimal.Decimal, len(raw))
	for symbol, v := range raw {
		if symbol == "" {
			return nil, fmt.Errorf("empty symbol")
		}
		p, err := domain.ParseDecimal(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", symbol, err)
		}
		if p.IsNegative() {
			return nil, fmt.Errorf("%s: price must be >= 0", symbol)
		}
		prices[symbol] = p
	}
	return prices, nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
