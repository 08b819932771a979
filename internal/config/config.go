package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

type StoreKind string

const (
	StorePostgres StoreKind = "postgres"
	StoreMemory   StoreKind = "memory"
)

type APIConfig struct {
	Addr                   string
	Mode                   Mode
	Store                  StoreKind
	DatabaseURL            string
	JWTSecret              string
	TokenTTL               time.Duration
	AdminEmail             string
	AdminPassword          string
	InstrumentsFile        string
	MarketTickEvery        time.Duration
	MarketVolatility       string
	StartupSeedInstruments bool
}

// ExposeErrorDetail reports whether error responses may carry stack traces.
func (c APIConfig) ExposeErrorDetail() bool {
	return c.Mode != ModeProduction
}

type CLIConfig struct {
	APIBaseURL string
}

func LoadAPIFromEnv() (APIConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("STOCKGAME_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:                   addr,
		Mode:                   envModeDefault(),
		Store:                  StoreKind(strings.ToLower(envDefault("STOCKGAME_STORE", string(StorePostgres)))),
		DatabaseURL:            strings.TrimSpace(os.Getenv("DATABASE_URL")),
		JWTSecret:              strings.TrimSpace(os.Getenv("JWT_SECRET")),
		TokenTTL:               envDurationDefault("STOCKGAME_TOKEN_TTL", 24*time.Hour),
		AdminEmail:             strings.ToLower(envDefault("STOCKGAME_ADMIN_EMAIL", "adminuser@email.com")),
		AdminPassword:          strings.TrimSpace(os.Getenv("STOCKGAME_ADMIN_PASSWORD")),
		InstrumentsFile:        strings.TrimSpace(os.Getenv("STOCKGAME_INSTRUMENTS_FILE")),
		MarketTickEvery:        envDurationDefault("STOCKGAME_MARKET_TICK_EVERY", time.Minute),
		MarketVolatility:       envVolatilityDefault(),
		StartupSeedInstruments: envBoolDefault("STOCKGAME_STARTUP_SEED_INSTRUMENTS", true),
	}
	switch cfg.Store {
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return cfg, fmt.Errorf("DATABASE_URL is required")
		}
	case StoreMemory:
	default:
		return cfg, fmt.Errorf("STOCKGAME_STORE must be postgres or memory, got %q", cfg.Store)
	}
	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.TokenTTL <= 0 {
		return cfg, fmt.Errorf("STOCKGAME_TOKEN_TTL must be positive")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("STK_API_BASE_URL", "http://localhost:8080"), "/"),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envModeDefault() Mode {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STOCKGAME_MODE")))
	if v == "" {
		v = strings.ToLower(strings.TrimSpace(os.Getenv("NODE_ENV")))
	}
	if v == string(ModeProduction) {
		return ModeProduction
	}
	return ModeDevelopment
}

func envVolatilityDefault() string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STOCKGAME_MARKET_VOLATILITY")))
	switch v {
	case "calm", "mor", "wild":
		return v
	default:
		return "mor"
	}
}
