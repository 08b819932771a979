package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "STOCKGAME_API_ADDR", "STOCKGAME_MODE", "NODE_ENV", "STOCKGAME_STORE",
		"DATABASE_URL", "JWT_SECRET", "STOCKGAME_TOKEN_TTL", "STOCKGAME_ADMIN_EMAIL",
		"STOCKGAME_ADMIN_PASSWORD", "STOCKGAME_INSTRUMENTS_FILE", "STOCKGAME_MARKET_TICK_EVERY",
		"STOCKGAME_MARKET_VOLATILITY", "STOCKGAME_STARTUP_SEED_INSTRUMENTS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadAPIFromEnvDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/stockgame")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := LoadAPIFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.Mode != ModeDevelopment || !cfg.ExposeErrorDetail() {
		t.Fatalf("expected development mode, got %q", cfg.Mode)
	}
	if cfg.Store != StorePostgres {
		t.Fatalf("Store = %q", cfg.Store)
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Fatalf("TokenTTL = %s", cfg.TokenTTL)
	}
	if cfg.MarketVolatility != "mor" {
		t.Fatalf("MarketVolatility = %q", cfg.MarketVolatility)
	}
	if !cfg.StartupSeedInstruments {
		t.Fatalf("expected instrument seeding on by default")
	}
}

func TestLoadAPIFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("STOCKGAME_STORE", "memory")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("NODE_ENV", "production")
	t.Setenv("STOCKGAME_TOKEN_TTL", "90m")
	t.Setenv("STOCKGAME_MARKET_VOLATILITY", "WILD")

	cfg, err := LoadAPIFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != ":9000" {
		t.Fatalf("Addr = %q", cfg.Addr)
	}
	if cfg.Mode != ModeProduction || cfg.ExposeErrorDetail() {
		t.Fatalf("expected production mode to hide detail")
	}
	if cfg.TokenTTL != 90*time.Minute {
		t.Fatalf("TokenTTL = %s", cfg.TokenTTL)
	}
	if cfg.MarketVolatility != "wild" {
		t.Fatalf("MarketVolatility = %q", cfg.MarketVolatility)
	}
}

func TestLoadAPIFromEnvRequired(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing database url", env: map[string]string{"JWT_SECRET": "x"}},
		{name: "missing jwt secret", env: map[string]string{"STOCKGAME_STORE": "memory"}},
		{name: "unknown store", env: map[string]string{"STOCKGAME_STORE": "mongo", "JWT_SECRET": "x"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := LoadAPIFromEnv(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
