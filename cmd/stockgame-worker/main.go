package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"stockgame/internal/config"
	"stockgame/internal/db"
	"stockgame/internal/market"
	"stockgame/internal/store/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	if cfg.Store != config.StorePostgres {
		slog.Error("worker requires STOCKGAME_STORE=postgres", "store", string(cfg.Store))
		os.Exit(1)
	}
	if cfg.MarketTickEvery <= 0 {
		slog.Error("STOCKGAME_MARKET_TICK_EVERY must be positive")
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	pool, err := db.Connect(ctx, cfg.DatabaseURL, "stockgame-worker", 2)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		logger.Error("db migrate failed", "err", err)
		os.Exit(1)
	}

	book := postgres.New(pool, logger)
	if cfg.StartupSeedInstruments {
		instruments := market.DefaultInstruments()
		if cfg.InstrumentsFile != "" {
			instruments, err = market.LoadInstruments(cfg.InstrumentsFile)
			if err != nil {
				logger.Error("load instruments failed", "file", cfg.InstrumentsFile, "err", err)
				os.Exit(1)
			}
		}
		if err := book.SeedInstruments(ctx, instruments); err != nil {
			logger.Error("seed instruments failed", "err", err)
			os.Exit(1)
		}
	}

	sim := market.NewSimulator(cfg.MarketVolatility, 0)

	runOnce := strings.EqualFold(strings.TrimSpace(os.Getenv("STOCKGAME_WORKER_RUN_ONCE")), "true")
	if runOnce {
		if err := market.RunTick(ctx, book, sim); err != nil {
			logger.Error("tick failed", "err", err)
			os.Exit(1)
		}
		logger.Info("worker run-once completed")
		return
	}

	ticker := time.NewTicker(cfg.MarketTickEvery)
	defer ticker.Stop()

	logger.Info("worker started", "tick_every", cfg.MarketTickEvery.String(), "volatility", cfg.MarketVolatility)
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutdown")
			return
		case <-ticker.C:
			if err := market.RunTick(ctx, book, sim); err != nil {
				logger.Error("market tick failed", "err", err)
				continue
			}
			logger.Info("market tick complete", "regime", sim.Regime())
		}
	}
}
