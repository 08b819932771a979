package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockgame/internal/api"
	"stockgame/internal/auth"
	"stockgame/internal/config"
	"stockgame/internal/db"
	"stockgame/internal/game"
	"stockgame/internal/market"
	"stockgame/internal/store/memory"
	"stockgame/internal/store/postgres"
)

type backend interface {
	auth.UserStore
	game.Store
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	instruments := market.DefaultInstruments()
	if cfg.InstrumentsFile != "" {
		instruments, err = market.LoadInstruments(cfg.InstrumentsFile)
		if err != nil {
			logger.Error("load instruments failed", "file", cfg.InstrumentsFile, "err", err)
			os.Exit(1)
		}
	}

	var (
		store backend
		book  market.Book
	)
	switch cfg.Store {
	case config.StoreMemory:
		store = memory.New()
		table := market.NewTable(instruments)
		book = table
		go runTicker(ctx, logger, table, cfg)
	default:
		pool, err := db.Connect(ctx, cfg.DatabaseURL, "stockgame-api", 20)
		if err != nil {
			logger.Error("db connect failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Error("db migrate failed", "err", err)
			os.Exit(1)
		}
		pg := postgres.New(pool, logger)
		if cfg.StartupSeedInstruments {
			if err := pg.SeedInstruments(ctx, instruments); err != nil {
				logger.Error("seed instruments failed", "err", err)
				os.Exit(1)
			}
		}
		store, book = pg, pg
	}

	authSvc := auth.NewService(store, auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL), logger)
	if cfg.AdminPassword != "" {
		admin, err := authSvc.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			logger.Error("ensure admin failed", "email", cfg.AdminEmail, "err", err)
			os.Exit(1)
		}
		logger.Info("admin account ready", "user_id", admin.ID)
	}
	gameSvc := game.NewService(store, book, logger)

	server := api.New(cfg, logger, authSvc, gameSvc, book)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		server.Stream().Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("stockgame api listening", "addr", cfg.Addr, "store", string(cfg.Store), "mode", string(cfg.Mode))
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}

// runTicker drives prices for the in-memory book. With Postgres the worker
// binary owns this loop.
func runTicker(ctx context.Context, logger *slog.Logger, book market.Book, cfg config.APIConfig) {
	if cfg.MarketTickEvery <= 0 {
		return
	}
	sim := market.NewSimulator(cfg.MarketVolatility, 0)
	ticker := time.NewTicker(cfg.MarketTickEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := market.RunTick(ctx, book, sim); err != nil {
				logger.Error("market tick failed", "err", err)
				continue
			}
			logger.Debug("market tick complete", "regime", sim.Regime())
		}
	}
}
