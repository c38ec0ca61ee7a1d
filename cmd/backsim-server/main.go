// backsim-server hosts the backtesting REST and WebSocket API.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"backsim/internal/api"
	"backsim/internal/config"
	"backsim/internal/data"
	"backsim/internal/store"
	"backsim/internal/strategy"
	"backsim/internal/strategy/builtins"
	"backsim/internal/translate"
	"backsim/internal/util"
)

func main() {
	// Local .env is optional.
	_ = godotenv.Load()

	cfgPath := "config/backsim.yaml"
	if p := os.Getenv("BACKSIM_CONFIG"); p != "" {
		cfgPath = p
	}
	if _, err := os.Stat(cfgPath); err != nil {
		cfgPath = ""
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(logger)

	var barStore store.BarStore
	switch cfg.Storage.Backend {
	case "sqlite":
		s, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("opening sqlite store: %v", err)
		}
		defer s.Close()
		barStore = s
	default:
		barStore = store.NewParquetStore(cfg.Storage.DataDir)
	}

	opts := []data.Option{
		data.WithTTL(time.Duration(cfg.Storage.CacheTTLHours) * time.Hour),
	}
	if cfg.Alpaca.RateLimitPerMin > 0 {
		opts = append(opts, data.WithRateLimit(cfg.Alpaca.RateLimitPerMin))
	}
	manager := data.NewManager(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL,
		barStore, logger, opts...)

	registry := strategy.NewRegistry()
	builtins.RegisterAll(registry)

	// A nil translator disables the translation endpoints.
	var translator api.Translator
	if cfg.Translate.APIKey != "" {
		translator = translate.NewService(cfg.Translate.APIKey, cfg.Translate.BaseURL,
			cfg.Translate.Model, logger)
	}

	server := api.NewServer(cfg, manager, registry, translator, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "err", err)
		}
	}
}
