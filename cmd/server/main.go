package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dcagrid/backtester/internal/api"
	"github.com/dcagrid/backtester/internal/config"
	"github.com/dcagrid/backtester/internal/logger"
	"github.com/dcagrid/backtester/internal/provider"
)

var configFile = flag.String("config", "config.yaml", "Path to YAML config file (optional)")

func main() {
	flag.Parse()

	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	logger.SetDefault(logger.New(&logger.Config{
		Level:  logLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
	}))
	log := logger.Component("server")

	prices := provider.NewCSVPriceProvider(cfg.Data.Dir)
	betas := provider.NewStaticBetaProvider(nil)
	server := api.NewServer(cfg, prices, betas)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithField("addr", cfg.Server.Addr).Info("starting backtester server")
	if err := server.Run(ctx); err != nil {
		log.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
	log.Info("server stopped")
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
