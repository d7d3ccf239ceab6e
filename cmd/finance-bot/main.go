package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	appamqp "github.com/stepanyanprod-creator/finance-bot/internal/amqp"
	"github.com/stepanyanprod-creator/finance-bot/internal/backend"
	"github.com/stepanyanprod-creator/finance-bot/internal/config"
	apphttp "github.com/stepanyanprod-creator/finance-bot/internal/http"
	"github.com/stepanyanprod-creator/finance-bot/internal/log"
	"github.com/stepanyanprod-creator/finance-bot/internal/services"
)

func main() {
	// Load .env for local development, ignore errors in production/docker
	_ = godotenv.Load()

	logger := log.New(log.Config{
		Level:     log.ParseLevel(os.Getenv("LOG_LEVEL")),
		Component: log.ComponentApp,
		Format:    os.Getenv("LOG_FORMAT"),
	})
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}

	store, err := backend.Open(cfg, logger.Logger)
	if err != nil {
		logger.Error("open storage backend failed",
			log.FieldError, err.Error(),
			"backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer store.Close()

	// Event publishing is optional; the ledger works without a broker.
	var publisher services.Publisher
	if cfg.PublishEnabled {
		client, err := appamqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPIntakeQueue, cfg.AMQPEventsQueue, logger)
		if err != nil {
			logger.Error("connect AMQP failed", log.FieldError, err.Error())
			os.Exit(1)
		}
		defer client.Close()
		publisher = client
		logger.Info("ledger event publishing enabled", "exchange", cfg.AMQPExchange)
	}

	ledger := services.NewLedger(store, logger, publisher)

	srv := apphttp.NewServer(":"+cfg.Port, ledger, logger, apphttp.Options{
		RatePerMinute: cfg.RateLimit,
		RateBurst:     cfg.RateBurst,
		CacheSize:     cfg.CacheSize,
		CacheTTL:      cfg.CacheTTL,
		WizardTTL:     cfg.WizardTTL,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("server stopped gracefully")
}
