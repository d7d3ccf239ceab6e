package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	appamqp "github.com/stepanyanprod-creator/finance-bot/internal/amqp"
	"github.com/stepanyanprod-creator/finance-bot/internal/backend"
	"github.com/stepanyanprod-creator/finance-bot/internal/config"
	"github.com/stepanyanprod-creator/finance-bot/internal/log"
	"github.com/stepanyanprod-creator/finance-bot/internal/services"
	"github.com/stepanyanprod-creator/finance-bot/internal/worker"
)

func main() {
	// Load .env for local development, ignore errors in production/docker
	_ = godotenv.Load()

	logger := log.New(log.Config{
		Level:     log.ParseLevel(os.Getenv("LOG_LEVEL")),
		Component: log.ComponentWorker,
		Format:    os.Getenv("LOG_FORMAT"),
	})
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the intake worker")
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

	client, err := appamqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPIntakeQueue, cfg.AMQPEventsQueue, logger)
	if err != nil {
		logger.Error("connect AMQP failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer client.Close()

	// The worker publishes ledger events for the rows it appends.
	ledger := services.NewLedger(store, logger, client)
	intake := worker.NewIntakeWorker(ledger, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting intake worker",
			"queue", cfg.AMQPIntakeQueue,
			"prefetch", cfg.AMQPPrefetch,
			"concurrency", cfg.WorkerConcurrent)
		err := client.ConsumeCandidates(ctx, cfg.AMQPPrefetch, cfg.WorkerConcurrent, intake.HandleCandidate)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("worker error", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("worker stopped gracefully")
}
