package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"wa-gateway/internal/adapters/cache"
	"wa-gateway/internal/adapters/db/postgres"
	"wa-gateway/internal/adapters/provider/cloud"
	"wa-gateway/internal/adapters/provider/evolution"
	"wa-gateway/internal/adapters/provider/upstream"
	"wa-gateway/internal/adapters/provider/wuzapi"
	"wa-gateway/internal/adapters/queue/rabbitmq"
	"wa-gateway/internal/app"
	cfg "wa-gateway/internal/config"
	"wa-gateway/internal/ports"
)

func main() {
	conf := cfg.FromEnv()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: conf.SlogLevel()}))
	if err := run(conf, log); err != nil {
		log.Error("send-worker failed", "error", err)
		os.Exit(1)
	}
}

func run(conf cfg.Config, log *slog.Logger) error {
	db, err := postgres.Open(conf.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer postgres.Close(db)
	repo := postgres.New(db)

	var (
		instances ports.InstanceRepository = repo
		writer    ports.InstanceWriter     = repo
	)
	if conf.InstanceCacheTTL > 0 {
		c := cache.NewInstances(repo, repo, conf.InstanceCacheTTL)
		instances, writer = c, c
	}

	consumer, err := rabbitmq.NewConsumer(conf.AMQPURL, log)
	if err != nil {
		return fmt.Errorf("connect rabbitmq consumer: %w", err)
	}
	defer consumer.Close()

	// Queued sends never touch the QR path, so the worker does not open
	// Wuzapi's database. Async enqueueing stays with the API.
	up := upstream.New(log)
	dispatcher := app.NewDispatcher(instances, writer, app.Providers{
		Cloud:     cloud.New(conf.CloudVersion, up, log).WithBaseURL(conf.CloudURL),
		Evolution: evolution.New(conf.EvoURL, conf.EvoToken, up, log),
		Wuzapi:    wuzapi.New(conf.WuzURL, conf.WuzAdminToken, nil, up, log),
	}, nil, conf.DefaultWebhook, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("send-worker started")

	if err := consumer.Consume(ctx, dispatcher.HandleQueued); err != nil && ctx.Err() == nil {
		return fmt.Errorf("consume: %w", err)
	}

	log.Info("shutting down send-worker")
	return nil
}
