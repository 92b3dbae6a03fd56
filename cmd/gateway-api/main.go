package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wa-gateway/internal/adapters/cache"
	"wa-gateway/internal/adapters/db/postgres"
	"wa-gateway/internal/adapters/provider/cloud"
	"wa-gateway/internal/adapters/provider/evolution"
	"wa-gateway/internal/adapters/provider/upstream"
	"wa-gateway/internal/adapters/provider/wuzapi"
	"wa-gateway/internal/adapters/queue/rabbitmq"
	"wa-gateway/internal/app"
	cfg "wa-gateway/internal/config"
	"wa-gateway/internal/middleware"
	"wa-gateway/internal/ports"
	"wa-gateway/internal/transport"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	conf := cfg.FromEnv()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true, Level: conf.SlogLevel()}))
	if err := run(conf, log); err != nil {
		log.Error("application failed", "error", err)
		os.Exit(1)
	}
}

func run(conf cfg.Config, log *slog.Logger) error {
	db, err := postgres.Open(conf.DatabaseURL)
	if err != nil {
		return errors.New("failed to connect to postgres: " + err.Error())
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

	// QR recovery reads Wuzapi's own database; without it the API still
	// serves whatever QR the Wuzapi endpoint returns.
	var qrStore ports.QRStore
	if wuzDB, err := postgres.Open(conf.WuzDatabaseURL); err != nil {
		log.Warn("wuzapi database unavailable, qr recovery disabled", "err", err)
	} else {
		defer postgres.Close(wuzDB)
		qrStore = postgres.NewQRStore(wuzDB)
	}

	var publisher ports.SendPublisher
	if p, err := rabbitmq.NewPublisher(conf.AMQPURL); err != nil {
		log.Warn("rabbitmq unavailable, async sends disabled", "err", err)
	} else {
		defer p.Close()
		publisher = p
	}

	up := upstream.New(log)
	dispatcher := app.NewDispatcher(instances, writer, app.Providers{
		Cloud:     cloud.New(conf.CloudVersion, up, log).WithBaseURL(conf.CloudURL),
		Evolution: evolution.New(conf.EvoURL, conf.EvoToken, up, log),
		Wuzapi:    wuzapi.New(conf.WuzURL, conf.WuzAdminToken, qrStore, up, log),
	}, publisher, conf.DefaultWebhook, log)

	fiberApp := fiber.New(fiber.Config{
		AppName:               "gateway-api",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// Wuzapi connect waits up to two seconds for the QR on top of the
		// upstream round-trips.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
		ServerHeader: "",
		// Base64 media travels in the request body.
		BodyLimit: 16 * 1024 * 1024,
	})

	fiberApp.Use(recover.New(recover.Config{EnableStackTrace: true}))
	fiberApp.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${method} ${path} ${latency}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
	fiberApp.Use(middleware.RequestID())
	fiberApp.Use(middleware.SecurityHeaders())
	fiberApp.Use(middleware.CORS(conf.AllowedOrigins))

	fiberApp.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	handler := transport.NewHandler(dispatcher, log)
	api := fiberApp.Group("/api", middleware.BearerToken(conf.Token, log))
	handler.Register(api)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		log.Info("gateway-api started", "addr", conf.HTTPAddr())
		if err := fiberApp.Listen(conf.HTTPAddr()); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := fiberApp.ShutdownWithContext(shutdownCtx); err != nil {
		return errors.New("failed to shutdown gracefully: " + err.Error())
	}

	log.Info("gateway-api stopped gracefully")
	return nil
}
