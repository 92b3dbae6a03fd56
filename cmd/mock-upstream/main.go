package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	cfg "wa-gateway/internal/config"
)

func main() {
	conf := cfg.FromEnv()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: conf.SlogLevel()}))

	fiberApp := newMockApp(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("mock-upstream listening", "addr", conf.MockAddr,
			"evolution", "/evolution", "wuzapi", "/wuzapi", "cloud", "/graph")
		if err := fiberApp.Listen(conf.MockAddr); err != nil {
			log.Error("fiber listen", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down mock-upstream")
	_ = fiberApp.Shutdown()
}
