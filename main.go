package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"webrag/internal/app"
	"webrag/internal/config"
	"webrag/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	a, err := app.New(cfg, deps.DB, deps.VectorStore, deps.NSQProducer, log, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	consumer, err := a.StartWorker()
	if err != nil {
		return err
	}
	if consumer != nil {
		defer func() {
			consumer.Stop()
			<-consumer.StopChan
		}()
	}

	return a.Run(ctx)
}
