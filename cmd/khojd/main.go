package main

import (
	"context"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"khoj/internal/casestore"
	"khoj/internal/config"
	"khoj/internal/daemon"
	"khoj/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := casestore.Open(cfg)
	if err != nil {
		logger.Error("open case store", logging.Error(err))
		return
	}
	defer store.Close()

	svc, err := buildService(cfg, store, logger)
	if err != nil {
		logger.Error("wire case service", logging.Error(err))
		return
	}

	d, err := daemon.New(cfg, store, svc, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		return
	}
	logger.Info("khojd listening", slog.String("address", d.Addr()))

	<-ctx.Done()
	logger.Info("khojd shutting down")
}
