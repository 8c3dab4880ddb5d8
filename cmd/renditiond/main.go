package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"rendition/internal/config"
	"rendition/internal/daemon"
	"rendition/internal/logging"
	"rendition/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to the configuration file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: buildLogPaths(cfg),
	})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := storage.NewMinioStore(cfg.Storage)
	if err != nil {
		logger.Error("open object store", logging.Error(err))
		return
	}

	d, err := daemon.New(cfg, newRedisClient(cfg), store, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("renditiond shutting down")
}
