package main

import (
	"context"
	"time"

	"medgraph/internal/activities"
	"medgraph/internal/config"
	"medgraph/internal/logger"
	"medgraph/internal/logger/console"
	"medgraph/internal/storage"
	"medgraph/internal/workflows"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{Level: cfg.LogLevel}))
	if err := cfg.Validate(); err != nil {
		logger.Fatal("config", "err", err)
	}
	if cfg.Store == "memory" {
		logger.Warn("memory store selected, the graph is lost when the worker exits")
	}

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress, Namespace: cfg.TemporalNamespace})
	if err != nil {
		logger.Fatal("temporal dial", "address", cfg.TemporalAddress, "err", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	repo, err := storage.OpenRepository(ctx, cfg)
	if err != nil {
		logger.Fatal("open store", "store", cfg.Store, "err", err)
	}
	defer repo.Close()

	a, err := activities.New(cfg, repo)
	if err != nil {
		logger.Fatal("activities", "err", err)
	}
	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)
	activities.Register(w, a)

	logger.Info("medgraph worker listening",
		"address", cfg.TemporalAddress,
		"queue", cfg.TemporalTaskQueue,
		"store", cfg.Store,
		"llm_providers", cfg.LLMProviders,
		"embed_providers", cfg.EmbedProviders,
	)
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Fatal("worker stopped", "err", err)
	}
}
