package main

import (
	"context"
	"net/http"
	"time"

	"medgraph/internal/api"
	"medgraph/internal/config"
	"medgraph/internal/logger"
	"medgraph/internal/logger/console"
	"medgraph/internal/storage"

	"github.com/joho/godotenv"
	tclient "go.temporal.io/sdk/client"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{Level: cfg.LogLevel}))
	if err := cfg.Validate(); err != nil {
		logger.Fatal("config", "err", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	repo, err := storage.OpenRepository(ctx, cfg)
	if err != nil {
		logger.Fatal("open store", "store", cfg.Store, "err", err)
	}
	defer repo.Close()

	var wc api.WorkflowClient
	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress, Namespace: cfg.TemporalNamespace})
	if err != nil {
		logger.Warn("temporal unavailable, run status disabled", "address", cfg.TemporalAddress, "err", err)
	} else {
		defer tc.Close()
		wc = tc
	}

	h := api.NewServer(cfg, repo, nil, wc)
	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info("medgraph api listening", "addr", cfg.APIAddr, "store", cfg.Store)
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal("api server stopped", "err", err)
	}
}
