// Command ingest starts a corpus ingest run on the worker's task queue and
// optionally waits for its summary.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"

	"medgraph/internal/config"
	"medgraph/internal/logger"
	"medgraph/internal/logger/console"
	"medgraph/internal/providers"
	"medgraph/internal/workflows"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()

	path := flag.String("path", cfg.DataInRoot, "paper file or directory of papers")
	runID := flag.String("run-id", "", "run id; a random one is generated when empty")
	wait := flag.Bool("wait", false, "block until the run finishes and print its summary")
	cooldown := flag.Int("cooldown", 0, "seconds a quota-exhausted provider stays benched")
	flag.Parse()

	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{Level: cfg.LogLevel}))
	if err := cfg.Validate(); err != nil {
		logger.Fatal("config", "err", err)
	}
	abs, err := filepath.Abs(*path)
	if err != nil {
		logger.Fatal("resolve path", "path", *path, "err", err)
	}
	if _, err := os.Stat(abs); err != nil {
		logger.Fatal("input not found", "path", abs, "err", err)
	}
	pm, err := providers.NewManager(cfg)
	if err != nil {
		logger.Fatal("providers", "err", err)
	}
	if *runID == "" {
		*runID = uuid.NewString()
	}

	c, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress, Namespace: cfg.TemporalNamespace})
	if err != nil {
		logger.Fatal("temporal dial", "address", cfg.TemporalAddress, "err", err)
	}
	defer c.Close()

	ctx := context.Background()
	we, err := c.ExecuteWorkflow(ctx, tclient.StartWorkflowOptions{
		ID:                                       "corpus-" + *runID,
		TaskQueue:                                cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.CorpusIngestWorkflow, workflows.CorpusIngestInput{
		RunID:                 *runID,
		InputDir:              abs,
		MaxConcurrentChildren: cfg.IngestMaxChildren,
		LLMProviders:          pm.LLMCount(),
		EmbedProviders:        pm.EmbedCount(),
		ChunkSize:             cfg.ChunkSize,
		ChunkOverlap:          cfg.ChunkOverlap,
		CooldownSeconds:       *cooldown,
	})
	if err != nil {
		logger.Fatal("start ingest", "err", err)
	}
	logger.Info("ingest started", "workflow_id", we.GetID(), "run_id", we.GetRunID(), "path", abs)
	if !*wait {
		return
	}

	var progress workflows.CorpusIngestProgress
	if err := we.Get(ctx, &progress); err != nil {
		logger.Fatal("ingest failed", "workflow_id", we.GetID(), "err", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(progress); err != nil {
		logger.Fatal("print summary", "err", err)
	}
}
