// Command kgdump copies the graph between the configured store and a pair of
// JSON Lines files.
//
//	kgdump export -dir ./data/out/graph
//	kgdump import -dir ./data/out/graph
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"medgraph/internal/config"
	"medgraph/internal/logger"
	"medgraph/internal/logger/console"
	"medgraph/internal/storage"

	"github.com/joho/godotenv"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: kgdump export|import -dir DIR")
	os.Exit(2)
}

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{Level: cfg.LogLevel}))

	if len(os.Args) < 2 {
		usage()
	}
	cmd := os.Args[1]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	dir := fs.String("dir", cfg.DataOutRoot+"/graph", "directory holding entities.jsonl and relationships.jsonl")
	_ = fs.Parse(os.Args[2:])

	if err := cfg.Validate(); err != nil {
		logger.Fatal("config", "err", err)
	}
	ctx := context.Background()
	repo, err := storage.OpenRepository(ctx, cfg)
	if err != nil {
		logger.Fatal("open store", "store", cfg.Store, "err", err)
	}
	defer repo.Close()

	var res storage.ExportResult
	switch cmd {
	case "export":
		res, err = storage.Export(ctx, repo, *dir)
	case "import":
		res, err = storage.Import(ctx, repo, *dir)
	default:
		usage()
	}
	if err != nil {
		logger.Fatal(cmd+" failed", "dir", *dir, "err", err)
	}
	logger.Info(cmd+" complete", "dir", *dir, "entities", res.Entities, "relationships", res.Relationships)
}
