package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"medgraph/internal/config"
	"medgraph/internal/util"
)

// OpenRepository opens the store selected by cfg.Store. The caller closes the
// returned repository.
func OpenRepository(ctx context.Context, cfg config.Config) (*Repository, error) {
	switch cfg.Store {
	case "memory":
		return NewRepository(NewMemoryStore(), WithEmbedDim(cfg.EmbedDim)), nil
	case "sqlite":
		if err := util.EnsureDir(filepath.Dir(cfg.SQLitePath)); err != nil {
			return nil, fmt.Errorf("prepare sqlite dir: %w", err)
		}
		s, err := NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return NewRepository(s, WithEmbedDim(cfg.EmbedDim)), nil
	case "postgres":
		db, err := NewDB(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		return NewRepository(NewPostgresStore(db, cfg.EmbedDim), WithEmbedDim(cfg.EmbedDim)), nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}
