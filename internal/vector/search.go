package vector

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// EntityHit is one row of an approximate nearest-neighbour entity search.
type EntityHit struct {
	EntityID   string  `json:"entity_id"`
	EntityType string  `json:"entity_type"`
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
}

type SearchFilters struct {
	EntityTypes []string
	MinScore    float64
}

type Searcher struct {
	q Queryer
}

type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func NewSearcher(q Queryer) *Searcher {
	return &Searcher{q: q}
}

// SearchEntities ranks entities by cosine distance on the pgvector column
// populated by the Postgres store. Equal distances fall back to entity_id,
// the order stores list entities in.
func (s *Searcher) SearchEntities(ctx context.Context, queryVec []float64, topK int, filters SearchFilters) ([]EntityHit, error) {
	if topK <= 0 {
		return []EntityHit{}, nil
	}
	args := []any{pgvector.NewVector(ToFloat32(queryVec)), topK}

	filterSQL := ""
	if len(filters.EntityTypes) > 0 {
		filterSQL = " AND e.entity_type = ANY($3)"
		args = append(args, filters.EntityTypes)
	}

	query := `
SELECT e.entity_id,
       e.entity_type,
       e.name,
       1 - (e.embedding_vec <=> $1) AS score
FROM entities e
WHERE e.embedding_vec IS NOT NULL` + filterSQL + `
ORDER BY e.embedding_vec <=> $1, e.entity_id
LIMIT $2`

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entity vector search: %w", err)
	}
	defer rows.Close()

	results := make([]EntityHit, 0, topK)
	for rows.Next() {
		var h EntityHit
		if err := rows.Scan(&h.EntityID, &h.EntityType, &h.Name, &h.Similarity); err != nil {
			return nil, fmt.Errorf("scan entity hit: %w", err)
		}
		if h.Similarity < filters.MinScore {
			continue
		}
		results = append(results, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return results, nil
}

func ToFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
