package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"medgraph/internal/graph"
	"medgraph/internal/mapper"
	"medgraph/internal/vector"
)

// PostgresStore keeps the entity and relationship tables in Postgres. Entity
// embeddings are mirrored into a pgvector column for ANN search.
type PostgresStore struct {
	db       *DB
	dim      int
	searcher *vector.Searcher

	schemaMu       sync.Mutex
	schemaPrepared bool
}

// NewPostgresStore wraps an open DB. A dim of 0 leaves the vector column
// unconstrained.
func NewPostgresStore(db *DB, dim int) *PostgresStore {
	return &PostgresStore{db: db, dim: dim, searcher: vector.NewSearcher(db.Pool)}
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if s.schemaPrepared {
		return nil
	}
	vecType := "vector"
	if s.dim > 0 {
		vecType = fmt.Sprintf("vector(%d)", s.dim)
	}
	stmts := append(schemaStatements(postgresDialect),
		fmt.Sprintf(`ALTER TABLE %s ADD COLUMN IF NOT EXISTS "embedding_vec" %s`, quote(entitiesTable), vecType),
	)
	for _, stmt := range stmts {
		if _, err := s.db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure postgres schema: %w", err)
		}
	}
	s.schemaPrepared = true
	return nil
}

// embeddingVector converts the JSON embedding column into the pgvector value,
// or nil when the entity has no usable embedding.
func (s *PostgresStore) embeddingVector(rec mapper.PersistedEntity) (any, error) {
	if rec.Embedding == nil {
		return nil, nil
	}
	var emb []float64
	if err := json.Unmarshal([]byte(*rec.Embedding), &emb); err != nil {
		return nil, fmt.Errorf("decode embedding of %s: %w", rec.EntityID, err)
	}
	if len(emb) == 0 || (s.dim > 0 && len(emb) != s.dim) {
		return nil, nil
	}
	return pgvector.NewVector(vector.ToFloat32(emb)), nil
}

func (s *PostgresStore) PutEntity(ctx context.Context, rec mapper.PersistedEntity) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	vec, err := s.embeddingVector(rec)
	if err != nil {
		return err
	}
	cols := rec.Columns()
	names := append(columnNames(cols), "embedding_vec")
	args := append(values(cols), vec)
	if _, err := s.db.Pool.Exec(ctx, postgresDialect.upsert(entitiesTable, names, entityKey), args...); err != nil {
		return fmt.Errorf("upsert entity %s: %w", rec.EntityID, err)
	}
	return nil
}

func (s *PostgresStore) GetEntity(ctx context.Context, id string) (mapper.PersistedEntity, bool, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return mapper.PersistedEntity{}, false, err
	}
	var rec mapper.PersistedEntity
	err := s.db.Pool.QueryRow(ctx, postgresDialect.getEntity(), id).Scan(scanTargets(rec.Columns())...)
	if errors.Is(err, pgx.ErrNoRows) {
		return mapper.PersistedEntity{}, false, nil
	}
	if err != nil {
		return mapper.PersistedEntity{}, false, fmt.Errorf("get entity %s: %w", id, err)
	}
	return rec, true, nil
}

func (s *PostgresStore) QueryEntities(ctx context.Context, f EntityFilter) ([]mapper.PersistedEntity, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	q, args := postgresDialect.entityQuery(f)
	rows, err := s.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()
	out := []mapper.PersistedEntity{}
	for rows.Next() {
		var rec mapper.PersistedEntity
		if err := rows.Scan(scanTargets(rec.Columns())...); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountEntities(ctx context.Context) (map[string]int, error) {
	return s.countBy(ctx, entitiesTable, "entity_type")
}

func (s *PostgresStore) PutRelationship(ctx context.Context, rec mapper.PersistedRelationship) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	cols := rec.Columns()
	if _, err := s.db.Pool.Exec(ctx, postgresDialect.upsert(relationshipsTable, columnNames(cols), relationshipKey), values(cols)...); err != nil {
		return fmt.Errorf("upsert relationship %s: %w", recordKey(rec), err)
	}
	return nil
}

func (s *PostgresStore) GetRelationship(ctx context.Context, key graph.RelationshipKey) (mapper.PersistedRelationship, bool, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return mapper.PersistedRelationship{}, false, err
	}
	var rec mapper.PersistedRelationship
	err := s.db.Pool.QueryRow(ctx, postgresDialect.getRelationship(), key.SubjectID, string(key.Predicate), key.ObjectID).
		Scan(scanTargets(rec.Columns())...)
	if errors.Is(err, pgx.ErrNoRows) {
		return mapper.PersistedRelationship{}, false, nil
	}
	if err != nil {
		return mapper.PersistedRelationship{}, false, fmt.Errorf("get relationship %s: %w", key, err)
	}
	return rec, true, nil
}

func (s *PostgresStore) QueryRelationships(ctx context.Context, f RelationshipFilter) ([]mapper.PersistedRelationship, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	q, args := postgresDialect.relationshipQuery(f)
	rows, err := s.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query relationships: %w", err)
	}
	defer rows.Close()
	out := []mapper.PersistedRelationship{}
	for rows.Next() {
		var rec mapper.PersistedRelationship
		if err := rows.Scan(scanTargets(rec.Columns())...); err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate relationships: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountRelationships(ctx context.Context) (map[string]int, error) {
	return s.countBy(ctx, relationshipsTable, "predicate")
}

func (s *PostgresStore) countBy(ctx context.Context, table, column string) (map[string]int, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.Pool.Query(ctx, countBy(table, column))
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", table, err)
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return nil, fmt.Errorf("scan %s count: %w", table, err)
		}
		out[k] = n
	}
	return out, rows.Err()
}

// SimilarEntities runs an ANN search on the pgvector column.
func (s *PostgresStore) SimilarEntities(ctx context.Context, query []float64, topK int, minScore float64, types ...graph.EntityType) ([]vector.EntityHit, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	filters := vector.SearchFilters{MinScore: minScore}
	for _, t := range types {
		filters.EntityTypes = append(filters.EntityTypes, string(t))
	}
	return s.searcher.SearchEntities(ctx, query, topK, filters)
}
