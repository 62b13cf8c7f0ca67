package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"medgraph/internal/graph"
	"medgraph/internal/mapper"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists records in a single SQLite file opened in WAL mode.
type SQLiteStore struct {
	db *sql.DB

	schemaMu       sync.Mutex
	schemaPrepared bool
}

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Writes are serialised by SQLite anyway.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if s.schemaPrepared {
		return nil
	}
	for _, stmt := range schemaStatements(sqliteDialect) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure sqlite schema: %w", err)
		}
	}
	s.schemaPrepared = true
	return nil
}

// schemaStatements is the DDL shared by the SQL backends.
func schemaStatements(d dialect) []string {
	return []string{
		d.createTable(entitiesTable, (&mapper.PersistedEntity{}).Columns(), entityKey),
		createIndex(entitiesTable, "entity_type"),
		d.createTable(relationshipsTable, (&mapper.PersistedRelationship{}).Columns(), relationshipKey),
		createIndex(relationshipsTable, "subject_id"),
		createIndex(relationshipsTable, "object_id"),
		createIndex(relationshipsTable, "predicate"),
	}
}

func (s *SQLiteStore) PutEntity(ctx context.Context, rec mapper.PersistedEntity) error {
	cols := rec.Columns()
	if _, err := s.db.ExecContext(ctx, sqliteDialect.upsert(entitiesTable, columnNames(cols), entityKey), values(cols)...); err != nil {
		return fmt.Errorf("upsert entity %s: %w", rec.EntityID, err)
	}
	return nil
}

func (s *SQLiteStore) GetEntity(ctx context.Context, id string) (mapper.PersistedEntity, bool, error) {
	var rec mapper.PersistedEntity
	err := s.db.QueryRowContext(ctx, sqliteDialect.getEntity(), id).Scan(scanTargets(rec.Columns())...)
	if errors.Is(err, sql.ErrNoRows) {
		return mapper.PersistedEntity{}, false, nil
	}
	if err != nil {
		return mapper.PersistedEntity{}, false, fmt.Errorf("get entity %s: %w", id, err)
	}
	return rec, true, nil
}

func (s *SQLiteStore) QueryEntities(ctx context.Context, f EntityFilter) ([]mapper.PersistedEntity, error) {
	q, args := sqliteDialect.entityQuery(f)
	rows, err := s.db.QueryContext(ctx, q, args...)
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

func (s *SQLiteStore) CountEntities(ctx context.Context) (map[string]int, error) {
	return s.countBy(ctx, entitiesTable, "entity_type")
}

func (s *SQLiteStore) PutRelationship(ctx context.Context, rec mapper.PersistedRelationship) error {
	cols := rec.Columns()
	if _, err := s.db.ExecContext(ctx, sqliteDialect.upsert(relationshipsTable, columnNames(cols), relationshipKey), values(cols)...); err != nil {
		return fmt.Errorf("upsert relationship %s: %w", recordKey(rec), err)
	}
	return nil
}

func (s *SQLiteStore) GetRelationship(ctx context.Context, key graph.RelationshipKey) (mapper.PersistedRelationship, bool, error) {
	var rec mapper.PersistedRelationship
	err := s.db.QueryRowContext(ctx, sqliteDialect.getRelationship(), key.SubjectID, string(key.Predicate), key.ObjectID).
		Scan(scanTargets(rec.Columns())...)
	if errors.Is(err, sql.ErrNoRows) {
		return mapper.PersistedRelationship{}, false, nil
	}
	if err != nil {
		return mapper.PersistedRelationship{}, false, fmt.Errorf("get relationship %s: %w", key, err)
	}
	return rec, true, nil
}

func (s *SQLiteStore) QueryRelationships(ctx context.Context, f RelationshipFilter) ([]mapper.PersistedRelationship, error) {
	q, args := sqliteDialect.relationshipQuery(f)
	rows, err := s.db.QueryContext(ctx, q, args...)
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

func (s *SQLiteStore) CountRelationships(ctx context.Context) (map[string]int, error) {
	return s.countBy(ctx, relationshipsTable, "predicate")
}

func (s *SQLiteStore) countBy(ctx context.Context, table, column string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, countBy(table, column))
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
