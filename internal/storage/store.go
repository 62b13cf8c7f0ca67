package storage

import (
	"context"

	"medgraph/internal/graph"
	"medgraph/internal/mapper"
)

// EntityFilter narrows QueryEntities. Zero fields do not filter; a Limit of 0
// returns every match.
type EntityFilter struct {
	Type         graph.EntityType
	NameContains string
	Limit        int
}

type RelationshipFilter struct {
	SubjectID     string
	ObjectID      string
	Predicate     graph.PredicateType
	MinConfidence float64
	PaperID       string
	Limit         int
}

type EntityStore interface {
	PutEntity(ctx context.Context, rec mapper.PersistedEntity) error
	// GetEntity reports false when no record has the id.
	GetEntity(ctx context.Context, id string) (mapper.PersistedEntity, bool, error)
	// QueryEntities returns matches ordered by entity_id.
	QueryEntities(ctx context.Context, f EntityFilter) ([]mapper.PersistedEntity, error)
	// CountEntities counts records per entity_type.
	CountEntities(ctx context.Context) (map[string]int, error)
}

type RelationshipStore interface {
	PutRelationship(ctx context.Context, rec mapper.PersistedRelationship) error
	GetRelationship(ctx context.Context, key graph.RelationshipKey) (mapper.PersistedRelationship, bool, error)
	// QueryRelationships returns matches by descending confidence, then key.
	QueryRelationships(ctx context.Context, f RelationshipFilter) ([]mapper.PersistedRelationship, error)
	// CountRelationships counts records per predicate.
	CountRelationships(ctx context.Context) (map[string]int, error)
}

type Store interface {
	EntityStore
	RelationshipStore
	Close() error
}
