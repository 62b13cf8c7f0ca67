package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"medgraph/internal/graph"
	"medgraph/internal/mapper"
	"medgraph/internal/metrics"
	"medgraph/internal/registry"
	"medgraph/internal/vector"
)

// Repository stores domain values through the mapper. MappingErrors raised
// while reading are returned to the caller unchanged.
type Repository struct {
	store Store
	dim   int

	// mergeMu serialises read-merge-write of relationships within a process.
	mergeMu sync.Mutex
}

type Option func(*Repository)

// WithEmbedDim makes the repository reject entity embeddings and similarity
// queries of any other length.
func WithEmbedDim(dim int) Option {
	return func(r *Repository) {
		if dim > 0 {
			r.dim = dim
		}
	}
}

func NewRepository(store Store, opts ...Option) *Repository {
	r := &Repository{store: store}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repository) checkDim(field string, n int) error {
	if r.dim > 0 && n != r.dim {
		return &graph.ValidationError{Field: field, Reason: fmt.Sprintf("dimension %d, store uses %d", n, r.dim)}
	}
	return nil
}

func (r *Repository) Store() Store { return r.store }

func (r *Repository) Close() error { return r.store.Close() }

// SaveEntity writes e, replacing any stored entity with the same ID.
func (r *Repository) SaveEntity(ctx context.Context, e graph.Entity) error {
	if len(e.Embedding) > 0 {
		if err := r.checkDim("embedding", len(e.Embedding)); err != nil {
			return err
		}
	}
	rec, err := mapper.EntityToPersistence(e)
	if err != nil {
		return err
	}
	defer metrics.ObserveStoreCall("put_entity", time.Now())
	if err := r.store.PutEntity(ctx, rec); err != nil {
		return err
	}
	metrics.RecordEntityWritten(rec.EntityType)
	return nil
}

// EnsureEntity writes e only if no entity with its ID exists yet, so
// extracted stubs never overwrite curated records. It reports whether e was
// written.
func (r *Repository) EnsureEntity(ctx context.Context, e graph.Entity) (bool, error) {
	_, ok, err := r.store.GetEntity(ctx, e.EntityID)
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}
	if err := r.SaveEntity(ctx, e); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repository) Entity(ctx context.Context, id string) (graph.Entity, bool, error) {
	defer metrics.ObserveStoreCall("get_entity", time.Now())
	rec, ok, err := r.store.GetEntity(ctx, id)
	if err != nil || !ok {
		return graph.Entity{}, false, err
	}
	e, err := mapper.EntityToDomain(rec)
	if err != nil {
		metrics.RecordMappingError("entity")
		return graph.Entity{}, false, err
	}
	return e, true, nil
}

func (r *Repository) Entities(ctx context.Context, f EntityFilter) ([]graph.Entity, error) {
	defer metrics.ObserveStoreCall("query_entities", time.Now())
	recs, err := r.store.QueryEntities(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]graph.Entity, 0, len(recs))
	for _, rec := range recs {
		e, err := mapper.EntityToDomain(rec)
		if err != nil {
			metrics.RecordMappingError("entity")
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// UpsertRelationship merges rel into the stored relationship with the same
// key, if any, and returns the merged result.
func (r *Repository) UpsertRelationship(ctx context.Context, rel graph.Relationship) (graph.Relationship, error) {
	r.mergeMu.Lock()
	defer r.mergeMu.Unlock()

	existing, ok, err := r.Relationship(ctx, rel.Key())
	if err != nil {
		return graph.Relationship{}, err
	}
	merged := rel
	if ok {
		if merged, err = graph.MergeRelationships(existing, rel); err != nil {
			return graph.Relationship{}, fmt.Errorf("merge relationship %s: %w", rel.Key(), err)
		}
	}
	rec, err := mapper.RelationshipToPersistence(merged)
	if err != nil {
		return graph.Relationship{}, err
	}
	defer metrics.ObserveStoreCall("put_relationship", time.Now())
	if err := r.store.PutRelationship(ctx, rec); err != nil {
		return graph.Relationship{}, err
	}
	metrics.RecordRelationshipWritten(rec.Predicate)
	return merged, nil
}

func (r *Repository) Relationship(ctx context.Context, key graph.RelationshipKey) (graph.Relationship, bool, error) {
	rec, ok, err := r.store.GetRelationship(ctx, key)
	if err != nil || !ok {
		return graph.Relationship{}, false, err
	}
	rel, err := mapper.RelationshipToDomain(rec)
	if err != nil {
		metrics.RecordMappingError("relationship")
		return graph.Relationship{}, false, err
	}
	return rel, true, nil
}

func (r *Repository) Relationships(ctx context.Context, f RelationshipFilter) ([]graph.Relationship, error) {
	defer metrics.ObserveStoreCall("query_relationships", time.Now())
	recs, err := r.store.QueryRelationships(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]graph.Relationship, 0, len(recs))
	for _, rec := range recs {
		rel, err := mapper.RelationshipToDomain(rec)
		if err != nil {
			metrics.RecordMappingError("relationship")
			return nil, err
		}
		out = append(out, rel)
	}
	return out, nil
}

type Stats struct {
	Entities                 int            `json:"entities"`
	Relationships            int            `json:"relationships"`
	EntitiesByType           map[string]int `json:"entities_by_type"`
	RelationshipsByPredicate map[string]int `json:"relationships_by_predicate"`
}

func (r *Repository) Stats(ctx context.Context) (Stats, error) {
	ents, err := r.store.CountEntities(ctx)
	if err != nil {
		return Stats{}, err
	}
	rels, err := r.store.CountRelationships(ctx)
	if err != nil {
		return Stats{}, err
	}
	s := Stats{EntitiesByType: ents, RelationshipsByPredicate: rels}
	for _, n := range ents {
		s.Entities += n
	}
	for _, n := range rels {
		s.Relationships += n
	}
	return s, nil
}

// LoadRegistry adds every stored entity to c and returns how many were added.
func (r *Repository) LoadRegistry(ctx context.Context, c *registry.Collection) (int, error) {
	ents, err := r.Entities(ctx, EntityFilter{})
	if err != nil {
		return 0, err
	}
	for _, e := range ents {
		if err := c.Add(e); err != nil {
			return 0, fmt.Errorf("load entity %s: %w", e.EntityID, err)
		}
	}
	return len(ents), nil
}

// ErrNoVectorIndex is returned by SimilarEntities when the store has no ANN index.
var ErrNoVectorIndex = errors.New("store has no vector index")

type vectorIndex interface {
	SimilarEntities(ctx context.Context, query []float64, topK int, minScore float64, types ...graph.EntityType) ([]vector.EntityHit, error)
}

// SimilarEntities ranks stored entities against query using the store's
// vector index. Arguments are validated like registry.FindByEmbedding.
func (r *Repository) SimilarEntities(ctx context.Context, query []float64, topK int, threshold float64) ([]registry.Match, error) {
	if err := registry.ValidateQuery(query, topK, threshold); err != nil {
		return nil, err
	}
	if err := r.checkDim("query", len(query)); err != nil {
		return nil, err
	}
	idx, ok := r.store.(vectorIndex)
	if !ok {
		return nil, ErrNoVectorIndex
	}
	if topK == 0 {
		return []registry.Match{}, nil
	}
	hits, err := idx.SimilarEntities(ctx, query, topK, threshold)
	if err != nil {
		return nil, err
	}
	out := make([]registry.Match, 0, len(hits))
	for _, h := range hits {
		e, ok, err := r.Entity(ctx, h.EntityID)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, registry.Match{Entity: e, Similarity: h.Similarity})
		}
	}
	return out, nil
}
