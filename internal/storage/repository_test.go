package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"medgraph/internal/graph"
	"medgraph/internal/mapper"
	"medgraph/internal/registry"
	"medgraph/internal/vector"

	"github.com/stretchr/testify/require"
)

func seededRepository(t *testing.T) *Repository {
	t.Helper()
	ctx := context.Background()
	repo := NewRepository(NewMemoryStore())
	for _, e := range sampleEntities(t) {
		require.NoError(t, repo.SaveEntity(ctx, e))
	}
	for _, rel := range sampleRelationships(t) {
		_, err := repo.UpsertRelationship(ctx, rel)
		require.NoError(t, err)
	}
	return repo
}

func TestEnsureEntityKeepsExisting(t *testing.T) {
	ctx := context.Background()
	repo := seededRepository(t)

	stub, err := graph.NewDisease("C0006142", "breast cancer", graph.DiseaseAttrs{}, graph.WithSource(graph.SourceExtracted))
	require.NoError(t, err)
	wrote, err := repo.EnsureEntity(ctx, stub)
	require.NoError(t, err)
	require.False(t, wrote)

	got, ok, err := repo.Entity(ctx, "C0006142")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Breast Cancer", got.Name)

	fresh, err := graph.NewSymptom("symptom:fatigue", "fatigue", graph.SymptomAttrs{})
	require.NoError(t, err)
	wrote, err = repo.EnsureEntity(ctx, fresh)
	require.NoError(t, err)
	require.True(t, wrote)
}

func TestUpsertRelationshipMergesEvidence(t *testing.T) {
	ctx := context.Background()
	repo := seededRepository(t)

	more, err := graph.NewTreats("RxNorm:1187832", "C0006142",
		[]graph.Evidence{evidence("PMC555", graph.StudyCohort, 0.7)}, graph.TreatsAttrs{Efficacy: "moderate"})
	require.NoError(t, err)
	merged, err := repo.UpsertRelationship(ctx, more)
	require.NoError(t, err)
	require.Equal(t, 2, merged.EvidenceCount())
	require.Equal(t, []string{"PMC999", "PMC555"}, merged.SourcePapers())
	require.InDelta(t, (0.92+0.7*0.8)/2, merged.Confidence(), 1e-9)
	lot, ok := merged.MetaString("line_of_therapy")
	require.True(t, ok)
	require.Equal(t, "second-line", lot)

	// The same observation again adds nothing.
	again, err := repo.UpsertRelationship(ctx, more)
	require.NoError(t, err)
	require.Equal(t, 2, again.EvidenceCount())

	stored, ok, err := repo.Relationship(ctx, more.Key())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, merged.Confidence(), stored.Confidence())
}

func TestRepositoryStats(t *testing.T) {
	repo := seededRepository(t)
	st, err := repo.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, st.Entities)
	require.Equal(t, 4, st.Relationships)
	require.Equal(t, 1, st.EntitiesByType["gene"])
	require.Equal(t, 1, st.RelationshipsByPredicate["treats"])
}

func TestLoadRegistry(t *testing.T) {
	repo := seededRepository(t)
	c := registry.New(0)
	n, err := repo.LoadRegistry(context.Background(), c)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, 3, c.Dimension())

	e, ok := c.GetByUMLS("C0006142")
	require.True(t, ok)
	require.Equal(t, graph.EntityDisease, e.Type)
}

func TestRepositoryReportsMappingErrors(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	repo := NewRepository(s)
	require.NoError(t, s.PutEntity(ctx, mapper.PersistedEntity{EntityID: "x", EntityType: "organ", Name: "liver", Source: "manual"}))

	_, _, err := repo.Entity(ctx, "x")
	require.Error(t, err)
	require.True(t, errors.Is(err, mapper.ErrMapping))
	var me *mapper.MappingError
	require.True(t, errors.As(err, &me))
	require.Equal(t, "x", me.Key)

	_, err = repo.Entities(ctx, EntityFilter{})
	require.ErrorIs(t, err, mapper.ErrMapping)

	require.NoError(t, s.PutRelationship(ctx, mapper.PersistedRelationship{
		SubjectID: "a", Predicate: "treats", ObjectID: "b", SourcePapers: "[]", Evidence: "not json",
	}))
	_, err = repo.Relationships(ctx, RelationshipFilter{})
	require.ErrorIs(t, err, mapper.ErrMapping)
}

func TestSimilarEntitiesNeedsVectorIndex(t *testing.T) {
	repo := seededRepository(t)
	_, err := repo.SimilarEntities(context.Background(), []float64{1, 0, 0}, 5, 0.5)
	require.ErrorIs(t, err, ErrNoVectorIndex)
}

type indexedStore struct {
	*MemoryStore
	calls int
	hits  []vector.EntityHit
}

func (s *indexedStore) SimilarEntities(_ context.Context, _ []float64, topK int, _ float64, _ ...graph.EntityType) ([]vector.EntityHit, error) {
	s.calls++
	if len(s.hits) > topK {
		return s.hits[:topK], nil
	}
	return s.hits, nil
}

func TestSimilarEntitiesValidatesBeforeIndex(t *testing.T) {
	ctx := context.Background()
	store := &indexedStore{MemoryStore: NewMemoryStore(), hits: []vector.EntityHit{{EntityID: "HGNC:1100", Similarity: 0.9}}}
	repo := NewRepository(store, WithEmbedDim(3))
	g, err := graph.NewGene("HGNC:1100", "BRCA1", graph.GeneAttrs{HGNCID: "HGNC:1100"}, graph.WithEmbedding([]float64{0, 1, 0}))
	require.NoError(t, err)
	require.NoError(t, repo.SaveEntity(ctx, g))

	none, err := repo.SimilarEntities(ctx, []float64{0, 1, 0}, 0, 0.85)
	require.NoError(t, err)
	require.Empty(t, none)

	for _, tc := range []struct {
		name      string
		query     []float64
		topK      int
		threshold float64
	}{
		{"threshold too high", []float64{0, 1, 0}, 5, 2},
		{"negative top_k", []float64{0, 1, 0}, -1, 0.5},
		{"zero vector", []float64{0, 0, 0}, 5, 0.5},
		{"wrong dimension", []float64{0, 1}, 5, 0.5},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := repo.SimilarEntities(ctx, tc.query, tc.topK, tc.threshold)
			require.ErrorIs(t, err, graph.ErrInvalid)
		})
	}
	require.Zero(t, store.calls)

	matches, err := repo.SimilarEntities(ctx, []float64{0, 1, 0}, 5, 0.85)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "BRCA1", matches[0].Entity.Name)
	require.Equal(t, 1, store.calls)
}

func TestSaveEntityEnforcesEmbedDim(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(NewMemoryStore(), WithEmbedDim(2))
	a, err := graph.NewDisease("D:a", "a", graph.DiseaseAttrs{}, graph.WithEmbedding([]float64{1, 0}))
	require.NoError(t, err)
	b, err := graph.NewDisease("D:b", "b", graph.DiseaseAttrs{}, graph.WithEmbedding([]float64{1, 0, 0}))
	require.NoError(t, err)
	plain, err := graph.NewDisease("D:c", "c", graph.DiseaseAttrs{})
	require.NoError(t, err)

	require.NoError(t, repo.SaveEntity(ctx, a))
	require.ErrorIs(t, repo.SaveEntity(ctx, b), graph.ErrInvalid)
	require.NoError(t, repo.SaveEntity(ctx, plain))

	res, err := Export(ctx, repo, t.TempDir())
	require.NoError(t, err)
	require.Equal(t, 2, res.Entities)
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := seededRepository(t)
	dir := filepath.Join(t.TempDir(), "dump")

	res, err := Export(ctx, src, dir)
	require.NoError(t, err)
	require.Equal(t, ExportResult{Entities: 5, Relationships: 4}, res)

	dst := NewRepository(NewMemoryStore())
	res, err = Import(ctx, dst, dir)
	require.NoError(t, err)
	require.Equal(t, ExportResult{Entities: 5, Relationships: 4}, res)

	want, err := src.Store().QueryEntities(ctx, EntityFilter{})
	require.NoError(t, err)
	got, err := dst.Store().QueryEntities(ctx, EntityFilter{})
	require.NoError(t, err)
	require.Equal(t, want, got)

	wantRels, err := src.Store().QueryRelationships(ctx, RelationshipFilter{})
	require.NoError(t, err)
	gotRels, err := dst.Store().QueryRelationships(ctx, RelationshipFilter{})
	require.NoError(t, err)
	require.Equal(t, wantRels, gotRels)

	// Importing twice merges into identical claims.
	_, err = Import(ctx, dst, dir)
	require.NoError(t, err)
	again, err := dst.Store().QueryRelationships(ctx, RelationshipFilter{})
	require.NoError(t, err)
	require.Equal(t, wantRels, again)
}

func TestDecodeRelationshipLineChecksTag(t *testing.T) {
	rel := sampleRelationships(t)[0]
	b, err := rel.MarshalJSON()
	require.NoError(t, err)

	got, err := DecodeRelationshipLine([]byte(`{"type":"treats","data":` + string(b) + `}`))
	require.NoError(t, err)
	require.Equal(t, rel.Key(), got.Key())

	_, err = DecodeRelationshipLine([]byte(`{"type":"causes","data":` + string(b) + `}`))
	require.ErrorIs(t, err, graph.ErrInvalid)

	_, err = DecodeRelationshipLine([]byte(`{"type":"heals","data":{}}`))
	require.ErrorIs(t, err, graph.ErrInvalid)
}

func TestImportRejectsBadLine(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, EntitiesFile), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, RelationshipsFile), []byte("\n{broken\n"), 0o644))

	_, err := Import(ctx, NewRepository(NewMemoryStore()), dir)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "relationship line 2"))
}
