package registry

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"medgraph/internal/graph"

	"github.com/stretchr/testify/require"
)

func mustDisease(t *testing.T, id, name, umls string, opts ...graph.EntityOption) graph.Entity {
	t.Helper()
	d, err := graph.NewDisease(id, name, graph.DiseaseAttrs{UMLSID: umls}, opts...)
	require.NoError(t, err)
	return d
}

func mustGene(t *testing.T, id, name string, emb []float64) graph.Entity {
	t.Helper()
	g, err := graph.NewGene(id, name, graph.GeneAttrs{HGNCID: id}, graph.WithEmbedding(emb))
	require.NoError(t, err)
	return g
}

func TestUpsertIdempotent(t *testing.T) {
	c := New(0)
	d := mustDisease(t, "C0006142", "Breast Cancer", "C0006142", graph.WithSynonyms("breast carcinoma"))
	require.NoError(t, c.AddDisease(d))
	require.NoError(t, c.AddDisease(d))
	require.Equal(t, 1, c.Count())

	got, ok := c.GetByID("C0006142")
	require.True(t, ok)
	require.Equal(t, d, got)
}

func TestAddKindMismatch(t *testing.T) {
	c := New(0)
	d := mustDisease(t, "C1", "x", "")
	err := c.AddGene(d)
	require.ErrorIs(t, err, graph.ErrInvalid)
	require.Equal(t, 0, c.Count())
}

func TestAddRejectsInvalidEntity(t *testing.T) {
	c := New(0)
	err := c.Add(graph.Entity{EntityID: "", Type: graph.EntityGene, Name: "BRCA1"})
	var ve *graph.ValidationError
	require.True(t, errors.As(err, &ve))
	require.Equal(t, "entity_id", ve.Field)
}

func TestLookupMissIsNotAnError(t *testing.T) {
	c := New(0)
	_, ok := c.GetByID("nope")
	require.False(t, ok)
	_, ok = c.GetByUMLS("C404")
	require.False(t, ok)
	matches, err := c.FindByEmbedding([]float64{1, 0}, 3, 0)
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestOntologyIndexFollowsReplacement(t *testing.T) {
	c := New(0)
	require.NoError(t, c.AddDisease(mustDisease(t, "d1", "Breast Cancer", "C0006142")))
	got, ok := c.GetByUMLS("C0006142")
	require.True(t, ok)
	require.Equal(t, "d1", got.EntityID)

	require.NoError(t, c.AddDisease(mustDisease(t, "d1", "Breast Cancer", "C0678222")))
	_, ok = c.GetByUMLS("C0006142")
	require.False(t, ok)
	got, ok = c.GetByUMLS("C0678222")
	require.True(t, ok)
	require.Equal(t, "d1", got.EntityID)

	// d2 takes over an identifier; replacing d1 must not drop d2's entry.
	require.NoError(t, c.AddDisease(mustDisease(t, "d2", "Carcinoma of breast", "C0678222")))
	require.NoError(t, c.AddDisease(mustDisease(t, "d1", "Breast Cancer", "")))
	got, ok = c.GetByUMLS("C0678222")
	require.True(t, ok)
	require.Equal(t, "d2", got.EntityID)

	g := mustGene(t, "HGNC:1100", "BRCA1", nil)
	require.NoError(t, c.AddGene(g))
	got, ok = c.GetByHGNC("HGNC:1100")
	require.True(t, ok)
	require.Equal(t, g, got)

	drug, err := graph.NewDrug("RxNorm:1187832", "olaparib", graph.DrugAttrs{RxNormID: "1187832"})
	require.NoError(t, err)
	require.NoError(t, c.AddDrug(drug))
	_, ok = c.GetByRxNorm("1187832")
	require.True(t, ok)

	prot, err := graph.NewProtein("UniProt:P38398", "BRCA1 protein", graph.ProteinAttrs{UniProtID: "P38398"})
	require.NoError(t, err)
	require.NoError(t, c.AddProtein(prot))
	_, ok = c.GetByUniProt("P38398")
	require.True(t, ok)
}

func TestSharedOntologyIDSurvivesReplacement(t *testing.T) {
	c := New(0)
	require.NoError(t, c.AddDisease(mustDisease(t, "a", "Breast Cancer", "C1")))
	require.NoError(t, c.AddDisease(mustDisease(t, "b", "Mammary carcinoma", "C1")))
	got, ok := c.GetByUMLS("C1")
	require.True(t, ok)
	require.Equal(t, "b", got.EntityID)

	require.NoError(t, c.AddDisease(mustDisease(t, "b", "Mammary carcinoma", "C2")))
	got, ok = c.GetByUMLS("C1")
	require.True(t, ok)
	require.Equal(t, "a", got.EntityID)
	got, ok = c.GetByUMLS("C2")
	require.True(t, ok)
	require.Equal(t, "b", got.EntityID)

	require.NoError(t, c.AddDisease(mustDisease(t, "a", "Breast Cancer", "")))
	_, ok = c.GetByUMLS("C1")
	require.False(t, ok)
}

func TestReturnedEntitiesAreCopies(t *testing.T) {
	c := New(0)
	require.NoError(t, c.AddDisease(mustDisease(t, "d1", "x", "", graph.WithSynonyms("a"))))
	got, _ := c.GetByID("d1")
	got.Synonyms[0] = "mutated"
	again, _ := c.GetByID("d1")
	require.Equal(t, []string{"a"}, again.Synonyms)
}

func TestFindByEmbeddingOrdering(t *testing.T) {
	c := New(0)
	require.NoError(t, c.AddGene(mustGene(t, "g1", "a", []float64{1, 0, 0})))
	require.NoError(t, c.AddGene(mustGene(t, "g2", "b", []float64{0.9, 0.1, 0})))
	require.NoError(t, c.AddGene(mustGene(t, "g3", "c", []float64{0, 1, 0})))
	require.NoError(t, c.AddGene(mustGene(t, "g4", "d", []float64{0.7, 0.7, 0})))
	require.NoError(t, c.AddGene(mustGene(t, "g5", "e", []float64{-1, 0, 0})))
	require.NoError(t, c.AddGene(mustGene(t, "g6", "f", nil)))

	matches, err := c.FindByEmbedding([]float64{1, 0, 0}, 3, 0.0)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	ids := []string{matches[0].Entity.EntityID, matches[1].Entity.EntityID, matches[2].Entity.EntityID}
	require.Equal(t, []string{"g1", "g2", "g4"}, ids)
	require.GreaterOrEqual(t, matches[0].Similarity, matches[1].Similarity)
	require.GreaterOrEqual(t, matches[1].Similarity, matches[2].Similarity)

	all, err := c.FindByEmbedding([]float64{1, 0, 0}, 10, -1)
	require.NoError(t, err)
	require.Len(t, all, 5)
	require.Equal(t, "g5", all[4].Entity.EntityID)

	high, err := c.FindByEmbedding([]float64{1, 0, 0}, 10, DefaultThreshold)
	require.NoError(t, err)
	require.Len(t, high, 2)

	none, err := c.FindByEmbedding([]float64{1, 0, 0}, 0, 0)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestFindByEmbeddingTiesKeepInsertionOrder(t *testing.T) {
	c := New(2)
	for _, id := range []string{"z", "a", "m"} {
		require.NoError(t, c.AddGene(mustGene(t, id, id, []float64{1, 1})))
	}
	matches, err := c.FindByEmbedding([]float64{2, 2}, 3, 0.5)
	require.NoError(t, err)
	require.Equal(t, "z", matches[0].Entity.EntityID)
	require.Equal(t, "a", matches[1].Entity.EntityID)
	require.Equal(t, "m", matches[2].Entity.EntityID)
}

func TestFindByEmbeddingRejectsMalformedInput(t *testing.T) {
	c := New(0)
	require.NoError(t, c.AddGene(mustGene(t, "g1", "a", []float64{1, 0})))

	for _, tc := range []struct {
		name      string
		query     []float64
		topK      int
		threshold float64
		field     string
	}{
		{"negative top_k", []float64{1, 0}, -1, 0, "top_k"},
		{"threshold too high", []float64{1, 0}, 1, 1.5, "threshold"},
		{"threshold too low", []float64{1, 0}, 1, -1.01, "threshold"},
		{"wrong dimension", []float64{1, 0, 0}, 1, 0, "query"},
		{"zero vector", []float64{0, 0}, 1, 0, "query"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.FindByEmbedding(tc.query, tc.topK, tc.threshold)
			var ve *graph.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			require.Equal(t, tc.field, ve.Field)
		})
	}
}

func TestEmbeddingDimensionEnforcedOnAdd(t *testing.T) {
	c := New(3)
	err := c.AddGene(mustGene(t, "g1", "a", []float64{1, 0}))
	require.ErrorIs(t, err, graph.ErrInvalid)
	require.NoError(t, c.AddGene(mustGene(t, "g2", "b", []float64{1, 0, 0})))
	require.Equal(t, 3, c.Dimension())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	c := New(0)
	level := 2
	require.NoError(t, c.AddDisease(mustDisease(t, "C0006142", "Breast Cancer", "C0006142", graph.WithSynonyms("breast carcinoma", "mammary cancer"), graph.WithAbbreviations("BC"))))
	require.NoError(t, c.AddGene(mustGene(t, "HGNC:1100", "BRCA1", []float64{0.1, 0.2, 0.30000000000000004})))
	sd, err := graph.NewStudyDesign("OBI:0000008", "randomized controlled trial", graph.StudyDesignAttrs{EvidenceLevel: &level}, graph.WithSource(graph.SourceManual))
	require.NoError(t, err)
	require.NoError(t, c.AddStudyDesign(sd))

	var buf bytes.Buffer
	require.NoError(t, c.Save(&buf))
	require.Equal(t, 3, strings.Count(buf.String(), "\n"))
	require.True(t, strings.HasPrefix(buf.String(), `{"type":"disease","data":{"entity_id":"C0006142"`))

	loaded, err := Load(bytes.NewReader(buf.Bytes()), 0)
	require.NoError(t, err)
	require.Equal(t, c.Entities(), loaded.Entities())

	var again bytes.Buffer
	require.NoError(t, loaded.Save(&again))
	require.Equal(t, buf.String(), again.String())

	path := filepath.Join(t.TempDir(), "entities.jsonl")
	require.NoError(t, c.SaveFile(path))
	fromFile, err := LoadFile(path, 0)
	require.NoError(t, err)
	require.Equal(t, c.Entities(), fromFile.Entities())
}

func TestLoadRejectsMismatchedTag(t *testing.T) {
	_, err := Load(strings.NewReader(`{"type":"gene","data":{"entity_id":"C1","entity_type":"disease","name":"x"}}`+"\n"), 0)
	require.ErrorIs(t, err, graph.ErrInvalid)

	_, err = Load(strings.NewReader(`{"type":"gene","data":`+"\n"), 0)
	require.Error(t, err)
}

func TestConcurrentAddAndRead(t *testing.T) {
	c := New(2)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := string(rune('a'+i)) + "-" + string(rune('a'+j%26))
				_ = c.AddGene(mustGene(t, id, id, []float64{float64(i + 1), float64(j + 1)}))
				_, _ = c.GetByID(id)
				_, _ = c.FindByEmbedding([]float64{1, 1}, 3, 0)
			}
		}(i)
	}
	wg.Wait()
	require.Equal(t, 8*26, c.Count())
}
