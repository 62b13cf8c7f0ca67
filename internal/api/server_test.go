package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"medgraph/internal/config"
	"medgraph/internal/graph"
	"medgraph/internal/storage"
	"medgraph/internal/vector"
	"medgraph/internal/workflows"

	"github.com/stretchr/testify/require"
	enumspb "go.temporal.io/api/enums/v1"
	workflowpb "go.temporal.io/api/workflow/v1"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/converter"
)

func evidence(paper string, study graph.StudyType, conf float64) graph.Evidence {
	return graph.Evidence{
		PaperID:          paper,
		SectionType:      graph.SectionResults,
		ParagraphIdx:     2,
		ExtractionMethod: graph.ExtractLLM,
		Confidence:       conf,
		StudyType:        study,
	}
}

func newTestServer(t *testing.T, tc WorkflowClient) http.Handler {
	t.Helper()
	ctx := context.Background()
	repo := storage.NewRepository(storage.NewMemoryStore())

	d, err := graph.NewDisease("C0006142", "Breast Cancer", graph.DiseaseAttrs{UMLSID: "C0006142"}, graph.WithEmbedding([]float64{1, 0, 0}))
	require.NoError(t, err)
	g, err := graph.NewGene("HGNC:1100", "BRCA1", graph.GeneAttrs{Symbol: "BRCA1", HGNCID: "HGNC:1100"}, graph.WithEmbedding([]float64{0, 1, 0}))
	require.NoError(t, err)
	dr, err := graph.NewDrug("RxNorm:1187832", "Olaparib", graph.DrugAttrs{RxNormID: "1187832"})
	require.NoError(t, err)
	for _, e := range []graph.Entity{d, g, dr} {
		require.NoError(t, repo.SaveEntity(ctx, e))
	}

	treats, err := graph.NewRelationship(graph.PredTreats, "RxNorm:1187832", "C0006142", []graph.Evidence{evidence("PMC999", graph.StudyRCT, 0.9)}, nil)
	require.NoError(t, err)
	risk, err := graph.NewRelationship(graph.PredIncreasesRisk, "HGNC:1100", "C0006142", []graph.Evidence{evidence("PMC1", graph.StudyCohort, 0.5)}, nil)
	require.NoError(t, err)
	for _, rel := range []graph.Relationship{treats, risk} {
		_, err := repo.UpsertRelationship(ctx, rel)
		require.NoError(t, err)
	}

	cfg := config.Config{Store: "memory", EmbedDim: 3}
	return NewServer(cfg, repo, nil, tc).Routes()
}

func do(t *testing.T, h http.Handler, method, target string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, &buf))
	out := map[string]any{}
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func errorCode(t *testing.T, body map[string]any) string {
	t.Helper()
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, "missing error object in %v", body)
	return e["code"].(string)
}

func TestHealthzAndStats(t *testing.T) {
	h := newTestServer(t, nil)

	rec, body := do(t, h, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["ok"])

	rec, body = do(t, h, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 3, body["entities"])
	require.EqualValues(t, 2, body["relationships"])

	rec, body = do(t, h, http.MethodPost, "/stats", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.Equal(t, "MG-API-4005", errorCode(t, body))
}

func TestGetEntity(t *testing.T) {
	h := newTestServer(t, nil)

	rec, body := do(t, h, http.MethodGet, "/entities/C0006142", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Breast Cancer", body["name"])
	require.Equal(t, "disease", body["entity_type"])

	rec, body = do(t, h, http.MethodGet, "/entities/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "MG-API-4004", errorCode(t, body))
}

func TestEntityLookupByOntology(t *testing.T) {
	h := newTestServer(t, nil)

	rec, body := do(t, h, http.MethodGet, "/entities?ontology=umls&id=C0006142", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "C0006142", body["entity_id"])

	rec, body = do(t, h, http.MethodGet, "/entities?ontology=HGNC&id=HGNC:1100", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "BRCA1", body["name"])

	rec, _ = do(t, h, http.MethodGet, "/entities?ontology=umls&id=C9999999", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = do(t, h, http.MethodGet, "/entities?ontology=snomed&id=1", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "MG-API-4001", errorCode(t, body))

	rec, _ = do(t, h, http.MethodGet, "/entities?ontology=umls", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListEntities(t *testing.T) {
	h := newTestServer(t, nil)

	rec, body := do(t, h, http.MethodGet, "/entities?type=gene", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, body["count"])

	rec, body = do(t, h, http.MethodGet, "/entities?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 2, body["count"])

	rec, _ = do(t, h, http.MethodGet, "/entities?type=planet", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/entities?limit=-1", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSimilarEntities(t *testing.T) {
	h := newTestServer(t, nil)

	rec, body := do(t, h, http.MethodPost, "/entities/similar", map[string]any{"vector": []float64{1, 0.1, 0}, "top_k": 2, "threshold": 0.5})
	require.Equal(t, http.StatusOK, rec.Code)
	matches := body["matches"].([]any)
	require.Len(t, matches, 1)
	first := matches[0].(map[string]any)
	require.Equal(t, "C0006142", first["entity"].(map[string]any)["entity_id"])

	rec, body = do(t, h, http.MethodPost, "/entities/similar", map[string]any{"vector": []float64{1, 0}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "MG-API-4001", errorCode(t, body))

	rec, body = do(t, h, http.MethodPost, "/entities/similar", "{not json")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Malformed JSON request body.", body["error"].(map[string]any)["message"])

	rec, body = do(t, h, http.MethodPost, "/entities/similar", map[string]any{"vector": []float64{1, 0, 0}, "top_k": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, body["matches"])

	rec, body = do(t, h, http.MethodPost, "/entities/similar", map[string]any{"vector": []float64{1, 0, 0}, "threshold": -1.5})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "MG-API-4001", errorCode(t, body))

	rec, _ = do(t, h, http.MethodGet, "/entities/similar", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

type indexedStore struct {
	*storage.MemoryStore
	calls int
}

func (s *indexedStore) SimilarEntities(context.Context, []float64, int, float64, ...graph.EntityType) ([]vector.EntityHit, error) {
	s.calls++
	return []vector.EntityHit{{EntityID: "HGNC:1100", Similarity: 0.99}, {EntityID: "C0006142", Similarity: 0.9}}, nil
}

func TestSimilarEntitiesWithVectorIndex(t *testing.T) {
	ctx := context.Background()
	store := &indexedStore{MemoryStore: storage.NewMemoryStore()}
	repo := storage.NewRepository(store, storage.WithEmbedDim(3))
	g, err := graph.NewGene("HGNC:1100", "BRCA1", graph.GeneAttrs{HGNCID: "HGNC:1100"}, graph.WithEmbedding([]float64{0, 1, 0}))
	require.NoError(t, err)
	require.NoError(t, repo.SaveEntity(ctx, g))
	h := NewServer(config.Config{Store: "postgres", EmbedDim: 3}, repo, nil, nil).Routes()

	rec, body := do(t, h, http.MethodPost, "/entities/similar", map[string]any{"vector": []float64{0, 1, 0}, "top_k": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, body["matches"])

	for _, req := range []map[string]any{
		{"vector": []float64{0, 1, 0}, "threshold": 2},
		{"vector": []float64{0, 0, 0}},
		{"vector": []float64{0, 1}},
		{"vector": []float64{0, 1, 0}, "top_k": -3},
	} {
		rec, body = do(t, h, http.MethodPost, "/entities/similar", req)
		require.Equal(t, http.StatusBadRequest, rec.Code, "%v", req)
		require.Equal(t, "MG-API-4001", errorCode(t, body))
	}
	require.Zero(t, store.calls)

	rec, body = do(t, h, http.MethodPost, "/entities/similar", map[string]any{"vector": []float64{0, 1, 0}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, body["matches"], 1)
	require.Equal(t, 1, store.calls)
}

func TestQueryRelationships(t *testing.T) {
	h := newTestServer(t, nil)

	rec, body := do(t, h, http.MethodGet, "/relationships?object=C0006142", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 2, body["count"])
	rels := body["relationships"].([]any)
	require.Equal(t, "treats", rels[0].(map[string]any)["predicate"])

	rec, body = do(t, h, http.MethodGet, "/relationships?min_confidence=0.5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, body["count"])

	rec, body = do(t, h, http.MethodGet, "/relationships?paper=PMC1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, body["count"])
	require.Equal(t, "increases_risk", body["relationships"].([]any)[0].(map[string]any)["predicate"])

	rec, body = do(t, h, http.MethodGet, "/relationships?predicate=TREATS&subject=RxNorm:1187832", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, body["count"])

	rec, _ = do(t, h, http.MethodGet, "/relationships?predicate=cures", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/relationships?min_confidence=2", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeValue struct{ v any }

func (f fakeValue) HasValue() bool { return f.v != nil }

func (f fakeValue) Get(ptr interface{}) error {
	b, err := json.Marshal(f.v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, ptr)
}

type fakeWorkflowClient struct {
	status   enumspb.WorkflowExecutionStatus
	progress workflows.CorpusIngestProgress
	queryErr error
}

func (f *fakeWorkflowClient) DescribeWorkflowExecution(context.Context, string, string) (*workflowservice.DescribeWorkflowExecutionResponse, error) {
	return &workflowservice.DescribeWorkflowExecutionResponse{
		WorkflowExecutionInfo: &workflowpb.WorkflowExecutionInfo{Status: f.status},
	}, nil
}

func (f *fakeWorkflowClient) QueryWorkflow(_ context.Context, _, _ string, queryType string, _ ...interface{}) (converter.EncodedValue, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if queryType != workflows.QueryGetProgress {
		return nil, errors.New("unknown query")
	}
	return fakeValue{v: f.progress}, nil
}

func TestRunStatus(t *testing.T) {
	rec, body := do(t, newTestServer(t, nil), http.MethodGet, "/runs/corpus-1", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "MG-API-5030", errorCode(t, body))

	tc := &fakeWorkflowClient{
		status:   enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING,
		progress: workflows.CorpusIngestProgress{RunID: "corpus-1", Total: 4, Done: 1},
	}
	rec, body = do(t, newTestServer(t, tc), http.MethodGet, "/runs/corpus-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["running"])
	require.Equal(t, "running", body["status"])
	progress := body["progress"].(map[string]any)
	require.EqualValues(t, 4, progress["total"])

	tc = &fakeWorkflowClient{status: enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED, queryErr: errors.New("query timeout")}
	rec, body = do(t, newTestServer(t, tc), http.MethodGet, "/runs/corpus-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, false, body["running"])
	require.NotContains(t, body, "progress")
}

func TestMetricsAndCORS(t *testing.T) {
	h := newTestServer(t, nil)

	rec, _ := do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, http.MethodOptions, "/entities/similar", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
