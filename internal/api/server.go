package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"medgraph/internal/config"
	"medgraph/internal/graph"
	"medgraph/internal/logger"
	"medgraph/internal/mapper"
	"medgraph/internal/metrics"
	"medgraph/internal/registry"
	"medgraph/internal/storage"
	"medgraph/internal/workflows"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/converter"
)

// WorkflowClient is the part of the Temporal client the run status endpoint
// needs. A nil client disables /runs.
type WorkflowClient interface {
	DescribeWorkflowExecution(ctx context.Context, workflowID, runID string) (*workflowservice.DescribeWorkflowExecutionResponse, error)
	QueryWorkflow(ctx context.Context, workflowID, runID string, queryType string, args ...interface{}) (converter.EncodedValue, error)
}

type Server struct {
	cfg      config.Config
	repo     *storage.Repository
	registry *registry.Collection
	temporal WorkflowClient
}

var errTemporalDisabled = errors.New("temporal client not configured")

// NewServer serves the graph held by repo. When reg is nil every ontology or
// embedding lookup loads a fresh registry from repo.
func NewServer(cfg config.Config, repo *storage.Repository, reg *registry.Collection, tc WorkflowClient) *Server {
	return &Server{cfg: cfg, repo: repo, registry: reg, temporal: tc}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/entities", s.handleEntities)
	mux.HandleFunc("/entities/", s.handleEntityScoped)
	mux.HandleFunc("/relationships", s.handleRelationships)
	mux.HandleFunc("/runs/", s.handleRun)
	mux.Handle("/metrics", metrics.Handler())
	return withCORS(metrics.Middleware(mux))
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "store": s.cfg.Store})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s", r.Method))
		return
	}
	st, err := s.repo.Stats(r.Context())
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleEntities resolves an ontology identifier when ontology and id are
// given and otherwise lists entities filtered by type and name.
func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s", r.Method))
		return
	}
	q := r.URL.Query()
	if q.Has("ontology") || q.Has("id") {
		s.lookupOntology(w, r, q.Get("ontology"), q.Get("id"))
		return
	}

	f := storage.EntityFilter{NameContains: strings.TrimSpace(q.Get("name"))}
	if raw := q.Get("type"); raw != "" {
		t, err := graph.ParseEntityType(raw)
		if err != nil {
			writeErr(w, http.StatusBadRequest, err)
			return
		}
		f.Type = t
	}
	limit, err := intParam(q.Get("limit"), "limit")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	f.Limit = limit
	ents, err := s.repo.Entities(r.Context(), f)
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entities": ents, "count": len(ents)})
}

func (s *Server) lookupOntology(w http.ResponseWriter, r *http.Request, ontology, id string) {
	o := graph.Ontology(strings.ToLower(strings.TrimSpace(ontology)))
	if !o.IsValid() {
		writeErr(w, http.StatusBadRequest, &graph.ValidationError{Field: "ontology", Reason: fmt.Sprintf("unknown ontology %q", ontology)})
		return
	}
	if strings.TrimSpace(id) == "" {
		writeErr(w, http.StatusBadRequest, &graph.ValidationError{Field: "id", Reason: "is required"})
		return
	}
	reg, err := s.currentRegistry(r.Context())
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	e, ok := reg.GetByOntology(o, strings.TrimSpace(id))
	if !ok {
		writeErr(w, http.StatusNotFound, fmt.Errorf("no entity with %s id %s", o, id))
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleEntityScoped(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/entities/")
	if rest == "similar" {
		s.handleSimilar(w, r)
		return
	}
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s", r.Method))
		return
	}
	if rest == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("entity id missing"))
		return
	}
	e, ok, err := s.repo.Entity(r.Context(), rest)
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	if !ok {
		writeErr(w, http.StatusNotFound, fmt.Errorf("entity %s not found", rest))
		return
	}
	writeJSON(w, http.StatusOK, e)
}

type similarRequest struct {
	Vector    []float64 `json:"vector"`
	TopK      *int      `json:"top_k"`
	Threshold *float64  `json:"threshold"`
}

// handleSimilar prefers the store's vector index and falls back to a scan of
// the in-memory registry.
func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s", r.Method))
		return
	}
	var req similarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	topK := registry.DefaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}
	threshold := registry.DefaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	matches, err := s.repo.SimilarEntities(r.Context(), req.Vector, topK, threshold)
	if err == nil {
		writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
		return
	}
	if !errors.Is(err, storage.ErrNoVectorIndex) {
		writeErr(w, statusFor(err), err)
		return
	}
	reg, err := s.currentRegistry(r.Context())
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	matches, err = reg.FindByEmbedding(req.Vector, topK, threshold)
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

func (s *Server) handleRelationships(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s", r.Method))
		return
	}
	q := r.URL.Query()
	f := storage.RelationshipFilter{
		SubjectID: strings.TrimSpace(q.Get("subject")),
		ObjectID:  strings.TrimSpace(q.Get("object")),
		PaperID:   strings.TrimSpace(q.Get("paper")),
	}
	if raw := q.Get("predicate"); raw != "" {
		p, err := graph.ParsePredicateType(raw)
		if err != nil {
			writeErr(w, http.StatusBadRequest, err)
			return
		}
		f.Predicate = p
	}
	if raw := q.Get("min_confidence"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			writeErr(w, http.StatusBadRequest, &graph.ValidationError{Field: "min_confidence", Reason: "must be a number within [0,1]"})
			return
		}
		f.MinConfidence = v
	}
	limit, err := intParam(q.Get("limit"), "limit")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	f.Limit = limit
	rels, err := s.repo.Relationships(r.Context(), f)
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"relationships": rels, "count": len(rels)})
}

// handleRun reports the status and progress of a corpus ingest workflow.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s", r.Method))
		return
	}
	workflowID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/runs/"), "/")
	if workflowID == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("workflow id missing"))
		return
	}
	if s.temporal == nil {
		writeErr(w, http.StatusServiceUnavailable, errTemporalDisabled)
		return
	}
	desc, err := s.temporal.DescribeWorkflowExecution(r.Context(), workflowID, "")
	if err != nil {
		writeErr(w, http.StatusNotFound, fmt.Errorf("describe workflow %s: %w", workflowID, err))
		return
	}
	status := enumspb.WORKFLOW_EXECUTION_STATUS_UNSPECIFIED
	if info := desc.GetWorkflowExecutionInfo(); info != nil {
		status = info.GetStatus()
	}
	resp := map[string]any{
		"workflow_id": workflowID,
		"status":      statusName(status),
		"running":     status == enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING,
	}
	val, err := s.temporal.QueryWorkflow(r.Context(), workflowID, "", workflows.QueryGetProgress)
	if err != nil {
		logger.Warn("progress query failed", "workflow_id", workflowID, "err", err)
		writeJSON(w, http.StatusOK, resp)
		return
	}
	var progress workflows.CorpusIngestProgress
	if err := val.Get(&progress); err != nil {
		writeErr(w, http.StatusBadGateway, fmt.Errorf("decode progress: %w", err))
		return
	}
	resp["progress"] = progress
	writeJSON(w, http.StatusOK, resp)
}

// statusName turns WORKFLOW_EXECUTION_STATUS_RUNNING into "running".
func statusName(st enumspb.WorkflowExecutionStatus) string {
	name, ok := enumspb.WorkflowExecutionStatus_name[int32(st)]
	if !ok {
		return "unknown"
	}
	return strings.ToLower(strings.TrimPrefix(name, "WORKFLOW_EXECUTION_STATUS_"))
}

func (s *Server) currentRegistry(ctx context.Context) (*registry.Collection, error) {
	if s.registry != nil {
		return s.registry, nil
	}
	reg := registry.New(s.cfg.EmbedDim)
	if _, err := s.repo.LoadRegistry(ctx, reg); err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	return reg, nil
}

func intParam(raw, field string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, &graph.ValidationError{Field: field, Reason: "must be a non-negative integer"}
	}
	return v, nil
}

// statusFor maps domain and persistence errors onto HTTP statuses.
func statusFor(err error) int {
	if errors.Is(err, graph.ErrInvalid) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	if code >= 500 {
		logger.Error("request failed", "status", code, "err", err)
	}
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "MG-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case errors.Is(err, mapper.ErrMapping):
		return apiError{
			Code:    "MG-MAP-5001",
			Message: "Stored record could not be decoded. Re-export or repair the graph.",
		}
	case status == http.StatusServiceUnavailable:
		return apiError{
			Code:    "MG-API-5030",
			Message: "Workflow engine is not configured for this server.",
		}
	case status >= 500:
		switch {
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "MG-DB-5002",
				Message: "Database connection is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "MG-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "MG-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "MG-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusMethodNotAllowed:
		code = "MG-API-4005"
		msg = "This endpoint does not support the requested method."
	}

	// Validation failures carry their field and reason, which are safe to echo.
	if status == http.StatusBadRequest && err != nil {
		var ve *graph.ValidationError
		switch {
		case errors.As(err, &ve):
			msg = ve.Error()
		case strings.Contains(raw, "invalid json"):
			msg = "Malformed JSON request body."
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
