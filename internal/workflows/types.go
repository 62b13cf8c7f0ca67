package workflows

type CorpusIngestInput struct {
	RunID                 string `json:"run_id"`
	InputDir              string `json:"input_dir"`
	MaxConcurrentChildren int    `json:"max_concurrent_children"`
	LLMProviders          int    `json:"llm_providers"`
	EmbedProviders        int    `json:"embed_providers"`
	ChunkSize             int    `json:"chunk_size,omitempty"`
	ChunkOverlap          int    `json:"chunk_overlap,omitempty"`
	CooldownSeconds       int    `json:"cooldown_seconds"`
}

// PaperIngestInput describes one paper to ingest. PaperID is derived from
// the file when empty; provider counts size the failover rotation.
type PaperIngestInput struct {
	PaperPath       string `json:"paper_path"`
	PaperID         string `json:"paper_id,omitempty"`
	LLMProviders    int    `json:"llm_providers"`
	EmbedProviders  int    `json:"embed_providers"`
	ChunkSize       int    `json:"chunk_size,omitempty"`
	ChunkOverlap    int    `json:"chunk_overlap,omitempty"`
	CooldownSeconds int    `json:"cooldown_seconds"`
}

type PaperIngestResult struct {
	PaperID          string `json:"paper_id"`
	Status           string `json:"status"`
	FailReason       string `json:"fail_reason,omitempty"`
	Chunks           int    `json:"chunks"`
	FailedChunks     int    `json:"failed_chunks"`
	ClaimsAccepted   int    `json:"claims_accepted"`
	ClaimsRejected   int    `json:"claims_rejected"`
	NewEntities      int    `json:"new_entities"`
	Relationships    int    `json:"relationships"`
	EmbeddedEntities int    `json:"embedded_entities"`
}

type PaperStatus struct {
	PaperID     string            `json:"paper_id"`
	PaperPath   string            `json:"paper_path"`
	CurrentStep string            `json:"current_step"`
	Status      string            `json:"status"`
	FailReason  string            `json:"fail_reason,omitempty"`
	ChunksDone  int               `json:"chunks_done"`
	ChunksTotal int               `json:"chunks_total"`
	Providers   []string          `json:"providers_used"`
	RetryCounts map[string]int    `json:"retry_counts"`
	Steps       map[string]string `json:"steps"`
}

type CorpusIngestProgress struct {
	RunID          string            `json:"run_id"`
	Total          int               `json:"total"`
	Done           int               `json:"done"`
	Failed         int               `json:"failed"`
	ClaimsAccepted int               `json:"claims_accepted"`
	ClaimsRejected int               `json:"claims_rejected"`
	NewEntities    int               `json:"new_entities"`
	PerPaper       map[string]string `json:"per_paper_status"`
	ChildWorkflow  map[string]string `json:"child_workflow_ids,omitempty"`
}
