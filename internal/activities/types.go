package activities

type ListPapersInput struct {
	InputDir string `json:"input_dir"`
}

type ListPapersOutput struct {
	Paths []string `json:"paths"`
}

type ComputePaperIDInput struct {
	PaperPath string `json:"paper_path"`
}

type ComputePaperIDOutput struct {
	PaperID     string `json:"paper_id"`
	ContentHash string `json:"content_hash"`
}

type ExtractTextInput struct {
	PaperPath string `json:"paper_path"`
}

type ExtractTextOutput struct {
	Text string `json:"text"`
}

type ExtractMetadataInput struct {
	Text string `json:"text"`
}

type ExtractMetadataOutput struct {
	Title   string `json:"title"`
	Authors string `json:"authors"`
	DOI     string `json:"doi,omitempty"`
	PMID    string `json:"pmid,omitempty"`
}

type UpsertPaperInput struct {
	PaperID  string `json:"paper_id"`
	Filename string `json:"filename"`
	Title    string `json:"title"`
	DOI      string `json:"doi,omitempty"`
	PMID     string `json:"pmid,omitempty"`
}

type ChunkPaperInput struct {
	PaperID      string `json:"paper_id"`
	Text         string `json:"text"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
}

// ChunkItem is one paragraph-sized span of a paper. Index is the paragraph
// index recorded on evidence.
type ChunkItem struct {
	ChunkID string `json:"chunk_id"`
	PaperID string `json:"paper_id"`
	Index   int    `json:"index"`
	Section string `json:"section"`
	Text    string `json:"text"`
}

type ChunkPaperOutput struct {
	Chunks []ChunkItem `json:"chunks"`
}

type LLMGenerateInput struct {
	Operation     string `json:"operation"`
	PaperID       string `json:"paper_id"`
	System        string `json:"system,omitempty"`
	Prompt        string `json:"prompt"`
	JSON          bool   `json:"json,omitempty"`
	ProviderIndex int    `json:"provider_index"`
	ProviderRef   string `json:"provider_ref,omitempty"`
}

type LLMGenerateOutput struct {
	Text         string `json:"text"`
	ProviderName string `json:"provider_name"`
	Model        string `json:"model"`
}

type UpsertClaimsInput struct {
	PaperID  string    `json:"paper_id"`
	Chunk    ChunkItem `json:"chunk"`
	Response string    `json:"response"`
	Provider string    `json:"provider"`
	Model    string    `json:"model"`
}

type UpsertClaimsOutput struct {
	Accepted      int      `json:"accepted"`
	Rejected      int      `json:"rejected"`
	NewEntities   int      `json:"new_entities"`
	EntityIDs     []string `json:"entity_ids"`
	Relationships []string `json:"relationships"`
}

type EmbedEntitiesInput struct {
	EntityIDs     []string `json:"entity_ids"`
	ProviderIndex int      `json:"provider_index"`
}

type EmbedEntitiesOutput struct {
	Embedded     int    `json:"embedded"`
	ProviderName string `json:"provider_name"`
	Model        string `json:"model"`
}

type LogLLMCallInput struct {
	Operation    string `json:"operation"`
	PaperID      string `json:"paper_id"`
	ProviderName string `json:"provider_name"`
	Model        string `json:"model"`
	Status       string `json:"status"`
	ErrorType    string `json:"error_type,omitempty"`
}

type WritePaperArtifactsInput struct {
	PaperID       string         `json:"paper_id"`
	Text          string         `json:"text"`
	Metadata      map[string]any `json:"metadata"`
	Chunks        []ChunkItem    `json:"chunks"`
	ProcessingLog map[string]any `json:"processing_log"`
}

type WriteCorpusSummaryInput struct {
	RunID   string         `json:"run_id"`
	Summary map[string]any `json:"summary"`
}
