package workflows

import (
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"medgraph/internal/activities"
	"medgraph/internal/graph"
	"medgraph/internal/providers"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	QueryGetPaperStatus = "GetPaperStatus"
	QueryGetProgress    = "GetProgress"

	claimExtractOperation = "claim_extract"
	embedBatchSize        = 64
)

func CorpusIngestWorkflow(ctx workflow.Context, input CorpusIngestInput) (CorpusIngestProgress, error) {
	runID := input.RunID
	if runID == "" {
		runID = workflow.GetInfo(ctx).WorkflowExecution.ID
	}
	progress := CorpusIngestProgress{
		RunID:         runID,
		PerPaper:      map[string]string{},
		ChildWorkflow: map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetProgress, func() (CorpusIngestProgress, error) {
		return progress, nil
	}); err != nil {
		return progress, err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	var listOut activities.ListPapersOutput
	if err := workflow.ExecuteActivity(ctx, "ListPapersActivity", activities.ListPapersInput{InputDir: input.InputDir}).Get(ctx, &listOut); err != nil {
		return progress, err
	}
	paths := listOut.Paths
	progress.Total = len(paths)
	maxChildren := input.MaxConcurrentChildren
	if maxChildren <= 0 {
		maxChildren = 3
	}

	for i := 0; i < len(paths); i += maxChildren {
		end := i + maxChildren
		if end > len(paths) {
			end = len(paths)
		}
		futures := make([]workflow.ChildWorkflowFuture, 0, end-i)
		childPaths := make([]string, 0, end-i)
		for _, path := range paths[i:end] {
			progress.PerPaper[path] = "processing"
			workflowID := "paper-" + sanitizeID(runID) + "-" + sanitizeID(filepath.Base(path))
			childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{WorkflowID: workflowID})
			f := workflow.ExecuteChildWorkflow(childCtx, PaperIngestWorkflow, PaperIngestInput{
				PaperPath:       path,
				LLMProviders:    input.LLMProviders,
				EmbedProviders:  input.EmbedProviders,
				ChunkSize:       input.ChunkSize,
				ChunkOverlap:    input.ChunkOverlap,
				CooldownSeconds: input.CooldownSeconds,
			})
			futures = append(futures, f)
			childPaths = append(childPaths, path)
			progress.ChildWorkflow[path] = workflowID
		}

		for idx, f := range futures {
			var res PaperIngestResult
			err := f.Get(ctx, &res)
			path := childPaths[idx]
			if err != nil {
				progress.Failed++
				progress.PerPaper[path] = "failed"
				continue
			}
			if res.Status == "failed" {
				progress.Failed++
			}
			progress.Done++
			progress.ClaimsAccepted += res.ClaimsAccepted
			progress.ClaimsRejected += res.ClaimsRejected
			progress.NewEntities += res.NewEntities
			progress.PerPaper[path] = res.Status
		}
	}
	_ = workflow.ExecuteActivity(ctx, "WriteCorpusSummaryActivity", activities.WriteCorpusSummaryInput{
		RunID: runID,
		Summary: map[string]any{
			"run_id":           runID,
			"input":            input.InputDir,
			"total":            progress.Total,
			"done":             progress.Done,
			"failed":           progress.Failed,
			"claims_accepted":  progress.ClaimsAccepted,
			"claims_rejected":  progress.ClaimsRejected,
			"new_entities":     progress.NewEntities,
			"per_paper_status": progress.PerPaper,
			"generated_at":     workflow.Now(ctx),
		},
	}).Get(ctx, nil)

	return progress, nil
}

// PaperIngestWorkflow extracts claims from one paper and merges them into
// the graph: text, paragraphs, per-paragraph claim extraction with provider
// failover, claim upsert, then embeddings for the entities it touched.
func PaperIngestWorkflow(ctx workflow.Context, input PaperIngestInput) (PaperIngestResult, error) {
	status := PaperStatus{
		PaperPath:   input.PaperPath,
		CurrentStep: "init",
		Status:      "processing",
		RetryCounts: map[string]int{},
		Steps:       map[string]string{},
	}
	result := PaperIngestResult{Status: "processing"}
	if err := workflow.SetQueryHandler(ctx, QueryGetPaperStatus, func() (PaperStatus, error) {
		return status, nil
	}); err != nil {
		return result, err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    2,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	log := workflow.GetLogger(ctx)
	filename := filepath.Base(input.PaperPath)
	cooldown := durationOrDefault(input.CooldownSeconds, 900)
	state := newProviderState()

	step := func(name string) {
		status.CurrentStep = name
		status.Steps[name] = "processing"
	}
	done := func() { status.Steps[status.CurrentStep] = "done" }
	fail := func(reason string) (PaperIngestResult, error) {
		status.Status = "failed"
		status.FailReason = reason
		status.Steps[status.CurrentStep] = "failed"
		result.Status = "failed"
		result.FailReason = reason
		return result, nil
	}

	result.PaperID = input.PaperID
	if result.PaperID == "" {
		step("compute_paper_id")
		var computeOut activities.ComputePaperIDOutput
		if err := workflow.ExecuteActivity(ctx, "ComputePaperIDActivity", activities.ComputePaperIDInput{PaperPath: input.PaperPath}).Get(ctx, &computeOut); err != nil {
			return result, err
		}
		result.PaperID = computeOut.PaperID
		done()
	}
	status.PaperID = result.PaperID

	step("extract_text")
	var textOut activities.ExtractTextOutput
	if err := workflow.ExecuteActivity(ctx, "ExtractTextActivity", activities.ExtractTextInput{PaperPath: input.PaperPath}).Get(ctx, &textOut); err != nil {
		if isNoTextError(err) {
			return fail("no extractable text found (OCR not enabled)")
		}
		if isUnsupportedFileError(err) {
			return fail("unsupported file type: " + filepath.Ext(filename))
		}
		return result, err
	}
	done()

	step("extract_metadata")
	var metaOut activities.ExtractMetadataOutput
	if err := workflow.ExecuteActivity(ctx, "ExtractMetadataActivity", activities.ExtractMetadataInput{Text: textOut.Text}).Get(ctx, &metaOut); err != nil {
		return result, err
	}
	done()

	step("upsert_paper")
	if err := workflow.ExecuteActivity(ctx, "UpsertPaperActivity", activities.UpsertPaperInput{
		PaperID:  result.PaperID,
		Filename: filename,
		Title:    metaOut.Title,
		DOI:      metaOut.DOI,
		PMID:     metaOut.PMID,
	}).Get(ctx, nil); err != nil {
		return result, err
	}
	done()

	step("chunk_paper")
	var chunkOut activities.ChunkPaperOutput
	if err := workflow.ExecuteActivity(ctx, "ChunkPaperActivity", activities.ChunkPaperInput{
		PaperID:      result.PaperID,
		Text:         textOut.Text,
		ChunkSize:    input.ChunkSize,
		ChunkOverlap: input.ChunkOverlap,
	}).Get(ctx, &chunkOut); err != nil {
		return result, err
	}
	result.Chunks = len(chunkOut.Chunks)
	status.ChunksTotal = len(chunkOut.Chunks)
	done()

	step("extract_claims")
	touched := map[string]struct{}{}
	lastLLMErr := ""
	for _, c := range chunkOut.Chunks {
		resp, errType, llmErr := callLLMWithFailover(ctx, &state, defaultCount(input.LLMProviders), cooldown, activities.LLMGenerateInput{
			Operation: claimExtractOperation,
			PaperID:   result.PaperID,
			System:    providers.ClaimExtractSystem,
			Prompt:    graph.BuildClaimExtractionPrompt(metaOut.Title, graph.SectionType(c.Section), c.Text),
			JSON:      true,
		}, status.RetryCounts)
		status.ChunksDone++
		if llmErr != nil {
			result.FailedChunks++
			lastLLMErr = llmErr.Error()
			log.Warn("claim extraction failed", "paper_id", result.PaperID, "chunk", c.Index, "error_type", errType)
			continue
		}
		status.Providers = appendUnique(status.Providers, resp.ProviderName)

		var upsertOut activities.UpsertClaimsOutput
		if err := workflow.ExecuteActivity(ctx, "UpsertClaimsActivity", activities.UpsertClaimsInput{
			PaperID:  result.PaperID,
			Chunk:    c,
			Response: resp.Text,
			Provider: resp.ProviderName,
			Model:    resp.Model,
		}).Get(ctx, &upsertOut); err != nil {
			return result, err
		}
		result.ClaimsAccepted += upsertOut.Accepted
		result.ClaimsRejected += upsertOut.Rejected
		result.NewEntities += upsertOut.NewEntities
		result.Relationships += len(upsertOut.Relationships)
		for _, id := range upsertOut.EntityIDs {
			touched[id] = struct{}{}
		}
	}
	if len(chunkOut.Chunks) > 0 && result.FailedChunks == len(chunkOut.Chunks) {
		return fail("claim extraction exhausted all llm providers: " + lastLLMErr)
	}
	done()

	step("embed_entities")
	ids := make([]string, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	embedFailed := false
	for start := 0; start < len(ids); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		out, err := callEmbedWithFailover(ctx, &state, defaultCount(input.EmbedProviders), cooldown, activities.EmbedEntitiesInput{EntityIDs: ids[start:end]}, result.PaperID, status.RetryCounts)
		if err != nil {
			embedFailed = true
			log.Warn("entity embedding failed", "paper_id", result.PaperID, "error_type", string(providers.ClassifyError(err)))
			continue
		}
		result.EmbeddedEntities += out.Embedded
	}
	if embedFailed {
		status.Steps[status.CurrentStep] = "partial"
	} else {
		done()
	}

	step("write_artifacts")
	if err := workflow.ExecuteActivity(ctx, "WritePaperArtifactsActivity", activities.WritePaperArtifactsInput{
		PaperID: result.PaperID,
		Text:    textOut.Text,
		Metadata: map[string]any{
			"paper_id":    result.PaperID,
			"filename":    filename,
			"title":       metaOut.Title,
			"authors":     metaOut.Authors,
			"doi":         metaOut.DOI,
			"pmid":        metaOut.PMID,
			"chunk_count": len(chunkOut.Chunks),
		},
		Chunks: chunkOut.Chunks,
		ProcessingLog: map[string]any{
			"status":          "processed",
			"steps":           status.Steps,
			"providers":       status.Providers,
			"retry_counts":    status.RetryCounts,
			"claims_accepted": result.ClaimsAccepted,
			"claims_rejected": result.ClaimsRejected,
			"failed_chunks":   result.FailedChunks,
			"generated_at":    workflow.Now(ctx),
		},
	}).Get(ctx, nil); err != nil {
		return result, err
	}
	done()

	status.CurrentStep = "done"
	status.Status = "processed"
	result.Status = "processed"
	return result, nil
}

func isNoTextError(err error) bool {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.Type() == "no_text" {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no extractable text")
}

func isUnsupportedFileError(err error) bool {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.Type() == "unsupported_file" {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unsupported paper file")
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

func sanitizeID(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, ".", "-")
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, " ", "-")
	return s
}

func durationOrDefault(seconds int, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}

func defaultCount(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}
