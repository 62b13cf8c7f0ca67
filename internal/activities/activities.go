package activities

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"medgraph/internal/config"
	"medgraph/internal/graph"
	"medgraph/internal/logger"
	"medgraph/internal/metrics"
	"medgraph/internal/providers"
	"medgraph/internal/storage"
	"medgraph/internal/util"

	"github.com/ledongthuc/pdf"
	"go.temporal.io/sdk/temporal"
)

type Activities struct {
	cfg       config.Config
	repo      *storage.Repository
	providers *providers.Manager
}

func New(cfg config.Config, repo *storage.Repository) (*Activities, error) {
	pm, err := providers.NewManager(cfg)
	if err != nil {
		return nil, err
	}
	return &Activities{cfg: cfg, repo: repo, providers: pm}, nil
}

var paperExtensions = map[string]bool{".pdf": true, ".txt": true, ".md": true}

func (a *Activities) ListPapersActivity(ctx context.Context, in ListPapersInput) (ListPapersOutput, error) {
	_ = ctx
	info, err := os.Stat(in.InputDir)
	if err != nil {
		return ListPapersOutput{}, fmt.Errorf("stat input: %w", err)
	}
	if !info.IsDir() {
		if !paperExtensions[strings.ToLower(filepath.Ext(in.InputDir))] {
			return ListPapersOutput{}, unsupportedFile(in.InputDir)
		}
		return ListPapersOutput{Paths: []string{in.InputDir}}, nil
	}
	entries, err := os.ReadDir(in.InputDir)
	if err != nil {
		return ListPapersOutput{}, fmt.Errorf("read input dir: %w", err)
	}
	paths := make([]string, 0)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if paperExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			paths = append(paths, filepath.Join(in.InputDir, e.Name()))
		}
	}
	sort.Strings(paths)
	return ListPapersOutput{Paths: paths}, nil
}

// ComputePaperIDActivity derives a stable paper ID from the file name and
// content, e.g. "PMC999-3f2a9c1b04de".
func (a *Activities) ComputePaperIDActivity(ctx context.Context, in ComputePaperIDInput) (ComputePaperIDOutput, error) {
	_ = ctx
	sum, err := util.HashFile(in.PaperPath)
	if err != nil {
		return ComputePaperIDOutput{}, err
	}
	return ComputePaperIDOutput{PaperID: PaperIDFor(in.PaperPath, sum), ContentHash: sum}, nil
}

var unsafeIDChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func PaperIDFor(path, contentHash string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	stem = strings.Trim(unsafeIDChars.ReplaceAllString(stem, "_"), "_")
	if stem == "" {
		stem = "paper"
	}
	if len(contentHash) > 12 {
		contentHash = contentHash[:12]
	}
	return stem + "-" + contentHash
}

func (a *Activities) ExtractTextActivity(ctx context.Context, in ExtractTextInput) (ExtractTextOutput, error) {
	_ = ctx
	var (
		text string
		err  error
	)
	switch strings.ToLower(filepath.Ext(in.PaperPath)) {
	case ".pdf":
		text, err = readPDF(in.PaperPath)
	case ".txt", ".md":
		var b []byte
		b, err = os.ReadFile(in.PaperPath)
		text = string(b)
	default:
		return ExtractTextOutput{}, unsupportedFile(in.PaperPath)
	}
	if err != nil {
		return ExtractTextOutput{}, err
	}
	text = strings.TrimSpace(util.SanitizeText(text))
	if text == "" {
		return ExtractTextOutput{}, temporal.NewNonRetryableApplicationError(util.ErrNoExtractableText.Error(), "no_text", util.ErrNoExtractableText)
	}
	return ExtractTextOutput{Text: text}, nil
}

func unsupportedFile(path string) error {
	return temporal.NewNonRetryableApplicationError(fmt.Sprintf("%s: %s", util.ErrUnsupportedFile, filepath.Base(path)), "unsupported_file", util.ErrUnsupportedFile)
}

func readPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return "", fmt.Errorf("read extracted text: %w", err)
	}
	return buf.String(), nil
}

var (
	doiPattern  = regexp.MustCompile(`(?i)\b(10\.\d{4,9}/[^\s"<>]+[^\s"<>.,;])`)
	pmidPattern = regexp.MustCompile(`(?i)\bPMID:?\s*(\d{5,9})\b`)
)

func (a *Activities) ExtractMetadataActivity(ctx context.Context, in ExtractMetadataInput) (ExtractMetadataOutput, error) {
	_ = ctx
	title, authors := heuristicTitleAndAuthors(in.Text)
	out := ExtractMetadataOutput{Title: title, Authors: authors}
	if m := doiPattern.FindStringSubmatch(in.Text); m != nil {
		out.DOI = m[1]
	}
	if m := pmidPattern.FindStringSubmatch(in.Text); m != nil {
		out.PMID = m[1]
	}
	return out, nil
}

// UpsertPaperActivity records the paper as an entity so evidence paper IDs
// resolve in the graph.
func (a *Activities) UpsertPaperActivity(ctx context.Context, in UpsertPaperInput) error {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = in.Filename
	}
	e, err := graph.NewPaper(in.PaperID, title, graph.PaperAttrs{PMID: in.PMID, DOI: in.DOI}, graph.WithSource(graph.SourceExtracted))
	if err != nil {
		return temporal.NewNonRetryableApplicationError(err.Error(), "invalid_paper", err)
	}
	created, err := a.repo.EnsureEntity(ctx, e)
	if err != nil {
		return fmt.Errorf("upsert paper %s: %w", in.PaperID, err)
	}
	if created {
		logger.Info("paper registered", "paper_id", in.PaperID, "title", title)
	}
	return nil
}

func (a *Activities) ChunkPaperActivity(ctx context.Context, in ChunkPaperInput) (ChunkPaperOutput, error) {
	_ = ctx
	if in.ChunkSize <= 0 {
		in.ChunkSize = a.cfg.ChunkSize
	}
	if in.ChunkOverlap < 0 || in.ChunkOverlap >= in.ChunkSize {
		in.ChunkOverlap = a.cfg.ChunkOverlap
	}
	paras := util.SplitParagraphs(in.Text, in.ChunkSize, in.ChunkOverlap)
	chunks := make([]ChunkItem, 0, len(paras))
	for _, p := range paras {
		chunks = append(chunks, ChunkItem{
			ChunkID: util.StableID(16, in.PaperID, strconv.Itoa(p.Index), p.Text),
			PaperID: in.PaperID,
			Index:   p.Index,
			Section: p.Section,
			Text:    p.Text,
		})
	}
	return ChunkPaperOutput{Chunks: chunks}, nil
}

func (a *Activities) LLMGenerateActivity(ctx context.Context, in LLMGenerateInput) (LLMGenerateOutput, error) {
	if in.ProviderRef != "" {
		idx := a.providers.FindLLMProviderIndex(in.ProviderRef)
		if idx < 0 {
			return LLMGenerateOutput{}, fmt.Errorf("llm provider ref not configured in worker: %s", in.ProviderRef)
		}
		in.ProviderIndex = idx
	}
	provider, ref := a.providers.LLMProviderByIndex(in.ProviderIndex)
	resp, info, err := provider.Generate(ctx, providers.GenerateRequest{
		Operation: in.Operation,
		System:    in.System,
		Prompt:    in.Prompt,
		JSON:      in.JSON,
	})
	if err != nil {
		return LLMGenerateOutput{}, providers.AsActivityError(fmt.Errorf("llm generate via %s failed: %w", ref.Raw, err))
	}
	return LLMGenerateOutput{
		Text:         resp.Text,
		ProviderName: info.Name,
		Model:        info.Model,
	}, nil
}

func (a *Activities) LogLLMCallActivity(ctx context.Context, in LogLLMCallInput) error {
	_ = ctx
	metrics.RecordLLMCall(in.ProviderName, in.Operation, in.Status)
	if in.Status != "ok" {
		logger.Warn("provider call failed", "operation", in.Operation, "paper_id", in.PaperID, "provider", in.ProviderName, "error_type", in.ErrorType)
		return nil
	}
	logger.Debug("provider call", "operation", in.Operation, "paper_id", in.PaperID, "provider", in.ProviderName, "model", in.Model)
	return nil
}

func (a *Activities) WritePaperArtifactsActivity(ctx context.Context, in WritePaperArtifactsInput) error {
	_ = ctx
	base := filepath.Join(a.cfg.DataOutRoot, "papers", in.PaperID)
	if err := util.EnsureDir(base); err != nil {
		return err
	}
	if err := util.WriteTextAtomic(filepath.Join(base, "text.txt"), in.Text); err != nil {
		return err
	}
	if err := util.WriteJSONAtomic(filepath.Join(base, "metadata.json"), in.Metadata); err != nil {
		return err
	}
	if err := util.WriteJSONLinesAtomic(filepath.Join(base, "chunks.jsonl"), in.Chunks); err != nil {
		return err
	}
	return util.WriteJSONAtomic(filepath.Join(base, "ingest_log.json"), in.ProcessingLog)
}

func (a *Activities) WriteCorpusSummaryActivity(ctx context.Context, in WriteCorpusSummaryInput) error {
	_ = ctx
	return util.WriteJSONAtomic(filepath.Join(a.cfg.DataOutRoot, "runs", in.RunID, "summary.json"), in.Summary)
}

func heuristicTitleAndAuthors(text string) (string, string) {
	s := bufio.NewScanner(strings.NewReader(text))
	nonEmpty := make([]string, 0, 4)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		if _, isHeading := util.DetectSection(line); isHeading {
			break
		}
		nonEmpty = append(nonEmpty, line)
		if len(nonEmpty) == 2 {
			break
		}
	}
	title := ""
	authors := ""
	if len(nonEmpty) > 0 {
		title = strings.TrimLeft(nonEmpty[0], "# ")
	}
	if len(nonEmpty) > 1 {
		authors = nonEmpty[1]
	}
	return title, authors
}
