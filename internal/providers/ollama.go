package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"medgraph/internal/util"

	"golang.org/x/sync/errgroup"
)

// OllamaProvider serves local generation and embeddings through an Ollama
// server, e.g. llama3.1:8b for claims and nomic-embed-text for embeddings.
type OllamaProvider struct {
	alias      string
	baseURL    string
	chatModel  string
	embedModel string
	client     *http.Client
}

// Embeddings are requested one input per call, a few at a time.
const ollamaEmbedParallelism = 4

func NewOllamaProvider(baseURL, chatModel, embedModel, alias string) *OllamaProvider {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaProvider{
		alias:      alias,
		baseURL:    strings.TrimRight(baseURL, "/"),
		chatModel:  resolveOllamaModel(alias, chatModel, "llama3.1:8b"),
		embedModel: resolveOllamaModel(alias, embedModel, "nomic-embed-text"),
		client:     &http.Client{Timeout: 90 * time.Second},
	}
}

func (o *OllamaProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "ollama", Model: o.chatModel, Key: o.alias}
	body := map[string]any{
		"model":  o.chatModel,
		"prompt": req.Prompt,
		"stream": false,
		"options": map[string]any{
			"temperature": 0,
		},
	}
	if req.System != "" {
		body["system"] = req.System
	}
	if req.JSON {
		body["format"] = "json"
	}
	var parsed struct {
		Response string `json:"response"`
	}
	if err := o.post(ctx, "/api/generate", body, &parsed); err != nil {
		return GenerateResponse{}, info, err
	}
	if strings.TrimSpace(parsed.Response) == "" {
		return GenerateResponse{}, info, fmt.Errorf("ollama returned empty response: %w", util.ErrBadResponse)
	}
	return GenerateResponse{Text: parsed.Response}, info, nil
}

func (o *OllamaProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	info := ProviderInfo{Name: "ollama", Model: o.embedModel, Key: o.alias}
	if len(req.Inputs) == 0 {
		return nil, info, fmt.Errorf("no embedding inputs")
	}
	out := make([][]float32, len(req.Inputs))
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(ollamaEmbedParallelism)
	for i, text := range req.Inputs {
		eg.Go(func() error {
			var parsed struct {
				Embedding []float32 `json:"embedding"`
			}
			if err := o.post(ectx, "/api/embeddings", map[string]any{"model": o.embedModel, "prompt": text}, &parsed); err != nil {
				return err
			}
			if len(parsed.Embedding) == 0 {
				return fmt.Errorf("ollama returned empty embedding: %w", util.ErrBadResponse)
			}
			out[i] = matchDimension(parsed.Embedding, req.Dimension)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, info, err
	}
	return out, info, nil
}

func (o *OllamaProvider) post(ctx context.Context, path string, payload any, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode ollama request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("build ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return transportError("ollama", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode >= 400 {
		return statusError("ollama", resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode ollama response: %v: %w", err, util.ErrBadResponse)
	}
	return nil
}

// resolveOllamaModel lets a provider alias name the model directly, as in
// "ollama:mistral:7b" or "ollama:bge-small-en-v1.5".
func resolveOllamaModel(alias, configured, fallback string) string {
	alias = strings.TrimSpace(alias)
	switch strings.ToLower(alias) {
	case "nomic":
		return "nomic-embed-text"
	case "bge":
		return "bge-small-en-v1.5"
	}
	if strings.ContainsAny(alias, "-/.:") {
		return alias
	}
	if v := strings.TrimSpace(configured); v != "" {
		return v
	}
	return fallback
}

func matchDimension(v []float32, target int) []float32 {
	if target <= 0 || len(v) == target {
		return v
	}
	if len(v) > target {
		return v[:target]
	}
	out := make([]float32, target)
	copy(out, v)
	return out
}
