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

	"golang.org/x/time/rate"
)

const (
	openAIBaseURL = "https://api.openai.com/v1"
	groqBaseURL   = "https://api.groq.com/openai/v1"
)

// OpenAIProvider talks to any OpenAI-compatible chat and embeddings API.
// Groq is served by the same client with a different base URL.
type OpenAIProvider struct {
	name       string
	baseURL    string
	apiKey     string
	model      string
	embedModel string
	client     *http.Client
	limiter    *rate.Limiter
}

func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	if strings.TrimSpace(model) == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIProvider{
		name:       "openai",
		baseURL:    openAIBaseURL,
		apiKey:     strings.TrimSpace(apiKey),
		model:      model,
		embedModel: "text-embedding-3-small",
		client:     &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(5), 5),
	}
}

// NewGroqProvider returns a generation-only client for Groq.
func NewGroqProvider(apiKey, model string) *OpenAIProvider {
	if strings.TrimSpace(model) == "" {
		model = "llama-3.1-8b-instant"
	}
	p := NewOpenAIProvider(apiKey, model)
	p.name = "groq"
	p.baseURL = groqBaseURL
	p.embedModel = ""
	// Free-tier keys allow about 30 requests a minute.
	p.limiter = rate.NewLimiter(rate.Every(2*time.Second), 2)
	return p
}

// WithBaseURL points the client at another OpenAI-compatible endpoint.
func (o *OpenAIProvider) WithBaseURL(baseURL string) *OpenAIProvider {
	o.baseURL = strings.TrimRight(baseURL, "/")
	return o
}

func (o *OpenAIProvider) info(model string) ProviderInfo {
	return ProviderInfo{Name: o.name, Model: model, Key: o.name}
}

func (o *OpenAIProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := o.info(o.model)
	if o.apiKey == "" {
		return GenerateResponse{}, info, fmt.Errorf("%s api key missing: %w", o.name, util.ErrProviderUnavailable)
	}
	system := req.System
	if system == "" {
		system = ClaimExtractSystem
	}
	payload := map[string]any{
		"model":       o.model,
		"temperature": 0,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": req.Prompt},
		},
	}
	if req.JSON {
		payload["response_format"] = map[string]string{"type": "json_object"}
	}
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := o.post(ctx, "/chat/completions", payload, &parsed); err != nil {
		return GenerateResponse{}, info, err
	}
	if len(parsed.Choices) == 0 {
		return GenerateResponse{}, info, fmt.Errorf("%s returned empty choices: %w", o.name, util.ErrBadResponse)
	}
	return GenerateResponse{Text: parsed.Choices[0].Message.Content}, info, nil
}

func (o *OpenAIProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	info := o.info(o.embedModel)
	if o.embedModel == "" {
		return nil, info, fmt.Errorf("%s does not serve embeddings: %w", o.name, util.ErrProviderUnavailable)
	}
	if o.apiKey == "" {
		return nil, info, fmt.Errorf("%s api key missing: %w", o.name, util.ErrProviderUnavailable)
	}
	payload := map[string]any{"model": o.embedModel, "input": req.Inputs}
	if req.Dimension > 0 {
		payload["dimensions"] = req.Dimension
	}
	var parsed struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := o.post(ctx, "/embeddings", payload, &parsed); err != nil {
		return nil, info, err
	}
	if len(parsed.Data) != len(req.Inputs) {
		return nil, info, fmt.Errorf("%s returned %d embeddings for %d inputs: %w", o.name, len(parsed.Data), len(req.Inputs), util.ErrBadResponse)
	}
	out := make([][]float32, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		out = append(out, matchDimension(d.Embedding, req.Dimension))
	}
	return out, info, nil
}

func (o *OpenAIProvider) post(ctx context.Context, path string, payload any, out any) error {
	if err := o.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s request pacing: %v: %w", o.name, err, util.ErrTimeout)
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", o.name, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("build %s request: %w", o.name, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return transportError(o.name, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return statusError(o.name, resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %v: %w", o.name, err, util.ErrBadResponse)
	}
	return nil
}
