package providers

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"medgraph/internal/util"
)

// MockProvider is a deterministic offline provider. Embeddings are derived
// from a hash of the input; claim extraction recognises simple
// "<subject> <verb> <object>" sentences.
type MockProvider struct {
	dim int
}

func NewMockProvider(dim int) *MockProvider {
	if dim <= 0 {
		dim = 768
	}
	return &MockProvider{dim: dim}
}

func (m *MockProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	_ = ctx
	dim := req.Dimension
	if dim <= 0 {
		dim = m.dim
	}
	vectors := make([][]float32, 0, len(req.Inputs))
	for _, input := range req.Inputs {
		vectors = append(vectors, deterministicVector(input, dim))
	}
	return vectors, ProviderInfo{Name: "mock", Model: fmt.Sprintf("mock-embed-%d", dim), Key: "mock"}, nil
}

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	_ = ctx
	info := ProviderInfo{Name: "mock", Model: "mock-llm-v1", Key: "mock"}
	if req.Operation != "claim_extract" {
		return GenerateResponse{Text: "Mock response."}, info, nil
	}
	b, err := json.Marshal(map[string]any{"claims": mockClaims(paragraphOf(req.Prompt))})
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("encode mock claims: %w", err)
	}
	return GenerateResponse{Text: string(b)}, info, nil
}

type mockVerb struct {
	predicate   string
	subjectType string
	objectType  string
}

var mockVerbs = map[string]mockVerb{
	"treats":             {"treats", "drug", "disease"},
	"causes":             {"causes", "disease", "symptom"},
	"prevents":           {"prevents", "drug", "disease"},
	"inhibits":           {"inhibits", "drug", "protein"},
	"encodes":            {"encodes", "gene", "protein"},
	"increases risk of":  {"increases_risk", "gene", "disease"},
	"is associated with": {"associated_with", "gene", "disease"},
}

var mockSentence = regexp.MustCompile(`(?i)^(.+?)\s+(treats|causes|prevents|inhibits|encodes|increases risk of|is associated with)\s+(.+?)[.!?]?$`)

func mockClaims(paragraph string) []map[string]any {
	claims := make([]map[string]any, 0)
	for _, s := range util.SplitSentences(paragraph) {
		m := mockSentence.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		v := mockVerbs[strings.ToLower(m[2])]
		claims = append(claims, map[string]any{
			"subject_type": v.subjectType,
			"subject_name": strings.TrimSpace(m[1]),
			"predicate":    v.predicate,
			"object_type":  v.objectType,
			"object_name":  strings.TrimSpace(m[3]),
			"evidence":     s,
			"confidence":   0.7,
		})
	}
	return claims
}

// paragraphOf returns the text after the prompt's "Paragraph:" marker so the
// worked example in the prompt is not extracted.
func paragraphOf(prompt string) string {
	const marker = "\nParagraph:\n"
	if i := strings.LastIndex(prompt, marker); i >= 0 {
		return prompt[i+len(marker):]
	}
	return prompt
}

func deterministicVector(input string, dim int) []float32 {
	vec := make([]float32, dim)
	seed := []byte(input)
	if len(seed) == 0 {
		seed = []byte("empty")
	}
	for i := 0; i < dim; i++ {
		h := sha256.Sum256(append(seed, byte(i%251), byte(i/251)))
		u := binary.BigEndian.Uint32(h[:4])
		vec[i] = float32(u%2000)/1000.0 - 1.0
	}
	return normalize(vec)
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}
