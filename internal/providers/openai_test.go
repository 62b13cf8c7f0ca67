package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"medgraph/internal/util"

	"github.com/stretchr/testify/require"
)

func TestOpenAIGenerate(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"claims\":[]}"}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", "").WithBaseURL(srv.URL)
	resp, info, err := p.Generate(context.Background(), GenerateRequest{Prompt: "p", JSON: true})
	require.NoError(t, err)
	require.Equal(t, `{"claims":[]}`, resp.Text)
	require.Equal(t, ProviderInfo{Name: "openai", Model: "gpt-4o-mini", Key: "openai"}, info)
	require.Equal(t, map[string]any{"type": "json_object"}, got["response_format"])
}

func TestOpenAIRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"slow down"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, _, err := NewGroqProvider("gsk-test", "").WithBaseURL(srv.URL).Generate(context.Background(), GenerateRequest{Prompt: "p"})
	require.ErrorIs(t, err, util.ErrRateLimited)
	require.Contains(t, err.Error(), "groq status 429")
}

func TestOpenAIEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[{"embedding":[1,0]},{"embedding":[0,1]}]}`))
	}))
	defer srv.Close()

	vecs, _, err := NewOpenAIProvider("sk-test", "").WithBaseURL(srv.URL).Embed(context.Background(), EmbedRequest{Inputs: []string{"a", "b"}, Dimension: 2})
	require.NoError(t, err)
	require.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
}

func TestOpenAIMissingKey(t *testing.T) {
	_, _, err := NewOpenAIProvider("", "").Generate(context.Background(), GenerateRequest{Prompt: "p"})
	require.ErrorIs(t, err, util.ErrProviderUnavailable)

	_, _, err = NewGroqProvider("gsk", "").Embed(context.Background(), EmbedRequest{Inputs: []string{"a"}})
	require.ErrorIs(t, err, util.ErrProviderUnavailable)
}

func TestOpenAIPacingHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewOpenAIProvider("sk-test", "").WithBaseURL("http://127.0.0.1:1").Generate(ctx, GenerateRequest{Prompt: "p"})
	require.ErrorIs(t, err, util.ErrTimeout)
	require.Equal(t, ErrorTimeout, ClassifyError(err))
}
