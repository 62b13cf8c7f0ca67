package providers

import (
	"testing"

	"medgraph/internal/config"

	"github.com/stretchr/testify/require"
)

func TestNewManager(t *testing.T) {
	cfg := config.Load()
	cfg.LLMProviders = "mock|groq|ollama:mistral:7b"
	cfg.EmbedProviders = "ollama|mock"
	m, err := NewManager(cfg)
	require.NoError(t, err)
	require.Equal(t, 3, m.LLMCount())
	require.Equal(t, 2, m.EmbedCount())
	require.Equal(t, []int{1, 2, 0}, m.PreferredLLMOrder())
	require.Equal(t, []int{0, 1}, m.PreferredEmbedOrder())

	require.Equal(t, 2, m.FindLLMProviderIndex("ollama:mistral:7b"))
	require.Equal(t, 2, m.FindLLMProviderIndex("OLLAMA"))
	require.Equal(t, -1, m.FindLLMProviderIndex("openai"))
	require.Equal(t, 1, m.FindEmbedProviderIndex("mock"))

	p, ref := m.LLMProviderByIndex(99)
	require.Equal(t, "mock", ref.Name)
	require.IsType(t, &MockProvider{}, p)
}

func TestNewManagerRejectsUnknownProviders(t *testing.T) {
	cfg := config.Load()
	cfg.LLMProviders = "anthropic"
	_, err := NewManager(cfg)
	require.Error(t, err)

	cfg = config.Load()
	cfg.EmbedProviders = "groq"
	_, err = NewManager(cfg)
	require.Error(t, err)
}
