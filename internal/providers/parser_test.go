package providers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseProviderList(t *testing.T) {
	refs := ParseProviderList("ollama | openai:gpt-4o|groq")
	require.Len(t, refs, 3)
	require.Equal(t, ProviderRef{Raw: "openai:gpt-4o", Name: "openai", KeyAlias: "gpt-4o"}, refs[1])

	refs = ParseProviderList(" | ")
	require.Equal(t, []ProviderRef{{Raw: "mock", Name: "mock"}}, refs)

	refs = ParseProviderList("ollama:mistral:7b")
	require.Equal(t, "mistral:7b", refs[0].KeyAlias)
}

func TestParseProviderListNormalises(t *testing.T) {
	refs := ParseProviderList("Ollama:nomic|ollama:nomic|OLLAMA:NOMIC|mock")
	require.Equal(t, []ProviderRef{
		{Raw: "Ollama:nomic", Name: "ollama", KeyAlias: "nomic"},
		{Raw: "mock", Name: "mock"},
	}, refs)
}
