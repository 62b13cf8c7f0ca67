package providers

import "strings"

// ProviderRef is one entry of a provider list such as "ollama:mistral:7b":
// Name selects the client and KeyAlias, when set, picks its model.
type ProviderRef struct {
	Raw      string
	Name     string
	KeyAlias string
}

// ParseProviderList splits a "|"-separated provider list. Repeated entries
// are kept once; an empty list means the mock provider.
func ParseProviderList(raw string) []ProviderRef {
	out := make([]ProviderRef, 0)
	seen := map[string]bool{}
	for _, p := range strings.Split(raw, "|") {
		p = strings.TrimSpace(p)
		if p == "" || seen[strings.ToLower(p)] {
			continue
		}
		seen[strings.ToLower(p)] = true
		name, alias, _ := strings.Cut(p, ":")
		out = append(out, ProviderRef{
			Raw:      p,
			Name:     strings.ToLower(strings.TrimSpace(name)),
			KeyAlias: strings.TrimSpace(alias),
		})
	}
	if len(out) == 0 {
		out = append(out, ProviderRef{Raw: "mock", Name: "mock"})
	}
	return out
}
