package graph

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ParseClaimsJSON decodes a model response of the form {"claims":[...]}.
// Malformed JSON is repaired once before giving up. Claims that fail
// normalisation are dropped and duplicates keep their first occurrence.
func ParseClaimsJSON(raw string) ([]Claim, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	raw = stripCodeFence(raw)
	var payload struct {
		Claims []Claim `json:"claims"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(raw)
		if rerr != nil {
			return nil, fmt.Errorf("repair claims json: %w", rerr)
		}
		if err := json.Unmarshal([]byte(repaired), &payload); err != nil {
			return nil, fmt.Errorf("decode claims json: %w", err)
		}
	}
	out := make([]Claim, 0, len(payload.Claims))
	seen := map[string]struct{}{}
	for _, c := range payload.Claims {
		n, ok := NormalizeClaim(c)
		if !ok {
			continue
		}
		k := n.Key()
		if _, exists := seen[k]; exists {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, n)
	}
	return out, nil
}

func stripCodeFence(s string) string {
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
