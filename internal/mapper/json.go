package mapper

import (
	"encoding/json"
	"strings"
)

// nullable maps only the empty string to NULL so whitespace survives a round
// trip.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// jsonList encodes v as a nullable JSON column. Empty lists map to NULL.
func jsonList[T any](v []T) (*string, error) {
	if len(v) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func parseList[T any](p *string) ([]T, error) {
	if p == nil || strings.TrimSpace(*p) == "" {
		return nil, nil
	}
	var out []T
	if err := json.Unmarshal([]byte(*p), &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
