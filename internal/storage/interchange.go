package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"medgraph/internal/graph"
	"medgraph/internal/registry"
	"medgraph/internal/util"
)

const (
	EntitiesFile      = "entities.jsonl"
	RelationshipsFile = "relationships.jsonl"
)

// RelationshipLine is one record of relationships.jsonl.
type RelationshipLine struct {
	Type graph.PredicateType `json:"type"`
	Data json.RawMessage     `json:"data"`
}

type relationshipLine struct {
	Type graph.PredicateType `json:"type"`
	Data graph.Relationship  `json:"data"`
}

type ExportResult struct {
	Entities      int `json:"entities"`
	Relationships int `json:"relationships"`
}

// Export writes every stored entity and relationship under dir.
func Export(ctx context.Context, repo *Repository, dir string) (ExportResult, error) {
	c := registry.New(0)
	n, err := repo.LoadRegistry(ctx, c)
	if err != nil {
		return ExportResult{}, err
	}
	if err := c.SaveFile(filepath.Join(dir, EntitiesFile)); err != nil {
		return ExportResult{}, fmt.Errorf("export entities: %w", err)
	}
	rels, err := repo.Relationships(ctx, RelationshipFilter{})
	if err != nil {
		return ExportResult{}, err
	}
	rows := make([]relationshipLine, 0, len(rels))
	for _, rel := range rels {
		rows = append(rows, relationshipLine{Type: rel.Predicate(), Data: rel})
	}
	if err := util.WriteJSONLinesAtomic(filepath.Join(dir, RelationshipsFile), rows); err != nil {
		return ExportResult{}, fmt.Errorf("export relationships: %w", err)
	}
	return ExportResult{Entities: n, Relationships: len(rels)}, nil
}

// Import loads the files written by Export into repo. Entities replace stored
// ones; relationships merge with stored claims.
func Import(ctx context.Context, repo *Repository, dir string) (ExportResult, error) {
	c, err := registry.LoadFile(filepath.Join(dir, EntitiesFile), 0)
	if err != nil {
		return ExportResult{}, err
	}
	var res ExportResult
	for _, e := range c.Entities() {
		if err := repo.SaveEntity(ctx, e); err != nil {
			return res, err
		}
		res.Entities++
	}

	f, err := os.Open(filepath.Join(dir, RelationshipsFile))
	if err != nil {
		return res, fmt.Errorf("open relationships file: %w", err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		rel, err := DecodeRelationshipLine(raw)
		if err != nil {
			return res, fmt.Errorf("relationship line %d: %w", n, err)
		}
		if _, err := repo.UpsertRelationship(ctx, rel); err != nil {
			return res, fmt.Errorf("relationship line %d: %w", n, err)
		}
		res.Relationships++
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("read relationship lines: %w", err)
	}
	return res, nil
}

// DecodeRelationshipLine parses one interchange line and checks that its
// type tag names the wrapped relationship's predicate.
func DecodeRelationshipLine(raw []byte) (graph.Relationship, error) {
	var l RelationshipLine
	if err := json.Unmarshal(raw, &l); err != nil {
		return graph.Relationship{}, fmt.Errorf("decode line: %w", err)
	}
	if !l.Type.IsValid() {
		return graph.Relationship{}, &graph.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown predicate %q", l.Type)}
	}
	var rel graph.Relationship
	if err := json.Unmarshal(l.Data, &rel); err != nil {
		return graph.Relationship{}, fmt.Errorf("decode relationship: %w", err)
	}
	if rel.Predicate() != l.Type {
		return graph.Relationship{}, &graph.ValidationError{Field: "type", Reason: fmt.Sprintf("line tagged %s wraps a %s", l.Type, rel.Predicate())}
	}
	return rel, nil
}
