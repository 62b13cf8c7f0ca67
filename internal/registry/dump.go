package registry

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"medgraph/internal/graph"
	"medgraph/internal/util"
)

// Line is one record of the entity interchange file.
type Line struct {
	Type graph.EntityType `json:"type"`
	Data json.RawMessage  `json:"data"`
}

type line struct {
	Type graph.EntityType `json:"type"`
	Data graph.Entity     `json:"data"`
}

func (c *Collection) lines() []any {
	ents := c.Entities()
	rows := make([]any, 0, len(ents))
	for _, e := range ents {
		rows = append(rows, line{Type: e.Type, Data: e})
	}
	return rows
}

// Save writes one JSON object per entity in insertion order.
func (c *Collection) Save(w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, row := range c.lines() {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("encode entity line: %w", err)
		}
	}
	return nil
}

// SaveFile writes the collection to path atomically.
func (c *Collection) SaveFile(path string) error {
	return util.WriteJSONLinesAtomic(path, c.lines())
}

// Load reads a file written by Save into a new collection.
func Load(r io.Reader, dim int) (*Collection, error) {
	c := New(dim)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		e, err := DecodeLine(raw)
		if err != nil {
			return nil, fmt.Errorf("entity line %d: %w", n, err)
		}
		if err := c.Add(e); err != nil {
			return nil, fmt.Errorf("entity line %d: %w", n, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read entity lines: %w", err)
	}
	return c, nil
}

func LoadFile(path string, dim int) (*Collection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open entities file: %w", err)
	}
	defer f.Close()
	return Load(f, dim)
}

// DecodeLine parses one interchange line and checks that its type tag
// agrees with the entity it wraps.
func DecodeLine(raw []byte) (graph.Entity, error) {
	var l Line
	if err := json.Unmarshal(raw, &l); err != nil {
		return graph.Entity{}, fmt.Errorf("decode line: %w", err)
	}
	if !l.Type.IsValid() {
		return graph.Entity{}, &graph.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown entity type %q", l.Type)}
	}
	var e graph.Entity
	if err := json.Unmarshal(l.Data, &e); err != nil {
		return graph.Entity{}, fmt.Errorf("decode entity: %w", err)
	}
	if e.Type != l.Type {
		return graph.Entity{}, &graph.ValidationError{Field: "type", Reason: fmt.Sprintf("line tagged %s wraps a %s", l.Type, e.Type)}
	}
	return e, nil
}
