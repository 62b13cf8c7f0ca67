package mapper

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"medgraph/internal/graph"
)

// RelationshipToPersistence flattens rel. Metadata keys promoted for rel's
// predicate go to their own columns; every other key stays in the metadata
// JSON column.
func RelationshipToPersistence(rel graph.Relationship) (PersistedRelationship, error) {
	key := rel.Key().String()
	if rel.IsZero() {
		return PersistedRelationship{}, relationshipErr(key, "predicate", "zero relationship", nil)
	}
	r := PersistedRelationship{
		SubjectID:     rel.SubjectID(),
		Predicate:     string(rel.Predicate()),
		ObjectID:      rel.ObjectID(),
		Confidence:    rel.Confidence(),
		EvidenceCount: rel.EvidenceCount(),
	}
	ev, err := json.Marshal(rel.Evidence())
	if err != nil {
		return PersistedRelationship{}, relationshipErr(key, "evidence", "cannot encode column", err)
	}
	r.Evidence = string(ev)
	papers, err := json.Marshal(rel.SourcePapers())
	if err != nil {
		return PersistedRelationship{}, relationshipErr(key, "source_papers", "cannot encode column", err)
	}
	r.SourcePapers = string(papers)
	if r.ContradictedBy, err = jsonList(rel.ContradictedBy()); err != nil {
		return PersistedRelationship{}, relationshipErr(key, "contradicted_by", "cannot encode column", err)
	}

	md := rel.Metadata()
	cols := columnIndex(r.Columns())
	for _, f := range graph.PredicateFields(rel.Predicate()) {
		v, ok := md[f.Key]
		if !ok {
			continue
		}
		c, ok := cols[f.Key]
		if !ok {
			return PersistedRelationship{}, relationshipErr(key, f.Key, "no column for promoted field", nil)
		}
		if err := setColumn(c, v); err != nil {
			return PersistedRelationship{}, relationshipErr(key, f.Key, "cannot encode column", err)
		}
		delete(md, f.Key)
	}
	if len(md) > 0 {
		b, err := json.Marshal(md)
		if err != nil {
			return PersistedRelationship{}, relationshipErr(key, "metadata", "cannot encode column", err)
		}
		s := string(b)
		r.Metadata = &s
	}
	return r, nil
}

// RelationshipToDomain rebuilds the relationship stored in r. The stored
// confidence, evidence_count and source_papers are ignored: they are derived
// again from the evidence.
func RelationshipToDomain(r PersistedRelationship) (graph.Relationship, error) {
	p := graph.PredicateType(r.Predicate)
	key := graph.RelationshipKey{SubjectID: r.SubjectID, Predicate: p, ObjectID: r.ObjectID}.String()
	if !p.IsValid() {
		return graph.Relationship{}, relationshipErr(key, "predicate", fmt.Sprintf("unknown discriminator %q", r.Predicate), nil)
	}
	if strings.TrimSpace(r.SubjectID) == "" {
		return graph.Relationship{}, relationshipErr(key, "subject_id", "required field is null", nil)
	}
	if strings.TrimSpace(r.ObjectID) == "" {
		return graph.Relationship{}, relationshipErr(key, "object_id", "required field is null", nil)
	}
	if strings.TrimSpace(r.Evidence) == "" {
		return graph.Relationship{}, relationshipErr(key, "evidence", "required field is null", nil)
	}
	var evs []graph.Evidence
	if err := json.Unmarshal([]byte(r.Evidence), &evs); err != nil {
		var ve *graph.ValidationError
		if errors.As(err, &ve) {
			return graph.Relationship{}, relationshipErr(key, "evidence."+ve.Field, "violates domain invariant", err)
		}
		return graph.Relationship{}, relationshipErr(key, "evidence", "malformed JSON column", err)
	}
	if len(evs) == 0 {
		return graph.Relationship{}, relationshipErr(key, "evidence", "required field is empty", nil)
	}
	if strings.TrimSpace(r.SourcePapers) != "" && !json.Valid([]byte(r.SourcePapers)) {
		return graph.Relationship{}, relationshipErr(key, "source_papers", "malformed JSON column", nil)
	}
	contradicted, err := parseList[string](r.ContradictedBy)
	if err != nil {
		return graph.Relationship{}, relationshipErr(key, "contradicted_by", "malformed JSON column", err)
	}

	md := map[string]any{}
	if r.Metadata != nil && strings.TrimSpace(*r.Metadata) != "" {
		if err := json.Unmarshal([]byte(*r.Metadata), &md); err != nil {
			return graph.Relationship{}, relationshipErr(key, "metadata", "malformed JSON column", err)
		}
		if md == nil {
			md = map[string]any{}
		}
		for _, f := range graph.PredicateFields(p) {
			if _, ok := md[f.Key]; ok {
				return graph.Relationship{}, relationshipErr(key, "metadata."+f.Key, "promoted field stored in metadata column", nil)
			}
		}
	}
	promoted := graph.PromotedKeys()
	for _, c := range r.Columns() {
		if _, ok := promoted[c.Name]; !ok || c.IsNull() {
			continue
		}
		owners := graph.PromotedFor(c.Name)
		if !slices.Contains(owners, p) {
			return graph.Relationship{}, relationshipErr(key, c.Name, fmt.Sprintf("column belongs to %s, record is %s", predicateList(owners), p), nil)
		}
		md[c.Name] = columnValue(c)
	}

	rel, err := graph.NewRelationship(p, r.SubjectID, r.ObjectID, evs, md, graph.WithContradictedBy(contradicted...))
	if err != nil {
		return graph.Relationship{}, invalidRecord(relationshipErr, key, err)
	}
	return rel, nil
}

func columnIndex(cols []Column) map[string]Column {
	out := make(map[string]Column, len(cols))
	for _, c := range cols {
		out[c.Name] = c
	}
	return out
}

func setColumn(c Column, v any) error {
	switch ptr := c.Ptr.(type) {
	case **string:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("want string, got %T", v)
		}
		*ptr = &s
	case **float64:
		f, ok := v.(float64)
		if !ok {
			return fmt.Errorf("want float64, got %T", v)
		}
		*ptr = &f
	case **int64:
		n, ok := v.(int)
		if !ok {
			return fmt.Errorf("want int, got %T", v)
		}
		i := int64(n)
		*ptr = &i
	case **bool:
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("want bool, got %T", v)
		}
		*ptr = &b
	default:
		return fmt.Errorf("unsupported column type %T", c.Ptr)
	}
	return nil
}

// columnValue returns a non-null promoted column in its domain type.
func columnValue(c Column) any {
	switch ptr := c.Ptr.(type) {
	case **string:
		return **ptr
	case **float64:
		return **ptr
	case **int64:
		return int(**ptr)
	case **bool:
		return **ptr
	}
	return c.Value()
}

func predicateList(ps []graph.PredicateType) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = string(p)
	}
	return strings.Join(parts, "|")
}
