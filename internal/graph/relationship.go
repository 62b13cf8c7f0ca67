package graph

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RelationshipKey identifies a claim in storage.
type RelationshipKey struct {
	SubjectID string        `json:"subject_id"`
	Predicate PredicateType `json:"predicate"`
	ObjectID  string        `json:"object_id"`
}

func (k RelationshipKey) String() string {
	return k.SubjectID + " -" + string(k.Predicate) + "-> " + k.ObjectID
}

// Relationship is an evidenced claim connecting two entities. It can only be
// built through NewRelationship, which guarantees at least one valid evidence
// item and derives SourcePapers and Confidence from the evidence.
type Relationship struct {
	subjectID      string
	predicate      PredicateType
	objectID       string
	evidence       []Evidence
	sourcePapers   []string
	confidence     float64
	contradictedBy []string
	metadata       map[string]any
}

type RelationshipOption func(*relOptions)

type relOptions struct {
	contradictedBy []string
}

// WithContradictedBy records papers that dispute the claim. They are kept
// for display and do not affect the derived confidence.
func WithContradictedBy(paperIDs ...string) RelationshipOption {
	return func(o *relOptions) { o.contradictedBy = append(o.contradictedBy, paperIDs...) }
}

// NewRelationship validates its inputs and derives source papers and confidence.
// Subject and object IDs are weak references; they are not resolved here.
func NewRelationship(predicate PredicateType, subjectID, objectID string, evidence []Evidence, metadata map[string]any, opts ...RelationshipOption) (Relationship, error) {
	var o relOptions
	for _, opt := range opts {
		opt(&o)
	}
	if !predicate.IsValid() {
		return Relationship{}, invalid("predicate", "unknown predicate %q", predicate)
	}
	subjectID = strings.TrimSpace(subjectID)
	objectID = strings.TrimSpace(objectID)
	if subjectID == "" {
		return Relationship{}, invalid("subject_id", "is required")
	}
	if objectID == "" {
		return Relationship{}, invalid("object_id", "is required")
	}
	if len(evidence) == 0 {
		return Relationship{}, invalid("evidence", "at least one evidence item is required")
	}
	evs := make([]Evidence, 0, len(evidence))
	for i, ev := range evidence {
		if err := ev.Validate(); err != nil {
			return Relationship{}, prefixed(fmt.Sprintf("evidence[%d]", i), err)
		}
		evs = append(evs, ev.clone())
	}
	md, err := canonicalMetadata(predicate, metadata)
	if err != nil {
		return Relationship{}, err
	}
	var contradicted []string
	for i, p := range o.contradictedBy {
		p = strings.TrimSpace(p)
		if p == "" {
			return Relationship{}, invalid(fmt.Sprintf("contradicted_by[%d]", i), "is blank")
		}
		contradicted = appendUnique(contradicted, p)
	}
	conf, err := DeriveConfidence(evs)
	if err != nil {
		return Relationship{}, err
	}
	return Relationship{
		subjectID:      subjectID,
		predicate:      predicate,
		objectID:       objectID,
		evidence:       evs,
		sourcePapers:   sourcePapers(evs),
		confidence:     conf,
		contradictedBy: contradicted,
		metadata:       md,
	}, nil
}

func sourcePapers(evs []Evidence) []string {
	var out []string
	for _, ev := range evs {
		out = appendUnique(out, ev.PaperID)
	}
	return out
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

func (r Relationship) SubjectID() string        { return r.subjectID }
func (r Relationship) ObjectID() string         { return r.objectID }
func (r Relationship) Predicate() PredicateType { return r.predicate }
func (r Relationship) Confidence() float64      { return r.confidence }
func (r Relationship) EvidenceCount() int       { return len(r.evidence) }
func (r Relationship) Directed() bool           { return r.predicate.Directed() }

func (r Relationship) Key() RelationshipKey {
	return RelationshipKey{SubjectID: r.subjectID, Predicate: r.predicate, ObjectID: r.objectID}
}

// IsZero reports whether r was never constructed.
func (r Relationship) IsZero() bool { return r.predicate == "" }

func (r Relationship) Evidence() []Evidence {
	out := make([]Evidence, len(r.evidence))
	for i, ev := range r.evidence {
		out[i] = ev.clone()
	}
	return out
}

// SourcePapers lists distinct paper IDs in evidence order.
func (r Relationship) SourcePapers() []string   { return cloneStrings(r.sourcePapers) }
func (r Relationship) ContradictedBy() []string { return cloneStrings(r.contradictedBy) }

// Metadata returns a shallow copy of the metadata map, or nil.
func (r Relationship) Metadata() map[string]any {
	if r.metadata == nil {
		return nil
	}
	out := make(map[string]any, len(r.metadata))
	for k, v := range r.metadata {
		out[k] = v
	}
	return out
}

func (r Relationship) MetaString(key string) (string, bool) {
	v, ok := r.metadata[key].(string)
	return v, ok
}

func (r Relationship) MetaFloat(key string) (float64, bool) {
	return toFloat(r.metadata[key])
}

func (r Relationship) MetaInt(key string) (int, bool) {
	switch v := r.metadata[key].(type) {
	case int:
		return v, true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	}
	return 0, false
}

func (r Relationship) MetaBool(key string) (bool, bool) {
	v, ok := r.metadata[key].(bool)
	return v, ok
}

// MergeRelationships combines two observations of the same claim. Evidence is
// concatenated without exact duplicates, contradicting papers are unioned and
// metadata from b overrides a. Confidence is derived again from the result.
func MergeRelationships(a, b Relationship) (Relationship, error) {
	if a.IsZero() {
		return b, nil
	}
	if a.Key() != b.Key() {
		return Relationship{}, invalid("key", "cannot merge %s into %s", b.Key(), a.Key())
	}
	evs := a.Evidence()
	for _, ev := range b.evidence {
		dup := false
		for _, have := range evs {
			if have.equal(ev) {
				dup = true
				break
			}
		}
		if !dup {
			evs = append(evs, ev)
		}
	}
	md := a.Metadata()
	if md == nil && b.metadata != nil {
		md = map[string]any{}
	}
	for k, v := range b.metadata {
		md[k] = v
	}
	contradicted := a.ContradictedBy()
	for _, p := range b.contradictedBy {
		contradicted = appendUnique(contradicted, p)
	}
	return NewRelationship(a.predicate, a.subjectID, a.objectID, evs, md, WithContradictedBy(contradicted...))
}

type relationshipJSON struct {
	SubjectID      string         `json:"subject_id"`
	Predicate      PredicateType  `json:"predicate"`
	ObjectID       string         `json:"object_id"`
	Directed       bool           `json:"directed"`
	Evidence       []Evidence     `json:"evidence"`
	SourcePapers   []string       `json:"source_papers"`
	Confidence     float64        `json:"confidence"`
	EvidenceCount  int            `json:"evidence_count"`
	ContradictedBy []string       `json:"contradicted_by,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

func (r Relationship) MarshalJSON() ([]byte, error) {
	return json.Marshal(relationshipJSON{
		SubjectID:      r.subjectID,
		Predicate:      r.predicate,
		ObjectID:       r.objectID,
		Directed:       r.Directed(),
		Evidence:       r.evidence,
		SourcePapers:   r.sourcePapers,
		Confidence:     r.confidence,
		EvidenceCount:  len(r.evidence),
		ContradictedBy: r.contradictedBy,
		Metadata:       r.metadata,
	})
}

// UnmarshalJSON rebuilds the relationship through NewRelationship. Derived
// fields present in the input (confidence, source_papers, evidence_count,
// directed) are ignored.
func (r *Relationship) UnmarshalJSON(b []byte) error {
	var raw relationshipJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	rel, err := NewRelationship(raw.Predicate, raw.SubjectID, raw.ObjectID, raw.Evidence, raw.Metadata, WithContradictedBy(raw.ContradictedBy...))
	if err != nil {
		return err
	}
	*r = rel
	return nil
}
