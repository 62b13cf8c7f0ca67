package graph

import (
	"regexp"
	"strings"
)

var ws = regexp.MustCompile(`\s+`)

// Claim is one relationship proposed by an extraction model, before it has
// been turned into validated domain objects.
type Claim struct {
	SubjectType EntityType     `json:"subject_type"`
	SubjectName string         `json:"subject_name"`
	SubjectID   string         `json:"subject_id,omitempty"`
	Predicate   PredicateType  `json:"predicate"`
	ObjectType  EntityType     `json:"object_type"`
	ObjectName  string         `json:"object_name"`
	ObjectID    string         `json:"object_id,omitempty"`
	Evidence    string         `json:"evidence"`
	Confidence  float64        `json:"confidence"`
	StudyType   StudyType      `json:"study_type,omitempty"`
	SampleSize  *int           `json:"sample_size,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func CanonicalName(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.ReplaceAll(s, "_", " ")
	s = ws.ReplaceAllString(s, " ")
	return s
}

// ProvisionalID builds an entity ID for a mention that carries no canonical
// identifier, e.g. "drug:olaparib".
func ProvisionalID(t EntityType, name string) string {
	s := CanonicalName(name)
	s = strings.ReplaceAll(s, " ", "_")
	return string(t) + ":" + s
}

// NormalizeClaim canonicalises enum spellings and names. It reports false for
// claims that cannot become a relationship.
func NormalizeClaim(c Claim) (Claim, bool) {
	c.SubjectType = EntityType(strings.ToLower(strings.TrimSpace(string(c.SubjectType))))
	c.ObjectType = EntityType(strings.ToLower(strings.TrimSpace(string(c.ObjectType))))
	c.Predicate = PredicateType(strings.ToLower(strings.TrimSpace(string(c.Predicate))))
	c.StudyType = StudyType(strings.ToLower(strings.TrimSpace(string(c.StudyType))))
	c.SubjectName = strings.TrimSpace(ws.ReplaceAllString(c.SubjectName, " "))
	c.ObjectName = strings.TrimSpace(ws.ReplaceAllString(c.ObjectName, " "))
	c.SubjectID = strings.TrimSpace(c.SubjectID)
	c.ObjectID = strings.TrimSpace(c.ObjectID)
	c.Evidence = strings.TrimSpace(c.Evidence)
	if c.SubjectName == "" || c.ObjectName == "" || c.Evidence == "" {
		return Claim{}, false
	}
	if !c.SubjectType.IsValid() || !c.ObjectType.IsValid() || !c.Predicate.IsValid() {
		return Claim{}, false
	}
	if c.StudyType != "" && !c.StudyType.IsValid() {
		c.StudyType = ""
	}
	if c.SampleSize != nil && *c.SampleSize <= 0 {
		c.SampleSize = nil
	}
	c.Confidence = clamp01(c.Confidence)
	if c.SubjectID == "" {
		c.SubjectID = ProvisionalID(c.SubjectType, c.SubjectName)
	}
	if c.ObjectID == "" {
		c.ObjectID = ProvisionalID(c.ObjectType, c.ObjectName)
	}
	return c, true
}

func (c Claim) Key() string {
	return c.SubjectID + "|" + string(c.Predicate) + "|" + c.ObjectID
}

// Entities returns stub entities for both ends of the claim.
func (c Claim) Entities() (Entity, Entity, error) {
	subj, err := NewEntity(Entity{EntityID: c.SubjectID, Type: c.SubjectType, Name: c.SubjectName, Source: SourceExtracted})
	if err != nil {
		return Entity{}, Entity{}, prefixed("subject", err)
	}
	obj, err := NewEntity(Entity{EntityID: c.ObjectID, Type: c.ObjectType, Name: c.ObjectName, Source: SourceExtracted})
	if err != nil {
		return Entity{}, Entity{}, prefixed("object", err)
	}
	return subj, obj, nil
}

// ClaimLocation pins a claim to the paragraph it was extracted from.
type ClaimLocation struct {
	PaperID      string
	Section      SectionType
	ParagraphIdx int
	Method       ExtractionMethod
}

// Relationship converts the claim into a relationship with a single
// evidence item quoting the extracted span.
func (c Claim) Relationship(loc ClaimLocation) (Relationship, error) {
	method := loc.Method
	if method == "" {
		method = ExtractLLM
	}
	ev := Evidence{
		PaperID:          loc.PaperID,
		SectionType:      loc.Section,
		ParagraphIdx:     loc.ParagraphIdx,
		TextSpan:         c.Evidence,
		ExtractionMethod: method,
		Confidence:       c.Confidence,
		StudyType:        c.StudyType,
		SampleSize:       c.SampleSize,
	}
	return NewRelationship(c.Predicate, c.SubjectID, c.ObjectID, []Evidence{ev}, c.Metadata)
}
