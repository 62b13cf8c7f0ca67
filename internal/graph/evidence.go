package graph

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Evidence is one citation-level justification for a relationship, traceable
// to a paragraph of a source paper. Relationships keep private copies, so an
// Evidence value never changes once attached.
type Evidence struct {
	PaperID          string           `json:"paper_id" validate:"required"`
	SectionType      SectionType      `json:"section_type" validate:"required"`
	ParagraphIdx     int              `json:"paragraph_idx" validate:"min=0"`
	SentenceIdx      *int             `json:"sentence_idx,omitempty" validate:"omitempty,min=0"`
	TextSpan         string           `json:"text_span,omitempty"`
	ExtractionMethod ExtractionMethod `json:"extraction_method" validate:"required"`
	Confidence       float64          `json:"confidence" validate:"gte=0,lte=1"`
	StudyType        StudyType        `json:"study_type,omitempty"`
	SampleSize       *int             `json:"sample_size,omitempty" validate:"omitempty,gt=0"`
	PublicationDate  string           `json:"publication_date,omitempty"`
	ECOType          string           `json:"eco_type,omitempty"`
	OBIStudyDesign   string           `json:"obi_study_design,omitempty"`
	STATOMethods     []string         `json:"stato_methods,omitempty"`
}

func (e Evidence) Validate() error {
	if err := checkStruct(e); err != nil {
		return err
	}
	if strings.TrimSpace(e.PaperID) == "" {
		return invalid("paper_id", "is required")
	}
	if !e.SectionType.IsValid() {
		return invalid("section_type", "unknown section %q", e.SectionType)
	}
	if !e.ExtractionMethod.IsValid() {
		return invalid("extraction_method", "unknown extraction method %q", e.ExtractionMethod)
	}
	if e.StudyType != "" && !e.StudyType.IsValid() {
		return invalid("study_type", "unknown study type %q", e.StudyType)
	}
	if e.PublicationDate != "" {
		if _, err := time.Parse(time.DateOnly, e.PublicationDate); err != nil {
			return invalid("publication_date", "must be YYYY-MM-DD")
		}
	}
	for i, m := range e.STATOMethods {
		if strings.TrimSpace(m) == "" {
			return invalid(fmt.Sprintf("stato_methods[%d]", i), "is blank")
		}
	}
	return nil
}

// Weight is the study-quality weight applied when aggregating confidence.
func (e Evidence) Weight() float64 {
	return e.StudyType.Weight()
}

func (e Evidence) clone() Evidence {
	if e.SentenceIdx != nil {
		v := *e.SentenceIdx
		e.SentenceIdx = &v
	}
	if e.SampleSize != nil {
		v := *e.SampleSize
		e.SampleSize = &v
	}
	if len(e.STATOMethods) == 0 {
		e.STATOMethods = nil
	} else {
		e.STATOMethods = append([]string(nil), e.STATOMethods...)
	}
	return e
}

func (e Evidence) equal(o Evidence) bool {
	if e.PaperID != o.PaperID || e.SectionType != o.SectionType || e.ParagraphIdx != o.ParagraphIdx ||
		e.TextSpan != o.TextSpan || e.ExtractionMethod != o.ExtractionMethod || e.Confidence != o.Confidence ||
		e.StudyType != o.StudyType || e.PublicationDate != o.PublicationDate || e.ECOType != o.ECOType ||
		e.OBIStudyDesign != o.OBIStudyDesign {
		return false
	}
	if !equalIntPtr(e.SentenceIdx, o.SentenceIdx) || !equalIntPtr(e.SampleSize, o.SampleSize) {
		return false
	}
	if len(e.STATOMethods) != len(o.STATOMethods) {
		return false
	}
	for i := range e.STATOMethods {
		if e.STATOMethods[i] != o.STATOMethods[i] {
			return false
		}
	}
	return true
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// UnmarshalJSON requires paragraph_idx to be present in the input.
func (e *Evidence) UnmarshalJSON(b []byte) error {
	type plain Evidence
	var probe struct {
		ParagraphIdx *int `json:"paragraph_idx"`
	}
	if err := json.Unmarshal(b, &probe); err != nil {
		return err
	}
	if probe.ParagraphIdx == nil {
		return invalid("paragraph_idx", "is required")
	}
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*e = Evidence(p)
	return nil
}
