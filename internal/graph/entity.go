package graph

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Entity is a canonical medical concept. Type selects the kind, and exactly
// the attribute block matching Type is set; every other block stays nil.
type Entity struct {
	EntityID      string       `json:"entity_id" validate:"required"`
	Type          EntityType   `json:"entity_type" validate:"required"`
	Name          string       `json:"name" validate:"required"`
	Synonyms      []string     `json:"synonyms,omitempty"`
	Abbreviations []string     `json:"abbreviations,omitempty"`
	Embedding     []float64    `json:"embedding,omitempty"`
	Source        EntitySource `json:"source,omitempty"`

	Disease           *DiseaseAttrs           `json:"disease,omitempty"`
	Gene              *GeneAttrs              `json:"gene,omitempty"`
	Drug              *DrugAttrs              `json:"drug,omitempty"`
	Protein           *ProteinAttrs           `json:"protein,omitempty"`
	Mutation          *MutationAttrs          `json:"mutation,omitempty"`
	Symptom           *SymptomAttrs           `json:"symptom,omitempty"`
	Biomarker         *BiomarkerAttrs         `json:"biomarker,omitempty"`
	Pathway           *PathwayAttrs           `json:"pathway,omitempty"`
	Procedure         *ProcedureAttrs         `json:"procedure,omitempty"`
	Paper             *PaperAttrs             `json:"paper,omitempty"`
	Author            *AuthorAttrs            `json:"author,omitempty"`
	ClinicalTrial     *ClinicalTrialAttrs     `json:"clinical_trial,omitempty"`
	Hypothesis        *HypothesisAttrs        `json:"hypothesis,omitempty"`
	StudyDesign       *StudyDesignAttrs       `json:"study_design,omitempty"`
	StatisticalMethod *StatisticalMethodAttrs `json:"statistical_method,omitempty"`
	EvidenceLine      *EvidenceLineAttrs      `json:"evidence_line,omitempty"`
}

type EntityOption func(*Entity)

func WithSynonyms(s ...string) EntityOption {
	return func(e *Entity) { e.Synonyms = append(e.Synonyms, s...) }
}

func WithAbbreviations(s ...string) EntityOption {
	return func(e *Entity) { e.Abbreviations = append(e.Abbreviations, s...) }
}

func WithEmbedding(v []float64) EntityOption {
	return func(e *Entity) { e.Embedding = v }
}

func WithSource(s EntitySource) EntityOption {
	return func(e *Entity) { e.Source = s }
}

func build(e Entity, opts []EntityOption) (Entity, error) {
	for _, opt := range opts {
		opt(&e)
	}
	return NewEntity(e)
}

func NewDisease(id, name string, a DiseaseAttrs, opts ...EntityOption) (Entity, error) {
	return build(Entity{EntityID: id, Type: EntityDisease, Name: name, Disease: &a}, opts)
}

func NewGene(id, name string, a GeneAttrs, opts ...EntityOption) (Entity, error) {
	return build(Entity{EntityID: id, Type: EntityGene, Name: name, Gene: &a}, opts)
}

func NewDrug(id, name string, a DrugAttrs, opts ...EntityOption) (Entity, error) {
	return build(Entity{EntityID: id, Type: EntityDrug, Name: name, Drug: &a}, opts)
}

func NewProtein(id, name string, a ProteinAttrs, opts ...EntityOption) (Entity, error) {
	return build(Entity{EntityID: id, Type: EntityProtein, Name: name, Protein: &a}, opts)
}

func NewMutation(id, name string, a MutationAttrs, opts ...EntityOption) (Entity, error) {
	return build(Entity{EntityID: id, Type: EntityMutation, Name: name, Mutation: &a}, opts)
}

func NewSymptom(id, name string, a SymptomAttrs, opts ...EntityOption) (Entity, error) {
	return build(Entity{EntityID: id, Type: EntitySymptom, Name: name, Symptom: &a}, opts)
}

func NewBiomarker(id, name string, a BiomarkerAttrs, opts ...EntityOption) (Entity, error) {
	return build(Entity{EntityID: id, Type: EntityBiomarker, Name: name, Biomarker: &a}, opts)
}

func NewPathway(id, name string, a PathwayAttrs, opts ...EntityOption) (Entity, error) {
	return build(Entity{EntityID: id, Type: EntityPathway, Name: name, Pathway: &a}, opts)
}

func NewProcedure(id, name string, a ProcedureAttrs, opts ...EntityOption) (Entity, error) {
	return build(Entity{EntityID: id, Type: EntityProcedure, Name: name, Procedure: &a}, opts)
}

func NewPaper(id, title string, a PaperAttrs, opts ...EntityOption) (Entity, error) {
	return build(Entity{EntityID: id, Type: EntityPaper, Name: title, Paper: &a}, opts)
}

func NewAuthor(id, name string, a AuthorAttrs, opts ...EntityOption) (Entity, error) {
	return build(Entity{EntityID: id, Type: EntityAuthor, Name: name, Author: &a}, opts)
}

func NewClinicalTrial(id, title string, a ClinicalTrialAttrs, opts ...EntityOption) (Entity, error) {
	return build(Entity{EntityID: id, Type: EntityClinicalTrial, Name: title, ClinicalTrial: &a}, opts)
}

func NewHypothesis(id, name string, a HypothesisAttrs, opts ...EntityOption) (Entity, error) {
	return build(Entity{EntityID: id, Type: EntityHypothesis, Name: name, Hypothesis: &a}, opts)
}

func NewStudyDesign(id, name string, a StudyDesignAttrs, opts ...EntityOption) (Entity, error) {
	return build(Entity{EntityID: id, Type: EntityStudyDesign, Name: name, StudyDesign: &a}, opts)
}

func NewStatisticalMethod(id, name string, a StatisticalMethodAttrs, opts ...EntityOption) (Entity, error) {
	return build(Entity{EntityID: id, Type: EntityStatisticalMethod, Name: name, StatisticalMethod: &a}, opts)
}

func NewEvidenceLine(id, name string, a EvidenceLineAttrs, opts ...EntityOption) (Entity, error) {
	return build(Entity{EntityID: id, Type: EntityEvidenceLine, Name: name, EvidenceLine: &a}, opts)
}

// NewEntity returns a validated, canonical copy of e. Empty lists become nil,
// the attribute block for the kind is always allocated and an empty source
// defaults to SourceExtracted.
func NewEntity(e Entity) (Entity, error) {
	out := e.Clone()
	if out.Source == "" {
		out.Source = SourceExtracted
	}
	out.EntityID = strings.TrimSpace(out.EntityID)
	out.Name = strings.TrimSpace(out.Name)
	if err := out.ensureAttrs(); err != nil {
		return Entity{}, err
	}
	out.canonicalLists()
	if err := out.Validate(); err != nil {
		return Entity{}, err
	}
	return out, nil
}

// Validate checks the structural invariants of an entity without modifying it.
func (e Entity) Validate() error {
	if err := checkStruct(e); err != nil {
		return err
	}
	if strings.TrimSpace(e.EntityID) == "" {
		return invalid("entity_id", "is required")
	}
	if strings.TrimSpace(e.Name) == "" {
		return invalid("name", "is required")
	}
	if !e.Type.IsValid() {
		return invalid("entity_type", "unknown entity type %q", e.Type)
	}
	if e.Source != "" && !e.Source.IsValid() {
		return invalid("source", "unknown source %q", e.Source)
	}
	for _, k := range e.attrKinds() {
		if k != e.Type {
			return invalid("entity_type", "%s attributes set on a %s entity", k, e.Type)
		}
	}
	if err := checkList("synonyms", e.Synonyms); err != nil {
		return err
	}
	if err := checkList("abbreviations", e.Abbreviations); err != nil {
		return err
	}
	for i, v := range e.Embedding {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return invalid(fmt.Sprintf("embedding[%d]", i), "must be finite")
		}
	}
	return e.validateAttrs()
}

func (e Entity) validateAttrs() error {
	switch e.Type {
	case EntityDisease:
		if a := e.Disease; a != nil {
			return checkList("icd10_codes", a.ICD10Codes)
		}
	case EntityDrug:
		if a := e.Drug; a != nil {
			return checkList("brand_names", a.BrandNames)
		}
	case EntityProtein:
		if a := e.Protein; a != nil {
			return checkList("pathways", a.Pathways)
		}
	case EntityPathway:
		if a := e.Pathway; a != nil {
			return checkList("genes_involved", a.GenesInvolved)
		}
	case EntityPaper:
		if a := e.Paper; a != nil && a.PublicationDate != "" {
			return checkDate("publication_date", a.PublicationDate)
		}
	case EntityAuthor:
		if a := e.Author; a != nil {
			return checkList("affiliations", a.Affiliations)
		}
	case EntityClinicalTrial:
		if a := e.ClinicalTrial; a != nil && a.Phase != "" && !oneOf(a.Phase, trialPhases) {
			return invalid("phase", "must be one of %s", strings.Join(trialPhases, ","))
		}
	case EntityHypothesis:
		if a := e.Hypothesis; a != nil {
			if a.Status != "" && !oneOf(a.Status, hypothesisStatuses) {
				return invalid("status", "must be one of %s", strings.Join(hypothesisStatuses, ","))
			}
			if a.ProposedDate != "" {
				if err := checkDate("proposed_date", a.ProposedDate); err != nil {
					return err
				}
			}
			return checkList("predicts", a.Predicts)
		}
	case EntityStatisticalMethod:
		if a := e.StatisticalMethod; a != nil {
			return checkList("assumptions", a.Assumptions)
		}
	case EntityEvidenceLine:
		if a := e.EvidenceLine; a != nil {
			if a.Strength != "" && !oneOf(a.Strength, strengthLevels) {
				return invalid("strength", "must be one of %s", strings.Join(strengthLevels, ","))
			}
			for _, l := range []struct {
				name string
				v    []string
			}{{"supports", a.Supports}, {"refutes", a.Refutes}, {"evidence_items", a.EvidenceItems}} {
				if err := checkList(l.name, l.v); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func checkList(field string, vals []string) error {
	for i, v := range vals {
		if strings.TrimSpace(v) == "" {
			return invalid(fmt.Sprintf("%s[%d]", field, i), "is blank")
		}
	}
	return nil
}

func checkDate(field, v string) error {
	if _, err := time.Parse(time.DateOnly, v); err != nil {
		return invalid(field, "must be YYYY-MM-DD")
	}
	return nil
}

func (e Entity) attrKinds() []EntityType {
	var out []EntityType
	add := func(set bool, t EntityType) {
		if set {
			out = append(out, t)
		}
	}
	add(e.Disease != nil, EntityDisease)
	add(e.Gene != nil, EntityGene)
	add(e.Drug != nil, EntityDrug)
	add(e.Protein != nil, EntityProtein)
	add(e.Mutation != nil, EntityMutation)
	add(e.Symptom != nil, EntitySymptom)
	add(e.Biomarker != nil, EntityBiomarker)
	add(e.Pathway != nil, EntityPathway)
	add(e.Procedure != nil, EntityProcedure)
	add(e.Paper != nil, EntityPaper)
	add(e.Author != nil, EntityAuthor)
	add(e.ClinicalTrial != nil, EntityClinicalTrial)
	add(e.Hypothesis != nil, EntityHypothesis)
	add(e.StudyDesign != nil, EntityStudyDesign)
	add(e.StatisticalMethod != nil, EntityStatisticalMethod)
	add(e.EvidenceLine != nil, EntityEvidenceLine)
	return out
}

// ensureAttrs allocates the attribute block of the entity's own kind.
func (e *Entity) ensureAttrs() error {
	switch e.Type {
	case EntityDisease:
		if e.Disease == nil {
			e.Disease = &DiseaseAttrs{}
		}
	case EntityGene:
		if e.Gene == nil {
			e.Gene = &GeneAttrs{}
		}
	case EntityDrug:
		if e.Drug == nil {
			e.Drug = &DrugAttrs{}
		}
	case EntityProtein:
		if e.Protein == nil {
			e.Protein = &ProteinAttrs{}
		}
	case EntityMutation:
		if e.Mutation == nil {
			e.Mutation = &MutationAttrs{}
		}
	case EntitySymptom:
		if e.Symptom == nil {
			e.Symptom = &SymptomAttrs{}
		}
	case EntityBiomarker:
		if e.Biomarker == nil {
			e.Biomarker = &BiomarkerAttrs{}
		}
	case EntityPathway:
		if e.Pathway == nil {
			e.Pathway = &PathwayAttrs{}
		}
	case EntityProcedure:
		if e.Procedure == nil {
			e.Procedure = &ProcedureAttrs{}
		}
	case EntityPaper:
		if e.Paper == nil {
			e.Paper = &PaperAttrs{}
		}
	case EntityAuthor:
		if e.Author == nil {
			e.Author = &AuthorAttrs{}
		}
	case EntityClinicalTrial:
		if e.ClinicalTrial == nil {
			e.ClinicalTrial = &ClinicalTrialAttrs{}
		}
	case EntityHypothesis:
		if e.Hypothesis == nil {
			e.Hypothesis = &HypothesisAttrs{}
		}
	case EntityStudyDesign:
		if e.StudyDesign == nil {
			e.StudyDesign = &StudyDesignAttrs{}
		}
	case EntityStatisticalMethod:
		if e.StatisticalMethod == nil {
			e.StatisticalMethod = &StatisticalMethodAttrs{}
		}
	case EntityEvidenceLine:
		if e.EvidenceLine == nil {
			e.EvidenceLine = &EvidenceLineAttrs{}
		}
	default:
		return invalid("entity_type", "unknown entity type %q", e.Type)
	}
	return nil
}

func (e *Entity) canonicalLists() {
	e.Synonyms = nilIfEmpty(e.Synonyms)
	e.Abbreviations = nilIfEmpty(e.Abbreviations)
	if len(e.Embedding) == 0 {
		e.Embedding = nil
	}
	if a := e.Disease; a != nil {
		a.ICD10Codes = nilIfEmpty(a.ICD10Codes)
	}
	if a := e.Drug; a != nil {
		a.BrandNames = nilIfEmpty(a.BrandNames)
	}
	if a := e.Protein; a != nil {
		a.Pathways = nilIfEmpty(a.Pathways)
	}
	if a := e.Pathway; a != nil {
		a.GenesInvolved = nilIfEmpty(a.GenesInvolved)
	}
	if a := e.Author; a != nil {
		a.Affiliations = nilIfEmpty(a.Affiliations)
	}
	if a := e.Hypothesis; a != nil {
		a.Predicts = nilIfEmpty(a.Predicts)
	}
	if a := e.StatisticalMethod; a != nil {
		a.Assumptions = nilIfEmpty(a.Assumptions)
	}
	if a := e.EvidenceLine; a != nil {
		a.Supports = nilIfEmpty(a.Supports)
		a.Refutes = nilIfEmpty(a.Refutes)
		a.EvidenceItems = nilIfEmpty(a.EvidenceItems)
	}
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

func cloneIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Clone returns a deep copy sharing no slices or attribute blocks with e.
func (e Entity) Clone() Entity {
	e.Synonyms = cloneStrings(e.Synonyms)
	e.Abbreviations = cloneStrings(e.Abbreviations)
	if e.Embedding != nil {
		e.Embedding = append([]float64(nil), e.Embedding...)
	}
	if a := e.Disease; a != nil {
		c := *a
		c.ICD10Codes = cloneStrings(a.ICD10Codes)
		e.Disease = &c
	}
	if a := e.Gene; a != nil {
		c := *a
		e.Gene = &c
	}
	if a := e.Drug; a != nil {
		c := *a
		c.BrandNames = cloneStrings(a.BrandNames)
		e.Drug = &c
	}
	if a := e.Protein; a != nil {
		c := *a
		c.Pathways = cloneStrings(a.Pathways)
		e.Protein = &c
	}
	if a := e.Mutation; a != nil {
		c := *a
		e.Mutation = &c
	}
	if a := e.Symptom; a != nil {
		c := *a
		e.Symptom = &c
	}
	if a := e.Biomarker; a != nil {
		c := *a
		e.Biomarker = &c
	}
	if a := e.Pathway; a != nil {
		c := *a
		c.GenesInvolved = cloneStrings(a.GenesInvolved)
		e.Pathway = &c
	}
	if a := e.Procedure; a != nil {
		c := *a
		e.Procedure = &c
	}
	if a := e.Paper; a != nil {
		c := *a
		e.Paper = &c
	}
	if a := e.Author; a != nil {
		c := *a
		c.Affiliations = cloneStrings(a.Affiliations)
		c.HIndex = cloneIntPtr(a.HIndex)
		e.Author = &c
	}
	if a := e.ClinicalTrial; a != nil {
		c := *a
		e.ClinicalTrial = &c
	}
	if a := e.Hypothesis; a != nil {
		c := *a
		c.Predicts = cloneStrings(a.Predicts)
		e.Hypothesis = &c
	}
	if a := e.StudyDesign; a != nil {
		c := *a
		c.EvidenceLevel = cloneIntPtr(a.EvidenceLevel)
		e.StudyDesign = &c
	}
	if a := e.StatisticalMethod; a != nil {
		c := *a
		c.Assumptions = cloneStrings(a.Assumptions)
		e.StatisticalMethod = &c
	}
	if a := e.EvidenceLine; a != nil {
		c := *a
		c.Supports = cloneStrings(a.Supports)
		c.Refutes = cloneStrings(a.Refutes)
		c.EvidenceItems = cloneStrings(a.EvidenceItems)
		e.EvidenceLine = &c
	}
	return e
}

// OntologyIDs lists the external identifiers the registry indexes for e.
// Empty identifiers are omitted.
func (e Entity) OntologyIDs() map[Ontology]string {
	out := map[Ontology]string{}
	put := func(o Ontology, id string) {
		if id = strings.TrimSpace(id); id != "" {
			out[o] = id
		}
	}
	switch e.Type {
	case EntityDisease:
		if e.Disease != nil {
			put(OntologyUMLS, e.Disease.UMLSID)
			put(OntologyMeSH, e.Disease.MeshID)
		}
	case EntityGene:
		if e.Gene != nil {
			put(OntologyHGNC, e.Gene.HGNCID)
		}
	case EntityDrug:
		if e.Drug != nil {
			put(OntologyRxNorm, e.Drug.RxNormID)
		}
	case EntityProtein:
		if e.Protein != nil {
			put(OntologyUniProt, e.Protein.UniProtID)
		}
	case EntityBiomarker:
		if e.Biomarker != nil {
			put(OntologyLOINC, e.Biomarker.LOINCCode)
		}
	}
	return out
}

// EmbeddingText is the text fed to an embedding model for e: the name plus
// up to five synonyms and three abbreviations.
func (e Entity) EmbeddingText() string {
	parts := []string{e.Name}
	parts = append(parts, head(e.Synonyms, 5)...)
	parts = append(parts, head(e.Abbreviations, 3)...)
	return strings.Join(parts, " ")
}

func head(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
