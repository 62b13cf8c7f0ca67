package graph

import "strings"

type EntityType string

const (
	EntityDisease           EntityType = "disease"
	EntityGene              EntityType = "gene"
	EntityDrug              EntityType = "drug"
	EntityProtein           EntityType = "protein"
	EntityMutation          EntityType = "mutation"
	EntitySymptom           EntityType = "symptom"
	EntityBiomarker         EntityType = "biomarker"
	EntityPathway           EntityType = "pathway"
	EntityProcedure         EntityType = "procedure"
	EntityPaper             EntityType = "paper"
	EntityAuthor            EntityType = "author"
	EntityClinicalTrial     EntityType = "clinical_trial"
	EntityHypothesis        EntityType = "hypothesis"
	EntityStudyDesign       EntityType = "study_design"
	EntityStatisticalMethod EntityType = "statistical_method"
	EntityEvidenceLine      EntityType = "evidence_line"
)

var entityTypes = []EntityType{
	EntityDisease, EntityGene, EntityDrug, EntityProtein, EntityMutation, EntitySymptom,
	EntityBiomarker, EntityPathway, EntityProcedure, EntityPaper, EntityAuthor,
	EntityClinicalTrial, EntityHypothesis, EntityStudyDesign, EntityStatisticalMethod,
	EntityEvidenceLine,
}

// EntityTypes returns every entity kind in declaration order.
func EntityTypes() []EntityType {
	return append([]EntityType(nil), entityTypes...)
}

func (t EntityType) IsValid() bool {
	for _, x := range entityTypes {
		if x == t {
			return true
		}
	}
	return false
}

func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", invalid("entity_type", "unknown entity type %q", s)
	}
	return t, nil
}

type PredicateType string

const (
	// medical
	PredCauses             PredicateType = "causes"
	PredPrevents           PredicateType = "prevents"
	PredIncreasesRisk      PredicateType = "increases_risk"
	PredDecreasesRisk      PredicateType = "decreases_risk"
	PredTreats             PredicateType = "treats"
	PredManages            PredicateType = "manages"
	PredContraindicatedFor PredicateType = "contraindicated_for"
	PredSideEffect         PredicateType = "side_effect"

	// molecular
	PredBindsTo        PredicateType = "binds_to"
	PredInhibits       PredicateType = "inhibits"
	PredActivates      PredicateType = "activates"
	PredUpregulates    PredicateType = "upregulates"
	PredDownregulates  PredicateType = "downregulates"
	PredEncodes        PredicateType = "encodes"
	PredMetabolizes    PredicateType = "metabolizes"
	PredParticipatesIn PredicateType = "participates_in"

	// diagnostic
	PredDiagnoses   PredicateType = "diagnoses"
	PredDiagnosedBy PredicateType = "diagnosed_by"
	PredIndicates   PredicateType = "indicates"

	// temporal and association
	PredPrecedes       PredicateType = "precedes"
	PredCoOccursWith   PredicateType = "co_occurs_with"
	PredAssociatedWith PredicateType = "associated_with"
	PredInteractsWith  PredicateType = "interacts_with"
	PredLocatedIn      PredicateType = "located_in"
	PredAffects        PredicateType = "affects"

	// research and provenance
	PredAuthoredBy  PredicateType = "authored_by"
	PredCites       PredicateType = "cites"
	PredCitedBy     PredicateType = "cited_by"
	PredContradicts PredicateType = "contradicts"
	PredSupports    PredicateType = "supports"
	PredRefutes     PredicateType = "refutes"
	PredStudiedIn   PredicateType = "studied_in"
	PredPredicts    PredicateType = "predicts"
	PredTestedBy    PredicateType = "tested_by"
	PredPartOf      PredicateType = "part_of"
	PredGenerates   PredicateType = "generates"
)

var predicateTypes = []PredicateType{
	PredCauses, PredPrevents, PredIncreasesRisk, PredDecreasesRisk, PredTreats, PredManages,
	PredContraindicatedFor, PredSideEffect,
	PredBindsTo, PredInhibits, PredActivates, PredUpregulates, PredDownregulates, PredEncodes,
	PredMetabolizes, PredParticipatesIn,
	PredDiagnoses, PredDiagnosedBy, PredIndicates,
	PredPrecedes, PredCoOccursWith, PredAssociatedWith, PredInteractsWith, PredLocatedIn, PredAffects,
	PredAuthoredBy, PredCites, PredCitedBy, PredContradicts, PredSupports, PredRefutes,
	PredStudiedIn, PredPredicts, PredTestedBy, PredPartOf, PredGenerates,
}

func PredicateTypes() []PredicateType {
	return append([]PredicateType(nil), predicateTypes...)
}

func (p PredicateType) IsValid() bool {
	for _, x := range predicateTypes {
		if x == p {
			return true
		}
	}
	return false
}

// Directed reports whether subject and object order carries meaning.
func (p PredicateType) Directed() bool {
	switch p {
	case PredInteractsWith, PredCoOccursWith, PredAssociatedWith:
		return false
	default:
		return true
	}
}

// ParsePredicateType accepts both wire values and upper-case names such as "TREATS".
func ParsePredicateType(s string) (PredicateType, error) {
	p := PredicateType(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", invalid("predicate", "unknown predicate %q", s)
	}
	return p, nil
}

type StudyType string

const (
	StudyRCT           StudyType = "rct"
	StudyMetaAnalysis  StudyType = "meta_analysis"
	StudyCohort        StudyType = "cohort"
	StudyCaseControl   StudyType = "case_control"
	StudyObservational StudyType = "observational"
	StudyCaseReport    StudyType = "case_report"
	StudyReview        StudyType = "review"
)

// DefaultStudyWeight applies to evidence without a study type.
const DefaultStudyWeight = 0.5

var studyWeights = map[StudyType]float64{
	StudyRCT:           1.0,
	StudyMetaAnalysis:  0.95,
	StudyCohort:        0.8,
	StudyCaseControl:   0.7,
	StudyObservational: 0.6,
	StudyReview:        0.5,
	StudyCaseReport:    0.4,
}

func (s StudyType) IsValid() bool {
	_, ok := studyWeights[s]
	return ok
}

// Weight returns the quality weight of the study type, or DefaultStudyWeight
// when the type is empty or unknown.
func (s StudyType) Weight() float64 {
	if w, ok := studyWeights[s]; ok {
		return w
	}
	return DefaultStudyWeight
}

type SectionType string

const (
	SectionAbstract     SectionType = "abstract"
	SectionIntroduction SectionType = "introduction"
	SectionMethods      SectionType = "methods"
	SectionResults      SectionType = "results"
	SectionDiscussion   SectionType = "discussion"
	SectionConclusion   SectionType = "conclusion"
)

func (s SectionType) IsValid() bool {
	switch s {
	case SectionAbstract, SectionIntroduction, SectionMethods, SectionResults, SectionDiscussion, SectionConclusion:
		return true
	default:
		return false
	}
}

type ExtractionMethod string

const (
	ExtractManualCuration  ExtractionMethod = "manual_curation"
	ExtractLLM             ExtractionMethod = "llm_extraction"
	ExtractPatternMatching ExtractionMethod = "pattern_matching"
	ExtractTableParser     ExtractionMethod = "table_parser"
	ExtractSciSpacyNER     ExtractionMethod = "scispacy_ner"
	ExtractBioBERTNER      ExtractionMethod = "biobert_ner"
)

func (m ExtractionMethod) IsValid() bool {
	switch m {
	case ExtractManualCuration, ExtractLLM, ExtractPatternMatching, ExtractTableParser, ExtractSciSpacyNER, ExtractBioBERTNER:
		return true
	default:
		return false
	}
}

// EntitySource records where the canonical definition of an entity came from.
type EntitySource string

const (
	SourceUMLS      EntitySource = "umls"
	SourceMeSH      EntitySource = "mesh"
	SourceHGNC      EntitySource = "hgnc"
	SourceRxNorm    EntitySource = "rxnorm"
	SourceUniProt   EntitySource = "uniprot"
	SourceExtracted EntitySource = "extracted"
	SourceManual    EntitySource = "manual"
)

func (s EntitySource) IsValid() bool {
	switch s {
	case SourceUMLS, SourceMeSH, SourceHGNC, SourceRxNorm, SourceUniProt, SourceExtracted, SourceManual:
		return true
	default:
		return false
	}
}

// Ontology names an external identifier system indexed by the entity registry.
type Ontology string

const (
	OntologyUMLS    Ontology = "umls"
	OntologyMeSH    Ontology = "mesh"
	OntologyHGNC    Ontology = "hgnc"
	OntologyRxNorm  Ontology = "rxnorm"
	OntologyUniProt Ontology = "uniprot"
	OntologyLOINC   Ontology = "loinc"
)

func (o Ontology) IsValid() bool {
	switch o {
	case OntologyUMLS, OntologyMeSH, OntologyHGNC, OntologyRxNorm, OntologyUniProt, OntologyLOINC:
		return true
	default:
		return false
	}
}
