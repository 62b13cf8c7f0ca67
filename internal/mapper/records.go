// Package mapper converts between graph domain values and the flattened
// single-table records that storage backends read and write.
package mapper

import (
	"reflect"
)

// PersistedEntity is one row of the entities table. Pointer fields are
// nullable columns; list-valued fields hold JSON arrays.
type PersistedEntity struct {
	EntityID      string  `db:"entity_id"`
	EntityType    string  `db:"entity_type"`
	Name          string  `db:"name"`
	Source        string  `db:"source"`
	Synonyms      *string `db:"synonyms"`
	Abbreviations *string `db:"abbreviations"`
	Embedding     *string `db:"embedding"`
	Properties    *string `db:"properties"`

	UMLSID          *string `db:"umls_id"`
	MeshID          *string `db:"mesh_id"`
	ICD10Codes      *string `db:"icd10_codes"`
	DiseaseCategory *string `db:"disease_category"`

	Symbol     *string `db:"symbol"`
	HGNCID     *string `db:"hgnc_id"`
	Chromosome *string `db:"chromosome"`
	EntrezID   *string `db:"entrez_id"`

	RxNormID   *string `db:"rxnorm_id"`
	BrandNames *string `db:"brand_names"`
	DrugClass  *string `db:"drug_class"`
	Mechanism  *string `db:"mechanism"`

	UniProtID *string `db:"uniprot_id"`
	GeneID    *string `db:"gene_id"`
	Function  *string `db:"function"`
	Pathways  *string `db:"pathways"`

	VariantType *string `db:"variant_type"`
	Notation    *string `db:"notation"`
	Consequence *string `db:"consequence"`

	SeverityScale *string `db:"severity_scale"`

	LOINCCode       *string `db:"loinc_code"`
	MeasurementType *string `db:"measurement_type"`
	NormalRange     *string `db:"normal_range"`

	KEGGID          *string `db:"kegg_id"`
	ReactomeID      *string `db:"reactome_id"`
	PathwayCategory *string `db:"pathway_category"`
	GenesInvolved   *string `db:"genes_involved"`

	ProcedureType *string `db:"procedure_type"`
	Invasiveness  *string `db:"invasiveness"`

	IAOID        *string `db:"iao_id"`
	SEPIOID      *string `db:"sepio_id"`
	ProposedBy   *string `db:"proposed_by"`
	ProposedDate *string `db:"proposed_date"`
	Status       *string `db:"status"`
	Description  *string `db:"description"`
	Predicts     *string `db:"predicts"`

	OBIID         *string `db:"obi_id"`
	STATOID       *string `db:"stato_id"`
	DesignType    *string `db:"design_type"`
	EvidenceLevel *int64  `db:"evidence_level"`

	MethodType  *string `db:"method_type"`
	Assumptions *string `db:"assumptions"`

	SEPIOType     *string `db:"sepio_type"`
	ECOType       *string `db:"eco_type"`
	AssertionID   *string `db:"assertion_id"`
	Supports      *string `db:"supports"`
	Refutes       *string `db:"refutes"`
	EvidenceItems *string `db:"evidence_items"`
	Strength      *string `db:"strength"`
	Provenance    *string `db:"provenance"`
}

// PersistedRelationship is one row of the relationships table, keyed by
// (subject_id, predicate, object_id). Every metadata field promoted by some
// predicate has its own nullable column; the rest lives in Metadata.
type PersistedRelationship struct {
	SubjectID      string  `db:"subject_id"`
	Predicate      string  `db:"predicate"`
	ObjectID       string  `db:"object_id"`
	Confidence     float64 `db:"confidence"`
	EvidenceCount  int     `db:"evidence_count"`
	SourcePapers   string  `db:"source_papers"`
	Evidence       string  `db:"evidence"`
	ContradictedBy *string `db:"contradicted_by"`
	Metadata       *string `db:"metadata"`

	Efficacy      *string  `db:"efficacy"`
	ResponseRate  *float64 `db:"response_rate"`
	LineOfTherapy *string  `db:"line_of_therapy"`
	Indication    *string  `db:"indication"`

	Frequency *string `db:"frequency"`
	Onset     *string `db:"onset"`
	Severity  *string `db:"severity"`

	RiskRatio  *float64 `db:"risk_ratio"`
	Penetrance *float64 `db:"penetrance"`
	AgeOfOnset *string  `db:"age_of_onset"`
	Population *string  `db:"population"`

	AssociationType         *string  `db:"association_type"`
	Strength                *string  `db:"strength"`
	StatisticalSignificance *float64 `db:"statistical_significance"`

	InteractionType      *string `db:"interaction_type"`
	Mechanism            *string `db:"mechanism"`
	ClinicalSignificance *string `db:"clinical_significance"`

	TranscriptVariants *int64  `db:"transcript_variants"`
	TissueSpecificity  *string `db:"tissue_specificity"`

	Role             *string `db:"role"`
	RegulatoryEffect *string `db:"regulatory_effect"`

	Reason *string `db:"reason"`

	Sensitivity    *float64 `db:"sensitivity"`
	Specificity    *float64 `db:"specificity"`
	StandardOfCare *bool    `db:"standard_of_care"`

	Reversible *bool `db:"reversible"`

	Context   *string `db:"context"`
	Sentiment *string `db:"sentiment"`

	Section *string `db:"section"`

	Position *string `db:"position"`

	PublicationType *string `db:"publication_type"`

	PredictionType *string `db:"prediction_type"`
	Conditions     *string `db:"conditions"`
	Testable       *bool   `db:"testable"`

	RefutationStrength     *string `db:"refutation_strength"`
	AlternativeExplanation *string `db:"alternative_explanation"`
	Limitations            *string `db:"limitations"`

	TestOutcome   *string `db:"test_outcome"`
	Methodology   *string `db:"methodology"`
	StudyDesignID *string `db:"study_design_id"`

	EvidenceType *string  `db:"evidence_type"`
	ECOType      *string  `db:"eco_type"`
	QualityScore *float64 `db:"quality_score"`
}

// Column is a view of one record field, addressable for scanning.
type Column struct {
	Name string
	// Ptr points at the record field: *string for a required text column,
	// **string for a nullable one, and so on.
	Ptr any
}

func columnsOf(rec any) []Column {
	v := reflect.ValueOf(rec).Elem()
	t := v.Type()
	out := make([]Column, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name := t.Field(i).Tag.Get("db")
		if name == "" {
			continue
		}
		out = append(out, Column{Name: name, Ptr: v.Field(i).Addr().Interface()})
	}
	return out
}

func (r *PersistedEntity) Columns() []Column       { return columnsOf(r) }
func (r *PersistedRelationship) Columns() []Column { return columnsOf(r) }

func (c Column) field() reflect.Value { return reflect.ValueOf(c.Ptr).Elem() }

// Nullable reports whether the column may hold NULL.
func (c Column) Nullable() bool { return c.field().Kind() == reflect.Pointer }

// IsNull reports whether a nullable column currently holds NULL.
func (c Column) IsNull() bool {
	f := c.field()
	return f.Kind() == reflect.Pointer && f.IsNil()
}

// Kind is the scalar kind stored in the column.
func (c Column) Kind() reflect.Kind {
	t := c.field().Type()
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind()
}

// Value returns the column value for a driver: nil for NULL, otherwise the
// dereferenced scalar.
func (c Column) Value() any {
	f := c.field()
	if f.Kind() == reflect.Pointer {
		if f.IsNil() {
			return nil
		}
		return f.Elem().Interface()
	}
	return f.Interface()
}

// ColumnNames lists the column names of a record type in declaration order.
func EntityColumnNames() []string {
	return names((&PersistedEntity{}).Columns())
}

func RelationshipColumnNames() []string {
	return names((&PersistedRelationship{}).Columns())
}

func names(cols []Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}
