package graph

type DiseaseAttrs struct {
	UMLSID     string   `json:"umls_id,omitempty"`
	MeshID     string   `json:"mesh_id,omitempty"`
	ICD10Codes []string `json:"icd10_codes,omitempty"`
	Category   string   `json:"category,omitempty"`
}

type GeneAttrs struct {
	Symbol     string `json:"symbol,omitempty"`
	HGNCID     string `json:"hgnc_id,omitempty"`
	Chromosome string `json:"chromosome,omitempty"`
	EntrezID   string `json:"entrez_id,omitempty"`
}

type DrugAttrs struct {
	RxNormID   string   `json:"rxnorm_id,omitempty"`
	BrandNames []string `json:"brand_names,omitempty"`
	DrugClass  string   `json:"drug_class,omitempty"`
	Mechanism  string   `json:"mechanism,omitempty"`
}

type ProteinAttrs struct {
	UniProtID string   `json:"uniprot_id,omitempty"`
	GeneID    string   `json:"gene_id,omitempty"`
	Function  string   `json:"function,omitempty"`
	Pathways  []string `json:"pathways,omitempty"`
}

type MutationAttrs struct {
	GeneID      string `json:"gene_id,omitempty"`
	VariantType string `json:"variant_type,omitempty"`
	Notation    string `json:"notation,omitempty"`
	Consequence string `json:"consequence,omitempty"`
}

type SymptomAttrs struct {
	SeverityScale string `json:"severity_scale,omitempty"`
}

type BiomarkerAttrs struct {
	LOINCCode       string `json:"loinc_code,omitempty"`
	MeasurementType string `json:"measurement_type,omitempty"`
	NormalRange     string `json:"normal_range,omitempty"`
}

type PathwayAttrs struct {
	KEGGID        string   `json:"kegg_id,omitempty"`
	ReactomeID    string   `json:"reactome_id,omitempty"`
	Category      string   `json:"category,omitempty"`
	GenesInvolved []string `json:"genes_involved,omitempty"`
}

type ProcedureAttrs struct {
	ProcedureType string `json:"procedure_type,omitempty"`
	Invasiveness  string `json:"invasiveness,omitempty"`
}

type PaperAttrs struct {
	PMID            string `json:"pmid,omitempty"`
	DOI             string `json:"doi,omitempty"`
	Journal         string `json:"journal,omitempty"`
	PublicationDate string `json:"publication_date,omitempty"`
}

type AuthorAttrs struct {
	ORCID        string   `json:"orcid,omitempty"`
	Affiliations []string `json:"affiliations,omitempty"`
	HIndex       *int     `json:"h_index,omitempty" validate:"omitempty,min=0"`
}

type ClinicalTrialAttrs struct {
	NCTID        string `json:"nct_id,omitempty"`
	Phase        string `json:"phase,omitempty"`
	Status       string `json:"status,omitempty"`
	Intervention string `json:"intervention,omitempty"`
}

type HypothesisAttrs struct {
	IAOID        string   `json:"iao_id,omitempty"`
	SEPIOID      string   `json:"sepio_id,omitempty"`
	ProposedBy   string   `json:"proposed_by,omitempty"`
	ProposedDate string   `json:"proposed_date,omitempty"`
	Status       string   `json:"status,omitempty"`
	Description  string   `json:"description,omitempty"`
	Predicts     []string `json:"predicts,omitempty"`
}

type StudyDesignAttrs struct {
	OBIID         string `json:"obi_id,omitempty"`
	STATOID       string `json:"stato_id,omitempty"`
	DesignType    string `json:"design_type,omitempty"`
	Description   string `json:"description,omitempty"`
	EvidenceLevel *int   `json:"evidence_level,omitempty" validate:"omitempty,min=1,max=5"`
}

type StatisticalMethodAttrs struct {
	STATOID     string   `json:"stato_id,omitempty"`
	MethodType  string   `json:"method_type,omitempty"`
	Description string   `json:"description,omitempty"`
	Assumptions []string `json:"assumptions,omitempty"`
}

type EvidenceLineAttrs struct {
	SEPIOType     string   `json:"sepio_type,omitempty"`
	ECOType       string   `json:"eco_type,omitempty"`
	AssertionID   string   `json:"assertion_id,omitempty"`
	Supports      []string `json:"supports,omitempty"`
	Refutes       []string `json:"refutes,omitempty"`
	EvidenceItems []string `json:"evidence_items,omitempty"`
	Strength      string   `json:"strength,omitempty"`
	Provenance    string   `json:"provenance,omitempty"`
}

var (
	trialPhases        = []string{"I", "II", "III", "IV"}
	hypothesisStatuses = []string{"proposed", "supported", "controversial", "refuted"}
	strengthLevels     = []string{"strong", "moderate", "weak"}
)

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
