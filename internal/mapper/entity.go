package mapper

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"medgraph/internal/graph"
)

// entityColumnOwners lists, for every kind-specific column, the entity kinds
// allowed to populate it. Columns absent from the map are shared by all kinds.
var entityColumnOwners = map[string][]graph.EntityType{
	"properties": {graph.EntityPaper, graph.EntityAuthor, graph.EntityClinicalTrial},

	"umls_id":          {graph.EntityDisease},
	"mesh_id":          {graph.EntityDisease},
	"icd10_codes":      {graph.EntityDisease},
	"disease_category": {graph.EntityDisease},

	"symbol":     {graph.EntityGene},
	"hgnc_id":    {graph.EntityGene},
	"chromosome": {graph.EntityGene},
	"entrez_id":  {graph.EntityGene},

	"rxnorm_id":   {graph.EntityDrug},
	"brand_names": {graph.EntityDrug},
	"drug_class":  {graph.EntityDrug},
	"mechanism":   {graph.EntityDrug},

	"uniprot_id": {graph.EntityProtein},
	"gene_id":    {graph.EntityProtein, graph.EntityMutation},
	"function":   {graph.EntityProtein},
	"pathways":   {graph.EntityProtein},

	"variant_type": {graph.EntityMutation},
	"notation":     {graph.EntityMutation},
	"consequence":  {graph.EntityMutation},

	"severity_scale": {graph.EntitySymptom},

	"loinc_code":       {graph.EntityBiomarker},
	"measurement_type": {graph.EntityBiomarker},
	"normal_range":     {graph.EntityBiomarker},

	"kegg_id":          {graph.EntityPathway},
	"reactome_id":      {graph.EntityPathway},
	"pathway_category": {graph.EntityPathway},
	"genes_involved":   {graph.EntityPathway},

	"procedure_type": {graph.EntityProcedure},
	"invasiveness":   {graph.EntityProcedure},

	"iao_id":        {graph.EntityHypothesis},
	"sepio_id":      {graph.EntityHypothesis},
	"proposed_by":   {graph.EntityHypothesis},
	"proposed_date": {graph.EntityHypothesis},
	"status":        {graph.EntityHypothesis},
	"predicts":      {graph.EntityHypothesis},
	"description":   {graph.EntityHypothesis, graph.EntityStudyDesign, graph.EntityStatisticalMethod},

	"obi_id":         {graph.EntityStudyDesign},
	"stato_id":       {graph.EntityStudyDesign, graph.EntityStatisticalMethod},
	"design_type":    {graph.EntityStudyDesign},
	"evidence_level": {graph.EntityStudyDesign},

	"method_type": {graph.EntityStatisticalMethod},
	"assumptions": {graph.EntityStatisticalMethod},

	"sepio_type":     {graph.EntityEvidenceLine},
	"eco_type":       {graph.EntityEvidenceLine},
	"assertion_id":   {graph.EntityEvidenceLine},
	"supports":       {graph.EntityEvidenceLine},
	"refutes":        {graph.EntityEvidenceLine},
	"evidence_items": {graph.EntityEvidenceLine},
	"strength":       {graph.EntityEvidenceLine},
	"provenance":     {graph.EntityEvidenceLine},
}

// EntityColumnOwners reports which kinds may populate column. A nil result
// means the column is shared by every kind.
func EntityColumnOwners(column string) []graph.EntityType {
	return slices.Clone(entityColumnOwners[column])
}

// EntityToPersistence flattens e into a single-table record. Only the columns
// of e's kind are populated; paper, author and clinical trial attributes go to
// the properties JSON column.
func EntityToPersistence(e graph.Entity) (PersistedEntity, error) {
	ne, err := graph.NewEntity(e)
	if err != nil {
		return PersistedEntity{}, invalidRecord(entityErr, e.EntityID, err)
	}
	r := PersistedEntity{
		EntityID:   ne.EntityID,
		EntityType: string(ne.Type),
		Name:       ne.Name,
		Source:     string(ne.Source),
	}
	enc := encoder{key: ne.EntityID}
	r.Synonyms = enc.list("synonyms", ne.Synonyms)
	r.Abbreviations = enc.list("abbreviations", ne.Abbreviations)
	r.Embedding = enc.floats("embedding", ne.Embedding)

	switch ne.Type {
	case graph.EntityDisease:
		a := ne.Disease
		r.UMLSID, r.MeshID, r.DiseaseCategory = nullable(a.UMLSID), nullable(a.MeshID), nullable(a.Category)
		r.ICD10Codes = enc.list("icd10_codes", a.ICD10Codes)
	case graph.EntityGene:
		a := ne.Gene
		r.Symbol, r.HGNCID = nullable(a.Symbol), nullable(a.HGNCID)
		r.Chromosome, r.EntrezID = nullable(a.Chromosome), nullable(a.EntrezID)
	case graph.EntityDrug:
		a := ne.Drug
		r.RxNormID, r.DrugClass, r.Mechanism = nullable(a.RxNormID), nullable(a.DrugClass), nullable(a.Mechanism)
		r.BrandNames = enc.list("brand_names", a.BrandNames)
	case graph.EntityProtein:
		a := ne.Protein
		r.UniProtID, r.GeneID, r.Function = nullable(a.UniProtID), nullable(a.GeneID), nullable(a.Function)
		r.Pathways = enc.list("pathways", a.Pathways)
	case graph.EntityMutation:
		a := ne.Mutation
		r.GeneID, r.VariantType = nullable(a.GeneID), nullable(a.VariantType)
		r.Notation, r.Consequence = nullable(a.Notation), nullable(a.Consequence)
	case graph.EntitySymptom:
		r.SeverityScale = nullable(ne.Symptom.SeverityScale)
	case graph.EntityBiomarker:
		a := ne.Biomarker
		r.LOINCCode, r.MeasurementType, r.NormalRange = nullable(a.LOINCCode), nullable(a.MeasurementType), nullable(a.NormalRange)
	case graph.EntityPathway:
		a := ne.Pathway
		r.KEGGID, r.ReactomeID, r.PathwayCategory = nullable(a.KEGGID), nullable(a.ReactomeID), nullable(a.Category)
		r.GenesInvolved = enc.list("genes_involved", a.GenesInvolved)
	case graph.EntityProcedure:
		r.ProcedureType, r.Invasiveness = nullable(ne.Procedure.ProcedureType), nullable(ne.Procedure.Invasiveness)
	case graph.EntityPaper:
		r.Properties = enc.object("properties", ne.Paper)
	case graph.EntityAuthor:
		r.Properties = enc.object("properties", ne.Author)
	case graph.EntityClinicalTrial:
		r.Properties = enc.object("properties", ne.ClinicalTrial)
	case graph.EntityHypothesis:
		a := ne.Hypothesis
		r.IAOID, r.SEPIOID, r.ProposedBy = nullable(a.IAOID), nullable(a.SEPIOID), nullable(a.ProposedBy)
		r.ProposedDate, r.Status, r.Description = nullable(a.ProposedDate), nullable(a.Status), nullable(a.Description)
		r.Predicts = enc.list("predicts", a.Predicts)
	case graph.EntityStudyDesign:
		a := ne.StudyDesign
		r.OBIID, r.STATOID, r.DesignType, r.Description = nullable(a.OBIID), nullable(a.STATOID), nullable(a.DesignType), nullable(a.Description)
		if a.EvidenceLevel != nil {
			lvl := int64(*a.EvidenceLevel)
			r.EvidenceLevel = &lvl
		}
	case graph.EntityStatisticalMethod:
		a := ne.StatisticalMethod
		r.STATOID, r.MethodType, r.Description = nullable(a.STATOID), nullable(a.MethodType), nullable(a.Description)
		r.Assumptions = enc.list("assumptions", a.Assumptions)
	case graph.EntityEvidenceLine:
		a := ne.EvidenceLine
		r.SEPIOType, r.ECOType, r.AssertionID = nullable(a.SEPIOType), nullable(a.ECOType), nullable(a.AssertionID)
		r.Strength, r.Provenance = nullable(a.Strength), nullable(a.Provenance)
		r.Supports = enc.list("supports", a.Supports)
		r.Refutes = enc.list("refutes", a.Refutes)
		r.EvidenceItems = enc.list("evidence_items", a.EvidenceItems)
	}
	if enc.err != nil {
		return PersistedEntity{}, enc.err
	}
	return r, nil
}

// EntityToDomain rebuilds the entity stored in r. It fails with a MappingError
// on an unknown entity_type, a missing required column, a populated column
// that belongs to another kind or a malformed JSON column.
func EntityToDomain(r PersistedEntity) (graph.Entity, error) {
	key := r.EntityID
	t := graph.EntityType(r.EntityType)
	if !t.IsValid() {
		return graph.Entity{}, entityErr(key, "entity_type", fmt.Sprintf("unknown discriminator %q", r.EntityType), nil)
	}
	if strings.TrimSpace(r.EntityID) == "" {
		return graph.Entity{}, entityErr(key, "entity_id", "required field is null", nil)
	}
	if strings.TrimSpace(r.Name) == "" {
		return graph.Entity{}, entityErr(key, "name", "required field is null", nil)
	}
	for _, c := range r.Columns() {
		owners, scoped := entityColumnOwners[c.Name]
		if !scoped || c.IsNull() || slices.Contains(owners, t) {
			continue
		}
		return graph.Entity{}, entityErr(key, c.Name, fmt.Sprintf("column belongs to %s, record is %s", kindList(owners), t), nil)
	}

	dec := decoder{key: key}
	e := graph.Entity{
		EntityID:      r.EntityID,
		Type:          t,
		Name:          r.Name,
		Source:        graph.EntitySource(r.Source),
		Synonyms:      dec.list("synonyms", r.Synonyms),
		Abbreviations: dec.list("abbreviations", r.Abbreviations),
		Embedding:     dec.floats("embedding", r.Embedding),
	}
	switch t {
	case graph.EntityDisease:
		e.Disease = &graph.DiseaseAttrs{
			UMLSID: deref(r.UMLSID), MeshID: deref(r.MeshID), Category: deref(r.DiseaseCategory),
			ICD10Codes: dec.list("icd10_codes", r.ICD10Codes),
		}
	case graph.EntityGene:
		e.Gene = &graph.GeneAttrs{
			Symbol: deref(r.Symbol), HGNCID: deref(r.HGNCID), Chromosome: deref(r.Chromosome), EntrezID: deref(r.EntrezID),
		}
	case graph.EntityDrug:
		e.Drug = &graph.DrugAttrs{
			RxNormID: deref(r.RxNormID), DrugClass: deref(r.DrugClass), Mechanism: deref(r.Mechanism),
			BrandNames: dec.list("brand_names", r.BrandNames),
		}
	case graph.EntityProtein:
		e.Protein = &graph.ProteinAttrs{
			UniProtID: deref(r.UniProtID), GeneID: deref(r.GeneID), Function: deref(r.Function),
			Pathways: dec.list("pathways", r.Pathways),
		}
	case graph.EntityMutation:
		e.Mutation = &graph.MutationAttrs{
			GeneID: deref(r.GeneID), VariantType: deref(r.VariantType), Notation: deref(r.Notation), Consequence: deref(r.Consequence),
		}
	case graph.EntitySymptom:
		e.Symptom = &graph.SymptomAttrs{SeverityScale: deref(r.SeverityScale)}
	case graph.EntityBiomarker:
		e.Biomarker = &graph.BiomarkerAttrs{
			LOINCCode: deref(r.LOINCCode), MeasurementType: deref(r.MeasurementType), NormalRange: deref(r.NormalRange),
		}
	case graph.EntityPathway:
		e.Pathway = &graph.PathwayAttrs{
			KEGGID: deref(r.KEGGID), ReactomeID: deref(r.ReactomeID), Category: deref(r.PathwayCategory),
			GenesInvolved: dec.list("genes_involved", r.GenesInvolved),
		}
	case graph.EntityProcedure:
		e.Procedure = &graph.ProcedureAttrs{ProcedureType: deref(r.ProcedureType), Invasiveness: deref(r.Invasiveness)}
	case graph.EntityPaper:
		e.Paper = &graph.PaperAttrs{}
		dec.object("properties", r.Properties, e.Paper)
	case graph.EntityAuthor:
		e.Author = &graph.AuthorAttrs{}
		dec.object("properties", r.Properties, e.Author)
	case graph.EntityClinicalTrial:
		e.ClinicalTrial = &graph.ClinicalTrialAttrs{}
		dec.object("properties", r.Properties, e.ClinicalTrial)
	case graph.EntityHypothesis:
		e.Hypothesis = &graph.HypothesisAttrs{
			IAOID: deref(r.IAOID), SEPIOID: deref(r.SEPIOID), ProposedBy: deref(r.ProposedBy),
			ProposedDate: deref(r.ProposedDate), Status: deref(r.Status), Description: deref(r.Description),
			Predicts: dec.list("predicts", r.Predicts),
		}
	case graph.EntityStudyDesign:
		a := &graph.StudyDesignAttrs{
			OBIID: deref(r.OBIID), STATOID: deref(r.STATOID), DesignType: deref(r.DesignType), Description: deref(r.Description),
		}
		if r.EvidenceLevel != nil {
			lvl := int(*r.EvidenceLevel)
			a.EvidenceLevel = &lvl
		}
		e.StudyDesign = a
	case graph.EntityStatisticalMethod:
		e.StatisticalMethod = &graph.StatisticalMethodAttrs{
			STATOID: deref(r.STATOID), MethodType: deref(r.MethodType), Description: deref(r.Description),
			Assumptions: dec.list("assumptions", r.Assumptions),
		}
	case graph.EntityEvidenceLine:
		e.EvidenceLine = &graph.EvidenceLineAttrs{
			SEPIOType: deref(r.SEPIOType), ECOType: deref(r.ECOType), AssertionID: deref(r.AssertionID),
			Strength: deref(r.Strength), Provenance: deref(r.Provenance),
			Supports:      dec.list("supports", r.Supports),
			Refutes:       dec.list("refutes", r.Refutes),
			EvidenceItems: dec.list("evidence_items", r.EvidenceItems),
		}
	}
	if dec.err != nil {
		return graph.Entity{}, dec.err
	}
	out, err := graph.NewEntity(e)
	if err != nil {
		return graph.Entity{}, invalidRecord(entityErr, key, err)
	}
	return out, nil
}

func kindList(ts []graph.EntityType) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = string(t)
	}
	return strings.Join(parts, "|")
}

// encoder and decoder keep the first JSON column failure so the kind
// switches above stay flat.
type encoder struct {
	key string
	err error
}

func (c *encoder) list(field string, v []string) *string {
	if c.err != nil {
		return nil
	}
	s, err := jsonList(v)
	if err != nil {
		c.err = entityErr(c.key, field, "cannot encode column", err)
	}
	return s
}

func (c *encoder) floats(field string, v []float64) *string {
	if c.err != nil {
		return nil
	}
	s, err := jsonList(v)
	if err != nil {
		c.err = entityErr(c.key, field, "cannot encode column", err)
	}
	return s
}

func (c *encoder) object(field string, v any) *string {
	if c.err != nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		c.err = entityErr(c.key, field, "cannot encode column", err)
		return nil
	}
	if string(b) == "{}" {
		return nil
	}
	s := string(b)
	return &s
}

type decoder struct {
	key string
	err error
}

func (d *decoder) list(field string, p *string) []string {
	if d.err != nil {
		return nil
	}
	v, err := parseList[string](p)
	if err != nil {
		d.err = entityErr(d.key, field, "malformed JSON column", err)
	}
	return v
}

func (d *decoder) floats(field string, p *string) []float64 {
	if d.err != nil {
		return nil
	}
	v, err := parseList[float64](p)
	if err != nil {
		d.err = entityErr(d.key, field, "malformed JSON column", err)
	}
	return v
}

func (d *decoder) object(field string, p *string, dst any) {
	if d.err != nil || p == nil || strings.TrimSpace(*p) == "" {
		return
	}
	if err := json.Unmarshal([]byte(*p), dst); err != nil {
		d.err = entityErr(d.key, field, "malformed JSON column", err)
	}
}
