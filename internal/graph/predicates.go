package graph

// TreatsAttrs are the typed metadata of a treats claim. Zero values are omitted.
type TreatsAttrs struct {
	Efficacy      string
	ResponseRate  *float64
	LineOfTherapy string
	Indication    string
}

func (a TreatsAttrs) metadata() map[string]any {
	md := map[string]any{}
	putString(md, "efficacy", a.Efficacy)
	putFloat(md, "response_rate", a.ResponseRate)
	putString(md, "line_of_therapy", a.LineOfTherapy)
	putString(md, "indication", a.Indication)
	return md
}

func NewTreats(drugID, diseaseID string, evidence []Evidence, a TreatsAttrs, opts ...RelationshipOption) (Relationship, error) {
	return NewRelationship(PredTreats, drugID, diseaseID, evidence, a.metadata(), opts...)
}

type CausesAttrs struct {
	Frequency string
	Onset     string
	Severity  string
}

func NewCauses(subjectID, objectID string, evidence []Evidence, a CausesAttrs, opts ...RelationshipOption) (Relationship, error) {
	md := map[string]any{}
	putString(md, "frequency", a.Frequency)
	putString(md, "onset", a.Onset)
	putString(md, "severity", a.Severity)
	return NewRelationship(PredCauses, subjectID, objectID, evidence, md, opts...)
}

type IncreasesRiskAttrs struct {
	RiskRatio  *float64
	Penetrance *float64
	AgeOfOnset string
	Population string
}

func NewIncreasesRisk(subjectID, objectID string, evidence []Evidence, a IncreasesRiskAttrs, opts ...RelationshipOption) (Relationship, error) {
	md := map[string]any{}
	putFloat(md, "risk_ratio", a.RiskRatio)
	putFloat(md, "penetrance", a.Penetrance)
	putString(md, "age_of_onset", a.AgeOfOnset)
	putString(md, "population", a.Population)
	return NewRelationship(PredIncreasesRisk, subjectID, objectID, evidence, md, opts...)
}

func putString(md map[string]any, k, v string) {
	if v != "" {
		md[k] = v
	}
}

func putFloat(md map[string]any, k string, v *float64) {
	if v != nil {
		md[k] = *v
	}
}
