package graph

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
)

type FieldKind int

const (
	KindString FieldKind = iota
	KindFloat
	KindInt
	KindBool
)

func (k FieldKind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	default:
		return "string"
	}
}

// MetaField is a typed metadata key promoted for a predicate.
type MetaField struct {
	Key  string
	Kind FieldKind
	Enum []string

	min, max         float64
	bounded          bool
	exclusiveMinimum bool
}

func str(key string, enum ...string) MetaField {
	return MetaField{Key: key, Kind: KindString, Enum: enum}
}

func unit(key string) MetaField {
	return MetaField{Key: key, Kind: KindFloat, min: 0, max: 1, bounded: true}
}

func positive(key string) MetaField {
	return MetaField{Key: key, Kind: KindFloat, min: 0, max: math.Inf(1), bounded: true, exclusiveMinimum: true}
}

func count(key string, lo float64) MetaField {
	return MetaField{Key: key, Kind: KindInt, min: lo, max: math.Inf(1), bounded: true}
}

func flag(key string) MetaField {
	return MetaField{Key: key, Kind: KindBool}
}

var predicateFields = map[PredicateType][]MetaField{
	PredTreats: {
		str("efficacy"), unit("response_rate"),
		str("line_of_therapy", "first-line", "second-line", "third-line", "adjuvant", "neoadjuvant", "maintenance"),
		str("indication"),
	},
	PredCauses: {
		str("frequency", "always", "often", "sometimes", "rarely"),
		str("onset", "immediate", "acute", "chronic", "delayed"),
		str("severity", "mild", "moderate", "severe"),
	},
	PredIncreasesRisk: {
		positive("risk_ratio"), unit("penetrance"), str("age_of_onset"), str("population"),
	},
	PredAssociatedWith: {
		str("association_type"), str("strength", "strong", "moderate", "weak"), unit("statistical_significance"),
	},
	PredInteractsWith: {
		str("interaction_type"), str("severity", "major", "moderate", "minor"), str("mechanism"), str("clinical_significance"),
	},
	PredEncodes: {
		count("transcript_variants", 1), str("tissue_specificity"),
	},
	PredParticipatesIn: {
		str("role"), str("regulatory_effect", "activates", "inhibits", "modulates"),
	},
	PredContraindicatedFor: {
		str("severity", "absolute", "relative"), str("reason"),
	},
	PredDiagnosedBy: {
		unit("sensitivity"), unit("specificity"), flag("standard_of_care"),
	},
	PredSideEffect: {
		str("frequency", "common", "uncommon", "rare"), str("severity", "mild", "moderate", "severe"), flag("reversible"),
	},
	PredCites: {
		str("context"), str("sentiment", "supports", "contradicts", "neutral"),
	},
	PredStudiedIn: {
		str("role", "primary_focus", "secondary_finding", "mentioned"), str("section"),
	},
	PredAuthoredBy: {
		str("position", "first", "last", "middle", "corresponding"),
	},
	PredPartOf: {
		str("publication_type"),
	},
	PredPredicts: {
		str("prediction_type", "positive", "negative", "conditional"), str("conditions"), flag("testable"),
	},
	PredRefutes: {
		str("refutation_strength", "strong", "moderate", "weak"), str("alternative_explanation"), str("limitations"),
	},
	PredTestedBy: {
		str("test_outcome", "supported", "refuted", "inconclusive"), str("methodology"), str("study_design_id"),
	},
	PredGenerates: {
		str("evidence_type"), str("eco_type"), unit("quality_score"),
	},
}

// PredicateFields returns the typed metadata keys promoted for p.
func PredicateFields(p PredicateType) []MetaField {
	return append([]MetaField(nil), predicateFields[p]...)
}

// PromotedKeys maps every promoted metadata key, across all predicates, to its kind.
func PromotedKeys() map[string]FieldKind {
	out := map[string]FieldKind{}
	for _, fields := range predicateFields {
		for _, f := range fields {
			out[f.Key] = f.Kind
		}
	}
	return out
}

// PromotedFor reports which predicates promote key.
func PromotedFor(key string) []PredicateType {
	var out []PredicateType
	for p, fields := range predicateFields {
		for _, f := range fields {
			if f.Key == key {
				out = append(out, p)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func promotedField(p PredicateType, key string) (MetaField, bool) {
	for _, f := range predicateFields[p] {
		if f.Key == key {
			return f, true
		}
	}
	return MetaField{}, false
}

// coerce converts v into the canonical Go type for f and checks its range.
func (f MetaField) coerce(v any) (any, error) {
	field := "metadata." + f.Key
	switch f.Kind {
	case KindString:
		s, ok := v.(string)
		if !ok {
			return nil, invalid(field, "must be a string")
		}
		s = strings.TrimSpace(s)
		if len(f.Enum) > 0 && !oneOf(s, f.Enum) {
			return nil, invalid(field, "must be one of %s", strings.Join(f.Enum, ","))
		}
		return s, nil
	case KindFloat:
		n, ok := toFloat(v)
		if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, invalid(field, "must be a finite number")
		}
		if err := f.checkRange(field, n); err != nil {
			return nil, err
		}
		return n, nil
	case KindInt:
		n, ok := toFloat(v)
		if !ok || n != math.Trunc(n) || math.IsInf(n, 0) {
			return nil, invalid(field, "must be an integer")
		}
		if n > math.MaxInt32 || n < math.MinInt32 {
			return nil, invalid(field, "out of integer range")
		}
		if err := f.checkRange(field, n); err != nil {
			return nil, err
		}
		return int(n), nil
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, invalid(field, "must be a boolean")
		}
		return b, nil
	}
	return nil, invalid(field, "unsupported kind %s", f.Kind)
}

func (f MetaField) checkRange(field string, n float64) error {
	if !f.bounded {
		return nil
	}
	if f.exclusiveMinimum && n <= f.min {
		return invalid(field, "must be > %g", f.min)
	}
	if n < f.min {
		return invalid(field, "must be >= %g", f.min)
	}
	if n > f.max {
		return invalid(field, "must be <= %g", f.max)
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// canonicalMetadata validates promoted keys for p and normalises every value
// so it survives a JSON round trip unchanged.
func canonicalMetadata(p PredicateType, md map[string]any) (map[string]any, error) {
	if len(md) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(md))
	seen := make(map[string]bool, len(md))
	for k, v := range md {
		key := strings.TrimSpace(k)
		if key == "" {
			return nil, invalid("metadata", "blank key")
		}
		if seen[key] {
			return nil, invalid("metadata."+key, "duplicate key after trimming")
		}
		seen[key] = true
		if v == nil {
			continue
		}
		if f, ok := promotedField(p, key); ok {
			c, err := f.coerce(v)
			if err != nil {
				return nil, err
			}
			out[key] = c
			continue
		}
		c, err := jsonNormalize(v)
		if err != nil {
			return nil, invalid("metadata."+key, "not JSON encodable: %v", err)
		}
		out[key] = c
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func jsonNormalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
