package graph

import (
	"fmt"
	"strings"
)

const ClaimExtractionPromptTemplate = `You are a biomedical knowledge graph extractor.
Extract only relationships stated explicitly in the input paragraph.
Do not infer beyond the text.

Output STRICT JSON with this schema:
{
  "claims": [
    {
      "subject_type": "disease|gene|drug|protein|mutation|symptom|biomarker|pathway|procedure",
      "subject_name": "string",
      "subject_id": "canonical id if stated (UMLS, HGNC, RxNorm, UniProt), else empty",
      "predicate": "treats|causes|prevents|increases_risk|decreases_risk|inhibits|activates|binds_to|encodes|associated_with|interacts_with|side_effect|contraindicated_for|diagnosed_by|upregulates|downregulates",
      "object_type": "same set as subject_type",
      "object_name": "string",
      "object_id": "canonical id or empty",
      "evidence": "verbatim sentence from the paragraph",
      "confidence": 0.0,
      "study_type": "rct|meta_analysis|cohort|case_control|observational|case_report|review or empty",
      "sample_size": 0,
      "metadata": {}
    }
  ]
}

Rules:
- Emit at most 10 claims.
- Emit a claim only if the paragraph states it directly.
- confidence is your confidence in this extraction, in [0,1].
- study_type and sample_size describe the study reporting the finding; omit them when unknown.
- metadata may carry typed fields such as response_rate (0-1) for treats or risk_ratio for increases_risk.
- If there are no claims, return {"claims":[]}.

Example:
Input: "In a randomized trial of 302 patients, olaparib improved progression-free survival in BRCA-mutated breast cancer (response rate 0.6)."
Output: {"claims":[
{"subject_type":"drug","subject_name":"olaparib","predicate":"treats","object_type":"disease","object_name":"BRCA-mutated breast cancer","evidence":"olaparib improved progression-free survival in BRCA-mutated breast cancer","confidence":0.9,"study_type":"rct","sample_size":302,"metadata":{"response_rate":0.6}}
]}

Input: "Further work is needed."
Output: {"claims":[]}
`

func BuildClaimExtractionPrompt(paperTitle string, section SectionType, paragraph string) string {
	title := strings.TrimSpace(paperTitle)
	if title == "" {
		title = "Unknown Paper"
	}
	return ClaimExtractionPromptTemplate + "\n\nPaper: " + title + "\nSection: " + string(section) + "\n\nParagraph:\n" + paragraph
}

func PromptHash(promptVersion string) string {
	return fmt.Sprintf("claim_prompt_%s", strings.TrimSpace(promptVersion))
}
