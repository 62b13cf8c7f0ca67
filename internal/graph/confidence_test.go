package graph

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func evidenceWith(study StudyType, conf float64) Evidence {
	return Evidence{
		PaperID:          "PMC1",
		SectionType:      SectionAbstract,
		ParagraphIdx:     0,
		ExtractionMethod: ExtractLLM,
		Confidence:       conf,
		StudyType:        study,
	}
}

func TestDeriveConfidenceSingleItemIsRescaled(t *testing.T) {
	got, err := DeriveConfidence([]Evidence{evidenceWith(StudyCaseReport, 0.9)})
	require.NoError(t, err)
	require.InDelta(t, 0.36, got, 1e-12)

	got, err = DeriveConfidence([]Evidence{evidenceWith("", 0.8)})
	require.NoError(t, err)
	require.InDelta(t, 0.4, got, 1e-12)
}

func TestDeriveConfidenceWithoutStudyTypes(t *testing.T) {
	evs := []Evidence{evidenceWith("", 0.2), evidenceWith("", 0.6), evidenceWith("", 1.0)}
	got, err := DeriveConfidence(evs)
	require.NoError(t, err)
	require.InDelta(t, DefaultStudyWeight*0.6, got, 1e-12)
}

func TestDeriveConfidenceMixedQuality(t *testing.T) {
	rct, _ := DeriveConfidence([]Evidence{evidenceWith(StudyRCT, 0.9)})
	cr, _ := DeriveConfidence([]Evidence{evidenceWith(StudyCaseReport, 0.9)})
	got, err := DeriveConfidence([]Evidence{evidenceWith(StudyRCT, 0.9), evidenceWith(StudyCaseReport, 0.9)})
	require.NoError(t, err)
	require.Greater(t, got, cr)
	require.Less(t, got, rct)
	require.InDelta(t, 0.63, got, 1e-12)
}

func TestDeriveConfidenceEmpty(t *testing.T) {
	_, err := DeriveConfidence(nil)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestDeriveConfidenceDeterministicAndBounded(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	studies := []StudyType{"", StudyRCT, StudyMetaAnalysis, StudyCohort, StudyCaseControl, StudyObservational, StudyCaseReport, StudyReview}
	for i := 0; i < 200; i++ {
		n := 1 + r.Intn(6)
		evs := make([]Evidence, n)
		for j := range evs {
			evs[j] = evidenceWith(studies[r.Intn(len(studies))], r.Float64())
		}
		a, err := DeriveConfidence(evs)
		require.NoError(t, err)
		b, _ := DeriveConfidence(evs)
		require.Equal(t, a, b)
		require.GreaterOrEqual(t, a, 0.0)
		require.LessOrEqual(t, a, 1.0)
	}
}

func TestDeriveConfidenceMonotoneInStudyQuality(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	studies := []StudyType{"", StudyRCT, StudyCohort, StudyCaseReport, StudyReview}
	for i := 0; i < 200; i++ {
		n := 1 + r.Intn(5)
		evs := make([]Evidence, n)
		for j := range evs {
			evs[j] = evidenceWith(studies[r.Intn(len(studies))], r.Float64())
		}
		k := r.Intn(n)
		evs[k].StudyType = StudyCaseReport
		before, _ := DeriveConfidence(evs)
		evs[k].StudyType = StudyRCT
		after, _ := DeriveConfidence(evs)
		require.GreaterOrEqual(t, after, before)
	}
}

func TestStudyWeights(t *testing.T) {
	require.Equal(t, 1.0, StudyRCT.Weight())
	require.Equal(t, 0.4, StudyCaseReport.Weight())
	require.Equal(t, DefaultStudyWeight, StudyType("").Weight())
	require.False(t, StudyType("anecdote").IsValid())
}
