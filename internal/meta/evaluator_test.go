package meta

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dev.veridict.agent/internal/models"
)

func usableReports(n int) []models.SignalReport {
	out := make([]models.SignalReport, n)
	ids := []string{"source_tracker", "textual", "visual"}
	for i := range out {
		out[i] = models.SignalReport{UnitID: ids[i%len(ids)], Confidence: 0.7}
	}
	return out
}

func cleanDebate() models.DebateRecord {
	return models.DebateRecord{
		Advocacy:   []models.Argument{{Strength: 0.7}},
		Challenges: []models.Argument{{Strength: 0}},
		Rebuttals:  []models.Argument{{Strength: 0}},
	}
}

func TestEvaluate_ConsistentVerdictAccepted(t *testing.T) {
	e := New()
	v := models.Verdict{
		Verdict:    models.VerdictReal,
		Confidence: 0.7,
		Categories: models.CategoryScores{models.CategoryLowQuality: 20},
	}
	eval := e.Evaluate(v, usableReports(3), cleanDebate())

	assert.Equal(t, models.RecommendAccept, eval.Recommendation)
	assert.Empty(t, eval.Flags)
	assert.Equal(t, v.Confidence, eval.AdjustedConfidence)
}

func TestEvaluate_SparseEvidenceFlag(t *testing.T) {
	e := New()
	v := models.Verdict{Verdict: models.VerdictReal, Confidence: 0.92}
	eval := e.Evaluate(v, usableReports(1), cleanDebate())

	assert.Contains(t, eval.Flags, models.FlagSparseEvidence)
	assert.Equal(t, models.RecommendReview, eval.Recommendation)
	assert.Less(t, eval.AdjustedConfidence, v.Confidence)
}

func TestEvaluate_FactCheckExemptFromSparseFlag(t *testing.T) {
	e := New()
	v := models.Verdict{Verdict: models.VerdictFake, Confidence: 0.92, FactCheckUsed: true}
	eval := e.Evaluate(v, usableReports(1), cleanDebate())
	assert.NotContains(t, eval.Flags, models.FlagSparseEvidence)
}

func TestEvaluate_DominantCategoryContradictionRejected(t *testing.T) {
	e := New()
	// REAL verdict with dominant disinformation at 85 is a direct
	// contradiction regardless of how many other flags fired.
	v := models.Verdict{
		Verdict:    models.VerdictReal,
		Confidence: 0.6,
		Categories: models.CategoryScores{
			models.CategoryDisinformation: 85,
			models.CategoryClickbait:      30,
		},
	}
	eval := e.Evaluate(v, usableReports(3), cleanDebate())

	assert.Contains(t, eval.Flags, models.FlagCategoryConflict)
	assert.Equal(t, models.RecommendReject, eval.Recommendation)
}

func TestEvaluate_SatireVsFakeConflict(t *testing.T) {
	e := New()
	v := models.Verdict{
		Verdict:    models.VerdictFake,
		Confidence: 0.7,
		Categories: models.CategoryScores{
			models.CategorySatire:         90,
			models.CategoryDisinformation: 40,
		},
	}
	eval := e.Evaluate(v, usableReports(3), cleanDebate())
	assert.Contains(t, eval.Flags, models.FlagCategoryConflict)
	assert.Equal(t, models.RecommendReject, eval.Recommendation)
}

func TestEvaluate_UnresolvedChallengeAgainstReal(t *testing.T) {
	e := New()
	record := models.DebateRecord{
		Advocacy:   []models.Argument{{Strength: 0.3}},
		Challenges: []models.Argument{{Strength: 0.8}},
		Rebuttals:  []models.Argument{{Strength: 0}},
	}
	v := models.Verdict{Verdict: models.VerdictReal, Confidence: 0.6}
	eval := e.Evaluate(v, usableReports(3), record)

	assert.Contains(t, eval.Flags, models.FlagUnresolvedChallenge)
	assert.Equal(t, models.RecommendReview, eval.Recommendation)
}

func TestEvaluate_WeakChallengeAgainstZeroAdvocacy(t *testing.T) {
	e := New()
	// A fact-check-forced REAL can stand on no advocacy at all; even a
	// mild unanswered challenge then exceeds it and must be flagged.
	record := models.DebateRecord{
		Advocacy:   []models.Argument{{Strength: 0}},
		Challenges: []models.Argument{{Strength: 0.1}},
		Rebuttals:  []models.Argument{{Strength: 0}},
	}
	v := models.Verdict{Verdict: models.VerdictReal, Confidence: 0.92, FactCheckUsed: true}
	eval := e.Evaluate(v, usableReports(3), record)

	assert.Contains(t, eval.Flags, models.FlagUnresolvedChallenge)
}

func TestEvaluate_TwoFlagsReject(t *testing.T) {
	e := New()
	record := models.DebateRecord{
		Advocacy:   []models.Argument{{Strength: 0.2}},
		Challenges: []models.Argument{{Strength: 0.9}},
		Rebuttals:  []models.Argument{{Strength: 0}},
	}
	v := models.Verdict{Verdict: models.VerdictReal, Confidence: 0.95}
	eval := e.Evaluate(v, usableReports(1), record)

	assert.GreaterOrEqual(t, len(eval.Flags), 2)
	assert.Equal(t, models.RecommendReject, eval.Recommendation)
}

func TestEvaluate_NeverRewritesVerdict(t *testing.T) {
	e := New()
	v := models.Verdict{
		Verdict:    models.VerdictReal,
		Confidence: 0.6,
		Categories: models.CategoryScores{models.CategoryDisinformation: 90},
	}
	_ = e.Evaluate(v, usableReports(3), cleanDebate())
	// The evaluation is advisory; the verdict value is untouched.
	assert.Equal(t, models.VerdictReal, v.Verdict)
	assert.Equal(t, 0.6, v.Confidence)
}
