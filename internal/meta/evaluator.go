// Package meta audits a finished verdict for internal inconsistencies.
// The evaluator never rewrites the verdict; it attaches flags, an adjusted
// confidence and a recommendation for the caller to act on.
package meta

import (
	"fmt"
	"strings"

	"dev.veridict.agent/internal/models"
)

// Thresholds for the consistency checks. Category scores run 0-100.
const (
	sparseConfidence = 0.8
	minUsableReports = 2
	conflictCategory = 70.0
)

type Evaluator struct{}

func New() *Evaluator { return &Evaluator{} }

// Evaluate cross-checks the verdict against the evidence that produced
// it. Each failed check raises a flag and shaves the adjusted confidence.
// Recommendation policy: no flags means accept, one flag means review,
// and two or more flags, or a direct contradiction between the verdict
// and the dominant category, mean reject. The verdict itself is retained
// either way; reject only marks it non-authoritative.
func (e *Evaluator) Evaluate(v models.Verdict, reports []models.SignalReport, record models.DebateRecord) models.MetaEvaluation {
	eval := models.MetaEvaluation{AdjustedConfidence: v.Confidence}
	var notes []string
	directContradiction := false

	usable := 0
	for _, r := range reports {
		if !r.Degenerate() {
			usable++
		}
	}
	if v.Confidence >= sparseConfidence && usable < minUsableReports && !v.FactCheckUsed {
		eval.Flags = append(eval.Flags, models.FlagSparseEvidence)
		eval.AdjustedConfidence *= 0.7
		notes = append(notes, fmt.Sprintf("high confidence %.2f rests on %d usable report(s)", v.Confidence, usable))
	}

	if cat, score := conflictingCategory(v); cat != "" {
		eval.Flags = append(eval.Flags, models.FlagCategoryConflict)
		eval.AdjustedConfidence *= 0.75
		notes = append(notes, fmt.Sprintf("verdict %s conflicts with %s score %.0f", v.Verdict, cat, score))
		if dom, _ := v.Categories.Dominant(); dom == cat {
			directContradiction = true
		}
	}

	if v.Verdict == models.VerdictReal {
		if sev := worstUnresolved(record); sev > record.AdvocacyStrength() {
			eval.Flags = append(eval.Flags, models.FlagUnresolvedChallenge)
			eval.AdjustedConfidence *= 0.85
			notes = append(notes, fmt.Sprintf("REAL verdict despite unresolved challenge of strength %.2f", sev))
		}
	}

	switch {
	case len(eval.Flags) >= 2 || directContradiction:
		eval.Recommendation = models.RecommendReject
	case len(eval.Flags) == 1:
		eval.Recommendation = models.RecommendReview
	default:
		eval.Recommendation = models.RecommendAccept
	}

	if len(notes) == 0 {
		eval.Rationale = "verdict is internally consistent"
	} else {
		eval.Rationale = strings.Join(notes, "; ")
	}
	eval.AdjustedConfidence = models.Clamp01(eval.AdjustedConfidence)
	return eval
}

// conflictingCategory finds a deception category scored high against a
// REAL verdict, or a strong satire score against FAKE. Satire reads as
// fake to the signal units but deserves review, not rejection.
func conflictingCategory(v models.Verdict) (models.Category, float64) {
	switch v.Verdict {
	case models.VerdictReal:
		for _, cat := range []models.Category{models.CategoryDisinformation, models.CategoryMisinformation, models.CategoryPropaganda} {
			if score := v.Categories[cat]; score >= conflictCategory {
				return cat, score
			}
		}
	case models.VerdictFake:
		for _, cat := range []models.Category{models.CategorySatire, models.CategoryParody} {
			if score := v.Categories[cat]; score >= conflictCategory {
				return cat, score
			}
		}
	}
	return "", 0
}

func worstUnresolved(record models.DebateRecord) float64 {
	worst := 0.0
	for i := range record.Challenges {
		if rem := record.UnresolvedChallenge(i); rem > worst {
			worst = rem
		}
	}
	return worst
}
