package judge

import (
	"strings"

	"dev.veridict.agent/internal/models"
)

// Categorize scores the item against every content category on a 0-100
// scale. Scores are computed for all verdicts: a technically accurate
// story can still be propaganda, and the category vector is part of every
// stored verdict.
func Categorize(item models.NewsItem, reports []models.SignalReport, v models.Verdict) models.CategoryScores {
	f := gatherFeatures(reports)
	fakeness := 1 - v.AggregateScore

	raw := map[models.Category]float64{
		// Deliberate falsehood: fabricated content from untrustworthy
		// sources, pushed with manipulation.
		models.CategoryDisinformation: models.Clamp01(
			0.45*fakeness + 0.3*(1-f.credibility) + 0.25*f.emotional,
		),
		// False but plausibly shared in good faith: weak evidence without
		// the deliberate-manipulation markers.
		models.CategoryMisinformation: models.Clamp01(
			0.5*fakeness + 0.35*(1-f.evidence) - 0.2*f.emotional,
		),
		// One-sided persuasion, regardless of factual accuracy.
		models.CategoryPropaganda: models.Clamp01(
			0.5*f.oneSided + 0.35*f.emotional + 0.15*(1-f.evidence),
		),
		models.CategorySatire: models.Clamp01(
			0.7*f.humor + 0.3*f.irony,
		),
		models.CategoryParody: models.Clamp01(
			0.55*f.irony + 0.3*f.humor + 0.15*f.divergence,
		),
		models.CategoryClickbait: models.Clamp01(
			0.55*f.divergence + 0.3*f.emotional + 0.15*(1-f.depth),
		),
		models.CategoryLowQuality: models.Clamp01(
			0.6*(1-f.depth) + 0.25*(1-f.evidence) + 0.15*(1-f.credibility),
		),
	}

	// A fact-check annotation that names a satire outlet pins the satire
	// category even when textual tone markers missed the joke.
	if item.FactCheck != nil {
		src := strings.ToLower(item.FactCheck.Source)
		if strings.Contains(src, "satire") || strings.Contains(src, "onion") {
			if raw[models.CategorySatire] < 0.8 {
				raw[models.CategorySatire] = 0.8
			}
		}
	}

	scores := make(models.CategoryScores, len(raw))
	for cat, score := range raw {
		scores[cat] = score * 100
	}
	return scores
}

type features struct {
	credibility float64
	evidence    float64
	emotional   float64
	divergence  float64
	humor       float64
	irony       float64
	oneSided    float64
	depth       float64
}

// gatherFeatures collapses the per-unit sub-scores into one feature row,
// taking the strongest observation for each signal. Missing signals fall
// back to neutral values so absent units never zero out a category.
func gatherFeatures(reports []models.SignalReport) features {
	f := features{credibility: 0.5, evidence: 0.3, depth: 0.5, oneSided: 0.5}
	for _, r := range reports {
		if r.Degenerate() {
			continue
		}
		f.credibility = maxf(f.credibility, r.SubScore(models.SubScoreSourceCredibility, 0))
		f.evidence = maxf(f.evidence, r.SubScore(models.SubScoreEvidencePresence, 0))
		f.emotional = maxf(f.emotional, r.SubScore(models.SubScoreEmotionalManip, 0))
		f.divergence = maxf(f.divergence, r.SubScore(models.SubScoreHeadlineDivergence, 0))
		f.humor = maxf(f.humor, r.SubScore(models.SubScoreToneHumor, 0))
		f.irony = maxf(f.irony, r.SubScore(models.SubScoreToneIrony, 0))
		f.oneSided = maxf(f.oneSided, r.SubScore(models.SubScoreOneSidedness, 0))
		f.depth = maxf(f.depth, r.SubScore(models.SubScoreContentDepth, 0))
	}
	return f
}
