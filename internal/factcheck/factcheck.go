// Package factcheck interprets external fact-check annotations attached to
// news items by the collection stage. It maps the rating vocabularies of the
// major fact-check publishers onto the engine's verdict labels.
package factcheck

import (
	"strings"

	"dev.veridict.agent/internal/models"
)

// Result is the interpreted outcome of a fact-check annotation.
type Result struct {
	Verdict    models.VerdictLabel
	Confidence float64
	Decisive   bool
	Rating     string
	Source     string
}

// Rating vocabularies across PolitiFact, Snopes, FactCheck.org and similar
// publishers. Matching is substring-based and case-insensitive because
// annotations arrive as free-form strings.
var (
	falseRatings = []string{
		"pants on fire", "false", "mostly false", "fake", "fabricated",
		"incorrect", "not true", "misleading", "debunked", "scam",
	}
	trueRatings = []string{
		"true", "mostly true", "correct", "accurate", "verified", "legit",
	}
	mixedRatings = []string{
		"half true", "half-true", "mixture", "mixed", "partly", "unproven",
	}
)

// Interpret maps an annotation to a verdict. Decisive is true only for hard
// true/false ratings; mixed ratings return UNSURE with low confidence and do
// not short-circuit the judge. A nil annotation or empty rating returns ok
// false.
//
// Order matters: "mostly false" contains "true"-adjacent substrings in some
// vocabularies, so false and mixed ratings are checked before true ones.
func Interpret(ann *models.FactCheckAnnotation) (Result, bool) {
	if ann == nil || strings.TrimSpace(ann.Rating) == "" {
		return Result{}, false
	}

	rating := strings.ToLower(strings.TrimSpace(ann.Rating))
	res := Result{Rating: ann.Rating, Source: ann.Source}

	for _, r := range mixedRatings {
		if strings.Contains(rating, r) {
			res.Verdict = models.VerdictUnsure
			res.Confidence = 0.6
			return res, true
		}
	}
	for _, r := range falseRatings {
		if strings.Contains(rating, r) {
			res.Verdict = models.VerdictFake
			res.Confidence = 0.92
			res.Decisive = true
			return res, true
		}
	}
	for _, r := range trueRatings {
		if strings.Contains(rating, r) {
			res.Verdict = models.VerdictReal
			res.Confidence = 0.92
			res.Decisive = true
			return res, true
		}
	}

	// Unknown vocabulary: recorded but not acted on.
	return Result{}, false
}
