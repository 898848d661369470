package analysis

import (
	"context"
	"fmt"
	"strings"

	"dev.veridict.agent/internal/models"
)

var (
	evidenceWords = []string{
		"according to", "study", "research", "report", "data", "survey",
		"official", "confirmed", "statistics", "published", "experts",
		"professor", "university", "journal",
	}
	emotionalWords = []string{
		"shocking", "outrageous", "disgusting", "terrifying", "unbelievable",
		"devastating", "horrifying", "explosive", "stunning", "bombshell",
		"furious", "slams", "destroys",
	}
	humorWords = []string{
		"hilarious", "joke", "parody", "satire", "spoof", "lol",
		"comedian", "prank", "gag",
	}
	ironyMarkers = []string{
		"reportedly", "sources say", "totally", "obviously", "sure, because",
		"shocker", "who knew", "of course",
	}
	hedgeWords = []string{
		"however", "although", "but", "critics", "on the other hand",
		"some argue", "others say", "disputed",
	}
)

// TextualAnalyzer scores the linguistic signals of an item: sensationalism,
// evidence markers, headline divergence, emotional tone and one-sidedness.
type TextualAnalyzer struct{}

func NewTextualAnalyzer() *TextualAnalyzer { return &TextualAnalyzer{} }

func (t *TextualAnalyzer) ID() string { return UnitTextual }

func (t *TextualAnalyzer) Analyze(_ context.Context, item models.NewsItem) (models.SignalReport, error) {
	headline := strings.ToLower(item.Headline)
	body := strings.ToLower(item.Text)
	full := headline + " " + body

	if strings.TrimSpace(full) == "" {
		return DegenerateReport(t.ID(), "item has no text to analyze"), nil
	}

	evidence := presenceScore(full, evidenceWords, 3)
	emotional := presenceScore(full, emotionalWords, 3)
	divergence := headlineDivergence(headline, body)
	sensational := sensationalScore(item.Headline)
	humor := presenceScore(full, humorWords, 2)
	irony := presenceScore(full, ironyMarkers, 2)
	oneSided := 1 - presenceScore(body, hedgeWords, 2)
	depth := depthScore(body)

	// Credibility leans on evidence and depth, penalized by manipulation
	// signals. This mirrors how the textual scoring weighs its features.
	confidence := models.Clamp01(
		0.5 + 0.3*evidence + 0.15*depth - 0.25*emotional - 0.2*divergence - 0.15*sensational,
	)

	return models.SignalReport{
		UnitID:     t.ID(),
		Confidence: confidence,
		SubScores: map[string]float64{
			models.SubScoreEvidencePresence:   evidence,
			models.SubScoreEmotionalManip:     maxf(emotional, sensational),
			models.SubScoreHeadlineDivergence: divergence,
			models.SubScoreToneHumor:          humor,
			models.SubScoreToneIrony:          irony,
			models.SubScoreOneSidedness:       models.Clamp01(oneSided),
			models.SubScoreContentDepth:       depth,
		},
		Rationale: fmt.Sprintf("evidence %.2f, emotional %.2f, divergence %.2f", evidence, emotional, divergence),
	}, nil
}

// presenceScore counts marker hits and saturates at the given cap.
func presenceScore(text string, markers []string, cap int) float64 {
	hits := 0
	for _, m := range markers {
		if strings.Contains(text, m) {
			hits++
		}
	}
	if hits > cap {
		hits = cap
	}
	return float64(hits) / float64(cap)
}

// sensationalScore measures shouting punctuation and all-caps runs in the
// headline.
func sensationalScore(headline string) float64 {
	score := 0.0
	score += 0.3 * float64(minInt(strings.Count(headline, "!"), 3)) / 3
	score += 0.2 * float64(minInt(strings.Count(headline, "?"), 2)) / 2
	caps := 0
	for _, w := range strings.Fields(headline) {
		if len(w) >= 4 && w == strings.ToUpper(w) && w != strings.ToLower(w) {
			caps++
		}
	}
	score += 0.5 * float64(minInt(caps, 2)) / 2
	return models.Clamp01(score)
}

// headlineDivergence is one minus the word overlap between headline and
// body. Empty bodies diverge fully.
func headlineDivergence(headline, body string) float64 {
	hw := tokenSet(headline)
	bw := tokenSet(body)
	if len(hw) == 0 {
		return 0
	}
	if len(bw) == 0 {
		return 1
	}
	overlap := 0
	for w := range hw {
		if _, ok := bw[w]; ok {
			overlap++
		}
	}
	return 1 - float64(overlap)/float64(len(hw))
}

// depthScore rewards longer, multi-sentence bodies up to a saturation point.
func depthScore(body string) float64 {
	words := len(strings.Fields(body))
	sentences := strings.Count(body, ".") + strings.Count(body, "!") + strings.Count(body, "?")
	score := float64(words)/300.0 + float64(sentences)/15.0
	return models.Clamp01(score / 2)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		w = strings.Trim(w, ".,!?\"'():;")
		if len(w) > 3 {
			set[w] = struct{}{}
		}
	}
	return set
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
