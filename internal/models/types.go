// Package models defines the data contracts shared by every stage of the
// verdict pipeline: news items, analysis signals, debate records, verdicts,
// meta-evaluations and reliability state.
package models

import (
	"time"
)

// VerdictLabel is the enumerated outcome of a pipeline run.
type VerdictLabel string

const (
	VerdictReal   VerdictLabel = "REAL"
	VerdictFake   VerdictLabel = "FAKE"
	VerdictUnsure VerdictLabel = "UNSURE"
)

// Valid reports whether the label is one of the three known outcomes.
func (v VerdictLabel) Valid() bool {
	switch v {
	case VerdictReal, VerdictFake, VerdictUnsure:
		return true
	}
	return false
}

// Category identifies one of the seven fake-news subtypes scored by the judge.
type Category string

const (
	CategoryDisinformation Category = "disinformation"
	CategoryMisinformation Category = "misinformation"
	CategoryPropaganda     Category = "propaganda"
	CategorySatire         Category = "satire_humor"
	CategoryParody         Category = "parody"
	CategoryClickbait      Category = "clickbait"
	CategoryLowQuality     Category = "low_quality"
)

// Categories lists all seven subtypes in presentation order.
var Categories = []Category{
	CategoryDisinformation,
	CategoryMisinformation,
	CategoryPropaganda,
	CategorySatire,
	CategoryParody,
	CategoryClickbait,
	CategoryLowQuality,
}

// CategoryScores maps each subtype to a score in [0,100]. The scores are
// independent; they are not required to sum to anything.
type CategoryScores map[Category]float64

// Dominant returns the highest-scoring category and its score. The zero
// value ("", 0) is returned for an empty vector.
func (cs CategoryScores) Dominant() (Category, float64) {
	var best Category
	bestScore := -1.0
	for _, cat := range Categories {
		if score, ok := cs[cat]; ok && score > bestScore {
			best = cat
			bestScore = score
		}
	}
	if bestScore < 0 {
		return "", 0
	}
	return best, bestScore
}

// FactCheckAnnotation is a pre-existing external fact-check attached to a
// news item by the collection stage.
type FactCheckAnnotation struct {
	Rating string `json:"rating" yaml:"rating"`
	Source string `json:"source" yaml:"source"`
	URL    string `json:"url" yaml:"url"`
}

// NewsItem is a normalized news article admitted to the pipeline. It is
// immutable once admitted; the preprocessing stage returns a cleaned copy
// rather than mutating the original.
type NewsItem struct {
	ID        string               `json:"id"`
	Headline  string               `json:"headline"`
	Text      string               `json:"text"`
	Link      string               `json:"link,omitempty"`
	ImageURL  string               `json:"image_url,omitempty"`
	FactCheck *FactCheckAnnotation `json:"fact_check,omitempty"`
}

// HasImage reports whether the item carries an image reference.
func (n *NewsItem) HasImage() bool {
	return n.ImageURL != ""
}

// Well-known sub-score keys emitted by the built-in analysis units and
// consumed by the judge's category scorers. Units outside this repository
// may emit additional keys; unknown keys are carried but ignored.
const (
	SubScoreSourceCredibility  = "source_credibility"
	SubScoreAuthority          = "authority"
	SubScoreEvidencePresence   = "evidence_presence"
	SubScoreEmotionalManip     = "emotional_manipulation"
	SubScoreHeadlineDivergence = "headline_divergence"
	SubScoreToneHumor          = "tone_humor"
	SubScoreToneIrony          = "tone_irony"
	SubScoreOneSidedness       = "one_sidedness"
	SubScoreContentDepth       = "content_depth"
	SubScoreImagePlausibility  = "image_plausibility"
	SubScoreCaptionMatch       = "caption_match"
)

// SignalReport is the normalized output of one analysis unit for one item.
// Reports are append-only: once emitted they are never mutated.
type SignalReport struct {
	UnitID     string             `json:"unit_id"`
	Confidence float64            `json:"confidence"`
	SubScores  map[string]float64 `json:"sub_scores,omitempty"`
	Rationale  string             `json:"rationale,omitempty"`
}

// SubScore returns the named sub-score, or fallback when absent.
func (r SignalReport) SubScore(key string, fallback float64) float64 {
	if v, ok := r.SubScores[key]; ok {
		return v
	}
	return fallback
}

// Degenerate reports whether this is a zero-confidence placeholder produced
// for a failed or absent stage.
func (r SignalReport) Degenerate() bool {
	return r.Confidence == 0
}

// Argument is one entry in a debate record's role lists.
type Argument struct {
	Strength      float64 `json:"strength"`
	Justification string  `json:"justification"`
}

// DebateRecord is the structured dialectical record for a single claim,
// produced once per item by the debate protocol and read-only thereafter.
// The three argument lists are never empty for a claim that entered debate:
// a role with nothing to say contributes an explicit zero-strength
// placeholder. Rebuttals[i] answers Challenges[i].
type DebateRecord struct {
	Claim      string     `json:"claim"`
	Advocacy   []Argument `json:"advocacy"`
	Challenges []Argument `json:"challenges"`
	Rebuttals  []Argument `json:"rebuttals"`
}

// UnresolvedChallenge returns the remaining strength of challenge i after
// its rebuttal, floored at zero. An unanswered challenge keeps its full
// strength.
func (d *DebateRecord) UnresolvedChallenge(i int) float64 {
	s := d.Challenges[i].Strength
	if i < len(d.Rebuttals) {
		s -= d.Rebuttals[i].Strength
	}
	if s < 0 {
		return 0
	}
	return s
}

// AdvocacyStrength is the summed strength of all advocacy arguments.
func (d *DebateRecord) AdvocacyStrength() float64 {
	var sum float64
	for _, a := range d.Advocacy {
		sum += a.Strength
	}
	return sum
}

// ChallengeStrength is the summed unresolved challenge strength.
func (d *DebateRecord) ChallengeStrength() float64 {
	var sum float64
	for i := range d.Challenges {
		sum += d.UnresolvedChallenge(i)
	}
	return sum
}

// NetStrength is the net argumentative pressure for the claim: advocacy
// minus unresolved challenges, clipped to [-1,1]. Equal opposing strength
// yields zero, which downstream consumers treat as not supported.
func (d *DebateRecord) NetStrength() float64 {
	net := d.AdvocacyStrength() - d.ChallengeStrength()
	if net > 1 {
		return 1
	}
	if net < -1 {
		return -1
	}
	return net
}

// ConfidenceInterval bounds a confidence scalar. The width models epistemic
// uncertainty from missing signals, not statistical sampling.
type ConfidenceInterval struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Recommendation is the meta-evaluator's advisory on a verdict.
type Recommendation string

const (
	RecommendAccept Recommendation = "accept"
	RecommendReview Recommendation = "review"
	RecommendReject Recommendation = "reject"
)

// Verdict is the judge's final decision for one item. Created once per run;
// the meta-evaluator annotates Recommendation but never overwrites the rest.
type Verdict struct {
	ItemID         string             `json:"item_id"`
	Verdict        VerdictLabel       `json:"verdict"`
	Confidence     float64            `json:"confidence"`
	Interval       ConfidenceInterval `json:"confidence_interval"`
	Categories     CategoryScores     `json:"categories"`
	Rationale      string             `json:"rationale"`
	AggregateScore float64            `json:"aggregate_score"`
	FactCheckUsed  bool               `json:"fact_check_used,omitempty"`
	Recommendation Recommendation     `json:"recommendation,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

// MetaFlag identifies one detected inconsistency or bias in a verdict.
type MetaFlag string

const (
	FlagSparseEvidence      MetaFlag = "overconfidence_sparse_evidence"
	FlagCategoryConflict    MetaFlag = "category_verdict_conflict"
	FlagUnresolvedChallenge MetaFlag = "unresolved_challenge_vs_real"
)

// MetaEvaluation is the audit result for one verdict.
type MetaEvaluation struct {
	Recommendation     Recommendation `json:"recommendation"`
	Flags              []MetaFlag     `json:"flags,omitempty"`
	AdjustedConfidence float64        `json:"adjusted_confidence"`
	Rationale          string         `json:"rationale,omitempty"`
}

// ReliabilityEntry is the per-unit trust state held by the registry.
// TrustWeight stays within [0.1, 3.0]; SmoothedAccuracy is the EMA the
// optimizer recomputes the weight from.
type ReliabilityEntry struct {
	UnitID           string    `json:"unit_id"`
	TrustWeight      float64   `json:"trust_weight"`
	SmoothedAccuracy float64   `json:"smoothed_accuracy"`
	CorrectCount     int64     `json:"correct_count"`
	TotalCount       int64     `json:"total_count"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// PhaseResult records timing and outcome for one pipeline stage.
type PhaseResult struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	Skipped  bool          `json:"skipped,omitempty"`
	CacheHit bool          `json:"cache_hit,omitempty"`
	Failed   bool          `json:"failed,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// CorrectionRequest is handed to the (external) correction generator when a
// run ends in FAKE or a review recommendation.
type CorrectionRequest struct {
	Item             NewsItem     `json:"item"`
	Verdict          VerdictLabel `json:"verdict"`
	Confidence       float64      `json:"confidence"`
	DominantCategory Category     `json:"dominant_category,omitempty"`
}

// RunResult is the full outcome of one pipeline run, returned to the
// reporting/API boundary.
type RunResult struct {
	RunID          string                 `json:"run_id"`
	Item           NewsItem               `json:"item"`
	Status         string                 `json:"status"`
	Verdict        *Verdict               `json:"verdict,omitempty"`
	Meta           *MetaEvaluation        `json:"meta_evaluation,omitempty"`
	Reports        []SignalReport         `json:"reports,omitempty"`
	Debate         *DebateRecord          `json:"debate,omitempty"`
	Correction     *CorrectionRequest     `json:"correction,omitempty"`
	Phases         map[string]PhaseResult `json:"phases"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Timestamp      time.Time              `json:"timestamp"`
}

// Run statuses.
const (
	StatusCompleted = "completed"
	StatusDuplicate = "duplicate"
	StatusSpam      = "spam"
)

// Clamp01 bounds v to [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
