// Package judge turns signal reports, the debate record and fact-check
// annotations into a deterministic verdict with a confidence interval.
package judge

import (
	"fmt"
	"strings"
	"time"

	"dev.veridict.agent/internal/config"
	"dev.veridict.agent/internal/factcheck"
	"dev.veridict.agent/internal/models"
)

// WeightFunc resolves the trust weight for a unit. The reliability
// registry satisfies this; tests can pass a fixed table.
type WeightFunc func(unitID string) float64

// UniformWeights gives every unit weight 1.
func UniformWeights(string) float64 { return 1 }

type Judge struct {
	cfg     config.JudgeConfig
	weights WeightFunc
}

func New(cfg config.JudgeConfig, weights WeightFunc) *Judge {
	if weights == nil {
		weights = UniformWeights
	}
	return &Judge{cfg: cfg, weights: weights}
}

// Decide produces the verdict. The same inputs always yield the same
// output; no randomness or external state is consulted.
func (j *Judge) Decide(item models.NewsItem, reports []models.SignalReport, record models.DebateRecord) models.Verdict {
	mean, used, missing := j.weightedMean(reports)

	var aggregate float64
	var rationale string
	if used == 0 {
		aggregate = 0.5
		rationale = "no usable signal reports; defaulting to maximum uncertainty"
	} else {
		net := record.NetStrength()
		aggregate = models.Clamp01(mean + net*j.cfg.DebateWeight)
		rationale = j.explain(mean, net, aggregate, record)
	}

	// A decisive fact-check annotation overrides verdict and confidence.
	// The signal aggregate is still recorded, so the stored verdict keeps
	// an audit trail of what the units themselves saw.
	if fc, ok := factcheck.Interpret(item.FactCheck); ok && fc.Decisive {
		v := models.Verdict{
			ItemID:         item.ID,
			Verdict:        fc.Verdict,
			Confidence:     j.cfg.FactCheckConfidence,
			AggregateScore: aggregate,
			Interval:       models.ConfidenceInterval{Low: j.cfg.FactCheckConfidence - j.cfg.BaseMargin, High: minf(1, j.cfg.FactCheckConfidence+j.cfg.BaseMargin)},
			Rationale:      fmt.Sprintf("fact-check override: %s rated %q; %s", fc.Source, fc.Rating, rationale),
			FactCheckUsed:  true,
			CreatedAt:      time.Now().UTC(),
		}
		v.Categories = Categorize(item, reports, v)
		return v
	}

	confidence := absf(aggregate-0.5) * 2
	margin := j.cfg.BaseMargin + j.cfg.MarginPerMissing*float64(missing)

	v := models.Verdict{
		ItemID:         item.ID,
		Verdict:        j.label(aggregate),
		Confidence:     confidence,
		AggregateScore: aggregate,
		Interval: models.ConfidenceInterval{
			Low:  models.Clamp01(confidence - margin),
			High: models.Clamp01(confidence + margin),
		},
		Rationale: rationale,
		CreatedAt: time.Now().UTC(),
	}
	v.Categories = Categorize(item, reports, v)
	return v
}

// weightedMean averages report confidences weighted by unit trust.
// Degenerate reports are excluded from the mean but counted as missing so
// the interval widens with every absent signal.
func (j *Judge) weightedMean(reports []models.SignalReport) (mean float64, used, missing int) {
	var sum, weight float64
	for _, r := range reports {
		if r.Degenerate() {
			missing++
			continue
		}
		w := j.weights(r.UnitID)
		if w <= 0 {
			w = 0.1
		}
		sum += r.Confidence * w
		weight += w
		used++
	}
	if weight == 0 {
		return 0, 0, missing
	}
	return sum / weight, used, missing
}

func (j *Judge) label(aggregate float64) models.VerdictLabel {
	switch {
	case aggregate >= j.cfg.RealThreshold:
		return models.VerdictReal
	case aggregate <= j.cfg.FakeThreshold:
		return models.VerdictFake
	default:
		return models.VerdictUnsure
	}
}

func (j *Judge) explain(mean, net, aggregate float64, record models.DebateRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "weighted signal mean %.3f", mean)
	switch {
	case net > 0:
		fmt.Fprintf(&b, "; debate supported the claim (net %.2f)", net)
	case net < 0:
		fmt.Fprintf(&b, "; debate undermined the claim (net %.2f)", net)
	default:
		b.WriteString("; debate did not support the claim")
	}
	unresolved := 0
	for i := range record.Challenges {
		if record.UnresolvedChallenge(i) > 0 {
			unresolved++
		}
	}
	if unresolved > 0 {
		fmt.Fprintf(&b, "; %d challenge(s) unresolved", unresolved)
	}
	fmt.Fprintf(&b, "; aggregate %.3f", aggregate)
	return b.String()
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
