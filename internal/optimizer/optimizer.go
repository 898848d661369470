// Package optimizer turns feedback about finished runs into reliability
// updates. Explicit ground truth moves trust weights at the full learning
// rate; proxy signals derived from the meta-evaluator move them gently.
package optimizer

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"dev.veridict.agent/internal/config"
	"dev.veridict.agent/internal/events"
	"dev.veridict.agent/internal/models"
	"dev.veridict.agent/internal/reliability"
)

type Optimizer struct {
	cfg      config.OptimizerConfig
	registry *reliability.Registry
	bus      *events.Bus
	log      *logrus.Entry
}

func New(cfg config.OptimizerConfig, registry *reliability.Registry, bus *events.Bus, log *logrus.Entry) *Optimizer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Optimizer{cfg: cfg, registry: registry, bus: bus, log: log.WithField("component", "optimizer")}
}

// ApplyGroundTruth credits or penalizes every unit that contributed a
// usable report, based on whether its confidence pointed toward the
// labeled truth. UNSURE is not a trainable label.
func (o *Optimizer) ApplyGroundTruth(run models.RunResult, truth models.VerdictLabel) error {
	if truth != models.VerdictReal && truth != models.VerdictFake {
		return fmt.Errorf("optimizer: ground truth must be %s or %s, got %q", models.VerdictReal, models.VerdictFake, truth)
	}
	if run.Verdict == nil {
		return fmt.Errorf("optimizer: run %s has no verdict to learn from", run.RunID)
	}

	updated := 0
	for _, report := range run.Reports {
		if report.Degenerate() {
			// A unit that produced nothing cannot be right or wrong.
			continue
		}
		correct, voted := unitAgrees(report.Confidence, truth)
		if !voted {
			// A report sitting exactly on the midpoint took no side.
			continue
		}
		entry, err := o.registry.Update(report.UnitID, correct, o.cfg.LearningRate)
		if err != nil {
			o.log.WithError(err).WithField("unit", report.UnitID).Warn("dropping inconsistent feedback")
			continue
		}
		o.log.WithFields(logrus.Fields{
			"unit":    report.UnitID,
			"correct": correct,
			"weight":  entry.TrustWeight,
		}).Debug("trust weight updated from ground truth")
		updated++
	}

	o.publishFeedback(run.RunID, "ground_truth", truth, updated)
	return nil
}

// Update applies one direct feedback observation for a unit at the full
// learning rate. Feedback for an unknown unit is logged and dropped.
func (o *Optimizer) Update(unitID string, wasCorrect bool) {
	if _, err := o.registry.Update(unitID, wasCorrect, o.cfg.LearningRate); err != nil {
		o.log.WithError(err).WithField("unit", unitID).Warn("dropping inconsistent feedback")
	}
}

// ApplyProxy derives a weak training signal from the meta-evaluation
// recommendation: accept counts as mild positive evidence for every
// contributing unit, reject as mild negative evidence, review as neither.
// The reduced proxy rate keeps the loop from reinforcing its own verdicts.
func (o *Optimizer) ApplyProxy(run models.RunResult) {
	if run.Verdict == nil || run.Meta == nil {
		return
	}

	var correct bool
	switch run.Meta.Recommendation {
	case models.RecommendAccept:
		correct = true
	case models.RecommendReject:
		correct = false
	default:
		return // review verdicts carry no training signal
	}

	updated := 0
	for _, report := range run.Reports {
		if report.Degenerate() {
			continue
		}
		if _, err := o.registry.Update(report.UnitID, correct, o.cfg.ProxyRate); err != nil {
			o.log.WithError(err).WithField("unit", report.UnitID).Warn("dropping inconsistent feedback")
			continue
		}
		updated++
	}
	o.publishFeedback(run.RunID, "proxy", run.Verdict.Verdict, updated)
}

func (o *Optimizer) publishFeedback(runID string, kind string, truth models.VerdictLabel, updated int) {
	if o.bus == nil || updated == 0 {
		return
	}
	o.bus.Publish(events.NewEvent(events.EventFeedbackApplied, "optimizer", map[string]any{
		"kind":    kind,
		"truth":   string(truth),
		"updated": updated,
	}).WithRun(runID))
}

// unitAgrees reads a report confidence as a vote: above the midpoint is a
// vote for REAL, below it for FAKE. The exact midpoint is no vote at all
// and must not count against the unit.
func unitAgrees(confidence float64, truth models.VerdictLabel) (correct, voted bool) {
	if confidence == 0.5 {
		return false, false
	}
	switch truth {
	case models.VerdictReal:
		return confidence > 0.5, true
	case models.VerdictFake:
		return confidence < 0.5, true
	}
	return false, false
}
