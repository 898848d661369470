// Package pipeline sequences the fixed verdict stages for one news item:
// source tracking, preprocessing, textual and visual analysis, debate,
// judgment, meta-evaluation and, when warranted, a correction request.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"dev.veridict.agent/internal/analysis"
	"dev.veridict.agent/internal/config"
	"dev.veridict.agent/internal/debate"
	"dev.veridict.agent/internal/events"
	"dev.veridict.agent/internal/judge"
	"dev.veridict.agent/internal/meta"
	"dev.veridict.agent/internal/metrics"
	"dev.veridict.agent/internal/models"
	"dev.veridict.agent/internal/optimizer"
	"dev.veridict.agent/internal/reliability"
)

// Stage names used as keys in the run's phase trace.
const (
	StageSourceTracking = "source_tracking"
	StagePreprocessing  = "preprocessing"
	StageTextual        = "textual_analysis"
	StageVisual         = "visual_analysis"
	StageDebate         = "debate"
	StageJudgment       = "judgment"
	StageMeta           = "meta_evaluation"
	StageCorrection     = "correction"
)

// Controller owns one item's journey through the stages. A single
// controller serves concurrent runs; the reliability registry is the only
// shared mutable state and handles its own locking.
type Controller struct {
	cfg      config.PipelineConfig
	pre      *analysis.Preprocessor
	units    []analysis.Unit
	judge    *judge.Judge
	meta     *meta.Evaluator
	opt      *optimizer.Optimizer
	registry *reliability.Registry
	cache    *ReportCache
	bus      *events.Bus
	metrics  *metrics.Collector
	log      *logrus.Entry
}

// Deps carries the controller's collaborators. Registry, Judge and at
// least one unit are required; the rest degrade to no-ops when nil.
type Deps struct {
	Preprocessor *analysis.Preprocessor
	Units        []analysis.Unit
	Judge        *judge.Judge
	Meta         *meta.Evaluator
	Optimizer    *optimizer.Optimizer
	Registry     *reliability.Registry
	Bus          *events.Bus
	Metrics      *metrics.Collector
	Log          *logrus.Entry
}

// NewController validates the unit roster up front. A controller without
// analysis units can never produce evidence, so construction fails rather
// than every run.
func NewController(cfg config.PipelineConfig, deps Deps) (*Controller, error) {
	if len(deps.Units) == 0 {
		return nil, &ConfigurationError{Reason: "controller requires at least one analysis unit", Err: ErrNoUnits}
	}
	if deps.Judge == nil {
		return nil, &ConfigurationError{Reason: "controller requires a judge"}
	}
	if deps.Registry == nil {
		return nil, &ConfigurationError{Reason: "controller requires a reliability registry"}
	}
	seen := make(map[string]struct{}, len(deps.Units))
	for _, u := range deps.Units {
		if _, dup := seen[u.ID()]; dup {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("duplicate unit registration %q", u.ID())}
		}
		seen[u.ID()] = struct{}{}
	}
	log := deps.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	pre := deps.Preprocessor
	if pre == nil {
		pre = analysis.NewPreprocessor()
	}
	return &Controller{
		cfg:      cfg,
		pre:      pre,
		units:    deps.Units,
		judge:    deps.Judge,
		meta:     deps.Meta,
		opt:      deps.Optimizer,
		registry: deps.Registry,
		cache:    NewReportCache(cfg.CacheTTL.Std(), cfg.CacheMaxSize),
		bus:      deps.Bus,
		metrics:  deps.Metrics,
		log:      log.WithField("component", "pipeline"),
	}, nil
}

// Close releases the controller's cache resources.
func (c *Controller) Close() {
	c.cache.Close()
}

// Process runs one item through every stage. A run that enters judgment
// always yields a verdict, degrading toward UNSURE as evidence thins;
// only a judgment failure surfaces as an error. There is no cancellation
// of a run once started; ctx bounds individual stage work.
func (c *Controller) Process(ctx context.Context, item models.NewsItem) (models.RunResult, error) {
	start := time.Now()
	run := models.RunResult{
		RunID:     uuid.New().String(),
		Item:      item,
		Phases:    make(map[string]models.PhaseResult),
		Timestamp: start.UTC(),
	}
	log := c.log.WithFields(logrus.Fields{"run_id": run.RunID, "item_id": item.ID})
	contentKey := ContentKey(item)

	// Source tracking runs first so its credibility signal is available
	// to the debate even when preprocessing later rejects siblings.
	sourceReport := c.runUnitStage(ctx, &run, StageSourceTracking, c.unitByID(analysis.UnitSourceTracker), item, contentKey)

	item, outcome := c.runPreprocess(ctx, &run, item)
	run.Item = item
	if outcome != analysis.OutcomeClean {
		run.Status = string(outcome)
		run.ProcessingTime = time.Since(start)
		log.WithField("outcome", outcome).Info("item rejected before analysis")
		c.record(run)
		return run, nil
	}

	textual, visual := c.runConcurrentAnalysis(ctx, &run, item, contentKey)

	run.Reports = appendReports(nil, sourceReport, textual, visual)

	record := c.runDebate(&run, item, run.Reports)
	run.Debate = &record

	verdict, err := c.runJudgment(&run, item, run.Reports, record)
	if err != nil {
		run.ProcessingTime = time.Since(start)
		log.WithError(err).Error("run aborted in judgment")
		return run, err
	}
	run.Verdict = &verdict

	if c.meta != nil {
		eval := c.runMeta(&run, verdict, run.Reports, record)
		run.Meta = &eval
		run.Verdict.Recommendation = eval.Recommendation
	}

	c.maybeCorrect(&run)

	run.Status = models.StatusCompleted
	run.ProcessingTime = time.Since(start)

	if c.cfg.ProxyFeedback && c.opt != nil {
		c.opt.ApplyProxy(run)
	}
	c.record(run)
	c.publish(events.NewEvent(events.EventVerdictReached, "pipeline", map[string]any{
		"item_id":    item.ID,
		"verdict":    string(verdict.Verdict),
		"confidence": verdict.Confidence,
	}).WithRun(run.RunID))

	log.WithFields(logrus.Fields{
		"verdict":    verdict.Verdict,
		"confidence": verdict.Confidence,
		"elapsed":    run.ProcessingTime,
	}).Info("run completed")
	return run, nil
}

func (c *Controller) unitByID(id string) analysis.Unit {
	for _, u := range c.units {
		if u.ID() == id {
			return u
		}
	}
	return nil
}

// runUnitStage executes one analysis unit with caching, timing and
// failure isolation. A missing, failing or panicking unit yields a
// degenerate report; the run always continues.
func (c *Controller) runUnitStage(ctx context.Context, run *models.RunResult, stage string, unit analysis.Unit, item models.NewsItem, contentKey string) models.SignalReport {
	stageStart := time.Now()
	phase := models.PhaseResult{Name: stage}

	if unit == nil {
		phase.Skipped = true
		run.Phases[stage] = phase
		return analysis.DegenerateReport(stage, "unit not registered")
	}

	if c.cfg.Cacheable(unit.ID()) {
		if report, ok := c.cache.Get(contentKey, unit.ID()); ok {
			phase.CacheHit = true
			phase.Duration = time.Since(stageStart)
			run.Phases[stage] = phase
			if c.metrics != nil {
				c.metrics.RecordCache(true)
			}
			c.publish(events.NewEvent(events.EventCacheHit, "pipeline", map[string]any{"stage": stage}).WithRun(run.RunID))
			return report
		}
		if c.metrics != nil {
			c.metrics.RecordCache(false)
		}
		c.publish(events.NewEvent(events.EventCacheMiss, "pipeline", map[string]any{"stage": stage}).WithRun(run.RunID))
	}

	c.publish(events.NewEvent(events.EventStageStarted, "pipeline", map[string]any{"stage": stage}).WithRun(run.RunID))

	report, err := c.invokeUnit(ctx, unit, item)
	phase.Duration = time.Since(stageStart)
	if err != nil {
		failure := &StageFailure{Stage: stage, Err: err}
		phase.Failed = true
		phase.Error = failure.Error()
		report = analysis.DegenerateReport(unit.ID(), failure.Error())
		c.publish(events.NewEvent(events.EventStageFailed, "pipeline", map[string]any{"stage": stage, "error": err.Error()}).WithRun(run.RunID))
	} else {
		if c.cfg.Cacheable(unit.ID()) {
			c.cache.Put(contentKey, unit.ID(), report)
		}
		c.publish(events.NewEvent(events.EventStageCompleted, "pipeline", map[string]any{"stage": stage}).WithRun(run.RunID))
	}
	run.Phases[stage] = phase
	if c.metrics != nil {
		c.metrics.RecordStage(stage, phase.Duration, phase.Failed)
	}
	return report
}

// invokeUnit bounds the unit call with the stage timeout and converts
// panics into errors so one misbehaving unit cannot take down the run.
func (c *Controller) invokeUnit(ctx context.Context, unit analysis.Unit, item models.NewsItem) (report models.SignalReport, err error) {
	if c.cfg.StageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.StageTimeout.Std())
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unit %s panicked: %v", unit.ID(), r)
		}
	}()
	report, err = unit.Analyze(ctx, item)
	if err == nil && ctx.Err() != nil {
		err = fmt.Errorf("unit %s: %w", unit.ID(), ctx.Err())
	}
	return report, err
}

func (c *Controller) runPreprocess(ctx context.Context, run *models.RunResult, item models.NewsItem) (models.NewsItem, analysis.Outcome) {
	stageStart := time.Now()
	cleaned, outcome := c.pre.Process(ctx, item)
	phase := models.PhaseResult{Name: StagePreprocessing, Duration: time.Since(stageStart)}
	run.Phases[StagePreprocessing] = phase
	if c.metrics != nil {
		c.metrics.RecordStage(StagePreprocessing, phase.Duration, false)
	}
	return cleaned, outcome
}

// runConcurrentAnalysis joins the textual and visual stages. Neither
// reads the other's output, so they run in parallel; the controller waits
// for both results or their failure placeholders before the debate.
func (c *Controller) runConcurrentAnalysis(ctx context.Context, run *models.RunResult, item models.NewsItem, contentKey string) (models.SignalReport, models.SignalReport) {
	var textual, visual models.SignalReport
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r := c.runUnitStageLocked(gctx, run, &mu, StageTextual, c.unitByID(analysis.UnitTextual), item, contentKey)
		textual = r
		return nil
	})
	if item.HasImage() {
		g.Go(func() error {
			r := c.runUnitStageLocked(gctx, run, &mu, StageVisual, c.unitByID(analysis.UnitVisual), item, contentKey)
			visual = r
			return nil
		})
	} else {
		mu.Lock()
		run.Phases[StageVisual] = models.PhaseResult{Name: StageVisual, Skipped: true}
		mu.Unlock()
		visual = analysis.DegenerateReport(analysis.UnitVisual, "no image reference to analyze")
	}
	_ = g.Wait() // stage failures are isolated, never propagated
	return textual, visual
}

// runUnitStageLocked serializes phase-map writes for stages that run
// concurrently within one run.
func (c *Controller) runUnitStageLocked(ctx context.Context, run *models.RunResult, mu *sync.Mutex, stage string, unit analysis.Unit, item models.NewsItem, contentKey string) models.SignalReport {
	shadow := models.RunResult{RunID: run.RunID, Phases: make(map[string]models.PhaseResult)}
	report := c.runUnitStage(ctx, &shadow, stage, unit, item, contentKey)
	mu.Lock()
	for k, v := range shadow.Phases {
		run.Phases[k] = v
	}
	mu.Unlock()
	return report
}

func (c *Controller) runDebate(run *models.RunResult, item models.NewsItem, reports []models.SignalReport) models.DebateRecord {
	stageStart := time.Now()
	record, err := debate.Run(item, reports)
	phase := models.PhaseResult{Name: StageDebate, Duration: time.Since(stageStart)}
	if err != nil {
		failure := &StageFailure{Stage: StageDebate, Err: err}
		phase.Failed = true
		phase.Error = failure.Error()
		record = models.DebateRecord{
			Claim:      "debate unavailable",
			Advocacy:   []models.Argument{{Strength: 0, Justification: failure.Error()}},
			Challenges: []models.Argument{{Strength: 0, Justification: "debate did not run"}},
			Rebuttals:  []models.Argument{{Strength: 0, Justification: "debate did not run"}},
		}
	} else {
		c.publish(events.NewEvent(events.EventDebateResolved, "pipeline", map[string]any{
			"claim": record.Claim,
			"net":   record.NetStrength(),
		}).WithRun(run.RunID))
	}
	run.Phases[StageDebate] = phase
	if c.metrics != nil {
		c.metrics.RecordStage(StageDebate, phase.Duration, phase.Failed)
	}
	return record
}

// runJudgment is the one stage whose failure is fatal: no partial verdict
// is fabricated. The phase trace travels with the error for diagnostics.
func (c *Controller) runJudgment(run *models.RunResult, item models.NewsItem, reports []models.SignalReport, record models.DebateRecord) (verdict models.Verdict, err error) {
	stageStart := time.Now()
	defer func() {
		phase := models.PhaseResult{Name: StageJudgment, Duration: time.Since(stageStart)}
		if r := recover(); r != nil {
			jf := &JudgeFailure{Err: fmt.Errorf("panic: %v", r), Phases: run.Phases}
			phase.Failed = true
			phase.Error = jf.Error()
			err = jf
		}
		run.Phases[StageJudgment] = phase
		if c.metrics != nil {
			c.metrics.RecordStage(StageJudgment, phase.Duration, phase.Failed)
		}
	}()
	verdict = c.judge.Decide(item, reports, record)
	return verdict, nil
}

func (c *Controller) runMeta(run *models.RunResult, verdict models.Verdict, reports []models.SignalReport, record models.DebateRecord) models.MetaEvaluation {
	stageStart := time.Now()
	eval := c.meta.Evaluate(verdict, reports, record)
	phase := models.PhaseResult{Name: StageMeta, Duration: time.Since(stageStart)}
	run.Phases[StageMeta] = phase
	if c.metrics != nil {
		c.metrics.RecordStage(StageMeta, phase.Duration, false)
	}
	c.publish(events.NewEvent(events.EventMetaEvaluated, "pipeline", map[string]any{
		"recommendation": string(eval.Recommendation),
		"flags":          len(eval.Flags),
	}).WithRun(run.RunID))
	return eval
}

// maybeCorrect raises a correction request when the verdict is FAKE or
// the audit asked for review.
func (c *Controller) maybeCorrect(run *models.RunResult) {
	v := run.Verdict
	needsCorrection := v.Verdict == models.VerdictFake ||
		(run.Meta != nil && run.Meta.Recommendation == models.RecommendReview)
	if !needsCorrection {
		return
	}
	stageStart := time.Now()
	dominant, _ := v.Categories.Dominant()
	run.Correction = &models.CorrectionRequest{
		Item:             run.Item,
		Verdict:          v.Verdict,
		Confidence:       v.Confidence,
		DominantCategory: dominant,
	}
	run.Phases[StageCorrection] = models.PhaseResult{Name: StageCorrection, Duration: time.Since(stageStart)}
	c.publish(events.NewEvent(events.EventCorrectionRequested, "pipeline", map[string]any{
		"item_id":  run.Item.ID,
		"verdict":  string(v.Verdict),
		"category": string(dominant),
	}).WithRun(run.RunID))
}

func (c *Controller) record(run models.RunResult) {
	if c.metrics != nil {
		c.metrics.RecordCheck(run)
	}
}

func (c *Controller) publish(ev *events.Event) {
	if c.bus != nil {
		c.bus.Publish(ev)
	}
}

func appendReports(dst []models.SignalReport, reports ...models.SignalReport) []models.SignalReport {
	for _, r := range reports {
		if r.UnitID == "" {
			continue
		}
		dst = append(dst, r)
	}
	return dst
}
