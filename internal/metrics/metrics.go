// Package metrics exposes pipeline counters both to Prometheus and as an
// in-process summary for the statistics endpoint.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"dev.veridict.agent/internal/models"
)

// Collector records check outcomes. All methods are safe for concurrent use.
type Collector struct {
	checksTotal   *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	stageFailures *prometheus.CounterVec
	cacheEvents   *prometheus.CounterVec
	feedbackTotal *prometheus.CounterVec
	metaFlags     *prometheus.CounterVec

	mu         sync.Mutex
	verdicts   map[models.VerdictLabel]int64
	categories map[models.Category]int64
	confSum    float64
	durSum     time.Duration
	completed  int64
	rejected   map[string]int64
	stages     map[string]*stageStats
}

type stageStats struct {
	Calls    int64
	Failures int64
	Min      time.Duration
	Max      time.Duration
	Total    time.Duration
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		checksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "veridict",
			Name:      "checks_total",
			Help:      "Completed checks by verdict label.",
		}, []string{"verdict"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "veridict",
			Name:      "stage_duration_seconds",
			Help:      "Wall time per pipeline stage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "veridict",
			Name:      "stage_failures_total",
			Help:      "Stage executions that returned an error.",
		}, []string{"stage"}),
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "veridict",
			Name:      "cache_events_total",
			Help:      "Result cache hits and misses.",
		}, []string{"outcome"}),
		feedbackTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "veridict",
			Name:      "feedback_total",
			Help:      "Feedback applications by kind.",
		}, []string{"kind"}),
		metaFlags: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "veridict",
			Name:      "meta_flags_total",
			Help:      "Consistency flags raised by the meta evaluator.",
		}, []string{"flag"}),
		verdicts:   make(map[models.VerdictLabel]int64),
		categories: make(map[models.Category]int64),
		rejected:   make(map[string]int64),
		stages:     make(map[string]*stageStats),
	}
	if reg != nil {
		reg.MustRegister(c.checksTotal, c.stageDuration, c.stageFailures,
			c.cacheEvents, c.feedbackTotal, c.metaFlags)
	}
	return c
}

// RecordCheck folds one completed run into the counters.
func (c *Collector) RecordCheck(run models.RunResult) {
	if run.Status != models.StatusCompleted || run.Verdict == nil {
		c.mu.Lock()
		c.rejected[run.Status]++
		c.mu.Unlock()
		return
	}
	v := run.Verdict
	c.checksTotal.WithLabelValues(string(v.Verdict)).Inc()
	if run.Meta != nil {
		for _, f := range run.Meta.Flags {
			c.metaFlags.WithLabelValues(string(f)).Inc()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.completed++
	c.verdicts[v.Verdict]++
	c.confSum += v.Confidence
	c.durSum += run.ProcessingTime
	if cat, score := v.Categories.Dominant(); cat != "" && score >= 50 {
		c.categories[cat]++
	}
}

func (c *Collector) RecordStage(stage string, d time.Duration, failed bool) {
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if failed {
		c.stageFailures.WithLabelValues(stage).Inc()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.stages[stage]
	if !ok {
		st = &stageStats{Min: d}
		c.stages[stage] = st
	}
	st.Calls++
	if failed {
		st.Failures++
	}
	st.Total += d
	if d < st.Min {
		st.Min = d
	}
	if d > st.Max {
		st.Max = d
	}
}

func (c *Collector) RecordCache(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	c.cacheEvents.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordFeedback(kind string) {
	c.feedbackTotal.WithLabelValues(kind).Inc()
}

// Summary is the aggregate view served by the statistics endpoint.
type Summary struct {
	TotalChecks      int64                         `json:"total_checks"`
	Verdicts         map[models.VerdictLabel]int64 `json:"verdicts"`
	Rejected         map[string]int64              `json:"rejected"`
	AvgConfidence    float64                       `json:"avg_confidence"`
	AvgProcessing    time.Duration                 `json:"avg_processing_ns"`
	DominantCategory map[models.Category]int64     `json:"dominant_categories"`
	Stages           map[string]StageSummary       `json:"stages"`
}

// StageSummary is the per-stage latency and failure aggregate.
type StageSummary struct {
	Calls    int64         `json:"calls"`
	Failures int64         `json:"failures"`
	MinNs    time.Duration `json:"min_ns"`
	AvgNs    time.Duration `json:"avg_ns"`
	MaxNs    time.Duration `json:"max_ns"`
}

func (c *Collector) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Summary{
		TotalChecks:      c.completed,
		Verdicts:         make(map[models.VerdictLabel]int64, len(c.verdicts)),
		Rejected:         make(map[string]int64, len(c.rejected)),
		DominantCategory: make(map[models.Category]int64, len(c.categories)),
		Stages:           make(map[string]StageSummary, len(c.stages)),
	}
	for k, v := range c.verdicts {
		s.Verdicts[k] = v
	}
	for k, v := range c.rejected {
		s.Rejected[k] = v
	}
	for k, v := range c.categories {
		s.DominantCategory[k] = v
	}
	for name, st := range c.stages {
		s.Stages[name] = StageSummary{
			Calls:    st.Calls,
			Failures: st.Failures,
			MinNs:    st.Min,
			AvgNs:    st.Total / time.Duration(st.Calls),
			MaxNs:    st.Max,
		}
	}
	if c.completed > 0 {
		s.AvgConfidence = c.confSum / float64(c.completed)
		s.AvgProcessing = c.durSum / time.Duration(c.completed)
	}
	return s
}
