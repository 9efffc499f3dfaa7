package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkflowMetrics captures engine-level run metrics.
type WorkflowMetrics interface {
	IncRunStarted(pattern string)
	IncRunCompleted(pattern, status string)
	ObserveRunDuration(pattern string, durationSeconds float64)
	IncNodeVisited(node string)
	IncDecision(node, decision string)
	ObserveDecisionWait(node string, durationSeconds float64)
	IncToolInsert(outcome string)
}

// Noop implements WorkflowMetrics without emitting anything.
type Noop struct{}

func (Noop) IncRunStarted(string)                {}
func (Noop) IncRunCompleted(string, string)      {}
func (Noop) ObserveRunDuration(string, float64)  {}
func (Noop) IncNodeVisited(string)               {}
func (Noop) IncDecision(string, string)          {}
func (Noop) ObserveDecisionWait(string, float64) {}
func (Noop) IncToolInsert(string)                {}

// Prom implements WorkflowMetrics backed by Prometheus collectors.
type Prom struct {
	runsStarted   *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	nodeVisits    *prometheus.CounterVec
	decisions     *prometheus.CounterVec
	decisionWait  *prometheus.HistogramVec
	toolInserts   *prometheus.CounterVec
	once          sync.Once
}

// NewProm builds the collectors and registers them with reg. A nil reg uses
// the default registerer.
func NewProm(namespace string, reg prometheus.Registerer) *Prom {
	p := &Prom{
		runsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Pattern runs started",
		}, []string{"pattern"}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_completed_total",
			Help:      "Pattern runs finished by status",
		}, []string{"pattern", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a pattern run, human review included",
			Buckets:   []float64{1, 10, 60, 300, 900, 1800, 3600},
		}, []string{"pattern"}),
		nodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_visits_total",
			Help:      "State-machine node visits",
		}, []string{"node"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "review_decisions_total",
			Help:      "Reviewer decisions by node",
		}, []string{"node", "decision"}),
		decisionWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "review_wait_seconds",
			Help:      "Time spent waiting on a reviewer",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"node"}),
		toolInserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_inserts_total",
			Help:      "Tool upserts by outcome",
		}, []string{"outcome"}),
	}
	p.register(reg)
	return p
}

func (p *Prom) register(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	p.once.Do(func() {
		reg.MustRegister(p.runsStarted, p.runsCompleted, p.runDuration,
			p.nodeVisits, p.decisions, p.decisionWait, p.toolInserts)
	})
}

func (p *Prom) IncRunStarted(pattern string) {
	p.runsStarted.WithLabelValues(pattern).Inc()
}

func (p *Prom) IncRunCompleted(pattern, status string) {
	p.runsCompleted.WithLabelValues(pattern, status).Inc()
}

func (p *Prom) ObserveRunDuration(pattern string, durationSeconds float64) {
	p.runDuration.WithLabelValues(pattern).Observe(durationSeconds)
}

func (p *Prom) IncNodeVisited(node string) {
	p.nodeVisits.WithLabelValues(node).Inc()
}

func (p *Prom) IncDecision(node, decision string) {
	p.decisions.WithLabelValues(node, decision).Inc()
}

func (p *Prom) ObserveDecisionWait(node string, durationSeconds float64) {
	p.decisionWait.WithLabelValues(node).Observe(durationSeconds)
}

func (p *Prom) IncToolInsert(outcome string) {
	p.toolInserts.WithLabelValues(outcome).Inc()
}

// Handler returns an HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns an HTTP handler serving the given gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
