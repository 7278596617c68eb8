// Package metrics defines the Prometheus collectors for the query pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is safe to use as a nil pointer; every method becomes a no-op.
type Metrics struct {
	queries  *prometheus.CounterVec
	stages   *prometheus.HistogramVec
	llmCalls *prometheus.CounterVec
}

// New creates the collectors and registers them with reg (prometheus.DefaultRegisterer
// when nil).
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loksabha",
			Name:      "ai_queries_total",
			Help:      "Natural language queries by outcome.",
		}, []string{"outcome"}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "loksabha",
			Name:      "ai_stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   []float64{.005, .025, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loksabha",
			Name:      "llm_calls_total",
			Help:      "Language model calls by purpose and status.",
		}, []string{"purpose", "status"}),
	}
	for _, c := range []prometheus.Collector{m.queries, m.stages, m.llmCalls} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// QueryOutcome counts one finished query. outcome is "success" or an error kind.
func (m *Metrics) QueryOutcome(outcome string) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(outcome).Inc()
}

// ObserveStage records how long stage took since start.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.stages.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// LLMCall counts a model call. purpose is "sql" or "summary".
func (m *Metrics) LLMCall(purpose string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.llmCalls.WithLabelValues(purpose, status).Inc()
}
