package observability

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/benchrig/benchrig/pkg/domain"
)

// Metrics holds the run and case collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	runs         *prometheus.CounterVec
	active       prometheus.Gauge
	cases        *prometheus.CounterVec
	caseDuration *prometheus.HistogramVec
	criteria     *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "benchrig_runs_total",
			Help: "Finished runs by outcome.",
		}, []string{"outcome"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "benchrig_run_active",
			Help: "1 while a run is executing.",
		}),
		cases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "benchrig_cases_total",
			Help: "Finished test cases by suite and status.",
		}, []string{"suite", "status"}),
		caseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "benchrig_case_duration_seconds",
			Help:    "Duration of executed test cases.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"suite"}),
		criteria: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "benchrig_criteria_total",
			Help: "Evaluated criteria by name and result.",
		}, []string{"criterion", "passed"}),
	}
	m.Registry.MustRegister(m.runs, m.active, m.cases, m.caseDuration, m.criteria)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Hooks records every lifecycle event.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunStart: func(context.Context, *domain.RunEvent) {
			m.active.Set(1)
		},
		OnRunFinish: func(_ context.Context, e *domain.RunEvent) {
			m.active.Set(0)
			m.runs.WithLabelValues(outcome(e)).Inc()
		},
		OnCaseFinish: func(_ context.Context, e *domain.CaseEvent) {
			m.cases.WithLabelValues(e.Suite, string(e.Status)).Inc()
			if e.Status == domain.StatusPassed || e.Status == domain.StatusFailed {
				m.caseDuration.WithLabelValues(e.Suite).Observe(e.Duration.Seconds())
			}
			for _, c := range e.Criteria {
				passed := "false"
				if c.Passed {
					passed = "true"
				}
				m.criteria.WithLabelValues(c.Name, passed).Inc()
			}
		},
	}
}

func outcome(e *domain.RunEvent) string {
	switch {
	case e.Err != nil:
		return "aborted"
	case e.Failed > 0 || e.Aborted > 0:
		return "failed"
	default:
		return "passed"
	}
}

// LogHooks writes one structured audit line per lifecycle event.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunStart: func(ctx context.Context, e *domain.RunEvent) {
			logger.InfoContext(ctx, "run_start", "run", e.RunID, "total", e.Total)
		},
		OnCaseStart: func(ctx context.Context, e *domain.CaseEvent) {
			logger.InfoContext(ctx, "case_start", "run", e.RunID, "suite", e.Suite, "case", e.CaseID, "index", e.Index+1, "total", e.Total)
		},
		OnCaseFinish: func(ctx context.Context, e *domain.CaseEvent) {
			attrs := []any{"run", e.RunID, "suite", e.Suite, "case", e.CaseID, "status", e.Status, "duration", e.Duration}
			if e.Err != nil {
				attrs = append(attrs, "err", e.Err)
			}
			logger.InfoContext(ctx, "case_finish", attrs...)
		},
		OnRunFinish: func(ctx context.Context, e *domain.RunEvent) {
			logger.InfoContext(ctx, "run_finish",
				"run", e.RunID,
				"passed", e.Passed,
				"failed", e.Failed,
				"skipped", e.Skipped,
				"aborted", e.Aborted,
				"elapsed", e.Elapsed,
			)
		},
	}
}
