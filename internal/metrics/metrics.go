// Package metrics publishes debugger activity as Prometheus collectors fed by
// session lifecycle hooks.
package metrics

import (
	"context"
	"fmt"

	"github.com/aretw0/botflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors updated by Hooks.
type Metrics struct {
	nodeVisits   *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	runsFinished *prometheus.CounterVec
	runSteps     prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		nodeVisits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "botflow_node_visits_total",
				Help: "Total number of executed nodes",
			},
			[]string{"bot_id", "kind"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "botflow_session_transitions_total",
				Help: "Total number of debug session status transitions",
			},
			[]string{"from", "to"},
		),
		runsFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "botflow_runs_finished_total",
				Help: "Total number of runs that stopped or failed",
			},
			[]string{"bot_id", "status"},
		),
		runSteps: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "botflow_run_steps",
				Help:    "Steps executed by finished runs",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
	}

	for _, c := range []prometheus.Collector{m.nodeVisits, m.transitions, m.runsFinished, m.runSteps} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks that record into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeLeave: func(_ context.Context, e *domain.NodeEvent) {
			m.nodeVisits.WithLabelValues(e.BotID, string(e.NodeKind)).Inc()
		},
		OnStatusChange: func(_ context.Context, e *domain.StatusEvent) {
			m.transitions.WithLabelValues(string(e.From), string(e.To)).Inc()
			if e.To.Terminal() && e.From != e.To {
				m.runsFinished.WithLabelValues(e.BotID, string(e.To)).Inc()
				m.runSteps.Observe(float64(e.Steps))
			}
		},
	}
}

// StatsSource reports registry-wide statistics.
type StatsSource interface {
	Stats(ctx context.Context) domain.DebugStats
}

// statsCollector reads the registry at scrape time.
type statsCollector struct {
	src         StatsSource
	sessions    *prometheus.Desc
	active      *prometheus.Desc
	breakpoints *prometheus.Desc
}

// RegisterStats exposes the gauges of src (sessions by status, breakpoints) on reg.
func RegisterStats(reg prometheus.Registerer, src StatsSource) error {
	c := &statsCollector{
		src: src,
		sessions: prometheus.NewDesc("botflow_sessions",
			"Debug sessions held by the registry, by status", []string{"status"}, nil),
		active: prometheus.NewDesc("botflow_sessions_active",
			"Debug sessions that are neither stopped nor failed", nil, nil),
		breakpoints: prometheus.NewDesc("botflow_breakpoints",
			"Breakpoints set across all bots", nil, nil),
	}
	if err := reg.Register(c); err != nil {
		return fmt.Errorf("failed to register stats collector: %w", err)
	}
	return nil
}

func (c *statsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sessions
	ch <- c.active
	ch <- c.breakpoints
}

func (c *statsCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.src.Stats(context.Background())
	for _, status := range []domain.ExecutionStatus{
		domain.StatusCreated, domain.StatusRunning, domain.StatusPaused, domain.StatusStopped, domain.StatusError,
	} {
		ch <- prometheus.MustNewConstMetric(c.sessions, prometheus.GaugeValue,
			float64(stats.SessionsByStatus[status]), string(status))
	}
	ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, float64(stats.ActiveSessions))
	ch <- prometheus.MustNewConstMetric(c.breakpoints, prometheus.GaugeValue, float64(stats.TotalBreakpoints))
}
