package observability

import (
	"context"
	"errors"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records Prometheus series for runs and node executions.
type Metrics struct {
	runs         *prometheus.CounterVec
	runDuration  prometheus.Histogram
	nodes        *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
	cacheHits    *prometheus.CounterVec
	running      prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lattice_runs_total",
			Help: "Total number of graph runs by outcome",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lattice_run_duration_seconds",
			Help:    "Duration of graph runs",
			Buckets: prometheus.DefBuckets,
		}),
		nodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lattice_node_executions_total",
			Help: "Total number of node executions by type and status",
		}, []string{"node_type", "status"}),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lattice_node_duration_seconds",
			Help:    "Duration of node executions",
			Buckets: prometheus.DefBuckets,
		}, []string{"node_type"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lattice_node_cache_hits_total",
			Help: "Node executions served from the output cache",
		}, []string{"node_type"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lattice_nodes_running",
			Help: "Nodes currently executing",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.runs, m.runDuration, m.nodes, m.nodeDuration, m.cacheHits, m.running}
}

// Hooks returns lifecycle hooks that update the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunEnd: func(_ context.Context, e *domain.RunEvent) {
			outcome := "success"
			if !e.Success {
				outcome = "failure"
			}
			m.runs.WithLabelValues(outcome).Inc()
			m.runDuration.Observe(e.Duration.Seconds())
		},
		OnNodeStart: func(_ context.Context, _ *domain.NodeEvent) {
			m.running.Inc()
		},
		OnNodeEnd: func(_ context.Context, e *domain.NodeEvent) {
			m.running.Dec()
			m.nodes.WithLabelValues(e.NodeType, string(e.Status)).Inc()
			if e.Cached {
				m.cacheHits.WithLabelValues(e.NodeType).Inc()
				return
			}
			m.nodeDuration.WithLabelValues(e.NodeType).Observe(e.Duration.Seconds())
		},
	}
}
