package observability

import (
	"context"
	"errors"
	"net/http"

	"github.com/aretw0/convo/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine collectors.
type Metrics struct {
	Turns          *prometheus.CounterVec
	NodeVisits     *prometheus.CounterVec
	ActionOutcomes *prometheus.CounterVec
	ActionDuration *prometheus.HistogramVec
	ChainHops      prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg. Collectors
// already registered (e.g. by a previous engine in the same process) are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "convo_turns_total",
			Help: "Turns processed, by convo and whether the session completed.",
		}, []string{"convo_id", "completed"}),
		NodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "convo_node_visits_total",
			Help: "Total number of node visits.",
		}, []string{"convo_id", "node_type"}),
		ActionOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "convo_action_outcomes_total",
			Help: "Actions and collaborator calls, by type and outcome.",
		}, []string{"action_type", "outcome"}),
		ActionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "convo_action_duration_seconds",
			Help:    "Latency of actions and collaborator calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"action_type"}),
		ChainHops: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "convo_turn_hops",
			Help:    "Nodes entered per turn.",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21, 50},
		}),
	}

	var err error
	m.Turns = register(reg, m.Turns, &err)
	m.NodeVisits = register(reg, m.NodeVisits, &err)
	m.ActionOutcomes = register(reg, m.ActionOutcomes, &err)
	m.ActionDuration = register(reg, m.ActionDuration, &err)
	m.ChainHops = register(reg, m.ChainHops, &err)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C, errp *error) C {
	if *errp != nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		*errp = err
	}
	return c
}

// Hooks returns lifecycle hooks that feed the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			m.NodeVisits.WithLabelValues(e.ConvoID, string(e.NodeType)).Inc()
		},
		OnActionReturn: func(_ context.Context, e *domain.ActionEvent) {
			outcome := "success"
			if e.Err != nil {
				outcome = "failure"
			}
			m.ActionOutcomes.WithLabelValues(e.ActionType, outcome).Inc()
			m.ActionDuration.WithLabelValues(e.ActionType).Observe(e.Duration.Seconds())
		},
		OnTurnComplete: func(_ context.Context, e *domain.TurnEvent) {
			completed := "false"
			if e.Completed {
				completed = "true"
			}
			m.Turns.WithLabelValues(e.ConvoID, completed).Inc()
			m.ChainHops.Observe(float64(e.Hops))
		},
	}
}

// Handler exposes the gatherer in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
