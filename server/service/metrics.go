package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is safe to use as a nil pointer; tests do so.
type Metrics struct {
	bids                *prometheus.CounterVec
	persistenceFailures prometheus.Counter
	activeGames         prometheus.Gauge
	viewers             prometheus.Gauge
	broadcastDrops      prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		bids: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bidwar",
			Name:      "bids_total",
			Help:      "Bids handled by the registry, by outcome.",
		}, []string{"outcome"}),
		persistenceFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bidwar",
			Name:      "persistence_failures_total",
			Help:      "Registry mutations rolled back after a failed durable write.",
		}),
		activeGames: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "bidwar",
			Name:      "active_games",
			Help:      "Live games held in memory.",
		}),
		viewers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "bidwar",
			Name:      "viewers",
			Help:      "Registered realtime connections.",
		}),
		broadcastDrops: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bidwar",
			Name:      "broadcast_drops_total",
			Help:      "Viewers dropped because their send queue was full.",
		}),
	}
}

func (m *Metrics) BidOutcome(outcome string) {
	if m == nil {
		return
	}
	m.bids.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PersistenceFailure() {
	if m == nil {
		return
	}
	m.persistenceFailures.Inc()
}

func (m *Metrics) SetActiveGames(n int) {
	if m == nil {
		return
	}
	m.activeGames.Set(float64(n))
}

func (m *Metrics) ViewerAdded() {
	if m == nil {
		return
	}
	m.viewers.Inc()
}

func (m *Metrics) ViewerRemoved() {
	if m == nil {
		return
	}
	m.viewers.Dec()
}

func (m *Metrics) BroadcastDrop() {
	if m == nil {
		return
	}
	m.broadcastDrops.Inc()
}
