// Package metrics exposes Prometheus collectors for the editor and preview.
package metrics

import (
	"errors"
	"net/http"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Save outcomes.
const (
	SaveOK       = "saved"
	SaveRejected = "rejected"
	SaveFailed   = "failed"
)

// Metrics holds the collectors on a private registry, so tests and
// embedded servers never clash with the global one.
type Metrics struct {
	Registry *prometheus.Registry

	validations *prometheus.CounterVec
	saves       *prometheus.CounterVec
	messages    *prometheus.CounterVec
	nodeVisits  *prometheus.CounterVec
	resets      prometheus.Counter
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		validations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatflow_validations_total",
				Help: "Flow validations by outcome",
			},
			[]string{"outcome"},
		),
		saves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatflow_saves_total",
				Help: "Save attempts by outcome",
			},
			[]string{"outcome"},
		),
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatflow_preview_messages_total",
				Help: "Preview messages by sender",
			},
			[]string{"sender"},
		),
		nodeVisits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatflow_preview_node_visits_total",
				Help: "Nodes rendered by the preview, by node type",
			},
			[]string{"node_type"},
		),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatflow_preview_resets_total",
			Help: "Preview conversation resets",
		}),
	}
	m.Registry.MustRegister(m.validations, m.saves, m.messages, m.nodeVisits, m.resets)
	return m
}

// TrackActiveSessions exports the number of live preview sessions.
func (m *Metrics) TrackActiveSessions(count func() int) {
	m.Registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "chatflow_preview_sessions_active",
			Help: "Live preview sessions in this process",
		},
		func() float64 { return float64(count()) },
	))
}

// ObserveValidation records a validation result.
func (m *Metrics) ObserveValidation(res domain.ValidationResult) {
	outcome := "valid"
	if !res.IsValid {
		outcome = "invalid"
	}
	m.validations.WithLabelValues(outcome).Inc()
}

// ObserveSave records the result of an editor save.
func (m *Metrics) ObserveSave(err error) {
	switch {
	case err == nil:
		m.saves.WithLabelValues(SaveOK).Inc()
	case errors.Is(err, domain.ErrInvalidFlowTopology):
		m.saves.WithLabelValues(SaveRejected).Inc()
	default:
		m.saves.WithLabelValues(SaveFailed).Inc()
	}
}

// Hooks returns simulator hooks that feed the preview collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnMessage: func(e *domain.MessageEvent) {
			m.messages.WithLabelValues(string(e.Message.Sender)).Inc()
		},
		OnNodeEnter: func(e *domain.NodeEvent) {
			m.nodeVisits.WithLabelValues(string(e.NodeType)).Inc()
		},
		OnReset: func(*domain.ResetEvent) {
			m.resets.Inc()
		},
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
