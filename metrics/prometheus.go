package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder implements the Recorder interface using Prometheus metrics.
type PrometheusRecorder struct {
	routingDecisions *prometheus.CounterVec
	handlerDuration  *prometheus.HistogramVec
	transitions      *prometheus.CounterVec
	llmDuration      *prometheus.HistogramVec
}

var _ Recorder = (*PrometheusRecorder)(nil)

// NewPrometheus creates a recorder whose collectors are registered with reg.
// A nil reg registers with the default registerer.
func NewPrometheus(reg prometheus.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		routingDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autopm_routing_decisions_total",
				Help: "Total number of routing decisions by source and selected agent",
			},
			[]string{"source", "agent"},
		),
		handlerDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "autopm_handler_duration_seconds",
				Help:    "Duration of handler dispatches in seconds",
				Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"agent", "status"},
		),
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autopm_transitions_total",
				Help: "Total number of lifecycle transitions by transition and outcome",
			},
			[]string{"transition", "outcome"},
		),
		llmDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "autopm_llm_request_duration_seconds",
				Help:    "Duration of LLM completion requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "model", "status"},
		),
	}
}

// ObserveRoutingDecision counts a routing decision.
func (p *PrometheusRecorder) ObserveRoutingDecision(source, agent string) {
	p.routingDecisions.WithLabelValues(source, agent).Inc()
}

// ObserveDispatch records a handler run.
func (p *PrometheusRecorder) ObserveDispatch(agent string, err error, d time.Duration) {
	p.handlerDuration.WithLabelValues(agent, status(err)).Observe(d.Seconds())
}

// ObserveTransition counts a lifecycle transition outcome.
func (p *PrometheusRecorder) ObserveTransition(transition, outcome string) {
	p.transitions.WithLabelValues(transition, outcome).Inc()
}

// ObserveLLMRequest records a completion call.
func (p *PrometheusRecorder) ObserveLLMRequest(provider, model string, err error, d time.Duration) {
	p.llmDuration.WithLabelValues(provider, model, status(err)).Observe(d.Seconds())
}
