// Package metrics records autopm's routing, dispatch, lifecycle and LLM
// metrics. Components depend on the Recorder interface; Prometheus backs it in
// production and Nop in tests.
package metrics

import (
	"time"
)

// Recorder receives one observation per routing decision, handler dispatch,
// lifecycle transition and LLM call.
type Recorder interface {
	ObserveRoutingDecision(source, agent string)
	ObserveDispatch(agent string, err error, d time.Duration)
	ObserveTransition(transition, outcome string)
	ObserveLLMRequest(provider, model string, err error, d time.Duration)
}

// Nop discards every observation.
type Nop struct{}

// ObserveRoutingDecision implements Recorder.
func (Nop) ObserveRoutingDecision(string, string) {}

// ObserveDispatch implements Recorder.
func (Nop) ObserveDispatch(string, error, time.Duration) {}

// ObserveTransition implements Recorder.
func (Nop) ObserveTransition(string, string) {}

// ObserveLLMRequest implements Recorder.
func (Nop) ObserveLLMRequest(string, string, error, time.Duration) {}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
