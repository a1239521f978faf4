package core

// DecisionSource records how a routing decision was reached.
type DecisionSource string

const (
	SourceExplicitLabel   DecisionSource = "explicit-label"
	SourceModelSelected   DecisionSource = "model-selected"
	SourceFallbackDefault DecisionSource = "fallback-default"
)

// RoutingDecision names the handler chosen for a task. Rationale is advisory
// only and never used for control flow. Decisions are recomputed on every run.
type RoutingDecision struct {
	Agent     string         `json:"agent"`
	Rationale string         `json:"rationale"`
	Source    DecisionSource `json:"source"`
}
