package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/autopm/agent"
	"github.com/hupe1980/autopm/core"
	"github.com/hupe1980/autopm/internal/util"
	"github.com/hupe1980/autopm/logging"
)

var (
	errNoJSONObject = errors.New("no JSON object found")
	errMissingAgent = errors.New(`missing string field "agent"`)
	errMissingWhy   = errors.New(`missing string field "rationale"`)
)

// DecisionParser turns free-form model output into a RoutingDecision.
type DecisionParser struct {
	registry       *agent.Registry
	defaultHandler string
	logger         logging.Logger
}

// NewDecisionParser creates a parser falling back to defaultHandler.
func NewDecisionParser(registry *agent.Registry, defaultHandler string, logger logging.Logger) *DecisionParser {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &DecisionParser{registry: registry, defaultHandler: defaultHandler, logger: logger}
}

// Parse always returns a decision. Malformed output, missing fields and
// unknown agent names yield the fallback decision.
func (p *DecisionParser) Parse(raw string) core.RoutingDecision {
	d, err := p.parse(raw)
	if err != nil {
		p.logger.Warn("unusable routing decision", "raw", raw, "error", err)
		return p.Fallback(err.Error())
	}
	return d
}

// Fallback returns the default handler decision with the given reason.
func (p *DecisionParser) Fallback(reason string) core.RoutingDecision {
	return core.RoutingDecision{
		Agent:     p.defaultHandler,
		Rationale: "fallback to default handler: " + reason,
		Source:    core.SourceFallbackDefault,
	}
}

type decisionPayload struct {
	Agent     *string `json:"agent"`
	Rationale *string `json:"rationale"`
}

func (p *DecisionParser) parse(raw string) (core.RoutingDecision, error) {
	data, ok := util.ExtractJSONObject(raw)
	if !ok {
		return core.RoutingDecision{}, &core.ModelOutputParseError{Raw: raw, Err: errNoJSONObject}
	}

	var payload decisionPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return core.RoutingDecision{}, &core.ModelOutputParseError{Raw: raw, Err: err}
	}
	if payload.Agent == nil || strings.TrimSpace(*payload.Agent) == "" {
		return core.RoutingDecision{}, &core.ModelOutputParseError{Raw: raw, Err: errMissingAgent}
	}
	if payload.Rationale == nil {
		return core.RoutingDecision{}, &core.ModelOutputParseError{Raw: raw, Err: errMissingWhy}
	}

	name := strings.TrimSpace(*payload.Agent)
	if !p.registry.Has(name) {
		normalized := NormalizeOverrideToken(name)
		if !p.registry.Has(normalized) {
			return core.RoutingDecision{}, &core.ModelOutputParseError{
				Raw: raw,
				Err: fmt.Errorf("%w: %q", core.ErrUnknownHandler, name),
			}
		}
		name = normalized
	}

	return core.RoutingDecision{
		Agent:     name,
		Rationale: *payload.Rationale,
		Source:    core.SourceModelSelected,
	}, nil
}
