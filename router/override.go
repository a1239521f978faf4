package router

import (
	"strings"

	"github.com/hupe1980/autopm/agent"
	"github.com/hupe1980/autopm/core"
	"github.com/hupe1980/autopm/logging"
)

var overrideTokenReplacer = strings.NewReplacer("-", "", ".", "", " ", "")

// NormalizeOverrideToken strips whitespace, hyphens and periods so that model
// name variants like "GPT-4" or "gpt 3.5" compare against handler names.
func NormalizeOverrideToken(s string) string {
	return overrideTokenReplacer.Replace(strings.TrimSpace(s))
}

// OverrideResolver detects explicit "Agent:<name>" directives on a task.
type OverrideResolver struct {
	registry *agent.Registry
	logger   logging.Logger
}

// NewOverrideResolver creates a resolver validating tokens against registry.
func NewOverrideResolver(registry *agent.Registry, logger logging.Logger) *OverrideResolver {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &OverrideResolver{registry: registry, logger: logger}
}

// Resolve returns the handler named by the first valid override label.
// Labels are scanned in collection order; directives naming unknown handlers
// are logged and skipped.
func (r *OverrideResolver) Resolve(labels core.Labels) (string, bool) {
	for _, l := range labels {
		if !l.IsOverride() {
			continue
		}

		_, raw, _ := strings.Cut(l.Name, ":")
		token := NormalizeOverrideToken(raw)
		if r.registry.Has(token) {
			return token, true
		}

		r.logger.Warn("invalid override directive", "label", l.Name, "token", token)
	}
	return "", false
}
