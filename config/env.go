// Package config loads autopm's environment configuration and the optional
// YAML handler table.
package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/kelseyhightower/envconfig"

	"github.com/hupe1980/autopm/core"
	"github.com/hupe1980/autopm/logging"
)

// Supported completion providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// BaseEnv holds the HTTP listener, logging and CORS settings.
type BaseEnv struct {
	HTTPHost    string   `envconfig:"HTTP_HOST" default:""`
	HTTPPort    string   `envconfig:"HTTP_PORT" default:"3100"`
	LogLevel    string   `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat   string   `envconfig:"LOG_FORMAT" default:"json"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"https://chat.openai.com,http://localhost:3000"`
}

// LinearEnv holds the Linear credentials and the automation user whose
// assignments trigger work.
type LinearEnv struct {
	LinearAPIKey     string `envconfig:"LINEAR_API_KEY"`
	LinearEndpoint   string `envconfig:"LINEAR_ENDPOINT" default:"https://api.linear.app/graphql"`
	LinearTeamID     string `envconfig:"LINEAR_TEAM_ID"`
	AutomationUserID string `envconfig:"AUTOMATION_USER_ID" required:"true"`
}

// LLMEnv selects the completion provider, its models and the handler table.
type LLMEnv struct {
	Provider        string `envconfig:"PROVIDER" default:"openai"`
	OpenAIAPIKey    string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel     string `envconfig:"OPENAI_MODEL" default:"gpt-4o"`
	OpenAIFastModel string `envconfig:"OPENAI_FAST_MODEL" default:"gpt-4o-mini"`
	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY"`
	AnthropicModel  string `envconfig:"ANTHROPIC_MODEL" default:"claude-3-5-sonnet-20241022"`
	// DefaultHandler overrides the handler table's default when set.
	DefaultHandler string `envconfig:"DEFAULT_HANDLER"`
	HandlersFile   string `envconfig:"HANDLERS_FILE"`
}

// Env is the full AUTOPM_* environment. Fields are read by LoadEnv with the
// AUTOPM prefix, e.g. AUTOPM_HTTP_PORT.
type Env struct {
	BaseEnv
	LinearEnv
	LLMEnv
}

const namespace = "AUTOPM"

// LoadEnv reads the AUTOPM_* environment.
func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	env.Provider = strings.ToLower(strings.TrimSpace(env.Provider))
	return &env, nil
}

// Validate checks cross-field constraints. Tracker credentials are only
// required when a real tracker is used.
func (e *Env) Validate(requireTracker bool) error {
	switch e.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return core.NewConfigurationError("unknown provider %q", e.Provider)
	}
	if _, err := logging.ParseLevel(e.LogLevel); err != nil {
		return core.NewConfigurationError("%v", err)
	}
	if e.LogFormat != "json" && e.LogFormat != "text" {
		return core.NewConfigurationError("unknown log format %q", e.LogFormat)
	}
	if requireTracker {
		if e.LinearAPIKey == "" {
			return core.NewConfigurationError("AUTOPM_LINEAR_API_KEY is required")
		}
		if e.LinearTeamID == "" {
			return core.NewConfigurationError("AUTOPM_LINEAR_TEAM_ID is required")
		}
	}
	return nil
}

// Addr returns the HTTP listen address.
func (e *BaseEnv) Addr() string {
	return net.JoinHostPort(e.HTTPHost, e.HTTPPort)
}

// LogConfig maps the environment onto a logging.Config. Invalid levels fall
// back to info.
func (e *BaseEnv) LogConfig() logging.Config {
	level, err := logging.ParseLevel(e.LogLevel)
	if err != nil {
		level = logging.LogLevelInfo
	}
	return logging.Config{Level: level, Format: e.LogFormat}
}
