package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/autopm/core"
	"github.com/hupe1980/autopm/logging"
)

func TestLoadEnv_Defaults(t *testing.T) {
	t.Setenv("AUTOPM_AUTOMATION_USER_ID", "bot")

	env, err := LoadEnv()
	require.NoError(t, err)

	assert.Equal(t, "3100", env.HTTPPort)
	assert.Equal(t, ":3100", env.Addr())
	assert.Equal(t, ProviderOpenAI, env.Provider)
	assert.Equal(t, "gpt-4o", env.OpenAIModel)
	assert.Equal(t, "gpt-4o-mini", env.OpenAIFastModel)
	assert.Equal(t, []string{"https://chat.openai.com", "http://localhost:3000"}, env.CORSOrigins)
	assert.Equal(t, logging.Config{Level: logging.LogLevelInfo, Format: "json"}, env.LogConfig())
	assert.NoError(t, env.Validate(false))

	var cfgErr *core.ConfigurationError
	assert.ErrorAs(t, env.Validate(true), &cfgErr, "linear credentials required for a real tracker")
}

func TestLoadEnv_Overrides(t *testing.T) {
	t.Setenv("AUTOPM_AUTOMATION_USER_ID", "bot")
	t.Setenv("AUTOPM_HTTP_HOST", "127.0.0.1")
	t.Setenv("AUTOPM_HTTP_PORT", "8080")
	t.Setenv("AUTOPM_LOG_LEVEL", "debug")
	t.Setenv("AUTOPM_LOG_FORMAT", "text")
	t.Setenv("AUTOPM_PROVIDER", "Anthropic")
	t.Setenv("AUTOPM_LINEAR_API_KEY", "lin_api")
	t.Setenv("AUTOPM_LINEAR_TEAM_ID", "team")
	t.Setenv("AUTOPM_CORS_ORIGINS", "https://example.com")

	env, err := LoadEnv()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", env.Addr())
	assert.Equal(t, ProviderAnthropic, env.Provider)
	assert.Equal(t, logging.LogLevelDebug, env.LogConfig().Level)
	assert.Equal(t, []string{"https://example.com"}, env.CORSOrigins)
	assert.NoError(t, env.Validate(true))
}

func TestLoadEnv_MissingAutomationUser(t *testing.T) {
	t.Setenv("AUTOPM_AUTOMATION_USER_ID", "")
	os.Unsetenv("AUTOPM_AUTOMATION_USER_ID")

	_, err := LoadEnv()
	assert.Error(t, err)
}

func TestEnv_ValidateRejectsUnknownValues(t *testing.T) {
	base := Env{BaseEnv: BaseEnv{LogLevel: "info", LogFormat: "json"}, LLMEnv: LLMEnv{Provider: ProviderOpenAI}}
	require.NoError(t, base.Validate(false))

	bad := base
	bad.Provider = "cohere"
	assert.Error(t, bad.Validate(false))

	bad = base
	bad.LogLevel = "chatty"
	assert.Error(t, bad.Validate(false))

	bad = base
	bad.LogFormat = "xml"
	assert.Error(t, bad.Validate(false))
}

func TestDefaultHandlerTable(t *testing.T) {
	openai := DefaultHandlerTable(ProviderOpenAI)
	require.NoError(t, openai.Validate())
	assert.Equal(t, "GPT4", openai.Default)
	assert.Equal(t, "issue_creator", openai.DecomposeHandler())
	assert.Len(t, openai.Handlers, 4)
	assert.Equal(t, KindTools, openai.Handlers[2].Kind)

	anthropic := DefaultHandlerTable(ProviderAnthropic)
	require.NoError(t, anthropic.Validate())
	assert.Equal(t, "Claude", anthropic.Default)
	assert.Len(t, anthropic.Handlers, 3)
}

func TestParseHandlerTable(t *testing.T) {
	table, err := ParseHandlerTable([]byte(`
handlers:
  - name: GPT4
    description: Powerful but slower.
    kind: completion
  - name: GPT35
    description: Fast.
    kind: completion
    model: fast
  - name: issue_creator
    description: Splits work.
    kind: decompose
  - name: calc
    description: Does math with tools.
    kind: tools
default: GPT35
`))
	require.NoError(t, err)
	assert.Equal(t, "GPT35", table.Default)
	assert.Equal(t, KindTools, table.Handlers[3].Kind)
	assert.Equal(t, ModelPrimary, table.Handlers[0].Model)
	assert.Equal(t, ModelFast, table.Handlers[1].Model)
	assert.Equal(t, "issue_creator", table.DecomposeHandler())
}

func TestParseHandlerTable_Invalid(t *testing.T) {
	tests := map[string]string{
		"empty":           `handlers: []`,
		"duplicate":       "handlers:\n  - {name: A, kind: completion}\n  - {name: A, kind: completion}\ndefault: A\n",
		"unknown kind":    "handlers:\n  - {name: A, kind: magic}\ndefault: A\n",
		"unknown model":   "handlers:\n  - {name: A, kind: completion, model: huge}\ndefault: A\n",
		"missing default": "handlers:\n  - {name: A, kind: completion}\n",
		"unknown default": "handlers:\n  - {name: A, kind: completion}\ndefault: B\n",
		"not yaml":        "handlers: [",
		"hyphen in name":  "handlers:\n  - {name: GPT-4, kind: completion}\ndefault: GPT-4\n",
		"period in name":  "handlers:\n  - {name: gpt3.5, kind: completion}\ndefault: gpt3.5\n",
		"space in name":   "handlers:\n  - {name: \"my agent\", kind: completion}\ndefault: \"my agent\"\n",
		"tab in name":     "handlers:\n  - {name: \"a\\tb\", kind: completion}\ndefault: \"a\\tb\"\n",
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseHandlerTable([]byte(doc))
			var cfgErr *core.ConfigurationError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestLoadHandlerTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "handlers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("handlers:\n  - {name: GPT4, kind: completion}\ndefault: GPT4\n"), 0o600))

	table, err := LoadHandlerTable(path)
	require.NoError(t, err)
	assert.Equal(t, "GPT4", table.Default)

	_, err = LoadHandlerTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	env := &Env{LLMEnv: LLMEnv{Provider: ProviderOpenAI}}

	cfg, err := Resolve(env)
	require.NoError(t, err)
	assert.Equal(t, "GPT4", cfg.Handlers.Default)

	env.DefaultHandler = "GPT35"
	cfg, err = Resolve(env)
	require.NoError(t, err)
	assert.Equal(t, "GPT35", cfg.Handlers.Default)

	env.DefaultHandler = "Nope"
	_, err = Resolve(env)
	var cfgErr *core.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestResolve_HandlersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "handlers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("handlers:\n  - {name: Solo, kind: completion}\ndefault: Solo\n"), 0o600))

	cfg, err := Resolve(&Env{LLMEnv: LLMEnv{Provider: ProviderOpenAI, HandlersFile: path}})
	require.NoError(t, err)
	require.Len(t, cfg.Handlers.Handlers, 1)
	assert.Equal(t, "Solo", cfg.Handlers.Default)
	assert.Empty(t, cfg.Handlers.DecomposeHandler())
}
