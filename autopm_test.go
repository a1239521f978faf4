package autopm

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/autopm/agent"
	"github.com/hupe1980/autopm/config"
	"github.com/hupe1980/autopm/core"
	"github.com/hupe1980/autopm/internal/testutil"
	"github.com/hupe1980/autopm/lifecycle"
	"github.com/hupe1980/autopm/metrics"
	"github.com/hupe1980/autopm/model"
	"github.com/hupe1980/autopm/tracker/inmemory"
	"github.com/hupe1980/autopm/webhook"
)

const botID = "bot-user"

type llmCall struct {
	provider, model string
	failed          bool
}

type recordingMetrics struct {
	metrics.Nop
	mu    sync.Mutex
	calls []llmCall
}

func (r *recordingMetrics) ObserveLLMRequest(provider, name string, err error, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, llmCall{provider: provider, model: name, failed: err != nil})
}

func newApp(t *testing.T, tr core.TrackerClient, models Models, optFns ...func(o *Options)) *App {
	t.Helper()
	fns := append([]func(o *Options){func(o *Options) { o.AutomationUserID = botID }}, optFns...)
	app, err := New(tr, models, config.DefaultHandlerTable(config.ProviderOpenAI), fns...)
	require.NoError(t, err)
	return app
}

func TestNew_Validation(t *testing.T) {
	tr := inmemory.New()
	table := config.DefaultHandlerTable(config.ProviderOpenAI)
	var cfgErr *core.ConfigurationError

	_, err := New(tr, Models{}, table, func(o *Options) { o.AutomationUserID = botID })
	assert.ErrorAs(t, err, &cfgErr, "primary model required")

	_, err = New(tr, Models{Primary: model.NewScriptedModel()}, nil, func(o *Options) { o.AutomationUserID = botID })
	assert.ErrorAs(t, err, &cfgErr, "table required")

	_, err = New(tr, Models{Primary: model.NewScriptedModel()}, &config.HandlerTable{}, func(o *Options) { o.AutomationUserID = botID })
	assert.ErrorAs(t, err, &cfgErr, "empty table")

	_, err = New(tr, Models{Primary: model.NewScriptedModel()}, table)
	assert.ErrorAs(t, err, &cfgErr, "automation user required")
}

func TestBuildRegistry(t *testing.T) {
	primary := model.NewScriptedModel("primary answer")
	fast := model.NewScriptedModel("fast answer")

	reg, err := BuildRegistry(config.DefaultHandlerTable(config.ProviderOpenAI), Models{Primary: primary, Fast: fast}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"GPT35", "GPT35Tools", "GPT4", "issue_creator"}, reg.Names())

	h, err := reg.Resolve("GPT35")
	require.NoError(t, err)
	out, err := h(context.Background(), testutil.NewTaskBuilder("t1").Title("Write docs").Build(), core.Capabilities{})
	require.NoError(t, err)
	assert.Equal(t, "fast answer", out)
	assert.Equal(t, 0, primary.CallCount())
}

func TestBuildRegistry_FastFallsBackToPrimary(t *testing.T) {
	primary := model.NewScriptedModel("primary answer")

	reg, err := BuildRegistry(config.DefaultHandlerTable(config.ProviderOpenAI), Models{Primary: primary}, nil)
	require.NoError(t, err)

	h, err := reg.Resolve("GPT35")
	require.NoError(t, err)
	out, err := h(context.Background(), testutil.NewTaskBuilder("t1").Title("Write docs").Build(), core.Capabilities{})
	require.NoError(t, err)
	assert.Equal(t, "primary answer", out)
}

func TestBuildRegistry_ToolsHandlerEscalates(t *testing.T) {
	fast := model.NewScriptedModel(
		agent.DeclineMarker,
		`{"thought": "multiply", "tool": "calculator", "input": {"expression": "12 * 12"}}`,
		`{"answer": "144"}`,
	)

	reg, err := BuildRegistry(config.DefaultHandlerTable(config.ProviderOpenAI), Models{Primary: model.NewScriptedModel(), Fast: fast}, nil)
	require.NoError(t, err)

	h, err := reg.Resolve("GPT35Tools")
	require.NoError(t, err)
	out, err := h(context.Background(), testutil.NewTaskBuilder("t1").Title("What is 12 squared?").Build(), core.Capabilities{})
	require.NoError(t, err)
	assert.Contains(t, out, "Agent Reasoning")
	assert.Contains(t, out, "Observation: 144")
	assert.Equal(t, 3, fast.CallCount())
}

func TestApp_OverrideLabelEndToEnd(t *testing.T) {
	tr := inmemory.New()
	tr.Put(testutil.NewTaskBuilder("t1").Title("Fix typo").State(core.StateTodo).Labels("Agent:GPT35").Assignee(botID).Build())

	primary := model.NewScriptedModel()
	fast := model.NewScriptedModel("Typo fixed in README.")
	rec := &recordingMetrics{}
	app := newApp(t, tr, Models{Primary: primary, Fast: fast}, func(o *Options) { o.Metrics = rec })

	outcome, err := app.HandleEvent(context.Background(), testutil.NewEventBuilder("t1").AssignedTo(botID).Build())
	require.NoError(t, err)
	assert.Equal(t, lifecycle.OutcomeCompleted, outcome)

	final, _ := tr.Snapshot("t1")
	assert.Equal(t, core.StateInReview, final.State)
	assert.Equal(t, "Typo fixed in README.", final.Description)
	assert.False(t, final.Labels.Has(core.LabelRunning))
	assert.Empty(t, final.AssigneeID)

	assert.Equal(t, 0, primary.CallCount(), "override skips the routing model")
	require.Len(t, rec.calls, 1)
	assert.Equal(t, llmCall{provider: "scripted", model: "scripted"}, rec.calls[0])
}

func TestApp_DecomposeEndToEnd(t *testing.T) {
	tr := inmemory.New()
	tr.Put(testutil.NewTaskBuilder("t1").Title("Build the onboarding flow").State(core.StateTodo).Assignee(botID).Build())

	primary := model.NewScriptedModel(
		`{"agent": "issue_creator", "rationale": "The task is large."}`,
		"```json\n[{\"title\": \"Design screens\", \"description\": \"Wireframes\"}, {\"title\": \"Implement API\"}]\n```",
	)
	app := newApp(t, tr, Models{Primary: primary})

	outcome, err := app.HandleEvent(context.Background(), testutil.NewEventBuilder("t1").AssignedTo(botID).Build())
	require.NoError(t, err)
	assert.Equal(t, lifecycle.OutcomeCompleted, outcome)

	children, err := tr.ListTasks(context.Background(), core.TaskFilter{ParentID: "t1"})
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "Design screens", children[0].Title)
	assert.Equal(t, core.StateBacklog, children[0].State)

	final, _ := tr.Snapshot("t1")
	assert.Equal(t, core.StateInReview, final.State)
	assert.Contains(t, final.Description, "Created sub-tasks:")
	assert.Contains(t, final.Description, "Implement API")
}

func TestApp_ReviewEndToEnd(t *testing.T) {
	tr := inmemory.New()
	tr.Put(
		testutil.NewTaskBuilder("parent").Title("Epic").State(core.StateInProgress).Build(),
		testutil.NewTaskBuilder("t1").Title("Write docs").Parent("parent").State(core.StateInReview).Build(),
		testutil.NewTaskBuilder("s1").Title("A").Parent("parent").State(core.StateDone).Build(),
	)

	primary := model.NewScriptedModel("The docs cover everything requested.")
	app := newApp(t, tr, Models{Primary: primary})

	outcome, err := app.HandleEvent(context.Background(), testutil.NewEventBuilder("t1").MovedTo("In Review").Build())
	require.NoError(t, err)
	assert.Equal(t, lifecycle.OutcomeJudgedComplete, outcome)

	final, _ := tr.Snapshot("t1")
	assert.Equal(t, core.StateDone, final.State)
	assert.False(t, final.Labels.Has(core.LabelEvaluating))
}

func TestApp_Route(t *testing.T) {
	tr := inmemory.New()
	tr.Put(testutil.NewTaskBuilder("t1").Title("spec out the forgot password screen").Build())

	primary := model.NewScriptedModel("not valid json at all")
	app := newApp(t, tr, Models{Primary: primary})

	task, decision, err := app.Route(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", task.ID)
	assert.Equal(t, "GPT4", decision.Agent)
	assert.Equal(t, core.SourceFallbackDefault, decision.Source)

	_, _, err = app.Route(context.Background(), "missing")
	var trackerErr *core.TrackerError
	assert.ErrorAs(t, err, &trackerErr)
}

func TestApp_ServedByWebhook(t *testing.T) {
	tr := inmemory.New()
	tr.Put(testutil.NewTaskBuilder("t1").Title("Fix typo").State(core.StateTodo).Labels("Agent:GPT4").Assignee(botID).Build())

	app := newApp(t, tr, Models{Primary: model.NewScriptedModel("Done.")})
	srv := webhook.New(app, func(o *webhook.Options) { o.Synchronous = true })

	req := httptest.NewRequest(http.MethodPost, "/webhooks/linear",
		bytes.NewReader(testutil.NewEventBuilder("t1").AssignedTo(botID).JSON()))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	final, _ := tr.Snapshot("t1")
	assert.Equal(t, core.StateInReview, final.State)
	assert.Equal(t, "Done.", final.Description)
}

func TestNewModels(t *testing.T) {
	models, err := NewModels(&config.Env{LLMEnv: config.LLMEnv{
		Provider:        config.ProviderOpenAI,
		OpenAIAPIKey:    "sk-test",
		OpenAIModel:     "gpt-4o",
		OpenAIFastModel: "gpt-4o-mini",
	}})
	require.NoError(t, err)
	assert.Equal(t, model.Info{Name: "gpt-4o", Provider: "openai"}, models.Primary.Info())
	assert.Equal(t, model.Info{Name: "gpt-4o-mini", Provider: "openai"}, models.Fast.Info())

	models, err = NewModels(&config.Env{LLMEnv: config.LLMEnv{
		Provider:        config.ProviderAnthropic,
		AnthropicAPIKey: "sk-ant-test",
		AnthropicModel:  "claude-3-5-haiku-latest",
	}})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", models.Primary.Info().Provider)
	assert.Equal(t, "claude-3-5-haiku-latest", models.Primary.Info().Name)
	assert.Nil(t, models.Fast)

	_, err = NewModels(&config.Env{LLMEnv: config.LLMEnv{Provider: "cohere"}})
	assert.Error(t, err)
}
