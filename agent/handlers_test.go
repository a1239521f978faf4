package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/autopm/core"
	"github.com/hupe1980/autopm/model"
	"github.com/hupe1980/autopm/tool"
	"github.com/hupe1980/autopm/tracker/inmemory"
)

func TestCompletionHandler(t *testing.T) {
	llm := model.NewScriptedModel("  Here is the copy.  ")
	h := NewCompletionHandler(llm)

	out, err := h(context.Background(), core.Task{Title: "Write landing copy"}, core.Capabilities{})
	require.NoError(t, err)
	assert.Equal(t, "Here is the copy.", out)

	calls := llm.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0][0].Content, "You have been given this task")
	assert.Contains(t, calls[0][0].Content, "Write landing copy")
}

func TestCompletionHandler_Declined(t *testing.T) {
	h := NewCompletionHandler(model.NewScriptedModel("[declined]"))

	out, err := h(context.Background(), core.Task{Title: "Fly to Mars"}, core.Capabilities{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCompletionHandler_ModelError(t *testing.T) {
	llm := model.NewScriptedModel().EnqueueError(errors.New("rate limited"))
	h := NewCompletionHandler(llm)

	_, err := h(context.Background(), core.Task{Title: "x"}, core.Capabilities{})
	assert.EqualError(t, err, "rate limited")
}

func TestDecompositionHandler(t *testing.T) {
	tr := inmemory.New()
	tr.Put(
		core.Task{ID: "parent", Identifier: "ENG-1", Title: "Launch", State: core.StateTodo},
		core.Task{ID: "t1", Identifier: "ENG-2", Title: "Build a macOS app", ParentID: "parent", State: core.StateTodo},
		core.Task{ID: "t2", Identifier: "ENG-3", Title: "Write docs", ParentID: "parent", State: core.StateDone},
		core.Task{ID: "c1", Identifier: "ENG-4", Title: "Existing child", ParentID: "t1", State: core.StateBacklog},
	)

	llm := model.NewScriptedModel("Sure!\n```json\n" +
		`[{"title": "Research distribution", "description": "App Store vs direct"},` +
		`{"title": "Package as dmg", "description": "Create installer"},` +
		`{"title": "  ", "description": "dropped"}]` +
		"\n```")
	h := NewDecompositionHandler(llm)

	task, err := tr.GetTask(context.Background(), "t1")
	require.NoError(t, err)

	out, err := h(context.Background(), task, core.Capabilities{Tracker: tr})
	require.NoError(t, err)
	assert.Contains(t, out, "Research distribution")
	assert.Contains(t, out, "Package as dmg")

	prompt := llm.Calls()[0][0].Content
	assert.Contains(t, prompt, "Write docs", "siblings are shown")
	assert.NotContains(t, prompt, `"title": "Launch"`, "parent is not a sibling")
	assert.Contains(t, prompt, "Existing child")

	children, err := tr.ListTasks(context.Background(), core.TaskFilter{ParentID: "t1"})
	require.NoError(t, err)
	require.Len(t, children, 3)
	for _, c := range children[1:] {
		assert.Equal(t, core.StateBacklog, c.State)
		assert.Equal(t, "t1", c.ParentID)
	}
}

func TestDecompositionHandler_NoTracker(t *testing.T) {
	h := NewDecompositionHandler(model.NewScriptedModel("[]"))

	_, err := h(context.Background(), core.Task{ID: "t1"}, core.Capabilities{})
	assert.ErrorIs(t, err, ErrNoTracker)
}

func TestDecompositionHandler_Unparseable(t *testing.T) {
	tr := inmemory.New()
	tr.Put(core.Task{ID: "t1", Title: "x"})
	h := NewDecompositionHandler(model.NewScriptedModel("no idea"))

	_, err := h(context.Background(), core.Task{ID: "t1"}, core.Capabilities{Tracker: tr})
	var parseErr *core.ModelOutputParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestDecompositionHandler_NothingToCreate(t *testing.T) {
	tr := inmemory.New()
	tr.Put(core.Task{ID: "t1", Title: "x"})
	h := NewDecompositionHandler(model.NewScriptedModel("```[]```"))

	out, err := h(context.Background(), core.Task{ID: "t1"}, core.Capabilities{Tracker: tr})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestParseSubTasks(t *testing.T) {
	subs, err := ParseSubTasks(`[{"title":"a","description":"b"}]`)
	require.NoError(t, err)
	assert.Equal(t, []SubTask{{Title: "a", Description: "b"}}, subs)

	_, err = ParseSubTasks(`{"title":"a"}`)
	assert.Error(t, err)
}

func calculatorSet(t *testing.T) *tool.Set {
	t.Helper()
	s, err := tool.NewSet(tool.NewCalculator())
	require.NoError(t, err)
	return s
}

func TestToolsHandler_AnswersDirectly(t *testing.T) {
	llm := model.NewScriptedModel("Paris")
	h := NewToolsHandler(llm, calculatorSet(t))

	out, err := h(context.Background(), core.Task{Title: "Capital of France?"}, core.Capabilities{})
	require.NoError(t, err)
	assert.Equal(t, "Paris", out)
	assert.Equal(t, 1, llm.CallCount(), "no escalation without a decline")
}

func TestToolsHandler_EscalatesOnDecline(t *testing.T) {
	llm := model.NewScriptedModel(
		DeclineMarker,
		`{"thought": "I should multiply", "tool": "calculator", "input": {"expression": "37 * 91"}}`,
		"```json\n{\"thought\": \"The product is 3367\", \"answer\": \"37 * 91 = 3367\"}\n```",
	)
	h := NewToolsHandler(llm, calculatorSet(t))

	out, err := h(context.Background(), core.Task{Title: "Multiply", Description: "What is 37 * 91?"}, core.Capabilities{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Agent Reasoning"))
	assert.Contains(t, out, "Thought: I should multiply")
	assert.Contains(t, out, `Action: calculator {"expression":"37 * 91"}`)
	assert.Contains(t, out, "Observation: 3367")
	assert.True(t, strings.HasSuffix(out, "---------\n\n37 * 91 = 3367"))

	calls := llm.Calls()
	require.Len(t, calls, 3)
	assert.Contains(t, calls[1][0].Content, "calculator")
	assert.Contains(t, calls[1][0].Content, "What is 37 * 91?")
	last := calls[2][len(calls[2])-1]
	assert.Equal(t, core.RoleUser, last.Role)
	assert.Equal(t, "Observation: 3367", last.Content)
}

func TestToolsHandler_ToolErrorsAreObserved(t *testing.T) {
	llm := model.NewScriptedModel(
		DeclineMarker,
		`{"tool": "search", "input": {"q": "weather"}}`,
		`{"tool": "calculator", "input": {"expression": "1 / 0"}}`,
		`{"answer": "cannot divide by zero"}`,
	)
	h := NewToolsHandler(llm, calculatorSet(t))

	out, err := h(context.Background(), core.Task{Title: "x"}, core.Capabilities{})
	require.NoError(t, err)
	assert.Contains(t, out, tool.CodeNotFound)
	assert.Contains(t, out, "division by zero")
	assert.True(t, strings.HasSuffix(out, "cannot divide by zero"))
}

func TestToolsHandler_UnparsableStepIsRetried(t *testing.T) {
	llm := model.NewScriptedModel(DeclineMarker, "let me think about it", `{"answer": "done"}`)
	h := NewToolsHandler(llm, calculatorSet(t))

	out, err := h(context.Background(), core.Task{Title: "x"}, core.Capabilities{})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, "done"))

	calls := llm.Calls()
	require.Len(t, calls, 3)
	assert.Contains(t, calls[2][len(calls[2])-1].Content, "single JSON object")
}

func TestToolsHandler_DeclinesWhenLoopGivesUp(t *testing.T) {
	t.Run("declined in loop", func(t *testing.T) {
		llm := model.NewScriptedModel(DeclineMarker, `{"answer": "[declined]"}`)
		out, err := NewToolsHandler(llm, calculatorSet(t))(context.Background(), core.Task{Title: "x"}, core.Capabilities{})
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("step limit", func(t *testing.T) {
		llm := model.NewScriptedModel(DeclineMarker)
		llm.ReplyFunc = func([]core.Message) (string, error) {
			return `{"tool": "calculator", "input": {"expression": "1 + 1"}}`, nil
		}
		h := NewToolsHandler(llm, calculatorSet(t), func(o *ToolsOptions) { o.MaxSteps = 3 })

		out, err := h(context.Background(), core.Task{Title: "x"}, core.Capabilities{})
		require.NoError(t, err)
		assert.Empty(t, out)
		assert.Equal(t, 4, llm.CallCount())
	})
}

func TestToolsHandler_ModelErrorInLoop(t *testing.T) {
	llm := model.NewScriptedModel(DeclineMarker).EnqueueError(errors.New("rate limited"))
	h := NewToolsHandler(llm, calculatorSet(t))

	_, err := h(context.Background(), core.Task{Title: "x"}, core.Capabilities{})
	assert.EqualError(t, err, "rate limited")
}
