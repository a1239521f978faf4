package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/autopm/core"
	"github.com/hupe1980/autopm/internal/util"
	"github.com/hupe1980/autopm/logging"
	"github.com/hupe1980/autopm/tool"
)

// DefaultMaxToolSteps bounds the number of model turns in the tool loop.
const DefaultMaxToolSteps = 8

// ToolsOptions configures NewToolsHandler.
type ToolsOptions struct {
	// MaxSteps is the maximum number of model turns before the loop gives up.
	MaxSteps int
	Logger   logging.Logger
}

type toolStep struct {
	Thought string         `json:"thought"`
	Tool    string         `json:"tool"`
	Input   map[string]any `json:"input"`
	Answer  *string        `json:"answer"`
}

type toolDescription struct {
	Name        string
	Description string
	Parameters  any
}

// NewToolsHandler returns a completion handler that escalates to a function
// calling loop over tools when the model declines to answer directly. Each
// loop turn the model either calls one tool or gives the final answer; the
// result is the recorded reasoning followed by that answer. Running out of
// turns or declining inside the loop declines the task.
func NewToolsHandler(llm core.TextCompletionService, tools *tool.Set, optFns ...func(o *ToolsOptions)) Handler {
	opts := ToolsOptions{
		MaxSteps: DefaultMaxToolSteps,
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxSteps < 1 {
		opts.MaxSteps = 1
	}

	return func(ctx context.Context, task core.Task, _ core.Capabilities) (string, error) {
		out, declined, err := complete(ctx, llm, task)
		if err != nil || !declined {
			return out, err
		}
		opts.Logger.Info("escalating to tools", "task", task.ID, "tools", tools.Len())
		return runToolLoop(ctx, llm, tools, task, opts)
	}
}

func runToolLoop(ctx context.Context, llm core.TextCompletionService, tools *tool.Set, task core.Task, opts ToolsOptions) (string, error) {
	descs := make([]toolDescription, 0, tools.Len())
	for _, t := range tools.Tools() {
		descs = append(descs, toolDescription{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()})
	}
	prompt, err := util.RenderTemplate("tools", toolsPrompt, map[string]any{
		"Title":         task.Title,
		"Content":       task.Content(),
		"Tools":         descs,
		"DeclineMarker": DeclineMarker,
	})
	if err != nil {
		return "", err
	}

	messages := []core.Message{core.UserMessage(prompt)}
	var reasoning strings.Builder

	for i := 0; i < opts.MaxSteps; i++ {
		raw, err := llm.Complete(ctx, messages)
		if err != nil {
			return "", err
		}
		messages = append(messages, core.AssistantMessage(raw))

		step, err := parseToolStep(raw)
		if err != nil {
			opts.Logger.Warn("unusable tool step", "task", task.ID, "error", err)
			messages = append(messages, core.UserMessage("Observation: "+err.Error()+". Reply with a single JSON object."))
			continue
		}
		if step.Thought != "" {
			fmt.Fprintf(&reasoning, "Thought: %s\n", step.Thought)
		}

		if step.Answer != nil {
			answer := strings.TrimSpace(*step.Answer)
			if answer == "" || isDecline(answer) {
				return "", nil
			}
			return formatReasoning(reasoning.String(), answer), nil
		}

		observation := observe(ctx, tools, step, opts.Logger)
		input, _ := json.Marshal(step.Input)
		fmt.Fprintf(&reasoning, "Action: %s %s\nObservation: %s\n\n", step.Tool, input, observation)
		messages = append(messages, core.UserMessage("Observation: "+observation))
	}

	opts.Logger.Warn("tool loop exhausted", "task", task.ID, "max_steps", opts.MaxSteps)
	return "", nil
}

func parseToolStep(raw string) (toolStep, error) {
	data, ok := util.ExtractJSONObject(raw)
	if !ok {
		return toolStep{}, &core.ModelOutputParseError{Raw: raw, Err: errors.New("no JSON object found")}
	}
	var step toolStep
	if err := json.Unmarshal(data, &step); err != nil {
		return toolStep{}, &core.ModelOutputParseError{Raw: raw, Err: err}
	}
	if step.Answer == nil && strings.TrimSpace(step.Tool) == "" {
		return toolStep{}, &core.ModelOutputParseError{Raw: raw, Err: errors.New(`step has neither "tool" nor "answer"`)}
	}
	return step, nil
}

// observe runs the requested tool. Tool failures are reported back to the
// model as observations rather than failing the handler.
func observe(ctx context.Context, tools *tool.Set, step toolStep, logger logging.Logger) string {
	result, err := tools.Call(ctx, strings.TrimSpace(step.Tool), step.Input)
	if err != nil {
		logger.Warn("tool call failed", "tool", step.Tool, "error", err)
		return "error: " + err.Error()
	}
	logger.Debug("tool call succeeded", "tool", step.Tool)

	if s, ok := result.(string); ok {
		return s
	}
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(b)
}

func formatReasoning(reasoning, answer string) string {
	return "Agent Reasoning\n\n" + strings.TrimSpace(reasoning) + "\n\n---------\n\n" + answer
}
