package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/autopm/core"
	"github.com/hupe1980/autopm/internal/util"
)

// ErrNoTracker is returned by handlers that need a tracker capability when
// none was injected.
var ErrNoTracker = errors.New("tracker capability required")

// SubTask is one proposed child task.
type SubTask struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type taskSummary struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	State       string `json:"state,omitempty"`
}

func summarize(tasks []core.Task) []taskSummary {
	out := make([]taskSummary, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskSummary{Title: t.Title, Description: t.Description, State: t.StateName})
	}
	return out
}

// NewDecompositionHandler returns a handler that breaks a vague task into
// sub-tasks. The model sees the task, its siblings and its existing children
// and answers with a fenced JSON array; every entry becomes a child task in
// the backlog state. The result is a markdown list of the created tasks.
func NewDecompositionHandler(llm core.TextCompletionService) Handler {
	return func(ctx context.Context, task core.Task, caps core.Capabilities) (string, error) {
		if caps.Tracker == nil {
			return "", ErrNoTracker
		}

		var siblings []core.Task
		if task.ParentID != "" {
			all, err := caps.Tracker.ListTasks(ctx, core.TaskFilter{ParentID: task.ParentID})
			if err != nil {
				return "", fmt.Errorf("listing siblings: %w", err)
			}
			for _, s := range all {
				if s.ID != task.ID {
					siblings = append(siblings, s)
				}
			}
		}

		children, err := caps.Tracker.ListTasks(ctx, core.TaskFilter{ParentID: task.ID})
		if err != nil {
			return "", fmt.Errorf("listing children: %w", err)
		}

		prompt, err := util.RenderTemplate("decompose", decomposePrompt, map[string]any{
			"Task":     taskSummary{Title: task.Title, Description: task.Content()},
			"Siblings": summarize(siblings),
			"Children": summarize(children),
		})
		if err != nil {
			return "", err
		}

		out, err := llm.Complete(ctx, []core.Message{core.UserMessage(prompt)})
		if err != nil {
			return "", err
		}

		subTasks, err := ParseSubTasks(out)
		if err != nil {
			return "", err
		}
		if len(subTasks) == 0 {
			return "", nil
		}

		var sb strings.Builder
		sb.WriteString("Created sub-tasks:\n")
		for _, st := range subTasks {
			created, err := caps.Tracker.CreateTask(ctx, core.TaskInput{
				Title:       st.Title,
				Description: st.Description,
				State:       core.StateBacklog,
				ParentID:    task.ID,
			})
			if err != nil {
				return "", fmt.Errorf("creating sub-task %q: %w", st.Title, err)
			}
			fmt.Fprintf(&sb, "- %s %s\n", created.Ref(), created.Title)
		}

		return sb.String(), nil
	}
}

// ParseSubTasks extracts the JSON array of sub-tasks from raw model output.
// Entries without a title are dropped.
func ParseSubTasks(raw string) ([]SubTask, error) {
	data, ok := util.ExtractJSONArray(raw)
	if !ok {
		return nil, &core.ModelOutputParseError{Raw: raw, Err: errors.New("no JSON array found")}
	}

	var parsed []SubTask
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, &core.ModelOutputParseError{Raw: raw, Err: err}
	}

	out := parsed[:0]
	for _, st := range parsed {
		st.Title = strings.TrimSpace(st.Title)
		if st.Title == "" {
			continue
		}
		out = append(out, st)
	}
	return out, nil
}
