package agent

import (
	"context"
	"strings"

	"github.com/hupe1980/autopm/core"
	"github.com/hupe1980/autopm/internal/util"
)

// DeclineMarker is the answer a model gives when it cannot complete a task.
const DeclineMarker = "[DECLINED]"

// NewCompletionHandler returns a handler that asks llm to accomplish the
// task directly. It uses no tools; the model's answer is the result.
func NewCompletionHandler(llm core.TextCompletionService) Handler {
	return func(ctx context.Context, task core.Task, _ core.Capabilities) (string, error) {
		out, _, err := complete(ctx, llm, task)
		return out, err
	}
}

// complete runs the single shot completion prompt. A declined answer is
// reported as ("", true, nil).
func complete(ctx context.Context, llm core.TextCompletionService, task core.Task) (string, bool, error) {
	prompt, err := util.RenderTemplate("complete", completePrompt, map[string]any{
		"Title":         task.Title,
		"Content":       task.Content(),
		"DeclineMarker": DeclineMarker,
	})
	if err != nil {
		return "", false, err
	}

	out, err := llm.Complete(ctx, []core.Message{core.UserMessage(prompt)})
	if err != nil {
		return "", false, err
	}

	out = strings.TrimSpace(out)
	if isDecline(out) {
		return "", true, nil
	}
	return out, false, nil
}

func isDecline(out string) bool {
	return strings.EqualFold(strings.TrimSpace(out), DeclineMarker)
}
