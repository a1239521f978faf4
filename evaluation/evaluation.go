// Package evaluation judges whether a task that moved into review is complete.
//
// Unlike routing, which expects a JSON object, the judgement is binary and
// uses a textual marker: an answer containing IncompleteMarker means "not
// complete", anything else means "complete".
package evaluation

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/hupe1980/autopm/core"
	"github.com/hupe1980/autopm/internal/util"
	"github.com/hupe1980/autopm/logging"
)

// IncompleteMarker signals a "not complete" judgement. Matching is case-insensitive.
const IncompleteMarker = "[INCOMPLETE]"

//go:embed prompts/judge.tmpl
var judgePrompt string

// Relation describes how an evidence task relates to the judged task.
type Relation string

const (
	RelationSibling Relation = "sibling"
	RelationChild   Relation = "child"
)

// Evidence is a related task reduced to what the judgement needs.
type Evidence struct {
	Title    string   `json:"title"`
	State    string   `json:"state"`
	Relation Relation `json:"relation"`
}

// NewEvidence reduces tasks to evidence entries.
func NewEvidence(rel Relation, tasks ...core.Task) []Evidence {
	out := make([]Evidence, 0, len(tasks))
	for _, t := range tasks {
		state := t.StateName
		if state == "" {
			state = t.State.DisplayName()
		}
		out = append(out, Evidence{Title: t.Title, State: state, Relation: rel})
	}
	return out
}

// Options configures an Evaluator.
type Options struct {
	Logger logging.Logger
}

// Evaluator asks the completion service whether a task is complete.
type Evaluator struct {
	llm  core.TextCompletionService
	opts Options
}

// New creates an Evaluator.
func New(llm core.TextCompletionService, optFns ...func(o *Options)) *Evaluator {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Evaluator{llm: llm, opts: opts}
}

// Judge reports whether task is complete given the evidence. Completion
// service failures are returned; an empty answer counts as incomplete.
func (e *Evaluator) Judge(ctx context.Context, task core.Task, evidence []Evidence) (bool, error) {
	if evidence == nil {
		evidence = []Evidence{}
	}

	prompt, err := util.RenderTemplate("judge", judgePrompt, map[string]any{
		"Task": map[string]string{
			"title":       task.Title,
			"description": task.Content(),
		},
		"Evidence": evidence,
		"Marker":   IncompleteMarker,
	})
	if err != nil {
		return false, err
	}

	answer, err := e.llm.Complete(ctx, []core.Message{core.UserMessage(prompt)})
	if err != nil {
		return false, fmt.Errorf("judging task %s: %w", task.Ref(), err)
	}

	complete := IsComplete(answer)
	e.opts.Logger.Debug("completion judgement", "task", task.Ref(), "complete", complete, "evidence", len(evidence))
	return complete, nil
}

// IsComplete interprets a raw judgement answer.
func IsComplete(answer string) bool {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return false
	}
	return !strings.Contains(strings.ToUpper(answer), IncompleteMarker)
}
