package router

import (
	_ "embed"
	"encoding/json"

	"github.com/hupe1980/autopm/core"
	"github.com/hupe1980/autopm/internal/util"
)

//go:embed prompts/system.tmpl
var systemPrompt string

// PromptTask is the task as shown to the routing model. Internal
// identifiers are never included.
type PromptTask struct {
	Title  string   `json:"title"`
	Task   string   `json:"task"`
	Labels []string `json:"labels"`
}

// Prompt is a fully assembled decision prompt.
type Prompt struct {
	Messages []core.Message
	// Task is the content shown for the task: its description, or its title
	// when the description is absent.
	Task  string
	Input PromptTask
}

type example struct {
	task     PromptTask
	agent    string
	decision string
}

func newPromptTask(t core.Task) PromptTask {
	labels := make([]string, 0, len(t.Labels))
	for _, name := range t.Labels.Names() {
		if name == core.LabelRunning || name == core.LabelEvaluating {
			continue
		}
		labels = append(labels, name)
	}
	return PromptTask{Title: t.Title, Task: t.Content(), Labels: labels}
}

// BuildPrompt assembles the decision prompt for task.
func (r *Router) BuildPrompt(task core.Task) (Prompt, error) {
	descs := r.registry.DescribeAll()
	type agentLine struct{ Name, Description string }
	agents := make([]agentLine, 0, len(descs))
	for _, name := range r.registry.Names() {
		agents = append(agents, agentLine{Name: name, Description: descs[name]})
	}

	decompose := ""
	if r.registry.Has(r.opts.DecomposeHandler) {
		decompose = r.opts.DecomposeHandler
	}

	system, err := util.RenderTemplate("system", systemPrompt, map[string]any{
		"Agents":         agents,
		"DefaultAgent":   r.opts.DefaultHandler,
		"DecomposeAgent": decompose,
	})
	if err != nil {
		return Prompt{}, err
	}

	messages := []core.Message{core.SystemMessage(system)}
	for _, ex := range r.examples(decompose) {
		user, err := json.Marshal(ex.task)
		if err != nil {
			return Prompt{}, err
		}
		answer, err := json.Marshal(map[string]string{"agent": ex.agent, "rationale": ex.decision})
		if err != nil {
			return Prompt{}, err
		}
		messages = append(messages, core.UserMessage(string(user)), core.AssistantMessage(string(answer)))
	}

	input := newPromptTask(task)
	payload, err := json.Marshal(input)
	if err != nil {
		return Prompt{}, err
	}
	messages = append(messages, core.UserMessage(string(payload)))

	return Prompt{Messages: messages, Task: input.Task, Input: input}, nil
}

// examples returns the few-shot pairs. The override example points at a
// handler other than the default so it demonstrates a real choice.
func (r *Router) examples(decompose string) []example {
	var out []example
	if decompose != "" {
		out = append(out, example{
			task:     PromptTask{Title: "Improve onboarding", Task: "Improve onboarding", Labels: []string{}},
			agent:    decompose,
			decision: "The task is vague and needs to be broken down into concrete sub-tasks first.",
		})
	}

	out = append(out, example{
		task: PromptTask{
			Title:  "Write release notes for v2.3",
			Task:   "Summarize the three merged features (dark mode, CSV export, SSO) as customer facing release notes in markdown.",
			Labels: []string{"docs"},
		},
		agent:    r.opts.DefaultHandler,
		decision: "The task is well specified and can be completed directly.",
	})

	override := r.opts.DefaultHandler
	for _, n := range r.registry.Names() {
		if n != r.opts.DefaultHandler && n != decompose {
			override = n
			break
		}
	}
	out = append(out, example{
		task: PromptTask{
			Title:  "Draft a tweet announcing the beta",
			Task:   "Draft a tweet announcing the public beta. Please let " + override + " handle this one.",
			Labels: []string{core.OverridePrefix + override},
		},
		agent:    override,
		decision: "The task explicitly requests this agent through its label.",
	})

	return out
}
