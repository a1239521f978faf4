package testutil

import (
	"github.com/hupe1980/autopm/core"
)

// TaskBuilder builds core.Task values for tests.
type TaskBuilder struct {
	t core.Task
}

// NewTaskBuilder creates a todo task with the given id.
func NewTaskBuilder(id string) *TaskBuilder {
	return &TaskBuilder{t: core.Task{ID: id, Identifier: "TST-" + id, Title: "Task " + id, State: core.StateTodo}}
}

// Title sets the title (chainable).
func (b *TaskBuilder) Title(s string) *TaskBuilder { b.t.Title = s; return b }

// Description sets the description (chainable).
func (b *TaskBuilder) Description(s string) *TaskBuilder { b.t.Description = s; return b }

// State sets the lifecycle state (chainable).
func (b *TaskBuilder) State(s core.LifecycleState) *TaskBuilder { b.t.State = s; return b }

// Parent sets the parent id (chainable).
func (b *TaskBuilder) Parent(id string) *TaskBuilder { b.t.ParentID = id; return b }

// Assignee sets the assignee (chainable).
func (b *TaskBuilder) Assignee(id string) *TaskBuilder { b.t.AssigneeID = id; return b }

// Labels appends labels by name (chainable).
func (b *TaskBuilder) Labels(names ...string) *TaskBuilder {
	for _, n := range names {
		b.t.Labels = b.t.Labels.With(core.Label{Name: n})
	}
	return b
}

// Build returns the constructed task.
func (b *TaskBuilder) Build() core.Task { return b.t.Clone() }
