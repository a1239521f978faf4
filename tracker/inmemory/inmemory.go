// Package inmemory provides a process-local core.TrackerClient. It backs the
// CLI's dry-run mode and the package tests of the router, handlers and
// lifecycle controller.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/autopm/core"
)

// Operation names used for call recording and failure injection.
const (
	OpGetTask    = "GetTask"
	OpUpdateTask = "UpdateTask"
	OpListTasks  = "ListTasks"
	OpCreateTask = "CreateTask"
	OpAssignTask = "AssignTask"
	OpListLabels = "ListLabels"
)

// Call records one invocation against the tracker.
type Call struct {
	Op     string
	TaskID string
	Update core.TaskUpdate
}

// Options configures a Tracker.
type Options struct {
	// Labels is the initial workspace label vocabulary.
	Labels []core.Label
	// IdentifierPrefix is used for identifiers of created tasks ("ENG").
	IdentifierPrefix string
}

// Tracker is a mutex protected in-memory issue store. Reads return clones so
// callers never share label slices with the store.
type Tracker struct {
	mu       sync.Mutex
	opts     Options
	tasks    map[string]core.Task
	order    []string
	labels   []core.Label
	states   map[string]string // workflow state id -> name
	calls    []Call
	failures map[string][]error
	seq      int
}

// New creates an empty Tracker.
func New(optFns ...func(o *Options)) *Tracker {
	opts := Options{
		IdentifierPrefix: "MEM",
		Labels: []core.Label{
			{ID: "label-running", Name: core.LabelRunning},
			{ID: "label-evaluating", Name: core.LabelEvaluating},
		},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Tracker{
		opts:     opts,
		tasks:    make(map[string]core.Task),
		labels:   append([]core.Label(nil), opts.Labels...),
		states:   make(map[string]string),
		failures: make(map[string][]error),
	}
}

// Put inserts or replaces tasks. Labels carried by the tasks are added to the
// vocabulary when missing.
func (t *Tracker) Put(tasks ...core.Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, task := range tasks {
		task = task.Clone()
		for i, l := range task.Labels {
			task.Labels[i] = t.ensureLabel(l)
		}
		if task.State != "" && task.StateName == "" {
			task.StateName = task.State.DisplayName()
		}
		if task.StateName != "" && task.StateID == "" {
			task.StateID = stateIDFor(task.StateName)
		}
		if task.StateID != "" {
			t.states[task.StateID] = task.StateName
		}
		if _, exists := t.tasks[task.ID]; !exists {
			t.order = append(t.order, task.ID)
		}
		t.tasks[task.ID] = task
	}
}

// AddLabels extends the label vocabulary.
func (t *Tracker) AddLabels(labels ...core.Label) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, l := range labels {
		t.ensureLabel(l)
	}
}

// Snapshot returns a copy of the task with the given id.
func (t *Tracker) Snapshot(id string) (core.Task, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	task, ok := t.tasks[id]
	return task.Clone(), ok
}

// Fail makes the next invocations of op return the given errors, one per call.
func (t *Tracker) Fail(op string, errs ...error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures[op] = append(t.failures[op], errs...)
}

// Calls returns every recorded call in order.
func (t *Tracker) Calls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Call(nil), t.calls...)
}

// CallCount returns how often op was invoked.
func (t *Tracker) CallCount(op string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, c := range t.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// GetTask implements core.TrackerClient.
func (t *Tracker) GetTask(_ context.Context, id string) (core.Task, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.record(Call{Op: OpGetTask, TaskID: id}); err != nil {
		return core.Task{}, err
	}
	task, ok := t.tasks[id]
	if !ok {
		return core.Task{}, notFound(OpGetTask, id)
	}
	return task.Clone(), nil
}

// UpdateTask implements core.TrackerClient.
func (t *Tracker) UpdateTask(_ context.Context, id string, update core.TaskUpdate) (core.Task, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.record(Call{Op: OpUpdateTask, TaskID: id, Update: update}); err != nil {
		return core.Task{}, err
	}
	task, ok := t.tasks[id]
	if !ok {
		return core.Task{}, notFound(OpUpdateTask, id)
	}

	if update.LabelIDs != nil {
		labels := make(core.Labels, 0, len(update.LabelIDs))
		for _, lid := range update.LabelIDs {
			l, ok := t.labelByID(lid)
			if !ok {
				return core.Task{}, invalidInput(fmt.Sprintf("label %s not found", lid))
			}
			labels = append(labels, l)
		}
		task.Labels = labels
	}
	// Deltas apply to the stored set under mu, mirroring the tracker's
	// addedLabelIds/removedLabelIds semantics.
	for _, lid := range update.AddedLabelIDs {
		l, ok := t.labelByID(lid)
		if !ok {
			return core.Task{}, invalidInput(fmt.Sprintf("label %s not found", lid))
		}
		if !task.Labels.Has(l.Name) {
			task.Labels = task.Labels.With(l)
		}
	}
	for _, lid := range update.RemovedLabelIDs {
		kept := task.Labels[:0:0]
		for _, l := range task.Labels {
			if l.ID != lid {
				kept = append(kept, l)
			}
		}
		task.Labels = kept
	}
	if update.Title != nil {
		task.Title = *update.Title
	}
	if update.Description != nil {
		task.Description = *update.Description
	}
	if update.Priority != nil {
		task.Priority = *update.Priority
	}
	switch {
	case update.StateID != nil:
		name, ok := t.states[*update.StateID]
		if !ok {
			return core.Task{}, invalidInput(fmt.Sprintf("workflow state %s not found", *update.StateID))
		}
		task.State, _ = core.ParseLifecycleState(name)
		task.StateName = name
		task.StateID = *update.StateID
	case update.State != nil:
		t.setState(&task, *update.State)
	}
	if update.ParentID != nil {
		task.ParentID = *update.ParentID
	}
	if update.AssigneeID != nil {
		task.AssigneeID = *update.AssigneeID
	}

	t.tasks[id] = task
	return task.Clone(), nil
}

// ListTasks implements core.TrackerClient. Results follow insertion order.
func (t *Tracker) ListTasks(_ context.Context, filter core.TaskFilter) ([]core.Task, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.record(Call{Op: OpListTasks, TaskID: filter.ParentID}); err != nil {
		return nil, err
	}
	var out []core.Task
	for _, id := range t.order {
		task := t.tasks[id]
		if filter.ParentID != "" && task.ParentID != filter.ParentID {
			continue
		}
		out = append(out, task.Clone())
	}
	return out, nil
}

// CreateTask implements core.TrackerClient.
func (t *Tracker) CreateTask(_ context.Context, input core.TaskInput) (core.Task, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.record(Call{Op: OpCreateTask, TaskID: input.ParentID}); err != nil {
		return core.Task{}, err
	}
	if input.ParentID != "" {
		if _, ok := t.tasks[input.ParentID]; !ok {
			return core.Task{}, notFound(OpCreateTask, input.ParentID)
		}
	}

	t.seq++
	state := input.State
	if state == "" {
		state = core.StateBacklog
	}
	task := core.Task{
		ID:          fmt.Sprintf("created-%d", t.seq),
		Identifier:  fmt.Sprintf("%s-%d", t.opts.IdentifierPrefix, t.seq),
		Title:       input.Title,
		Description: input.Description,
		Priority:    input.Priority,
		ParentID:    input.ParentID,
	}
	t.setState(&task, state)
	t.tasks[task.ID] = task
	t.order = append(t.order, task.ID)
	return task.Clone(), nil
}

// AssignTask implements core.TrackerClient.
func (t *Tracker) AssignTask(_ context.Context, id string, assigneeID *string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var assignee string
	if assigneeID != nil {
		assignee = *assigneeID
	}
	if err := t.record(Call{Op: OpAssignTask, TaskID: id, Update: core.TaskUpdate{AssigneeID: &assignee}}); err != nil {
		return err
	}
	task, ok := t.tasks[id]
	if !ok {
		return notFound(OpAssignTask, id)
	}
	task.AssigneeID = assignee
	t.tasks[id] = task
	return nil
}

// ListLabels implements core.TrackerClient.
func (t *Tracker) ListLabels(context.Context) ([]core.Label, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.record(Call{Op: OpListLabels}); err != nil {
		return nil, err
	}
	out := append([]core.Label(nil), t.labels...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// record appends the call and pops a pending injected failure. Callers hold mu.
func (t *Tracker) record(c Call) error {
	t.calls = append(t.calls, c)
	if errs := t.failures[c.Op]; len(errs) > 0 {
		t.failures[c.Op] = errs[1:]
		return errs[0]
	}
	return nil
}

func (t *Tracker) labelByID(id string) (core.Label, bool) {
	for _, l := range t.labels {
		if l.ID == id {
			return l, true
		}
	}
	return core.Label{}, false
}

// ensureLabel returns the vocabulary entry for l, registering it when new.
// Callers hold mu.
func (t *Tracker) ensureLabel(l core.Label) core.Label {
	for _, known := range t.labels {
		if known.Name == l.Name {
			return known
		}
	}
	if l.ID == "" {
		l.ID = fmt.Sprintf("label-%d", len(t.labels)+1)
	}
	t.labels = append(t.labels, l)
	return l
}

// setState moves task to a lifecycle state and registers the backing
// workflow state. Callers hold mu.
func (t *Tracker) setState(task *core.Task, state core.LifecycleState) {
	task.State = state
	task.StateName = state.DisplayName()
	task.StateID = stateIDFor(task.StateName)
	t.states[task.StateID] = task.StateName
}

// stateIDFor derives a stable workflow state id from its name ("In Review"
// becomes "state-in-review").
func stateIDFor(name string) string {
	return "state-" + strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}

func invalidInput(msg string) error {
	return &core.TrackerError{Op: OpUpdateTask, Messages: []string{msg}, Codes: []string{"INVALID_INPUT"}}
}

func notFound(op, id string) error {
	return &core.TrackerError{Op: op, Messages: []string{fmt.Sprintf("entity %s not found", id)}, Codes: []string{"NOT_FOUND"}}
}
