package core

import "strings"

// LifecycleState is the fixed enumeration of task states understood by the
// orchestration engine. Tracker specific state names are normalized into this
// set via ParseLifecycleState.
type LifecycleState string

const (
	StateBacklog    LifecycleState = "backlog"
	StateTodo       LifecycleState = "todo"
	StateInProgress LifecycleState = "in_progress"
	StateInReview   LifecycleState = "in_review"
	StateDone       LifecycleState = "done"
	StateCancelled  LifecycleState = "cancelled"
)

// LifecycleStates lists every valid state in workflow order.
var LifecycleStates = []LifecycleState{
	StateBacklog,
	StateTodo,
	StateInProgress,
	StateInReview,
	StateDone,
	StateCancelled,
}

// Valid reports whether s is one of the known lifecycle states.
func (s LifecycleState) Valid() bool {
	for _, known := range LifecycleStates {
		if s == known {
			return true
		}
	}
	return false
}

// DisplayName returns the tracker facing name of the state ("In Progress").
func (s LifecycleState) DisplayName() string {
	switch s {
	case StateBacklog:
		return "Backlog"
	case StateTodo:
		return "Todo"
	case StateInProgress:
		return "In Progress"
	case StateInReview:
		return "In Review"
	case StateDone:
		return "Done"
	case StateCancelled:
		return "Canceled"
	default:
		return string(s)
	}
}

// ParseLifecycleState normalizes a tracker state name such as "In Progress",
// "in-review" or "Canceled" into a LifecycleState.
func ParseLifecycleState(name string) (LifecycleState, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)

	switch key {
	case "backlog":
		return StateBacklog, true
	case "todo", "to_do", "unstarted":
		return StateTodo, true
	case "in_progress", "started":
		return StateInProgress, true
	case "in_review", "review":
		return StateInReview, true
	case "done", "completed":
		return StateDone, true
	case "cancelled", "canceled":
		return StateCancelled, true
	default:
		return "", false
	}
}

// Task is the orchestration view of a tracker issue. It is created and
// mutated exclusively by the tracker; the engine only reads it and requests
// mutations through a TrackerClient.
type Task struct {
	ID          string         `json:"id"`
	Identifier  string         `json:"identifier,omitempty"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Priority    int            `json:"priority,omitempty"`
	Labels      Labels         `json:"labels,omitempty"`
	State       LifecycleState `json:"state"`
	StateName   string         `json:"stateName,omitempty"`
	StateID     string         `json:"stateId,omitempty"`
	ParentID    string         `json:"parentId,omitempty"`
	AssigneeID  string         `json:"assigneeId,omitempty"`
}

// Content returns the description, falling back to the title when the
// description is absent or blank.
func (t Task) Content() string {
	if strings.TrimSpace(t.Description) == "" {
		return t.Title
	}
	return t.Description
}

// Ref returns the most human friendly reference for logs: the identifier when
// known, otherwise the opaque id.
func (t Task) Ref() string {
	if t.Identifier != "" {
		return t.Identifier
	}
	return t.ID
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	c := t
	c.Labels = append(Labels(nil), t.Labels...)
	return c
}

// TaskUpdate carries a partial set of fields for TrackerClient.UpdateTask.
// Nil fields are left untouched.
//
// AddedLabelIDs and RemovedLabelIDs are applied by the tracker against its
// current label set, so concurrent edits of different labels do not
// overwrite each other. StateID names a raw workflow state and takes
// precedence over State.
type TaskUpdate struct {
	Title           *string
	Description     *string
	Priority        *int
	State           *LifecycleState
	StateID         *string
	LabelIDs        []string // replaces the full label set when non-nil
	AddedLabelIDs   []string
	RemovedLabelIDs []string
	ParentID        *string
	AssigneeID      *string
}

// IsEmpty reports whether the update carries no changes.
func (u TaskUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.Priority == nil &&
		u.State == nil && u.StateID == nil &&
		u.LabelIDs == nil && len(u.AddedLabelIDs) == 0 && len(u.RemovedLabelIDs) == 0 &&
		u.ParentID == nil && u.AssigneeID == nil
}

// TaskFilter narrows ListTasks results.
type TaskFilter struct {
	ParentID string
}

// TaskInput describes a task to create.
type TaskInput struct {
	Title       string
	Description string
	Priority    int
	State       LifecycleState
	ParentID    string
}
