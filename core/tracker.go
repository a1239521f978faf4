package core

import "context"

// TrackerClient is the issue tracker capability. Every method is a network
// call that may fail with a transport error or a *TrackerError carrying the
// tracker's structured error payload.
type TrackerClient interface {
	GetTask(ctx context.Context, id string) (Task, error)
	UpdateTask(ctx context.Context, id string, update TaskUpdate) (Task, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]Task, error)
	CreateTask(ctx context.Context, input TaskInput) (Task, error)
	// AssignTask sets the assignee; a nil assigneeID unassigns the task.
	AssignTask(ctx context.Context, id string, assigneeID *string) error
	ListLabels(ctx context.Context) ([]Label, error)
}

// Capabilities is the capability bag injected into handlers. Handlers that
// create sub-tasks need the tracker; others ignore it.
type Capabilities struct {
	Tracker TrackerClient
}
