package inmemory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/autopm/core"
)

func TestTracker_PutAndGet(t *testing.T) {
	tr := New()
	tr.Put(core.Task{ID: "t1", Title: "x", State: core.StateTodo, Labels: core.Labels{{Name: "Bug"}}})

	task, err := tr.GetTask(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "Todo", task.StateName)
	require.Len(t, task.Labels, 1)
	assert.NotEmpty(t, task.Labels[0].ID, "vocabulary assigns ids")

	task.Labels[0].Name = "mutated"
	again, _ := tr.Snapshot("t1")
	assert.Equal(t, "Bug", again.Labels[0].Name, "reads are clones")
}

func TestTracker_GetMissing(t *testing.T) {
	_, err := New().GetTask(context.Background(), "nope")
	var trErr *core.TrackerError
	require.ErrorAs(t, err, &trErr)
	assert.Equal(t, []string{"NOT_FOUND"}, trErr.Codes)
}

func TestTracker_UpdateTask(t *testing.T) {
	tr := New()
	tr.Put(core.Task{ID: "t1", Title: "x", State: core.StateTodo})
	ctx := context.Background()

	state := core.StateInReview
	desc := "result"
	task, err := tr.UpdateTask(ctx, "t1", core.TaskUpdate{
		State:       &state,
		Description: &desc,
		LabelIDs:    []string{"label-running"},
	})
	require.NoError(t, err)
	assert.Equal(t, core.StateInReview, task.State)
	assert.Equal(t, "In Review", task.StateName)
	assert.Equal(t, "result", task.Description)
	assert.Equal(t, []string{core.LabelRunning}, task.Labels.Names())

	_, err = tr.UpdateTask(ctx, "t1", core.TaskUpdate{LabelIDs: []string{"ghost"}})
	assert.Error(t, err)
}

func TestTracker_UpdateTask_LabelDeltas(t *testing.T) {
	tr := New()
	tr.Put(core.Task{ID: "t1", Title: "x", Labels: core.Labels{{Name: "Bug"}, {Name: core.LabelRunning}}})
	ctx := context.Background()

	task, err := tr.UpdateTask(ctx, "t1", core.TaskUpdate{
		AddedLabelIDs:   []string{"label-evaluating", "label-evaluating"},
		RemovedLabelIDs: []string{"label-running"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Bug", core.LabelEvaluating}, task.Labels.Names())

	task, err = tr.UpdateTask(ctx, "t1", core.TaskUpdate{RemovedLabelIDs: []string{"label-running"}})
	require.NoError(t, err)
	assert.Len(t, task.Labels, 2, "removing an absent label is a no-op")

	_, err = tr.UpdateTask(ctx, "t1", core.TaskUpdate{AddedLabelIDs: []string{"ghost"}})
	assert.Error(t, err)
}

func TestTracker_UpdateTask_RawStateID(t *testing.T) {
	tr := New()
	tr.Put(core.Task{ID: "t1", Title: "x", StateName: "Triage"})
	ctx := context.Background()

	task, err := tr.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, core.LifecycleState(""), task.State)
	assert.Equal(t, "state-triage", task.StateID)

	todo := core.StateTodo
	task, err = tr.UpdateTask(ctx, "t1", core.TaskUpdate{State: &todo})
	require.NoError(t, err)
	assert.Equal(t, "state-todo", task.StateID)

	raw := "state-triage"
	task, err = tr.UpdateTask(ctx, "t1", core.TaskUpdate{StateID: &raw})
	require.NoError(t, err)
	assert.Equal(t, core.LifecycleState(""), task.State)
	assert.Equal(t, "Triage", task.StateName)

	ghost := "state-ghost"
	_, err = tr.UpdateTask(ctx, "t1", core.TaskUpdate{StateID: &ghost})
	assert.Error(t, err)
}

func TestTracker_CreateAndList(t *testing.T) {
	tr := New(func(o *Options) { o.IdentifierPrefix = "ENG" })
	tr.Put(core.Task{ID: "p", Title: "parent"})
	ctx := context.Background()

	created, err := tr.CreateTask(ctx, core.TaskInput{Title: "child", ParentID: "p"})
	require.NoError(t, err)
	assert.Equal(t, "ENG-1", created.Identifier)
	assert.Equal(t, core.StateBacklog, created.State)

	children, err := tr.ListTasks(ctx, core.TaskFilter{ParentID: "p"})
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, created.ID, children[0].ID)

	all, err := tr.ListTasks(ctx, core.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = tr.CreateTask(ctx, core.TaskInput{Title: "orphan", ParentID: "missing"})
	assert.Error(t, err)
}

func TestTracker_AssignTask(t *testing.T) {
	tr := New()
	tr.Put(core.Task{ID: "t1", AssigneeID: "bot"})
	ctx := context.Background()

	require.NoError(t, tr.AssignTask(ctx, "t1", nil))
	task, _ := tr.Snapshot("t1")
	assert.Empty(t, task.AssigneeID)

	who := "alice"
	require.NoError(t, tr.AssignTask(ctx, "t1", &who))
	task, _ = tr.Snapshot("t1")
	assert.Equal(t, "alice", task.AssigneeID)
}

func TestTracker_FailInjection(t *testing.T) {
	tr := New()
	tr.Put(core.Task{ID: "t1"})
	boom := errors.New("boom")
	tr.Fail(OpGetTask, boom)

	_, err := tr.GetTask(context.Background(), "t1")
	assert.ErrorIs(t, err, boom)

	_, err = tr.GetTask(context.Background(), "t1")
	assert.NoError(t, err, "failures are consumed")
	assert.Equal(t, 2, tr.CallCount(OpGetTask))
}

func TestTracker_ListLabelsSorted(t *testing.T) {
	tr := New()
	tr.AddLabels(core.Label{Name: "Agent:GPT4"})

	labels, err := tr.ListLabels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Agent:GPT4", core.LabelEvaluating, core.LabelRunning}, core.Labels(labels).Names())
}
