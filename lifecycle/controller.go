package lifecycle

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/hupe1980/autopm/core"
	"github.com/hupe1980/autopm/evaluation"
	"github.com/hupe1980/autopm/logging"
	"github.com/hupe1980/autopm/metrics"
	"github.com/hupe1980/autopm/tracker"
)

// Outcome summarizes how a webhook delivery was handled.
type Outcome string

const (
	OutcomeIgnored          Outcome = "ignored"
	OutcomeCompleted        Outcome = "completed"
	OutcomeDeclined         Outcome = "declined"
	OutcomeFailed           Outcome = "failed"
	OutcomeJudgedComplete   Outcome = "judged_complete"
	OutcomeJudgedIncomplete Outcome = "judged_incomplete"
)

// Transition names used in logs and metrics.
const (
	TransitionAssigned = "assigned"
	TransitionReview   = "review"
)

// Runner executes a task with an appropriate handler. *router.Router
// satisfies it.
type Runner interface {
	Run(ctx context.Context, task core.Task, caps core.Capabilities) (string, error)
}

// Judge decides whether a task in review is complete. *evaluation.Evaluator
// satisfies it.
type Judge interface {
	Judge(ctx context.Context, task core.Task, evidence []evaluation.Evidence) (bool, error)
}

// Options configures a Controller.
type Options struct {
	// AutomationUserID is the tracker identity whose assignment triggers
	// automated processing. Required.
	AutomationUserID string
	Logger           logging.Logger
	Metrics          metrics.Recorder
}

// Controller reacts to issue webhooks.
type Controller struct {
	tracker core.TrackerClient
	labels  *tracker.Labeler
	runner  Runner
	judge   Judge
	opts    Options
}

// New creates a Controller.
func New(client core.TrackerClient, runner Runner, judge Judge, optFns ...func(o *Options)) (*Controller, error) {
	opts := Options{
		Logger:  logging.NoOpLogger{},
		Metrics: metrics.Nop{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	switch {
	case client == nil:
		return nil, core.NewConfigurationError("controller requires a tracker client")
	case runner == nil:
		return nil, core.NewConfigurationError("controller requires a runner")
	case judge == nil:
		return nil, core.NewConfigurationError("controller requires a judge")
	case strings.TrimSpace(opts.AutomationUserID) == "":
		return nil, core.NewConfigurationError("automation user id is required")
	}

	return &Controller{
		tracker: client,
		labels:  tracker.NewLabeler(client),
		runner:  runner,
		judge:   judge,
		opts:    opts,
	}, nil
}

// Labeler exposes the controller's label editor, e.g. to invalidate its cache.
func (c *Controller) Labeler() *tracker.Labeler { return c.labels }

// HandleEvent applies the matching transition for ev. Events matching
// neither transition are acknowledged as ignored. The assigned transition is
// checked first.
func (c *Controller) HandleEvent(ctx context.Context, ev core.IssueEvent) (Outcome, error) {
	if !ev.IsIssueUpdate() {
		return OutcomeIgnored, nil
	}

	var (
		transition string
		run        func(context.Context, string) (Outcome, error)
	)
	switch {
	case c.isAssignment(ev):
		transition, run = TransitionAssigned, c.handleAssigned
	case isMoveToReview(ev):
		transition, run = TransitionReview, c.handleReview
	default:
		return OutcomeIgnored, nil
	}

	start := time.Now()
	outcome, err := run(ctx, ev.Data.ID)
	c.opts.Metrics.ObserveTransition(transition, string(outcome))

	args := []any{
		"transition", transition,
		"task", ev.Data.ID,
		"identifier", ev.Data.Identifier,
		"outcome", outcome,
		"duration", time.Since(start),
	}
	if err != nil {
		c.opts.Logger.Error("transition failed", append(args, "error", err)...)
	} else {
		c.opts.Logger.Info("transition finished", args...)
	}
	return outcome, err
}

func (c *Controller) isAssignment(ev core.IssueEvent) bool {
	return ev.Changed(core.FieldAssigneeID) && ev.Data.AssigneeID == c.opts.AutomationUserID
}

func isMoveToReview(ev core.IssueEvent) bool {
	if !ev.Changed(core.FieldStateID) {
		return false
	}
	state, ok := ev.Data.LifecycleState()
	return ok && state == core.StateInReview
}

// handleAssigned runs the assigned transition. Cleanup lives in a single
// deferred block and runs on a context detached from cancellation. Cleanup
// errors are joined onto the returned error without changing the outcome.
func (c *Controller) handleAssigned(ctx context.Context, taskID string) (outcome Outcome, err error) {
	var (
		prior     core.Task
		entered   bool
		labelled  bool
		succeeded bool
	)

	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)
		var errs []error

		if entered && !succeeded && prior.State != core.StateInProgress {
			if restore, ok := restoreState(prior); ok {
				if _, rerr := c.tracker.UpdateTask(cleanupCtx, taskID, restore); rerr != nil {
					errs = append(errs, rerr)
				}
			}
		}
		if labelled {
			if _, rerr := c.labels.Remove(cleanupCtx, taskID, core.LabelRunning); rerr != nil {
				errs = append(errs, rerr)
			}
		}
		if rerr := c.tracker.AssignTask(cleanupCtx, taskID, nil); rerr != nil {
			errs = append(errs, rerr)
		}

		if len(errs) > 0 {
			c.opts.Logger.Error("cleanup after assignment failed", "task", taskID, "error", errors.Join(errs...))
			err = errors.Join(append([]error{err}, errs...)...)
		}
	}()

	task, err := c.tracker.GetTask(ctx, taskID)
	if err != nil {
		return OutcomeFailed, err
	}
	prior = task

	labelled = true
	if _, err := c.labels.Add(ctx, taskID, core.LabelRunning); err != nil {
		return OutcomeFailed, err
	}

	entered = true
	if task.State != core.StateInProgress {
		inProgress := core.StateInProgress
		if _, err := c.tracker.UpdateTask(ctx, taskID, core.TaskUpdate{State: &inProgress}); err != nil {
			return OutcomeFailed, err
		}
	}

	result, err := c.runner.Run(ctx, task, core.Capabilities{Tracker: c.tracker})
	if err != nil {
		c.opts.Logger.Error("handler failed", "task", task.ID, "identifier", task.Ref(), "error", err)
		return OutcomeFailed, err
	}
	if strings.TrimSpace(result) == "" {
		c.opts.Logger.Warn("handler declined task", "task", task.ID, "identifier", task.Ref())
		return OutcomeDeclined, nil
	}

	inReview := core.StateInReview
	if _, err := c.tracker.UpdateTask(ctx, taskID, core.TaskUpdate{Description: &result, State: &inReview}); err != nil {
		return OutcomeFailed, err
	}
	succeeded = true
	return OutcomeCompleted, nil
}

// restoreState builds the update that puts a task back into the workflow
// state it had before the assigned transition. The raw state id is preferred
// so states outside the lifecycle set ("Triage") survive the round trip.
func restoreState(prior core.Task) (core.TaskUpdate, bool) {
	switch {
	case prior.StateID != "":
		id := prior.StateID
		return core.TaskUpdate{StateID: &id}, true
	case prior.State != "":
		state := prior.State
		return core.TaskUpdate{State: &state}, true
	default:
		return core.TaskUpdate{}, false
	}
}

// handleReview runs the review transition.
func (c *Controller) handleReview(ctx context.Context, taskID string) (outcome Outcome, err error) {
	task, err := c.tracker.GetTask(ctx, taskID)
	if err != nil {
		return OutcomeFailed, err
	}

	evidence, err := c.gatherEvidence(ctx, task)
	if err != nil {
		return OutcomeFailed, err
	}

	defer func() {
		if _, rerr := c.labels.Remove(context.WithoutCancel(ctx), taskID, core.LabelEvaluating); rerr != nil {
			c.opts.Logger.Error("removing evaluating label failed", "task", taskID, "error", rerr)
			err = errors.Join(err, rerr)
		}
	}()

	if _, err := c.labels.Add(ctx, taskID, core.LabelEvaluating); err != nil {
		return OutcomeFailed, err
	}

	complete, err := c.judge.Judge(ctx, task, evidence)
	if err != nil {
		return OutcomeFailed, err
	}
	if !complete {
		return OutcomeJudgedIncomplete, nil
	}

	done := core.StateDone
	if _, err := c.tracker.UpdateTask(ctx, taskID, core.TaskUpdate{State: &done}); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeJudgedComplete, nil
}

// gatherEvidence lists siblings (same parent, excluding the task) and
// children concurrently.
func (c *Controller) gatherEvidence(ctx context.Context, task core.Task) ([]evaluation.Evidence, error) {
	var siblings, children []core.Task

	p := pool.New().WithContext(ctx)
	if task.ParentID != "" {
		p.Go(func(ctx context.Context) error {
			all, err := c.tracker.ListTasks(ctx, core.TaskFilter{ParentID: task.ParentID})
			if err != nil {
				return err
			}
			for _, s := range all {
				if s.ID != task.ID {
					siblings = append(siblings, s)
				}
			}
			return nil
		})
	}
	p.Go(func(ctx context.Context) error {
		var err error
		children, err = c.tracker.ListTasks(ctx, core.TaskFilter{ParentID: task.ID})
		return err
	})
	if err := p.Wait(); err != nil {
		return nil, err
	}

	evidence := evaluation.NewEvidence(evaluation.RelationSibling, siblings...)
	return append(evidence, evaluation.NewEvidence(evaluation.RelationChild, children...)...), nil
}
