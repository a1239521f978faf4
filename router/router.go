package router

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/panics"

	"github.com/hupe1980/autopm/agent"
	"github.com/hupe1980/autopm/core"
	"github.com/hupe1980/autopm/logging"
	"github.com/hupe1980/autopm/metrics"
)

// Options configures a Router.
type Options struct {
	// DefaultHandler receives tasks whenever model selection is unusable.
	DefaultHandler string
	// DecomposeHandler is the handler shown to the model for vague tasks.
	DecomposeHandler string
	Logger           logging.Logger
	Metrics          metrics.Recorder
}

// Router selects a handler for a task and dispatches to it.
type Router struct {
	registry *agent.Registry
	llm      core.TextCompletionService
	override *OverrideResolver
	parser   *DecisionParser
	opts     Options
}

// New creates a Router. The default handler must be registered.
func New(registry *agent.Registry, llm core.TextCompletionService, optFns ...func(o *Options)) (*Router, error) {
	opts := Options{
		DefaultHandler:   "GPT4",
		DecomposeHandler: "issue_creator",
		Logger:           logging.NoOpLogger{},
		Metrics:          metrics.Nop{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if registry == nil {
		return nil, core.NewConfigurationError("router requires a handler registry")
	}
	if !registry.Has(opts.DefaultHandler) {
		return nil, core.NewConfigurationError("default handler %q is not registered", opts.DefaultHandler)
	}
	if llm == nil {
		return nil, core.NewConfigurationError("router requires a completion service")
	}

	return &Router{
		registry: registry,
		llm:      llm,
		override: NewOverrideResolver(registry, opts.Logger),
		parser:   NewDecisionParser(registry, opts.DefaultHandler, opts.Logger),
		opts:     opts,
	}, nil
}

// Registry returns the handler registry the router dispatches to.
func (r *Router) Registry() *agent.Registry { return r.registry }

// Select decides which handler should process task. Override labels
// short-circuit the model; model or parse failures yield the fallback
// decision. Only a cancelled context produces an error.
func (r *Router) Select(ctx context.Context, task core.Task) (core.RoutingDecision, error) {
	if err := ctx.Err(); err != nil {
		return core.RoutingDecision{}, err
	}

	decision, err := r.selectDecision(ctx, task)
	if err != nil {
		return core.RoutingDecision{}, err
	}

	r.opts.Metrics.ObserveRoutingDecision(string(decision.Source), decision.Agent)
	r.opts.Logger.Info("routing decision",
		"task", task.Ref(),
		"agent", decision.Agent,
		"source", decision.Source,
		"rationale", decision.Rationale,
	)
	return decision, nil
}

func (r *Router) selectDecision(ctx context.Context, task core.Task) (core.RoutingDecision, error) {
	if name, ok := r.override.Resolve(task.Labels); ok {
		return core.RoutingDecision{
			Agent:     name,
			Rationale: "explicit " + core.OverridePrefix + name + " label",
			Source:    core.SourceExplicitLabel,
		}, nil
	}

	prompt, err := r.BuildPrompt(task)
	if err != nil {
		r.opts.Logger.Error("building decision prompt", "task", task.Ref(), "error", err)
		return r.parser.Fallback("prompt construction failed"), nil
	}

	raw, err := r.llm.Complete(ctx, prompt.Messages)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return core.RoutingDecision{}, ctxErr
		}
		r.opts.Logger.Warn("completion service failed during selection", "task", task.Ref(), "error", err)
		return r.parser.Fallback("completion service unavailable"), nil
	}

	return r.parser.Parse(raw), nil
}

// Dispatch runs the handler named by decision. Unknown names yield a
// *core.UnknownHandlerError; handler failures and panics are wrapped in a
// *core.HandlerExecutionError.
func (r *Router) Dispatch(ctx context.Context, task core.Task, decision core.RoutingDecision, caps core.Capabilities) (string, error) {
	handler, err := r.registry.Resolve(decision.Agent)
	if err != nil {
		return "", err
	}

	start := time.Now()
	var (
		out    string
		runErr error
		pc     panics.Catcher
	)
	pc.Try(func() { out, runErr = handler(ctx, task, caps) })
	if rec := pc.Recovered(); rec != nil {
		runErr = rec.AsError()
	}
	r.opts.Metrics.ObserveDispatch(decision.Agent, runErr, time.Since(start))

	if runErr != nil {
		return "", &core.HandlerExecutionError{Handler: decision.Agent, TaskID: task.Ref(), Err: runErr}
	}
	return out, nil
}

// Run selects and dispatches in one step.
func (r *Router) Run(ctx context.Context, task core.Task, caps core.Capabilities) (string, error) {
	decision, err := r.Select(ctx, task)
	if err != nil {
		return "", err
	}
	return r.Dispatch(ctx, task, decision, caps)
}
