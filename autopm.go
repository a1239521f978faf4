// Package autopm assembles the automated project manager: a handler registry
// built from the handler table, a router that picks a handler per task, a
// completion evaluator, and the lifecycle controller that reacts to tracker
// webhooks. Most programs build an App with New and pass it to
// webhook.New; cmd/autopm does exactly that.
package autopm

import (
	"context"
	"fmt"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/autopm/agent"
	"github.com/hupe1980/autopm/config"
	"github.com/hupe1980/autopm/core"
	"github.com/hupe1980/autopm/evaluation"
	"github.com/hupe1980/autopm/lifecycle"
	"github.com/hupe1980/autopm/logging"
	"github.com/hupe1980/autopm/metrics"
	"github.com/hupe1980/autopm/model"
	"github.com/hupe1980/autopm/model/anthropic"
	"github.com/hupe1980/autopm/model/openai"
	"github.com/hupe1980/autopm/router"
	"github.com/hupe1980/autopm/tool"
)

// Models holds the completion services handlers run on. Fast defaults to
// Primary when nil.
type Models struct {
	Primary model.Model
	Fast    model.Model
}

func (m Models) tier(name string) model.Model {
	if name == config.ModelFast && m.Fast != nil {
		return m.Fast
	}
	return m.Primary
}

// Options configures an App.
type Options struct {
	// AutomationUserID is the tracker identity that triggers processing.
	AutomationUserID string
	Logger           logging.Logger
	Metrics          metrics.Recorder
}

// App wires registry, router, evaluator and controller together.
type App struct {
	Registry   *agent.Registry
	Router     *router.Router
	Evaluator  *evaluation.Evaluator
	Controller *lifecycle.Controller

	tracker core.TrackerClient
}

// New builds an App. Every model call is recorded through opts.Metrics.
func New(client core.TrackerClient, models Models, table *config.HandlerTable, optFns ...func(o *Options)) (*App, error) {
	opts := Options{
		Logger:  logging.NoOpLogger{},
		Metrics: metrics.Nop{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if models.Primary == nil {
		return nil, core.NewConfigurationError("a primary model is required")
	}
	if table == nil {
		return nil, core.NewConfigurationError("a handler table is required")
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}

	models.Primary = model.Instrument(models.Primary, opts.Metrics)
	if models.Fast != nil {
		models.Fast = model.Instrument(models.Fast, opts.Metrics)
	}

	registry, err := BuildRegistry(table, models, logging.With(opts.Logger, "component", "agent"))
	if err != nil {
		return nil, err
	}

	r, err := router.New(registry, models.Primary, func(o *router.Options) {
		o.DefaultHandler = table.Default
		o.DecomposeHandler = table.DecomposeHandler()
		o.Logger = logging.With(opts.Logger, "component", "router")
		o.Metrics = opts.Metrics
	})
	if err != nil {
		return nil, err
	}

	evaluator := evaluation.New(models.Primary, func(o *evaluation.Options) {
		o.Logger = logging.With(opts.Logger, "component", "evaluation")
	})

	controller, err := lifecycle.New(client, r, evaluator, func(o *lifecycle.Options) {
		o.AutomationUserID = opts.AutomationUserID
		o.Logger = logging.With(opts.Logger, "component", "lifecycle")
		o.Metrics = opts.Metrics
	})
	if err != nil {
		return nil, err
	}

	return &App{
		Registry:   registry,
		Router:     r,
		Evaluator:  evaluator,
		Controller: controller,
		tracker:    client,
	}, nil
}

// HandleEvent forwards a webhook event to the lifecycle controller.
func (a *App) HandleEvent(ctx context.Context, ev core.IssueEvent) (lifecycle.Outcome, error) {
	return a.Controller.HandleEvent(ctx, ev)
}

// Route fetches a task and returns the routing decision without executing
// the handler.
func (a *App) Route(ctx context.Context, taskID string) (core.Task, core.RoutingDecision, error) {
	task, err := a.tracker.GetTask(ctx, taskID)
	if err != nil {
		return core.Task{}, core.RoutingDecision{}, fmt.Errorf("fetching task %s: %w", taskID, err)
	}

	decision, err := a.Router.Select(ctx, task)
	if err != nil {
		return task, core.RoutingDecision{}, err
	}

	return task, decision, nil
}

// BuildRegistry registers one handler per table row in table order. Tools
// handlers share a calculator tool set.
func BuildRegistry(table *config.HandlerTable, models Models, logger logging.Logger) (*agent.Registry, error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	tools, err := tool.NewSet(tool.NewCalculator())
	if err != nil {
		return nil, err
	}

	descs := make([]agent.Descriptor, 0, len(table.Handlers))

	for _, h := range table.Handlers {
		llm := models.tier(h.Model)

		var handler agent.Handler
		switch h.Kind {
		case config.KindCompletion:
			handler = agent.NewCompletionHandler(llm)
		case config.KindDecompose:
			handler = agent.NewDecompositionHandler(llm)
		case config.KindTools:
			handler = agent.NewToolsHandler(llm, tools, func(o *agent.ToolsOptions) {
				o.Logger = logging.With(logger, "handler", h.Name)
			})
		default:
			return nil, core.NewConfigurationError("handler %q has unknown kind %q", h.Name, h.Kind)
		}

		descs = append(descs, agent.Descriptor{Name: h.Name, Description: h.Description, Handler: handler})
	}

	return agent.NewRegistry(descs...)
}

// NewModels builds the provider's primary and fast models from env.
func NewModels(env *config.Env) (Models, error) {
	switch env.Provider {
	case config.ProviderOpenAI:
		primary := openai.NewModel(func(o *openai.Options) {
			o.Model = env.OpenAIModel
			o.APIKey = env.OpenAIAPIKey
		})
		fast := openai.NewModel(func(o *openai.Options) {
			o.Model = env.OpenAIFastModel
			o.APIKey = env.OpenAIAPIKey
		})
		return Models{Primary: primary, Fast: fast}, nil
	case config.ProviderAnthropic:
		primary := anthropic.NewModel(func(o *anthropic.Options) {
			if env.AnthropicModel != "" {
				o.Model = sdkanthropic.Model(env.AnthropicModel)
			}
			o.APIKey = env.AnthropicAPIKey
		})
		return Models{Primary: primary}, nil
	default:
		return Models{}, core.NewConfigurationError("unknown provider %q", env.Provider)
	}
}
