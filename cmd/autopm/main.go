package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hupe1980/autopm"
	"github.com/hupe1980/autopm/config"
	"github.com/hupe1980/autopm/core"
	"github.com/hupe1980/autopm/logging"
	"github.com/hupe1980/autopm/metrics"
	"github.com/hupe1980/autopm/tracker/inmemory"
	"github.com/hupe1980/autopm/tracker/linear"
	"github.com/hupe1980/autopm/webhook"
)

const shutdownTimeout = 30 * time.Second

var (
	app = kingpin.New("autopm", "Automated project manager driven by issue tracker webhooks")

	serveCmd    = app.Command("serve", "Run the webhook server")
	serveDryRun = serveCmd.Flag("dry-run", "Use an in-memory tracker instead of Linear").Bool()

	routeCmd = app.Command("route", "Print the routing decision for an issue without executing it")
	routeID  = routeCmd.Arg("issue-id", "Issue ID").Required().String()

	handlersCmd = app.Command("handlers", "List the registered handlers")
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch command {
	case serveCmd.FullCommand():
		err = serve(ctx, *serveDryRun)
	case routeCmd.FullCommand():
		err = route(ctx, *routeID)
	case handlersCmd.FullCommand():
		err = listHandlers()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func load(requireTracker bool) (*config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(requireTracker); err != nil {
		return nil, nil, err
	}
	return cfg, logging.New(cfg.LogConfig()), nil
}

func newTracker(cfg *config.Config, dryRun bool) core.TrackerClient {
	if dryRun {
		return inmemory.New()
	}
	return linear.New(cfg.LinearAPIKey,
		linear.WithEndpoint(cfg.LinearEndpoint),
		linear.WithTeamID(cfg.LinearTeamID),
	)
}

func newApp(cfg *config.Config, tracker core.TrackerClient, logger logging.Logger, rec metrics.Recorder) (*autopm.App, error) {
	models, err := autopm.NewModels(cfg.Env)
	if err != nil {
		return nil, err
	}
	return autopm.New(tracker, models, cfg.Handlers, func(o *autopm.Options) {
		o.AutomationUserID = cfg.AutomationUserID
		o.Logger = logger
		o.Metrics = rec
	})
}

func serve(ctx context.Context, dryRun bool) error {
	cfg, logger, err := load(!dryRun)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a, err := newApp(cfg, newTracker(cfg, dryRun), logger, metrics.NewPrometheus(reg))
	if err != nil {
		return err
	}

	srv := webhook.New(a, func(o *webhook.Options) {
		o.Addr = cfg.Addr()
		o.CORSOrigins = cfg.CORSOrigins
		o.Gatherer = reg
		o.Logger = logging.With(logger, "component", "webhook")
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()

	logger.Info("autopm started", "addr", cfg.Addr(), "dry_run", dryRun, "handlers", a.Registry.Names())

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("autopm stopped gracefully")
	return nil
}

func route(ctx context.Context, issueID string) error {
	cfg, logger, err := load(true)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, newTracker(cfg, false), logger, metrics.Nop{})
	if err != nil {
		return err
	}

	task, decision, err := a.Route(ctx, issueID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"issue":    task.Ref(),
		"title":    task.Title,
		"decision": decision,
	})
}

func listHandlers() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tMODEL\tDESCRIPTION")
	for _, h := range cfg.Handlers.Handlers {
		name := h.Name
		if name == cfg.Handlers.Default {
			name += " (default)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, h.Kind, h.Model, h.Description)
	}
	return w.Flush()
}
