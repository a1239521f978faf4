package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/hupe1980/autopm/core"
	"github.com/hupe1980/autopm/internal/util"
	"github.com/hupe1980/autopm/lifecycle"
	"github.com/hupe1980/autopm/logging"
)

// DeliveryHeader carries the tracker's delivery id.
const DeliveryHeader = "Linear-Delivery"

// EventHandler processes one decoded webhook event.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev core.IssueEvent) (lifecycle.Outcome, error)
}

// Options configures a Server.
type Options struct {
	// Addr is the listen address, e.g. ":3100".
	Addr string
	// CORSOrigins lists the allowed origins.
	CORSOrigins []string
	// Gatherer enables GET /metrics when set.
	Gatherer prometheus.Gatherer
	// Synchronous processes deliveries before responding.
	Synchronous bool
	Logger      logging.Logger
}

// Server serves the webhook endpoint.
type Server struct {
	handler EventHandler
	opts    Options
	router  http.Handler

	wg conc.WaitGroup

	mu     sync.Mutex
	server *http.Server
}

// Accepted is the body of a 202 response.
type Accepted struct {
	Delivery string `json:"delivery"`
}

// New creates a Server dispatching deliveries to handler.
func New(handler EventHandler, optFns ...func(o *Options)) *Server {
	opts := Options{
		Addr:        ":3100",
		CORSOrigins: []string{"https://chat.openai.com", "http://localhost:3000"},
		Logger:      logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{handler: handler, opts: opts}
	s.router = s.routes()

	return s
}

// Handler returns the root HTTP handler including CORS.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer, s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if s.opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Post("/webhooks/linear", s.handleWebhook)

	return cors.New(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler(r)
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var ev core.IssueEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		s.opts.Logger.Warn("rejecting malformed webhook", "error", err)
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}

	id := r.Header.Get(DeliveryHeader)
	if id == "" {
		id = util.NewID()
	}

	// The request context ends with the response; deliveries must not.
	ctx := context.WithoutCancel(r.Context())

	if s.opts.Synchronous {
		s.process(ctx, id, ev)
	} else {
		s.wg.Go(func() { s.process(ctx, id, ev) })
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(Accepted{Delivery: id})
}

// process runs one delivery. Panics are logged and never escape.
func (s *Server) process(ctx context.Context, id string, ev core.IssueEvent) {
	log := logging.With(s.opts.Logger, "delivery", id, "issue_id", ev.Data.ID)

	var pc panics.Catcher
	pc.Try(func() {
		outcome, err := s.handler.HandleEvent(ctx, ev)
		if err != nil {
			log.Error("delivery failed", "outcome", string(outcome), "error", err)
			return
		}
		log.Debug("delivery processed", "outcome", string(outcome))
	})

	if r := pc.Recovered(); r != nil {
		log.Error("delivery panicked", "error", r.AsError())
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.opts.Logger.Debug(http.StatusText(ww.Status()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

// ListenAndServe starts the HTTP server. ctx is the base context of every
// request. It returns http.ErrServerClosed after Shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.mu.Lock()
	s.server = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}
	srv := s.server
	s.mu.Unlock()

	s.opts.Logger.Info("starting server", "addr", s.opts.Addr)

	return srv.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight deliveries or
// until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return err
	case <-ctx.Done():
		return errors.Join(err, fmt.Errorf("waiting for deliveries: %w", ctx.Err()))
	}
}

// Wait blocks until all background deliveries have finished.
func (s *Server) Wait() { s.wg.Wait() }
