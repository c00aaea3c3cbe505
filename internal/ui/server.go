// Package ui serves a local preview of the pipelines a project generates:
// the pipeline list, each rendered module and its task graph, generation
// history, and a live status line fed by watch mode.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/dagforge/internal/emit"
	"github.com/leapstack-labs/dagforge/internal/engine"
	"github.com/leapstack-labs/dagforge/internal/state"
)

// Config holds configuration for the preview server.
type Config struct {
	Engine *engine.Engine
	// Store serves the history endpoints (optional).
	Store state.Store
	// Options are used for watch-mode regeneration; ConfigsDir and
	// OutputDir also locate records and artifacts for every request.
	Options       engine.Options
	Addr          string
	Watch         bool
	SessionSecret string
	Logger        *slog.Logger
}

// Server is the preview server.
type Server struct {
	engine   *engine.Engine
	store    state.Store
	opts     engine.Options
	addr     string
	watch    bool
	sessions sessions.Store
	emitter  *emit.Emitter
	notifier *Notifier
	logger   *slog.Logger
}

// NewServer creates a preview server.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	cookies := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	cookies.MaxAge(86400 * 30)
	cookies.Options.Path = "/"
	cookies.Options.HttpOnly = true
	cookies.Options.SameSite = http.SameSiteLaxMode

	return &Server{
		engine:   cfg.Engine,
		store:    cfg.Store,
		opts:     cfg.Options,
		addr:     cfg.Addr,
		watch:    cfg.Watch,
		sessions: cookies,
		emitter:  emit.New(emit.Config{OutputDir: cfg.Options.OutputDir, Logger: logger}),
		notifier: NewNotifier(),
		logger:   logger,
	}
}

// Notifier returns the server's event notifier.
func (s *Server) Notifier() *Notifier {
	return s.notifier
}

// Handler returns the router serving every page and API route.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		requestLogger(s.logger),
		middleware.Recoverer,
		middleware.Compress(5),
	)
	s.routes(r)
	return r
}

// Serve listens on the configured address until ctx is cancelled. With
// watch enabled, config changes regenerate the pipelines and notify every
// open update stream.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting preview server", "addr", ln.Addr().String())

	if s.watch {
		eg.Go(func() error {
			return s.engine.Watch(egctx, s.opts, s.onReport)
		})
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down preview server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func (s *Server) onReport(report *engine.Report, err error) {
	ev := eventFromReport(report, err, time.Now())
	if err != nil {
		s.logger.Error("regeneration failed", "error", err)
	} else {
		s.logger.Info("pipelines regenerated",
			"generated", ev.Counts.Generated,
			"unchanged", ev.Counts.Unchanged,
			"failed", ev.Counts.Failed)
	}
	s.notifier.Publish(ev)
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}
