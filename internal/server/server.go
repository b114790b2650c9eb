// Package server exposes answers over HTTP, as JSON or as a server-sent
// event stream of partial answers.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/florianilch/distill/internal/completion"
	"github.com/florianilch/distill/internal/observability"
	"github.com/florianilch/distill/internal/observability/middleware"
)

// Answerer produces an answer for a conversation. A non-nil onPartial
// requests streaming; it receives throttled partial answers.
type Answerer interface {
	Ask(ctx context.Context, messages []completion.Message, onPartial completion.PartialFunc) (string, error)
}

// ReadinessChecker reports whether the application can serve traffic.
type ReadinessChecker interface {
	IsReady() bool
}

// Server serves the answers API, health probes and metrics.
type Server struct {
	handler         http.Handler
	httpServer      *http.Server
	logger          *slog.Logger
	maxRequestBytes int64
}

// Compile-time check to ensure Server implements http.Handler
var _ http.Handler = (*Server)(nil)

// Option configures a Server.
type Option func(*Server)

// WithMaxRequestBytes limits the size of answer request bodies.
func WithMaxRequestBytes(n int64) Option {
	return func(s *Server) {
		s.maxRequestBytes = n
	}
}

// WithLogger sets the access logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a Server backed by answerer.
func New(answerer Answerer, health ReadinessChecker, opts ...Option) (*Server, error) {
	if answerer == nil {
		return nil, errors.New("answerer is required")
	}
	if health == nil {
		return nil, errors.New("readiness checker is required")
	}

	s := &Server{
		maxRequestBytes: 1 << 20,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	answers := &AnswersHandler{Answerer: answerer}

	mux := http.NewServeMux()
	mux.Handle("POST /v1/answers", applyMiddlewares(answers,
		middleware.Metrics("/v1/answers"),
		RequestSizeLimit(s.maxRequestBytes),
	))
	mux.Handle("GET /health/live", livenessHandler())
	mux.Handle("GET /health/ready", readinessHandler(health))
	mux.Handle("GET /metrics", observability.MetricsHandler())

	// Recovery is outermost; the logging middleware re-panics after
	// recording the failure.
	s.handler = applyMiddlewares(mux,
		Recovery,
		middleware.RequestIDGeneration,
		middleware.Logging(s.logger),
		middleware.RequestIDPropagation,
		middleware.TraceContextExtraction,
	)

	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Start listens on addr and serves in the background. Listen errors are
// returned directly; serve errors are delivered on the returned channel,
// which is closed when serving stops.
func (s *Server) Start(ctx context.Context, addr string) (<-chan error, error) {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			// Detached so in-flight answers finish during graceful shutdown.
			return context.WithoutCancel(ctx)
		},
	}

	slog.InfoContext(ctx, "server listening", "addr", listener.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	return errCh, nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
