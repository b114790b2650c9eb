package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/sync/errgroup"

	"github.com/florianilch/distill/internal/completion"
	"github.com/florianilch/distill/internal/observability"
	"github.com/florianilch/distill/internal/observability/middleware"
	"github.com/florianilch/distill/internal/server"
	"github.com/florianilch/distill/internal/tokensource"
)

const (
	// anthropicVersion is sent with every Anthropic Messages request.
	anthropicVersion = "2023-06-01"
	// defaultAnthropicMaxTokens applies when max_tokens is unset, since the
	// Messages API requires it.
	defaultAnthropicMaxTokens = 4096
	// shutdownTimeout bounds graceful shutdown.
	shutdownTimeout = 5 * time.Second
)

// App wires configuration, credentials, the completion client and the
// HTTP server.
type App struct {
	cfg        Config
	client     *completion.Client
	extractors *completion.Extractors
	health     *Health
	server     *server.Server
}

// Compile-time check that App can back the HTTP server
var _ server.Answerer = (*App)(nil)

// Option configures New.
type Option func(*options)

type options struct {
	transport http.RoundTripper
	keyStore  APIKeyStore
	environ   func() []string
}

// WithTransport sets the base transport for upstream and token requests.
func WithTransport(transport http.RoundTripper) Option {
	return func(o *options) {
		o.transport = transport
	}
}

// WithKeyStore overrides the key store selected by the configuration.
func WithKeyStore(store APIKeyStore) Option {
	return func(o *options) {
		o.keyStore = store
	}
}

// WithEnviron sets the environment read by env key storage.
func WithEnviron(environ func() []string) Option {
	return func(o *options) {
		o.environ = environ
	}
}

// New validates cfg and creates an App. ctx scopes OAuth2 token refreshes
// and should live as long as the App.
func New(ctx context.Context, cfg Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	transport, err := newUpstreamTransport(ctx, cfg, o)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg: cfg,
		client: completion.NewClient(
			completion.WithHTTPClient(&http.Client{Transport: transport}),
			completion.WithTimeout(cfg.Request.Timeout),
			completion.WithMinUpdateInterval(cfg.Stream.MinUpdateInterval),
		),
		extractors: completion.PresetFor(cfg.Upstream.Format),
		health:     NewHealth(),
	}

	a.server, err = server.New(a, a.health, server.WithMaxRequestBytes(cfg.Server.MaxRequestBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	return a, nil
}

// newUpstreamTransport resolves credentials and wraps the base transport so
// every upstream request carries them. Without credentials requests are
// sent unauthenticated, which suits local model servers.
func newUpstreamTransport(ctx context.Context, cfg Config, o options) (http.RoundTripper, error) {
	tsCfg := tokensource.Config{
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		TokenURL:     cfg.Auth.TokenURL,
		Scopes:       cfg.Auth.Scopes,
	}

	scheme := tokensource.SchemeBearer
	if tsCfg.ClientID == "" {
		store := o.keyStore
		if store == nil {
			var err error
			if store, err = cfg.NewKeyStore(o.environ); err != nil {
				return nil, fmt.Errorf("failed to create key store: %w", err)
			}
		}
		key, err := store.Read(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read API key: %w", err)
		}
		tsCfg.APIKey = key

		if cfg.Upstream.Format == completion.FormatAnthropic {
			scheme = tokensource.SchemeAPIKey
		}
	}

	var tsOpts []tokensource.Option
	if o.transport != nil {
		tsOpts = append(tsOpts, tokensource.WithTransport(o.transport))
	}

	ts, err := tokensource.New(ctx, tsCfg, tsOpts...)
	if errors.Is(err, tokensource.ErrNoCredentials) {
		slog.WarnContext(ctx, "no upstream credentials configured, sending unauthenticated requests",
			"storage", cfg.Auth.Storage,
		)
		return o.transport, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create token source: %w", err)
	}

	return tokensource.NewTransport(ts, scheme, o.transport), nil
}

// Ask answers a conversation through the configured upstream. A non-nil
// onPartial requests a streamed response and receives partial answers.
func (a *App) Ask(ctx context.Context, messages []completion.Message, onPartial completion.PartialFunc) (string, error) {
	format, model := a.cfg.Upstream.Format, a.cfg.Upstream.Model

	maxTokens := a.cfg.Upstream.MaxTokens
	if maxTokens == 0 && format == completion.FormatAnthropic {
		maxTokens = defaultAnthropicMaxTokens
	}

	var sink completion.PartialFunc
	if onPartial != nil {
		partials := observability.PartialDeliveriesTotal.WithLabelValues(format)
		sink = func(ctx context.Context, partial string) error {
			partials.Inc()
			return onPartial(ctx, partial)
		}
	}

	body := completion.NewRequestBody(format, model, messages, sink != nil, maxTokens)

	start := time.Now()
	answer, err := a.client.RequestChatCompletion(ctx, a.cfg.Upstream.URL(), a.upstreamHeader(ctx, sink != nil), body, sink, a.extractors)
	elapsed := time.Since(start)

	outcome := outcomeOf(err)
	observability.UpstreamRequestsTotal.WithLabelValues(format, model, outcome).Inc()
	observability.UpstreamLatency.WithLabelValues(format, model).Observe(elapsed.Seconds())

	if err != nil {
		slog.WarnContext(ctx, "upstream request failed",
			"error", err,
			"outcome", outcome,
			"duration", elapsed,
		)
		return "", err
	}

	slog.DebugContext(ctx, "answer ready",
		"stream", sink != nil,
		"length", len(answer),
		"duration", elapsed,
	)
	return answer, nil
}

// upstreamHeader builds the per-request upstream headers: content
// negotiation, request ID and trace context.
func (a *App) upstreamHeader(ctx context.Context, stream bool) http.Header {
	header := http.Header{}
	if stream {
		header.Set("Accept", "text/event-stream")
	} else {
		header.Set("Accept", "application/json")
	}
	if a.cfg.Upstream.Format == completion.FormatAnthropic {
		header.Set("anthropic-version", anthropicVersion)
	}
	if id, ok := middleware.RequestIDFromContext(ctx); ok {
		header.Set(middleware.RequestIDHeader, id)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(header))
	return header
}

// outcomeOf classifies an Ask error for metrics.
func outcomeOf(err error) string {
	var (
		requestErr   *completion.RequestError
		transportErr *completion.TransportError
		buildErr     *completion.StreamBuildError
	)
	switch {
	case err == nil:
		return observability.OutcomeOK
	case errors.Is(err, completion.ErrTimeout):
		return observability.OutcomeTimeout
	case errors.As(err, &requestErr):
		return observability.OutcomeRequestError
	case errors.As(err, &transportErr):
		return observability.OutcomeTransportError
	case errors.As(err, &buildErr):
		return observability.OutcomeStreamError
	default:
		return observability.OutcomeTransportError
	}
}

// Start runs the HTTP server and blocks until ctx is cancelled or the
// server fails, then shuts down in reverse start order. Readiness is
// reported only while serving.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	var shutdownFuncs []func(context.Context) error

	slog.InfoContext(gCtx, "starting server",
		"upstream", a.cfg.UpstreamHost(),
		"format", a.cfg.Upstream.Format,
		"model", a.cfg.Upstream.Model,
	)
	serverErrCh, err := a.server.Start(gCtx, a.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("server startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.server.Shutdown)

	a.health.SetReady(true)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-serverErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "server runtime error", "error", err)
				return fmt.Errorf("server: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")
	a.health.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}
