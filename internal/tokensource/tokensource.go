package tokensource

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ErrNoCredentials is returned by New when neither an API key nor a client
// ID is configured.
var ErrNoCredentials = errors.New("no upstream credentials configured")

// Config selects the credential kind. ClientID takes precedence over APIKey.
type Config struct {
	APIKey string

	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

// Option configures New.
type Option func(*options)

type options struct {
	transport http.RoundTripper
}

// WithTransport sets the transport used for token endpoint requests.
func WithTransport(transport http.RoundTripper) Option {
	return func(o *options) {
		o.transport = transport
	}
}

// New returns a token source for cfg. For client credentials, ctx governs
// token endpoint requests for the lifetime of the source and should not be
// request-scoped.
func New(ctx context.Context, cfg Config, opts ...Option) (oauth2.TokenSource, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	switch {
	case cfg.ClientID != "":
		if cfg.TokenURL == "" {
			return nil, errors.New("client credentials require a token URL")
		}
		if o.transport != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: o.transport})
		}
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		return cc.TokenSource(ctx), nil
	case cfg.APIKey != "":
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIKey}), nil
	default:
		return nil, ErrNoCredentials
	}
}
