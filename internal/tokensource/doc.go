// Package tokensource supplies upstream credentials as an oauth2.TokenSource
// and attaches them to outgoing requests.
//
// Two credential kinds are supported:
//   - a static API key, served by oauth2.StaticTokenSource
//   - OAuth2 client credentials, exchanged and refreshed by
//     golang.org/x/oauth2/clientcredentials
//
// # Token Sources
//
//	ts, err := tokensource.New(ctx, tokensource.Config{APIKey: key})
//
// The source is cached and refreshed by the oauth2 package, so a single
// instance should be shared by all requests.
//
// # Transport
//
// NewTransport wraps a base RoundTripper and sets the credential on every
// request, either as "Authorization: Bearer <token>" or as the "x-api-key"
// header used by the Anthropic Messages API:
//
//	rt := tokensource.NewTransport(ts, tokensource.SchemeBearer, http.DefaultTransport)
//
// # Custom Base Transport
//
// Token endpoint requests can use a custom transport (proxies, tests):
//
//	ts, err := tokensource.New(ctx, cfg, tokensource.WithTransport(customTransport))
package tokensource
