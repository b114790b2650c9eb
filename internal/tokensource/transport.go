package tokensource

import (
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// Credential schemes accepted by NewTransport.
const (
	SchemeBearer = "bearer"
	SchemeAPIKey = "x-api-key"
)

// NewTransport returns a RoundTripper that attaches the current token from
// src to each request. A nil base uses http.DefaultTransport.
func NewTransport(src oauth2.TokenSource, scheme string, base http.RoundTripper) http.RoundTripper {
	if scheme == SchemeAPIKey {
		return &apiKeyTransport{source: src, base: base}
	}
	return &oauth2.Transport{Source: src, Base: base}
}

// apiKeyTransport sends the token in the x-api-key header.
type apiKeyTransport struct {
	source oauth2.TokenSource
	base   http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.source.Token()
	if err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, fmt.Errorf("fetching credential: %w", err)
	}

	// RoundTrippers must not modify the caller's request.
	clone := req.Clone(req.Context())
	clone.Header.Set("x-api-key", token.AccessToken)

	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(clone)
}
